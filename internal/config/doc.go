// Package config handles loading and parsing the crossbar configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/crossbar/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// A missing file still loads, but Validate rejects it because the device host
// has no default.
//
// # TOML Format
//
//	[device]
//	host = "192.168.1.100"      # scheme and trailing slash are stripped
//	username = "Admin"
//	password = "admin"
//	inputs = 8
//	outputs = 8
//	timeout_seconds = 10
//	poll_seconds = 30
//
//	[ports]
//	input_names = ["Apple TV", "PS5"]
//	output_names = ["Living Room"]
//	hidden_inputs = [8]
//	hidden_outputs = []
//
//	[ports.available_inputs]    # outputs not listed offer every input
//	"1" = [1, 2, 5]
//
//	[log]
//	level = "info"
//	file = "~/.local/state/crossbar/crossbar.log"
//
//	[api]
//	listen = "127.0.0.1:8088"   # empty disables the HTTP API
//
//	[mqtt]
//	broker = "tcp://broker.lan:1883"   # empty disables the bridge
//	client_id = ""
//	topic_prefix = "crossbar"
//	qos = 1
//
// # Port Names
//
// Port names, hidden ports and per-output input lists are presentation
// metadata only. InputName and
// OutputName resolve a display name from the configured list, then the label
// the device reports, then "Input N" / "Output N".
//
// # Path Expansion
//
// Paths beginning with ~ are expanded against the user's home directory and
// made absolute.
package config
