// Package app is the composition root of crossbar.
//
// Run wires the pieces together in a fixed order:
//
//  1. Load ~/.config/crossbar/config.toml (or the --config path) and validate it
//  2. Point zerolog at stderr (headless) or the log file (TUI)
//  3. Build the matrix client and the reconcile coordinator, and start polling;
//     the first refresh runs immediately
//  4. Start the HTTP API when api.listen is set
//  5. Connect the MQTT bridge when mqtt.broker is set and register it as a
//     snapshot sink; a broker that cannot be reached is logged, not fatal
//  6. Run the TUI, or with Headless block until the context is cancelled
//
// Teardown runs in reverse: the MQTT bridge announces itself offline, the API
// drains, and only then does the coordinator stop its timer and release the
// device session.
package app
