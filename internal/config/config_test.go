package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Device.Username != "Admin" || cfg.Device.Password != "admin" {
		t.Fatalf("credentials = %q/%q, want Admin/admin", cfg.Device.Username, cfg.Device.Password)
	}
	if cfg.Device.Inputs != 8 || cfg.Device.Outputs != 8 {
		t.Fatalf("ports = %d/%d, want 8/8", cfg.Device.Inputs, cfg.Device.Outputs)
	}
	if cfg.Device.Timeout != 10*time.Second || cfg.Device.PollInterval != 30*time.Second {
		t.Fatalf("timing = %v/%v, want 10s/30s", cfg.Device.Timeout, cfg.Device.PollInterval)
	}

	wantLog, err := expandPath(defaultLogFile)
	if err != nil {
		t.Fatalf("expandPath(defaultLogFile) returned error: %v", err)
	}
	if cfg.Log.File != wantLog || cfg.Log.Level != "info" {
		t.Fatalf("Log = %+v, want file %q level info", cfg.Log, wantLog)
	}
	if cfg.MQTT.TopicPrefix != "crossbar" || cfg.MQTT.QoS != 1 {
		t.Fatalf("MQTT = %+v", cfg.MQTT)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate accepted a config without host")
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
[device]
host = "  http://192.168.1.100/  "
username = " Operator "
password = "hunter2"
inputs = 4
outputs = 2
timeout_seconds = 3
poll_seconds = 15

[ports]
input_names = [" Apple TV ", "", "PS5"]
output_names = ["Living Room"]
hidden_inputs = [4]
hidden_outputs = [2]

[ports.available_inputs]
"1" = [1, 3]

[log]
level = " DEBUG "
file = "~/logs/crossbar.log"

[api]
listen = " :8080 "

[mqtt]
broker = "tcp://broker.lan:1883"
client_id = "crossbar-test"
topic_prefix = "/home/matrix/"
qos = 0
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Device.Host != "192.168.1.100" {
		t.Fatalf("Host = %q, want 192.168.1.100", cfg.Device.Host)
	}
	if cfg.Device.Username != "Operator" || cfg.Device.Password != "hunter2" {
		t.Fatalf("credentials = %q/%q", cfg.Device.Username, cfg.Device.Password)
	}
	if cfg.Device.Inputs != 4 || cfg.Device.Outputs != 2 {
		t.Fatalf("ports = %d/%d, want 4/2", cfg.Device.Inputs, cfg.Device.Outputs)
	}
	if cfg.Device.Timeout != 3*time.Second || cfg.Device.PollInterval != 15*time.Second {
		t.Fatalf("timing = %v/%v", cfg.Device.Timeout, cfg.Device.PollInterval)
	}
	if !reflect.DeepEqual(cfg.Ports.InputNames, []string{"Apple TV", "", "PS5"}) {
		t.Fatalf("InputNames = %q", cfg.Ports.InputNames)
	}
	if !reflect.DeepEqual(cfg.Ports.AvailableInputs, map[int][]int{1: {1, 3}}) {
		t.Fatalf("AvailableInputs = %v", cfg.Ports.AvailableInputs)
	}
	if cfg.Log.Level != "debug" || !strings.HasPrefix(cfg.Log.File, home) {
		t.Fatalf("Log = %+v", cfg.Log)
	}
	if cfg.API.Listen != ":8080" {
		t.Fatalf("API.Listen = %q", cfg.API.Listen)
	}
	if cfg.MQTT.TopicPrefix != "home/matrix" || cfg.MQTT.QoS != 0 || cfg.MQTT.ClientID != "crossbar-test" {
		t.Fatalf("MQTT = %+v", cfg.MQTT)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`[device`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoad_AvailableInputsNeedNumericOutputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[device]\nhost = \"matrix.lan\"\n\n[ports.available_inputs]\nprojector = [1]\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "ports.available_inputs") {
		t.Fatalf("Load error = %v, want available_inputs error", err)
	}
}

func TestValidate(t *testing.T) {
	base := Default()
	base.Device.Host = "matrix.lan"

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"bad qos", func(c *Config) { c.MQTT.QoS = 3 }, false},
		{"hidden input out of range", func(c *Config) { c.Ports.HiddenInputs = []int{9} }, false},
		{"hidden output out of range", func(c *Config) { c.Ports.HiddenOutputs = []int{0} }, false},
		{"available inputs", func(c *Config) { c.Ports.AvailableInputs = map[int][]int{2: {1, 8}} }, true},
		{"available inputs for unknown output", func(c *Config) { c.Ports.AvailableInputs = map[int][]int{9: {1}} }, false},
		{"available input out of range", func(c *Config) { c.Ports.AvailableInputs = map[int][]int{1: {1, 9}} }, false},
		{"no available inputs", func(c *Config) { c.Ports.AvailableInputs = map[int][]int{1: {}} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, ok want %v", err, tt.ok)
			}
		})
	}
}

func TestPortNames(t *testing.T) {
	p := PortsConfig{
		InputNames:    []string{"Apple TV", ""},
		OutputNames:   []string{"Projector"},
		HiddenInputs:  []int{3},
		HiddenOutputs: []int{8},
	}
	device := []string{"HDMI1", "HDMI2", " "}

	tests := []struct {
		got, want string
	}{
		{p.InputName(1, device), "Apple TV"},
		{p.InputName(2, device), "HDMI2"},
		{p.InputName(3, device), "Input 3"},
		{p.InputName(5, nil), "Input 5"},
		{p.OutputName(1, nil), "Projector"},
		{p.OutputName(2, []string{"Out1", "Out2"}), "Out2"},
	}
	for i, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("case %d: got %q, want %q", i, tt.got, tt.want)
		}
	}
	if !p.InputHidden(3) || p.InputHidden(1) || !p.OutputHidden(8) || p.OutputHidden(1) {
		t.Fatal("hidden port lookup mismatch")
	}
}

func TestInputAvailable(t *testing.T) {
	p := PortsConfig{AvailableInputs: map[int][]int{2: {1, 4}}}

	tests := []struct {
		output, input int
		want          bool
	}{
		{1, 3, true},
		{2, 1, true},
		{2, 4, true},
		{2, 3, false},
	}
	for _, tt := range tests {
		if got := p.InputAvailable(tt.output, tt.input); got != tt.want {
			t.Errorf("InputAvailable(%d, %d) = %v, want %v", tt.output, tt.input, got, tt.want)
		}
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
