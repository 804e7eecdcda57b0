package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/crossbar/internal/matrix"
)

// Config captures everything crossbar needs to reach and present a matrix.
type Config struct {
	Device DeviceConfig
	Ports  PortsConfig
	Log    LogConfig
	API    APIConfig
	MQTT   MQTTConfig
}

// DeviceConfig holds the connection parameters of the matrix.
type DeviceConfig struct {
	Host         string
	Username     string
	Password     string
	Inputs       int
	Outputs      int
	Timeout      time.Duration
	PollInterval time.Duration
}

// PortsConfig carries presentation metadata: user names for ports, ports to
// leave out of selection lists and, per output, the inputs it may be
// switched to.
type PortsConfig struct {
	InputNames    []string
	OutputNames   []string
	HiddenInputs  []int
	HiddenOutputs []int

	// AvailableInputs maps an output to the inputs offered for it. Outputs
	// without an entry offer every input.
	AvailableInputs map[int][]int
}

// LogConfig selects the log level and, for the TUI, the log file.
type LogConfig struct {
	Level string
	File  string
}

// APIConfig enables the HTTP control API when Listen is set.
type APIConfig struct {
	Listen string
}

// MQTTConfig enables the MQTT bridge when Broker is set.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         int
}

const (
	defaultConfigPath   = "~/.config/crossbar/config.toml"
	defaultLogFile      = "~/.local/state/crossbar/crossbar.log"
	defaultLogLevel     = "info"
	defaultTopicPrefix  = "crossbar"
	defaultQoS          = 1
	defaultPollInterval = 30 * time.Second
)

type rawConfig struct {
	Device struct {
		Host           string `toml:"host"`
		Username       string `toml:"username"`
		Password       string `toml:"password"`
		Inputs         int    `toml:"inputs"`
		Outputs        int    `toml:"outputs"`
		TimeoutSeconds int    `toml:"timeout_seconds"`
		PollSeconds    int    `toml:"poll_seconds"`
	} `toml:"device"`
	Ports struct {
		InputNames    []string `toml:"input_names"`
		OutputNames   []string `toml:"output_names"`
		HiddenInputs  []int    `toml:"hidden_inputs"`
		HiddenOutputs []int    `toml:"hidden_outputs"`

		AvailableInputs map[string][]int `toml:"available_inputs"`
	} `toml:"ports"`
	Log struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"log"`
	API struct {
		Listen string `toml:"listen"`
	} `toml:"api"`
	MQTT struct {
		Broker      string `toml:"broker"`
		ClientID    string `toml:"client_id"`
		Username    string `toml:"username"`
		Password    string `toml:"password"`
		TopicPrefix string `toml:"topic_prefix"`
		QoS         *int   `toml:"qos"`
	} `toml:"mqtt"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			Username:     matrix.DefaultUsername,
			Password:     matrix.DefaultPassword,
			Inputs:       matrix.DefaultPorts,
			Outputs:      matrix.DefaultPorts,
			Timeout:      matrix.DefaultTimeout,
			PollInterval: defaultPollInterval,
		},
		Log:  LogConfig{Level: defaultLogLevel, File: mustExpand(defaultLogFile)},
		MQTT: MQTTConfig{TopicPrefix: defaultTopicPrefix, QoS: defaultQoS},
	}
}

// Load locates and parses the crossbar config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.Device.Host = matrix.NormalizeHost(raw.Device.Host)
	if v := strings.TrimSpace(raw.Device.Username); v != "" {
		cfg.Device.Username = v
	}
	if raw.Device.Password != "" {
		cfg.Device.Password = raw.Device.Password
	}
	if raw.Device.Inputs > 0 {
		cfg.Device.Inputs = raw.Device.Inputs
	}
	if raw.Device.Outputs > 0 {
		cfg.Device.Outputs = raw.Device.Outputs
	}
	if raw.Device.TimeoutSeconds > 0 {
		cfg.Device.Timeout = time.Duration(raw.Device.TimeoutSeconds) * time.Second
	}
	if raw.Device.PollSeconds > 0 {
		cfg.Device.PollInterval = time.Duration(raw.Device.PollSeconds) * time.Second
	}

	cfg.Ports = PortsConfig{
		InputNames:    trimAll(raw.Ports.InputNames),
		OutputNames:   trimAll(raw.Ports.OutputNames),
		HiddenInputs:  raw.Ports.HiddenInputs,
		HiddenOutputs: raw.Ports.HiddenOutputs,
	}
	if len(raw.Ports.AvailableInputs) > 0 {
		cfg.Ports.AvailableInputs = make(map[int][]int, len(raw.Ports.AvailableInputs))
		for key, inputs := range raw.Ports.AvailableInputs {
			output, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil {
				return Config{}, fmt.Errorf("ports.available_inputs: %q is not an output number", key)
			}
			cfg.Ports.AvailableInputs[output] = inputs
		}
	}

	if v := strings.TrimSpace(raw.Log.Level); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.Log.File); v != "" {
		cfg.Log.File = mustExpand(v)
	}

	cfg.API.Listen = strings.TrimSpace(raw.API.Listen)

	cfg.MQTT.Broker = strings.TrimSpace(raw.MQTT.Broker)
	cfg.MQTT.ClientID = strings.TrimSpace(raw.MQTT.ClientID)
	cfg.MQTT.Username = strings.TrimSpace(raw.MQTT.Username)
	cfg.MQTT.Password = raw.MQTT.Password
	if v := strings.Trim(strings.TrimSpace(raw.MQTT.TopicPrefix), "/"); v != "" {
		cfg.MQTT.TopicPrefix = v
	}
	if raw.MQTT.QoS != nil {
		cfg.MQTT.QoS = *raw.MQTT.QoS
	}

	return cfg, nil
}

// Validate reports settings crossbar cannot run with.
func (c Config) Validate() error {
	if c.Device.Host == "" {
		return fmt.Errorf("device.host is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	for _, n := range c.Ports.HiddenInputs {
		if n < 1 || n > c.Device.Inputs {
			return fmt.Errorf("ports.hidden_inputs: %d is not an input", n)
		}
	}
	for _, n := range c.Ports.HiddenOutputs {
		if n < 1 || n > c.Device.Outputs {
			return fmt.Errorf("ports.hidden_outputs: %d is not an output", n)
		}
	}
	outputs := make([]int, 0, len(c.Ports.AvailableInputs))
	for output := range c.Ports.AvailableInputs {
		outputs = append(outputs, output)
	}
	sort.Ints(outputs)
	for _, output := range outputs {
		if output < 1 || output > c.Device.Outputs {
			return fmt.Errorf("ports.available_inputs: %d is not an output", output)
		}
		inputs := c.Ports.AvailableInputs[output]
		if len(inputs) == 0 {
			return fmt.Errorf("ports.available_inputs: output %d has no inputs", output)
		}
		for _, n := range inputs {
			if n < 1 || n > c.Device.Inputs {
				return fmt.Errorf("ports.available_inputs: output %d lists %d, which is not an input", output, n)
			}
		}
	}
	return nil
}

// InputName returns the display name of input n: the configured name, else
// the device label, else "Input n".
func (p PortsConfig) InputName(n int, deviceLabels []string) string {
	return portName(n, p.InputNames, deviceLabels, "Input")
}

// OutputName returns the display name of output n.
func (p PortsConfig) OutputName(n int, deviceLabels []string) string {
	return portName(n, p.OutputNames, deviceLabels, "Output")
}

// InputHidden reports whether input n is excluded from selection.
func (p PortsConfig) InputHidden(n int) bool {
	return contains(p.HiddenInputs, n)
}

// InputAvailable reports whether input may be offered for output.
func (p PortsConfig) InputAvailable(output, input int) bool {
	inputs, ok := p.AvailableInputs[output]
	if !ok {
		return true
	}
	return contains(inputs, input)
}

// OutputHidden reports whether output n is excluded from display.
func (p PortsConfig) OutputHidden(n int) bool {
	return contains(p.HiddenOutputs, n)
}

func portName(n int, configured, device []string, kind string) string {
	if n >= 1 && n <= len(configured) && configured[n-1] != "" {
		return configured[n-1]
	}
	if n >= 1 && n <= len(device) {
		if label := strings.TrimSpace(device[n-1]); label != "" {
			return label
		}
	}
	return fmt.Sprintf("%s %d", kind, n)
}

func contains(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
