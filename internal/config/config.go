// Package config loads the YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Transport TransportConfig `yaml:"transport"`
	Protocol  ProtocolConfig  `yaml:"protocol"`
	Log       LogConfig       `yaml:"log"`
	IPC       IPCConfig       `yaml:"ipc"`
	Tray      TrayConfig      `yaml:"tray"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Address    string `yaml:"address"`     // "AA:BB:CC:DD:EE:FF", empty = discover
	AliasMatch string `yaml:"alias_match"` // substring of the BlueZ alias
}

// ---- TRANSPORT ----

type TransportKind string

const (
	TransportProfile TransportKind = "profile" // BlueZ hands over the RFCOMM socket
	TransportRFCOMM  TransportKind = "rfcomm"  // raw RFCOMM socket on a fixed channel
	TransportSerial  TransportKind = "serial"  // tty such as /dev/rfcomm0
)

type TransportConfig struct {
	Kind          TransportKind `yaml:"kind"`
	RFCOMMChannel uint8         `yaml:"rfcomm_channel"`
	SerialPort    string        `yaml:"serial_port"`
	BaudRate      uint          `yaml:"baud_rate"`
}

// ---- PROTOCOL ----

type ProtocolConfig struct {
	AckTimeoutMs int  `yaml:"ack_timeout_ms"`
	MaxRetries   *int `yaml:"max_retries"` // nil when unset, 0 disables retransmission
	OutboxSize   int  `yaml:"outbox_size"`
}

// ---- AMBIENT ----

type LogConfig struct {
	Level string `yaml:"level"`
}

type IPCConfig struct {
	Socket string `yaml:"socket"`
}

type TrayConfig struct {
	Icon string `yaml:"icon"`
}

// DefaultPath returns $XDG_CONFIG_HOME/linuxsony/config.yaml.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "linuxsony", "config.yaml")
}

// Load reads, normalizes and validates the file at path. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
