package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultAliasMatch = "WH-"
	defaultChannel    = 9
	defaultSerialPort = "/dev/rfcomm0"
	defaultBaudRate   = 9600
	defaultAckTimeout = 1000
	defaultMaxRetries = 3
	defaultOutboxSize = 32
	defaultLogLevel   = "info"
	defaultTrayIcon   = "assets/tray_icon.png"
)

// Normalize fills in defaults for every unset field.
func Normalize(cfg *Config) {
	cfg.Device.Address = strings.ToUpper(strings.TrimSpace(cfg.Device.Address))
	if cfg.Device.AliasMatch == "" {
		cfg.Device.AliasMatch = defaultAliasMatch
	}

	t := &cfg.Transport
	if t.Kind == "" {
		t.Kind = TransportProfile
	}
	t.Kind = TransportKind(strings.ToLower(string(t.Kind)))
	if t.RFCOMMChannel == 0 {
		t.RFCOMMChannel = defaultChannel
	}
	if t.SerialPort == "" {
		t.SerialPort = defaultSerialPort
	}
	if t.BaudRate == 0 {
		t.BaudRate = defaultBaudRate
	}

	p := &cfg.Protocol
	if p.AckTimeoutMs == 0 {
		p.AckTimeoutMs = defaultAckTimeout
	}
	if p.MaxRetries == nil {
		retries := defaultMaxRetries
		p.MaxRetries = &retries
	}
	if p.OutboxSize == 0 {
		p.OutboxSize = defaultOutboxSize
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.IPC.Socket == "" {
		cfg.IPC.Socket = defaultSocketPath()
	}
	if cfg.Tray.Icon == "" {
		cfg.Tray.Icon = defaultTrayIcon
	}
}

func defaultSocketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = "/tmp"
	}
	return filepath.Join(dir, "linuxsony.sock")
}
