package config

import (
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"
)

var macPattern = regexp.MustCompile(`^([0-9A-F]{2}:){5}[0-9A-F]{2}$`)

// Validate checks a normalized config.
func Validate(cfg *Config) error {
	if cfg.Device.Address != "" && !macPattern.MatchString(cfg.Device.Address) {
		return fmt.Errorf("device.address %q: not a MAC address", cfg.Device.Address)
	}

	switch cfg.Transport.Kind {
	case TransportProfile:
	case TransportRFCOMM:
		if cfg.Device.Address == "" {
			return fmt.Errorf("transport rfcomm requires device.address")
		}
		if cfg.Transport.RFCOMMChannel > 30 {
			return fmt.Errorf("transport.rfcomm_channel %d: must be 1-30", cfg.Transport.RFCOMMChannel)
		}
	case TransportSerial:
		if cfg.Transport.SerialPort == "" {
			return fmt.Errorf("transport serial requires serial_port")
		}
	default:
		return fmt.Errorf("transport.kind %q: must be profile, rfcomm or serial", cfg.Transport.Kind)
	}

	p := cfg.Protocol
	if p.AckTimeoutMs < 0 {
		return fmt.Errorf("protocol.ack_timeout_ms must not be negative")
	}
	if p.MaxRetries != nil && *p.MaxRetries < 0 {
		return fmt.Errorf("protocol.max_retries must not be negative")
	}
	if p.OutboxSize < 0 {
		return fmt.Errorf("protocol.outbox_size must not be negative")
	}

	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}
