// Package snmp wraps gosnmp for the request/response transactions used by the
// EEPROM and status engines.
package snmp

import (
	"fmt"
	"strings"
	"time"

	"epsonconf/common/config"
	"epsonconf/common/logger"

	"github.com/gosnmp/gosnmp"
)

// Client is the transport seen by the engines. One GET is one transaction.
type Client interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	Close() error
}

// Config holds SNMP connection parameters.
type Config struct {
	Community string
	Version   gosnmp.SnmpVersion
	Port      uint16
	Timeout   time.Duration
	Retries   int
}

// DefaultConfig returns community "public", SNMP v1, port 161.
func DefaultConfig() Config {
	return Config{
		Community: "public",
		Version:   gosnmp.Version1,
		Port:      161,
		Timeout:   5 * time.Second,
		Retries:   1,
	}
}

// ParseVersion maps "1", "2c" (or "2") to a gosnmp version.
func ParseVersion(s string) (gosnmp.SnmpVersion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "1":
		return gosnmp.Version1, nil
	case "2", "2c":
		return gosnmp.Version2c, nil
	default:
		return 0, fmt.Errorf("unsupported SNMP version: %s", s)
	}
}

// FromSettings builds a Config from file settings, filling defaults for
// zero values.
func FromSettings(s config.SNMPConfig) (Config, error) {
	cfg := DefaultConfig()
	if s.Community != "" {
		cfg.Community = s.Community
	}
	version, err := ParseVersion(s.Version)
	if err != nil {
		return Config{}, err
	}
	cfg.Version = version
	if s.Port > 0 {
		if s.Port > 65535 {
			return Config{}, fmt.Errorf("invalid SNMP port: %d", s.Port)
		}
		cfg.Port = uint16(s.Port)
	}
	if s.TimeoutMS > 0 {
		cfg.Timeout = time.Duration(s.TimeoutMS) * time.Millisecond
	}
	if s.Retries > 0 {
		cfg.Retries = s.Retries
	}
	return cfg, nil
}

// ConfigFromEnv loads SNMP_COMMUNITY, SNMP_VERSION, SNMP_PORT,
// SNMP_TIMEOUT_MS and SNMP_RETRIES over the defaults.
func ConfigFromEnv() (Config, error) {
	var s config.SNMPConfig
	config.ApplySNMPEnvOverrides(&s)
	return FromSettings(s)
}

// gosnmpClient wraps gosnmp.GoSNMP to implement Client.
type gosnmpClient struct {
	conn *gosnmp.GoSNMP
}

func (c *gosnmpClient) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	if logger.Global != nil {
		logger.Global.TraceTag("snmp", "SNMP GET", "target", c.conn.Target, "oids", strings.Join(oids, ","))
	}
	return c.conn.Get(oids)
}

func (c *gosnmpClient) Close() error {
	if c.conn.Conn == nil {
		return nil
	}
	return c.conn.Conn.Close()
}

func newClientImpl(cfg Config, target string) (Client, error) {
	if target == "" {
		return nil, fmt.Errorf("target host required")
	}
	if cfg.Community == "" {
		cfg.Community = "public"
	}
	if cfg.Port == 0 {
		cfg.Port = 161
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	conn := &gosnmp.GoSNMP{
		Target:    target,
		Port:      cfg.Port,
		Community: cfg.Community,
		Version:   cfg.Version,
		Timeout:   cfg.Timeout,
		Retries:   cfg.Retries,
	}
	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return &gosnmpClient{conn: conn}, nil
}

// NewClientFunc creates transports. Tests replace it with a fake.
var NewClientFunc = newClientImpl

// NewClient opens a transport to target.
func NewClient(cfg Config, target string) (Client, error) {
	return NewClientFunc(cfg, target)
}
