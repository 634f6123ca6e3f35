// Package metrics derives maintenance values from raw EEPROM reads and the
// remote-mode commands: waste-ink levels, serial number, dates, firmware,
// cartridge telemetry and the ST2 status report.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"epsonconf/common/logger"
	"epsonconf/eeprom"
	"epsonconf/registry"
	"epsonconf/remote"
	"epsonconf/snmp"
	"epsonconf/st2"
)

// ErrNoValue marks a soft failure: the field could not be read this time.
var ErrNoValue = errors.New("value not available")

// DecodeError reports a reply that does not follow the expected grammar.
type DecodeError struct {
	Field  string
	Reason string
	Input  string
}

func (e *DecodeError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s (input %q)", e.Field, e.Reason, e.Input)
}

// Printer computes derived values for one session.
type Printer struct {
	client    *eeprom.Client
	profile   *registry.Profile
	transport snmp.Client
}

// NewPrinter wraps an EEPROM client.
func NewPrinter(client *eeprom.Client) *Printer {
	return &Printer{
		client:    client,
		profile:   client.Profile(),
		transport: client.Transport(),
	}
}

// Client returns the underlying EEPROM client.
func (p *Printer) Client() *eeprom.Client { return p.client }

// Profile returns the session's profile.
func (p *Printer) Profile() *registry.Profile { return p.profile }

func (p *Printer) configError(op, missing string) error {
	return &eeprom.ConfigError{Model: p.profile.Name, Op: op, Missing: missing}
}

// remoteQuery issues a remote-mode command and returns the raw reply.
// Transport failures are soft.
func (p *Printer) remoteQuery(cmd remote.Command, payload ...int) ([]byte, error) {
	oid, err := remote.BuildOID(cmd, payload)
	if err != nil {
		return nil, err
	}
	resp, err := snmp.GetBytes(p.transport, oid)
	if err != nil {
		if logger.Global != nil {
			logger.Global.Warn("Remote command failed", "host", p.client.Host(), "command", cmd.Name, "error", err)
		}
		return nil, fmt.Errorf("%s: %w: %v", cmd.Name, ErrNoValue, err)
	}
	if logger.Global != nil {
		logger.Global.TraceTag("snmp", "Remote command reply", "command", cmd.Name, "oid", oid, "response", fmt.Sprintf("%q", resp))
	}
	return resp, nil
}

// Status fetches and decodes the ST2 status report.
func (p *Printer) Status(ctx context.Context) (*st2.Report, error) {
	resp, err := p.remoteQuery(remote.Status)
	if err != nil {
		return nil, err
	}
	report, err := st2.Decode(resp)
	if err != nil {
		if logger.Global != nil {
			logger.Global.Warn("ST2 decode failed", "host", p.client.Host(), "error", err, "data_len", len(resp))
			logger.Global.TraceTag("st2", "ST2 raw preview", "prefix_hex", fmt.Sprintf("% x", resp[:min(len(resp), 32)]))
		}
		return nil, err
	}
	return report, nil
}

// DeviceID fetches the IEEE-1284 identification string as key/value pairs.
// Common keys are expanded: MFG, MDL, CMD, CLS and DES.
func (p *Printer) DeviceID(ctx context.Context) (map[string]string, error) {
	resp, err := p.remoteQuery(remote.DeviceID)
	if err != nil {
		return nil, err
	}
	return ParseDeviceID(resp), nil
}

// ParseDeviceID splits "KEY:value;KEY:value;" text, skipping any binary
// prefix before the first letter.
func ParseDeviceID(data []byte) map[string]string {
	s := string(data)
	if i := strings.IndexFunc(s, func(r rune) bool {
		return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
	}); i > 0 {
		s = s[i:]
	}

	out := make(map[string]string)
	for _, pair := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(pair, ":")
		if !ok || key == "" {
			continue
		}
		value = strings.TrimRight(value, "\x00\x0c")
		switch key {
		case "MFG":
			out["Manufacturer"] = value
		case "MDL":
			out["Model"] = value
		case "CMD":
			out["Commands"] = value
		case "CLS":
			out["Class"] = value
		case "DES":
			out["Description"] = value
		default:
			out[key] = value
		}
	}
	return out
}
