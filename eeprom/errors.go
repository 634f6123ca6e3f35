package eeprom

import "fmt"

// ConfigError reports a profile that cannot serve the requested operation.
type ConfigError struct {
	Model   string
	Op      string
	Missing string
}

func (e *ConfigError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%s: no printer profile", e.Op)
	}
	return fmt.Sprintf("%s: model %s has no %s", e.Op, e.Model, e.Missing)
}

// UsageError reports an argument outside the addressable range.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// TransportError is a soft failure: timeout, unreachable host, or a reply
// that is not a well-formed frame. It is logged and surfaced as an absent value.
type TransportError struct {
	Cell int
	OID  string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("eeprom cell %d: %v", e.Cell, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a hard failure: the printer answered for a different cell
// than requested, which means the profile does not match the device.
type ProtocolError struct {
	Cell     int
	Label    string
	Echoed   int
	Response string
}

func (e *ProtocolError) Error() string {
	label := ""
	if e.Label != "" {
		label = " (" + e.Label + ")"
	}
	return fmt.Sprintf("eeprom cell %d%s: printer echoed address %d; wrong model profile? response %q",
		e.Cell, label, e.Echoed, e.Response)
}
