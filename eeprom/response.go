package eeprom

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"epsonconf/remote"
)

var readMarker = regexp.MustCompile(`EE:([0-9A-F]{4})([0-9A-F]{2})`)

var (
	errBadFrame     = errors.New("reply is not framed by 0x00 ... 0x0C")
	errNoMarker     = errors.New("reply has no EE: marker")
	errNoAck        = errors.New("write not acknowledged")
	errNotAvailable = errors.New("write not available")
)

// parseReadReply extracts the value byte from a read reply. Framing and
// marker problems come back as plain errors (soft); an address echo that
// does not match cell is a *ProtocolError.
func parseReadReply(cell int, resp []byte) (byte, error) {
	body, ok := remote.Unframe(resp)
	if !ok {
		return 0, errBadFrame
	}
	m := readMarker.FindSubmatch(body)
	if m == nil {
		return 0, errNoMarker
	}
	echoed, _ := strconv.ParseUint(string(m[1]), 16, 16)
	value, _ := strconv.ParseUint(string(m[2]), 16, 8)
	if int(echoed) != cell {
		return 0, &ProtocolError{Cell: cell, Echoed: int(echoed), Response: string(body)}
	}
	return byte(value), nil
}

// parseWriteReply checks a write reply for the OK token. The NA token is
// reported separately so callers can log it.
func parseWriteReply(resp []byte) error {
	body, ok := remote.Unframe(resp)
	if !ok {
		return errBadFrame
	}
	tokens := strings.FieldsFunc(string(body), func(r rune) bool {
		return r == ':' || r == ';' || r == '\r' || r == '\n' || r == ' '
	})
	for _, tok := range tokens {
		switch tok {
		case "OK":
			return nil
		case "NA":
			return errNotAvailable
		}
	}
	return errNoAck
}
