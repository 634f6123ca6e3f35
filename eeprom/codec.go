// Package eeprom reads and writes EEPROM cells through the remote-mode "||"
// command.
package eeprom

import (
	"fmt"
	"strconv"
	"strings"

	"epsonconf/common/logger"
	"epsonconf/registry"
	"epsonconf/remote"
)

// MaxCell is the highest addressable cell.
const MaxCell = 0xFFFF

// Opcode payloads following the read key.
var (
	readMagic  = []int{65, 190, 160}
	writeMagic = []int{66, 189, 33}
)

// Address is the byte pair a cell index is sent as.
type Address struct {
	LSB byte
	MSB byte
}

// SplitCell splits a cell index into its low and high address bytes.
func SplitCell(cell int) (Address, error) {
	if cell < 0 || cell > MaxCell {
		return Address{}, &UsageError{Msg: fmt.Sprintf("eeprom cell %d out of range [0, %d]", cell, MaxCell)}
	}
	return Address{LSB: byte(cell % 256), MSB: byte(cell / 256)}, nil
}

// EncodeKeyword applies the keyword cipher: 0 stays 0, every other byte b
// becomes b+1.
func EncodeKeyword(key []byte) []int {
	out := make([]int, len(key))
	for i, b := range key {
		if b == 0 {
			out[i] = 0
		} else {
			out[i] = int(b) + 1
		}
	}
	return out
}

// DecodeKeyword inverts EncodeKeyword.
func DecodeKeyword(seq []int) []byte {
	out := make([]byte, len(seq))
	for i, v := range seq {
		if v == 0 {
			out[i] = 0
		} else {
			out[i] = byte(v - 1)
		}
	}
	return out
}

// KeywordSequence renders the ciphered keyword as dot-joined decimal, or
// uppercase hex when hex is set.
func KeywordSequence(key []byte, hex bool) string {
	parts := make([]string, 0, len(key))
	for _, v := range EncodeKeyword(key) {
		if hex {
			parts = append(parts, fmt.Sprintf("%X", v))
		} else {
			parts = append(parts, strconv.Itoa(v))
		}
	}
	return strings.Join(parts, ".")
}

// Codec turns cell indices and a profile's keys into request OIDs.
type Codec struct {
	DryRun bool
}

// ReadAddress builds the OID reading cell.
func (c Codec) ReadAddress(cell int, p *registry.Profile) (string, error) {
	if !p.HasReadKey() {
		return "", missingKey(p, "read", "read_key")
	}
	addr, err := SplitCell(cell)
	if err != nil {
		return "", err
	}
	payload := []int{int(p.ReadKey[0]), int(p.ReadKey[1])}
	payload = append(payload, readMagic...)
	payload = append(payload, int(addr.LSB), int(addr.MSB))
	return remote.BuildOID(remote.EEPROM, payload)
}

// WriteAddress builds the OID writing value to cell. In dry-run mode the
// would-be OID is logged and the read OID for the same cell is returned.
func (c Codec) WriteAddress(cell int, value byte, p *registry.Profile) (string, error) {
	if !p.HasReadKey() {
		return "", missingKey(p, "write", "read_key")
	}
	if !p.HasWriteKey() {
		return "", missingKey(p, "write", "write_key")
	}
	addr, err := SplitCell(cell)
	if err != nil {
		return "", err
	}
	payload := []int{int(p.ReadKey[0]), int(p.ReadKey[1])}
	payload = append(payload, writeMagic...)
	payload = append(payload, int(addr.LSB), int(addr.MSB), int(value))
	payload = append(payload, EncodeKeyword(p.WriteKey)...)
	oid, err := remote.BuildOID(remote.EEPROM, payload)
	if err != nil {
		return "", err
	}
	if !c.DryRun {
		return oid, nil
	}

	if logger.Global != nil {
		logger.Global.Info("Dry-run: write redirected to read", "cell", cell, "value", value, "write_oid", oid)
	}
	return c.ReadAddress(cell, p)
}

func missingKey(p *registry.Profile, op, key string) *ConfigError {
	if p == nil {
		return &ConfigError{Op: op, Missing: key}
	}
	return &ConfigError{Model: p.Name, Op: op, Missing: key}
}
