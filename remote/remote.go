// Package remote builds OIDs for the vendor remote-mode commands tunnelled
// through SNMP GET requests.
package remote

import (
	"fmt"
	"strconv"
	"strings"
)

// BaseOID prefixes every remote-mode request.
const BaseOID = "1.3.6.1.4.1.1248.1.2.2.44.1.1.2.1"

// Command describes a remote-mode command understood by the printer.
type Command struct {
	Name        string
	Code        [2]byte
	BasePayload []int
}

var (
	// DeviceID fetches IEEE-1284 style key/value text (command "di").
	DeviceID = Command{Name: "device_id", Code: [2]byte{'d', 'i'}, BasePayload: []int{0x01}}
	// Status fetches the ST2 status frame (command "st").
	Status = Command{Name: "status", Code: [2]byte{'s', 't'}, BasePayload: []int{0x01}}
	// Firmware fetches the firmware version string (command "vi").
	Firmware = Command{Name: "firmware", Code: [2]byte{'v', 'i'}, BasePayload: []int{0x00}}
	// InstalledCartridges lists cartridge names (command "ia").
	InstalledCartridges = Command{Name: "ink_actuators", Code: [2]byte{'i', 'a'}, BasePayload: []int{0x00}}
	// CartridgeInfo inspects one slot (command "ii").
	CartridgeInfo = Command{Name: "ink_slot", Code: [2]byte{'i', 'i'}, BasePayload: []int{0x01}}
	// EEPROM carries raw EEPROM reads and writes (command "||").
	EEPROM = Command{Name: "eeprom", Code: [2]byte{'|', '|'}}
)

// BuildOID constructs the OID for a remote-mode request. The payload length
// is encoded little-endian right after the command bytes. Arcs are plain
// integers: the keyword cipher can yield 256.
func BuildOID(cmd Command, dynamicPayload []int) (string, error) {
	payload := append([]int{}, cmd.BasePayload...)
	payload = append(payload, dynamicPayload...)

	if len(payload) > 0xFFFF {
		return "", fmt.Errorf("payload too large for remote command %s", cmd.Name)
	}

	suffix := []string{
		strconv.Itoa(int(cmd.Code[0])),
		strconv.Itoa(int(cmd.Code[1])),
		strconv.Itoa(len(payload) & 0xFF),
		strconv.Itoa((len(payload) >> 8) & 0xFF),
	}
	for i, arc := range payload {
		if arc < 0 {
			return "", fmt.Errorf("negative arc at payload offset %d for remote command %s", i, cmd.Name)
		}
		suffix = append(suffix, strconv.Itoa(arc))
	}

	return BaseOID + "." + strings.Join(suffix, "."), nil
}

// MustBuildOID is BuildOID for fixed payloads known to be valid.
func MustBuildOID(cmd Command, dynamicPayload ...int) string {
	oid, err := BuildOID(cmd, dynamicPayload)
	if err != nil {
		panic(err)
	}
	return oid
}

// CartridgeInfoOID returns the command OID for inspecting a specific ink slot.
func CartridgeInfoOID(slot byte) string {
	return MustBuildOID(CartridgeInfo, int(slot))
}
