package snmptest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"epsonconf/remote"

	"github.com/gosnmp/gosnmp"
)

// ErrTimeout is returned for cells marked as failing.
var ErrTimeout = errors.New("request timeout")

// WriteOp is one write accepted by a Device.
type WriteOp struct {
	Cell  int
	Value byte
}

// Device simulates the EEPROM behind the remote-mode channel. Requests
// with the wrong read key get an "NA" reply; writes with the wrong write key
// are acknowledged but not applied. Unset cells read as zero.
type Device struct {
	mu       sync.Mutex
	readKey  []byte
	writeKey []byte
	cells    map[int]byte
	failing  map[int]bool
	writes   []WriteOp
}

// NewDevice returns a device answering to the given keys.
func NewDevice(readKey, writeKey []byte) *Device {
	return &Device{
		readKey:  append([]byte(nil), readKey...),
		writeKey: append([]byte(nil), writeKey...),
		cells:    make(map[int]byte),
		failing:  make(map[int]bool),
	}
}

// Set stores v in cell.
func (d *Device) Set(cell int, v byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cells[cell] = v
}

// SetBytes stores consecutive values starting at cell.
func (d *Device) SetBytes(cell int, values []byte) {
	for i, v := range values {
		d.Set(cell+i, v)
	}
}

// Cell returns the stored value of cell.
func (d *Device) Cell(cell int) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cells[cell]
}

// Fail makes every request touching cell time out.
func (d *Device) Fail(cell int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing[cell] = true
}

// Writes returns the applied writes in order.
func (d *Device) Writes() []WriteOp {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]WriteOp(nil), d.writes...)
}

// Fake returns a transport routing EEPROM requests to the device. Other
// OIDs can be scripted on the returned fake.
func (d *Device) Fake() *Fake {
	f := New()
	f.SetHandler(d.Handle)
	return f
}

// Handle answers one OID.
func (d *Device) Handle(oid string) (gosnmp.SnmpPDU, error) {
	noSuch := gosnmp.SnmpPDU{Name: oid, Type: gosnmp.NoSuchObject}
	arcs, ok := eepromArcs(oid)
	if !ok {
		return noSuch, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if arcs[4] != int(d.readKey[0]) || arcs[5] != int(d.readKey[1]) {
		return reply(oid, "||:NA;"), nil
	}
	cell := arcs[10]*256 + arcs[9]
	if d.failing[cell] {
		return gosnmp.SnmpPDU{}, ErrTimeout
	}

	switch {
	case arcs[2] == 7 && len(arcs) == 11:
		return reply(oid, fmt.Sprintf("EE:%04X%02X;", cell, d.cells[cell])), nil
	case arcs[2] == 16 && len(arcs) == 20:
		if decodeKey(arcs[12:]) == string(d.writeKey) {
			d.cells[cell] = byte(arcs[11])
			d.writes = append(d.writes, WriteOp{Cell: cell, Value: byte(arcs[11])})
		}
		return reply(oid, "||:42:OK;"), nil
	}
	return noSuch, nil
}

func eepromArcs(oid string) ([]int, bool) {
	rest, ok := strings.CutPrefix(strings.TrimPrefix(oid, "."), remote.BaseOID+".")
	if !ok {
		return nil, false
	}
	parts := strings.Split(rest, ".")
	arcs := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, false
		}
		arcs[i] = n
	}
	if len(arcs) < 11 || arcs[0] != '|' || arcs[1] != '|' {
		return nil, false
	}
	return arcs, true
}

func decodeKey(arcs []int) string {
	b := make([]byte, len(arcs))
	for i, a := range arcs {
		if a > 0 {
			a--
		}
		b[i] = byte(a)
	}
	return string(b)
}

func reply(oid, body string) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{
		Name:  oid,
		Type:  gosnmp.OctetString,
		Value: remote.Frame([]byte("@BDC PS\r\n" + body)),
	}
}
