package snmp

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/gosnmp/gosnmp"
)

var (
	// ErrNoSuchObject reports an absent OID on the agent.
	ErrNoSuchObject = errors.New("no such object")
	// ErrEmptyResponse reports a reply without variable bindings.
	ErrEmptyResponse = errors.New("empty SNMP response")
)

// FirstPDU returns the single variable binding of a GET reply, checking the
// packet-level error status.
func FirstPDU(pkt *gosnmp.SnmpPacket) (gosnmp.SnmpPDU, error) {
	if pkt == nil || len(pkt.Variables) == 0 {
		return gosnmp.SnmpPDU{}, ErrEmptyResponse
	}
	if pkt.Error != gosnmp.NoError {
		return gosnmp.SnmpPDU{}, fmt.Errorf("SNMP error status %s", pkt.Error)
	}
	return pkt.Variables[0], nil
}

// ValueBytes extracts the raw octets of an OctetString binding.
func ValueBytes(pdu gosnmp.SnmpPDU) ([]byte, error) {
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return nil, fmt.Errorf("%s: %w", pdu.Name, ErrNoSuchObject)
	case gosnmp.OctetString:
		switch v := pdu.Value.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	}
	return nil, fmt.Errorf("%s: unexpected value type %s", pdu.Name, pdu.Type)
}

// ValueInt extracts an integer-like binding (Integer, Counter, Gauge, TimeTicks).
func ValueInt(pdu gosnmp.SnmpPDU) (*big.Int, error) {
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return nil, fmt.Errorf("%s: %w", pdu.Name, ErrNoSuchObject)
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Counter64, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Uinteger32:
		return gosnmp.ToBigInt(pdu.Value), nil
	}
	return nil, fmt.Errorf("%s: unexpected value type %s", pdu.Name, pdu.Type)
}

// GetBytes performs one GET and returns the octets of its single binding.
func GetBytes(c Client, oid string) ([]byte, error) {
	pkt, err := c.Get([]string{oid})
	if err != nil {
		return nil, err
	}
	pdu, err := FirstPDU(pkt)
	if err != nil {
		return nil, err
	}
	return ValueBytes(pdu)
}

// Get performs one GET and returns its single binding.
func Get(c Client, oid string) (gosnmp.SnmpPDU, error) {
	pkt, err := c.Get([]string{oid})
	if err != nil {
		return gosnmp.SnmpPDU{}, err
	}
	return FirstPDU(pkt)
}
