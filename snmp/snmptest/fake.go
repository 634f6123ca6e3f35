// Package snmptest provides an in-memory snmp.Client serving canned replies.
package snmptest

import (
	"sync"

	"github.com/gosnmp/gosnmp"
)

// Handler computes a reply for an OID not found in the canned tables.
type Handler func(oid string) (gosnmp.SnmpPDU, error)

// Fake is a scripted transport. The zero value answers every OID with
// NoSuchObject.
type Fake struct {
	mu       sync.Mutex
	replies  map[string]gosnmp.SnmpPDU
	errs     map[string]error
	handler  Handler
	requests []string
	closed   bool
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{}
}

// SetBytes answers oid with an OctetString.
func (f *Fake) SetBytes(oid string, data []byte) {
	f.SetPDU(oid, gosnmp.SnmpPDU{Name: oid, Type: gosnmp.OctetString, Value: append([]byte(nil), data...)})
}

// SetPDU answers oid with an arbitrary binding.
func (f *Fake) SetPDU(oid string, pdu gosnmp.SnmpPDU) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replies == nil {
		f.replies = make(map[string]gosnmp.SnmpPDU)
	}
	if pdu.Name == "" {
		pdu.Name = oid
	}
	f.replies[oid] = pdu
}

// SetError makes requests for oid fail at the transport level.
func (f *Fake) SetError(oid string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	f.errs[oid] = err
}

// SetHandler installs a fallback for OIDs without a canned reply.
func (f *Fake) SetHandler(h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

// Get implements snmp.Client.
func (f *Fake) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	f.mu.Lock()
	f.requests = append(f.requests, oids...)
	handler := f.handler
	pkt := &gosnmp.SnmpPacket{}
	for _, oid := range oids {
		if err, ok := f.errs[oid]; ok {
			f.mu.Unlock()
			return nil, err
		}
		if pdu, ok := f.replies[oid]; ok {
			pkt.Variables = append(pkt.Variables, pdu)
			continue
		}
		if handler != nil {
			f.mu.Unlock()
			pdu, err := handler(oid)
			f.mu.Lock()
			if err != nil {
				f.mu.Unlock()
				return nil, err
			}
			pkt.Variables = append(pkt.Variables, pdu)
			continue
		}
		pkt.Variables = append(pkt.Variables, gosnmp.SnmpPDU{Name: oid, Type: gosnmp.NoSuchObject})
	}
	f.mu.Unlock()
	return pkt, nil
}

// Close implements snmp.Client.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Requests returns every OID requested so far, in order.
func (f *Fake) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// Reset forgets recorded requests.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = nil
}
