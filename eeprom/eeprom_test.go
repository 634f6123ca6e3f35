package eeprom

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"epsonconf/featureflags"
	"epsonconf/registry"
	"epsonconf/remote"
	"epsonconf/snmp/snmptest"
)

func testProfile() *registry.Profile {
	return &registry.Profile{
		Name:     "TEST-1",
		ReadKey:  []byte{16, 8},
		WriteKey: []byte("Wakatobi"),
	}
}

func readOID(t *testing.T, p *registry.Profile, cell int) string {
	t.Helper()
	oid, err := Codec{}.ReadAddress(cell, p)
	if err != nil {
		t.Fatalf("ReadAddress(%d) failed: %v", cell, err)
	}
	return oid
}

func writeOID(t *testing.T, p *registry.Profile, cell int, value byte) string {
	t.Helper()
	oid, err := Codec{}.WriteAddress(cell, value, p)
	if err != nil {
		t.Fatalf("WriteAddress(%d) failed: %v", cell, err)
	}
	return oid
}

func readReply(cell int, value byte) []byte {
	return remote.Frame([]byte(fmt.Sprintf("@BDC PS\r\nEE:%04X%02X;", cell, value)))
}

type memJournal struct {
	entries []JournalEntry
}

func (m *memJournal) Record(ctx context.Context, e JournalEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func TestSplitCell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cell    int
		want    Address
		wantErr bool
	}{
		{0, Address{0, 0}, false},
		{255, Address{255, 0}, false},
		{256, Address{0, 1}, false},
		{300, Address{44, 1}, false},
		{65535, Address{255, 255}, false},
		{65536, Address{}, true},
		{-1, Address{}, true},
	}
	for _, tt := range tests {
		tt := tt
		got, err := SplitCell(tt.cell)
		if tt.wantErr {
			var uerr *UsageError
			if !errors.As(err, &uerr) {
				t.Errorf("SplitCell(%d) expected *UsageError, got %v", tt.cell, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("SplitCell(%d) = %+v, %v; want %+v", tt.cell, got, err, tt.want)
		}
	}

	for cell := 0; cell <= MaxCell; cell++ {
		addr, err := SplitCell(cell)
		if err != nil || int(addr.LSB) != cell%256 || int(addr.MSB) != cell/256 {
			t.Fatalf("SplitCell(%d) = %+v, %v", cell, addr, err)
		}
	}
}

func TestReadAddressCell300(t *testing.T) {
	t.Parallel()

	want := remote.BaseOID + ".124.124.7.0.16.8.65.190.160.44.1"
	if got := readOID(t, testProfile(), 300); got != want {
		t.Fatalf("expected %s got %s", want, got)
	}
}

func TestWriteAddress(t *testing.T) {
	t.Parallel()

	want := remote.BaseOID + ".124.124.16.0.16.8.66.189.33.24.0.0.88.98.108.98.117.112.99.106"
	if got := writeOID(t, testProfile(), 24, 0); got != want {
		t.Fatalf("expected %s got %s", want, got)
	}
}

func TestWriteAddressDryRunRedirectsToRead(t *testing.T) {
	t.Parallel()

	p := testProfile()
	got, err := Codec{DryRun: true}.WriteAddress(300, 7, p)
	if err != nil {
		t.Fatalf("WriteAddress failed: %v", err)
	}
	if want := readOID(t, p, 300); got != want {
		t.Fatalf("dry-run should return read OID %s, got %s", want, got)
	}
}

func TestAddressRequiresKeys(t *testing.T) {
	t.Parallel()

	noKeys := &registry.Profile{Name: "Stub"}
	if _, err := (Codec{}).ReadAddress(1, noKeys); err == nil {
		t.Fatal("expected error without read key")
	} else {
		var cerr *ConfigError
		if !errors.As(err, &cerr) || cerr.Missing != "read_key" || cerr.Model != "Stub" {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	readOnly := &registry.Profile{Name: "RO", ReadKey: []byte{1, 2}}
	_, err := Codec{}.WriteAddress(1, 0, readOnly)
	var cerr *ConfigError
	if !errors.As(err, &cerr) || cerr.Missing != "write_key" {
		t.Fatalf("expected missing write_key, got %v", err)
	}
}

func TestKeywordCipherRoundTrip(t *testing.T) {
	t.Parallel()

	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	enc := EncodeKeyword(all)
	if enc[0] != 0 || enc[255] != 256 || enc[65] != 66 {
		t.Fatalf("unexpected cipher values: %d %d %d", enc[0], enc[255], enc[65])
	}
	if got := DecodeKeyword(enc); !bytes.Equal(got, all) {
		t.Fatal("round trip over all byte values failed")
	}

	for _, key := range []string{"Wakatobi", "Muscari.", "", "\x00\x01\xff"} {
		if got := DecodeKeyword(EncodeKeyword([]byte(key))); !bytes.Equal(got, []byte(key)) {
			t.Errorf("round trip failed for %q: %q", key, got)
		}
	}
}

func TestKeywordSequence(t *testing.T) {
	t.Parallel()

	if got := KeywordSequence([]byte("Wakatobi"), false); got != "88.98.108.98.117.112.99.106" {
		t.Errorf("decimal sequence = %s", got)
	}
	if got := KeywordSequence([]byte("Wakatobi"), true); got != "58.62.6C.62.75.70.63.6A" {
		t.Errorf("hex sequence = %s", got)
	}
}

func TestClientRead(t *testing.T) {
	t.Parallel()

	p := testProfile()
	fake := snmptest.New()
	fake.SetBytes(readOID(t, p, 300), readReply(300, 0x1F))
	fake.SetBytes(readOID(t, p, 301), readReply(45, 0x00))
	fake.SetError(readOID(t, p, 302), errors.New("request timeout"))
	fake.SetBytes(readOID(t, p, 303), []byte("@BDC PS\r\nEE:012F10;"))
	fake.SetBytes(readOID(t, p, 304), remote.Frame([]byte("@BDC PS\r\nNA;")))

	c, err := NewClient(fake, p, WithHost("10.0.0.5"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	ctx := context.Background()

	v, ok, err := c.Read(ctx, 300)
	if err != nil || !ok || v != 0x1F {
		t.Fatalf("Read(300) = %d, %v, %v", v, ok, err)
	}

	_, ok, err = c.Read(ctx, 301)
	var perr *ProtocolError
	if !errors.As(err, &perr) || ok {
		t.Fatalf("Read(301) expected protocol error, got ok=%v err=%v", ok, err)
	}
	if perr.Cell != 301 || perr.Echoed != 45 {
		t.Errorf("unexpected protocol error %+v", perr)
	}

	for _, cell := range []int{302, 303, 304, 305} {
		if _, ok, err := c.Read(ctx, cell); ok || err != nil {
			t.Errorf("Read(%d) should soft-fail, got ok=%v err=%v", cell, ok, err)
		}
	}
}

func TestReadManyFailClosed(t *testing.T) {
	t.Parallel()

	p := testProfile()
	fake := snmptest.New()
	fake.SetBytes(readOID(t, p, 10), readReply(10, 1))
	fake.SetError(readOID(t, p, 11), errors.New("request timeout"))
	fake.SetBytes(readOID(t, p, 12), readReply(12, 3))

	c, _ := NewClient(fake, p)
	values, ok, err := c.ReadMany(context.Background(), []int{10, 11, 12})
	if err != nil || ok || values != nil {
		t.Fatalf("ReadMany = %v, %v, %v; want nil, false, nil", values, ok, err)
	}
	for _, oid := range fake.Requests() {
		if oid == readOID(t, p, 12) {
			t.Fatal("cell 12 must not be read after cell 11 failed")
		}
	}

	c2, _ := NewClient(snmptestWith(t, p, map[int]byte{10: 1, 11: 2, 12: 3}), p)
	values, ok, err = c2.ReadMany(context.Background(), []int{12, 10, 11})
	if err != nil || !ok || !bytes.Equal(values, []byte{3, 1, 2}) {
		t.Fatalf("ReadMany = %v, %v, %v", values, ok, err)
	}
}

func snmptestWith(t *testing.T, p *registry.Profile, cells map[int]byte) *snmptest.Fake {
	t.Helper()
	fake := snmptest.New()
	for cell, v := range cells {
		fake.SetBytes(readOID(t, p, cell), readReply(cell, v))
	}
	return fake
}

func TestReadManyHonoursContext(t *testing.T) {
	t.Parallel()

	p := testProfile()
	c, _ := NewClient(snmptestWith(t, p, map[int]byte{1: 1}), p)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := c.ReadMany(ctx, []int{1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReadLabeled(t *testing.T) {
	t.Parallel()

	p := testProfile()
	fake := snmptest.New()
	fake.SetBytes(readOID(t, p, 24), readReply(99, 0))
	c, _ := NewClient(fake, p)

	_, _, err := c.ReadLabeled(context.Background(), "main_waste", []int{24})
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Label != "main_waste" {
		t.Fatalf("expected labeled protocol error, got %v", err)
	}
}

func TestDump(t *testing.T) {
	t.Parallel()

	p := testProfile()
	fake := snmptestWith(t, p, map[int]byte{0: 0xAA, 2: 0xCC})
	c, _ := NewClient(fake, p)

	dump, err := c.Dump(context.Background(), 0, 3)
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if len(dump) != 2 || dump[0] != 0xAA || dump[2] != 0xCC {
		t.Fatalf("unexpected dump %v", dump)
	}

	if _, err := c.Dump(context.Background(), 5, 1); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestClientWrite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply []byte
		want  bool
	}{
		{"ok", remote.Frame([]byte("||:42:OK;")), true},
		{"not available", remote.Frame([]byte("||:42:NA;")), false},
		{"garbage", remote.Frame([]byte("||:42:XX;")), false},
		{"unframed ok", []byte("||:42:OK;"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := testProfile()
			fake := snmptestWith(t, p, map[int]byte{24: 0x37})
			fake.SetBytes(writeOID(t, p, 24, 0), tt.reply)
			journal := &memJournal{}

			c, _ := NewClient(fake, p, WithJournal(journal), WithHost("printer"), WithBatch("b1"))
			ok, err := c.Write(context.Background(), 24, 0)
			if err != nil {
				t.Fatalf("Write error: %v", err)
			}
			if ok != tt.want {
				t.Fatalf("Write() = %v, want %v", ok, tt.want)
			}

			if len(journal.entries) != 1 {
				t.Fatalf("expected 1 journal entry, got %d", len(journal.entries))
			}
			e := journal.entries[0]
			if e.Cell != 24 || e.Value != 0 || e.OK != tt.want || e.DryRun || e.Host != "printer" || e.Batch != "b1" {
				t.Errorf("unexpected journal entry %+v", e)
			}
			if e.Previous == nil || *e.Previous != 0x37 {
				t.Errorf("expected previous value 0x37, got %v", e.Previous)
			}
		})
	}
}

func TestClientWriteRequiresWriteKey(t *testing.T) {
	t.Parallel()

	p := &registry.Profile{Name: "RO", ReadKey: []byte{1, 2}}
	c, _ := NewClient(snmptest.New(), p)
	_, err := c.Write(context.Background(), 1, 0)
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
}

func TestClientWriteDryRun(t *testing.T) {
	t.Parallel()

	p := testProfile()
	fake := snmptestWith(t, p, map[int]byte{24: 5})
	journal := &memJournal{}
	c, _ := NewClient(fake, p, WithDryRun(true), WithJournal(journal), WithReadBeforeWrite(false))

	ok, err := c.Write(context.Background(), 24, 0)
	if err != nil || !ok {
		t.Fatalf("dry-run write = %v, %v", ok, err)
	}
	sent := writeOID(t, p, 24, 0)
	for _, oid := range fake.Requests() {
		if oid == sent {
			t.Fatal("dry-run must not send the write OID")
		}
	}
	if len(journal.entries) != 1 || !journal.entries[0].DryRun || journal.entries[0].Previous != nil {
		t.Fatalf("unexpected journal %+v", journal.entries)
	}
}

// Not parallel: toggles the process-wide flag.
func TestClientWriteForcedDryRun(t *testing.T) {
	featureflags.SetForceDryRun(true)
	defer featureflags.SetForceDryRun(false)

	p := testProfile()
	fake := snmptestWith(t, p, map[int]byte{24: 5})
	c, _ := NewClient(fake, p)
	if !c.DryRun() {
		t.Fatal("forced dry-run should apply to every client")
	}
	ok, err := c.Write(context.Background(), 24, 0)
	if err != nil || !ok {
		t.Fatalf("forced dry-run write = %v, %v", ok, err)
	}
	sent := writeOID(t, p, 24, 0)
	for _, oid := range fake.Requests() {
		if oid == sent {
			t.Fatal("forced dry-run must not send the write OID")
		}
	}
}

func TestWriteMany(t *testing.T) {
	t.Parallel()

	p := testProfile()
	fake := snmptest.New()
	fake.SetBytes(writeOID(t, p, 24, 0), remote.Frame([]byte("||:42:OK;")))
	fake.SetBytes(writeOID(t, p, 25, 0), remote.Frame([]byte("||:42:NA;")))
	fake.SetBytes(writeOID(t, p, 26, 0), remote.Frame([]byte("||:42:OK;")))

	c, _ := NewClient(fake, p, WithReadBeforeWrite(false))
	ok, err := c.WriteMany(context.Background(), map[int]byte{26: 0, 24: 0, 25: 0})
	if err != nil || ok {
		t.Fatalf("WriteMany = %v, %v; want false", ok, err)
	}

	reqs := fake.Requests()
	if len(reqs) != 2 || reqs[0] != writeOID(t, p, 24, 0) || reqs[1] != writeOID(t, p, 25, 0) {
		t.Fatalf("unexpected request order %v", reqs)
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(snmptest.New(), nil); err == nil {
		t.Error("expected error for nil profile")
	}
	if _, err := NewClient(nil, testProfile()); err == nil {
		t.Error("expected error for nil transport")
	}
}
