package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"epsonconf/eeprom"
	"epsonconf/registry"
	"epsonconf/remote"
	"epsonconf/snmp/snmptest"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testReadKey  = []byte{25, 7}
	testWriteKey = []byte("Wakatobi")
)

func testProfile() *registry.Profile {
	return &registry.Profile{
		Name:                   "XP-TEST",
		ReadKey:                testReadKey,
		WriteKey:               testWriteKey,
		SerialNumber:           registry.Range(192, 202),
		PrinterHeadID:          registry.Multi(registry.Range(122, 124), registry.Indices(136)),
		WiFiMACAddress:         registry.Range(130, 136),
		LastPrinterFatalErrors: registry.Indices(60, 203),
		PowerOffTimer:          registry.Indices(12, 13),
		Stats: map[string]registry.CellGroup{
			"Manual cleaning counter":  registry.Indices(147),
			"Total print pass counter": registry.Indices(171, 170, 169, 168),
			FirstTIStat:                registry.Indices(173, 172),
		},
		Waste: map[string]registry.WasteGroup{
			"main_waste":       {Cells: registry.Indices(24, 25), Divider: 62.07},
			"borderless_waste": {Cells: registry.Indices(26, 27), Divider: 34.34},
		},
		InkReplacementCounters: map[string]map[string]int{
			"Black": {"1B": 242, "1S": 208},
		},
	}
}

func newTestPrinter(t *testing.T, p *registry.Profile, dev *snmptest.Device, opts ...eeprom.Option) (*Printer, *snmptest.Fake) {
	t.Helper()
	fake := dev.Fake()
	client, err := eeprom.NewClient(fake, p, opts...)
	require.NoError(t, err)
	return NewPrinter(client), fake
}

func framed(body string) []byte {
	return remote.Frame([]byte(body))
}

func TestWastePercent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100.0, WastePercent([]byte{0x3F, 0x18}, 62.07))
	assert.Equal(t, 0.0, WastePercent([]byte{0x00, 0x00}, 10))
	assert.Equal(t, 12.5, WastePercent([]byte{0x19}, 2))
	assert.Equal(t, 0.0, WastePercent([]byte{0x10}, 0))
}

func TestWasteInkLevels(t *testing.T) {
	t.Parallel()

	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	dev.SetBytes(24, []byte{0x3F, 0x18})
	p, _ := newTestPrinter(t, testProfile(), dev)

	levels, err := p.WasteInkLevels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, WasteReading{"main_waste": 100.0, "borderless_waste": 0}, levels)

	dev.Fail(26)
	levels, err = p.WasteInkLevels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, WasteReading{"main_waste": 100.0}, levels)
}

func TestWasteInkLevelsRequiresConfig(t *testing.T) {
	t.Parallel()

	prof := testProfile()
	prof.Waste = nil
	p, _ := newTestPrinter(t, prof, snmptest.NewDevice(testReadKey, testWriteKey))

	_, err := p.WasteInkLevels(context.Background())
	var cerr *eeprom.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "XP-TEST", cerr.Model)
}

func TestResetWasteInk(t *testing.T) {
	t.Parallel()

	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	dev.SetBytes(24, []byte{1, 2, 3, 4})
	p, _ := newTestPrinter(t, testProfile(), dev)

	ok, err := p.ResetWasteInk(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []snmptest.WriteOp{{Cell: 24, Value: 0}, {Cell: 25, Value: 0}, {Cell: 26, Value: 0}, {Cell: 27, Value: 0}}, dev.Writes())
}

func TestResetWasteInkRawValues(t *testing.T) {
	t.Parallel()

	prof := testProfile()
	prof.RawWasteReset = map[int]byte{48: 94, 24: 0, 25: 0}
	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	p, _ := newTestPrinter(t, prof, dev)

	ok, err := p.ResetWasteInk(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []snmptest.WriteOp{{Cell: 24, Value: 0}, {Cell: 25, Value: 0}, {Cell: 48, Value: 94}}, dev.Writes())
}

func TestResetWasteInkDryRun(t *testing.T) {
	t.Parallel()

	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	dev.SetBytes(24, []byte{1, 2})
	p, _ := newTestPrinter(t, testProfile(), dev, eeprom.WithDryRun(true))

	ok, err := p.ResetWasteInk(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, dev.Writes())
	assert.Equal(t, byte(1), dev.Cell(24))
}

func TestSerialNumber(t *testing.T) {
	t.Parallel()

	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	dev.SetBytes(192, []byte("X3AB012345"))
	p, _ := newTestPrinter(t, testProfile(), dev)

	serial, err := p.SerialNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "X3AB012345", serial)

	dev.Fail(195)
	serial, err = p.SerialNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "X3A?012345", serial)
}

func TestSerialNumberProtocolErrorIsLabelled(t *testing.T) {
	t.Parallel()

	prof := testProfile()
	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	p, fake := newTestPrinter(t, prof, dev)
	oid, err := eeprom.Codec{}.ReadAddress(192, prof)
	require.NoError(t, err)
	fake.SetBytes(oid, framed("@BDC PS\r\nEE:03E700;"))

	_, err = p.SerialNumber(context.Background())
	var perr *eeprom.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 192, perr.Cell)
	assert.Equal(t, 999, perr.Echoed)
	assert.Equal(t, registry.KeySerialNumber, perr.Label)
}

func TestWriteSerialNumber(t *testing.T) {
	t.Parallel()

	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	p, _ := newTestPrinter(t, testProfile(), dev)

	ok, err := p.WriteSerialNumber(context.Background(), "ABCD123456")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, byte('A'), dev.Cell(192))
	assert.Equal(t, byte('6'), dev.Cell(201))

	_, err = p.WriteSerialNumber(context.Background(), "SHORT")
	var uerr *eeprom.UsageError
	assert.ErrorAs(t, err, &uerr)
}

func TestTIDateCodec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		y, m, d int
		want    string
	}{
		{2023, 9, 21, "21 Sep 2023"},
		{2000, 1, 1, "01 Jan 2000"},
		{2016, 2, 29, "29 Feb 2016"},
		{2127, 12, 31, "31 Dec 2127"},
	}
	for _, tt := range tests {
		hi, lo, err := EncodeTIDate(tt.y, tt.m, tt.d)
		require.NoError(t, err)
		assert.Equal(t, tt.want, DecodeTIDate(int(hi)<<8|int(lo)))
	}

	hi, lo, err := EncodeTIDate(2023, 9, 21)
	require.NoError(t, err)
	assert.Equal(t, byte(0x2F), hi)
	assert.Equal(t, byte(0x35), lo)

	assert.Equal(t, "?", DecodeTIDate(0))
	assert.Equal(t, "?", DecodeTIDate(13*32))
	assert.Equal(t, "?", DecodeTIDate(2*32+30))

	for _, bad := range [][3]int{{2023, 2, 30}, {1999, 5, 5}, {2128, 1, 1}, {2023, 0, 1}} {
		_, _, err := EncodeTIDate(bad[0], bad[1], bad[2])
		assert.Error(t, err, "date %v", bad)
	}
}

func TestFirstTIReceivedTime(t *testing.T) {
	t.Parallel()

	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	dev.Set(173, 0x2F)
	dev.Set(172, 0x35)
	p, _ := newTestPrinter(t, testProfile(), dev)

	date, err := p.FirstTIReceivedTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "21 Sep 2023", date)

	dev.Set(173, 0)
	dev.Set(172, 0)
	date, err = p.FirstTIReceivedTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "?", date)

	dev.Fail(172)
	_, err = p.FirstTIReceivedTime(context.Background())
	assert.ErrorIs(t, err, ErrNoValue)
}

func TestWriteFirstTIReceivedTime(t *testing.T) {
	t.Parallel()

	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	p, _ := newTestPrinter(t, testProfile(), dev)

	ok, err := p.WriteFirstTIReceivedTime(context.Background(), 2023, 9, 21)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []snmptest.WriteOp{{Cell: 173, Value: 0x2F}, {Cell: 172, Value: 0x35}}, dev.Writes())
}

func TestParseFirmware(t *testing.T) {
	t.Parallel()

	fw, err := ParseFirmware(framed("@BDC PS\r\nvi:00:NA21N9;"))
	require.NoError(t, err)
	assert.Equal(t, Firmware{Version: "NA21N9", Date: "21 Sep 2023"}, fw)
	assert.Equal(t, "NA21N9 21 Sep 2023", fw.String())

	fw, err = ParseFirmware([]byte("vi:00:AAxxZZ"))
	require.NoError(t, err)
	assert.Equal(t, "?", fw.Date)

	fw, err = ParseFirmware([]byte("vi:00:AA31N2"))
	require.NoError(t, err)
	assert.Equal(t, "?", fw.Date, "31 February does not exist")

	_, err = ParseFirmware([]byte("garbage"))
	var derr *DecodeError
	assert.ErrorAs(t, err, &derr)
}

func TestFirmwareVersion(t *testing.T) {
	t.Parallel()

	p, fake := newTestPrinter(t, testProfile(), snmptest.NewDevice(testReadKey, testWriteKey))
	fake.SetBytes(remote.MustBuildOID(remote.Firmware), framed("@BDC PS\r\nvi:00:NA21N9;"))

	fw, err := p.FirmwareVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NA21N9", fw.Version)
	assert.Equal(t, remote.BaseOID+".118.105.1.0.0", fake.Requests()[0])
}

func TestParseCartridge(t *testing.T) {
	t.Parallel()

	c, err := ParseCartridge(framed("@BDC PS\r\nii:01;IC:1101;IQ:50;PY:23;PM:04;LOT:ABC123;MFG:EPSON;XX:1;"))
	require.NoError(t, err)
	assert.True(t, c.Available())
	assert.Equal(t, Cartridge{
		ColorCode:       0x1101,
		Color:           "Black",
		Quantity:        50,
		ProductionYear:  2023,
		ProductionMonth: 4,
		Lot:             "ABC123",
		Manufacturer:    "EPSON",
		Extra:           map[string]string{"XX": "1"},
	}, c)

	c, err = ParseCartridge([]byte("@BDC PS\r\nii:01;IC:1E01;PY:95;"))
	require.NoError(t, err)
	assert.Equal(t, "Orange", c.Color)
	assert.Equal(t, 1995, c.ProductionYear)

	c, err = ParseCartridge([]byte("@BDC PS\r\nii:01;IC:9999;"))
	require.NoError(t, err)
	assert.Equal(t, "Unknown 0x9999", c.Color)

	c, err = ParseCartridge(framed("@BDC PS\r\nii:NA;"))
	require.NoError(t, err)
	assert.Equal(t, CartridgeNotAvailable, c.Status)
	assert.False(t, c.Available())

	c, err = ParseCartridge(framed("@BDC PS\r\nii:03;"))
	require.NoError(t, err)
	assert.Equal(t, "Unknown 03", c.Status)

	for _, bad := range []string{"garbage", "@BDC PS\r\nxx:01;", "@BDC PS\r\nii:01;IQ:abc;", "@BDC PS\r\nii:01;PM:13;", "@BDC PS\r\nii:01;novalue;"} {
		_, err := ParseCartridge([]byte(bad))
		var derr *DecodeError
		assert.ErrorAs(t, err, &derr, "input %q", bad)
	}
}

func TestCartridges(t *testing.T) {
	t.Parallel()

	p, fake := newTestPrinter(t, testProfile(), snmptest.NewDevice(testReadKey, testWriteKey))
	fake.SetBytes(remote.MustBuildOID(remote.InstalledCartridges), framed("@BDC PS\r\nIA:00;Black, Cyan,Magenta ,Yellow;"))
	fake.SetBytes(remote.CartridgeInfoOID(1), framed("@BDC PS\r\nii:01;IC:1101;"))
	fake.SetBytes(remote.CartridgeInfoOID(2), framed("@BDC PS\r\nii:01;IC:1201;"))
	fake.SetBytes(remote.CartridgeInfoOID(4), framed("@BDC PS\r\nii:NA;"))

	names, err := p.InstalledCartridges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Black", "Cyan", "Magenta", "Yellow"}, names)

	carts, err := p.Cartridges(context.Background())
	require.NoError(t, err)
	require.Len(t, carts, 3)
	assert.Equal(t, 1, carts[0].Slot)
	assert.Equal(t, "Cyan", carts[1].Color)
	assert.Equal(t, 4, carts[2].Slot)
	assert.Equal(t, CartridgeNotAvailable, carts[2].Status)

	_, err = ParseInstalledCartridges([]byte("nothing here"))
	var derr *DecodeError
	assert.ErrorAs(t, err, &derr)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	p, fake := newTestPrinter(t, testProfile(), snmptest.NewDevice(testReadKey, testWriteKey))
	_, err := p.Status(context.Background())
	assert.ErrorIs(t, err, ErrNoValue)

	fake.SetBytes(remote.MustBuildOID(remote.Status), []byte("\x00@BDC ST2\r\n\x03\x00\x01\x01\x04"))
	report, err := p.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Ready)
	assert.Equal(t, "Idle (ready to print)", report.Status.Text)
}

func TestDeviceID(t *testing.T) {
	t.Parallel()

	p, fake := newTestPrinter(t, testProfile(), snmptest.NewDevice(testReadKey, testWriteKey))
	fake.SetBytes(remote.MustBuildOID(remote.DeviceID),
		framed("\x00\x2bMFG:EPSON;CMD:ESCPL2,BDC;MDL:XP-205 207 Series;CLS:PRINTER;DES:EPSON XP-205;SN:X3AB012345;"))

	id, err := p.DeviceID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EPSON", id["Manufacturer"])
	assert.Equal(t, "XP-205 207 Series", id["Model"])
	assert.Equal(t, "ESCPL2,BDC", id["Commands"])
	assert.Equal(t, "X3AB012345", id["SN"])
}

func TestStats(t *testing.T) {
	t.Parallel()

	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	dev.Set(147, 5)
	dev.Set(169, 1)
	dev.Set(168, 2)
	dev.Set(173, 0x2F)
	dev.Set(172, 0x35)
	p, _ := newTestPrinter(t, testProfile(), dev)

	stats, err := p.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"Manual cleaning counter":  uint64(5),
		"Total print pass counter": uint64(258),
		FirstTIStat:                "21 Sep 2023",
	}, stats)

	dev.Fail(170)
	stats, err = p.Stats(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, stats, "Total print pass counter")
	assert.Contains(t, stats, "Manual cleaning counter")
}

func TestEEPROMFields(t *testing.T) {
	t.Parallel()

	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	dev.SetBytes(122, []byte{0xAB, 0xCD})
	dev.Set(136, 0x01)
	dev.Set(60, 0x28)
	dev.Set(203, 0xF1)
	dev.Set(242, 3)
	dev.Set(208, 7)
	dev.SetBytes(130, []byte{0xAA, 0xBB, 0xCC, 0x01, 0x02, 0x03})
	dev.SetBytes(12, []byte{0x01, 0x0E})
	p, _ := newTestPrinter(t, testProfile(), dev)
	ctx := context.Background()

	head, err := p.PrinterHeadID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABCD - 01", head)

	errs, err := p.LastPrinterFatalErrors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"28", "F1"}, errs)

	counters, err := p.InkReplacementCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]int{"Black": {"1B": 3, "1S": 7}}, counters)

	mac, err := p.WiFiMACAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AA-BB-CC-01-02-03", mac)

	minutes, err := p.PowerOffTimer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 270, minutes)

	dev.Fail(136)
	head, err = p.PrinterHeadID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABCD - ??", head)
}

func TestEEPROMFieldWrites(t *testing.T) {
	t.Parallel()

	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	p, _ := newTestPrinter(t, testProfile(), dev)
	ctx := context.Background()

	ok, err := p.WritePowerOffTimer(ctx, 480)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, byte(0x01), dev.Cell(12))
	assert.Equal(t, byte(0xE0), dev.Cell(13))

	_, err = p.WritePowerOffTimer(ctx, 70000)
	var uerr *eeprom.UsageError
	assert.ErrorAs(t, err, &uerr)

	ok, err = p.WriteWiFiMACAddress(ctx, [6]byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.True(t, ok)
	mac, err := p.WiFiMACAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, "01-02-03-04-05-06", mac)
}

func TestMissingFieldsAreConfigErrors(t *testing.T) {
	t.Parallel()

	prof := &registry.Profile{Name: "BARE", ReadKey: testReadKey}
	p, _ := newTestPrinter(t, prof, snmptest.NewDevice(testReadKey, nil))
	ctx := context.Background()

	calls := map[string]func() error{
		"serial":   func() error { _, err := p.SerialNumber(ctx); return err },
		"head":     func() error { _, err := p.PrinterHeadID(ctx); return err },
		"errors":   func() error { _, err := p.LastPrinterFatalErrors(ctx); return err },
		"counters": func() error { _, err := p.InkReplacementCounters(ctx); return err },
		"mac":      func() error { _, err := p.WiFiMACAddress(ctx); return err },
		"timer":    func() error { _, err := p.PowerOffTimer(ctx); return err },
		"stats":    func() error { _, err := p.Stats(ctx); return err },
		"ti":       func() error { _, err := p.FirstTIReceivedTime(ctx); return err },
		"reset":    func() error { _, err := p.ResetWasteInk(ctx); return err },
	}
	for name, call := range calls {
		var cerr *eeprom.ConfigError
		assert.ErrorAs(t, call(), &cerr, name)
	}
}

func TestSysInfo(t *testing.T) {
	t.Parallel()

	p, fake := newTestPrinter(t, testProfile(), snmptest.NewDevice(testReadKey, testWriteKey))
	fake.SetBytes("1.3.6.1.2.1.25.3.2.1.3.1", []byte("EPSON XP-205 Series"))
	fake.SetBytes("1.3.6.1.2.1.1.1.0", []byte{'C', 'a', 'f', 0xE9})
	fake.SetPDU("1.3.6.1.2.1.1.3.0", gosnmp.SnmpPDU{Type: gosnmp.TimeTicks, Value: uint32(366100)})
	fake.SetBytes("1.3.6.1.2.1.2.2.1.6.1", []byte{0x00, 0x26, 0xAB, 0x01, 0x02, 0x03})

	info, err := p.SysInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"model":       "EPSON XP-205 Series",
		"descr":       "Café",
		"UpTime":      "01:01:01",
		"MAC Address": "00-26-AB-01-02-03",
	}, info)
}

func TestFormatUptime(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00:00:00", FormatUptime(0))
	assert.Equal(t, "23:59:59", FormatUptime(8639900))
	assert.Equal(t, "00:00:01", FormatUptime(8640100))
}

func TestBruteForceReadKey(t *testing.T) {
	t.Parallel()

	dev := snmptest.NewDevice([]byte{3, 1}, nil)
	key, ok, err := BruteForceReadKey(context.Background(), dev.Fake(), 0, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{3, 1}, key)

	_, ok, err = BruteForceReadKey(context.Background(), dev.Fake(), 0, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = BruteForceReadKey(context.Background(), dev.Fake(), 5, 5)
	var uerr *eeprom.UsageError
	assert.ErrorAs(t, err, &uerr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = BruteForceReadKey(ctx, dev.Fake(), 0, 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindSerialNumber(t *testing.T) {
	t.Parallel()

	dump := map[int]byte{10: 'x', 110: 0}
	for i, c := range []byte("X3AB012345") {
		dump[100+i] = c
	}
	serial, cell, ok := FindSerialNumber(dump)
	require.True(t, ok)
	assert.Equal(t, "X3AB012345", serial)
	assert.Equal(t, 100, cell)

	delete(dump, 104)
	_, _, ok = FindSerialNumber(dump)
	assert.False(t, ok)
}

func TestLocateSerialNumber(t *testing.T) {
	t.Parallel()

	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	dev.SetBytes(192, []byte("X3AB012345"))
	p, _ := newTestPrinter(t, testProfile(), dev)

	serial, cell, ok, err := p.LocateSerialNumber(context.Background(), 180, 210)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "X3AB012345", serial)
	assert.Equal(t, 192, cell)
}

func TestValidateWriteKey(t *testing.T) {
	t.Parallel()

	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	dev.Set(50, 7)
	p, _ := newTestPrinter(t, testProfile(), dev)

	ok, err := p.ValidateWriteKey(context.Background(), 50, 8)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, byte(7), dev.Cell(50))
	assert.Equal(t, []snmptest.WriteOp{{Cell: 50, Value: 8}, {Cell: 50, Value: 7}}, dev.Writes())

	_, err = p.ValidateWriteKey(context.Background(), 50, 7)
	var uerr *eeprom.UsageError
	assert.ErrorAs(t, err, &uerr)

	wrong := testProfile()
	wrong.WriteKey = []byte("Wrongkey")
	pw, _ := newTestPrinter(t, wrong, dev)
	ok, err = pw.ValidateWriteKey(context.Background(), 50, 8)
	require.NoError(t, err)
	assert.False(t, ok)

	pd, _ := newTestPrinter(t, testProfile(), dev, eeprom.WithDryRun(true))
	_, err = pd.ValidateWriteKey(context.Background(), 50, 8)
	assert.ErrorAs(t, err, &uerr)
}

func TestDetectWriteKey(t *testing.T) {
	t.Parallel()

	reg, err := registry.New(registry.RawTable{
		"MODEL-A": {"read_key": []any{25, 7}, "write_key": "Wrongkey"},
		"MODEL-B": {"read_key": []any{25, 7}, "write_key": "Wakatobi"},
		"MODEL-C": {"read_key": []any{1, 2}, "write_key": "Otherkey"},
	})
	require.NoError(t, err)

	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	dev.Set(50, 7)
	prof := testProfile()
	prof.WriteKey = nil
	p, _ := newTestPrinter(t, prof, dev)

	key, ok, err := p.DetectWriteKey(context.Background(), reg, 50, 8)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testWriteKey, key)
	assert.Equal(t, byte(7), dev.Cell(50))
}

func TestCollect(t *testing.T) {
	t.Parallel()

	prof := testProfile()
	dev := snmptest.NewDevice(testReadKey, testWriteKey)
	dev.SetBytes(24, []byte{0x3F, 0x18})
	p, fake := newTestPrinter(t, prof, dev)
	fake.SetBytes(remote.MustBuildOID(remote.Status), []byte("\x00@BDC ST2\r\n\x03\x00\x01\x01\x04"))
	oid, err := eeprom.Codec{}.ReadAddress(192, prof)
	require.NoError(t, err)
	fake.SetBytes(oid, framed("@BDC PS\r\nEE:03E700;"))

	fields, err := p.Collect(context.Background())
	require.NoError(t, err)

	queries := Queries()
	require.Len(t, fields, len(queries))
	byName := make(map[string]Field)
	for i, f := range fields {
		assert.Equal(t, queries[i].Name, f.Name)
		byName[f.Name] = f
	}

	assert.Contains(t, byName["serial_number"].Error, "serial_number")
	assert.Contains(t, byName["serial_number"].Error, "echoed address 999")

	fw := byName["firmware_version"]
	assert.Nil(t, fw.Value, "soft failure leaves the field empty")
	assert.Empty(t, fw.Error)

	waste, ok := byName["waste_ink_levels"].Value.(WasteReading)
	require.True(t, ok)
	assert.Equal(t, 100.0, waste["main_waste"])
	assert.NotNil(t, byName["printer_status"].Value)
}

func TestCollectCancelled(t *testing.T) {
	t.Parallel()

	p, _ := newTestPrinter(t, testProfile(), snmptest.NewDevice(testReadKey, testWriteKey))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Collect(ctx)
	assert.True(t, errors.Is(err, context.Canceled), fmt.Sprintf("got %v", err))
}
