package metrics

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"epsonconf/common/logger"
	"epsonconf/eeprom"
	"epsonconf/registry"
)

// FirstTIStat is the stats entry holding the packed first-use date.
const FirstTIStat = "First TI received time"

// ReadString reads a group cell by cell and maps each byte to a character.
// Failed cells become '?'.
func (p *Printer) ReadString(ctx context.Context, label string, group registry.CellGroup) (string, error) {
	cells := group.Cells()
	if len(cells) == 0 {
		return "", p.configError("read "+label, label)
	}
	var sb strings.Builder
	for _, cell := range cells {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		v, ok, err := p.client.Read(ctx, cell)
		if err != nil {
			return "", labelled(err, label)
		}
		if !ok {
			sb.WriteByte('?')
			continue
		}
		sb.WriteRune(rune(v))
	}
	return sb.String(), nil
}

// SerialNumber reads the serial_number cells.
func (p *Printer) SerialNumber(ctx context.Context) (string, error) {
	return p.ReadString(ctx, registry.KeySerialNumber, p.profile.SerialNumber)
}

// BrandName reads the brand_name cells.
func (p *Printer) BrandName(ctx context.Context) (string, error) {
	return p.ReadString(ctx, registry.KeyBrandName, p.profile.BrandName)
}

// ModelName reads the model_name cells.
func (p *Printer) ModelName(ctx context.Context) (string, error) {
	return p.ReadString(ctx, registry.KeyModelName, p.profile.ModelName)
}

// PrinterHeadID renders each sub-group of printer_head_id as hex, joined
// with " - ". Failed cells render as "??".
func (p *Printer) PrinterHeadID(ctx context.Context) (string, error) {
	group := p.profile.PrinterHeadID
	if group.IsEmpty() {
		return "", p.configError("printer head id", registry.KeyPrinterHeadID)
	}
	parts := []registry.CellGroup{group}
	if group.Kind == registry.KindMulti {
		parts = group.Groups
	}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		hex, err := p.readHex(ctx, registry.KeyPrinterHeadID, part.Cells(), "??")
		if err != nil {
			return "", err
		}
		out = append(out, strings.Join(hex, ""))
	}
	return strings.Join(out, " - "), nil
}

// LastPrinterFatalErrors returns the recorded fatal error codes as hex.
func (p *Printer) LastPrinterFatalErrors(ctx context.Context) ([]string, error) {
	cells := p.profile.LastPrinterFatalErrors.Cells()
	if len(cells) == 0 {
		return nil, p.configError("last printer fatal errors", registry.KeyLastPrinterFatalErrors)
	}
	return p.readHex(ctx, registry.KeyLastPrinterFatalErrors, cells, "?")
}

func (p *Printer) readHex(ctx context.Context, label string, cells []int, missing string) ([]string, error) {
	out := make([]string, 0, len(cells))
	for _, cell := range cells {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, ok, err := p.client.Read(ctx, cell)
		if err != nil {
			return nil, labelled(err, label)
		}
		if !ok {
			out = append(out, missing)
			continue
		}
		out = append(out, fmt.Sprintf("%02X", v))
	}
	return out, nil
}

// InkReplacementCounters reads each configured counter. Counters that fail
// to read are left out.
func (p *Printer) InkReplacementCounters(ctx context.Context) (map[string]map[string]int, error) {
	if len(p.profile.InkReplacementCounters) == 0 {
		return nil, p.configError("ink replacement counters", registry.KeyInkReplacementCounters)
	}
	out := make(map[string]map[string]int)
	for _, color := range sortedKeys(p.profile.InkReplacementCounters) {
		counters := p.profile.InkReplacementCounters[color]
		for _, name := range sortedKeys(counters) {
			v, ok, err := p.client.Read(ctx, counters[name])
			if err != nil {
				return nil, labelled(err, color+"/"+name)
			}
			if !ok {
				continue
			}
			if out[color] == nil {
				out[color] = make(map[string]int)
			}
			out[color][name] = int(v)
		}
	}
	return out, nil
}

// WiFiMACAddress reads the six MAC cells as AA-BB-CC-DD-EE-FF.
func (p *Printer) WiFiMACAddress(ctx context.Context) (string, error) {
	cells := p.profile.WiFiMACAddress.Cells()
	if len(cells) == 0 {
		return "", p.configError("wifi mac address", registry.KeyWiFiMACAddress)
	}
	raw, err := p.readAll(ctx, registry.KeyWiFiMACAddress, cells)
	if err != nil {
		return "", err
	}
	return FormatMAC(raw), nil
}

// WriteWiFiMACAddress stores mac in the MAC cells.
func (p *Printer) WriteWiFiMACAddress(ctx context.Context, mac [6]byte) (bool, error) {
	cells := p.profile.WiFiMACAddress.Cells()
	if len(cells) != len(mac) {
		return false, p.configError("write wifi mac address", registry.KeyWiFiMACAddress)
	}
	return p.writeSequence(ctx, cells, mac[:])
}

// FormatMAC renders bytes as upper-case hex pairs joined by '-'.
func FormatMAC(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, "-")
}

// PowerOffTimer reads the power-off delay in minutes, most significant cell
// first.
func (p *Printer) PowerOffTimer(ctx context.Context) (int, error) {
	cells := p.profile.PowerOffTimer.Cells()
	if len(cells) == 0 {
		return 0, p.configError("power off timer", registry.KeyPowerOffTimer)
	}
	raw, err := p.readAll(ctx, registry.KeyPowerOffTimer, cells)
	if err != nil {
		return 0, err
	}
	return int(bigEndian(raw).Int64()), nil
}

// WritePowerOffTimer stores minutes across the timer cells, most
// significant first.
func (p *Printer) WritePowerOffTimer(ctx context.Context, minutes int) (bool, error) {
	cells := p.profile.PowerOffTimer.Cells()
	if len(cells) == 0 {
		return false, p.configError("write power off timer", registry.KeyPowerOffTimer)
	}
	if minutes < 0 || (len(cells) < 8 && minutes >= 1<<(8*len(cells))) {
		return false, &eeprom.UsageError{Msg: fmt.Sprintf("power off timer %d does not fit in %d cells", minutes, len(cells))}
	}
	values := make([]byte, len(cells))
	for i := len(values) - 1; i >= 0; i-- {
		values[i] = byte(minutes)
		minutes >>= 8
	}
	return p.writeSequence(ctx, cells, values)
}

// Stats reads every stats entry as a big-endian integer. The first-use
// date is rendered as a date. Entries that fail to read are left out.
func (p *Printer) Stats(ctx context.Context) (map[string]any, error) {
	if len(p.profile.Stats) == 0 {
		return nil, p.configError("stats", registry.KeyStats)
	}
	out := make(map[string]any, len(p.profile.Stats))
	for _, name := range sortedKeys(p.profile.Stats) {
		raw, ok, err := p.client.ReadLabeled(ctx, name, p.profile.Stats[name].Cells())
		if err != nil {
			return nil, err
		}
		if !ok || len(raw) == 0 {
			continue
		}
		n := bigEndian(raw)
		switch {
		case name == FirstTIStat:
			out[name] = DecodeTIDate(int(n.Int64()))
		case n.IsUint64():
			out[name] = n.Uint64()
		default:
			out[name] = n.String()
		}
	}
	return out, nil
}

// FirstTIReceivedTime decodes the first-use date, or "?" when invalid.
func (p *Printer) FirstTIReceivedTime(ctx context.Context) (string, error) {
	group, ok := p.profile.Stats[FirstTIStat]
	if !ok || group.IsEmpty() {
		return "", p.configError("first TI received time", "stats."+FirstTIStat)
	}
	raw, err := p.readAll(ctx, FirstTIStat, group.Cells())
	if err != nil {
		return "", err
	}
	return DecodeTIDate(int(bigEndian(raw).Int64())), nil
}

// WriteFirstTIReceivedTime stores a date in the first-use cells.
func (p *Printer) WriteFirstTIReceivedTime(ctx context.Context, year, month, day int) (bool, error) {
	group, ok := p.profile.Stats[FirstTIStat]
	cells := group.Cells()
	if !ok || len(cells) != 2 {
		return false, p.configError("write first TI received time", "stats."+FirstTIStat)
	}
	hi, lo, err := EncodeTIDate(year, month, day)
	if err != nil {
		return false, err
	}
	return p.writeSequence(ctx, cells, []byte{hi, lo})
}

// WriteSerialNumber stores s in the serial number cells. The length must
// match the number of cells.
func (p *Printer) WriteSerialNumber(ctx context.Context, s string) (bool, error) {
	cells := p.profile.SerialNumber.Cells()
	if len(cells) == 0 {
		return false, p.configError("write serial number", registry.KeySerialNumber)
	}
	if len(s) != len(cells) {
		return false, &eeprom.UsageError{Msg: fmt.Sprintf("serial number must be %d characters, got %d", len(cells), len(s))}
	}
	return p.writeSequence(ctx, cells, []byte(s))
}

// readAll is a fail-closed batch read; a soft failure yields ErrNoValue.
func (p *Printer) readAll(ctx context.Context, label string, cells []int) ([]byte, error) {
	raw, ok, err := p.client.ReadLabeled(ctx, label, cells)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", label, ErrNoValue)
	}
	return raw, nil
}

// writeSequence writes values to cells in the given order, stopping at the
// first failure.
func (p *Printer) writeSequence(ctx context.Context, cells []int, values []byte) (bool, error) {
	for i, cell := range cells {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ok, err := p.client.Write(ctx, cell, values[i])
		if err != nil {
			return false, err
		}
		if !ok {
			if logger.Global != nil {
				logger.Global.Warn("Write sequence stopped", "host", p.client.Host(), "cell", cell, "written", i)
			}
			return false, nil
		}
	}
	return true, nil
}

func bigEndian(raw []byte) *big.Int {
	return new(big.Int).SetBytes(raw)
}

// labelled attaches a field label to protocol errors.
func labelled(err error, label string) error {
	if perr, ok := err.(*eeprom.ProtocolError); ok && perr.Label == "" {
		c := *perr
		c.Label = label
		return &c
	}
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
