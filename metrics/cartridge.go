package metrics

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"epsonconf/common/logger"
	"epsonconf/remote"
)

const cartridgeMarker = "@BDC PS\r\n"

// Cartridge sentinels.
const (
	CartridgeNotAvailable = "Not available"
)

var cartridgeColors = map[int]string{
	0x1101: "Black",
	0x1140: "Black",
	0x1201: "Cyan",
	0x1301: "Magenta",
	0x1401: "Yellow",
	0x1501: "Light Cyan",
	0x1601: "Light Magenta",
	0x1701: "Dark Yellow",
	0x1801: "Grey",
	0x1901: "Light Black",
	0x1A01: "Red",
	0x1B01: "Blue",
	0x1C01: "Gloss Optimizer",
	0x1D01: "Light Grey",
	0x1E01: "Orange",
}

// Cartridge is the telemetry of one ink slot. Status is empty when the
// record was decoded, otherwise it holds a sentinel.
type Cartridge struct {
	Slot            int               `json:"slot"`
	Status          string            `json:"status,omitempty"`
	ColorCode       int               `json:"color_code,omitempty"`
	Color           string            `json:"color,omitempty"`
	Quantity        int               `json:"quantity,omitempty"`
	ProductionYear  int               `json:"production_year,omitempty"`
	ProductionMonth int               `json:"production_month,omitempty"`
	Lot             string            `json:"lot,omitempty"`
	Manufacturer    string            `json:"manufacturer,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// Available reports whether the record carries telemetry.
func (c Cartridge) Available() bool { return c.Status == "" }

// ParseCartridge decodes an "ii" reply:
//
//	@BDC PS\r\nii:01;IC:1101;IQ:50;PY:23;PM:04;LOT:ABC;MFG:EPSON;
//
// "ii:NA" yields the "Not available" sentinel and any other status code
// other than 01 yields "Unknown <code>".
func ParseCartridge(resp []byte) (Cartridge, error) {
	idx := bytes.Index(resp, []byte(cartridgeMarker))
	if idx < 0 {
		return Cartridge{}, &DecodeError{Field: "cartridge", Reason: "no @BDC PS marker", Input: string(resp)}
	}
	body := strings.TrimRight(string(resp[idx+len(cartridgeMarker):]), "\x00\x0c\r\n")
	fields := strings.Split(body, ";")

	key, code, ok := strings.Cut(strings.TrimSpace(fields[0]), ":")
	if !ok || key != "ii" {
		return Cartridge{}, &DecodeError{Field: "cartridge", Reason: "no ii status", Input: body}
	}
	switch code {
	case "01":
	case "NA":
		return Cartridge{Status: CartridgeNotAvailable}, nil
	default:
		return Cartridge{Status: "Unknown " + code}, nil
	}

	var c Cartridge
	for _, field := range fields[1:] {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		k, v, ok := strings.Cut(field, ":")
		if !ok {
			return Cartridge{}, &DecodeError{Field: "cartridge", Reason: fmt.Sprintf("malformed pair %q", field), Input: body}
		}
		if err := c.set(k, v); err != nil {
			return Cartridge{}, &DecodeError{Field: "cartridge", Reason: err.Error(), Input: body}
		}
	}
	return c, nil
}

func (c *Cartridge) set(key, value string) error {
	switch key {
	case "IC":
		n, err := strconv.ParseInt(value, 16, 32)
		if err != nil {
			return fmt.Errorf("bad color code %q", value)
		}
		c.ColorCode = int(n)
		if name, ok := cartridgeColors[c.ColorCode]; ok {
			c.Color = name
		} else {
			c.Color = fmt.Sprintf("Unknown 0x%04X", n)
		}
	case "IQ":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("bad quantity %q", value)
		}
		c.Quantity = n
	case "PY":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 99 {
			return fmt.Errorf("bad production year %q", value)
		}
		if n > 80 {
			c.ProductionYear = 1900 + n
		} else {
			c.ProductionYear = 2000 + n
		}
	case "PM":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 12 {
			return fmt.Errorf("bad production month %q", value)
		}
		c.ProductionMonth = n
	case "LOT":
		c.Lot = value
	case "MFG":
		c.Manufacturer = value
	default:
		if c.Extra == nil {
			c.Extra = make(map[string]string)
		}
		c.Extra[key] = value
	}
	return nil
}

var installedPattern = regexp.MustCompile(`(?s)IA:00;(.*);`)

// ParseInstalledCartridges decodes an "ia" reply into cartridge names.
func ParseInstalledCartridges(resp []byte) ([]string, error) {
	m := installedPattern.FindSubmatch(resp)
	if m == nil {
		return nil, &DecodeError{Field: "installed cartridges", Reason: "no IA:00 marker", Input: string(resp)}
	}
	var names []string
	for _, name := range strings.Split(string(m[1]), ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// InstalledCartridges lists installed cartridge names.
func (p *Printer) InstalledCartridges(ctx context.Context) ([]string, error) {
	resp, err := p.remoteQuery(remote.InstalledCartridges)
	if err != nil {
		return nil, err
	}
	return ParseInstalledCartridges(resp)
}

// CartridgeInfo inspects one slot (1-based).
func (p *Printer) CartridgeInfo(ctx context.Context, slot int) (Cartridge, error) {
	if slot < 1 || slot > 0xFF {
		return Cartridge{}, fmt.Errorf("invalid cartridge slot %d", slot)
	}
	resp, err := p.remoteQuery(remote.CartridgeInfo, slot)
	if err != nil {
		return Cartridge{}, err
	}
	c, err := ParseCartridge(resp)
	if err != nil {
		return Cartridge{}, err
	}
	c.Slot = slot
	return c, nil
}

// Cartridges inspects one slot per installed cartridge. Slots that cannot
// be read or decoded are skipped.
func (p *Printer) Cartridges(ctx context.Context) ([]Cartridge, error) {
	names, err := p.InstalledCartridges(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Cartridge, 0, len(names))
	for slot := 1; slot <= len(names); slot++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := p.CartridgeInfo(ctx, slot)
		if err != nil {
			if logger.Global != nil {
				logger.Global.Warn("Cartridge slot unavailable", "host", p.client.Host(), "slot", slot, "error", err)
			}
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
