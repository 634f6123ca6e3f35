package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// WasteGroup is a waste-ink counter: its cells (most significant last, as
// stored in EEPROM) and the calibration divider converting it to percent.
type WasteGroup struct {
	Cells   CellGroup `json:"oids"`
	Divider float64   `json:"divider"`
}

// Profile is a resolved, typed model descriptor.
type Profile struct {
	Name                   string                    `json:"name"`
	ReadKey                []byte                    `json:"read_key,omitempty"`
	WriteKey               []byte                    `json:"-"`
	SerialNumber           CellGroup                 `json:"serial_number"`
	PrinterHeadID          CellGroup                 `json:"printer_head_id"`
	WiFiMACAddress         CellGroup                 `json:"wifi_mac_address"`
	LastPrinterFatalErrors CellGroup                 `json:"last_printer_fatal_errors"`
	PowerOffTimer          CellGroup                 `json:"power_off_timer"`
	BrandName              CellGroup                 `json:"brand_name"`
	ModelName              CellGroup                 `json:"model_name"`
	Stats                  map[string]CellGroup      `json:"stats,omitempty"`
	Waste                  map[string]WasteGroup     `json:"waste,omitempty"`
	RawWasteReset          map[int]byte              `json:"raw_waste_reset,omitempty"`
	InkReplacementCounters map[string]map[string]int `json:"ink_replacement_counters,omitempty"`
	Extra                  map[string]any            `json:"extra,omitempty"`
}

// HasReadKey reports whether the profile can address EEPROM at all.
func (p *Profile) HasReadKey() bool {
	return p != nil && len(p.ReadKey) == 2
}

// HasWriteKey reports whether the profile can issue writes.
func (p *Profile) HasWriteKey() bool {
	return p != nil && len(p.WriteKey) > 0
}

// WasteNames returns the configured waste group names in sorted order.
func (p *Profile) WasteNames() []string {
	names := make([]string, 0, len(p.Waste))
	for name := range p.Waste {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WasteCells returns every waste counter cell, group by group.
func (p *Profile) WasteCells() []int {
	var cells []int
	for _, name := range p.WasteNames() {
		cells = append(cells, p.Waste[name].Cells.Cells()...)
	}
	return cells
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := &Profile{
		Name:                   p.Name,
		ReadKey:                append([]byte(nil), p.ReadKey...),
		WriteKey:               append([]byte(nil), p.WriteKey...),
		SerialNumber:           p.SerialNumber.Clone(),
		PrinterHeadID:          p.PrinterHeadID.Clone(),
		WiFiMACAddress:         p.WiFiMACAddress.Clone(),
		LastPrinterFatalErrors: p.LastPrinterFatalErrors.Clone(),
		PowerOffTimer:          p.PowerOffTimer.Clone(),
		BrandName:              p.BrandName.Clone(),
		ModelName:              p.ModelName.Clone(),
	}
	if len(p.ReadKey) == 0 {
		out.ReadKey = nil
	}
	if len(p.WriteKey) == 0 {
		out.WriteKey = nil
	}
	if p.Stats != nil {
		out.Stats = make(map[string]CellGroup, len(p.Stats))
		for k, g := range p.Stats {
			out.Stats[k] = g.Clone()
		}
	}
	if p.Waste != nil {
		out.Waste = make(map[string]WasteGroup, len(p.Waste))
		for k, w := range p.Waste {
			out.Waste[k] = WasteGroup{Cells: w.Cells.Clone(), Divider: w.Divider}
		}
	}
	if p.RawWasteReset != nil {
		out.RawWasteReset = make(map[int]byte, len(p.RawWasteReset))
		for k, v := range p.RawWasteReset {
			out.RawWasteReset[k] = v
		}
	}
	if p.InkReplacementCounters != nil {
		out.InkReplacementCounters = make(map[string]map[string]int, len(p.InkReplacementCounters))
		for color, counters := range p.InkReplacementCounters {
			inner := make(map[string]int, len(counters))
			for k, v := range counters {
				inner[k] = v
			}
			out.InkReplacementCounters[color] = inner
		}
	}
	if p.Extra != nil {
		out.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = deepCopy(v)
		}
	}
	return out
}

func isWasteKey(key string) bool {
	return strings.HasSuffix(key, "_waste")
}

// compile converts a raw (already expanded) descriptor into a Profile.
// Malformed fields are reported and left unset.
func compile(name string, raw RawProfile) (*Profile, []Issue) {
	p := &Profile{Name: name}
	var issues []Issue
	bad := func(key string, err error) {
		issues = append(issues, Issue{
			Kind:    IssueMalformedField,
			Model:   name,
			Ref:     key,
			Message: fmt.Sprintf("%s: %v", key, err),
		})
	}

	for key, value := range raw {
		var err error
		switch {
		case key == KeyAlias || key == KeySameAs || key == keySameAsDashed:
			// relations only; never part of a resolved profile
		case key == KeyReadKey:
			p.ReadKey, err = parseReadKey(value)
		case key == KeyWriteKey:
			p.WriteKey, err = parseWriteKey(value)
		case key == KeySerialNumber:
			p.SerialNumber, err = parseCellGroup(value)
		case key == KeyPrinterHeadID:
			p.PrinterHeadID, err = parseCellGroup(value)
		case key == KeyWiFiMACAddress:
			p.WiFiMACAddress, err = parseCellGroup(value)
		case key == KeyLastPrinterFatalErrors:
			p.LastPrinterFatalErrors, err = parseCellGroup(value)
		case key == KeyPowerOffTimer:
			p.PowerOffTimer, err = parseCellGroup(value)
		case key == KeyBrandName:
			p.BrandName, err = parseCellGroup(value)
		case key == KeyModelName:
			p.ModelName, err = parseCellGroup(value)
		case key == KeyStats:
			p.Stats, err = parseStats(value)
		case key == KeyRawWasteReset:
			p.RawWasteReset, err = parseRawWasteReset(value)
		case key == KeyInkReplacementCounters:
			p.InkReplacementCounters, err = parseInkCounters(value)
		case isWasteKey(key):
			var w WasteGroup
			w, err = parseWasteGroup(value)
			if err == nil {
				if p.Waste == nil {
					p.Waste = make(map[string]WasteGroup)
				}
				p.Waste[key] = w
			}
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]any)
			}
			p.Extra[key] = deepCopy(value)
		}
		if err != nil {
			bad(key, err)
		}
	}

	sort.Slice(issues, func(i, j int) bool { return issues[i].Ref < issues[j].Ref })
	return p, issues
}

func parseReadKey(v any) ([]byte, error) {
	list, ok := asList(v)
	if !ok || len(list) != 2 {
		return nil, fmt.Errorf("expected two bytes")
	}
	key := make([]byte, 2)
	for i, item := range list {
		n, ok := toInt(item)
		if !ok || n < 0 || n > 255 {
			return nil, fmt.Errorf("byte %d out of range: %v", i, item)
		}
		key[i] = byte(n)
	}
	return key, nil
}

func parseWriteKey(v any) ([]byte, error) {
	if s, ok := v.(string); ok {
		if s == "" {
			return nil, fmt.Errorf("empty keyword")
		}
		return []byte(s), nil
	}
	list, ok := asList(v)
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("expected keyword string or byte list")
	}
	key := make([]byte, len(list))
	for i, item := range list {
		n, ok := toInt(item)
		if !ok || n < 0 || n > 255 {
			return nil, fmt.Errorf("byte %d out of range: %v", i, item)
		}
		key[i] = byte(n)
	}
	return key, nil
}

func parseStats(v any) (map[string]CellGroup, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, fmt.Errorf("expected table")
	}
	out := make(map[string]CellGroup, len(m))
	for name, raw := range m {
		g, err := parseCellGroup(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = g
	}
	return out, nil
}

func parseWasteGroup(v any) (WasteGroup, error) {
	m, ok := asMap(v)
	if !ok {
		return WasteGroup{}, fmt.Errorf("expected {oids, divider}")
	}
	cells, err := parseCellGroup(m[KeyOIDs])
	if err != nil {
		return WasteGroup{}, fmt.Errorf("oids: %w", err)
	}
	divider, ok := toFloat(m[KeyDivider])
	if !ok || divider <= 0 {
		return WasteGroup{}, fmt.Errorf("divider must be a positive number")
	}
	return WasteGroup{Cells: cells, Divider: divider}, nil
}

func parseRawWasteReset(v any) (map[int]byte, error) {
	var out map[int]byte
	put := func(k string, raw any) error {
		cell, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || cell < 0 {
			return fmt.Errorf("invalid cell %q", k)
		}
		n, ok := toInt(raw)
		if !ok || n < 0 || n > 255 {
			return fmt.Errorf("cell %d: value out of range: %v", cell, raw)
		}
		if out == nil {
			out = make(map[int]byte)
		}
		out[cell] = byte(n)
		return nil
	}

	switch m := v.(type) {
	case map[int]int:
		for cell, n := range m {
			if err := put(strconv.Itoa(cell), n); err != nil {
				return nil, err
			}
		}
		return out, nil
	case map[int]any:
		for cell, n := range m {
			if err := put(strconv.Itoa(cell), n); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	m, ok := asMap(v)
	if !ok {
		return nil, fmt.Errorf("expected cell -> value table")
	}
	for k, raw := range m {
		if err := put(k, raw); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseInkCounters(v any) (map[string]map[string]int, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, fmt.Errorf("expected color table")
	}
	out := make(map[string]map[string]int, len(m))
	for color, raw := range m {
		counters, ok := asMap(raw)
		if !ok {
			return nil, fmt.Errorf("%s: expected counter table", color)
		}
		inner := make(map[string]int, len(counters))
		for name, cellValue := range counters {
			cell, ok := toInt(cellValue)
			if !ok || cell < 0 {
				return nil, fmt.Errorf("%s.%s: invalid cell %v", color, name, cellValue)
			}
			inner[name] = cell
		}
		out[color] = inner
	}
	return out, nil
}
