// Package registry holds the per-model capability table: protocol keys and
// EEPROM cell maps, with alias and same-as resolution.
package registry

import (
	"fmt"
	"math"
	"sort"
)

// Descriptor keys recognized in a raw profile.
const (
	KeyAlias                  = "alias"
	KeySameAs                 = "same_as"
	keySameAsDashed           = "same-as"
	KeyReadKey                = "read_key"
	KeyWriteKey               = "write_key"
	KeySerialNumber           = "serial_number"
	KeyPrinterHeadID          = "printer_head_id"
	KeyWiFiMACAddress         = "wifi_mac_address"
	KeyLastPrinterFatalErrors = "last_printer_fatal_errors"
	KeyPowerOffTimer          = "power_off_timer"
	KeyBrandName              = "brand_name"
	KeyModelName              = "model_name"
	KeyStats                  = "stats"
	KeyRawWasteReset          = "raw_waste_reset"
	KeyInkReplacementCounters = "ink_replacement_counters"
	KeyOIDs                   = "oids"
	KeyDivider                = "divider"
	KeyRange                  = "range"
)

// RawProfile is one model descriptor as loaded from Go literals, TOML or YAML.
type RawProfile map[string]any

// RawTable maps model names to raw descriptors.
type RawTable map[string]RawProfile

// Clone returns a deep copy of the table.
func (t RawTable) Clone() RawTable {
	if t == nil {
		return nil
	}
	out := make(RawTable, len(t))
	for name, p := range t {
		out[name] = p.Clone()
	}
	return out
}

// Names returns the model names in sorted order.
func (t RawTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the profile.
func (p RawProfile) Clone() RawProfile {
	if p == nil {
		return nil
	}
	out := make(RawProfile, len(p))
	for k, v := range p {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case RawProfile:
		return map[string]any(val.Clone())
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = deepCopy(inner)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(val))
		for k, inner := range val {
			out[k] = deepCopy(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = deepCopy(inner)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = deepCopy(inner)
		}
		return out
	case []int:
		return append([]int(nil), val...)
	case []int64:
		return append([]int64(nil), val...)
	case []string:
		return append([]string(nil), val...)
	case []byte:
		return append([]byte(nil), val...)
	default:
		return v
	}
}

// asMap normalizes the map shapes produced by the TOML and YAML decoders.
func asMap(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case RawProfile:
		return map[string]any(val), true
	case map[string]any:
		return val, true
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = inner
		}
		return out, true
	default:
		return nil, false
	}
}

// asList normalizes slices produced by Go literals and the decoders.
func asList(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []map[string]any:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = m
		}
		return out, true
	case []int:
		out := make([]any, len(val))
		for i, n := range val {
			out[i] = n
		}
		return out, true
	case []int64:
		out := make([]any, len(val))
		for i, n := range val {
			out[i] = n
		}
		return out, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// stringList accepts a single string or a list of strings.
func stringList(v any) []string {
	if s, ok := v.(string); ok {
		return []string{s}
	}
	list, ok := asList(v)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// toInt coerces the numeric types seen from Go literals (int), TOML (int64)
// and YAML (int, float64). Fractional floats are rejected.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case float32:
		return toInt(float64(n))
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		i, ok := toInt(v)
		return float64(i), ok
	}
}
