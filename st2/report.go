package st2

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Code is a numeric status code with its description.
type Code struct {
	Code int    `json:"code"`
	Text string `json:"text"`
}

// Ink is one entry of the ink level table.
type Ink struct {
	SlotColor int    `json:"slot_color"`
	InkColor  int    `json:"ink_color"`
	Level     int    `json:"level"`
	Name      string `json:"name"`
}

// MaintenanceBox is the state of one waste ink box.
type MaintenanceBox struct {
	Index   int    `json:"index"`
	Code    int    `json:"code"`
	State   string `json:"state"`
	Counter *int   `json:"counter,omitempty"`
}

func (b MaintenanceBox) String() string {
	if b.Counter != nil {
		return fmt.Sprintf("%s (%d)", b.State, *b.Counter)
	}
	return b.State
}

// PaperCount holds the five page counters of tag 0x36.
type PaperCount struct {
	Normal     int `json:"normal"`
	Page       int `json:"page"`
	Color      int `json:"color"`
	Monochrome int `json:"monochrome"`
	Blank      int `json:"blank"`
}

// InkReplacement holds per-color cartridge replacement counters.
type InkReplacement struct {
	Black   int `json:"black"`
	Cyan    int `json:"cyan"`
	Magenta int `json:"magenta"`
	Yellow  int `json:"yellow"`
}

// UnknownField is a record that was not decoded, kept verbatim.
type UnknownField struct {
	Tag     byte
	Payload []byte
}

// MarshalJSON renders the tag and payload as hex strings.
func (u UnknownField) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"tag":     fmt.Sprintf("0x%02x", u.Tag),
		"payload": fmt.Sprintf("%X", u.Payload),
	})
}

// Report is a decoded status packet. Fields whose record was absent are nil
// or empty.
type Report struct {
	Status                    *Code
	Ready                     bool
	Error                     *Code
	SelfPrint                 *Code
	Warnings                  []Code
	PaperPath                 string
	PaperError                *Code
	CleaningTime              *int
	Tanks                     []int
	ReplaceCartridge          string
	Inks                      []Ink
	LoadingPath               string
	CancelCode                string
	Cutter                    *Code
	TrayOpen                  *Code
	JobName                   string
	Temperature               *Code
	Serial                    string
	PaperJam                  *Code
	PaperCount                *PaperCount
	MaintenanceBoxes          []MaintenanceBox
	InterfaceStatus           *Code
	SerialInfo                string
	InkReplacement            *InkReplacement
	MaintenanceBoxReplacement []int

	// Unknown is never nil.
	Unknown []UnknownField
}

// Fields returns the decoded records keyed by field name. The "unknown" key
// is always present.
func (r *Report) Fields() map[string]any {
	f := map[string]any{"unknown": r.Unknown}
	if r.Status != nil {
		f["status"] = *r.Status
		f["ready"] = r.Ready
	}
	putCode(f, "errcode", r.Error)
	putCode(f, "self_print_code", r.SelfPrint)
	if r.Warnings != nil {
		f["warning_code"] = r.Warnings
	}
	putString(f, "paper_path", r.PaperPath)
	putCode(f, "paper_error", r.PaperError)
	if r.CleaningTime != nil {
		f["cleaning_time"] = *r.CleaningTime
	}
	if r.Tanks != nil {
		f["tanks"] = r.Tanks
	}
	putString(f, "replace_cartridge", r.ReplaceCartridge)
	if r.Inks != nil {
		f["ink_level"] = r.Inks
	}
	putString(f, "loading_path", r.LoadingPath)
	putString(f, "cancel_code", r.CancelCode)
	putCode(f, "cutter", r.Cutter)
	putCode(f, "tray_open", r.TrayOpen)
	putString(f, "jobname", r.JobName)
	putCode(f, "temperature", r.Temperature)
	putString(f, "serial", r.Serial)
	putCode(f, "paper_jam", r.PaperJam)
	if r.PaperCount != nil {
		f["paper_count"] = *r.PaperCount
	}
	for _, box := range r.MaintenanceBoxes {
		f[fmt.Sprintf("maintenance_box_%d", box.Index)] = box.String()
	}
	putCode(f, "interface_status", r.InterfaceStatus)
	putString(f, "serial_number_info", r.SerialInfo)
	if r.InkReplacement != nil {
		f["ink_replacement_counter"] = *r.InkReplacement
	}
	if r.MaintenanceBoxReplacement != nil {
		f["maintenance_box_replacement_counter"] = r.MaintenanceBoxReplacement
	}
	return f
}

// MarshalJSON renders the report as its field map.
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

func putCode(f map[string]any, key string, c *Code) {
	if c != nil {
		f[key] = *c
	}
}

func putString(f map[string]any, key, s string) {
	if s != "" {
		f[key] = s
	}
}

// ToMetrics flattens the report into scalar metrics.
func (r *Report) ToMetrics() map[string]any {
	m := make(map[string]any)

	if r.Status != nil {
		m["epson_status"] = r.Status.Text
		m["epson_status_code"] = r.Status.Code
		m["epson_ready"] = r.Ready
	}
	if r.Error != nil {
		m["epson_error"] = r.Error.Text
		m["epson_error_code"] = r.Error.Code
	}

	if len(r.Warnings) > 0 {
		texts := make([]string, 0, len(r.Warnings))
		for _, w := range r.Warnings {
			texts = append(texts, w.Text)
		}
		m["epson_warnings"] = strings.Join(texts, "; ")
	}

	for _, ink := range r.Inks {
		key := "ink_" + strings.ToLower(strings.ReplaceAll(ink.Name, " ", "_"))
		m[key] = ink.Level
	}

	for _, box := range r.MaintenanceBoxes {
		m[fmt.Sprintf("maintenance_box_%d", box.Index)] = box.Code
		m[fmt.Sprintf("waste_box_%d_status", box.Index)] = box.State
	}

	if r.PaperCount != nil {
		m["paper_count_normal"] = r.PaperCount.Normal
		m["paper_count_page"] = r.PaperCount.Page
		m["paper_count_color"] = r.PaperCount.Color
		m["paper_count_monochrome"] = r.PaperCount.Monochrome
		m["paper_count_blank"] = r.PaperCount.Blank
	}

	if r.Serial != "" {
		m["serial_number"] = r.Serial
	}

	return m
}
