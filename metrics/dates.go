package metrics

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"epsonconf/eeprom"
	"epsonconf/remote"
)

const dateLayout = "02 Jan 2006"

// DecodeTIDate unpacks year/month/day from the 16-bit first-use value:
// year = 2000 + v/512, month = (v%512)/32, day = v%32. Impossible dates
// yield "?".
func DecodeTIDate(v int) string {
	if v < 0 {
		return "?"
	}
	year := 2000 + v/512
	month := (v % 512) / 32
	day := v % 32
	d, ok := validDate(year, month, day)
	if !ok {
		return "?"
	}
	return d.Format(dateLayout)
}

// EncodeTIDate packs a date into the two first-use bytes, high byte first.
func EncodeTIDate(year, month, day int) (byte, byte, error) {
	if _, ok := validDate(year, month, day); !ok {
		return 0, 0, &eeprom.UsageError{Msg: fmt.Sprintf("invalid date %04d-%02d-%02d", year, month, day)}
	}
	n := (year-2000)*512 + 32*month + day
	if year < 2000 || n > 0xFFFF {
		return 0, 0, &eeprom.UsageError{Msg: fmt.Sprintf("year %d out of range 2000-2127", year)}
	}
	return byte(n / 256), byte(n % 256), nil
}

func validDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

var firmwarePattern = regexp.MustCompile(`vi:00:(.{6})`)

// Firmware is the version string and its embedded build date.
type Firmware struct {
	Version string `json:"version"`
	Date    string `json:"date"`
}

func (f Firmware) String() string {
	return f.Version + " " + f.Date
}

// ParseFirmware extracts the version from a "vi" reply. The date is encoded
// in the version as day = chars 2-3 (decimal), year = char 4 + 1945,
// month = char 5 (hex). An undecodable date is "?".
func ParseFirmware(resp []byte) (Firmware, error) {
	m := firmwarePattern.FindSubmatch(resp)
	if m == nil {
		return Firmware{}, &DecodeError{Field: "firmware", Reason: "no vi:00 marker", Input: string(resp)}
	}
	version := string(m[1])
	fw := Firmware{Version: version, Date: "?"}

	day, err := strconv.Atoi(version[2:4])
	if err != nil {
		return fw, nil
	}
	month, err := strconv.ParseInt(version[5:6], 16, 0)
	if err != nil {
		return fw, nil
	}
	year := int(version[4]) + 1945
	if d, ok := validDate(year, int(month), day); ok {
		fw.Date = d.Format(dateLayout)
	}
	return fw, nil
}

// FirmwareVersion queries and decodes the firmware version.
func (p *Printer) FirmwareVersion(ctx context.Context) (Firmware, error) {
	resp, err := p.remoteQuery(remote.Firmware)
	if err != nil {
		return Firmware{}, err
	}
	return ParseFirmware(resp)
}
