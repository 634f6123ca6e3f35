// Package st2 decodes the binary "@BDC ST2" status reply returned by Epson
// printers for the "st" remote command.
package st2

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"epsonconf/common/logger"
)

var (
	header      = []byte("\x00@BDC ST2\r\n")
	resyncToken = []byte("BDC ST2\r\n")
)

const (
	headerLen = 11
	prefixLen = 13 // header plus the 2-byte payload length
	minPacket = 16
)

// DecodeError describes why a status packet was rejected.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "st2: " + e.Reason
}

// Decode parses a raw ST2 packet. It never panics; malformed input yields a
// *DecodeError. The input slice is not modified.
func Decode(data []byte) (*Report, error) {
	if len(data) < minPacket {
		return nil, &DecodeError{Reason: "invalid packet"}
	}
	if !bytes.Equal(data[:headerLen], header) {
		idx := bytes.Index(data, resyncToken)
		if idx < 0 {
			return nil, &DecodeError{Reason: "printer status error"}
		}
		if logger.Global != nil {
			logger.Global.TraceTag("st2", "Realigning ST2 header", "offset", idx)
		}
		aligned := make([]byte, 0, 2+len(data)-idx)
		aligned = append(aligned, 0, 0)
		data = append(aligned, data[idx:]...)
		if len(data) < prefixLen {
			return nil, &DecodeError{Reason: "message error"}
		}
	}

	payloadLen := int(binary.LittleEndian.Uint16(data[headerLen:prefixLen]))
	if payloadLen != len(data)-prefixLen {
		return nil, &DecodeError{Reason: "message error"}
	}

	r := &Report{Unknown: []UnknownField{}}
	buf := data[prefixLen:]
	for len(buf) > 0 {
		if len(buf) < 3 {
			return nil, &DecodeError{Reason: "invalid element"}
		}
		tag := buf[0]
		length := int(buf[1])
		if len(buf)-2 < length {
			return nil, &DecodeError{Reason: "invalid element length"}
		}
		item := buf[2 : 2+length]
		buf = buf[2+length:]
		if !r.decodeRecord(tag, item) {
			r.Unknown = append(r.Unknown, UnknownField{Tag: tag, Payload: append([]byte(nil), item...)})
		}
		if logger.Global != nil {
			logger.Global.TraceTag("st2", "ST2 record", "tag", fmt.Sprintf("0x%02x", tag), "payload", fmt.Sprintf("%X", item))
		}
	}
	return r, nil
}

// decodeRecord stores one record in r. It returns false when the tag is not
// recognised or its payload does not have the expected shape.
func (r *Report) decodeRecord(tag byte, item []byte) bool {
	switch tag {
	case tagStatus:
		if len(item) < 1 {
			return false
		}
		code := item[0]
		r.Status = &Code{Code: int(code), Text: lookup(printerStatusText, code)}
		r.Ready = code == 0x03 || code == 0x04
	case tagError:
		if len(item) < 1 {
			return false
		}
		r.Error = &Code{Code: int(item[0]), Text: lookup(printerErrorText, item[0])}
	case tagSelfPrint:
		if len(item) < 1 {
			return false
		}
		r.SelfPrint = &Code{Code: int(item[0]), Text: lookup(selfPrintCodes, item[0])}
	case tagWarning:
		warnings := make([]Code, 0, len(item))
		for _, w := range item {
			warnings = append(warnings, Code{Code: int(w), Text: lookup(warningCodes, w)})
		}
		r.Warnings = warnings
	case tagPaperPath:
		if name, ok := paperPaths[string(item)]; ok {
			r.PaperPath = name
		} else {
			r.PaperPath = fmt.Sprintf("%X", item)
		}
	case tagPaperError:
		if len(item) < 1 {
			return false
		}
		r.PaperError = &Code{Code: int(item[0]), Text: lookup(paperErrorCodes, item[0])}
	case tagCleaningTime:
		if len(item) < 1 || len(item) > 4 {
			return false
		}
		v := signedLE(item)
		r.CleaningTime = &v
	case tagTanks:
		tanks := make([]int, 0, len(item))
		for _, b := range item {
			tanks = append(tanks, int(b))
		}
		r.Tanks = tanks
	case tagReplaceCartridge:
		if len(item) < 1 {
			return false
		}
		r.ReplaceCartridge = fmt.Sprintf("%08b", item[0])
	case tagInkInfo:
		if len(item) < 1 {
			return false
		}
		r.Inks = decodeInks(item)
	case tagLoadingPath:
		hex := fmt.Sprintf("%X", item)
		if hex == loadingPathFixed {
			r.LoadingPath = "fixed"
		} else {
			r.LoadingPath = hex
		}
	case tagCancelCode:
		if len(item) < 1 {
			return false
		}
		if text, ok := cancelCodes[item[0]]; ok {
			r.CancelCode = text
		} else {
			r.CancelCode = fmt.Sprintf("%X", item)
		}
	case tagCutter:
		if len(item) < 1 {
			return false
		}
		r.Cutter = &Code{Code: int(item[0]), Text: lookup(cutterCodes, item[0])}
	case tagTrayOpen:
		if len(item) < 1 {
			return false
		}
		r.TrayOpen = &Code{Code: int(item[0]), Text: lookup(trayCodes, item[0])}
	case tagJobName:
		if string(item) == jobNameUndefined {
			r.JobName = "Not defined"
		} else {
			r.JobName = string(bytes.Trim(item, "\x00"))
		}
	case tagTemperature:
		if len(item) < 1 {
			return false
		}
		r.Temperature = &Code{Code: int(item[0]), Text: lookup(temperatureCodes, item[0])}
	case tagSerial:
		r.Serial = string(bytes.Trim(item, "\x00"))
	case tagPaperJam:
		if len(item) < 1 {
			return false
		}
		r.PaperJam = &Code{Code: int(item[0]), Text: lookup(paperJamCodes, item[0])}
	case tagPaperCount:
		if len(item) != 20 {
			return false
		}
		r.PaperCount = &PaperCount{
			Normal:     int(int32(binary.LittleEndian.Uint32(item[0:4]))),
			Page:       int(int32(binary.LittleEndian.Uint32(item[4:8]))),
			Color:      int(int32(binary.LittleEndian.Uint32(item[8:12]))),
			Monochrome: int(int32(binary.LittleEndian.Uint32(item[12:16]))),
			Blank:      int(int32(binary.LittleEndian.Uint32(item[16:20]))),
		}
	case tagMaintenanceBox:
		boxes, ok := decodeMaintenanceBoxes(item)
		if !ok {
			return false
		}
		r.MaintenanceBoxes = boxes
	case tagInterfaceStatus:
		if len(item) < 1 {
			return false
		}
		r.InterfaceStatus = &Code{Code: int(item[0]), Text: lookup(interfaceCodes, item[0])}
	case tagSerialInfo:
		r.SerialInfo = string(bytes.Trim(item, "\x00"))
	case tagInkReplacement:
		if len(item) != 4 {
			return false
		}
		r.InkReplacement = &InkReplacement{
			Black:   int(item[0]),
			Cyan:    int(item[1]),
			Magenta: int(item[2]),
			Yellow:  int(item[3]),
		}
	case tagMaintBoxReplace:
		counters := make([]int, 0, len(item))
		for _, b := range item {
			counters = append(counters, int(b))
		}
		r.MaintenanceBoxReplacement = counters
	default:
		return false
	}
	return true
}

// decodeInks walks the ink table. The first byte is the width of each entry;
// entries narrower than 3 bytes are treated as 3.
func decodeInks(item []byte) []Ink {
	width := int(item[0])
	if width < 3 {
		width = 3
	}
	inks := []Ink{}
	for offset := 1; offset+3 <= len(item); offset += width {
		slot := item[offset]
		color := item[offset+1]
		level := item[offset+2]
		inks = append(inks, Ink{
			SlotColor: int(slot),
			InkColor:  int(color),
			Level:     int(level),
			Name:      inkName(slot, color),
		})
	}
	return inks
}

func inkName(slot, color byte) string {
	if name, ok := cartridgeColors[slot]; ok {
		return name
	}
	if name, ok := inkColors[color]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", slot)
}

// decodeMaintenanceBoxes reads entries of 1 (fill code) or 2 (fill code and
// counter) bytes, the width given by the first byte.
func decodeMaintenanceBoxes(item []byte) ([]MaintenanceBox, bool) {
	if len(item) < 1 {
		return nil, false
	}
	width := int(item[0])
	if width != 1 && width != 2 {
		return nil, false
	}
	boxes := []MaintenanceBox{}
	for offset := 1; offset+width <= len(item); offset += width {
		code := item[offset]
		box := MaintenanceBox{
			Index: len(boxes) + 1,
			Code:  int(code),
			State: maintenanceBoxState(code),
		}
		if width == 2 {
			counter := int(item[offset+1])
			box.Counter = &counter
		}
		boxes = append(boxes, box)
	}
	return boxes, true
}

func maintenanceBoxState(code byte) string {
	if s, ok := maintenanceBoxStates[code]; ok {
		return s
	}
	return "unknown"
}

func lookup(table map[byte]string, code byte) string {
	if s, ok := table[code]; ok {
		return s
	}
	return fmt.Sprintf("unknown: %d", code)
}

// signedLE decodes up to 4 little-endian bytes as a two's complement integer.
func signedLE(b []byte) int {
	var v uint32
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint32(b[i])
	}
	shift := 32 - 8*uint(len(b))
	return int(int32(v<<shift) >> shift)
}
