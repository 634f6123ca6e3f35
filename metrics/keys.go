package metrics

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"epsonconf/common/logger"
	"epsonconf/eeprom"
	"epsonconf/registry"
	"epsonconf/snmp"
)

// BruteForceReadKey tries every ordered pair of distinct bytes in
// [minimum, maximum) as read key until cell 0 can be read.
func BruteForceReadKey(ctx context.Context, transport snmp.Client, minimum, maximum int) ([]byte, bool, error) {
	if minimum < 0 || maximum > 256 || minimum >= maximum {
		return nil, false, &eeprom.UsageError{Msg: fmt.Sprintf("invalid key range [%d, %d)", minimum, maximum)}
	}
	for x := minimum; x < maximum; x++ {
		for y := minimum; y < maximum; y++ {
			if x == y {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, false, err
			}
			key := []byte{byte(x), byte(y)}
			profile := &registry.Profile{Name: "brute-force", ReadKey: key}
			client, err := eeprom.NewClient(transport, profile)
			if err != nil {
				return nil, false, err
			}
			if logger.Global != nil {
				logger.Global.TraceTag("eeprom", "Trying read key", "key", fmt.Sprintf("%d,%d", x, y))
			}
			if _, ok, _ := client.Read(ctx, 0); ok {
				if logger.Global != nil {
					logger.Global.Info("Read key found", "key", fmt.Sprintf("%d,%d", x, y))
				}
				return key, true, nil
			}
		}
	}
	return nil, false, nil
}

var serialPattern = regexp.MustCompile(`[A-Z0-9]{4}[0-9]{6}`)

// FindSerialNumber searches contiguous runs of a dump for text shaped like
// a serial number (four letters or digits then six digits). It returns the
// serial and its first cell.
func FindSerialNumber(dump map[int]byte) (string, int, bool) {
	cells := make([]int, 0, len(dump))
	for cell := range dump {
		cells = append(cells, cell)
	}
	sort.Ints(cells)

	for i := 0; i < len(cells); {
		j := i + 1
		for j < len(cells) && cells[j] == cells[j-1]+1 {
			j++
		}
		run := make([]byte, 0, j-i)
		for _, cell := range cells[i:j] {
			run = append(run, dump[cell])
		}
		if loc := serialPattern.FindIndex(run); loc != nil {
			return string(run[loc[0]:loc[1]]), cells[i] + loc[0], true
		}
		i = j
	}
	return "", 0, false
}

// LocateSerialNumber dumps [start, end) and searches it for a serial number.
func (p *Printer) LocateSerialNumber(ctx context.Context, start, end int) (string, int, bool, error) {
	dump, err := p.client.Dump(ctx, start, end)
	if err != nil {
		return "", 0, false, err
	}
	serial, cell, ok := FindSerialNumber(dump)
	return serial, cell, ok, nil
}

// ValidateWriteKey checks that writes take effect: it writes probe to cell,
// reads it back and restores the previous value.
func (p *Printer) ValidateWriteKey(ctx context.Context, cell int, probe byte) (bool, error) {
	return validateWrite(ctx, p.client, cell, probe)
}

func validateWrite(ctx context.Context, client *eeprom.Client, cell int, probe byte) (bool, error) {
	if client.DryRun() {
		return false, &eeprom.UsageError{Msg: "write key validation needs live writes; disable dry-run"}
	}
	previous, ok, err := client.Read(ctx, cell)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("cell %d: %w", cell, ErrNoValue)
	}
	if previous == probe {
		return false, &eeprom.UsageError{Msg: fmt.Sprintf("probe value %d equals the current value of cell %d", probe, cell)}
	}

	if ok, err := client.Write(ctx, cell, probe); err != nil || !ok {
		return false, err
	}
	readBack, ok, err := client.Read(ctx, cell)
	if err != nil {
		return false, err
	}
	if restored, err := client.Write(ctx, cell, previous); err != nil || !restored {
		if logger.Global != nil {
			logger.Global.Error("Failed to restore cell after write key probe", "cell", cell, "previous", previous, "error", err)
		}
		return false, errors.Join(err, fmt.Errorf("cell %d not restored to %d", cell, previous))
	}
	return ok && readBack == probe, nil
}

// DetectWriteKey tries the write keys of every registry model sharing this
// printer's read key, returning the first that validates.
func (p *Printer) DetectWriteKey(ctx context.Context, reg *registry.Registry, cell int, probe byte) ([]byte, bool, error) {
	if !p.profile.HasReadKey() {
		return nil, false, p.configError("detect write key", registry.KeyReadKey)
	}
	for _, key := range reg.WriteKeys(p.profile.ReadKey) {
		candidate := p.profile.Clone()
		candidate.WriteKey = key
		client, err := eeprom.NewClient(p.transport, candidate, eeprom.WithHost(p.client.Host()))
		if err != nil {
			return nil, false, err
		}
		ok, err := validateWrite(ctx, client, cell, probe)
		if err != nil {
			var perr *eeprom.ProtocolError
			if errors.As(err, &perr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, false, err
			}
			if logger.Global != nil {
				logger.Global.Warn("Write key probe failed", "key", string(key), "error", err)
			}
			continue
		}
		if ok {
			return key, true, nil
		}
	}
	return nil, false, nil
}
