package metrics

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"

	"epsonconf/common/logger"
)

// WasteReading maps waste group names to percent full. Values may exceed 100.
type WasteReading map[string]float64

// WasteInkLevels reads every configured waste counter. A group whose read
// fails is left out of the result.
func (p *Printer) WasteInkLevels(ctx context.Context) (WasteReading, error) {
	if len(p.profile.Waste) == 0 {
		return nil, p.configError("waste ink levels", "main_waste")
	}
	out := make(WasteReading, len(p.profile.Waste))
	for _, name := range p.profile.WasteNames() {
		group := p.profile.Waste[name]
		raw, ok, err := p.client.ReadLabeled(ctx, name, group.Cells.Cells())
		if err != nil {
			return nil, err
		}
		if !ok || len(raw) == 0 {
			if logger.Global != nil {
				logger.Global.Warn("Waste counter unavailable", "host", p.client.Host(), "group", name)
			}
			continue
		}
		out[name] = WastePercent(raw, group.Divider)
	}
	return out, nil
}

// WastePercent converts counter bytes (least significant first, as stored)
// to a percentage rounded to 2 decimals.
func WastePercent(raw []byte, divider float64) float64 {
	var hex strings.Builder
	for i := len(raw) - 1; i >= 0; i-- {
		fmt.Fprintf(&hex, "%02X", raw[i])
	}
	n, ok := new(big.Int).SetString(hex.String(), 16)
	if !ok || divider <= 0 {
		return 0
	}
	q, _ := new(big.Float).Quo(new(big.Float).SetInt(n), big.NewFloat(divider)).Float64()
	return math.Round(q*100) / 100
}

// ResetWasteInk writes the model's reset values, or zero to every waste
// counter cell when none are configured.
func (p *Printer) ResetWasteInk(ctx context.Context) (bool, error) {
	values := make(map[int]byte)
	if len(p.profile.RawWasteReset) > 0 {
		for cell, v := range p.profile.RawWasteReset {
			values[cell] = v
		}
	} else {
		for _, cell := range p.profile.WasteCells() {
			values[cell] = 0
		}
	}
	if len(values) == 0 {
		return false, p.configError("reset waste ink", "raw_waste_reset")
	}
	if logger.Global != nil {
		logger.Global.Info("Resetting waste ink counters", "host", p.client.Host(), "model", p.profile.Name, "cells", len(values))
	}
	return p.client.WriteMany(ctx, values)
}
