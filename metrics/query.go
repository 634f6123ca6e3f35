package metrics

import (
	"context"
	"errors"

	"epsonconf/common/logger"
)

// Query is one named field of the device sweep.
type Query struct {
	Name string
	Run  func(ctx context.Context, p *Printer) (any, error)
}

// Queries returns the sweep in reporting order.
func Queries() []Query {
	return []Query{
		{"sys_info", func(ctx context.Context, p *Printer) (any, error) { return p.SysInfo(ctx) }},
		{"serial_number", func(ctx context.Context, p *Printer) (any, error) { return p.SerialNumber(ctx) }},
		{"firmware_version", func(ctx context.Context, p *Printer) (any, error) { return p.FirmwareVersion(ctx) }},
		{"printer_head_id", func(ctx context.Context, p *Printer) (any, error) { return p.PrinterHeadID(ctx) }},
		{"cartridges", func(ctx context.Context, p *Printer) (any, error) { return p.Cartridges(ctx) }},
		{"printer_status", func(ctx context.Context, p *Printer) (any, error) { return p.Status(ctx) }},
		{"ink_replacement_counters", func(ctx context.Context, p *Printer) (any, error) { return p.InkReplacementCounters(ctx) }},
		{"waste_ink_levels", func(ctx context.Context, p *Printer) (any, error) { return p.WasteInkLevels(ctx) }},
		{"last_printer_fatal_errors", func(ctx context.Context, p *Printer) (any, error) { return p.LastPrinterFatalErrors(ctx) }},
		{"stats", func(ctx context.Context, p *Printer) (any, error) { return p.Stats(ctx) }},
	}
}

// Field is the outcome of one query. Exactly one of Value and Error is set
// unless the value was softly unavailable, in which case both are empty.
type Field struct {
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// Collect runs every query. A failing query records its error and the sweep
// continues; only cancellation stops it.
func (p *Printer) Collect(ctx context.Context) ([]Field, error) {
	queries := Queries()
	fields := make([]Field, 0, len(queries))
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return fields, err
		}
		value, err := q.Run(ctx, p)
		field := Field{Name: q.Name}
		switch {
		case err == nil:
			field.Value = value
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return fields, err
		case errors.Is(err, ErrNoValue):
		default:
			field.Error = err.Error()
			if logger.Global != nil {
				logger.Global.Warn("Query failed", "host", p.client.Host(), "query", q.Name, "error", err)
			}
		}
		fields = append(fields, field)
	}
	return fields, nil
}
