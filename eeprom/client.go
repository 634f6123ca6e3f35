package eeprom

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"epsonconf/common/logger"
	"epsonconf/featureflags"
	"epsonconf/registry"
	"epsonconf/snmp"
)

// JournalEntry records one attempted write.
type JournalEntry struct {
	Batch    string
	Host     string
	Model    string
	Cell     int
	Previous *byte
	Value    byte
	DryRun   bool
	OK       bool
}

// Journal persists write attempts so they can be reviewed or undone.
type Journal interface {
	Record(ctx context.Context, entry JournalEntry) error
}

// Client performs EEPROM transactions for one printer and one profile.
// It is not safe for concurrent use; one transaction is in flight at a time.
type Client struct {
	transport       snmp.Client
	profile         *registry.Profile
	dryRun          bool
	readBeforeWrite bool
	journal         Journal
	host            string
	batch           string
}

// Option configures a Client.
type Option func(*Client)

// WithDryRun simulates writes: nothing mutating is sent.
func WithDryRun(enabled bool) Option {
	return func(c *Client) { c.dryRun = enabled }
}

// WithJournal records every attempted write.
func WithJournal(j Journal) Option {
	return func(c *Client) { c.journal = j }
}

// WithHost names the printer in logs and journal entries.
func WithHost(host string) Option {
	return func(c *Client) { c.host = host }
}

// WithBatch groups journal entries written by this client.
func WithBatch(id string) Option {
	return func(c *Client) { c.batch = id }
}

// WithReadBeforeWrite toggles reading the previous value before each write.
// Enabled by default.
func WithReadBeforeWrite(enabled bool) Option {
	return func(c *Client) { c.readBeforeWrite = enabled }
}

// NewClient binds a transport to a resolved profile.
func NewClient(transport snmp.Client, profile *registry.Profile, opts ...Option) (*Client, error) {
	if profile == nil {
		return nil, &ConfigError{Op: "session", Missing: "profile"}
	}
	if transport == nil {
		return nil, fmt.Errorf("eeprom client: transport required")
	}
	c := &Client{transport: transport, profile: profile, readBeforeWrite: true}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Profile returns the session's profile.
func (c *Client) Profile() *registry.Profile { return c.profile }

// Transport returns the session's transport.
func (c *Client) Transport() snmp.Client { return c.transport }

// Host returns the configured host label.
func (c *Client) Host() string { return c.host }

// DryRun reports whether writes are simulated, either by session option or
// by the process-wide flag.
func (c *Client) DryRun() bool {
	return c.dryRun || featureflags.ForceDryRunEnabled()
}

func (c *Client) codec() Codec {
	return Codec{DryRun: c.DryRun()}
}

// Read fetches one cell. ok is false on soft failures (timeouts, malformed
// replies), which are logged. A reply echoing a different address returns a
// *ProtocolError.
func (c *Client) Read(ctx context.Context, cell int) (byte, bool, error) {
	oid, err := c.codec().ReadAddress(cell, c.profile)
	if err != nil {
		return 0, false, err
	}

	resp, err := snmp.GetBytes(c.transport, oid)
	if err != nil {
		c.soft(&TransportError{Cell: cell, OID: oid, Err: err})
		return 0, false, nil
	}
	if logger.Global != nil {
		logger.Global.TraceTag("eeprom", "EEPROM read", "cell", cell, "oid", oid, "response", fmt.Sprintf("%q", resp))
	}

	value, err := parseReadReply(cell, resp)
	if err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) {
			if logger.Global != nil {
				logger.Global.Error("EEPROM address mismatch", "host", c.host, "model", c.profile.Name, "cell", cell, "echoed", perr.Echoed)
			}
			return 0, false, perr
		}
		c.soft(&TransportError{Cell: cell, OID: oid, Err: err})
		return 0, false, nil
	}
	return value, true, nil
}

// ReadMany reads cells sequentially in the given order. Any soft failure
// fails the whole batch; no partial result is returned.
func (c *Client) ReadMany(ctx context.Context, cells []int) ([]byte, bool, error) {
	values := make([]byte, 0, len(cells))
	for _, cell := range cells {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		v, ok, err := c.Read(ctx, cell)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		values = append(values, v)
	}
	return values, true, nil
}

// ReadLabeled is ReadMany with a label attached to protocol errors, so a sweep
// can report which field hit the mismatch.
func (c *Client) ReadLabeled(ctx context.Context, label string, cells []int) ([]byte, bool, error) {
	values, ok, err := c.ReadMany(ctx, cells)
	var perr *ProtocolError
	if errors.As(err, &perr) {
		labeled := *perr
		labeled.Label = label
		return nil, false, &labeled
	}
	return values, ok, err
}

// Dump reads cells in [start, end). Cells that fail softly are omitted.
func (c *Client) Dump(ctx context.Context, start, end int) (map[int]byte, error) {
	if start < 0 || end > MaxCell+1 || start > end {
		return nil, &UsageError{Msg: fmt.Sprintf("invalid dump range [%d, %d)", start, end)}
	}
	out := make(map[int]byte, end-start)
	for cell := start; cell < end; cell++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		v, ok, err := c.Read(ctx, cell)
		if err != nil {
			return out, err
		}
		if ok {
			out[cell] = v
		}
	}
	return out, nil
}

// Write stores value in cell. It returns false when the printer does not
// acknowledge. In dry-run mode nothing mutating is sent and the result is
// always true.
func (c *Client) Write(ctx context.Context, cell int, value byte) (bool, error) {
	if !c.profile.HasWriteKey() {
		return false, missingKey(c.profile, "write", "write_key")
	}
	if _, err := SplitCell(cell); err != nil {
		return false, err
	}

	var previous *byte
	if c.readBeforeWrite {
		v, ok, err := c.Read(ctx, cell)
		if err != nil {
			return false, err
		}
		if ok {
			previous = &v
		}
	}

	dryRun := c.DryRun()
	oid, err := Codec{DryRun: dryRun}.WriteAddress(cell, value, c.profile)
	if err != nil {
		return false, err
	}

	ok := true
	if dryRun {
		// oid is the read address here; issue it so the path is exercised.
		if _, err := snmp.GetBytes(c.transport, oid); err != nil && logger.Global != nil {
			logger.Global.Debug("Dry-run read failed", "cell", cell, "error", err)
		}
	} else {
		ok = c.sendWrite(cell, oid)
	}

	if logger.Global != nil {
		logger.Global.Info("EEPROM write", "host", c.host, "model", c.profile.Name, "cell", cell,
			"value", value, "previous", formatPrevious(previous), "dry_run", dryRun, "ok", ok)
	}
	c.record(ctx, JournalEntry{
		Batch:    c.batch,
		Host:     c.host,
		Model:    c.profile.Name,
		Cell:     cell,
		Previous: previous,
		Value:    value,
		DryRun:   dryRun,
		OK:       ok,
	})
	return ok, nil
}

func (c *Client) sendWrite(cell int, oid string) bool {
	resp, err := snmp.GetBytes(c.transport, oid)
	if err != nil {
		c.soft(&TransportError{Cell: cell, OID: oid, Err: err})
		return false
	}
	if logger.Global != nil {
		logger.Global.TraceTag("eeprom", "EEPROM write reply", "cell", cell, "response", fmt.Sprintf("%q", resp))
	}
	switch err := parseWriteReply(resp); {
	case err == nil:
		return true
	case errors.Is(err, errNotAvailable):
		if logger.Global != nil {
			logger.Global.Warn("EEPROM write not available", "host", c.host, "cell", cell)
		}
		return false
	default:
		c.soft(&TransportError{Cell: cell, OID: oid, Err: err})
		return false
	}
}

// WriteMany writes cells in ascending order and stops at the first failure.
func (c *Client) WriteMany(ctx context.Context, values map[int]byte) (bool, error) {
	cells := make([]int, 0, len(values))
	for cell := range values {
		cells = append(cells, cell)
	}
	sort.Ints(cells)

	for _, cell := range cells {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ok, err := c.Write(ctx, cell, values[cell])
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c *Client) record(ctx context.Context, entry JournalEntry) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(ctx, entry); err != nil && logger.Global != nil {
		logger.Global.Warn("Failed to journal EEPROM write", "cell", entry.Cell, "error", err)
	}
}

func (c *Client) soft(err *TransportError) {
	if logger.Global != nil {
		logger.Global.Warn("EEPROM transaction failed", "host", c.host, "cell", err.Cell, "error", err.Err.Error())
		logger.Global.TraceTag("eeprom", "EEPROM failed OID", "cell", err.Cell, "oid", err.OID)
	}
}

func formatPrevious(p *byte) string {
	if p == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *p)
}
