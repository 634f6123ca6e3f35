package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"epsonconf/common/util"
	"epsonconf/metrics"
	"epsonconf/registry"

	"github.com/spf13/cobra"
)

var errNotAcknowledged = errors.New("printer did not acknowledge the write")

func newInitConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ConfigFileName
			if len(args) == 1 {
				path = args[0]
			}
			if err := WriteDefaultConfig(path); err != nil {
				return err
			}
			return a.render(map[string]string{"config": path})
		},
	}
}

func newModelsCmd(a *app) *cobra.Command {
	var valid bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List known printer models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if valid {
				return a.render(a.reg.ValidPrinters())
			}
			return a.render(a.reg.Names())
		},
	}
	cmd.Flags().BoolVar(&valid, "valid", false, "Only models with a read key")
	return cmd
}

// profileView shows keys readably instead of as base64.
type profileView struct {
	*registry.Profile
	ReadKey  []int  `json:"read_key,omitempty"`
	WriteKey string `json:"write_key,omitempty"`
}

func newProfileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile [model]",
		Short: "Show the resolved capability profile of a model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.model = args[0]
			}
			p, err := a.resolve()
			if err != nil {
				return err
			}
			view := profileView{Profile: p, WriteKey: string(p.WriteKey)}
			for _, b := range p.ReadKey {
				view.ReadKey = append(view.ReadKey, int(b))
			}
			return a.render(view)
		},
	}
}

func newKeysCmd(a *app) *cobra.Command {
	var minimum, maximum int
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Search for the read key of an unknown printer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, err := a.transport()
			if err != nil {
				return err
			}
			defer transport.Close()

			util.ShowInfo(fmt.Sprintf("Trying read keys in [%d, %d) on %s", minimum, maximum, a.host))
			key, ok, err := metrics.BruteForceReadKey(cmd.Context(), transport, minimum, maximum)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no read key found in [%d, %d)", minimum, maximum)
			}
			return a.render(map[string]any{
				"read_key": []int{int(key[0]), int(key[1])},
				"models":   a.reg.ModelsWithKeys(key, nil),
			})
		},
	}
	cmd.Flags().IntVar(&minimum, "min", 0, "Lowest key byte")
	cmd.Flags().IntVar(&maximum, "max", 256, "Upper bound of key bytes (exclusive)")
	return cmd
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Query every available printer field",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			fields, err := s.printer.Collect(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(fields)
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	var flat bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Decode the printer status report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := s.printer.Status(cmd.Context())
			if err != nil {
				return err
			}
			if flat {
				return a.render(report.ToMetrics())
			}
			return a.render(report)
		},
	}
	cmd.Flags().BoolVar(&flat, "metrics", false, "Print flat metric names")
	return cmd
}

func newWasteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "waste",
		Short: "Show waste ink counters in percent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			levels, err := s.printer.WasteInkLevels(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(levels)
		},
	}
}

func newResetWasteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-waste",
		Short: "Reset the waste ink counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			ok, err := s.printer.ResetWasteInk(cmd.Context())
			if err != nil {
				return err
			}
			return a.finishWrite(s, ok)
		},
	}
}

func (a *app) finishWrite(s *session, ok bool) error {
	res := s.result(ok)
	if err := a.render(res); err != nil {
		return err
	}
	switch {
	case !ok:
		util.ShowError(fmt.Sprintf("Write batch %s stopped at an unacknowledged cell", res.Batch))
		return errNotAcknowledged
	case res.DryRun:
		util.ShowWarning("Dry run: nothing was written to the printer")
	default:
		util.ShowSuccess(fmt.Sprintf("Write batch %s applied (undo with: journal restore %s)", res.Batch, res.Batch))
	}
	return nil
}

// cellValue is one EEPROM cell in command output.
type cellValue struct {
	Cell  int    `json:"cell"`
	Value *int   `json:"value,omitempty"`
	Hex   string `json:"hex,omitempty"`
	Error string `json:"error,omitempty"`
}

func newCellValue(cell int, v byte) cellValue {
	n := int(v)
	return cellValue{Cell: cell, Value: &n, Hex: fmt.Sprintf("%02X", v)}
}

// parseInt accepts decimal, 0x hex and 0o/0 octal notation.
func parseInt(s string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return int(n), nil
}

func parseByte(s string) (byte, error) {
	n, err := parseInt(s)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 255 {
		return 0, fmt.Errorf("value %d out of range [0, 255]", n)
	}
	return byte(n), nil
}

func newReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read <cell>...",
		Short: "Read EEPROM cells",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cells := make([]int, 0, len(args))
			for _, arg := range args {
				cell, err := parseInt(arg)
				if err != nil {
					return err
				}
				cells = append(cells, cell)
			}

			s, err := a.openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			out := make([]cellValue, 0, len(cells))
			for _, cell := range cells {
				v, ok, err := s.printer.Client().Read(cmd.Context(), cell)
				if err != nil {
					return err
				}
				if !ok {
					out = append(out, cellValue{Cell: cell, Error: "no reply"})
					continue
				}
				out = append(out, newCellValue(cell, v))
			}
			return a.render(out)
		},
	}
}

func newWriteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "write <cell>=<value>...",
		Short: "Write EEPROM cells",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make(map[int]byte, len(args))
			for _, arg := range args {
				cellStr, valueStr, found := strings.Cut(arg, "=")
				if !found {
					return fmt.Errorf("expected <cell>=<value>, got %q", arg)
				}
				cell, err := parseInt(cellStr)
				if err != nil {
					return err
				}
				value, err := parseByte(valueStr)
				if err != nil {
					return err
				}
				values[cell] = value
			}

			s, err := a.openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			ok, err := s.printer.Client().WriteMany(cmd.Context(), values)
			if err != nil {
				return err
			}
			return a.finishWrite(s, ok)
		},
	}
}

func newDumpCmd(a *app) *cobra.Command {
	var start, end int
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Read a range of EEPROM cells",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			dump, err := s.printer.Client().Dump(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			cells := make([]int, 0, len(dump))
			for cell := range dump {
				cells = append(cells, cell)
			}
			sort.Ints(cells)
			out := make([]cellValue, 0, len(cells))
			for _, cell := range cells {
				out = append(out, newCellValue(cell, dump[cell]))
			}
			return a.render(out)
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "First cell")
	cmd.Flags().IntVar(&end, "end", 256, "End cell (exclusive)")
	return cmd
}

func newSerialCmd(a *app) *cobra.Command {
	var (
		set        string
		locate     bool
		start, end int
	)
	cmd := &cobra.Command{
		Use:   "serial",
		Short: "Read, locate or write the serial number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(set != "")
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			switch {
			case set != "":
				ok, err := s.printer.WriteSerialNumber(ctx, set)
				if err != nil {
					return err
				}
				return a.finishWrite(s, ok)
			case locate:
				serial, cell, found, err := s.printer.LocateSerialNumber(ctx, start, end)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no serial number found in cells [%d, %d)", start, end)
				}
				return a.render(map[string]any{"serial_number": serial, "cell": cell})
			default:
				serial, err := s.printer.SerialNumber(ctx)
				if err != nil {
					return err
				}
				return a.render(serial)
			}
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "Write this serial number")
	cmd.Flags().BoolVar(&locate, "locate", false, "Search the EEPROM for the serial number")
	cmd.Flags().IntVar(&start, "start", 0, "First cell searched by --locate")
	cmd.Flags().IntVar(&end, "end", 512, "End cell searched by --locate (exclusive)")
	return cmd
}

func newTIDateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ti-date",
		Short: "Show the first TI received date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			date, err := s.printer.FirstTIReceivedTime(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(date)
		},
	}
}

func newSetTIDateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-ti-date <YYYY-MM-DD>",
		Short: "Write the first TI received date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var year, month, day int
			if _, err := fmt.Sscanf(args[0], "%d-%d-%d", &year, &month, &day); err != nil {
				return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[0])
			}

			s, err := a.openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			ok, err := s.printer.WriteFirstTIReceivedTime(cmd.Context(), year, month, day)
			if err != nil {
				return err
			}
			return a.finishWrite(s, ok)
		},
	}
}

func newPowerOffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "poweroff",
		Short: "Show the power-off timer in minutes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			minutes, err := s.printer.PowerOffTimer(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(map[string]any{"minutes": minutes})
		},
	}
}

func newSetPowerOffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-poweroff <minutes>",
		Short: "Write the power-off timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := parseInt(args[0])
			if err != nil {
				return err
			}

			s, err := a.openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			ok, err := s.printer.WritePowerOffTimer(cmd.Context(), minutes)
			if err != nil {
				return err
			}
			return a.finishWrite(s, ok)
		},
	}
}

func newDetectKeysCmd(a *app) *cobra.Command {
	var (
		cell  int
		probe int
	)
	cmd := &cobra.Command{
		Use:   "detect-keys",
		Short: "Find which known write key the printer accepts",
		Long:  "Writes a probe value with each known write key, checks whether it stuck and restores the cell.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if probe < 0 || probe > 255 {
				return fmt.Errorf("probe %d out of range [0, 255]", probe)
			}
			s, err := a.openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			key, ok, err := s.printer.DetectWriteKey(cmd.Context(), a.reg, cell, byte(probe))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("none of the known write keys is accepted")
			}
			return a.render(map[string]any{
				"write_key": string(key),
				"models":    a.reg.ModelsWithKeys(s.printer.Profile().ReadKey, key),
			})
		},
	}
	cmd.Flags().IntVar(&cell, "cell", 0, "Cell used for probing")
	cmd.Flags().IntVar(&probe, "probe", 0x5A, "Probe value")
	return cmd
}

func newJournalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect and undo recorded EEPROM writes",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded writes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.openJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.List(cmd.Context(), a.host, limit)
			if err != nil {
				return err
			}
			return a.render(entries)
		},
	}
	list.Flags().IntVarP(&limit, "limit", "l", 50, "Max entries (0 for all)")

	restore := &cobra.Command{
		Use:   "restore <batch-or-entry-id>",
		Short: "Write back the values a batch replaced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			j, err := a.openJournal()
			if err != nil {
				return err
			}
			entries, err := j.Batch(ctx, args[0])
			if err != nil {
				j.Close()
				return err
			}
			plan, err := j.RestorePlan(ctx, args[0])
			j.Close()
			if err != nil {
				return err
			}
			return a.restore(cmd, entries[0].Host, entries[0].Model, plan)
		},
	}

	cmd.AddCommand(list, restore)
	return cmd
}

func (a *app) restore(cmd *cobra.Command, host, model string, plan map[int]byte) error {
	if len(plan) == 0 {
		return fmt.Errorf("nothing to restore")
	}
	if a.host == "" {
		a.host = host
	}
	if a.model == "" {
		a.model = model
	}

	s, err := a.openSession(true)
	if err != nil {
		return err
	}
	defer s.Close()

	util.ShowInfo(fmt.Sprintf("Restoring %d cells on %s", len(plan), a.host))
	ok, err := s.printer.Client().WriteMany(cmd.Context(), plan)
	if err != nil {
		return err
	}
	return a.finishWrite(s, ok)
}
