package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"epsonconf/common/config"
	"epsonconf/common/logger"
	"epsonconf/common/util"
	"epsonconf/eeprom"
	"epsonconf/featureflags"
	"epsonconf/journal"
	"epsonconf/metrics"
	"epsonconf/registry"
	"epsonconf/snmp"

	"github.com/spf13/cobra"
)

// app carries the state shared by every command of one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	model      string
	host       string
	dryRun     bool
	quiet      bool
	logLevel   string
	traceTags  []string
	format     string

	cfg  *Config
	reg  *registry.Registry
	log  *logger.Logger
	dial func(cfg snmp.Config, host string) (snmp.Client, error)
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut, dial: snmp.NewClient}
}

// setup loads configuration, installs the logger and builds the registry.
func (a *app) setup() error {
	cfg, path, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	util.SetOutput(a.errOut)
	util.SetQuietMode(a.quiet)

	level := cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.log = logger.New(logger.LevelFromString(level), cfg.Logging.Dir, 1000)
	a.log.SetConsoleWriter(a.errOut)
	for _, tag := range a.traceTags {
		a.log.EnableTraceTag(tag)
	}
	logger.SetGlobal(a.log)
	if path != "" {
		a.log.Debug("Loaded configuration", "path", path)
	}

	featureflags.SetForceDryRun(cfg.ForceDryRun)

	var overlay registry.RawTable
	if cfg.Registry.Overlay != "" {
		overlay, err = registry.LoadOverlay(cfg.Registry.Overlay)
		if err != nil {
			return err
		}
	}
	a.reg, err = registry.NewDefault(overlay, cfg.Registry.Replace)
	if err != nil {
		return fmt.Errorf("build capability registry: %w", err)
	}
	return nil
}

func (a *app) teardown() {
	if a.log != nil {
		a.log.Close()
	}
}

func (a *app) isDryRun() bool {
	return a.dryRun || (a.cfg != nil && a.cfg.DryRun)
}

// resolve returns the profile named by --model.
func (a *app) resolve() (*registry.Profile, error) {
	if a.model == "" {
		return nil, fmt.Errorf("--model is required")
	}
	p, ok := a.reg.Resolve(a.model)
	if !ok {
		return nil, fmt.Errorf("unknown printer model %q", a.model)
	}
	return p, nil
}

func (a *app) transport() (snmp.Client, error) {
	if a.host == "" {
		return nil, fmt.Errorf("--host is required")
	}
	cfg, err := snmp.FromSettings(a.cfg.SNMP)
	if err != nil {
		return nil, err
	}
	return a.dial(cfg, a.host)
}

// session is one printer connection bound to a profile.
type session struct {
	printer   *metrics.Printer
	transport snmp.Client
	journal   *journal.Journal
	batch     string
}

func (s *session) Close() {
	if s.journal != nil {
		s.journal.Close()
	}
	s.transport.Close()
}

// openSession connects to --host with the --model profile. Sessions that
// write open the journal and group their writes into one batch.
func (a *app) openSession(writes bool) (*session, error) {
	profile, err := a.resolve()
	if err != nil {
		return nil, err
	}
	return a.openSessionFor(profile, writes)
}

func (a *app) openSessionFor(profile *registry.Profile, writes bool) (*session, error) {
	transport, err := a.transport()
	if err != nil {
		return nil, err
	}
	s := &session{transport: transport}
	opts := []eeprom.Option{eeprom.WithHost(a.host), eeprom.WithDryRun(a.isDryRun())}
	if writes {
		j, err := a.openJournal()
		if err != nil {
			transport.Close()
			return nil, err
		}
		s.journal = j
		s.batch = j.NewID()
		opts = append(opts, eeprom.WithJournal(j), eeprom.WithBatch(s.batch))
	}
	client, err := eeprom.NewClient(transport, profile, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.printer = metrics.NewPrinter(client)
	return s, nil
}

func (a *app) openJournal() (*journal.Journal, error) {
	path := a.cfg.Database.Path
	if path == "" {
		dir, err := config.GetDataDirectory()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "journal.db")
	}
	return journal.Open(path)
}

// writeResult is printed by every mutating command.
type writeResult struct {
	OK     bool   `json:"ok"`
	DryRun bool   `json:"dry_run"`
	Batch  string `json:"batch,omitempty"`
}

func (s *session) result(ok bool) writeResult {
	return writeResult{OK: ok, DryRun: s.printer.Client().DryRun(), Batch: s.batch}
}

// render prints v as indented JSON, or as plain lines with --format text.
func (a *app) render(v any) error {
	if a.format == "text" {
		if a.renderText(v) {
			return nil
		}
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) renderText(v any) bool {
	switch x := v.(type) {
	case string:
		fmt.Fprintln(a.out, x)
	case []string:
		for _, s := range x {
			fmt.Fprintln(a.out, s)
		}
	case map[string]string:
		for _, k := range sortedKeys(x) {
			fmt.Fprintf(a.out, "%s: %s\n", k, x[k])
		}
	case map[string]any:
		for _, k := range sortedKeys(x) {
			fmt.Fprintf(a.out, "%s: %v\n", k, x[k])
		}
	case metrics.WasteReading:
		for _, k := range sortedKeys(x) {
			fmt.Fprintf(a.out, "%s: %.2f%%\n", k, x[k])
		}
	case []metrics.Field:
		for _, f := range x {
			switch {
			case f.Error != "":
				fmt.Fprintf(a.out, "%s: error: %s\n", f.Name, f.Error)
			case f.Value == nil:
				fmt.Fprintf(a.out, "%s: -\n", f.Name)
			default:
				fmt.Fprintf(a.out, "%s: %v\n", f.Name, f.Value)
			}
		}
	default:
		return false
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "epsonconf",
		Short:         "Read and configure Epson printers over SNMP",
		Long:          "Reads status, counters and EEPROM settings of Epson inkjet printers and writes them back, journaling every write.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Configuration file (default: search for "+ConfigFileName+")")
	flags.StringVarP(&a.model, "model", "m", "", "Printer model")
	flags.StringVarP(&a.host, "host", "H", os.Getenv("EPSONCONF_HOST"), "Printer host or IP address")
	flags.BoolVarP(&a.dryRun, "dry-run", "n", false, "Simulate writes")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "Only print command output, warnings and errors")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: error, warn, info, debug or trace")
	flags.StringSliceVar(&a.traceTags, "trace", nil, "Trace tags to log at trace level: eeprom, st2, registry, snmp")
	flags.StringVarP(&a.format, "format", "f", "json", "Output format: json or text")

	root.AddCommand(
		newInitConfigCmd(a),
		newModelsCmd(a),
		newProfileCmd(a),
		newKeysCmd(a),
		newInfoCmd(a),
		newStatusCmd(a),
		newWasteCmd(a),
		newResetWasteCmd(a),
		newReadCmd(a),
		newWriteCmd(a),
		newDumpCmd(a),
		newSerialCmd(a),
		newTIDateCmd(a),
		newSetTIDateCmd(a),
		newPowerOffCmd(a),
		newSetPowerOffCmd(a),
		newDetectKeysCmd(a),
		newJournalCmd(a),
	)
	return root
}

// run executes the CLI with args and returns the error to report.
func run(ctx context.Context, a *app, args []string) error {
	defer a.teardown()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	return root.ExecuteContext(ctx)
}
