package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/tickgraph/internal/sim"
	"github.com/randalmurphal/tickgraph/pkg/tickgraph/journal"
	"github.com/randalmurphal/tickgraph/pkg/tickgraph/observability"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Journal    string
	Until      float64
	MaxWakeups int
	Strict     bool
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario>",
		Short: "Run a scenario on a virtual clock",
		Long: `Run a YAML or JSON scenario on a virtual clock and print every behavior
invocation with the shared time it ran at.

Pass - to read the scenario from standard input.

Example:
  tickgraph simulate ./scenarios/frame.yaml
  tickgraph simulate --journal ./runs.db --until 10 ./scenarios/autosave.yaml
  tickgraph simulate --format json ./scenarios/frame.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "persist firing records to this SQLite database")
	cmd.Flags().Float64Var(&opts.Until, "until", 0, "override the scenario duration, in seconds")
	cmd.Flags().IntVar(&opts.MaxWakeups, "max-wakeups", sim.DefaultMaxWakeups, "abort after this many wake-ups")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit with status 1 if any behavior failed")

	return cmd
}

func runSimulate(opts *SimulateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sc, err := loadScenario(path, cmd)
	if err != nil {
		return reportError(formatter, ExitCommandError, scenarioErrCode(err), "failed to load scenario", err)
	}
	if opts.Until > 0 {
		sc.Duration = opts.Until
	}
	formatter.VerboseLog("Loaded scenario %q: %d behaviors, %d events, %d queues",
		sc.Name, len(sc.Behaviors), len(sc.Events), len(sc.Queues))

	runOpts := sim.Options{
		Logger:     newLogger(opts.RootOptions, formatter),
		MaxWakeups: opts.MaxWakeups,
	}
	if opts.Journal != "" {
		store, err := journal.NewSQLiteStore(opts.Journal)
		if err != nil {
			return reportError(formatter, ExitCommandError, ErrCodeJournal, "failed to open journal", err)
		}
		formatter.VerboseLog("Journaling to %s (run %s)", opts.Journal, sc.Name)
		runOpts.Journal = store
	}

	elapsed := observability.TimedOperation()
	res, err := sim.Run(cmd.Context(), sc, runOpts)
	formatter.VerboseLog("Simulated %gs in %.1fms", sc.Duration, elapsed())
	if err != nil {
		var details any
		if res != nil {
			details = res
		}
		return reportError(formatter, ExitFailure, ErrCodeRunFailed, "scenario run failed", err, details)
	}

	if err := formatter.Success(res); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	if opts.Strict && len(res.Errors) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d behavior failures", len(res.Errors)))
	}
	return nil
}

// newLogger returns a debug logger on the diagnostic writer in verbose mode
// and nil otherwise.
func newLogger(opts *RootOptions, formatter *OutputFormatter) *slog.Logger {
	if !opts.Verbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(formatter.GetErrWriter(), &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// loadScenario reads path, or standard input when path is "-".
func loadScenario(path string, cmd *cobra.Command) (*sim.Scenario, error) {
	if path == "-" {
		return sim.ReadScenario(cmd.InOrStdin())
	}
	return sim.LoadScenario(path)
}

func scenarioErrCode(err error) string {
	if errors.Is(err, sim.ErrInvalidScenario) {
		return ErrCodeInvalidScenario
	}
	return ErrCodeGeneric
}

// reportError writes err through the formatter and returns it as an
// ExitError with code.
func reportError(f *OutputFormatter, code int, errCode, message string, err error, details ...any) error {
	var d any
	if len(details) > 0 {
		d = details[0]
	}
	if outErr := f.Error(errCode, fmt.Sprintf("%s: %v", message, err), d); outErr != nil {
		return WrapExitError(ExitCommandError, "failed to write output", outErr)
	}
	return WrapExitError(code, message, err)
}
