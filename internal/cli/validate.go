package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult summarizes a valid scenario.
type ValidationResult struct {
	Scenario  string  `json:"scenario"`
	Duration  float64 `json:"duration"`
	Behaviors int     `json:"behaviors"`
	Events    int     `json:"events"`
	Queues    int     `json:"queues"`
	Requests  int     `json:"requests"`
}

func (r ValidationResult) String() string {
	return fmt.Sprintf("scenario %s is valid: %d behaviors, %d events, %d queues, %d requests over %gs",
		r.Scenario, r.Behaviors, r.Events, r.Queues, r.Requests, r.Duration)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>",
		Short: "Check a scenario without running it",
		Long: `Check a scenario's names and references without running it.

Dependency cycles are not detected here; they surface when the event is
first posted during simulate.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sc, err := loadScenario(path, cmd)
	if err != nil {
		return reportError(formatter, ExitFailure, scenarioErrCode(err), "invalid scenario", err)
	}

	return formatter.Success(ValidationResult{
		Scenario:  sc.Name,
		Duration:  sc.Duration,
		Behaviors: len(sc.Behaviors),
		Events:    len(sc.Events),
		Queues:    len(sc.Queues),
		Requests:  len(sc.Requests),
	})
}
