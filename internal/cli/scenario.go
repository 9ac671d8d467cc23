package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ledger/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Output string
}

// ScenarioResult is the JSON payload of the scenario command.
type ScenarioResult struct {
	Name   string                      `json:"name"`
	Pass   bool                        `json:"pass"`
	Errors []string                    `json:"errors,omitempty"`
	Trace  []harness.StepTrace         `json:"trace"`
	State  map[string][]map[string]any `json:"state"`
	IDs    map[string]string           `json:"ids"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file.yaml>",
		Short: "Run a ledger scenario against a scratch store",
		Long: `Run a YAML scenario against a fresh store and index in a temporary
directory, then print the final state. The configured stores are not used.

The text output is the golden snapshot of the run; --output writes it to a
file instead.

Exit codes:
  0 - Every step had its expected outcome and every assertion held
  1 - A step or an assertion failed
  2 - Command error (file not found, invalid scenario)

Examples:
  ledgerctl scenario testdata/scenarios/unit_ingest_commit.yaml
  ledgerctl scenario staged.yaml -o staged.golden`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the snapshot to this file")
	return cmd
}

func runScenario(cmd *cobra.Command, opts *ScenarioOptions, path string) error {
	f := newFormatter(cmd, opts.RootOptions)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	f.VerboseLog("running scenario %s (%d steps)", scenario.Name, len(scenario.Steps))

	result, err := harness.Run(cmd.Context(), scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	if opts.Format == "json" {
		if err := f.Success(ScenarioResult{
			Name:   scenario.Name,
			Pass:   result.Pass,
			Errors: result.Errors,
			Trace:  result.Trace,
			State:  result.State,
			IDs:    result.IDs,
		}); err != nil {
			return err
		}
	} else {
		snapshot, err := harness.Snapshot(scenario.Name, result)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to render snapshot", err)
		}
		if opts.Output != "" {
			if err := os.WriteFile(opts.Output, snapshot, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "failed to write snapshot", err)
			}
			fmt.Fprintf(f.Writer, "Wrote snapshot to %s\n", opts.Output)
		} else {
			_, _ = f.Writer.Write(snapshot)
		}
		for _, e := range result.Errors {
			fmt.Fprintf(f.GetErrWriter(), "✗ %s\n", e)
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed with %d error(s)", scenario.Name, len(result.Errors)))
	}
	return nil
}
