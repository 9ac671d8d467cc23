package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ledger/internal/ledger"
)

// RollbackOptions holds flags for the rollback command.
type RollbackOptions struct {
	*RootOptions
	Object    string
	Committed bool
}

// RollbackResult reports how many lifecycles were deleted.
type RollbackResult struct {
	Kind      string `json:"kind"`
	Operation string `json:"operation"`
	Deleted   int64  `json:"deleted"`
}

// NewRollbackCommand creates the rollback command.
func NewRollbackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RollbackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rollback <unit|objectgroup> <operation-id>",
		Short: "Delete the lifecycles an operation left behind",
		Long: `Delete every staging lifecycle the operation touched, after the operation
failed between staging and commit. With --object only that lifecycle is
deleted, from staging or, with --committed, from the committed collection.

Exit codes:
  0 - Lifecycles deleted
  1 - Nothing matched (NOT_FOUND) or the store failed
  2 - Command error

Examples:
  ledgerctl rollback unit aedqaaaaacaam7mxaaaamakvhiv4rsiaaaaq
  ledgerctl rollback objectgroup <operation-id> --object <objectgroup-id>`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseLifecycleKind(args[0])
			if err != nil {
				return err
			}
			f := newFormatter(cmd, rootOpts)
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(s *session) error {
				return runRollback(cmd.Context(), s, f, opts, kind, args[1])
			})
		},
	}
	cmd.Flags().StringVar(&opts.Object, "object", "", "roll back only this lifecycle")
	cmd.Flags().BoolVar(&opts.Committed, "committed", false, "with --object, delete from the committed collection")
	return cmd
}

func runRollback(ctx context.Context, s *session, f *OutputFormatter, opts *RollbackOptions, kind ledger.Kind, operationID string) error {
	if opts.Committed && opts.Object == "" {
		return NewExitError(ExitCommandError, "--committed requires --object")
	}

	result := RollbackResult{Kind: kind.String(), Operation: operationID}
	if opts.Object != "" {
		err := s.engine.RollbackLifecycle(ctx, s.tenant, kind, !opts.Committed, operationID, opts.Object)
		if err != nil {
			return reportError(f, "rollback failed", err)
		}
		result.Deleted = 1
	} else {
		n, err := s.engine.RollbackAllForOperation(ctx, s.tenant, kind, operationID)
		if err != nil {
			return reportError(f, "rollback failed", err)
		}
		result.Deleted = n
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "Deleted %d %s lifecycle(s) of operation %s\n", result.Deleted, result.Kind, operationID)
	return nil
}
