package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/ledger/internal/ledger"
)

// LifecycleOptions holds flags for the lifecycle commands.
type LifecycleOptions struct {
	*RootOptions
	Staging   bool
	Full      bool
	Operation string
}

// NewLifecycleCommand creates the lifecycle command group.
func NewLifecycleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lifecycle",
		Short: "Read unit and object group lifecycles",
	}
	cmd.AddCommand(newLifecycleGetCommand(rootOpts))
	return cmd
}

func newLifecycleGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LifecycleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <unit|objectgroup> <id>",
		Short: "Print one lifecycle",
		Long: `Print one lifecycle from the committed collection, or from staging
with --staging. With --operation the lifecycle is printed only if that
operation wrote its header or one of its events.

Examples:
  ledgerctl lifecycle get unit aeaqaaaaaaaaaaabaaaamakvhiv4rsiaaaaq
  ledgerctl lifecycle get objectgroup --staging --full aebaaaaaaaaaaaabaaaamakvhiv4rsiaaaaq`,
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
				return runLifecycleGet(cmd.Context(), s, f, opts, kind, args[1])
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Staging, "staging", false, "read the staging collection")
	cmd.Flags().BoolVar(&opts.Full, "full", false, "print every event")
	cmd.Flags().StringVar(&opts.Operation, "operation", "", "only print the lifecycle if this operation touched it")
	return cmd
}

func runLifecycleGet(ctx context.Context, s *session, f *OutputFormatter, opts *LifecycleOptions, kind ledger.Kind, id string) error {
	var (
		doc *ledger.Document
		err error
	)
	if opts.Operation != "" {
		doc, err = s.engine.GetLifecycleByOperation(ctx, s.tenant, kind, opts.Staging, opts.Operation, id, projection(opts.Full))
	} else {
		doc, err = s.engine.GetLifecycle(ctx, s.tenant, kind, opts.Staging, id, projection(opts.Full))
	}
	if err != nil {
		return reportError(f, "failed to read lifecycle", err)
	}
	return writeDocuments(f, doc)
}
