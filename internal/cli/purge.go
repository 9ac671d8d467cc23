package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ledger/internal/ledger"
)

// PurgeOptions holds flags for the purge command.
type PurgeOptions struct {
	*RootOptions
	Target int
	Yes    bool
}

// PurgeResult reports what a purge deleted.
type PurgeResult struct {
	Collection string `json:"collection"`
	Tenant     int    `json:"tenant"`
	Deleted    int64  `json:"deleted"`
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PurgeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "purge <collection>",
		Short: "Delete every document of a tenant in one collection",
		Long: `Delete every document of the target tenant in one collection. Purging
LogbookOperation also drops and re-creates the tenant's search alias.

Only the admin tenant (ledger.adminTenant) may purge, and --yes is required.

Example:
  ledgerctl purge LogbookOperation --tenant 1 --target 0 --yes`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ledger.ParseCollection(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid collection", err)
			}
			if !cmd.Flags().Changed("target") {
				opts.Target = rootOpts.Tenant
			}
			f := newFormatter(cmd, rootOpts)
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(s *session) error {
				return runPurge(cmd.Context(), s, f, opts, c)
			})
		},
	}
	cmd.Flags().IntVar(&opts.Target, "target", 0, "tenant to purge (defaults to --tenant)")
	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "confirm the purge")
	return cmd
}

func runPurge(ctx context.Context, s *session, f *OutputFormatter, opts *PurgeOptions, c ledger.Collection) error {
	if s.tenant != s.cfg.Ledger.AdminTenant {
		return NewExitError(ExitCommandError, fmt.Sprintf("purge is reserved to the admin tenant %d", s.cfg.Ledger.AdminTenant))
	}
	if !opts.Yes {
		return NewExitError(ExitCommandError, "refusing to purge without --yes")
	}

	n, err := s.engine.PurgeTenant(ctx, c, opts.Target)
	if err != nil {
		return reportError(f, "purge failed", err)
	}
	result := PurgeResult{Collection: c.String(), Tenant: opts.Target, Deleted: n}
	if f.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "Purged %d document(s) from %s for tenant %d\n", n, result.Collection, result.Tenant)
	return nil
}
