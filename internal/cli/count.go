package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ledger/internal/ledger"
)

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "count",
		Short:         "Count the tenant's documents per collection",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, rootOpts)
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(s *session) error {
				return runCount(cmd.Context(), s, f)
			})
		},
	}
}

func runCount(ctx context.Context, s *session, f *OutputFormatter) error {
	counts, err := s.engine.Counts(ctx, s.tenant)
	if err != nil {
		return reportError(f, "count failed", err)
	}
	if f.Format == "json" {
		byName := make(map[string]int64, len(counts))
		for c, n := range counts {
			byName[c.String()] = n
		}
		return f.Success(byName)
	}
	for _, c := range ledger.Collections() {
		fmt.Fprintf(f.Writer, "%-40s %d\n", c.String(), counts[c])
	}
	return nil
}
