package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/ledger/internal/ledger"
)

// InitResult lists the search alias of every configured tenant.
type InitResult struct {
	Driver  string            `json:"driver"`
	Aliases map[string]string `json:"aliases"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the stores and the search aliases",
		Long: `Open (creating if needed) the primary store and the search index, and
ensure the operation alias of every configured tenant.

Example:
  ledgerctl init --config ledger.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(s *session) error {
				return runInit(cmd.Context(), s, newFormatter(cmd, rootOpts))
			})
		},
	}
}

func runInit(ctx context.Context, s *session, f *OutputFormatter) error {
	result := InitResult{Driver: s.cfg.Store.Driver, Aliases: map[string]string{}}
	if s.index != nil {
		for _, tenant := range s.cfg.Ledger.Tenants {
			aliases, err := s.index.EnsureAlias(ctx, ledger.Operations.IndexName(), tenant)
			if err != nil {
				return reportError(f, "failed to ensure alias", err)
			}
			for alias, name := range aliases {
				result.Aliases[alias] = name
			}
		}
	}
	s.log.Info("ledger initialized", "driver", result.Driver, "aliases", len(result.Aliases))

	if f.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "Store ready (%s)\n", result.Driver)
	if s.index == nil {
		fmt.Fprintln(f.Writer, "Search index disabled")
		return nil
	}
	aliases := make([]string, 0, len(result.Aliases))
	for alias := range result.Aliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		fmt.Fprintf(f.Writer, "  %s -> %s\n", alias, result.Aliases[alias])
	}
	return nil
}
