package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// OperationOptions holds flags for the operation commands.
type OperationOptions struct {
	*RootOptions
	Full    bool
	Filters []string
	Events  []string
	Sort    string
	Offset  int
	Limit   int
}

// NewOperationCommand creates the operation command group.
func NewOperationCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operation",
		Short: "Read operation journals",
	}
	cmd.AddCommand(newOperationGetCommand(rootOpts))
	cmd.AddCommand(newOperationListCommand(rootOpts))
	return cmd
}

func newOperationGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OperationOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <operation-id>",
		Short: "Print one operation",
		Long: `Print one operation: its header and, by default, its last events.

Examples:
  ledgerctl operation get aedqaaaaacaam7mxaaaamakvhiv4rsiaaaaq
  ledgerctl operation get --full --format json aedqaaaaacaam7mxaaaamakvhiv4rsiaaaaq`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, rootOpts)
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(s *session) error {
				return runOperationGet(cmd.Context(), s, f, opts, args[0])
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Full, "full", false, "print every event")
	return cmd
}

func runOperationGet(ctx context.Context, s *session, f *OutputFormatter, opts *OperationOptions, id string) error {
	doc, err := s.engine.GetOperation(ctx, s.tenant, id, projection(opts.Full))
	if err != nil {
		return reportError(f, "failed to read operation", err)
	}
	return writeDocuments(f, doc)
}

func newOperationListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OperationOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List operations",
		Long: `List the operations of the tenant, ordered by --sort then id.

--filter matches a header field, --event matches any event; every filter
must hold. Filtering on evTypeProc=TRACEABILITY is answered by the search
index.

Examples:
  ledgerctl operation list --filter evTypeProc=INGEST --limit 10
  ledgerctl operation list --event outcome=KO --sort -evDateTime`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, rootOpts)
			return withSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(s *session) error {
				return runOperationList(cmd.Context(), s, f, opts)
			})
		},
	}
	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "header field filter key=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Events, "event", nil, "event field filter key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort field, prefixed with - for descending")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number of results to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of results (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.Full, "full", false, "print every event")
	return cmd
}

func runOperationList(ctx context.Context, s *session, f *OutputFormatter, opts *OperationOptions) error {
	q, err := buildQuery(opts.Filters, opts.Events, opts.Sort, opts.Offset, opts.Limit, opts.Full)
	if err != nil {
		return err
	}
	docs, err := s.engine.ListOperations(ctx, s.tenant, q)
	if err != nil {
		return reportError(f, "failed to list operations", err)
	}
	f.VerboseLog("%d operation(s)", len(docs))
	return writeDocuments(f, docs...)
}
