package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ledger/internal/canon"
	"github.com/roach88/ledger/internal/ledger"
	"github.com/roach88/ledger/internal/query"
)

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// writeDocuments prints documents in their wire shape: a JSON envelope, or
// one canonical JSON line per document.
func writeDocuments(f *OutputFormatter, docs ...*ledger.Document) error {
	maps := make([]map[string]any, len(docs))
	for i, doc := range docs {
		maps[i] = doc.Map()
	}
	if f.Format == "json" {
		return f.Success(maps)
	}
	if len(maps) == 0 {
		fmt.Fprintln(f.Writer, "No documents.")
		return nil
	}
	for _, m := range maps {
		line, err := canon.MarshalVerbatim(m)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode document", err)
		}
		fmt.Fprintln(f.Writer, string(line))
	}
	return nil
}

func projection(full bool) query.Projection {
	if full {
		return query.Full()
	}
	return query.Projection{}
}

// parsePairs splits repeated key=value flags.
func parsePairs(flag string, values []string) ([][2]string, error) {
	pairs := make([][2]string, 0, len(values))
	for _, v := range values {
		k, val, ok := strings.Cut(v, "=")
		if !ok || k == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("--%s %q: expected key=value", flag, v))
		}
		pairs = append(pairs, [2]string{k, val})
	}
	return pairs, nil
}

// buildQuery turns the list flags into a query. Header filters and event
// filters are all required to match.
func buildQuery(filters, events []string, sort string, offset, limit int, full bool) (query.Query, error) {
	headerPairs, err := parsePairs("filter", filters)
	if err != nil {
		return query.Query{}, err
	}
	eventPairs, err := parsePairs("event", events)
	if err != nil {
		return query.Query{}, err
	}

	var preds []query.Predicate
	for _, p := range headerPairs {
		preds = append(preds, query.Eq{Field: p[0], Value: p[1]})
	}
	for _, p := range eventPairs {
		preds = append(preds, query.EventEq{Field: p[0], Value: p[1]})
	}

	q := query.Query{Offset: offset, Limit: limit, Projection: projection(full)}
	switch len(preds) {
	case 0:
	case 1:
		q.Filter = preds[0]
	default:
		q.Filter = query.And{Predicates: preds}
	}
	if sort != "" {
		desc := strings.HasPrefix(sort, "-")
		q.Sort = []query.Sort{{Field: strings.TrimPrefix(sort, "-"), Desc: desc}}
	}
	return q, nil
}

func parseLifecycleKind(name string) (ledger.Kind, error) {
	kind, err := ledger.ParseKind(name)
	if err != nil || !kind.IsLifecycle() {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid lifecycle kind %q: must be unit or objectgroup", name))
	}
	return kind, nil
}
