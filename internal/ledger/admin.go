package ledger

import "context"

// PurgeTenant removes every document of tenant in c. For a mirrored
// collection the tenant alias is dropped and re-created empty.
func (e *Engine) PurgeTenant(ctx context.Context, c Collection, tenant int) (n int64, err error) {
	ctx, end := e.begin(ctx, "PurgeTenant", c, tenant, "")
	defer end(&err)

	b, err := e.reg.Lookup(c)
	if err != nil {
		return 0, err
	}
	n, err = b.Store.Purge(ctx, c, tenant)
	if err != nil {
		return 0, withReason(ReasonDelete, err)
	}
	if b.Index != nil {
		if err := b.Index.DeleteAlias(ctx, c.IndexName(), tenant); err != nil {
			return n, newIndexSync(ReasonDelete, err)
		}
		if err := e.ensureAlias(ctx, c, tenant); err != nil {
			return n, newIndexSync(ReasonDelete, err)
		}
	}
	e.log.Warn("tenant purged", "collection", c.String(), "tenant", tenant, "deleted", n)
	return n, nil
}

// Counts returns the number of documents per collection for tenant.
func (e *Engine) Counts(ctx context.Context, tenant int) (counts map[Collection]int64, err error) {
	ctx, end := e.begin(ctx, "Counts", 0, tenant, "")
	defer end(&err)

	counts = make(map[Collection]int64, len(collectionNames))
	for _, c := range Collections() {
		n, err := e.count(ctx, c, tenant)
		if err != nil {
			return nil, err
		}
		counts[c] = n
	}
	return counts, nil
}
