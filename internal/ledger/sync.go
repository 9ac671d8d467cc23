package ledger

import (
	"context"

	"github.com/roach88/ledger/internal/canon"
	"github.com/roach88/ledger/internal/query"
)

// mirror writes doc's index body under the tenant alias. A failure leaves
// the primary write in place and is reported as CodeIndexSync.
func (e *Engine) mirror(ctx context.Context, b Binding, reason string, doc *Document) error {
	if b.Index == nil {
		return nil
	}
	body := e.indexBody(doc)
	if err := b.Index.Index(ctx, b.Collection.IndexName(), doc.Tenant, doc.ID, body); err != nil {
		e.log.Error("search index out of sync with primary store",
			"collection", b.Collection.String(),
			"tenant", doc.Tenant,
			"id", doc.ID,
			"error", err,
		)
		return newIndexSync(reason, err)
	}
	return nil
}

// indexBody is the document without its id, with JSON-carrying string
// fields expanded to objects in the header and in every event.
func (e *Engine) indexBody(doc *Document) map[string]any {
	cp := doc.Clone()
	e.expand(cp.ID, cp.Header)
	for _, ev := range cp.Events {
		e.expand(cp.ID, ev)
	}
	body := cp.Map()
	delete(body, KeyID)
	return body
}

func (e *Engine) expand(id string, entry Entry) {
	for _, f := range jsonStringFields {
		raw := entry.String(f.String())
		if raw == "" {
			continue
		}
		obj, err := canon.DecodeObject([]byte(raw))
		if err != nil {
			e.log.Warn("field is not a JSON object, indexed as text", "id", id, "field", f.String(), "error", err)
			continue
		}
		entry[f.String()] = obj
	}
}

// gather asks the index for the matching ids, then loads those documents
// from the primary store and returns them in the index's order.
func (e *Engine) gather(ctx context.Context, b Binding, tenant int, q query.Query) ([]*Document, error) {
	ids, err := b.Index.Search(ctx, b.Collection.IndexName(), tenant, q)
	if err != nil {
		return nil, newIndexSync(ReasonSelect, err)
	}
	if len(ids) == 0 {
		return []*Document{}, nil
	}
	found, err := b.Store.Find(ctx, b.Collection, tenant, query.Query{
		Filter:     query.ByID(ids...),
		Projection: q.Projection,
	})
	if err != nil {
		return nil, withReason(ReasonSelect, err)
	}
	byID := make(map[string]*Document, len(found))
	for _, doc := range found {
		byID[doc.ID] = doc
	}
	docs := make([]*Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			docs = append(docs, doc)
			continue
		}
		e.log.Warn("indexed operation missing from primary store", "tenant", tenant, "id", id)
	}
	return docs, nil
}
