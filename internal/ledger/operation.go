package ledger

import (
	"context"
	"sort"

	"github.com/roach88/ledger/internal/canon"
	"github.com/roach88/ledger/internal/guid"
	"github.com/roach88/ledger/internal/query"
)

// CreateOperation inserts a new operation whose header is params and whose
// event list is empty, then mirrors it to the search index.
func (e *Engine) CreateOperation(ctx context.Context, tenant int, params Parameters) (err error) {
	ctx, end := e.begin(ctx, "CreateOperation", Operations, tenant, params.Get(ProcessID))
	defer end(&err)

	doc, err := NewDocument(tenant, KindOperation, params)
	if err != nil {
		return err
	}
	return e.insertOperation(ctx, doc)
}

// CreateOperationBulk inserts one operation: items[0] is the header and the
// remaining items become its initial events.
func (e *Engine) CreateOperationBulk(ctx context.Context, tenant int, items ...Parameters) (err error) {
	ctx, end := e.begin(ctx, "CreateOperationBulk", Operations, tenant, firstID(items, ProcessID))
	defer end(&err)

	if len(items) == 0 {
		return NewInvalidArgument(msgAtLeastOneItem)
	}
	doc, err := NewDocument(tenant, KindOperation, items[0])
	if err != nil {
		return err
	}
	for _, item := range items[1:] {
		if err := item.check(KindOperation); err != nil {
			return err
		}
		doc.Append(item.event())
	}
	return e.insertOperation(ctx, doc)
}

func (e *Engine) insertOperation(ctx context.Context, doc *Document) error {
	b, err := e.reg.Lookup(Operations)
	if err != nil {
		return err
	}
	doc.LastPersistedDate = e.stamp()
	if err := b.Store.Insert(ctx, Operations, doc); err != nil {
		return withReason(ReasonCreation, err)
	}
	e.log.Debug("operation created", "tenant", doc.Tenant, "id", doc.ID, "events", len(doc.Events))
	return e.mirror(ctx, b, ReasonCreation, doc)
}

// UpdateOperation appends params as one event. A masterData payload (a JSON
// object) is merged into the header's evDetData; an unparsable payload is
// logged and ignored. The full document is re-read and mirrored afterwards.
func (e *Engine) UpdateOperation(ctx context.Context, tenant int, params Parameters) (err error) {
	id := params.Get(ProcessID)
	ctx, end := e.begin(ctx, "UpdateOperation", Operations, tenant, id)
	defer end(&err)

	if err := checkUpdate(KindOperation, id, params); err != nil {
		return err
	}
	b, err := e.reg.Lookup(Operations)
	if err != nil {
		return err
	}
	push := Push{ID: id, Events: []Entry{params.event()}, At: e.stamp()}
	if md := params.Get(MasterData); md != "" {
		current, err := b.Store.Get(ctx, Operations, tenant, id, query.Sliced(1))
		if err != nil {
			return updateFailure(id, err)
		}
		if merged, ok := e.mergeDetailData(current.Header.String(DetailData.String()), md); ok {
			push.Set = Entry{DetailData.String(): merged}
		}
	}
	return e.pushOperation(ctx, b, tenant, push)
}

// UpdateOperationBulk appends every item as an event of the operation named
// by items[0]. Each item's masterData is copied onto the header key by key:
// evDetData is merged, any other known field is overwritten.
func (e *Engine) UpdateOperationBulk(ctx context.Context, tenant int, items ...Parameters) (err error) {
	id := firstID(items, ProcessID)
	ctx, end := e.begin(ctx, "UpdateOperationBulk", Operations, tenant, id)
	defer end(&err)

	if len(items) == 0 {
		return NewInvalidArgument(msgAtLeastOneItem)
	}
	for _, item := range items {
		if err := checkUpdate(KindOperation, id, item); err != nil {
			return err
		}
	}
	b, err := e.reg.Lookup(Operations)
	if err != nil {
		return err
	}

	push := Push{ID: id, At: e.stamp(), Set: Entry{}}
	var detail *string
	for _, item := range items {
		push.Events = append(push.Events, item.event())
		md := item.Get(MasterData)
		if md == "" {
			continue
		}
		if detail == nil {
			current, err := b.Store.Get(ctx, Operations, tenant, id, query.Sliced(1))
			if err != nil {
				return updateFailure(id, err)
			}
			s := current.Header.String(DetailData.String())
			detail = &s
		}
		e.copyToMaster(md, detail, push.Set)
	}
	if len(push.Set) == 0 {
		push.Set = nil
	}
	return e.pushOperation(ctx, b, tenant, push)
}

func (e *Engine) pushOperation(ctx context.Context, b Binding, tenant int, push Push) error {
	if err := b.Store.Push(ctx, Operations, tenant, push); err != nil {
		return updateFailure(push.ID, err)
	}
	full, err := b.Store.Get(ctx, Operations, tenant, push.ID, query.Full())
	if err != nil {
		return withReason(ReasonSelect, err)
	}
	e.log.Debug("operation updated", "tenant", tenant, "id", push.ID, "version", full.Version)
	return e.mirror(ctx, b, ReasonUpdate, full)
}

// mergeDetailData overlays the masterData object onto the current evDetData
// and returns the canonical result.
func (e *Engine) mergeDetailData(current, masterData string) (string, bool) {
	master, err := canon.DecodeObject([]byte(masterData))
	if err != nil {
		e.log.Warn("masterData is not a JSON object, ignored", "error", err)
		return "", false
	}
	base := e.detailObject(current)
	for k, v := range master {
		base[k] = v
	}
	return e.encodeDetail(base)
}

// copyToMaster applies one masterData object to set. detail tracks the
// evDetData value across items of the same batch.
func (e *Engine) copyToMaster(masterData string, detail *string, set Entry) {
	master, err := canon.DecodeObject([]byte(masterData))
	if err != nil {
		e.log.Warn("masterData is not a JSON object, ignored", "error", err)
		return
	}
	keys := make([]string, 0, len(master))
	for k := range master {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		f, ok := ParseField(key)
		if !ok || f == MasterData {
			e.log.Warn("masterData key is not a ledger field, ignored", "key", key)
			continue
		}
		text, ok := e.textOf(master[key])
		if !ok {
			continue
		}
		if f != DetailData {
			set[key] = text
			continue
		}
		merged, ok := e.mergeDetailData(*detail, text)
		if !ok {
			continue
		}
		*detail = merged
		set[key] = merged
	}
}

func (e *Engine) detailObject(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	obj, err := canon.DecodeObject([]byte(raw))
	if err != nil {
		e.log.Warn("stored evDetData is not a JSON object, replaced", "error", err)
		return map[string]any{}
	}
	return obj
}

func (e *Engine) encodeDetail(obj map[string]any) (string, bool) {
	out, err := canon.MarshalVerbatim(obj)
	if err != nil {
		e.log.Warn("evDetData cannot be encoded, ignored", "error", err)
		return "", false
	}
	return string(out), true
}

// textOf returns a string value as is and anything else as canonical JSON.
func (e *Engine) textOf(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	out, err := canon.MarshalVerbatim(v)
	if err != nil {
		e.log.Warn("masterData value cannot be encoded, ignored", "error", err)
		return "", false
	}
	return string(out), true
}

// GetOperation reads one operation. The default projection returns the
// header and the last two events.
func (e *Engine) GetOperation(ctx context.Context, tenant int, id string, p query.Projection) (doc *Document, err error) {
	ctx, end := e.begin(ctx, "GetOperation", Operations, tenant, id)
	defer end(&err)

	b, err := e.reg.Lookup(Operations)
	if err != nil {
		return nil, err
	}
	doc, err = b.Store.Get(ctx, Operations, tenant, id, b.Projection(p))
	if err != nil {
		return nil, withReason(ReasonSelect, err)
	}
	return doc, nil
}

// ListOperations returns the operations matching q in deterministic order.
// Queries pinned to traceability operations are answered by the search
// index and resolved against the primary store in the index's order.
func (e *Engine) ListOperations(ctx context.Context, tenant int, q query.Query) (docs []*Document, err error) {
	ctx, end := e.begin(ctx, "ListOperations", Operations, tenant, "")
	defer end(&err)

	if err := query.Validate(q); err != nil {
		return nil, &Error{Code: CodeInvalidArgument, Message: err.Error(), Cause: err}
	}
	b, err := e.reg.Lookup(Operations)
	if err != nil {
		return nil, err
	}
	q.Projection = b.Projection(q.Projection)
	if b.Index != nil && query.Targets(q.Filter, ProcessType.String(), ProcessTraceability) {
		return e.gather(ctx, b, tenant, q)
	}
	docs, err = b.Store.Find(ctx, Operations, tenant, q)
	if err != nil {
		return nil, withReason(ReasonSelect, err)
	}
	return docs, nil
}

// ExistsOperation reports whether id is stored for tenant.
func (e *Engine) ExistsOperation(ctx context.Context, tenant int, id string) (ok bool, err error) {
	ctx, end := e.begin(ctx, "ExistsOperation", Operations, tenant, id)
	defer end(&err)
	return e.exists(ctx, Operations, tenant, id)
}

// CountOperations counts the tenant's operations.
func (e *Engine) CountOperations(ctx context.Context, tenant int) (n int64, err error) {
	ctx, end := e.begin(ctx, "CountOperations", Operations, tenant, "")
	defer end(&err)
	return e.count(ctx, Operations, tenant)
}

func (e *Engine) exists(ctx context.Context, c Collection, tenant int, id string) (bool, error) {
	b, err := e.reg.Lookup(c)
	if err != nil {
		return false, err
	}
	ok, err := b.Store.Exists(ctx, c, tenant, id)
	if err != nil {
		return false, withReason(ReasonExists, err)
	}
	return ok, nil
}

func (e *Engine) count(ctx context.Context, c Collection, tenant int) (int64, error) {
	b, err := e.reg.Lookup(c)
	if err != nil {
		return 0, err
	}
	n, err := b.Store.Count(ctx, c, tenant, nil)
	if err != nil {
		return 0, withReason(ReasonSelect, err)
	}
	return n, nil
}

// checkUpdate validates an update item against its kind and target id.
func checkUpdate(kind Kind, id string, params Parameters) error {
	if err := params.check(kind); err != nil {
		return err
	}
	target := params.Get(kind.idField())
	if kind == KindOperation && target != id {
		return NewInvalidArgument("every item must target operation %s", id)
	}
	if _, err := guid.Parse(id); err != nil {
		return &Error{Code: CodeInvalidArgument, Message: err.Error(), Cause: err}
	}
	return nil
}

// updateFailure maps a missing target to the update-not-found error and
// stamps the update reason on anything else.
func updateFailure(id string, err error) error {
	if IsNotFound(err) {
		return errUpdateNotFound(id, err)
	}
	return withReason(ReasonUpdate, err)
}

func firstID(items []Parameters, f Field) string {
	if len(items) == 0 {
		return ""
	}
	return items[0].Get(f)
}
