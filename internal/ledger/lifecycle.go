package ledger

import (
	"context"
	"fmt"

	"github.com/roach88/ledger/internal/guid"
	"github.com/roach88/ledger/internal/query"
)

// LifecycleBatch is the set of events appended to one committed lifecycle
// by UpdateCommittedBulk.
type LifecycleBatch struct {
	ID     string
	Events []Parameters
}

// CreateLifecycle inserts a staging lifecycle for the object named by
// params. The item's process id must be operationID.
func (e *Engine) CreateLifecycle(ctx context.Context, tenant int, kind Kind, operationID string, params Parameters) (err error) {
	staging, berr := e.reg.Staging(kind)
	ctx, end := e.begin(ctx, "CreateLifecycle", staging.Collection, tenant, params.Get(ObjectID))
	defer end(&err)
	if berr != nil {
		return berr
	}
	return e.createLifecycle(ctx, staging, tenant, operationID, []Parameters{params})
}

// CreateLifecycleBulk inserts one staging lifecycle: items[0] is the header
// and the remaining items become its initial events.
func (e *Engine) CreateLifecycleBulk(ctx context.Context, tenant int, kind Kind, operationID string, items ...Parameters) (err error) {
	staging, berr := e.reg.Staging(kind)
	ctx, end := e.begin(ctx, "CreateLifecycleBulk", staging.Collection, tenant, firstID(items, ObjectID))
	defer end(&err)
	if berr != nil {
		return berr
	}
	return e.createLifecycle(ctx, staging, tenant, operationID, items)
}

func (e *Engine) createLifecycle(ctx context.Context, staging Binding, tenant int, operationID string, items []Parameters) error {
	if len(items) == 0 {
		return NewInvalidArgument(msgAtLeastOneItem)
	}
	if items[0].Get(ProcessID) != operationID {
		return NewInvalidArgument(msgWrongOpCreate)
	}
	doc, err := NewDocument(tenant, staging.Kind, items[0])
	if err != nil {
		return err
	}
	for _, item := range items[1:] {
		if err := item.check(staging.Kind); err != nil {
			return err
		}
		doc.Append(item.event())
	}
	doc.LastPersistedDate = e.stamp()
	if err := staging.Store.Insert(ctx, staging.Collection, doc); err != nil {
		return withReason(ReasonCreation, err)
	}
	e.log.Debug("lifecycle staged", "collection", staging.Collection.String(), "tenant", tenant, "id", doc.ID)
	return nil
}

// UpdateLifecycle appends items to the object's staging lifecycle. When the
// object is already committed and has no staging row, one is opened first
// by copying the committed header with evTypeProc UPDATE and no events.
// Two processes racing to open the same row see exactly one success; the
// loser fails with CodeAlreadyExists.
func (e *Engine) UpdateLifecycle(ctx context.Context, tenant int, kind Kind, operationID string, items ...Parameters) (err error) {
	staging, berr := e.reg.Staging(kind)
	ctx, end := e.begin(ctx, "UpdateLifecycle", staging.Collection, tenant, firstID(items, ObjectID))
	defer end(&err)
	if berr != nil {
		return berr
	}
	committed, err := e.reg.Committed(kind)
	if err != nil {
		return err
	}

	id, err := checkLifecycleItems(kind, operationID, items)
	if err != nil {
		return err
	}
	if err := e.openStaging(ctx, staging, committed, tenant, id, items[0].Get(ProcessType)); err != nil {
		return err
	}
	push := Push{ID: id, Events: events(items), At: e.stamp()}
	if err := staging.Store.Push(ctx, staging.Collection, tenant, push); err != nil {
		return updateFailure(id, err)
	}
	return nil
}

// UpdateCommittedLifecycle appends items directly to the committed
// lifecycle, bypassing staging.
func (e *Engine) UpdateCommittedLifecycle(ctx context.Context, tenant int, kind Kind, operationID string, items ...Parameters) (err error) {
	committed, berr := e.reg.Committed(kind)
	ctx, end := e.begin(ctx, "UpdateCommittedLifecycle", committed.Collection, tenant, firstID(items, ObjectID))
	defer end(&err)
	if berr != nil {
		return berr
	}
	if !kind.IsLifecycle() {
		return NewInvalidArgument("%s is not a lifecycle kind", kind)
	}
	id, err := checkLifecycleItems(kind, operationID, items)
	if err != nil {
		return err
	}
	push := Push{ID: id, Events: events(items), At: e.stamp()}
	if err := committed.Store.Push(ctx, committed.Collection, tenant, push); err != nil {
		return updateFailure(id, err)
	}
	return nil
}

func (e *Engine) openStaging(ctx context.Context, staging, committed Binding, tenant int, id, processType string) error {
	prod, err := committed.Store.Get(ctx, committed.Collection, tenant, id, query.Sliced(1))
	switch {
	case IsNotFound(err):
		if processType == ProcessUpdate {
			return errUpdateNotFound(id, err)
		}
		return nil
	case err != nil:
		return withReason(ReasonSelect, err)
	}

	exists, err := staging.Store.Exists(ctx, staging.Collection, tenant, id)
	if err != nil {
		return withReason(ReasonExists, err)
	}
	if exists {
		return nil
	}
	row := &Document{
		ID:                prod.ID,
		Tenant:            tenant,
		Version:           prod.Version,
		LastPersistedDate: e.stamp(),
		Kind:              prod.Kind,
		Header:            prod.Header.clone(),
		Events:            []Entry{},
	}
	row.Header[ProcessType.String()] = ProcessUpdate
	if err := staging.Store.Insert(ctx, staging.Collection, row); err != nil {
		if IsAlreadyExists(err) {
			e.metrics.ObserveStagingConflict(staging.Collection.String())
			e.log.Info("staging row already held by another process", "collection", staging.Collection.String(), "tenant", tenant, "id", id)
		}
		return withReason(ReasonCreation, err)
	}
	return nil
}

// CommitLifecycle appends the staged events to the committed lifecycle,
// stamping each with lastPersistedDate, and then removes the staging row
// unless the row was opened by ingest or carried no events.
func (e *Engine) CommitLifecycle(ctx context.Context, tenant int, kind Kind, staged *Document) (err error) {
	committed, berr := e.reg.Committed(kind)
	ctx, end := e.begin(ctx, "CommitLifecycle", committed.Collection, tenant, docID(staged))
	defer end(&err)
	if berr != nil {
		return berr
	}
	return e.commit(ctx, tenant, kind, staged)
}

// CommitStaged reads the full staging lifecycle id and commits it.
func (e *Engine) CommitStaged(ctx context.Context, tenant int, kind Kind, id string) (err error) {
	staging, berr := e.reg.Staging(kind)
	ctx, end := e.begin(ctx, "CommitStaged", staging.Collection, tenant, id)
	defer end(&err)
	if berr != nil {
		return berr
	}
	staged, err := staging.Store.Get(ctx, staging.Collection, tenant, id, query.Full())
	if err != nil {
		return withReason(ReasonSelect, err)
	}
	return e.commit(ctx, tenant, kind, staged)
}

func (e *Engine) commit(ctx context.Context, tenant int, kind Kind, staged *Document) error {
	if staged == nil {
		return NewInvalidArgument("no staged lifecycle to commit")
	}
	staging, err := e.reg.Staging(kind)
	if err != nil {
		return err
	}
	committed, err := e.reg.Committed(kind)
	if err != nil {
		return err
	}
	at := e.stamp()
	push := Push{ID: staged.ID, Events: stamped(staged.Events, at), At: at}
	if err := committed.Store.Push(ctx, committed.Collection, tenant, push); err != nil {
		return updateFailure(staged.ID, err)
	}
	if len(staged.Events) == 0 || staged.ProcessType() == ProcessIngest {
		return nil
	}
	if _, err := staging.Store.Delete(ctx, staging.Collection, tenant, staged.ID); err != nil {
		return withReason(ReasonDelete, err)
	}
	e.log.Debug("lifecycle committed", "collection", committed.Collection.String(), "tenant", tenant, "id", staged.ID, "events", len(staged.Events))
	return nil
}

// PromoteLifecycle inserts a staged lifecycle into the committed collection
// for the first time, stamping the document and each event with
// lastPersistedDate.
func (e *Engine) PromoteLifecycle(ctx context.Context, tenant int, kind Kind, staged *Document) (err error) {
	committed, berr := e.reg.Committed(kind)
	ctx, end := e.begin(ctx, "PromoteLifecycle", committed.Collection, tenant, docID(staged))
	defer end(&err)
	if berr != nil {
		return berr
	}
	if !kind.IsLifecycle() {
		return NewInvalidArgument("%s is not a lifecycle kind", kind)
	}
	if staged == nil {
		return NewInvalidArgument("no staged lifecycle to promote")
	}
	at := e.stamp()
	doc := staged.Clone()
	doc.Tenant = tenant
	doc.Kind = kind
	doc.LastPersistedDate = at
	doc.Events = stamped(staged.Events, at)
	if err := committed.Store.Insert(ctx, committed.Collection, doc); err != nil {
		return withReason(ReasonCreation, err)
	}
	return nil
}

// UpdateCommittedBulk appends each batch to its committed lifecycle in one
// unordered pass. Events without a date get the current time. Fewer
// modified documents than batches is an error.
func (e *Engine) UpdateCommittedBulk(ctx context.Context, tenant int, kind Kind, batches []LifecycleBatch) (err error) {
	committed, berr := e.reg.Committed(kind)
	ctx, end := e.begin(ctx, "UpdateCommittedBulk", committed.Collection, tenant, "")
	defer end(&err)
	if berr != nil {
		return berr
	}
	if !kind.IsLifecycle() {
		return NewInvalidArgument("%s is not a lifecycle kind", kind)
	}
	if len(batches) == 0 {
		return NewInvalidArgument(msgAtLeastOneItem)
	}
	at := e.stamp()
	pushes := make([]Push, 0, len(batches))
	for _, batch := range batches {
		if _, err := guid.Parse(batch.ID); err != nil {
			return &Error{Code: CodeInvalidArgument, Message: err.Error(), Cause: err}
		}
		evs := make([]Entry, 0, len(batch.Events))
		for _, item := range batch.Events {
			if err := item.check(kind); err != nil {
				return err
			}
			ev := item.event()
			if ev.String(EventDateTime.String()) == "" {
				ev[EventDateTime.String()] = at
			}
			ev[KeyLastPersistedDate] = at
			evs = append(evs, ev)
		}
		pushes = append(pushes, Push{ID: batch.ID, Events: evs, At: at})
	}
	n, err := committed.Store.PushMany(ctx, committed.Collection, tenant, pushes)
	if err != nil {
		return withReason(ReasonUpdate, err)
	}
	if n != int64(len(batches)) {
		return &Error{
			Code:      CodeUncategorized,
			Reason:    ReasonUpdate,
			ClassName: "PushMany",
			Message:   fmt.Sprintf("bulk update modified %d documents, expected %d", n, len(batches)),
		}
	}
	return nil
}

// FinalizeStaging removes a staging lifecycle once its workflow is done.
func (e *Engine) FinalizeStaging(ctx context.Context, tenant int, kind Kind, id string) (err error) {
	staging, berr := e.reg.Staging(kind)
	ctx, end := e.begin(ctx, "FinalizeStaging", staging.Collection, tenant, id)
	defer end(&err)
	if berr != nil {
		return berr
	}
	n, err := staging.Store.Delete(ctx, staging.Collection, tenant, id)
	if err != nil {
		return withReason(ReasonDelete, err)
	}
	if n == 0 {
		return &Error{Code: CodeNotFound, Reason: ReasonDelete, Message: "not found: " + id}
	}
	return nil
}

// RollbackLifecycle deletes the lifecycle id when its header or one of its
// events belongs to operationID.
func (e *Engine) RollbackLifecycle(ctx context.Context, tenant int, kind Kind, staging bool, operationID, id string) (err error) {
	b, berr := e.reg.Lifecycle(kind, staging)
	ctx, end := e.begin(ctx, "RollbackLifecycle", b.Collection, tenant, id)
	defer end(&err)
	if berr != nil {
		return berr
	}
	n, err := b.Store.DeleteByOperation(ctx, b.Collection, tenant, id, operationID)
	if err != nil {
		return withReason(ReasonRollback, err)
	}
	if n != 1 {
		return &Error{Code: CodeNotFound, Reason: ReasonRollback, Message: "not found: " + id}
	}
	e.log.Info("lifecycle rolled back", "collection", b.Collection.String(), "tenant", tenant, "id", id, "operation", operationID)
	return nil
}

// RollbackAllForOperation deletes every staging lifecycle touched by
// operationID and returns how many were removed.
func (e *Engine) RollbackAllForOperation(ctx context.Context, tenant int, kind Kind, operationID string) (n int64, err error) {
	staging, berr := e.reg.Staging(kind)
	ctx, end := e.begin(ctx, "RollbackAllForOperation", staging.Collection, tenant, operationID)
	defer end(&err)
	if berr != nil {
		return 0, berr
	}
	n, err = staging.Store.DeleteAllByOperation(ctx, staging.Collection, tenant, operationID)
	if err != nil {
		return 0, withReason(ReasonRollback, err)
	}
	if n == 0 {
		return 0, &Error{Code: CodeNotFound, Reason: ReasonRollback, Message: "not found: " + operationID}
	}
	e.log.Info("operation rolled back", "collection", staging.Collection.String(), "tenant", tenant, "operation", operationID, "deleted", n)
	return n, nil
}

// GetLifecycle reads one lifecycle. The default projection returns the
// header and the last event.
func (e *Engine) GetLifecycle(ctx context.Context, tenant int, kind Kind, staging bool, id string, p query.Projection) (doc *Document, err error) {
	b, berr := e.reg.Lifecycle(kind, staging)
	ctx, end := e.begin(ctx, "GetLifecycle", b.Collection, tenant, id)
	defer end(&err)
	if berr != nil {
		return nil, berr
	}
	doc, err = b.Store.Get(ctx, b.Collection, tenant, id, b.Projection(p))
	if err != nil {
		return nil, withReason(ReasonSelect, err)
	}
	return doc, nil
}

// GetLifecycleByOperation reads lifecycle id only if operationID touched it.
func (e *Engine) GetLifecycleByOperation(ctx context.Context, tenant int, kind Kind, staging bool, operationID, id string, p query.Projection) (doc *Document, err error) {
	b, berr := e.reg.Lifecycle(kind, staging)
	ctx, end := e.begin(ctx, "GetLifecycleByOperation", b.Collection, tenant, id)
	defer end(&err)
	if berr != nil {
		return nil, berr
	}
	docs, err := b.Store.Find(ctx, b.Collection, tenant, query.Query{
		Filter: query.And{Predicates: []query.Predicate{
			query.Eq{Field: query.FieldID, Value: id},
			TouchedBy(operationID),
		}},
		Limit:      1,
		Projection: b.Projection(p),
	})
	if err != nil {
		return nil, withReason(ReasonSelect, err)
	}
	if len(docs) == 0 {
		return nil, &Error{Code: CodeNotFound, Reason: ReasonSelect, Message: "not found: " + id}
	}
	return docs[0], nil
}

// ListLifecycles returns the lifecycles matching q in deterministic order.
func (e *Engine) ListLifecycles(ctx context.Context, tenant int, kind Kind, staging bool, q query.Query) (docs []*Document, err error) {
	b, berr := e.reg.Lifecycle(kind, staging)
	ctx, end := e.begin(ctx, "ListLifecycles", b.Collection, tenant, "")
	defer end(&err)
	if berr != nil {
		return nil, berr
	}
	if err := query.Validate(q); err != nil {
		return nil, &Error{Code: CodeInvalidArgument, Message: err.Error(), Cause: err}
	}
	q.Projection = b.Projection(q.Projection)
	docs, err = b.Store.Find(ctx, b.Collection, tenant, q)
	if err != nil {
		return nil, withReason(ReasonSelect, err)
	}
	return docs, nil
}

func (e *Engine) ExistsLifecycle(ctx context.Context, tenant int, kind Kind, staging bool, id string) (ok bool, err error) {
	b, berr := e.reg.Lifecycle(kind, staging)
	ctx, end := e.begin(ctx, "ExistsLifecycle", b.Collection, tenant, id)
	defer end(&err)
	if berr != nil {
		return false, berr
	}
	return e.exists(ctx, b.Collection, tenant, id)
}

func (e *Engine) CountLifecycles(ctx context.Context, tenant int, kind Kind, staging bool) (n int64, err error) {
	b, berr := e.reg.Lifecycle(kind, staging)
	ctx, end := e.begin(ctx, "CountLifecycles", b.Collection, tenant, "")
	defer end(&err)
	if berr != nil {
		return 0, berr
	}
	return e.count(ctx, b.Collection, tenant)
}

// TouchedBy matches documents whose header or any event carries
// operationID as its process id.
func TouchedBy(operationID string) query.Predicate {
	return query.Or{Predicates: []query.Predicate{
		query.Eq{Field: ProcessID.String(), Value: operationID},
		query.EventEq{Field: ProcessID.String(), Value: operationID},
	}}
}

// checkLifecycleItems validates update items and returns the lifecycle id,
// the first item's object id.
func checkLifecycleItems(kind Kind, operationID string, items []Parameters) (string, error) {
	if len(items) == 0 {
		return "", NewInvalidArgument(msgAtLeastOneItem)
	}
	id := items[0].Get(ObjectID)
	if _, err := guid.Parse(id); err != nil {
		return "", &Error{Code: CodeInvalidArgument, Message: err.Error(), Cause: err}
	}
	for _, item := range items {
		if err := item.check(kind); err != nil {
			return "", err
		}
		if item.Get(ProcessID) != operationID {
			return "", NewInvalidArgument(msgWrongOpUpdate)
		}
		if target := item.Get(ObjectID); target != "" && target != id {
			return "", NewInvalidArgument("every item must target lifecycle %s", id)
		}
	}
	return id, nil
}

func events(items []Parameters) []Entry {
	out := make([]Entry, len(items))
	for i, item := range items {
		out[i] = item.event()
	}
	return out
}

// stamped copies evs, setting lastPersistedDate on each.
func stamped(evs []Entry, at string) []Entry {
	out := make([]Entry, len(evs))
	for i, ev := range evs {
		cp := ev.clone()
		cp[KeyLastPersistedDate] = at
		out[i] = cp
	}
	return out
}

func docID(doc *Document) string {
	if doc == nil {
		return ""
	}
	return doc.ID
}
