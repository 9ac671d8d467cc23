package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/ledger/internal/guid"
	"github.com/roach88/ledger/internal/query"
)

// Kind is the ledger kind a document belongs to.
type Kind uint8

const (
	KindOperation Kind = iota + 1
	KindUnit
	KindObjectGroup
)

// Default slice widths for sliced reads.
const (
	OperationSlice = 2
	LifecycleSlice = 1
)

var kindNames = map[Kind]string{
	KindOperation:   "operation",
	KindUnit:        "unit",
	KindObjectGroup: "objectgroup",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind accepts "operation", "unit" and "objectgroup" (any case).
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == strings.ToLower(name) {
			return k, nil
		}
	}
	return 0, NewInvalidArgument("unknown ledger kind %q", name)
}

// IsLifecycle reports whether k is a lifecycle kind.
func (k Kind) IsLifecycle() bool { return k == KindUnit || k == KindObjectGroup }

// Schema is the closed field set documents of this kind accept.
func (k Kind) Schema() Schema {
	if k == KindOperation {
		return operationSchema
	}
	return lifecycleSchema
}

func (k Kind) idField() Field {
	if k == KindOperation {
		return ProcessID
	}
	return ObjectID
}

// Parameters is one caller-supplied event.
type Parameters map[Field]string

// NewParameters returns an empty parameter set.
func NewParameters() Parameters { return Parameters{} }

// ParametersFromWire builds Parameters from wire-named values.
func ParametersFromWire(values map[string]string) (Parameters, error) {
	p := make(Parameters, len(values))
	for name, v := range values {
		f, ok := ParseField(name)
		if !ok {
			return nil, NewInvalidArgument("unknown field %q", name)
		}
		p[f] = v
	}
	return p, nil
}

func (p Parameters) Get(f Field) string { return p[f] }

// Set assigns f and returns p for chaining.
func (p Parameters) Set(f Field, v string) Parameters {
	p[f] = v
	return p
}

func (p Parameters) check(kind Kind) error {
	schema := kind.Schema()
	var unknown []string
	for f := range p {
		if !schema[f] {
			unknown = append(unknown, f.String())
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return NewInvalidArgument("fields not allowed for %s: %s", kind, strings.Join(unknown, ", "))
	}
	return nil
}

// header returns every supplied field except masterData.
func (p Parameters) header() Entry {
	e := make(Entry, len(p))
	for f, v := range p {
		if f == MasterData {
			continue
		}
		e[f.String()] = v
	}
	return e
}

// event returns the stored form of p as an appended event.
func (p Parameters) event() Entry {
	e := p.header()
	for _, f := range alwaysStripped {
		delete(e, f.String())
	}
	for _, f := range strippedWhenEmpty {
		if p[f] == "" {
			delete(e, f.String())
		}
	}
	return e
}

// Entry is a stored header or event keyed by wire name.
type Entry map[string]any

// String returns the string value at key, or "".
func (e Entry) String(key string) string {
	s, _ := e[key].(string)
	return s
}

func (e Entry) clone() Entry {
	cp := make(Entry, len(e))
	for k, v := range e {
		cp[k] = v
	}
	return cp
}

// Document is one ledger record: an immutable identity, a header and an
// append-only event list.
type Document struct {
	ID                string
	Tenant            int
	Version           int64
	LastPersistedDate string
	Kind              Kind
	Header            Entry
	Events            []Entry
}

// NewDocument folds params into a new document's header. The id comes from
// the process id for operations and the object id for lifecycles and must be
// a valid GUID.
func NewDocument(tenant int, kind Kind, params Parameters) (*Document, error) {
	if _, ok := kindNames[kind]; !ok {
		return nil, NewInvalidArgument("unknown ledger kind %d", uint8(kind))
	}
	if err := params.check(kind); err != nil {
		return nil, err
	}
	id := params.Get(kind.idField())
	if id == "" {
		return nil, NewInvalidArgument("%s is required", kind.idField())
	}
	if _, err := guid.Parse(id); err != nil {
		return nil, &Error{Code: CodeInvalidArgument, Message: err.Error(), Cause: err}
	}
	return &Document{
		ID:     id,
		Tenant: tenant,
		Kind:   kind,
		Header: params.header(),
		Events: []Entry{},
	}, nil
}

// Append adds events in order.
func (d *Document) Append(events ...Entry) {
	d.Events = append(d.Events, events...)
}

// ProcessType is the header's process type tag.
func (d *Document) ProcessType() string { return d.Header.String(ProcessType.String()) }

// DefaultProjection is the kind's sliced read.
func (d *Document) DefaultProjection() query.Projection {
	if d.Kind == KindOperation {
		return query.Sliced(OperationSlice)
	}
	return query.Sliced(LifecycleSlice)
}

// Entries returns the header followed by the events selected by p, in
// append order.
func (d *Document) Entries(p query.Projection) []Entry {
	p = p.Or(d.DefaultProjection())
	events := d.Events
	if !p.IsFull() && len(events) > p.Last() {
		events = events[len(events)-p.Last():]
	}
	out := make([]Entry, 0, len(events)+1)
	out = append(out, d.Header)
	return append(out, events...)
}

// Map returns the document in its wire shape.
func (d *Document) Map() map[string]any {
	m := make(map[string]any, len(d.Header)+5)
	for k, v := range d.Header {
		m[k] = v
	}
	m[KeyID] = d.ID
	m[KeyTenant] = d.Tenant
	m[KeyVersion] = d.Version
	m[KeyLastPersistedDate] = d.LastPersistedDate
	events := make([]any, len(d.Events))
	for i, ev := range d.Events {
		events[i] = map[string]any(ev)
	}
	m[KeyEvents] = events
	return m
}

// Clone returns a deep copy of the header and event list.
func (d *Document) Clone() *Document {
	cp := *d
	cp.Header = d.Header.clone()
	cp.Events = make([]Entry, len(d.Events))
	for i, ev := range d.Events {
		cp.Events[i] = ev.clone()
	}
	return &cp
}
