package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/ledger/internal/query"
)

// Collection names one physical ledger collection.
type Collection uint8

const (
	Operations Collection = iota + 1
	Units
	ObjectGroups
	UnitsInProcess
	ObjectGroupsInProcess
)

var collectionNames = map[Collection]string{
	Operations:            "LogbookOperation",
	Units:                 "LogbookLifeCycleUnit",
	ObjectGroups:          "LogbookLifeCycleObjectGroup",
	UnitsInProcess:        "LogbookLifeCycleUnitInProcess",
	ObjectGroupsInProcess: "LogbookLifeCycleObjectGroupInProcess",
}

// Collections lists every collection in a stable order.
func Collections() []Collection {
	return []Collection{Operations, Units, ObjectGroups, UnitsInProcess, ObjectGroupsInProcess}
}

func (c Collection) String() string {
	if name, ok := collectionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("collection(%d)", uint8(c))
}

// Kind is the ledger kind stored in c.
func (c Collection) Kind() Kind {
	switch c {
	case Operations:
		return KindOperation
	case Units, UnitsInProcess:
		return KindUnit
	case ObjectGroups, ObjectGroupsInProcess:
		return KindObjectGroup
	}
	return 0
}

// IsStaging reports whether c is an in-process collection.
func (c Collection) IsStaging() bool { return c == UnitsInProcess || c == ObjectGroupsInProcess }

// IndexName is the lower-case name used by the search index.
func (c Collection) IndexName() string { return strings.ToLower(c.String()) }

// Alias is the per-tenant search alias, "<collection>_<tenant>".
func (c Collection) Alias(tenant int) string {
	return c.IndexName() + "_" + strconv.Itoa(tenant)
}

// ParseCollection accepts a collection name in any case.
func ParseCollection(name string) (Collection, error) {
	for c, n := range collectionNames {
		if strings.EqualFold(n, name) {
			return c, nil
		}
	}
	return 0, NewInvalidArgument("unknown collection %q", name)
}

// Binding is one registry row: what a collection holds and where it lives.
type Binding struct {
	Collection Collection
	Kind       Kind
	Staging    bool
	Slice      int
	Store      DocumentStore

	// Index is set only for mirrored collections.
	Index SearchIndex
}

// Projection resolves the default projection to the collection's slice.
func (b Binding) Projection(p query.Projection) query.Projection {
	return p.Or(query.Sliced(b.Slice))
}

// Registry is the fixed table from collection to binding.
type Registry struct {
	bindings map[Collection]Binding
}

// NewRegistry binds every collection to store. Only Operations is bound to
// index.
func NewRegistry(store DocumentStore, index SearchIndex, operationSlice, lifecycleSlice int) *Registry {
	if operationSlice < 1 {
		operationSlice = OperationSlice
	}
	if lifecycleSlice < 1 {
		lifecycleSlice = LifecycleSlice
	}
	r := &Registry{bindings: make(map[Collection]Binding, len(collectionNames))}
	for _, c := range Collections() {
		b := Binding{Collection: c, Kind: c.Kind(), Staging: c.IsStaging(), Slice: lifecycleSlice, Store: store}
		if c == Operations {
			b.Slice = operationSlice
			b.Index = index
		}
		r.bindings[c] = b
	}
	return r
}

// Lookup returns the binding for c.
func (r *Registry) Lookup(c Collection) (Binding, error) {
	b, ok := r.bindings[c]
	if !ok {
		return Binding{}, NewInvalidArgument("unknown collection %d", uint8(c))
	}
	return b, nil
}

// Committed returns the store-of-record collection for a lifecycle kind.
func (r *Registry) Committed(kind Kind) (Binding, error) {
	switch kind {
	case KindUnit:
		return r.Lookup(Units)
	case KindObjectGroup:
		return r.Lookup(ObjectGroups)
	case KindOperation:
		return r.Lookup(Operations)
	}
	return Binding{}, NewInvalidArgument("unknown ledger kind %d", uint8(kind))
}

// Staging returns the in-process collection for a lifecycle kind.
func (r *Registry) Staging(kind Kind) (Binding, error) {
	switch kind {
	case KindUnit:
		return r.Lookup(UnitsInProcess)
	case KindObjectGroup:
		return r.Lookup(ObjectGroupsInProcess)
	}
	return Binding{}, NewInvalidArgument("%s has no staging collection", kind)
}

// Lifecycle returns the staging or committed collection for kind.
func (r *Registry) Lifecycle(kind Kind, staging bool) (Binding, error) {
	if !kind.IsLifecycle() {
		return Binding{}, NewInvalidArgument("%s is not a lifecycle kind", kind)
	}
	if staging {
		return r.Staging(kind)
	}
	return r.Committed(kind)
}
