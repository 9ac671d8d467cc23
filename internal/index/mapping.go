package index

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed mapping.cue
var mappingCUE []byte

// FieldType is the indexed type of a field.
type FieldType string

const (
	Keyword FieldType = "keyword"
	Long    FieldType = "long"
	Date    FieldType = "date"
)

// Mapping types the fields of one index.
type Mapping struct {
	Fields    map[string]FieldType `json:"fields"`
	DetailSub map[string]FieldType `json:"evDetData"`
}

// dateLayouts are tried in order; zone-less layouts are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// MappingError reports a value that does not fit its mapped type.
type MappingError struct {
	Field string
	Type  FieldType
	Value any
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("field %s: %v is not a valid %s", e.Field, e.Value, e.Type)
}

// LoadMappings compiles the embedded CUE mapping file.
func LoadMappings() (map[string]Mapping, error) {
	return ParseMappings(mappingCUE)
}

// ParseMappings compiles CUE source holding one #Mapping per index name.
func ParseMappings(src []byte) (map[string]Mapping, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(src)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile mapping: %w", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate mapping: %w", err)
	}

	iter, err := value.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterate mapping: %w", err)
	}
	mappings := make(map[string]Mapping)
	for iter.Next() {
		var m Mapping
		if err := iter.Value().Decode(&m); err != nil {
			return nil, fmt.Errorf("decode mapping %s: %w", iter.Label(), err)
		}
		mappings[iter.Label()] = m
	}
	return mappings, nil
}

// Apply checks body against m and normalizes typed values in place: the
// top-level fields, every event, and the evDetData object of each.
func (m Mapping) Apply(body map[string]any) error {
	if err := m.applyEntry("", body); err != nil {
		return err
	}
	events, _ := body["events"].([]any)
	for i, item := range events {
		ev, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if err := m.applyEntry(fmt.Sprintf("events[%d].", i), ev); err != nil {
			return err
		}
	}
	return nil
}

func (m Mapping) applyEntry(prefix string, entry map[string]any) error {
	for field, typ := range m.Fields {
		v, ok := entry[field]
		if !ok || v == nil {
			continue
		}
		nv, err := normalize(prefix+field, typ, v)
		if err != nil {
			return err
		}
		entry[field] = nv
	}
	detail, ok := entry["evDetData"].(map[string]any)
	if !ok {
		return nil
	}
	for field, typ := range m.DetailSub {
		v, ok := detail[field]
		if !ok || v == nil {
			continue
		}
		nv, err := normalize(prefix+"evDetData."+field, typ, v)
		if err != nil {
			return err
		}
		detail[field] = nv
	}
	return nil
}

func normalize(field string, typ FieldType, v any) (any, error) {
	bad := &MappingError{Field: field, Type: typ, Value: v}
	switch typ {
	case Keyword:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, bad
	case Long:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, bad
			}
			return i, nil
		case string:
			i, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, bad
			}
			return i, nil
		}
		return nil, bad
	case Date:
		s, ok := v.(string)
		if !ok {
			return nil, bad
		}
		if s == "" {
			return s, nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC().Format(time.RFC3339Nano), nil
			}
		}
		return nil, bad
	}
	return v, nil
}
