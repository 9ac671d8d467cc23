// Package canon writes deterministic JSON for ledger payloads.
//
// Marshal follows RFC 8785 key ordering (UTF-16 code units), NFC normalizes
// strings, never escapes HTML and writes no insignificant whitespace. It is
// the form used for golden snapshots and command output.
//
// MarshalVerbatim orders keys the same way but keeps every string byte for
// byte; stored ledger payloads use it so history reads back exactly as it
// was written.
//
// Go floats are rejected. Numbers travel as int, int64 or json.Number, and a
// json.Number is written as its literal text, so a decode/encode round trip
// never changes a stored value.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// Marshal returns the canonical encoding of v.
func Marshal(v any) ([]byte, error) {
	e := encoder{nfc: true}
	if err := e.encode(v); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// MarshalVerbatim returns the encoding of v with sorted keys and strings
// left exactly as given.
func MarshalVerbatim(v any) ([]byte, error) {
	var e encoder
	if err := e.encode(v); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// MustString is Marshal for values known to be encodable, such as
// documents read back from a store.
func MustString(v any) string {
	b, err := Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("canon: %v", err))
	}
	return string(b)
}

// Decode parses data keeping numbers as json.Number.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

// DecodeObject parses data that must be a JSON object.
func DecodeObject(data []byte) (map[string]any, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", v)
	}
	return obj, nil
}

type encoder struct {
	buf bytes.Buffer
	nfc bool
}

func (e *encoder) encode(v any) error {
	buf := &e.buf
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		e.writeString(val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case json.Number:
		if !isNumber(val) {
			return fmt.Errorf("invalid number %q", val.String())
		}
		buf.WriteString(val.String())
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encode(elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case []map[string]any:
		arr := make([]any, len(val))
		for i := range val {
			arr[i] = val[i]
		}
		return e.encode(arr)
	case []string:
		arr := make([]any, len(val))
		for i := range val {
			arr[i] = val[i]
		}
		return e.encode(arr)
	case map[string]any:
		buf.WriteByte('{')
		for i, k := range sortedKeys(val) {
			if i > 0 {
				buf.WriteByte(',')
			}
			e.writeString(k)
			buf.WriteByte(':')
			if err := e.encode(val[k]); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case map[string]string:
		obj := make(map[string]any, len(val))
		for k, s := range val {
			obj[k] = s
		}
		return e.encode(obj)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// isNumber reports whether n is a JSON number literal.
func isNumber(n json.Number) bool {
	s := n.String()
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return false
	}
	return json.Valid([]byte(s))
}

func (e *encoder) writeString(s string) {
	const hex = "0123456789abcdef"
	buf := &e.buf
	if e.nfc {
		s = norm.NFC.String(s)
	}
	buf.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hex[r>>4])
			buf.WriteByte(hex[r&0xF])
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

// sortedKeys orders keys by UTF-16 code units.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return lessUTF16(keys[i], keys[j])
	})
	return keys
}

func lessUTF16(a, b string) bool {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return len(ua) < len(ub)
}
