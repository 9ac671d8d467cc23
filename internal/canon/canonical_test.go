package canon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_Scalars(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"int64", int64(-100), "-100"},
		{"json number", json.Number("9223372036854775807"), "9223372036854775807"},
		{"bool", true, "true"},
		{"null", nil, "null"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"html is not escaped", "<a&b>", `"<a&b>"`},
		{"control characters", "a\nb\u0001", `"a\nb\u0001"`},
		{"quote and backslash", `"\`, `"\"\\"`},
		{"line separator stays literal", "a\u2028b", "\"a\u2028b\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))
		})
	}
}

func TestMarshal_SortedNestedKeys(t *testing.T) {
	doc := map[string]any{
		"events": []any{map[string]any{"outcome": "OK", "evType": "STP"}},
		"_id":    "x",
		"evType": "PROCESS_SIP",
	}

	out, err := Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"_id":"x","evType":"PROCESS_SIP","events":[{"evType":"STP","outcome":"OK"}]}`, string(out))
}

func TestMarshal_UTF16Ordering(t *testing.T) {
	// U+10000 encodes as the surrogate pair D800 DC00, which sorts before U+E000
	obj := map[string]any{
		"\uE000":     1,
		"\U00010000": 2,
	}

	out, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(out))
}

func TestMarshal_NFC(t *testing.T) {
	out, err := Marshal("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(out))
}

func TestMarshalVerbatim_KeepsStringBytes(t *testing.T) {
	out, err := MarshalVerbatim(map[string]any{"b": "e\u0301", "a": []any{"\u212b"}})
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":[\"\u212b\"],\"b\":\"e\u0301\"}", string(out))
}

func TestMarshal_RejectsFloats(t *testing.T) {
	_, err := Marshal(map[string]any{"size": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")

	_, err = MarshalVerbatim(float32(2))
	assert.Error(t, err)
}

func TestMarshal_DecimalNumbersKeepTheirText(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"rate":1.50,"ratio":-0.5,"tiny":1e-3}`))
	require.NoError(t, err)

	for _, marshal := range []func(any) ([]byte, error){Marshal, MarshalVerbatim} {
		out, err := marshal(obj)
		require.NoError(t, err)
		assert.Equal(t, `{"rate":1.50,"ratio":-0.5,"tiny":1e-3}`, string(out))
	}
}

func TestMarshal_RejectsInvalidNumbers(t *testing.T) {
	for _, n := range []json.Number{"", "abc", "Inf", "0x10", "1.", `"1"`} {
		t.Run(string(n), func(t *testing.T) {
			_, err := Marshal(n)
			assert.Error(t, err)
		})
	}
}

func TestDecode_KeepsNumbers(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"Size": 12345678901234, "b": [1, "x"]}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234"), obj["Size"])

	out, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"Size":12345678901234,"b":[1,"x"]}`, string(out))
}

func TestDecodeObject_Errors(t *testing.T) {
	_, err := DecodeObject([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = DecodeObject([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)

	_, err = DecodeObject([]byte(`{`))
	assert.Error(t, err)
}
