package ledger

import (
	"fmt"

	"github.com/roach88/ledger/internal/canon"
)

// MarshalEntry encodes a header or event for storage, keys sorted.
func MarshalEntry(e Entry) (string, error) {
	data, err := canon.MarshalVerbatim(map[string]any(e))
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}
	return string(data), nil
}

// MarshalEntries encodes an event list for storage.
func MarshalEntries(events []Entry) (string, error) {
	list := make([]any, len(events))
	for i, ev := range events {
		list[i] = map[string]any(ev)
	}
	data, err := canon.MarshalVerbatim(list)
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	return string(data), nil
}

// UnmarshalEntry decodes a stored header or event.
func UnmarshalEntry(data []byte) (Entry, error) {
	obj, err := canon.DecodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return Entry(obj), nil
}

// UnmarshalEntries decodes a stored event list. A null list is empty.
func UnmarshalEntries(data []byte) ([]Entry, error) {
	v, err := canon.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}
	if v == nil {
		return []Entry{}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("unmarshal events: expected array, got %T", v)
	}
	events := make([]Entry, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unmarshal events: item %d is %T, not an object", i, item)
		}
		events[i] = Entry(obj)
	}
	return events, nil
}
