package store

import (
	"encoding/json"
	"fmt"

	"github.com/ankittk/devcrew/pkg/models"
)

// The SQL backends keep list and map columns as JSON text. These helpers are
// shared so every backend encodes them the same way.

// EncodeJSON marshals v, mapping nil maps and slices to their empty JSON form.
func EncodeJSON(v any) (string, error) {
	switch x := v.(type) {
	case map[string]any:
		if x == nil {
			return "{}", nil
		}
	case []string:
		if x == nil {
			return "[]", nil
		}
	case []models.ContextEntry:
		if x == nil {
			return "[]", nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return string(b), nil
}

// DecodeMap parses a JSON object column. Empty input yields an empty map.
func DecodeMap(s string) (map[string]any, error) {
	out := map[string]any{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode map: %w", err)
	}
	return out, nil
}

// DecodeStrings parses a JSON string array column.
func DecodeStrings(s string) ([]string, error) {
	if s == "" || s == "null" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}

// DecodeContext parses a JSON context window column.
func DecodeContext(s string) ([]models.ContextEntry, error) {
	if s == "" || s == "null" {
		return nil, nil
	}
	var out []models.ContextEntry
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	return out, nil
}

// CloneState returns a deep enough copy of st for callers that keep it.
func CloneState(st *AgentState) *AgentState {
	if st == nil {
		return nil
	}
	cp := *st
	if st.CurrentTask != nil {
		id := *st.CurrentTask
		cp.CurrentTask = &id
	}
	cp.Memory = make(map[string]any, len(st.Memory))
	for k, v := range st.Memory {
		cp.Memory[k] = v
	}
	cp.Context = append([]models.ContextEntry(nil), st.Context...)
	return &cp
}
