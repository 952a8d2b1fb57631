package inference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// decodeExact parses a JSON object that must carry exactly the given keys
func decodeExact(raw string, keys ...string) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("response has trailing data after the JSON object")
	}
	if obj == nil {
		return nil, fmt.Errorf("response is null")
	}

	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
		if _, ok := obj[k]; !ok {
			return nil, fmt.Errorf("response lacks key %q", k)
		}
	}
	var extra []string
	for k := range obj {
		if !want[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, fmt.Errorf("response has unexpected keys %v", extra)
	}
	return obj, nil
}

var jsonNull = []byte("null")

// decodeDocID reads a nullable string
func decodeDocID(raw json.RawMessage) (*string, error) {
	if bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("docId must be a string or null")
	}
	return &s, nil
}

func decodeString(raw json.RawMessage, key string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

// decodeStrings accepts a string or a list of strings
func decodeStrings(raw json.RawMessage, key string) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, jsonNull) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%s must be a string or a list of strings", key)
	}
	if s == "" {
		return nil, nil
	}
	return []string{s}, nil
}
