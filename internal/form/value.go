package form

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Value holds a field's answer. It is either a scalar (text, dropdown,
// checkbox) or a list (checkbox_group, list_box). The zero Value is the
// empty scalar and marks the field as unanswered.
type Value struct {
	list  bool
	text  string
	items []string
}

// Text returns a scalar value
func Text(s string) Value {
	return Value{text: s}
}

// List returns a list value. The slice is copied.
func List(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{list: true, items: cp}
}

// IsList reports whether v holds a list
func (v Value) IsList() bool { return v.list }

// IsEmpty reports whether the value denotes an unanswered field
func (v Value) IsEmpty() bool {
	if v.list {
		return len(v.items) == 0
	}
	return v.text == ""
}

// Text returns the scalar content, or "" for lists
func (v Value) Text() string {
	if v.list {
		return ""
	}
	return v.text
}

// Items returns a copy of the list content, or nil for scalars
func (v Value) Items() []string {
	if !v.list {
		return nil
	}
	cp := make([]string, len(v.items))
	copy(cp, v.items)
	return cp
}

// Equal compares shape and content
func (v Value) Equal(o Value) bool {
	if v.list != o.list {
		return false
	}
	if !v.list {
		return v.text == o.text
	}
	if len(v.items) != len(o.items) {
		return false
	}
	for i := range v.items {
		if v.items[i] != o.items[i] {
			return false
		}
	}
	return true
}

// String renders the value for prompts and status text
func (v Value) String() string {
	if v.list {
		return strings.Join(v.items, ", ")
	}
	return v.text
}

// MarshalJSON writes a string for scalars and an array for lists
func (v Value) MarshalJSON() ([]byte, error) {
	if v.list {
		items := v.items
		if items == nil {
			items = []string{}
		}
		return json.Marshal(items)
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts a string, an array of strings, or null
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Value{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("value list: %w", err)
		}
		*v = List(items...)
		return nil
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("value: %w", err)
		}
		*v = Text(s)
		return nil
	}
}

// TimeLayout is the timestamp layout used in draft JSON
const TimeLayout = "2006-01-02 15:04:05"

// Timestamp is a time that serializes as "" when unset
type Timestamp struct {
	time.Time
}

// Now returns the current time truncated to seconds
func Now() Timestamp {
	return Timestamp{Time: time.Now().Truncate(time.Second)}
}

// MarshalJSON writes the TimeLayout form or ""
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(TimeLayout))
}

// UnmarshalJSON reads the TimeLayout form, RFC 3339, "" or null
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
	}
	t.Time = parsed
	return nil
}
