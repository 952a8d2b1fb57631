package form

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Draft is the in-memory form being filled. Fields are updated in place
// and never replaced; their order is the survey order.
type Draft struct {
	FormFileName string    `json:"formFileName"`
	LastSaved    Timestamp `json:"lastSaved"`
	Fields       []*Field  `json:"fields"`
}

// Field returns the field with the given label, or nil
func (d *Draft) Field(label string) *Field {
	for _, f := range d.Fields {
		if f.Label == label {
			return f
		}
	}
	return nil
}

// Unanswered returns the unanswered fields in form order
func (d *Draft) Unanswered() []*Field {
	var out []*Field
	for _, f := range d.Fields {
		if !f.Answered() {
			out = append(out, f)
		}
	}
	return out
}

// FirstUnanswered returns the first unanswered field, or nil when complete
func (d *Draft) FirstUnanswered() *Field {
	for _, f := range d.Fields {
		if !f.Answered() {
			return f
		}
	}
	return nil
}

// FirstUnansweredOfType returns the first unanswered field of type t, or nil
func (d *Draft) FirstUnansweredOfType(t FieldType) *Field {
	for _, f := range d.Fields {
		if f.Type == t && !f.Answered() {
			return f
		}
	}
	return nil
}

// UnansweredCount returns the number of unanswered fields
func (d *Draft) UnansweredCount() int {
	n := 0
	for _, f := range d.Fields {
		if !f.Answered() {
			n++
		}
	}
	return n
}

// Complete reports whether every field is answered
func (d *Draft) Complete() bool {
	return d.UnansweredCount() == 0
}

// Validate checks label uniqueness and every field
func (d *Draft) Validate() error {
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if err := f.Validate(); err != nil {
			return err
		}
		if seen[f.Label] {
			return fmt.Errorf("duplicate field label %q", f.Label)
		}
		seen[f.Label] = true
	}
	return nil
}

// Clone returns a deep copy of the draft
func (d *Draft) Clone() *Draft {
	cp := &Draft{
		FormFileName: d.FormFileName,
		LastSaved:    d.LastSaved,
		Fields:       make([]*Field, len(d.Fields)),
	}
	for i, f := range d.Fields {
		nf := *f
		nf.Options = append([]string(nil), f.Options...)
		nf.OptionLabels = append([]string(nil), f.OptionLabels...)
		if f.DocID != nil {
			id := *f.DocID
			nf.DocID = &id
		}
		if f.Value.IsList() {
			nf.Value = List(f.Value.Items()...)
		}
		cp.Fields[i] = &nf
	}
	return cp
}

// Summary renders a compact field listing for prompts and status output
func (d *Draft) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Form: %s (%d of %d fields answered)\n",
		d.FormFileName, len(d.Fields)-d.UnansweredCount(), len(d.Fields))
	for i, f := range d.Fields {
		val := f.Value.String()
		if !f.Answered() {
			val = "<empty>"
		}
		fmt.Fprintf(&b, "%d. %s [%s]: %s", i+1, f.Label, f.Type, val)
		if f.DocID != nil {
			fmt.Fprintf(&b, " (from %s)", *f.DocID)
		}
		if f.Error != "" {
			fmt.Fprintf(&b, " (error: %s)", f.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// MarshalIndent renders the draft in its JSON wire shape
func (d *Draft) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Parse decodes and validates a draft
func Parse(data []byte) (*Draft, error) {
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid draft: %w", err)
	}
	return &d, nil
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
