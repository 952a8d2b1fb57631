// Package form holds the draft form model shared by every pipeline stage.
package form

import (
	"fmt"
	"strings"
)

// FieldType is the closed set of field kinds
type FieldType string

const (
	FieldTypeText          FieldType = "text"
	FieldTypeCheckbox      FieldType = "checkbox"
	FieldTypeCheckboxGroup FieldType = "checkbox_group"
	FieldTypeDropdown      FieldType = "dropdown"
	FieldTypeListBox       FieldType = "list_box"
)

// Valid reports whether t is one of the known field types
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeCheckbox, FieldTypeCheckboxGroup, FieldTypeDropdown, FieldTypeListBox:
		return true
	}
	return false
}

// IsList reports whether values of this type are lists
func (t FieldType) IsList() bool {
	return t == FieldTypeCheckboxGroup || t == FieldTypeListBox
}

// Checkbox states
const (
	StateChecked = "checked"
	StateOff     = "off"
)

// Format is the declared subtype of a text field
type Format string

const (
	FormatNone   Format = ""
	FormatZip    Format = "zip"
	FormatPhone  Format = "phone"
	FormatSSN    Format = "ssn"
	FormatNumber Format = "number"
	FormatDate   Format = "date"
)

// Field is one named input slot of a form
type Field struct {
	Label         string    `json:"label"`
	Description   string    `json:"description"`
	Type          FieldType `json:"type"`
	DocID         *string   `json:"docId"`
	Value         Value     `json:"value"`
	Options       []string  `json:"options"`
	OptionLabels  []string  `json:"optionLabels,omitempty"`
	Format        Format    `json:"format,omitempty"`
	LastProcessed Timestamp `json:"lastProcessed"`
	LastSurveyed  Timestamp `json:"lastSurveyed"`
	Error         string    `json:"error,omitempty"`
}

// Answered reports whether the field holds a value
func (f *Field) Answered() bool {
	return !f.Value.IsEmpty()
}

// OptionLabel returns the caption for option i, falling back to the option itself
func (f *Field) OptionLabel(i int) string {
	if i < len(f.OptionLabels) && f.OptionLabels[i] != "" {
		return f.OptionLabels[i]
	}
	if i < len(f.Options) {
		return f.Options[i]
	}
	return ""
}

// HasOption reports whether s is one of the declared options
func (f *Field) HasOption(s string) bool {
	for _, o := range f.Options {
		if o == s {
			return true
		}
	}
	return false
}

// MatchOption resolves s against options and option labels, ignoring case
// and surrounding space. It returns the option and true on a match.
func (f *Field) MatchOption(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for i, o := range f.Options {
		if strings.EqualFold(o, s) || strings.EqualFold(f.OptionLabel(i), s) {
			return o, true
		}
	}
	return "", false
}

// CheckValue reports whether v is a legal value for this field
func (f *Field) CheckValue(v Value) error {
	if v.IsEmpty() {
		return nil
	}
	if v.IsList() != f.Type.IsList() {
		return fmt.Errorf("field %q of type %s cannot hold a %s value", f.Label, f.Type, shape(v))
	}

	switch f.Type {
	case FieldTypeText:
		return nil
	case FieldTypeCheckbox:
		if !isState(v.Text()) {
			return fmt.Errorf("field %q: checkbox value must be %q or %q, got %q", f.Label, StateChecked, StateOff, v.Text())
		}
	case FieldTypeDropdown:
		if !f.HasOption(v.Text()) {
			return fmt.Errorf("field %q: %q is not one of the options", f.Label, v.Text())
		}
	case FieldTypeCheckboxGroup:
		items := v.Items()
		if len(items) != len(f.Options) {
			return fmt.Errorf("field %q: expected %d checkbox states, got %d", f.Label, len(f.Options), len(items))
		}
		for _, s := range items {
			if !isState(s) {
				return fmt.Errorf("field %q: checkbox state %q is not %q or %q", f.Label, s, StateChecked, StateOff)
			}
		}
	case FieldTypeListBox:
		for _, s := range v.Items() {
			if !f.HasOption(s) {
				return fmt.Errorf("field %q: %q is not one of the options", f.Label, s)
			}
		}
	default:
		return fmt.Errorf("field %q: unknown type %q", f.Label, f.Type)
	}
	return nil
}

// Set stores v after checking it against the field type
func (f *Field) Set(v Value) error {
	if err := f.CheckValue(v); err != nil {
		return err
	}
	f.Value = v
	return nil
}

// Validate checks the field's own consistency
func (f *Field) Validate() error {
	if f.Label == "" {
		return fmt.Errorf("field has no label")
	}
	if !f.Type.Valid() {
		return fmt.Errorf("field %q: unknown type %q", f.Label, f.Type)
	}
	if f.Value.IsEmpty() && f.DocID != nil {
		return fmt.Errorf("field %q: empty value with provenance %q", f.Label, *f.DocID)
	}
	return f.CheckValue(f.Value)
}

func isState(s string) bool {
	return s == StateChecked || s == StateOff
}

func shape(v Value) string {
	if v.IsList() {
		return "list"
	}
	return "scalar"
}
