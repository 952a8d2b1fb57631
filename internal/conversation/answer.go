package conversation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/a3tai/mcp-form-pilot/internal/form"
)

const noneAnswer = "none"

var (
	yesWords = map[string]bool{"yes": true, "y": true, "true": true, "checked": true, "x": true, "on": true}
	noWords  = map[string]bool{"no": true, "n": true, "false": true, "off": true, "unchecked": true, noneAnswer: true}
)

// applyAnswer stores a user reply on f. Text is kept verbatim; choices must
// match the declared options.
func applyAnswer(f *form.Field, answer string) error {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return errors.New("the answer is empty")
	}

	var v form.Value
	switch f.Type {
	case form.FieldTypeText:
		v = form.Text(answer)

	case form.FieldTypeCheckbox:
		word := strings.ToLower(trimmed)
		switch {
		case yesWords[word]:
			v = form.Text(form.StateChecked)
		case noWords[word]:
			v = form.Text(form.StateOff)
		default:
			return errors.New("please answer yes or no")
		}

	case form.FieldTypeCheckboxGroup:
		states := make([]string, len(f.Options))
		for i := range states {
			states[i] = form.StateOff
		}
		if !strings.EqualFold(trimmed, noneAnswer) {
			picked, err := matchAll(f, trimmed)
			if err != nil {
				return err
			}
			for i, o := range f.Options {
				if picked[o] {
					states[i] = form.StateChecked
				}
			}
		}
		v = form.List(states...)

	case form.FieldTypeDropdown:
		opt, ok := f.MatchOption(trimmed)
		if !ok {
			return fmt.Errorf("%q is not one of the options", trimmed)
		}
		v = form.Text(opt)

	case form.FieldTypeListBox:
		picked, err := matchAll(f, trimmed)
		if err != nil {
			return err
		}
		var items []string
		for _, o := range f.Options {
			if picked[o] {
				items = append(items, o)
			}
		}
		v = form.List(items...)

	default:
		return fmt.Errorf("unsupported field type %q", f.Type)
	}

	if err := f.Set(v); err != nil {
		return err
	}
	f.DocID = nil
	f.Error = ""
	return nil
}

// matchAll resolves a comma separated answer against the options
func matchAll(f *form.Field, answer string) (map[string]bool, error) {
	picked := make(map[string]bool)
	for _, part := range strings.Split(answer, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		opt, ok := f.MatchOption(part)
		if !ok {
			return nil, fmt.Errorf("%q is not one of the options", part)
		}
		picked[opt] = true
	}
	if len(picked) == 0 {
		return nil, errors.New("no option was given")
	}
	return picked, nil
}

// cannedQuestion asks for a field without the language model
func cannedQuestion(f *form.Field) string {
	name := f.Description
	if name == "" {
		name = f.Label
	}
	switch f.Type {
	case form.FieldTypeCheckbox:
		return fmt.Sprintf("Should %q be checked (yes or no)?", name)
	case form.FieldTypeCheckboxGroup:
		return fmt.Sprintf("Which of these apply to %q (comma-separated, or none): %s?", name, captions(f))
	case form.FieldTypeDropdown:
		return fmt.Sprintf("Which option should I choose for %q: %s?", name, captions(f))
	case form.FieldTypeListBox:
		return fmt.Sprintf("Which options apply to %q (comma-separated): %s?", name, captions(f))
	default:
		return fmt.Sprintf("What should I enter for %q?", name)
	}
}

func captions(f *form.Field) string {
	parts := make([]string, len(f.Options))
	for i := range f.Options {
		parts[i] = f.OptionLabel(i)
	}
	return strings.Join(parts, ", ")
}
