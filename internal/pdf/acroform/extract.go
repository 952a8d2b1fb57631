package acroform

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	ferr "github.com/a3tai/mcp-form-pilot/internal/errors"
	"github.com/a3tai/mcp-form-pilot/internal/form"
	"github.com/a3tai/mcp-form-pilot/internal/logger"
)

// target ties a draft field to the raw fields it was built from
type target struct {
	field *form.Field
	raws  []*rawField
}

// layout is the draft view of a parsed field tree
type layout struct {
	targets []*target
	byLabel map[string]*target
	byName  map[string]*rawField
}

// Extractor builds draft forms from AcroForm PDFs
type Extractor struct {
	log         *logger.Logger
	maxFileSize int64
}

// NewExtractor creates an Extractor. A maxFileSize of zero disables the check.
func NewExtractor(maxFileSize int64, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{log: log, maxFileSize: maxFileSize}
}

// ExtractFile reads the form at path
func (e *Extractor) ExtractFile(path string) (*form.Draft, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, ferr.Newf(ferr.KindUnsupportedFormat, path, "form must be a PDF, got %q", filepath.Ext(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, ferr.Wrap(ferr.KindExtractionFailure, path, err)
	}
	if info.IsDir() {
		return nil, ferr.New(ferr.KindExtractionFailure, path, "path is a directory")
	}
	if e.maxFileSize > 0 && info.Size() > e.maxFileSize {
		return nil, ferr.Newf(ferr.KindExtractionFailure, path,
			"file too large: %d bytes (max: %d bytes)", info.Size(), e.maxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferr.Wrap(ferr.KindExtractionFailure, path, err)
	}
	return e.Extract(data, filepath.Base(path))
}

// Extract parses a PDF and returns its fields as a draft named name. It fails
// with NoExtractableFields when the document has no field dictionary.
func (e *Extractor) Extract(data []byte, name string) (*form.Draft, error) {
	ctx, err := readContext(bytes.NewReader(data))
	if err != nil {
		return nil, ferr.Wrap(ferr.KindExtractionFailure, name, err)
	}

	l, err := parse(ctx, name)
	if err != nil {
		return nil, err
	}

	draft := &form.Draft{FormFileName: name, Fields: make([]*form.Field, 0, len(l.targets))}
	for _, t := range l.targets {
		draft.Fields = append(draft.Fields, t.field)
	}

	e.log.Info("form extracted", "form", name, "fields", len(draft.Fields),
		"unanswered", draft.UnansweredCount())
	return draft, nil
}

func parse(ctx *model.Context, name string) (*layout, error) {
	_, fields, ok, err := acroForm(ctx)
	if err != nil {
		return nil, ferr.Wrap(ferr.KindExtractionFailure, name, err)
	}
	if !ok {
		return nil, ferr.New(ferr.KindNoExtractableFields, name, "document has no AcroForm fields")
	}
	return buildLayout(ctx, collect(ctx, fields)), nil
}

// buildLayout maps raw fields onto draft fields. Checkboxes sharing a base
// label collapse into one checkbox group placed at the first member.
func buildLayout(ctx *model.Context, raws []*rawField) *layout {
	l := &layout{
		byLabel: make(map[string]*target),
		byName:  make(map[string]*rawField),
	}
	groups := make(map[string]*target)

	for _, r := range raws {
		if r.kind == kindSkip {
			continue
		}
		l.byName[r.name] = r

		if r.kind == kindCheckbox {
			base := baseLabel(r.name)
			if g, ok := groups[base]; ok {
				g.raws = append(g.raws, r)
				continue
			}
			t := &target{raws: []*rawField{r}}
			groups[base] = t
			l.targets = append(l.targets, t)
			continue
		}

		l.targets = append(l.targets, &target{raws: []*rawField{r}})
	}

	labels := make(map[string]bool)
	for _, t := range l.targets {
		t.field = buildField(ctx, t.raws)
		t.field.Label = uniqueLabel(t.field.Label, labels)
		l.byLabel[t.field.Label] = t
	}
	return l
}

func buildField(ctx *model.Context, raws []*rawField) *form.Field {
	r := raws[0]
	f := &form.Field{
		Label:       r.name,
		Description: r.tooltip,
		Options:     []string{},
	}

	switch r.kind {
	case kindText:
		f.Type = form.FieldTypeText
		f.Format = r.format(ctx)
		if v := r.textValue(ctx); v != "" {
			f.Value = form.Text(v)
		}

	case kindCheckbox:
		buildCheckbox(ctx, f, raws)

	case kindRadio:
		f.Type = form.FieldTypeDropdown
		f.Options = r.radioOptions(ctx)
		if state := r.buttonState(ctx); isOn(state) && f.HasOption(state) {
			f.Value = form.Text(state)
		}

	case kindCombo, kindListBox:
		f.Type = form.FieldTypeDropdown
		if r.kind == kindListBox {
			f.Type = form.FieldTypeListBox
		}
		options, labels := r.choiceOptions(ctx)
		if options != nil {
			f.Options = options
		}
		if !equalStrings(options, labels) {
			f.OptionLabels = labels
		}
		var selected []string
		for _, v := range r.choiceValues(ctx) {
			if opt, ok := f.MatchOption(v); ok {
				selected = append(selected, opt)
			}
		}
		switch {
		case len(selected) == 0:
		case f.Type == form.FieldTypeListBox:
			f.Value = form.List(selected...)
		default:
			f.Value = form.Text(selected[0])
		}
	}

	if f.Description == "" {
		f.Description = f.Label
	}
	return f
}

// buildCheckbox fills a checkbox or checkbox group from its raw members. A
// lone box without a numeric suffix stays a plain checkbox.
func buildCheckbox(ctx *model.Context, f *form.Field, raws []*rawField) {
	r := raws[0]
	if len(raws) == 1 && baseLabel(r.name) == r.name {
		f.Type = form.FieldTypeCheckbox
		f.Options = []string{r.name}
		f.OptionLabels = []string{r.onState(ctx)}
		if isOn(r.buttonState(ctx)) {
			f.Value = form.Text(form.StateChecked)
		}
		return
	}

	f.Type = form.FieldTypeCheckboxGroup
	f.Label = baseLabel(r.name)
	states := make([]string, len(raws))
	f.OptionLabels = make([]string, len(raws))
	anyOn := false
	for i, m := range raws {
		f.Options = append(f.Options, m.name)
		f.OptionLabels[i] = m.onState(ctx)
		states[i] = form.StateOff
		if isOn(m.buttonState(ctx)) {
			states[i] = form.StateChecked
			anyOn = true
		}
		if f.Description == "" && m.tooltip != "" {
			f.Description = m.tooltip
		}
	}
	if anyOn {
		f.Value = form.List(states...)
	}
}

// baseLabel strips trailing digits from a raw field name
func baseLabel(name string) string {
	base := strings.TrimRightFunc(name, unicode.IsDigit)
	if base == "" {
		return name
	}
	return base
}

func uniqueLabel(label string, taken map[string]bool) string {
	out := label
	for k := 2; taken[out]; k++ {
		out = label + " (" + strconv.Itoa(k) + ")"
	}
	taken[out] = true
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
