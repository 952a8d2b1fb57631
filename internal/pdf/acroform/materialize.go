package acroform

import (
	"bytes"
	"encoding/hex"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	ferr "github.com/a3tai/mcp-form-pilot/internal/errors"
	"github.com/a3tai/mcp-form-pilot/internal/form"
	"github.com/a3tai/mcp-form-pilot/internal/logger"
)

// Materializer writes draft values into a copy of the template PDF
type Materializer struct {
	log *logger.Logger
}

// NewMaterializer creates a Materializer
func NewMaterializer(log *logger.Logger) *Materializer {
	if log == nil {
		log = logger.Nop()
	}
	return &Materializer{log: log}
}

// Materialize returns the template with every answered draft field written
// to its AcroForm field. Unanswered fields are left untouched. When some
// answered fields have no counterpart in the template the filled bytes are
// still returned together with a MaterializationError naming them.
func (m *Materializer) Materialize(template []byte, draft *form.Draft) ([]byte, error) {
	name := draft.FormFileName

	ctx, err := readContext(bytes.NewReader(template))
	if err != nil {
		return nil, ferr.Wrap(ferr.KindMaterializationError, name, err)
	}
	acroFormDict, fields, ok, err := acroForm(ctx)
	if err != nil {
		return nil, ferr.Wrap(ferr.KindMaterializationError, name, err)
	}
	if !ok {
		return nil, ferr.New(ferr.KindMaterializationError, name, "template has no AcroForm fields")
	}
	l := buildLayout(ctx, collect(ctx, fields))

	var missing []string
	written := 0
	for _, f := range draft.Fields {
		if !f.Answered() {
			continue
		}
		n, absent := m.writeField(ctx, l, f)
		written += n
		missing = append(missing, absent...)
	}

	acroFormDict.Update("NeedAppearances", types.Boolean(true))

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, ferr.Wrap(ferr.KindMaterializationError, name, err)
	}

	m.log.Info("form materialized", "form", name, "written", written, "missing", len(missing))
	if len(missing) > 0 {
		return buf.Bytes(), ferr.New(ferr.KindMaterializationError, name,
			"fields not found in template").WithDetails(missing...)
	}
	return buf.Bytes(), nil
}

// writeField writes one draft field and returns the number of raw fields
// updated and the names it could not find
func (m *Materializer) writeField(ctx *model.Context, l *layout, f *form.Field) (int, []string) {
	switch f.Type {
	case form.FieldTypeCheckboxGroup:
		return writeCheckboxGroup(ctx, l, f)
	case form.FieldTypeCheckbox:
		r := lookup(l, f)
		if r == nil && len(f.Options) > 0 {
			r = l.byName[f.Options[0]]
		}
		if r == nil || r.kind != kindCheckbox {
			return 0, []string{f.Label}
		}
		setCheckbox(ctx, r, f.Value.Text() == form.StateChecked)
		return 1, nil
	}

	r := lookup(l, f)
	if r == nil {
		return 0, []string{f.Label}
	}

	switch r.kind {
	case kindText:
		setText(r, f.Value.String())
	case kindRadio:
		setRadio(ctx, r, f.Value.Text())
	case kindCombo:
		setChoice(ctx, r, []string{f.Value.Text()}, false)
	case kindListBox:
		setChoice(ctx, r, f.Value.Items(), true)
	default:
		return 0, []string{f.Label}
	}
	return 1, nil
}

// lookup resolves a draft field to its single raw field by label, then by
// fully qualified name
func lookup(l *layout, f *form.Field) *rawField {
	if t, ok := l.byLabel[f.Label]; ok && len(t.raws) == 1 {
		return t.raws[0]
	}
	return l.byName[f.Label]
}

func writeCheckboxGroup(ctx *model.Context, l *layout, f *form.Field) (int, []string) {
	states := f.Value.Items()
	var missing []string
	n := 0
	for i, name := range f.Options {
		if i >= len(states) {
			break
		}
		r, ok := l.byName[name]
		if !ok || r.kind != kindCheckbox {
			missing = append(missing, name)
			continue
		}
		setCheckbox(ctx, r, states[i] == form.StateChecked)
		n++
	}
	return n, missing
}

func setText(r *rawField, s string) {
	r.dict.Update("V", encodeText(s))
	dropAppearances(r)
}

func setCheckbox(ctx *model.Context, r *rawField, on bool) {
	state := stateOff
	if on {
		state = r.onState(ctx)
	}
	r.dict.Update("V", types.Name(state))
	for _, w := range r.widgets {
		w.Update("AS", types.Name(state))
	}
}

func setRadio(ctx *model.Context, r *rawField, value string) {
	r.dict.Update("V", types.Name(value))
	for _, w := range r.widgets {
		state := stateOff
		for _, s := range onStates(ctx, w) {
			if s == value {
				state = value
				break
			}
		}
		w.Update("AS", types.Name(state))
	}
}

func setChoice(ctx *model.Context, r *rawField, values []string, multi bool) {
	options, _ := r.choiceOptions(ctx)
	var indices []int
	for _, v := range values {
		for i, o := range options {
			if o == v {
				indices = append(indices, i)
				break
			}
		}
	}
	sort.Ints(indices)

	if multi {
		arr := make(types.Array, 0, len(values))
		for _, v := range values {
			arr = append(arr, encodeText(v))
		}
		r.dict.Update("V", arr)
		sel := make(types.Array, 0, len(indices))
		for _, i := range indices {
			sel = append(sel, types.Integer(i))
		}
		r.dict.Update("I", sel)
	} else {
		r.dict.Update("V", encodeText(values[0]))
		r.dict.Delete("I")
	}
	dropAppearances(r)
}

// dropAppearances removes stale widget appearances so viewers regenerate
// them from the new value
func dropAppearances(r *rawField) {
	for _, w := range r.widgets {
		w.Delete("AP")
	}
}

// encodeText returns a literal string for ASCII input and a UTF-16BE hex
// string with byte order mark otherwise
func encodeText(s string) types.Object {
	ascii := true
	for _, c := range s {
		if c > 0x7e {
			ascii = false
			break
		}
	}
	if ascii {
		return types.StringLiteral(escapeLiteral(s))
	}

	units := utf16.Encode([]rune(s))
	b := make([]byte, 2, 2+2*len(units))
	b[0], b[1] = 0xFE, 0xFF
	for _, u := range units {
		b = append(b, byte(u>>8), byte(u))
	}
	return types.HexLiteral(strings.ToUpper(hex.EncodeToString(b)))
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`(`, `\(`,
	`)`, `\)`,
	"\r", `\r`,
	"\n", `\n`,
	"\t", `\t`,
)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}
