// Package acroform reads the AcroForm field tree of a PDF into a draft form
// and writes draft values back into the same document.
package acroform

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-form-pilot/internal/form"
)

// Field flag bits (PDF 32000-1, 12.7.4)
const (
	flagRadio       = 1 << 15
	flagPushbutton  = 1 << 16
	flagCombo       = 1 << 17
	flagMultiSelect = 1 << 21
)

const stateOff = "Off"

// kind is the low-level classification of a terminal field
type kind int

const (
	kindText kind = iota
	kindCheckbox
	kindRadio
	kindCombo
	kindListBox
	kindSkip
)

// rawField is a terminal field of the AcroForm tree with its inherited attributes
type rawField struct {
	name    string // fully qualified
	kind    kind
	flags   int
	tooltip string
	dict    types.Dict   // terminal field dictionary, receives V
	widgets []types.Dict // widget annotations, receive AS
	value   types.Object // inherited V
	opt     types.Object // inherited Opt
}

// inherited carries the inheritable attributes down the field tree
type inherited struct {
	ft    string
	flags int
	value types.Object
	opt   types.Object
}

func readContext(rs io.ReadSeeker) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return ctx, nil
}

// acroForm returns the AcroForm dictionary and its Fields array. ok is false
// when the document has no field dictionary.
func acroForm(ctx *model.Context) (types.Dict, types.Array, bool, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil, false, nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil, nil, false, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return acroFormDict, nil, false, nil
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to dereference Fields array: %w", err)
	}
	return acroFormDict, fieldsArray, true, nil
}

// collect walks the field tree in document order
func collect(ctx *model.Context, fields types.Array) []*rawField {
	var out []*rawField
	visited := make(map[int]bool)
	for i, obj := range fields {
		walk(ctx, obj, "", inherited{}, i, visited, &out)
	}
	return out
}

func walk(ctx *model.Context, obj types.Object, parent string, inh inherited, index int,
	visited map[int]bool, out *[]*rawField) {
	if ref, ok := obj.(types.IndirectRef); ok {
		n := int(ref.ObjectNumber)
		if visited[n] {
			return
		}
		visited[n] = true
	}

	dict, err := ctx.DereferenceDict(obj)
	if err != nil || dict == nil {
		return
	}

	name := parent
	if partial := stringEntry(ctx, dict, "T"); partial != "" {
		if parent != "" {
			name = parent + "." + partial
		} else {
			name = partial
		}
	}
	if name == "" {
		name = fmt.Sprintf("field_%d", index)
	}

	if ft, err := nameEntry(ctx, dict, "FT"); err == nil && ft != "" {
		inh.ft = ft
	}
	if flagsObj, found := dict.Find("Ff"); found {
		if flags, err := ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
			inh.flags = int(*flags)
		}
	}
	if v, found := dict.Find("V"); found {
		inh.value = v
	}
	if opt, found := dict.Find("Opt"); found {
		inh.opt = opt
	}

	// Kids carrying a T entry are child fields, the others are widgets
	var widgets []types.Dict
	hasChildFields := false
	if kidsObj, found := dict.Find("Kids"); found {
		if kids, err := ctx.DereferenceArray(kidsObj); err == nil {
			for i, kid := range kids {
				kidDict, err := ctx.DereferenceDict(kid)
				if err != nil || kidDict == nil {
					continue
				}
				if _, isField := kidDict.Find("T"); isField {
					hasChildFields = true
					walk(ctx, kid, name, inh, i, visited, out)
					continue
				}
				widgets = append(widgets, kidDict)
			}
		}
	}
	if hasChildFields && len(widgets) == 0 {
		return
	}
	if len(widgets) == 0 {
		widgets = []types.Dict{dict}
	}

	*out = append(*out, &rawField{
		name:    name,
		kind:    classify(inh.ft, inh.flags),
		flags:   inh.flags,
		tooltip: stringEntry(ctx, dict, "TU"),
		dict:    dict,
		widgets: widgets,
		value:   inh.value,
		opt:     inh.opt,
	})
}

func classify(ft string, flags int) kind {
	switch ft {
	case "Btn":
		switch {
		case flags&flagPushbutton != 0:
			return kindSkip
		case flags&flagRadio != 0:
			return kindRadio
		default:
			return kindCheckbox
		}
	case "Tx":
		return kindText
	case "Ch":
		if flags&flagMultiSelect != 0 {
			return kindListBox
		}
		return kindCombo
	default:
		// signatures and unknown types carry nothing to fill
		return kindSkip
	}
}

func stringEntry(ctx *model.Context, dict types.Dict, key string) string {
	obj, found := dict.Find(key)
	if !found {
		return ""
	}
	s, err := ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

func nameEntry(ctx *model.Context, dict types.Dict, key string) (string, error) {
	obj, found := dict.Find(key)
	if !found {
		return "", nil
	}
	n, err := ctx.DereferenceName(obj, model.V10, nil)
	if err != nil {
		return "", err
	}
	return string(n), nil
}

// onStates lists the non-Off appearance state names of a widget, sorted
func onStates(ctx *model.Context, widget types.Dict) []string {
	apObj, found := widget.Find("AP")
	if !found {
		return nil
	}
	ap, err := ctx.DereferenceDict(apObj)
	if err != nil || ap == nil {
		return nil
	}
	nObj, found := ap.Find("N")
	if !found {
		return nil
	}
	n, err := ctx.DereferenceDict(nObj)
	if err != nil || n == nil {
		return nil
	}
	var states []string
	for k := range n {
		if k != stateOff {
			states = append(states, k)
		}
	}
	sort.Strings(states)
	return states
}

// onState is the name a checkbox takes when checked
func (r *rawField) onState(ctx *model.Context) string {
	for _, w := range r.widgets {
		if states := onStates(ctx, w); len(states) > 0 {
			return states[0]
		}
	}
	return "Yes"
}

// radioOptions lists the on-states of every widget in widget order
func (r *rawField) radioOptions(ctx *model.Context) []string {
	var opts []string
	seen := map[string]bool{}
	for _, w := range r.widgets {
		for _, s := range onStates(ctx, w) {
			if !seen[s] {
				seen[s] = true
				opts = append(opts, s)
			}
		}
	}
	return opts
}

// buttonState reads V (or the first widget's AS) as a state name
func (r *rawField) buttonState(ctx *model.Context) string {
	if r.value != nil {
		if n, err := ctx.DereferenceName(r.value, model.V10, nil); err == nil {
			return string(n)
		}
	}
	for _, w := range r.widgets {
		if s, err := nameEntry(ctx, w, "AS"); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// isOn reports whether a button state denotes a checked box
func isOn(state string) bool {
	return state != "" && state != stateOff
}

// choiceOptions returns export values and display captions of a choice field
func (r *rawField) choiceOptions(ctx *model.Context) (options, labels []string) {
	if r.opt == nil {
		return nil, nil
	}
	arr, err := ctx.DereferenceArray(r.opt)
	if err != nil {
		return nil, nil
	}
	for _, o := range arr {
		if s, err := ctx.DereferenceStringOrHexLiteral(o, model.V10, nil); err == nil {
			options = append(options, s)
			labels = append(labels, s)
			continue
		}
		pair, err := ctx.DereferenceArray(o)
		if err != nil || len(pair) < 2 {
			continue
		}
		export, err1 := ctx.DereferenceStringOrHexLiteral(pair[0], model.V10, nil)
		display, err2 := ctx.DereferenceStringOrHexLiteral(pair[1], model.V10, nil)
		if err1 != nil || err2 != nil {
			continue
		}
		options = append(options, export)
		labels = append(labels, display)
	}
	return options, labels
}

// choiceValues reads V of a choice field as a list of strings
func (r *rawField) choiceValues(ctx *model.Context) []string {
	if r.value == nil {
		return nil
	}
	if s, err := ctx.DereferenceStringOrHexLiteral(r.value, model.V10, nil); err == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	arr, err := ctx.DereferenceArray(r.value)
	if err != nil {
		return nil
	}
	var out []string
	for _, o := range arr {
		if s, err := ctx.DereferenceStringOrHexLiteral(o, model.V10, nil); err == nil && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r *rawField) textValue(ctx *model.Context) string {
	if r.value == nil {
		return ""
	}
	s, err := ctx.DereferenceStringOrHexLiteral(r.value, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

var (
	reSpecial = regexp.MustCompile(`AFSpecial_(?:Format|Keystroke)\(\s*(\d)`)
	reNumber  = regexp.MustCompile(`AF(?:Number|Percent)_(?:Format|Keystroke)`)
	reDate    = regexp.MustCompile(`AFDate_(?:Format|Keystroke)`)
)

// format reads the standard Acrobat format scripts from the AA dictionary
func (r *rawField) format(ctx *model.Context) form.Format {
	aaObj, found := r.dict.Find("AA")
	if !found {
		return form.FormatNone
	}
	aa, err := ctx.DereferenceDict(aaObj)
	if err != nil || aa == nil {
		return form.FormatNone
	}
	var scripts []string
	for _, key := range []string{"F", "K"} {
		actionObj, found := aa.Find(key)
		if !found {
			continue
		}
		action, err := ctx.DereferenceDict(actionObj)
		if err != nil || action == nil {
			continue
		}
		if js := stringEntry(ctx, action, "JS"); js != "" {
			scripts = append(scripts, js)
		}
	}
	return parseFormat(strings.Join(scripts, "\n"))
}

func parseFormat(js string) form.Format {
	if m := reSpecial.FindStringSubmatch(js); m != nil {
		switch m[1] {
		case "0", "1":
			return form.FormatZip
		case "2":
			return form.FormatPhone
		case "3":
			return form.FormatSSN
		}
	}
	switch {
	case reNumber.MatchString(js):
		return form.FormatNumber
	case reDate.MatchString(js):
		return form.FormatDate
	}
	return form.FormatNone
}
