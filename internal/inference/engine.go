// Package inference fills empty draft fields from document evidence with a
// language model.
package inference

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	ferr "github.com/a3tai/mcp-form-pilot/internal/errors"
	"github.com/a3tai/mcp-form-pilot/internal/evidence"
	"github.com/a3tai/mcp-form-pilot/internal/form"
	"github.com/a3tai/mcp-form-pilot/internal/llm"
	"github.com/a3tai/mcp-form-pilot/internal/logger"
)

const (
	answerYes     = "yes"
	answerNo      = "no"
	answerUnknown = "unknown"

	prefillTemperature = 0.0
)

// Options tunes an Engine
type Options struct {
	Concurrency int
	Now         func() time.Time
}

// Engine runs one isolated inference per empty field
type Engine struct {
	client      llm.Client
	concurrency int
	now         func() time.Time
	log         *logger.Logger
}

// Report summarizes a prefill run
type Report struct {
	Processed int `json:"processed"`
	Filled    int `json:"filled"`
	Failed    int `json:"failed"`
}

// result is the outcome for one field, applied after all workers finish
type result struct {
	value form.Value
	docID *string
	err   error
}

// NewEngine creates an Engine
func NewEngine(client llm.Client, opts Options, log *logger.Logger) *Engine {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{client: client, concurrency: opts.Concurrency, now: opts.Now, log: log}
}

// Prefill infers every unanswered field of draft from ev. Answered fields are
// never touched. Failures are recorded on the failing field only.
func (e *Engine) Prefill(ctx context.Context, draft *form.Draft, ev *evidence.Context) Report {
	var targets []*form.Field
	for _, f := range draft.Fields {
		if !f.Answered() {
			targets = append(targets, f)
		}
	}
	if len(targets) == 0 || ev.Empty() {
		return Report{}
	}

	results := make([]result, len(targets))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, f := range targets {
		g.Go(func() error {
			results[i] = e.inferSafe(ctx, f, ev)
			return nil
		})
	}
	_ = g.Wait()

	var rep Report
	stamp := form.Timestamp{Time: e.now().Truncate(time.Second)}
	for i, f := range targets {
		r := results[i]
		rep.Processed++
		f.LastProcessed = stamp
		if r.err != nil {
			rep.Failed++
			f.Error = r.err.Error()
			f.Value = form.Value{}
			f.DocID = nil
			e.log.Warn("field inference failed", "field", f.Label, "error", r.err)
			continue
		}
		f.Error = ""
		if err := f.Set(r.value); err != nil {
			rep.Failed++
			f.Error = ferr.Wrap(ferr.KindInferenceParseFailure, f.Label, err).Error()
			continue
		}
		f.DocID = nil
		if f.Answered() {
			f.DocID = r.docID
			rep.Filled++
		}
	}

	e.log.Info("prefill finished", "form", draft.FormFileName, "processed", rep.Processed,
		"filled", rep.Filled, "failed", rep.Failed)
	return rep
}

// inferSafe isolates a field from panics in prompt rendering or parsing
func (e *Engine) inferSafe(ctx context.Context, f *form.Field, ev *evidence.Context) (r result) {
	defer func() {
		if p := recover(); p != nil {
			r = result{err: ferr.Newf(ferr.KindInferenceFailure, f.Label, "panic: %v", p)}
		}
	}()

	switch f.Type {
	case form.FieldTypeText:
		return e.inferText(ctx, f, ev)
	case form.FieldTypeCheckbox, form.FieldTypeCheckboxGroup:
		return e.inferCheckboxes(ctx, f, ev)
	case form.FieldTypeDropdown:
		return e.inferDropdown(ctx, f, ev)
	case form.FieldTypeListBox:
		return e.inferListBox(ctx, f, ev)
	default:
		return result{err: ferr.Newf(ferr.KindInferenceFailure, f.Label, "unsupported field type %q", f.Type)}
	}
}

func (e *Engine) ask(ctx context.Context, f *form.Field, prompt string) (string, error) {
	req := llm.UserPrompt(systemPrompt, prompt)
	req.Temperature = prefillTemperature
	req.JSON = true
	out, err := e.client.Complete(ctx, req)
	if err != nil {
		return "", ferr.Wrap(ferr.KindInferenceFailure, f.Label, err)
	}
	return out, nil
}

func parseFailure(f *form.Field, err error) result {
	return result{err: ferr.Wrap(ferr.KindInferenceParseFailure, f.Label, err)}
}

// checkDocID enforces that a cited document is part of the evidence
func checkDocID(ev *evidence.Context, id *string) error {
	if id != nil && !ev.Has(*id) {
		return fmt.Errorf("docId %q does not name a supplied document", *id)
	}
	return nil
}

func (e *Engine) inferText(ctx context.Context, f *form.Field, ev *evidence.Context) result {
	prompt, err := render(textTmpl, promptData{Field: f, Format: f.Format, Context: ev.Text})
	if err != nil {
		return result{err: ferr.Wrap(ferr.KindInferenceFailure, f.Label, err)}
	}
	raw, err := e.ask(ctx, f, prompt)
	if err != nil {
		return result{err: err}
	}

	obj, err := decodeExact(raw, "value", "docId")
	if err != nil {
		return parseFailure(f, err)
	}
	value, err := decodeString(obj["value"], "value")
	if err != nil {
		return parseFailure(f, err)
	}
	docID, err := decodeDocID(obj["docId"])
	if err != nil {
		return parseFailure(f, err)
	}
	switch {
	case value == "" && docID != nil:
		return parseFailure(f, fmt.Errorf("empty value with docId %q", *docID))
	case value != "" && docID == nil:
		return parseFailure(f, fmt.Errorf("value without docId"))
	}
	if err := checkDocID(ev, docID); err != nil {
		return parseFailure(f, err)
	}

	value = normalize(f, value)
	if value == "" {
		return result{}
	}
	return result{value: form.Text(value), docID: docID}
}

// inferCheckboxes asks one yes/no question per option. Only an explicit yes
// citing a supplied document checks a box. A field with no box checked
// stays unanswered.
func (e *Engine) inferCheckboxes(ctx context.Context, f *form.Field, ev *evidence.Context) result {
	options := f.Options
	if len(options) == 0 {
		options = []string{f.Label}
	}

	states := make([]string, len(options))
	var firstDoc *string
	for i := range options {
		option := f.OptionLabel(i)
		if option == "" {
			option = f.Label
		}
		checked, docID, err := e.decide(ctx, f, option, ev)
		if err != nil {
			return result{err: err}
		}
		states[i] = form.StateOff
		if checked {
			states[i] = form.StateChecked
			if firstDoc == nil {
				firstDoc = docID
			}
		}
	}

	if firstDoc == nil {
		return result{}
	}
	if f.Type == form.FieldTypeCheckbox {
		return result{value: form.Text(states[0]), docID: firstDoc}
	}
	return result{value: form.List(states...), docID: firstDoc}
}

func (e *Engine) decide(ctx context.Context, f *form.Field, option string, ev *evidence.Context) (bool, *string, error) {
	prompt, err := render(checkboxTmpl, promptData{Field: f, Option: option, Context: ev.Text})
	if err != nil {
		return false, nil, ferr.Wrap(ferr.KindInferenceFailure, f.Label, err)
	}
	raw, err := e.ask(ctx, f, prompt)
	if err != nil {
		return false, nil, err
	}

	obj, err := decodeExact(raw, "answer", "docId")
	if err != nil {
		return false, nil, ferr.Wrap(ferr.KindInferenceParseFailure, f.Label, err)
	}
	answer, err := decodeString(obj["answer"], "answer")
	if err != nil {
		return false, nil, ferr.Wrap(ferr.KindInferenceParseFailure, f.Label, err)
	}
	docID, err := decodeDocID(obj["docId"])
	if err != nil {
		return false, nil, ferr.Wrap(ferr.KindInferenceParseFailure, f.Label, err)
	}

	switch answer {
	case answerYes:
		if docID == nil || !ev.Has(*docID) {
			e.log.Debug("unsupported checkbox answer treated as off", "field", f.Label, "option", option)
			return false, nil, nil
		}
		return true, docID, nil
	case answerNo, answerUnknown:
		return false, nil, nil
	default:
		return false, nil, ferr.Newf(ferr.KindInferenceParseFailure, f.Label, "unexpected answer %q", answer)
	}
}

func (e *Engine) inferDropdown(ctx context.Context, f *form.Field, ev *evidence.Context) result {
	if len(f.Options) == 0 {
		return result{}
	}
	prompt, err := render(dropdownTmpl, promptData{Field: f, Options: optionList(f), Context: ev.Text})
	if err != nil {
		return result{err: ferr.Wrap(ferr.KindInferenceFailure, f.Label, err)}
	}
	raw, err := e.ask(ctx, f, prompt)
	if err != nil {
		return result{err: err}
	}

	obj, err := decodeExact(raw, "value", "docId")
	if err != nil {
		return parseFailure(f, err)
	}
	values, err := decodeStrings(obj["value"], "value")
	if err != nil {
		return parseFailure(f, err)
	}
	docID, err := decodeDocID(obj["docId"])
	if err != nil {
		return parseFailure(f, err)
	}
	if len(values) == 0 {
		return result{}
	}
	if docID == nil {
		return parseFailure(f, fmt.Errorf("value without docId"))
	}
	if err := checkDocID(ev, docID); err != nil {
		return parseFailure(f, err)
	}

	// a list answer resolves to its first declared option
	for _, v := range values {
		if opt, ok := f.MatchOption(v); ok {
			return result{value: form.Text(opt), docID: docID}
		}
	}
	return parseFailure(f, fmt.Errorf("value %q is not one of the options", values[0]))
}

func (e *Engine) inferListBox(ctx context.Context, f *form.Field, ev *evidence.Context) result {
	if len(f.Options) == 0 {
		return result{}
	}
	prompt, err := render(listBoxTmpl, promptData{Field: f, Options: optionList(f), Context: ev.Text})
	if err != nil {
		return result{err: ferr.Wrap(ferr.KindInferenceFailure, f.Label, err)}
	}
	raw, err := e.ask(ctx, f, prompt)
	if err != nil {
		return result{err: err}
	}

	obj, err := decodeExact(raw, "values", "docId")
	if err != nil {
		return parseFailure(f, err)
	}
	values, err := decodeStrings(obj["values"], "values")
	if err != nil {
		return parseFailure(f, err)
	}
	docID, err := decodeDocID(obj["docId"])
	if err != nil {
		return parseFailure(f, err)
	}
	if len(values) == 0 {
		return result{}
	}
	if docID == nil {
		return parseFailure(f, fmt.Errorf("value without docId"))
	}
	if err := checkDocID(ev, docID); err != nil {
		return parseFailure(f, err)
	}

	var kept []string
	seen := map[string]bool{}
	for _, v := range values {
		if opt, ok := f.MatchOption(v); ok && !seen[opt] {
			seen[opt] = true
			kept = append(kept, opt)
		}
	}
	if len(kept) == 0 {
		return parseFailure(f, fmt.Errorf("none of %v are options", values))
	}
	if len(kept) < len(values) {
		e.log.Debug("discarded out-of-set list values", "field", f.Label, "kept", len(kept), "returned", len(values))
	}
	return result{value: form.List(kept...), docID: docID}
}
