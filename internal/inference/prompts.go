package inference

import (
	"strings"
	"text/template"

	"github.com/a3tai/mcp-form-pilot/internal/form"
)

const systemPrompt = `You are a helpful assistant whose task is to answer a field in a form to the best of your ability.
You are given information about the field and context to answer.
You can only use the context to answer the field.
Respond with valid JSON only. Do not wrap in code blocks or add explanatory text.`

var textTmpl = template.Must(template.New("text").Parse(`Examples of correct responses:
{"value": "John Smith", "docId": "doc123"}
{"value": "", "docId": null}

Rules:
- If context lacks information: {"value": "", "docId": null}
- If context has information: {"value": "your_answer", "docId": "source_document_id"}
- docId must be copied exactly from a <document_id> element of the context
- Use null for a missing docId
- Keep answers succinct
{{- if .Format}}
- The field expects a {{.Format}} value
{{- end}}

Field information:
- Label: {{.Field.Label}}
- Description: {{.Field.Description}}
- Type: {{.Field.Type}}

Context:
{{.Context}}
`))

var checkboxTmpl = template.Must(template.New("checkbox").Parse(`Decide whether the following checkbox option of a form should be checked.
Answer "yes" only when the context states it explicitly. If the evidence is implied, ambiguous or missing, answer "no" or "unknown".

Respond with exactly one of:
{"answer": "yes", "docId": "source_document_id"}
{"answer": "no", "docId": null}
{"answer": "unknown", "docId": null}

Field information:
- Label: {{.Field.Label}}
- Description: {{.Field.Description}}
- Option: {{.Option}}

Context:
{{.Context}}
`))

var dropdownTmpl = template.Must(template.New("dropdown").Parse(`Pick the option of the form field that the context supports.
The value must be copied exactly from the list of options. If the context does not support any option use an empty value.

Examples of correct responses:
{"value": "{{index .Field.Options 0}}", "docId": "doc123"}
{"value": "", "docId": null}

Field information:
- Label: {{.Field.Label}}
- Description: {{.Field.Description}}
- Options: {{.Options}}

Context:
{{.Context}}
`))

var listBoxTmpl = template.Must(template.New("listbox").Parse(`Pick every option of the form field that the context supports.
Each value must be copied exactly from the list of options. If the context does not support any option use an empty list.

Examples of correct responses:
{"values": ["{{index .Field.Options 0}}"], "docId": "doc123"}
{"values": [], "docId": null}

Field information:
- Label: {{.Field.Label}}
- Description: {{.Field.Description}}
- Options: {{.Options}}

Context:
{{.Context}}
`))

type promptData struct {
	Field   *form.Field
	Format  form.Format
	Option  string
	Options string
	Context string
}

func render(t *template.Template, data promptData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// optionList renders options with their captions when they differ
func optionList(f *form.Field) string {
	parts := make([]string, len(f.Options))
	for i, o := range f.Options {
		if label := f.OptionLabel(i); label != o {
			parts[i] = o + " (" + label + ")"
			continue
		}
		parts[i] = o
	}
	return strings.Join(parts, ", ")
}
