package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-form-pilot/internal/form"
)

func testDraft() *form.Draft {
	return &form.Draft{
		FormFileName: "application.pdf",
		Fields: []*form.Field{
			{Label: "Name", Description: "Full name", Type: form.FieldTypeText, Value: form.Text("Jane Doe")},
			{Label: "State", Type: form.FieldTypeDropdown, Options: []string{"CA", "NY"}, OptionLabels: []string{"California", "New York"}},
		},
	}
}

func TestOutputText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, outputResults(&buf, testDraft(), "text"))

	out := buf.String()
	assert.Contains(t, out, "application.pdf: 2 fields, 1 empty")
	assert.Contains(t, out, "[1] Name")
	assert.Contains(t, out, "Description: Full name")
	assert.Contains(t, out, "Value: Jane Doe")
	assert.Contains(t, out, "Options: California New York")
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, outputResults(&buf, testDraft(), "json"))

	parsed, err := form.Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, parsed.Fields, 2)
}

func TestOutputUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, outputResults(&buf, testDraft(), "yaml"))
}
