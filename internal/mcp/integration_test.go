package mcp

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-form-pilot/internal/pdf/acroform"
)

var reCheckpointID = regexp.MustCompile(`Checkpoint saved: (\S+)`)

// TestToolWorkflow drives a whole session through the tool handlers
func TestToolWorkflow(t *testing.T) {
	cfg := testConfig(t.TempDir())
	s := newTestServer(t, cfg)
	ctx := context.Background()

	result, err := s.handleFormLoad(ctx, callRequest(map[string]interface{}{"path": "form.pdf"}))
	require.NoError(t, err)
	require.False(t, result.IsError, getTextContent(result))

	result, err = s.handleDocumentsLoad(ctx, callRequest(map[string]interface{}{"paths": "letter.txt"}))
	require.NoError(t, err)
	require.False(t, result.IsError, getTextContent(result))
	assert.Contains(t, getTextContent(result), `[1 fields left] Should "Agree" be checked (yes or no)?`)

	result, err = s.handleFormStatus(ctx, callRequest(map[string]interface{}{"json": true}))
	require.NoError(t, err)
	status := getTextContent(result)
	assert.Contains(t, status, "State: awaiting_answer")
	assert.Contains(t, status, "In prompt context: ")
	assert.Contains(t, status, "1. Name [text]: Jane Doe (from ")
	assert.Contains(t, status, "Draft JSON:")
	assert.Contains(t, status, `"formFileName": "form.pdf"`)

	result, err = s.handleFormChat(ctx, callRequest(map[string]interface{}{"message": "yes"}))
	require.NoError(t, err)
	require.False(t, result.IsError, getTextContent(result))

	result, err = s.handleFormCheckpoint(ctx, callRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError, getTextContent(result))
	m := reCheckpointID.FindStringSubmatch(getTextContent(result))
	require.NotNil(t, m)

	result, err = s.handleFormFill(ctx, callRequest(map[string]interface{}{"output": "out/done.pdf"}))
	require.NoError(t, err)
	require.False(t, result.IsError, getTextContent(result))
	assert.Contains(t, getTextContent(result), "Answered fields written: 2")

	output := filepath.Join(cfg.WorkDirectory, "out", "done.pdf")
	_, err = os.Stat(output)
	require.NoError(t, err)
	filled, err := acroform.NewExtractor(0, nil).ExtractFile(output)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", filled.Field("Name").Value.Text())

	// reloading the form discards the answers
	_, err = s.handleFormLoad(ctx, callRequest(map[string]interface{}{"path": "form.pdf"}))
	require.NoError(t, err)

	result, err = s.handleFormRestore(ctx, callRequest(map[string]interface{}{"id": m[1]}))
	require.NoError(t, err)
	require.False(t, result.IsError, getTextContent(result))
	text := getTextContent(result)
	assert.Contains(t, text, "Restored checkpoint "+m[1]+" of form.pdf")
	assert.Contains(t, text, "Empty fields: 0")
	assert.NotContains(t, text, "WARNING")
}

func TestRestoreUnknownCheckpoint(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))

	result, err := s.handleFormRestore(context.Background(), callRequest(map[string]interface{}{"id": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestFillRefusesToOverwriteTemplate(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))
	ctx := context.Background()

	_, err := s.handleFormLoad(ctx, callRequest(map[string]interface{}{"path": "form.pdf"}))
	require.NoError(t, err)

	result, err := s.handleFormFill(ctx, callRequest(map[string]interface{}{"output": "form.pdf"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
