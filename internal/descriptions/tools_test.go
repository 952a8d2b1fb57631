package descriptions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEveryToolHasDescription(t *testing.T) {
	names := GetAllToolNames()
	assert.Len(t, names, 9)
	assert.IsIncreasing(t, names)
	for _, name := range names {
		desc := GetToolDescription(name)
		assert.NotEqual(t, "Tool description not available", desc, name)
		assert.True(t, strings.Contains(desc, "**Why it's useful:**"), name)
	}
}

func TestUnknownTool(t *testing.T) {
	assert.Equal(t, "Tool description not available", GetToolDescription("pdf_read_file"))
}
