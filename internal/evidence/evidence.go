// Package evidence assembles loaded documents into the reference block the
// inference prompts quote from.
package evidence

import (
	"strings"
	"unicode/utf8"

	"github.com/a3tai/mcp-form-pilot/internal/document"
	ferr "github.com/a3tai/mcp-form-pilot/internal/errors"
	"github.com/a3tai/mcp-form-pilot/internal/logger"
)

// Policy decides what happens when the documents exceed the budget
type Policy string

const (
	PolicyWarn   Policy = "warn"
	PolicyStrict Policy = "strict"
)

// DefaultMaxChars is roughly 51,200 tokens of document content
const DefaultMaxChars = 204800

// Budget bounds the document content placed in a prompt
type Budget struct {
	MaxChars int
	Policy   Policy
}

// Context is the assembled evidence for one inference run
type Context struct {
	Text  string
	Chars int // document content only, in runes
	ids   map[string]bool
	order []string
}

// Has reports whether id names a document of this context
func (c *Context) Has(id string) bool {
	return c != nil && c.ids[id]
}

// DocumentIDs lists the referenced documents in input order
func (c *Context) DocumentIDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Empty reports whether no document contributed content
func (c *Context) Empty() bool {
	return c == nil || len(c.order) == 0
}

// Assemble wraps every non-error document in a reference block. Under the
// strict policy an oversized context fails with ContextTooLarge; otherwise
// a warning is logged and the full context is returned.
func Assemble(docs []document.Document, budget Budget, log *logger.Logger) (*Context, error) {
	if log == nil {
		log = logger.Nop()
	}
	if budget.MaxChars <= 0 {
		budget.MaxChars = DefaultMaxChars
	}

	c := &Context{ids: make(map[string]bool, len(docs))}
	blocks := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.IsError() {
			continue
		}
		blocks = append(blocks, Reference(d.ID, d.Content))
		c.Chars += utf8.RuneCountInString(d.Content)
		c.ids[d.ID] = true
		c.order = append(c.order, d.ID)
	}
	c.Text = strings.Join(blocks, "\n")

	if c.Chars > budget.MaxChars {
		if budget.Policy == PolicyStrict {
			return nil, ferr.Newf(ferr.KindContextTooLarge, "documents",
				"%d characters of document content exceed the budget of %d", c.Chars, budget.MaxChars)
		}
		log.Warn("document context exceeds budget", "chars", c.Chars, "max_chars", budget.MaxChars,
			"documents", len(c.order))
	}
	return c, nil
}

// delimiters keeps document text from opening or closing reference blocks
var delimiters = strings.NewReplacer(
	"<reference>", "&lt;reference&gt;",
	"</reference>", "&lt;/reference&gt;",
	"<document_id>", "&lt;document_id&gt;",
	"</document_id>", "&lt;/document_id&gt;",
	"<content>", "&lt;content&gt;",
	"</content>", "&lt;/content&gt;",
)

// Reference renders one document as a reference block. Delimiter tags inside
// the id or content are escaped.
func Reference(id, content string) string {
	var b strings.Builder
	b.WriteString("<reference>\n<document_id>")
	b.WriteString(delimiters.Replace(id))
	b.WriteString("</document_id>\n<content>\n")
	b.WriteString(delimiters.Replace(content))
	b.WriteString("\n</content>\n</reference>")
	return b.String()
}
