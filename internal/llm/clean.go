package llm

import (
	"regexp"
	"strings"
)

var (
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFence  = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*\n?(.*?)\\s*```$")
)

// Clean removes reasoning blocks and a surrounding markdown code fence from
// a model response
func Clean(s string) string {
	s = thinkBlock.ReplaceAllString(s, "")
	// an unterminated block swallows the rest of the reply
	if i := strings.Index(s, "<think>"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	return s
}
