package inference

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/a3tai/mcp-form-pilot/internal/form"
)

var (
	reEmail   = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	reInteger = regexp.MustCompile(`\d+`)
	reDecimal = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

func labelHas(label string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(label, w) {
			return true
		}
	}
	return false
}

// normalize applies the field specific cleanup chosen by label and format
func normalize(f *form.Field, value string) string {
	value = strings.TrimSpace(value)
	label := strings.ToLower(f.Label + " " + f.Description)

	switch {
	case labelHas(label, "email", "e-mail"):
		return reEmail.FindString(value)
	case labelHas(label, "house number", "house no", "housenumber", "house_number", "huisnummer", "street number"):
		return reInteger.FindString(value)
	case f.Format == form.FormatZip || labelHas(label, "postal", "postcode", "post code", "zip"):
		return keep(value, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) })
	case f.Format == form.FormatPhone || f.Format == form.FormatSSN ||
		labelHas(label, "phone", "telephone", "mobile"):
		return keep(value, unicode.IsDigit)
	case f.Format == form.FormatNumber || labelHas(label, "height"):
		return reDecimal.FindString(value)
	}
	return value
}

func keep(s string, ok func(rune) bool) string {
	var b strings.Builder
	for _, r := range s {
		if ok(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
