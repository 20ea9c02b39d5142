package source

import (
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
)

var redundantNewLines = regexp.MustCompile(`\n{3,}`)

// plainText strips markup some feeds leave in titles. Text without tags is
// returned trimmed.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsRune(s, '<') {
		return s
	}

	doc, err := readability.FromReader(strings.NewReader(s), nil)
	if err != nil {
		return s
	}

	text := strings.TrimSpace(redundantNewLines.ReplaceAllString(doc.TextContent, "\n"))
	if text == "" {
		return s
	}
	return text
}
