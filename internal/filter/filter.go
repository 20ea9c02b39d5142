// Package filter decides whether a piece of text is fit to be posted as a standalone update.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var DefaultBlockedKeywords = []string{
	"we'll", "we will", "join us", "tomorrow", "register", "sign up",
	"link below", "spaces", "event", "set reminder", "8–9 pm",
	"tune in", "livestream", "discussion", "webinar", "follow for more",
	"today", "next week", "morning", "evening", "tonight",
}

var DefaultPersonalWords = []string{"i ", "my ", "me ", "our ", "we ", "mine ", "myself"}

var DefaultThreadPatterns = []string{`^\(?\s*1[./]\s*`, `part\s*\d+`, `🧵`, `thread`}

// Anything outside letters, digits, underscore, whitespace and basic punctuation.
var disallowedSymbols = regexp.MustCompile(`[^\p{L}\p{N}_\s\v\p{Z},.'"!?-]`)

type pattern struct {
	source string
	re     *regexp.Regexp
}

type Filter struct {
	blocked  []string
	personal []pattern
	thread   []pattern
}

// New builds a filter; empty lists fall back to the defaults.
func New(blockedKeywords, personalWords []string) (*Filter, error) {
	if len(blockedKeywords) == 0 {
		blockedKeywords = DefaultBlockedKeywords
	}
	if len(personalWords) == 0 {
		personalWords = DefaultPersonalWords
	}

	f := &Filter{
		blocked: lo.Map(blockedKeywords, func(w string, _ int) string { return strings.ToLower(w) }),
	}

	for _, w := range personalWords {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(w)) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("personal word %q: %w", w, err)
		}
		f.personal = append(f.personal, pattern{source: w, re: re})
	}

	for _, p := range DefaultThreadPatterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("thread pattern %q: %w", p, err)
		}
		f.thread = append(f.thread, pattern{source: p, re: re})
	}

	return f, nil
}

func MustNew(blockedKeywords, personalWords []string) *Filter {
	f, err := New(blockedKeywords, personalWords)
	if err != nil {
		panic(err)
	}
	return f
}

// Check returns true and "Allowed" for acceptable text, otherwise false and
// every reason that applies, joined with "; ".
func (f *Filter) Check(text string) (bool, string) {
	lower := strings.ToLower(strings.TrimSpace(text))

	var reasons []string

	if word, ok := lo.Find(f.blocked, func(w string) bool { return strings.Contains(lower, w) }); ok {
		reasons = append(reasons, fmt.Sprintf("blocked keyword: '%s'", word))
	}

	if p, ok := lo.Find(f.thread, func(p pattern) bool { return p.re.MatchString(lower) }); ok {
		reasons = append(reasons, fmt.Sprintf("thread pattern: '%s'", p.source))
	}

	if strings.Contains(lower, "http") || strings.ContainsAny(lower, "@#") {
		reasons = append(reasons, "contains link/mention/hashtag")
	}

	if disallowedSymbols.MatchString(text) {
		reasons = append(reasons, "contains disallowed symbols")
	}

	if p, ok := lo.Find(f.personal, func(p pattern) bool { return p.re.MatchString(lower) }); ok {
		reasons = append(reasons, fmt.Sprintf("personal word: '%s'", p.source))
	}

	if strings.HasPrefix(lower, "@") {
		reasons = append(reasons, "reply-style tweet")
	}

	if len(reasons) > 0 {
		return false, strings.Join(reasons, "; ")
	}
	return true, "Allowed"
}
