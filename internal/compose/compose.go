// Package compose shapes post text to fit the platform's character limit.
package compose

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	CharLimit = 280
	ellipsis  = "..."
)

func Len(text string) int {
	return utf8.RuneCountInString(text)
}

// Truncate keeps as many leading sentences as fit, one per line. Text whose
// first sentence is already too long is hard-cut and ends with an ellipsis.
func Truncate(text string) string {
	budget := CharLimit - len(ellipsis)

	var (
		kept []string
		used int
	)
	for _, sentence := range Sentences(text) {
		n := Len(sentence) + 1
		if used+n > budget {
			break
		}
		kept = append(kept, sentence)
		used += n
	}

	result := strings.Join(kept, "\n")
	if len(kept) == 0 {
		result = strings.TrimSpace(text)
	}
	if Len(result) > budget {
		result = string([]rune(result)[:budget]) + ellipsis
	}
	return result
}

// Sentences splits on runs of whitespace that follow '.', '!' or '?'.
func Sentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{""}
	}

	var (
		out   []string
		runes = []rune(text)
		start int
	)
	for i := 1; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) || !isTerminal(runes[i-1]) {
			continue
		}
		out = append(out, string(runes[start:i]))
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j
	}
	return append(out, string(runes[start:]))
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
