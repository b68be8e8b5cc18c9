package question

import (
	"context"
	"strings"
)

// Heuristic picks the last sentence that looks like a question
type Heuristic struct{}

// Extract implements Extractor
func (Heuristic) Extract(_ context.Context, text string, _ []string) (Extraction, error) {
	if !IsCandidate(text) {
		return Extraction{Source: SourceFilter}, nil
	}
	q := LastQuestion(text)
	return Extraction{IsQuestion: q != "", Question: q, Source: SourceHeuristic}, nil
}

// LastQuestion splits text on sentence punctuation (. ! ? ¿) and returns
// the last sentence that ends with '?' or starts with '¿', with a
// trailing '?' ensured. It returns "" when there is none.
func LastQuestion(text string) string {
	var sentences []string
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '¿':
			flush(&b, &sentences)
			b.WriteRune(r)
		case '?', '.', '!':
			b.WriteRune(r)
			flush(&b, &sentences)
		default:
			b.WriteRune(r)
		}
	}
	flush(&b, &sentences)

	for i := len(sentences) - 1; i >= 0; i-- {
		s := sentences[i]
		if strings.HasSuffix(s, "?") || strings.HasPrefix(s, "¿") {
			if !strings.HasSuffix(s, "?") {
				s += "?"
			}
			if strings.Trim(s, "¿? ") == "" {
				continue
			}
			return s
		}
	}
	return ""
}

func flush(b *strings.Builder, out *[]string) {
	if s := strings.TrimSpace(b.String()); s != "" {
		*out = append(*out, s)
	}
	b.Reset()
}
