package textutil

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	latexBlockPattern  = regexp.MustCompile(`(?s)\$\$.+?\$\$`)
	latexInlinePattern = regexp.MustCompile(`\$([^$\n]+?)\$`)
)

// ProtectLaTeX replaces block ($$...$$) and inline ($...$) formulas with
// opaque placeholders so that punctuation inside them never triggers a
// sentence split. Block formulas are protected first so a later inline pass
// can't partially match into one.
func ProtectLaTeX(text string) (protected string, placeholders map[string]string) {
	placeholders = make(map[string]string)
	counter := 0

	protected = latexBlockPattern.ReplaceAllStringFunc(text, func(m string) string {
		placeholder := fmt.Sprintf("__LATEX_BLOCK_%d__", counter)
		placeholders[placeholder] = m
		counter++
		return placeholder
	})

	protected = latexInlinePattern.ReplaceAllStringFunc(protected, func(m string) string {
		if m == "$$" {
			return m
		}
		placeholder := fmt.Sprintf("__LATEX_INLINE_%d__", counter)
		placeholders[placeholder] = m
		counter++
		return placeholder
	})

	return protected, placeholders
}

// RestoreLaTeX substitutes placeholders produced by ProtectLaTeX back into
// each sentence.
func RestoreLaTeX(sentences []string, placeholders map[string]string) []string {
	if len(placeholders) == 0 {
		return sentences
	}
	restored := make([]string, len(sentences))
	for i, s := range sentences {
		for placeholder, original := range placeholders {
			s = strings.ReplaceAll(s, placeholder, original)
		}
		restored[i] = s
	}
	return restored
}
