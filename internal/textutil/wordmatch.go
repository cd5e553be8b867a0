package textutil

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-pinyin"
)

// WordMatcher checks a transcript against a configured list of trigger
// words (wake words or stop words), with optional fuzzy matching via pinyin
// romanization so "你好" still matches a transcript of "ni hao".
type WordMatcher struct {
	words       []string
	fuzzyPinyin bool
}

// NewWordMatcher builds a matcher over the given trigger words.
func NewWordMatcher(words []string, fuzzyPinyin bool) *WordMatcher {
	return &WordMatcher{words: words, fuzzyPinyin: fuzzyPinyin}
}

// Match reports whether any configured word occurs as a substring of text
// (case-insensitive), falling back to pinyin-romanized substring matching
// when fuzzyPinyin is enabled and no direct match was found.
func (m *WordMatcher) Match(text string) (word string, ok bool) {
	lower := strings.ToLower(text)
	for _, w := range m.words {
		if w == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(w)) {
			return w, true
		}
	}

	if !m.fuzzyPinyin {
		return "", false
	}

	textPy := toPinyin(text)
	if textPy == "" {
		return "", false
	}
	for _, w := range m.words {
		if w == "" {
			continue
		}
		wordPy := toPinyin(w)
		if wordPy != "" && strings.Contains(textPy, wordPy) {
			return w, true
		}
	}

	return "", false
}

var pinyinArgs = func() pinyin.Args {
	a := pinyin.NewArgs()
	a.Fallback = func(r rune, _ pinyin.Args) []string {
		s := strings.TrimSpace(string(r))
		if s == "" {
			return nil
		}
		return []string{strings.ToLower(s)}
	}
	return a
}()

// toPinyin romanizes s, concatenating each character's first-reading
// pinyin with no separators so fuzzy substring comparison behaves like a
// plain string match. Non-Han characters are kept lowercased and
// whitespace is dropped, so "ni hao" and "你好" both become "nihao".
func toPinyin(s string) string {
	readings := pinyin.Pinyin(s, pinyinArgs)
	var b strings.Builder
	for _, r := range readings {
		if len(r) > 0 {
			b.WriteString(r[0])
		}
	}
	return b.String()
}

var leadingSeparators = regexp.MustCompile(`^[,，、。.!！?？\s]+`)

// StripWakeWordPrefix removes the first occurrence of word from the start
// of text along with any immediately-following separator punctuation,
// leaving the residual prompt. If word isn't found, text is returned
// trimmed.
func StripWakeWordPrefix(text, word string) string {
	idx := strings.Index(text, word)
	if idx == -1 {
		return strings.TrimSpace(text)
	}
	residue := text[idx+len(word):]
	return leadingSeparators.ReplaceAllString(residue, "")
}
