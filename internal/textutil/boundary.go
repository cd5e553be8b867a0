// Package textutil holds the sentence-boundary and text-protection helpers
// shared by the sentence divider and the TTS-text projection: comma lists,
// abbreviation guards, LaTeX placeholders, and the regex sentence segmenter.
package textutil

import (
	"regexp"
	"strings"

	"github.com/pemistahl/lingua-go"
)

// Commas are the Unicode comma variants eligible for the first-sentence
// fast-split (faster_first_response).
var Commas = []string{
	",", "،", "，", "、", "፣", "၊", ";", "΄", "‛", "।",
	"﹐", "꓾", "⹁", "︐", "﹑", "､",
}

// EndPunctuations mark a complete sentence.
var EndPunctuations = []string{".", "!", "?", "。", "！", "？", "...", "。。。"}

// Abbreviations end with a period but never terminate a sentence.
var Abbreviations = []string{
	"Mr.", "Mrs.", "Dr.", "Prof.", "Inc.", "Ltd.", "Jr.", "Sr.",
	"e.g.", "i.e.", "vs.", "St.", "Rd.",
}

// SupportedLanguages is the whitelist of ISO 639-1 codes for which a
// language-aware (rather than plain-regex) segmentation path is attempted.
var SupportedLanguages = map[string]struct{}{
	"am": {}, "ar": {}, "bg": {}, "da": {}, "de": {}, "el": {}, "en": {},
	"es": {}, "fa": {}, "fr": {}, "hi": {}, "hy": {}, "it": {}, "ja": {},
	"kk": {}, "mr": {}, "my": {}, "nl": {}, "pl": {}, "ru": {}, "sk": {},
	"ur": {}, "zh": {},
}

var detector = lingua.NewLanguageDetectorBuilder().FromAllLanguages().Build()

// DetectLanguage returns the ISO 639-1 code of text's detected language and
// true, or ("", false) when detection fails or the language isn't in
// SupportedLanguages.
func DetectLanguage(text string) (string, bool) {
	lang, ok := detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	code := strings.ToLower(lang.IsoCode639_1().String())
	if _, whitelisted := SupportedLanguages[code]; !whitelisted {
		return "", false
	}
	return code, true
}

// IsCompleteSentence reports whether text ends with sentence-terminating
// punctuation and is not merely an abbreviation.
func IsCompleteSentence(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, abbrev := range Abbreviations {
		if strings.HasSuffix(text, abbrev) {
			return false
		}
	}
	for _, punct := range EndPunctuations {
		if strings.HasSuffix(text, punct) {
			return true
		}
	}
	return false
}

// ContainsComma reports whether text contains any recognized comma variant.
func ContainsComma(text string) bool {
	for _, c := range Commas {
		if strings.Contains(text, c) {
			return true
		}
	}
	return false
}

// ContainsEndPunctuation reports whether text contains any sentence-ending
// punctuation mark.
func ContainsEndPunctuation(text string) bool {
	for _, p := range EndPunctuations {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

var (
	digitListAfter  = regexp.MustCompile(`^\s*\d+[.)、]`)
	digitsBefore    = regexp.MustCompile(`\d+$`)
	digitsAfter     = regexp.MustCompile(`^\d+`)
)

// isInsideMarkdownSpan reports whether position pos in text falls inside an
// emphasis or code span opened earlier in the string. It counts markers
// seen so far rather than scanning forward, matching the divider's
// single-pass left-to-right commit semantics.
func isInsideMarkdownSpan(text string, pos int) bool {
	before := text[:pos]

	boldStars := strings.Count(before, "**")
	boldUnderscores := strings.Count(before, "__")
	if boldStars%2 == 1 || boldUnderscores%2 == 1 {
		return true
	}

	singleStars := strings.Count(before, "*") - boldStars*2
	singleUnderscores := strings.Count(before, "_") - boldUnderscores*2
	if singleStars%2 == 1 || singleUnderscores%2 == 1 {
		return true
	}

	tripleBackticks := strings.Count(before, "```")
	backticks := strings.Count(before, "`") - tripleBackticks*3
	if backticks%2 == 1 || tripleBackticks%2 == 1 {
		return true
	}

	return false
}

// isHeadingLine reports whether pos falls on a Markdown heading line (one
// beginning with '#').
func isHeadingLine(text string, pos int) bool {
	lineStart := strings.LastIndexByte(text[:pos], '\n')
	if lineStart == -1 {
		lineStart = 0
	} else {
		lineStart++
	}
	return strings.HasPrefix(strings.TrimSpace(text[lineStart:pos]), "#")
}

// shouldSkipComma reports whether the comma at byte offset pos should be
// protected from splitting: inside a Markdown span, on a heading line, or
// part of a digit-sequence enumeration like "1, 2, 3".
func shouldSkipComma(text string, pos int) bool {
	if isInsideMarkdownSpan(text, pos) {
		return true
	}
	if isHeadingLine(text, pos) {
		return true
	}

	end := pos + 10
	if end > len(text) {
		end = len(text)
	}
	after := strings.TrimSpace(text[pos+1 : end])
	if digitListAfter.MatchString(after) {
		// A list enumerator follows; the split is taken so it binds to
		// the next sentence.
		return false
	}

	start := pos - 10
	if start < 0 {
		start = 0
	}
	before := strings.TrimSpace(text[start:pos])
	if digitsBefore.MatchString(before) && digitsAfter.MatchString(after) {
		return true
	}

	return false
}

// CommaSplitter splits text at the first unprotected comma, returning the
// head (including the comma, trimmed) and the remainder (trimmed). If no
// safe comma is found, it returns (text, "").
func CommaSplitter(text string) (head, rest string) {
	if text == "" {
		return "", ""
	}

	for _, comma := range Commas {
		if !strings.Contains(text, comma) {
			continue
		}
		pos := 0
		for {
			idx := strings.Index(text[pos:], comma)
			if idx == -1 {
				break
			}
			idx += pos
			if !shouldSkipComma(text, idx) {
				cut := idx + len(comma)
				return strings.TrimSpace(text[:cut]), strings.TrimSpace(text[cut:])
			}
			pos = idx + len(comma)
		}
	}

	return text, ""
}

var isolatedEnumerator = regexp.MustCompile(`^(\d+[.)\x{ff09}\x{3001}]?|\(\d+\)|[\x{2460}-\x{2473}])$`)

// MergeIsolatedEnumerators folds a sentence that is nothing but an
// enumerator marker ("1.", "(2)", "①") into the following sentence, so a
// list number never stands alone as its own TTS/display unit.
func MergeIsolatedEnumerators(sentences []string) []string {
	if len(sentences) == 0 {
		return sentences
	}

	merged := make([]string, 0, len(sentences))
	pending := ""

	for _, s := range sentences {
		trimmed := strings.TrimSpace(s)
		if isolatedEnumerator.MatchString(trimmed) {
			pending = trimmed + " "
			continue
		}
		if pending != "" {
			merged = append(merged, pending+trimmed)
			pending = ""
			continue
		}
		merged = append(merged, s)
	}

	if pending != "" {
		merged = append(merged, strings.TrimSpace(pending))
	}

	return merged
}

// StripTrailingPunctuation removes a single trailing "。" or "，" from each
// sentence (Chinese full stops and commas are considered redundant once a
// sentence has been segmented out).
func StripTrailingPunctuation(sentences []string) []string {
	result := make([]string, len(sentences))
	for i, s := range sentences {
		trimmed := strings.TrimRight(s, " \t")
		if strings.HasSuffix(trimmed, "。") || strings.HasSuffix(trimmed, "，") {
			r := []rune(trimmed)
			trimmed = string(r[:len(r)-1])
		}
		result[i] = trimmed
	}
	return result
}

var endPunctPattern = regexp.MustCompile(`.*?(?:\.\.\.|。。。|[.!?。！？])`)

// SegmentByRegex greedily scans text for runs ending in sentence-terminal
// punctuation, skipping matches that merely end in a known abbreviation.
// It returns the complete sentences found and whatever incomplete text
// remains. The Abbreviations list is English-centric, so this path is only
// accurate for whitelisted languages; see segmentByRegexStrict for the
// fallback used elsewhere.
func SegmentByRegex(text string) (sentences []string, remaining string) {
	if text == "" {
		return nil, ""
	}

	remaining = strings.TrimSpace(text)
	searchFrom := 0
	for searchFrom < len(remaining) {
		loc := endPunctPattern.FindStringIndex(remaining[searchFrom:])
		if loc == nil {
			break
		}
		end := searchFrom + loc[1]
		candidate := strings.TrimSpace(remaining[:end])

		isAbbrev := false
		for _, abbrev := range Abbreviations {
			if strings.HasSuffix(candidate, abbrev) {
				isAbbrev = true
				break
			}
		}
		if isAbbrev {
			// Keep the abbreviation in the sentence and look for the next
			// terminator after it.
			searchFrom = end
			continue
		}

		sentences = append(sentences, candidate)
		remaining = strings.TrimLeft(remaining[end:], " \t\n")
		searchFrom = 0
	}

	return sentences, remaining
}

// segmentByRegexStrict splits on terminal punctuation without consulting
// the (English) Abbreviations list, since applying "Mr."-style exceptions
// to a language lingua-go didn't confidently place in SupportedLanguages
// does more harm than good. Used by segmentLine when DetectLanguage can't
// identify a whitelisted language for the line.
func segmentByRegexStrict(text string) (sentences []string, remaining string) {
	if text == "" {
		return nil, ""
	}

	remaining = strings.TrimSpace(text)
	for remaining != "" {
		loc := endPunctPattern.FindStringIndex(remaining)
		if loc == nil {
			break
		}
		sentences = append(sentences, strings.TrimSpace(remaining[:loc[1]]))
		remaining = strings.TrimLeft(remaining[loc[1]:], " \t\n")
	}

	return sentences, remaining
}

// SegmentText splits text into complete sentences plus a trailing
// incomplete remainder. Each line is first classified with the statistical
// language detector: a whitelisted language gets the abbreviation-aware
// regex pass (SegmentByRegex), anything else (undetected, or a language
// lingua-go wasn't confident enough to place in SupportedLanguages) gets
// the stricter regex that doesn't apply English abbreviation exceptions.
func SegmentText(text string) (sentences []string, remaining string) {
	lines := strings.Split(text, "\n")
	var all []string
	var lastRemaining string

	for i, rawLine := range lines {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		lineSentences, lineRemaining := segmentLine(line)
		all = append(all, lineSentences...)

		if i == len(lines)-1 {
			lastRemaining = lineRemaining
			if lastRemaining != "" {
				// Keep the line's trailing whitespace so the next streamed
				// fragment is not glued onto the remainder's last word.
				lastRemaining += rawLine[len(strings.TrimRight(rawLine, " \t")):]
			}
		} else if strings.TrimSpace(lineRemaining) != "" {
			all = append(all, strings.TrimSpace(lineRemaining))
		}
	}

	all = MergeIsolatedEnumerators(all)
	all = StripTrailingPunctuation(all)
	return all, lastRemaining
}

func segmentLine(line string) ([]string, string) {
	protected, placeholders := ProtectLaTeX(line)

	var sentences []string
	var remaining string
	if _, whitelisted := DetectLanguage(protected); whitelisted {
		sentences, remaining = SegmentByRegex(protected)
	} else {
		sentences, remaining = segmentByRegexStrict(protected)
	}

	sentences = RestoreLaTeX(sentences, placeholders)
	if remaining != "" {
		remaining = RestoreLaTeX([]string{remaining}, placeholders)[0]
	}
	return sentences, remaining
}
