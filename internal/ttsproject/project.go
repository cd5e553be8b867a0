// Package ttsproject computes speech-ready text from a sentence's display
// text: it strips Markdown/LaTeX formatting that would otherwise be read
// aloud literally, while leaving the display text itself untouched.
package ttsproject

import (
	"math/rand"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/normanking/cortexstream/internal/pipeline"
)

// Config toggles the independently-configurable projection steps.
type Config struct {
	RemoveSpecialChar   bool
	IgnoreBrackets      bool
	IgnoreParentheses   bool
	IgnoreAsterisks     bool
	IgnoreAngleBrackets bool
}

// Project computes tts_text for one sentence per the §4.3 rules: a think
// tag silences it, a dual-stream pair is used verbatim, otherwise the
// display text is run through heading extraction, LaTeX replacement,
// Markdown stripping, and the configured optional filters.
func Project(sentence pipeline.SentenceUnit, display pipeline.DisplayText, cfg Config) string {
	if sentence.HasTag("think") {
		return ""
	}
	if sentence.TTSText != nil {
		return stripTrailingSentencePunctuation(*sentence.TTSText)
	}

	text := display.Text

	if content, isHeading := extractHeading(text); isHeading {
		if content == "" {
			return ""
		}
		text = content
	}

	text = replaceLatex(text)
	text = stripMarkdownSymbols(text)

	if cfg.RemoveSpecialChar {
		text = removeSpecialCharacters(text)
	}
	if cfg.IgnoreBrackets {
		text = filterNested(text, '[', ']')
	}
	if cfg.IgnoreParentheses {
		text = filterNested(text, '(', ')')
	}
	if cfg.IgnoreAngleBrackets {
		text = filterNested(text, '<', '>')
	}
	if cfg.IgnoreAsterisks {
		text = filterAsterisks(text)
	}

	return stripTrailingSentencePunctuation(text)
}

var headingLinePattern = regexp.MustCompile(`^#+\s+(.*)$`)

// extractHeading reports whether text is a Markdown heading line and, if
// so, returns its content with the leading '#'s stripped.
func extractHeading(text string) (content string, isHeading bool) {
	trimmed := strings.TrimSpace(text)
	m := headingLinePattern.FindStringSubmatch(trimmed)
	if m == nil {
		return text, false
	}
	return strings.TrimSpace(m[1]), true
}

var formulaReplacements = []string{"这个公式", "这个式子", "这个表达式"}

var (
	blockLatexPattern  = regexp.MustCompile(`\$\$([^$]+)\$\$`)
	inlineLatexPattern = regexp.MustCompile(`\$([^$\n]+)\$`)
)

// replaceLatex turns $$...$$/$...$ formulas into speakable text: a short
// formula becomes a transliterated variable name, a longer one becomes a
// generic spoken placeholder.
func replaceLatex(text string) string {
	text = blockLatexPattern.ReplaceAllStringFunc(text, func(string) string {
		return formulaReplacements[rand.Intn(len(formulaReplacements))]
	})
	text = inlineLatexPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := inlineLatexPattern.FindStringSubmatch(m)
		if v, ok := extractSimpleVariable(sub[1]); ok {
			return v
		}
		return formulaReplacements[rand.Intn(len(formulaReplacements))]
	})
	return text
}

var greekLetters = map[string]string{
	`\alpha`: "α", `\beta`: "β", `\gamma`: "γ", `\delta`: "δ",
	`\epsilon`: "ε", `\varepsilon`: "ε", `\zeta`: "ζ", `\eta`: "η",
	`\theta`: "θ", `\iota`: "ι", `\kappa`: "κ", `\lambda`: "λ",
	`\mu`: "μ", `\nu`: "ν", `\xi`: "ξ", `\pi`: "π",
	`\rho`: "ρ", `\sigma`: "σ", `\tau`: "τ", `\phi`: "φ",
	`\chi`: "χ", `\psi`: "ψ", `\omega`: "ω",
	`\Phi`: "Φ", `\Psi`: "Ψ", `\Omega`: "Ω",
	`\Delta`: "Δ", `\Gamma`: "Γ", `\Theta`: "Θ", `\Lambda`: "Λ",
	`\Xi`: "Ξ", `\Pi`: "Π", `\Sigma`: "Σ",
}

var (
	textWrapPattern        = regexp.MustCompile(`\\text\{([^}]+)\}`)
	subscriptBracePattern  = regexp.MustCompile(`_\{([^}]+)\}`)
	subscriptCharPattern   = regexp.MustCompile(`_([a-zA-Z0-9])`)
	superscriptBracePatter = regexp.MustCompile(`\^\{([^}]+)\}`)
	superscriptCharPattern = regexp.MustCompile(`\^([a-zA-Z0-9])`)
	latexCommandPattern    = regexp.MustCompile(`\\[a-zA-Z]+`)
	latexSpecialCharsRun   = regexp.MustCompile(`[{}\\,;:\s]+`)
)

// extractSimpleVariable transliterates a short LaTeX expression (Greek
// letters, \text{} unwrapping, subscript/superscript handling) into a
// readable name, up to 15 visible characters. It reports false when the
// expression is too long or reduces to nothing speakable, signaling the
// caller to fall back to a generic phrase.
func extractSimpleVariable(latex string) (string, bool) {
	latex = strings.TrimSpace(latex)

	latex = textWrapPattern.ReplaceAllString(latex, "$1")
	latex = subscriptBracePattern.ReplaceAllString(latex, "下标$1")
	latex = subscriptCharPattern.ReplaceAllString(latex, "下标$1")
	latex = superscriptBracePatter.ReplaceAllString(latex, "")
	latex = superscriptCharPattern.ReplaceAllString(latex, "")

	latex = latexCommandPattern.ReplaceAllStringFunc(latex, func(cmd string) string {
		return greekLetters[cmd]
	})

	latex = latexSpecialCharsRun.ReplaceAllString(latex, "")
	latex = strings.TrimSpace(latex)

	if utf8.RuneCountInString(latex) > 15 {
		return "", false
	}
	if latex == "" || !containsLetterOrDigit(latex) {
		return "", false
	}
	return latex, true
}

func containsLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

var (
	headingPrefixPattern = regexp.MustCompile(`(?m)^#+\s+`)
	boldStarPattern      = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	boldUnderscorePatter = regexp.MustCompile(`__([^_]+)__`)
	italicStarPattern    = regexp.MustCompile(`\*([^*]+)\*`)
	italicUnderscorePat  = regexp.MustCompile(`_([^_]+)_`)
	inlineCodePattern    = regexp.MustCompile("`([^`]+)`")
	linkPattern          = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	listMarkerPattern    = regexp.MustCompile(`(?m)^[*\-]\s+`)
	orderedListPattern   = regexp.MustCompile(`(?m)^\d+\.\s+`)
	fencedCodePattern    = regexp.MustCompile("```[\\s\\S]*?```")
)

// stripMarkdownSymbols removes Markdown formatting markers while keeping
// their content: headings, bold/italic, inline code, links, list markers,
// and fenced code blocks (replaced by a spoken placeholder).
func stripMarkdownSymbols(text string) string {
	text = headingPrefixPattern.ReplaceAllString(text, "")
	text = boldStarPattern.ReplaceAllString(text, "$1")
	text = boldUnderscorePatter.ReplaceAllString(text, "$1")
	text = italicStarPattern.ReplaceAllString(text, "$1")
	text = italicUnderscorePat.ReplaceAllString(text, "$1")
	text = inlineCodePattern.ReplaceAllString(text, "$1")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = listMarkerPattern.ReplaceAllString(text, "")
	text = orderedListPattern.ReplaceAllString(text, "")
	text = fencedCodePattern.ReplaceAllString(text, "这段代码")
	return text
}

var asteriskSpanPattern = regexp.MustCompile(`\*+[^*]*\*+`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// filterAsterisks removes any text enclosed in one or more asterisks.
func filterAsterisks(text string) string {
	filtered := asteriskSpanPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(filtered, " "))
}

// removeSpecialCharacters keeps only Unicode letter, number, punctuation,
// and whitespace categories after NFKC normalization.
func removeSpecialCharacters(text string) string {
	normalized := norm.NFKC.String(text)
	var b strings.Builder
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsPunct(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// filterNested strips everything between left/right delimiters, counting
// nesting depth so "[[nested] span]" is handled correctly where a regex
// alone would not be.
func filterNested(text string, left, right rune) string {
	if text == "" {
		return text
	}
	var b strings.Builder
	depth := 0
	for _, r := range text {
		switch r {
		case left:
			depth++
		case right:
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(b.String(), " "))
}

const trailingSentencePuncts = "。，、；：.,;:！？!?"

// stripTrailingSentencePunctuation repeatedly removes trailing sentence
// punctuation, since TTS has no need to speak it.
func stripTrailingSentencePunctuation(text string) string {
	text = strings.TrimSpace(text)
	for text != "" {
		r, size := utf8.DecodeLastRuneInString(text)
		if !strings.ContainsRune(trailingSentencePuncts, r) {
			break
		}
		text = text[:len(text)-size]
	}
	return strings.TrimSpace(text)
}
