// Package conversation implements the turn-taking state machine that sits
// between a client's raw input and the streaming response pipeline.
package conversation

import (
	"regexp"
	"strings"
	"sync"
)

// NoisePatterns lists ASR transcripts that are noise rather than speech:
// lone punctuation and single filler particles. An exact match against one
// of these (after trimming) means the transcript should be dropped silently
// instead of starting a turn.
var NoisePatterns = []string{
	"。", ".", "，", ",", "!", "?",
	"嗯", "啊", "哦", "呃",
}

// DefaultFillerWords are English filler words stripped from the interior of
// an otherwise meaningful transcript.
var DefaultFillerWords = []string{
	"um", "uh", "uhh", "umm",
	"like", "you know", "basically",
	"actually", "literally", "so",
	"er", "ah", "hmm", "mm",
	"well", "right", "okay",
}

// NoiseFilter is the pre-screen applied to an ASR transcript before it is
// handed to the conversation controller: it rejects noise-only transcripts
// outright and strips filler words from the rest.
type NoiseFilter struct {
	mu           sync.RWMutex
	noisePattern map[string]struct{}
	fillerWords  map[string]struct{}
	pattern      *regexp.Regexp
}

// NewNoiseFilter creates a filter with the given filler words. A nil slice
// selects DefaultFillerWords.
func NewNoiseFilter(fillerWords []string) *NoiseFilter {
	if fillerWords == nil {
		fillerWords = DefaultFillerWords
	}

	f := &NoiseFilter{
		noisePattern: make(map[string]struct{}, len(NoisePatterns)),
		fillerWords:  make(map[string]struct{}, len(fillerWords)),
	}
	for _, p := range NoisePatterns {
		f.noisePattern[p] = struct{}{}
	}
	for _, word := range fillerWords {
		f.fillerWords[strings.ToLower(word)] = struct{}{}
	}

	f.buildPattern()
	return f
}

func (f *NoiseFilter) buildPattern() {
	if len(f.fillerWords) == 0 {
		f.pattern = nil
		return
	}

	patterns := make([]string, 0, len(f.fillerWords))
	for word := range f.fillerWords {
		patterns = append(patterns, `\b`+regexp.QuoteMeta(word)+`\b`)
	}
	f.pattern = regexp.MustCompile(`(?i)(` + strings.Join(patterns, `|`) + `)`)
}

// IsNoiseOnly reports whether text is exactly one of the known ASR noise
// tokens (lone punctuation or filler particle), matching the upstream ASR
// pre-screen: an exact match, not a substring test.
func (f *NoiseFilter) IsNoiseOnly(text string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.noisePattern[text]
	return ok
}

// Clean removes filler words from text and normalizes whitespace. It
// returns the cleaned text and whether meaningful content remains.
func (f *NoiseFilter) Clean(text string) (cleaned string, hasMeaningfulContent bool) {
	if text == "" {
		return "", false
	}

	f.mu.RLock()
	pattern := f.pattern
	f.mu.RUnlock()

	cleaned = text
	if pattern != nil {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}

	cleaned = regexp.MustCompile(`\s+`).ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if regexp.MustCompile(`^[.,!?;:，。！？\s]+$`).MatchString(cleaned) {
		cleaned = ""
	}

	return cleaned, cleaned != ""
}

// Screen applies the full pre-screen to a raw ASR transcript: exact
// noise-token rejection first, then filler stripping. ok is false when the
// transcript should be dropped silently (empty, noise-only, or filler-only).
func (f *NoiseFilter) Screen(rawText string) (cleaned string, ok bool) {
	trimmed := strings.TrimSpace(rawText)
	if trimmed == "" {
		return "", false
	}
	if f.IsNoiseOnly(trimmed) {
		return "", false
	}
	return f.Clean(trimmed)
}

// AddFillerWord adds a word to the filler list.
func (f *NoiseFilter) AddFillerWord(word string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fillerWords[strings.ToLower(word)] = struct{}{}
	f.buildPattern()
}

// RemoveFillerWord removes a word from the filler list.
func (f *NoiseFilter) RemoveFillerWord(word string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.fillerWords, strings.ToLower(word))
	f.buildPattern()
}

// GetFillerWords returns a copy of the current filler word list.
func (f *NoiseFilter) GetFillerWords() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	words := make([]string, 0, len(f.fillerWords))
	for word := range f.fillerWords {
		words = append(words, word)
	}
	return words
}
