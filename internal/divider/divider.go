// Package divider implements the incremental sentence divider: it consumes
// a stream of text fragments and out-of-band records and yields a stream of
// segmented SentenceUnits (or the records, untouched, in their original
// position).
package divider

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexstream/internal/pipeline"
	"github.com/normanking/cortexstream/internal/textutil"
)

// Item is one unit of the divider's output: either a segmented
// SentenceUnit or a forwarded record, never both.
type Item struct {
	Sentence *pipeline.SentenceUnit
	Record   map[string]any
}

// Config controls the divider's segmentation behavior.
type Config struct {
	// FasterFirstResponse splits the first sentence of a turn at its first
	// safe comma to reduce time-to-first-audio.
	FasterFirstResponse bool
	// ValidTags are the tag names recognized in the nested tag grammar.
	ValidTags []string
	// DualStreamMode matches <show>X</show><say>Y</say> pairs instead of
	// the tag grammar.
	DualStreamMode bool
}

// DefaultConfig mirrors the reference implementation's defaults.
func DefaultConfig() Config {
	return Config{
		FasterFirstResponse: true,
		ValidTags:           []string{"think"},
		DualStreamMode:      true,
	}
}

var dualStreamPattern = regexp.MustCompile(`(?s)<show>(.*?)</show>\s*<say>(.*?)</say>`)
var unclosedShowPattern = regexp.MustCompile(`(?s)<show>(.*?)(?:</show>|$)`)

// Divider incrementally segments a stream of text fragments into sentence
// units, tracking a nested tag stack and, when enabled, the dual-stream
// grammar. A Divider is not safe for concurrent use; one per conversation
// turn.
type Divider struct {
	cfg    Config
	logger zerolog.Logger

	isFirstSentence bool
	buffer          string
	tagStack        []pipeline.TagInfo
}

// New creates a Divider with the given configuration.
func New(cfg Config, logger zerolog.Logger) *Divider {
	d := &Divider{cfg: cfg, logger: logger.With().Str("component", "divider").Logger()}
	d.Reset()
	return d
}

// Reset clears all per-turn state: buffer, first-sentence flag, tag stack.
// Call at the start of each conversation turn.
func (d *Divider) Reset() {
	d.isFirstSentence = true
	d.buffer = ""
	d.tagStack = nil
}

// Process consumes fragments from in and returns a channel of Items,
// closed once in is drained and the final buffer flush completes. A
// canceled ctx stops processing early without completing the flush.
func (d *Divider) Process(ctx context.Context, in <-chan pipeline.TextFragment) <-chan Item {
	out := make(chan Item)

	go func() {
		defer close(out)

		emit := func(item Item) bool {
			select {
			case out <- item:
				return true
			case <-ctx.Done():
				return false
			}
		}

		d.Reset()

		for {
			select {
			case frag, more := <-in:
				if !more {
					d.flush(emit)
					return
				}
				if frag.IsRecord() {
					if !d.drain(emit) {
						return
					}
					if !emit(Item{Record: frag.Record}) {
						return
					}
					continue
				}
				if frag.Text == nil {
					continue
				}
				d.buffer += *frag.Text
				if !d.drain(emit) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (d *Divider) drain(emit func(Item) bool) bool {
	if d.cfg.DualStreamMode {
		return d.processDualStreamBuffer(emit)
	}
	return d.processBuffer(emit)
}

func (d *Divider) flush(emit func(Item) bool) {
	if d.cfg.DualStreamMode {
		d.flushDualStreamBuffer(emit)
		return
	}
	d.flushBuffer(emit)
}

func (d *Divider) currentTags() []pipeline.TagInfo {
	if len(d.tagStack) == 0 {
		return nil
	}
	tags := make([]pipeline.TagInfo, len(d.tagStack))
	for i, t := range d.tagStack {
		tags[i] = pipeline.TagInfo{Name: t.Name, State: pipeline.TagInside}
	}
	return tags
}

func tagsOrNone(tags []pipeline.TagInfo) []pipeline.TagInfo {
	if len(tags) == 0 {
		return []pipeline.TagInfo{{State: pipeline.TagNone}}
	}
	return tags
}

// extractTag finds the earliest tag boundary (self-closing, then opening,
// then closing forms, in that precedence when positions tie) in text,
// updates the tag stack accordingly, and returns the tag plus the text
// following it (leading whitespace trimmed).
func (d *Divider) extractTag(text string) (*pipeline.TagInfo, string) {
	firstPos := len(text)
	var tagType pipeline.TagState
	var matchedTag string
	found := false

	for _, tag := range d.cfg.ValidTags {
		if pos := strings.Index(text, "<"+tag+"/>"); pos != -1 && pos < firstPos {
			firstPos, tagType, matchedTag, found = pos, pipeline.TagSelfClosing, tag, true
		}
	}
	for _, tag := range d.cfg.ValidTags {
		if pos := strings.Index(text, "<"+tag+">"); pos != -1 && pos < firstPos {
			firstPos, tagType, matchedTag, found = pos, pipeline.TagStart, tag, true
		}
	}
	for _, tag := range d.cfg.ValidTags {
		if pos := strings.Index(text, "</"+tag+">"); pos != -1 && pos < firstPos {
			firstPos, tagType, matchedTag, found = pos, pipeline.TagEnd, tag, true
		}
	}

	if !found {
		return nil, text
	}

	var patternLen int
	switch tagType {
	case pipeline.TagSelfClosing:
		patternLen = len(matchedTag) + 3
	case pipeline.TagStart:
		patternLen = len(matchedTag) + 2
	case pipeline.TagEnd:
		patternLen = len(matchedTag) + 3
	}
	endPos := firstPos + patternLen

	switch tagType {
	case pipeline.TagStart:
		d.tagStack = append(d.tagStack, pipeline.TagInfo{Name: matchedTag, State: pipeline.TagStart})
	case pipeline.TagEnd:
		if len(d.tagStack) == 0 || d.tagStack[len(d.tagStack)-1].Name != matchedTag {
			d.logger.Warn().Str("tag", matchedTag).Msg("mismatched closing tag")
		} else {
			d.tagStack = d.tagStack[:len(d.tagStack)-1]
		}
	}

	return &pipeline.TagInfo{Name: matchedTag, State: tagType}, strings.TrimLeft(text[endPos:], " \t\n")
}

// processBuffer repeatedly emits whatever complete units the buffer
// permits, leaving an incomplete remainder for the next fragment. It
// returns false if emission was interrupted by context cancellation.
func (d *Divider) processBuffer(emit func(Item) bool) bool {
	for {
		if strings.TrimSpace(d.buffer) == "" {
			return true
		}

		nextTagPos := len(d.buffer)
		tagPatternFound := ""
		for _, tag := range d.cfg.ValidTags {
			for _, pattern := range []string{"<" + tag + ">", "</" + tag + ">", "<" + tag + "/>"} {
				if pos := strings.Index(d.buffer, pattern); pos != -1 && pos < nextTagPos {
					nextTagPos = pos
					tagPatternFound = pattern
				}
			}
		}

		if nextTagPos == 0 {
			tagInfo, remaining := d.extractTag(d.buffer)
			if tagInfo != nil {
				processed := strings.TrimSpace(d.buffer[:len(d.buffer)-len(remaining)])
				if !emit(Item{Sentence: &pipeline.SentenceUnit{Text: processed, Tags: []pipeline.TagInfo{*tagInfo}}}) {
					return false
				}
				d.buffer = remaining
				continue
			}
		} else if nextTagPos < len(d.buffer) {
			textBeforeTag := d.buffer[:nextTagPos]
			currentTags := d.currentTags()

			if textutil.ContainsEndPunctuation(textBeforeTag) {
				sentences, _ := textutil.SegmentText(textBeforeTag)
				for _, s := range sentences {
					if strings.TrimSpace(s) == "" {
						continue
					}
					if !emit(Item{Sentence: &pipeline.SentenceUnit{Text: strings.TrimSpace(s), Tags: tagsOrNone(currentTags)}}) {
						return false
					}
				}
				d.buffer = d.buffer[len(textBeforeTag):]
				continue
			}

			if strings.TrimSpace(textBeforeTag) != "" && tagPatternFound != "" {
				if !emit(Item{Sentence: &pipeline.SentenceUnit{Text: strings.TrimSpace(textBeforeTag), Tags: tagsOrNone(currentTags)}}) {
					return false
				}
				d.buffer = d.buffer[len(textBeforeTag):]
				continue
			}

			tagInfo, remainingAfterTag := d.extractTag(d.buffer)
			if tagInfo != nil {
				processedTagText := strings.TrimSpace(d.buffer[:len(d.buffer)-len(remainingAfterTag)])
				if !emit(Item{Sentence: &pipeline.SentenceUnit{Text: processedTagText, Tags: []pipeline.TagInfo{*tagInfo}}}) {
					return false
				}
				d.buffer = remainingAfterTag
				continue
			}
		}

		currentTags := d.currentTags()

		if d.isFirstSentence && d.cfg.FasterFirstResponse && textutil.ContainsComma(d.buffer) {
			sentence, remaining := textutil.CommaSplitter(d.buffer)
			if strings.TrimSpace(sentence) != "" {
				if !emit(Item{Sentence: &pipeline.SentenceUnit{Text: strings.TrimSpace(sentence), Tags: tagsOrNone(currentTags)}}) {
					return false
				}
				d.buffer = remaining
				d.isFirstSentence = false
				continue
			}
		}

		if textutil.ContainsEndPunctuation(d.buffer) {
			sentences, remaining := textutil.SegmentText(d.buffer)
			if len(sentences) > 0 {
				d.buffer = remaining
				d.isFirstSentence = false
				for _, s := range sentences {
					if strings.TrimSpace(s) == "" {
						continue
					}
					if !emit(Item{Sentence: &pipeline.SentenceUnit{Text: strings.TrimSpace(s), Tags: tagsOrNone(currentTags)}}) {
						return false
					}
				}
				continue
			}
		}

		return true
	}
}

// flushBuffer drains whatever processBuffer can still emit, then yields any
// non-empty residue verbatim as a final fragment.
func (d *Divider) flushBuffer(emit func(Item) bool) {
	if !d.processBuffer(emit) {
		return
	}
	if strings.TrimSpace(d.buffer) != "" {
		emit(Item{Sentence: &pipeline.SentenceUnit{Text: strings.TrimSpace(d.buffer), Tags: tagsOrNone(d.currentTags())}})
		d.buffer = ""
	}
}

// processDualStreamBuffer extracts every complete <show>X</show><say>Y</say>
// pair currently in the buffer.
func (d *Divider) processDualStreamBuffer(emit func(Item) bool) bool {
	for {
		loc := dualStreamPattern.FindStringSubmatchIndex(d.buffer)
		if loc == nil {
			return true
		}

		display := strings.TrimSpace(d.buffer[loc[2]:loc[3]])
		ttsText := strings.TrimSpace(d.buffer[loc[4]:loc[5]])

		if !emit(Item{Sentence: &pipeline.SentenceUnit{
			Text:    display,
			Tags:    []pipeline.TagInfo{{State: pipeline.TagNone}},
			TTSText: &ttsText,
		}}) {
			return false
		}

		d.buffer = d.buffer[loc[1]:]
		d.isFirstSentence = false
	}
}

// flushDualStreamBuffer drains complete pairs, then handles an unclosed
// <show>X at end of stream (emitted with tts_text=X) or non-tag residue
// (emitted verbatim with a warning, since the model failed to follow the
// dual-stream convention).
func (d *Divider) flushDualStreamBuffer(emit func(Item) bool) {
	if !d.processDualStreamBuffer(emit) {
		return
	}

	remaining := strings.TrimSpace(d.buffer)
	if remaining != "" {
		if loc := unclosedShowPattern.FindStringSubmatchIndex(remaining); loc != nil {
			display := strings.TrimSpace(remaining[loc[2]:loc[3]])
			if display != "" {
				emit(Item{Sentence: &pipeline.SentenceUnit{
					Text:    display,
					Tags:    []pipeline.TagInfo{{State: pipeline.TagNone}},
					TTSText: &display,
				}})
			}
		} else if !strings.HasPrefix(remaining, "<") {
			d.logger.Warn().Str("residue", remaining).Msg("non-tag residue received in dual-stream mode")
			emit(Item{Sentence: &pipeline.SentenceUnit{
				Text:    remaining,
				Tags:    []pipeline.TagInfo{{State: pipeline.TagNone}},
				TTSText: &remaining,
			}})
		}
	}

	d.buffer = ""
	d.flushBuffer(emit)
}
