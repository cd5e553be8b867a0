// Package transform implements the transformer chain: a linear composition
// of stream adapters that enrich each divider.Item with display text,
// avatar actions, and TTS-ready text, forwarding records untouched.
package transform

import (
	"context"
	"regexp"

	"github.com/normanking/cortexstream/internal/divider"
	"github.com/normanking/cortexstream/internal/pipeline"
	"github.com/normanking/cortexstream/internal/ttsproject"
)

// Item is the transformer chain's output: either a finished SentenceOutput
// or a forwarded record, never both.
type Item struct {
	Output *pipeline.SentenceOutput
	Record map[string]any
}

// Chain runs actions_extractor, display_processor, and tts_filter over a
// divider output stream. The returned channel closes once in is drained or
// ctx is canceled.
func Chain(ctx context.Context, in <-chan divider.Item, cfg ttsproject.Config) <-chan Item {
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

		for {
			select {
			case item, more := <-in:
				if !more {
					return
				}
				if item.Record != nil {
					if !emit(Item{Record: item.Record}) {
						return
					}
					continue
				}
				if item.Sentence == nil {
					continue
				}
				output := transformSentence(*item.Sentence, cfg)
				if !emit(Item{Output: &output}) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func transformSentence(sentence pipeline.SentenceUnit, cfg ttsproject.Config) pipeline.SentenceOutput {
	actions := extractActions(sentence)
	display := projectDisplay(sentence)
	ttsText := ttsproject.Project(sentence, display, cfg)
	return pipeline.SentenceOutput{DisplayText: display, TTSText: ttsText, Actions: actions}
}

var expressionPattern = regexp.MustCompile(`\[(\w+)\]`)

// extractActions scans a sentence's text for bracketed expression tokens
// (e.g. "[happy]") unless the unit is itself a tag boundary marker, in
// which case its text ("<think>" etc.) never carries an expression.
func extractActions(sentence pipeline.SentenceUnit) pipeline.Actions {
	if isTagBoundary(sentence) {
		return pipeline.Actions{}
	}

	matches := expressionPattern.FindAllStringSubmatch(sentence.Text, -1)
	if len(matches) == 0 {
		return pipeline.Actions{}
	}

	expressions := make([]string, 0, len(matches))
	for _, m := range matches {
		expressions = append(expressions, m[1])
	}
	return pipeline.Actions{Expressions: expressions}
}

func isTagBoundary(sentence pipeline.SentenceUnit) bool {
	for _, t := range sentence.Tags {
		if t.State == pipeline.TagStart || t.State == pipeline.TagEnd || t.State == pipeline.TagSelfClosing {
			return true
		}
	}
	return false
}

// projectDisplay renders a sentence's UI-facing text: a <think> tag
// boundary becomes a parenthesis marker, everything else passes through
// verbatim (Markdown/LaTeX preserved).
func projectDisplay(sentence pipeline.SentenceUnit) pipeline.DisplayText {
	for _, t := range sentence.Tags {
		if t.Name != "think" {
			continue
		}
		switch t.State {
		case pipeline.TagStart:
			return pipeline.DisplayText{Text: "("}
		case pipeline.TagEnd:
			return pipeline.DisplayText{Text: ")"}
		}
	}
	return pipeline.DisplayText{Text: sentence.Text}
}
