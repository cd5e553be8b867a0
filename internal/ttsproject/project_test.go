package ttsproject

import (
	"testing"

	"github.com/normanking/cortexstream/internal/pipeline"
)

func TestProject_ThinkTagSilent(t *testing.T) {
	sentence := pipeline.SentenceUnit{Text: "pondering", Tags: []pipeline.TagInfo{{Name: "think", State: pipeline.TagInside}}}
	display := pipeline.DisplayText{Text: "(pondering)"}
	got := Project(sentence, display, Config{})
	if got != "" {
		t.Errorf("Project() = %q, want empty", got)
	}
}

// S6 — dual-stream tts_text used verbatim, trailing period stripped.
func TestProject_DualStreamVerbatim(t *testing.T) {
	tts := "Hi there."
	sentence := pipeline.SentenceUnit{Text: "**Hello**, world.", TTSText: &tts}
	display := pipeline.DisplayText{Text: "**Hello**, world."}
	got := Project(sentence, display, Config{})
	if got != "Hi there" {
		t.Errorf("Project() = %q, want %q", got, "Hi there")
	}
}

func TestProject_HeadingExtracted(t *testing.T) {
	sentence := pipeline.SentenceUnit{Text: "# Section Title"}
	display := pipeline.DisplayText{Text: "# Section Title"}
	got := Project(sentence, display, Config{})
	if got != "Section Title" {
		t.Errorf("Project() = %q", got)
	}
}

func TestProject_EmptyHeadingSilent(t *testing.T) {
	sentence := pipeline.SentenceUnit{Text: "#"}
	display := pipeline.DisplayText{Text: "#   "}
	got := Project(sentence, display, Config{})
	if got != "" {
		t.Errorf("Project() = %q, want empty", got)
	}
}

func TestProject_MarkdownStripped(t *testing.T) {
	sentence := pipeline.SentenceUnit{Text: "**bold** and `code`"}
	display := pipeline.DisplayText{Text: "**bold** and `code`"}
	got := Project(sentence, display, Config{})
	if got != "bold and code" {
		t.Errorf("Project() = %q", got)
	}
}

func TestProject_NestedBracketsDropped(t *testing.T) {
	sentence := pipeline.SentenceUnit{Text: "keep [[nested] span] this"}
	display := pipeline.DisplayText{Text: "keep [[nested] span] this"}
	got := Project(sentence, display, Config{IgnoreBrackets: true})
	if got != "keep this" {
		t.Errorf("Project() = %q", got)
	}
}

func TestProject_TrailingPunctuationStripped(t *testing.T) {
	sentence := pipeline.SentenceUnit{Text: "你好。"}
	display := pipeline.DisplayText{Text: "你好。"}
	got := Project(sentence, display, Config{})
	if got != "你好" {
		t.Errorf("Project() = %q", got)
	}
}

func TestExtractSimpleVariable_GreekLetter(t *testing.T) {
	got, ok := extractSimpleVariable(`\epsilon_0`)
	if !ok {
		t.Fatal("expected ok")
	}
	if got != "ε下标0" {
		t.Errorf("got %q", got)
	}
}

func TestExtractSimpleVariable_TooLongFallsBack(t *testing.T) {
	_, ok := extractSimpleVariable(`x^2 + y^2 + z^2 + w^2 + verylongname`)
	if ok {
		t.Fatal("expected fallback (too long)")
	}
}
