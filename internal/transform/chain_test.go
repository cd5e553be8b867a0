package transform

import (
	"context"
	"testing"

	"github.com/normanking/cortexstream/internal/divider"
	"github.com/normanking/cortexstream/internal/pipeline"
	"github.com/normanking/cortexstream/internal/ttsproject"
)

func runChain(t *testing.T, items []divider.Item) []Item {
	t.Helper()
	in := make(chan divider.Item)
	ctx := context.Background()
	out := Chain(ctx, in, ttsproject.Config{RemoveSpecialChar: true, IgnoreBrackets: true})

	go func() {
		defer close(in)
		for _, item := range items {
			in <- item
		}
	}()

	var got []Item
	for item := range out {
		got = append(got, item)
	}
	return got
}

func TestChain_ExtractsExpressionAndDisplay(t *testing.T) {
	items := []divider.Item{
		{Sentence: &pipeline.SentenceUnit{Text: "[happy] Great to see you!", Tags: []pipeline.TagInfo{{State: pipeline.TagNone}}}},
	}
	got := runChain(t, items)
	if len(got) != 1 || got[0].Output == nil {
		t.Fatalf("expected one output item, got %v", got)
	}
	out := got[0].Output
	if len(out.Actions.Expressions) != 1 || out.Actions.Expressions[0] != "happy" {
		t.Errorf("actions = %+v", out.Actions)
	}
	if out.DisplayText.Text != "[happy] Great to see you!" {
		t.Errorf("display = %q", out.DisplayText.Text)
	}
}

func TestChain_ThinkTagBoundaryDisplay(t *testing.T) {
	items := []divider.Item{
		{Sentence: &pipeline.SentenceUnit{Text: "<think>", Tags: []pipeline.TagInfo{{Name: "think", State: pipeline.TagStart}}}},
	}
	got := runChain(t, items)
	if len(got) != 1 || got[0].Output == nil {
		t.Fatalf("expected one output item")
	}
	if got[0].Output.DisplayText.Text != "(" {
		t.Errorf("display = %q, want (", got[0].Output.DisplayText.Text)
	}
	if got[0].Output.TTSText != "" {
		t.Errorf("tts text = %q, want empty for think tag", got[0].Output.TTSText)
	}
}

func TestChain_ForwardsRecordsUntouched(t *testing.T) {
	items := []divider.Item{
		{Sentence: &pipeline.SentenceUnit{Text: "Hello.", Tags: []pipeline.TagInfo{{State: pipeline.TagNone}}}},
		{Record: map[string]any{"kind": "marker"}},
	}
	got := runChain(t, items)
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[1].Record == nil || got[1].Record["kind"] != "marker" {
		t.Errorf("record not forwarded: %+v", got[1])
	}
}
