package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexstream/internal/pipeline"
	"github.com/normanking/cortexstream/internal/tts"
)

type fakeProvider struct {
	name        string
	calls       []string
	synthDelay  time.Duration
	durationMs  int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Synthesize(ctx context.Context, req *tts.SynthesizeRequest) (*tts.SynthesizeResponse, error) {
	f.calls = append(f.calls, req.Text)
	if f.synthDelay > 0 {
		time.Sleep(f.synthDelay)
	}
	dur := f.durationMs
	if dur == 0 {
		dur = 100
	}
	return &tts.SynthesizeResponse{Audio: []byte{1, 2, 3, 4}, Format: "raw", Duration: time.Duration(dur) * time.Millisecond}, nil
}

func (f *fakeProvider) SynthesizeStream(ctx context.Context, req *tts.SynthesizeRequest) (<-chan *tts.AudioChunk, error) {
	return nil, nil
}
func (f *fakeProvider) ListVoices(ctx context.Context) ([]tts.Voice, error) { return nil, nil }
func (f *fakeProvider) Health(ctx context.Context) error                   { return nil }
func (f *fakeProvider) Capabilities() tts.ProviderCapabilities             { return tts.ProviderCapabilities{} }

func output(text string) pipeline.SentenceOutput {
	return pipeline.SentenceOutput{
		DisplayText: pipeline.DisplayText{Text: text},
		TTSText:     text,
	}
}

func TestOrchestrator_OrderedDeliverySingleMode(t *testing.T) {
	provider := &fakeProvider{name: "piper", synthDelay: 5 * time.Millisecond}
	o := New(provider, Config{}, zerolog.Nop())
	ctx := context.Background()

	// All three synthesize concurrently with the same delay, so their
	// completion order is not fixed; assert the reorder buffer still
	// delivers 1,2,3 in order.
	o.Submit(ctx, output("one"))
	o.Submit(ctx, output("two"))
	o.Submit(ctx, output("three"))
	o.Finish(ctx)

	var got []string
	for p := range o.Payloads() {
		got = append(got, p.DisplayText.Text)
	}
	want := []string{"one", "two", "three"}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("delivery order = %v, want %v", got, want)
		}
	}
}

func TestOrchestrator_HeadingIsSilent(t *testing.T) {
	provider := &fakeProvider{name: "piper"}
	o := New(provider, Config{}, zerolog.Nop())
	ctx := context.Background()

	o.Submit(ctx, output("# Section"))
	o.Finish(ctx)

	var payloads []pipeline.AudioPayload
	for p := range o.Payloads() {
		payloads = append(payloads, p)
	}
	if len(payloads) != 1 || !payloads[0].IsSilent() {
		t.Fatalf("expected one silent payload, got %+v", payloads)
	}
	if len(provider.calls) != 0 {
		t.Errorf("expected no synthesis call for heading, got %v", provider.calls)
	}
}

func TestOrchestrator_EmotionTagOnlyDropped(t *testing.T) {
	provider := &fakeProvider{name: "piper"}
	o := New(provider, Config{}, zerolog.Nop())
	ctx := context.Background()

	o.Submit(ctx, pipeline.SentenceOutput{DisplayText: pipeline.DisplayText{Text: "[neutral]"}, TTSText: "[neutral]"})
	o.Submit(ctx, output("Hello there."))
	o.Finish(ctx)

	var payloads []pipeline.AudioPayload
	for p := range o.Payloads() {
		payloads = append(payloads, p)
	}
	if len(payloads) != 1 {
		t.Fatalf("expected only the non-tag sentence to produce a payload, got %d", len(payloads))
	}
}

func TestOrchestrator_MergeModeProgressiveRamp(t *testing.T) {
	provider := &fakeProvider{name: "remote", durationMs: 300}
	o := New(provider, Config{MergeEnabled: true, MaxSentencesCap: 3}, zerolog.Nop())
	ctx := context.Background()

	// Round 1: buffer size 1 -> flushes immediately after the first sentence.
	o.Submit(ctx, output("First sentence."))
	// Round 2: buffer size 2.
	o.Submit(ctx, output("Second sentence."))
	o.Submit(ctx, output("Third sentence."))
	o.Finish(ctx)

	var payloads []pipeline.AudioPayload
	for p := range o.Payloads() {
		payloads = append(payloads, p)
	}
	if len(payloads) != 3 {
		t.Fatalf("expected 3 payloads, got %d", len(payloads))
	}
	if len(provider.calls) != 2 {
		t.Fatalf("expected 2 synth calls (round of 1, round of 2), got %d: %v", len(provider.calls), provider.calls)
	}
	if payloads[0].MergeInfo == nil || !payloads[0].MergeInfo.IsMerged {
		t.Fatalf("expected first payload to carry merge info")
	}
	// payloads[1] opens round 2 and carries its audio; payloads[2] is that
	// round's continuation.
	if payloads[2].Audio != nil {
		t.Errorf("continuation payload should not carry audio, got %d bytes", len(payloads[2].Audio))
	}
	if payloads[2].MergeInfo == nil || payloads[2].MergeInfo.DelayBeforeShowMs == nil {
		t.Fatalf("continuation payload should carry delay_before_show_ms")
	}
}

func TestOrchestrator_MergeBufferFlushedOnTurnEnd(t *testing.T) {
	provider := &fakeProvider{name: "remote", durationMs: 300}
	o := New(provider, Config{MergeEnabled: true, MaxSentencesCap: 3}, zerolog.Nop())
	ctx := context.Background()

	o.Submit(ctx, output("First sentence.")) // flushes alone (round max 1)
	o.Submit(ctx, output("Second sentence.")) // starts round of 2, buffered
	o.Finish(ctx)                             // must flush the residual buffer

	var payloads []pipeline.AudioPayload
	for p := range o.Payloads() {
		payloads = append(payloads, p)
	}
	if len(payloads) != 2 {
		t.Fatalf("expected 2 payloads (1 immediate + 1 flushed at turn end), got %d", len(payloads))
	}
}
