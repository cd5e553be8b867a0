// Package orchestrator schedules per-sentence TTS synthesis, enforces
// ordered delivery to the client despite concurrent generation, and
// implements the progressive sentence-merge ramp for providers that
// benefit from fewer, larger synthesis calls.
package orchestrator

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexstream/internal/pipeline"
	"github.com/normanking/cortexstream/internal/tts"
)

// Config parameterizes one Orchestrator instance. A fresh Orchestrator is
// created per ConversationTurn, so its progressive sentence count always starts
// at zero for a new turn — matching reset_for_new_conversation semantics
// without needing an explicit reset call.
type Config struct {
	MergeEnabled    bool
	MaxSentencesCap int // default 3
	VoiceID         string
	Speed           float64
	Format          string
}

func (c Config) cap() int {
	if c.MaxSentencesCap <= 0 {
		return 3
	}
	return c.MaxSentencesCap
}

// Orchestrator is the TTS Orchestrator for a single conversation turn.
type Orchestrator struct {
	provider tts.Provider
	cfg      Config
	logger   zerolog.Logger
	merge    bool

	out chan pipeline.AudioPayload
	wg  sync.WaitGroup

	mu           sync.Mutex
	nextSeq      int
	nextToSend   int
	pending      map[int]pipeline.AudioPayload
	mergeBuffer  pipeline.MergeBuffer
	progressiveN int
}

// New builds an Orchestrator bound to provider. Merge mode is selected
// only when cfg.MergeEnabled is set AND provider is the rate-limited
// remote engine — every other provider always runs single mode.
func New(provider tts.Provider, cfg Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		merge:    cfg.MergeEnabled && provider.Name() == "remote",
		out:      make(chan pipeline.AudioPayload, 8),
		pending:  make(map[int]pipeline.AudioPayload),
	}
}

// Payloads returns the ordered outbound payload stream. It closes once
// Finish has flushed every outstanding and buffered sentence.
func (o *Orchestrator) Payloads() <-chan pipeline.AudioPayload {
	return o.out
}

var emotionTagPattern = regexp.MustCompile(`\[\w+\]`)
var purePunctPattern = regexp.MustCompile(`[\s.,!?，。！？'"』」）】]+`)

func isHeading(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "#")
}

func isEmotionTagOnly(text string) bool {
	cleaned := strings.TrimSpace(emotionTagPattern.ReplaceAllString(text, ""))
	return cleaned == "" && strings.Contains(text, "[")
}

func stripEmotionTags(text string) string {
	return strings.TrimSpace(emotionTagPattern.ReplaceAllString(text, ""))
}

func stripHeadingLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "#") {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isPurePunctuation(text string) bool {
	return purePunctPattern.ReplaceAllString(text, "") == ""
}

// Submit runs one sentence through the title/emotion-tag pre-filter and
// then dispatches it to whichever synthesis strategy this orchestrator is
// running. It never blocks on synthesis itself in single mode.
func (o *Orchestrator) Submit(ctx context.Context, output pipeline.SentenceOutput) {
	ttsText := output.TTSText
	display := output.DisplayText
	actions := output.Actions

	if isHeading(ttsText) || isHeading(display.Text) {
		o.submitSilent(ctx, display, actions)
		return
	}
	if isEmotionTagOnly(ttsText) {
		return
	}

	filtered := stripEmotionTags(ttsText)
	filtered = stripHeadingLines(filtered)
	if strings.TrimSpace(filtered) == "" || isPurePunctuation(filtered) {
		o.submitSilent(ctx, display, actions)
		return
	}

	if o.merge {
		o.submitMerge(ctx, filtered, display, actions)
	} else {
		o.submitSingle(ctx, filtered, display, actions)
	}
}

func (o *Orchestrator) nextSequence() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	seq := o.nextSeq
	o.nextSeq++
	return seq
}

func (o *Orchestrator) submitSilent(ctx context.Context, display pipeline.DisplayText, actions pipeline.Actions) {
	payload := pipeline.AudioPayload{DisplayText: display, Actions: &actions}
	if o.merge {
		// A title or empty unit breaks the merge round: flush whatever is
		// buffered first so delivery stays in submission order, then send
		// the silent payload directly — both happen on the caller's
		// goroutine, so no reorder buffer is needed here.
		o.flushMergeBuffer(ctx)
		o.send(ctx, payload)
		return
	}
	seq := o.nextSequence()
	o.deliver(ctx, seq, payload)
}

func (o *Orchestrator) submitSingle(ctx context.Context, text string, display pipeline.DisplayText, actions pipeline.Actions) {
	seq := o.nextSequence()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		payload := o.synthesizeOne(ctx, text, display, actions)
		o.deliver(ctx, seq, payload)
	}()
}

func (o *Orchestrator) synthesizeOne(ctx context.Context, text string, display pipeline.DisplayText, actions pipeline.Actions) pipeline.AudioPayload {
	resp, err := o.provider.Synthesize(ctx, &tts.SynthesizeRequest{
		Text:    text,
		VoiceID: o.cfg.VoiceID,
		Speed:   o.cfg.Speed,
		Format:  o.cfg.Format,
	})
	if err != nil {
		o.logger.Warn().Err(err).Str("provider", o.provider.Name()).Msg("tts synthesis failed, sending silent payload")
		return pipeline.AudioPayload{DisplayText: display, Actions: &actions}
	}
	volumes := volumeEnvelope(resp.Audio, resp.Format, int(resp.Duration.Milliseconds()))
	return pipeline.AudioPayload{
		Audio:         resp.Audio,
		Volumes:       volumes,
		SliceLengthMs: defaultChunkMs,
		DisplayText:   display,
		Actions:       &actions,
	}
}

// deliver registers a seq-numbered payload and, while the critical section
// holds the lock, drains as much of the in-order prefix as is ready. The
// lock (not a separate dispatch goroutine) is what prevents two producer
// goroutines from racing to send the same sequence number twice.
func (o *Orchestrator) deliver(ctx context.Context, seq int, payload pipeline.AudioPayload) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending[seq] = payload
	for {
		next, ok := o.pending[o.nextToSend]
		if !ok {
			return
		}
		delete(o.pending, o.nextToSend)
		o.nextToSend++
		select {
		case o.out <- next:
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) send(ctx context.Context, payload pipeline.AudioPayload) {
	select {
	case o.out <- payload:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) submitMerge(ctx context.Context, text string, display pipeline.DisplayText, actions pipeline.Actions) {
	o.mu.Lock()
	o.progressiveN++
	if o.mergeBuffer.Empty() {
		roundMax := o.progressiveN
		if roundMax > o.cfg.cap() {
			roundMax = o.cfg.cap()
		}
		o.mergeBuffer.CurrentRoundMax = roundMax
	}
	o.mergeBuffer.Add(pipeline.MergeItem{TTSText: text, DisplayText: display, Actions: actions})
	ready := o.mergeBuffer.ReadyToFlush()
	o.mu.Unlock()

	if ready {
		o.flushMergeBuffer(ctx)
	}
}

// flushMergeBuffer concatenates the buffered sentences into one synthesis
// call, apportions the resulting duration across them by character-count
// ratio, and emits one payload per sentence: the first carries the full
// audio and envelope, the rest carry only their time-sliced volume window.
func (o *Orchestrator) flushMergeBuffer(ctx context.Context) {
	o.mu.Lock()
	buf := o.mergeBuffer.Items
	o.mergeBuffer.Clear()
	o.mu.Unlock()

	if len(buf) == 0 {
		return
	}

	var merged strings.Builder
	charCounts := make([]int, len(buf))
	totalChars := 0
	for i, e := range buf {
		merged.WriteString(e.TTSText)
		n := len([]rune(e.TTSText))
		charCounts[i] = n
		totalChars += n
	}

	resp, err := o.provider.Synthesize(ctx, &tts.SynthesizeRequest{
		Text:    merged.String(),
		VoiceID: o.cfg.VoiceID,
		Speed:   o.cfg.Speed,
		Format:  o.cfg.Format,
	})
	if err != nil {
		o.logger.Warn().Err(err).Msg("merged tts synthesis failed, sending silent payloads")
		for _, e := range buf {
			o.send(ctx, pipeline.AudioPayload{DisplayText: e.DisplayText, Actions: &e.Actions})
		}
		return
	}

	totalDurationMs := int(resp.Duration.Milliseconds())
	volumes := volumeEnvelope(resp.Audio, resp.Format, totalDurationMs)
	if totalDurationMs <= 0 {
		// The provider reported no duration; measure it from the decoded
		// envelope instead.
		totalDurationMs = len(volumes) * defaultChunkMs
	}

	offset := 0
	for i, e := range buf {
		var durationMs int
		if i == len(buf)-1 {
			durationMs = totalDurationMs - offset // last sentence absorbs rounding remainder
		} else if totalChars > 0 {
			durationMs = totalDurationMs * charCounts[i] / totalChars
		} else {
			durationMs = totalDurationMs / len(buf)
		}

		info := &pipeline.MergeInfo{
			IsMerged:           true,
			TotalSentences:     len(buf),
			SentenceIndex:      i,
			SentenceDurationMs: durationMs,
			TotalDurationMs:    totalDurationMs,
		}

		var payload pipeline.AudioPayload
		if i == 0 {
			payload = pipeline.AudioPayload{
				Audio:         resp.Audio,
				Volumes:       volumes,
				SliceLengthMs: defaultChunkMs,
				DisplayText:   e.DisplayText,
				Actions:       &e.Actions,
				MergeInfo:     info,
			}
		} else {
			delay := offset
			info.DelayBeforeShowMs = &delay
			payload = pipeline.AudioPayload{
				Volumes:       sliceVolumes(volumes, offset, durationMs, defaultChunkMs),
				SliceLengthMs: defaultChunkMs,
				DisplayText:   e.DisplayText,
				Actions:       &e.Actions,
				MergeInfo:     info,
			}
		}

		o.send(ctx, payload)
		offset += durationMs
	}
}

func sliceVolumes(volumes []float64, offsetMs, durationMs, chunkMs int) []float64 {
	if len(volumes) == 0 || chunkMs <= 0 {
		return nil
	}
	start := offsetMs / chunkMs
	end := (offsetMs + durationMs) / chunkMs
	if start >= len(volumes) {
		return nil
	}
	if end > len(volumes) {
		end = len(volumes)
	}
	return volumes[start:end]
}

// Finish waits for in-flight single-mode synthesis to complete, flushes
// any residual merge buffer unconditionally, and closes the payload
// stream. Call once per turn, after the last Submit.
func (o *Orchestrator) Finish(ctx context.Context) {
	o.wg.Wait()
	if o.merge {
		o.flushMergeBuffer(ctx)
	}
	close(o.out)
}

// Clear discards buffered-but-unflushed state on barge-in. It does not
// close the payload channel — the turn's context cancellation (observed
// by deliver/send) is what stops in-flight work from blocking.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mergeBuffer.Clear()
	o.pending = make(map[int]pipeline.AudioPayload)
}
