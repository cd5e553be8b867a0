package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexstream/internal/config"
	"github.com/normanking/cortexstream/internal/divider"
	"github.com/normanking/cortexstream/internal/orchestrator"
	"github.com/normanking/cortexstream/internal/pipeline"
	"github.com/normanking/cortexstream/internal/textutil"
	"github.com/normanking/cortexstream/internal/transform"
	"github.com/normanking/cortexstream/internal/tts"
	"github.com/normanking/cortexstream/internal/ttsproject"
)

// Transcriber turns a raw audio buffer into text. The ASR engine itself is
// an external collaborator (specified only by this interface) — the
// controller only needs the transcript back.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Sender delivers outbound messages to one connected client. The
// transport layer implements it; the controller never touches the wire
// format directly.
type Sender interface {
	SendControl(text string)
	SendFullText(text string)
	SendTranscription(text, originalText string, isStopWord bool)
	SendAudio(payload pipeline.AudioPayload)
	SendSynthComplete()
	SendError(message string)
}

// Config parameterizes one client's controller.
type Config struct {
	WakeWord          config.WordTriggerConfig
	StopWord          config.WordTriggerConfig
	VoicePromptPrefix string // prefixed to model input for audio-origin turns, never persisted
	InterruptShield   time.Duration
	TextFilter        ttsproject.Config
	DividerConfig     divider.Config
	OrchestratorCfg   orchestrator.Config
}

func (c Config) shield() time.Duration {
	if c.InterruptShield <= 0 {
		return 500 * time.Millisecond
	}
	return c.InterruptShield
}

// turnState is the bookkeeping a running turn needs beyond
// pipeline.ConversationTurn: its orchestrator, an ack channel for the
// client's playback-complete signal, and a mutex-guarded accumulation of
// the display text produced so far (read by barge-in for the heard-so-far
// marker).
type turnState struct {
	turn   *pipeline.ConversationTurn
	orch   *orchestrator.Orchestrator
	ackCh  chan struct{}
	done   chan struct{}
	mu     sync.Mutex
	heard  strings.Builder
}

func (t *turnState) appendHeard(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.heard.WriteString(text)
}

func (t *turnState) heardSoFar() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.heard.String()
}

// Controller is the per-client turn-taking state machine: Idle ->
// Pre-Screen -> Streaming -> Finalizing -> Idle, with barge-in cancelling
// Streaming/Finalizing back to Idle via Interrupting.
type Controller struct {
	model        ModelClient
	provider     tts.Provider
	sender       Sender
	recorder     HistoryRecorder
	transcriber  Transcriber
	noiseFilter  *NoiseFilter
	cfg          Config
	logger       zerolog.Logger

	mu     sync.Mutex
	active *turnState
}

// New builds a Controller. transcriber may be nil if this client never
// sends audio input.
func New(model ModelClient, provider tts.Provider, sender Sender, recorder HistoryRecorder, transcriber Transcriber, cfg Config, logger zerolog.Logger) *Controller {
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	return &Controller{
		model:       model,
		provider:    provider,
		sender:      sender,
		recorder:    recorder,
		transcriber: transcriber,
		noiseFilter: NewNoiseFilter(nil),
		cfg:         cfg,
		logger:      logger,
	}
}

// HandleTextInput processes a client's "text-input" message. image is the
// optional vision attachment carried on the same message.
func (c *Controller) HandleTextInput(ctx context.Context, text string, image *Image, skipHistory bool) {
	c.preScreenAndStart(ctx, text, text, image, false, skipHistory)
}

// HandleAudioInput processes a client's "mic-audio-end" message: ASR
// transcription, then the same pre-screen/start path as typed text.
func (c *Controller) HandleAudioInput(ctx context.Context, audio []byte, skipHistory bool) {
	if c.transcriber == nil {
		c.sender.SendError("audio input received but no transcriber is configured")
		return
	}
	raw, err := c.transcriber.Transcribe(ctx, audio)
	if err != nil {
		c.sender.SendError("transcription failed: " + err.Error())
		return
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || c.noiseFilter.IsNoiseOnly(raw) {
		// ASR empty / noise-only: drop silently, no user-input-transcription.
		return
	}
	c.preScreenAndStart(ctx, raw, raw, nil, true, skipHistory)
}

// HandleSpeakSignal processes a proactive "ai-speak-signal": the caller
// supplies the prompt text already loaded from the configured prompt
// file (prompt-file loading is outside this package's scope).
func (c *Controller) HandleSpeakSignal(ctx context.Context, prompt string) {
	c.startTurn(ctx, prompt, "", nil, false, true)
}

// preScreenAndStart runs the §4.6 pre-screen steps 2-4 (stop-word check,
// wake-word gate, start-signal emission) over an already-transcribed
// utterance.
func (c *Controller) preScreenAndStart(ctx context.Context, text, originalText string, image *Image, fromAudio, skipHistory bool) {
	// Step 2: stop-word check, highest priority.
	if c.cfg.StopWord.Enabled {
		matcher := textutil.NewWordMatcher(c.cfg.StopWord.Words, c.cfg.StopWord.FuzzyPinyin)
		if _, hit := matcher.Match(text); hit {
			c.sender.SendTranscription(text, originalText, true)
			c.interruptActive("")
			return
		}
	}

	// Step 3: wake-word gate.
	prompt := text
	if c.cfg.WakeWord.Enabled {
		matcher := textutil.NewWordMatcher(c.cfg.WakeWord.Words, c.cfg.WakeWord.FuzzyPinyin)
		word, hit := matcher.Match(text)
		if !hit {
			return // silent drop, no output at all
		}
		residue := strings.TrimSpace(textutil.StripWakeWordPrefix(text, word))
		if residue == "" {
			c.sender.SendTranscription(text, originalText, false)
			return // heard the wake word only; wait for further input
		}
		prompt = residue
	}

	// Step 4: valid input.
	c.sender.SendTranscription(prompt, originalText, false)
	c.startTurn(ctx, prompt, originalText, image, fromAudio, skipHistory)
}

// startTurn cancels any turn already running for this client (ordering
// guarantee: cancel-then-start, never concurrent turns) and spawns the new
// one.
func (c *Controller) startTurn(ctx context.Context, prompt, rawTranscript string, image *Image, fromAudio, skipHistory bool) {
	c.interruptActive("")

	turnCtx, cancel := context.WithCancel(ctx)
	handle := pipeline.NewConversationTurn(uuid.NewString(), uuid.NewString(), cancel)
	ts := &turnState{
		turn:  handle,
		orch:  orchestrator.New(c.provider, c.cfg.OrchestratorCfg, c.logger),
		ackCh: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}

	c.mu.Lock()
	c.active = ts
	c.mu.Unlock()

	c.sender.SendControl("conversation-chain-start")
	c.sender.SendFullText("Thinking…")

	if !skipHistory {
		c.recorder.Record(HistoryEntry{Role: "user", Text: rawTranscript})
	}

	modelInput := prompt
	if fromAudio && c.cfg.WakeWord.VoicePromptInjection && c.cfg.VoicePromptPrefix != "" {
		modelInput = c.cfg.VoicePromptPrefix + "\n" + prompt
	}
	if cp, ok := c.recorder.(ContextProvider); ok {
		if recent := cp.RelevantContext(prompt); recent != "" {
			modelInput = recent + "\n" + modelInput
		}
	}

	go c.runTurn(turnCtx, ts, modelInput, image, skipHistory)
}

// runTurn drives input -> model.chat -> transformer chain -> TTS
// orchestrator for one turn, then finalizes.
func (c *Controller) runTurn(ctx context.Context, ts *turnState, modelInput string, image *Image, skipHistory bool) {
	defer close(ts.done)

	var drainWG sync.WaitGroup
	drainWG.Add(1)
	go func() {
		defer drainWG.Done()
		for payload := range ts.orch.Payloads() {
			c.sender.SendAudio(payload)
		}
	}()

	fragments, err := c.model.Stream(ctx, modelInput, image)
	if err != nil {
		c.sender.SendError("model stream failed: " + err.Error())
		ts.orch.Finish(ctx)
		drainWG.Wait()
		c.finalizeTurn(ctx, ts, skipHistory)
		return
	}

	dividerOut := divider.New(c.cfg.DividerConfig, c.logger).Process(ctx, fragments)
	chainOut := transform.Chain(ctx, dividerOut, c.cfg.TextFilter)

	for item := range chainOut {
		if item.Record != nil {
			if msg, ok := item.Record["error"].(string); ok {
				c.sender.SendError("model stream failed: " + msg)
			}
			continue
		}
		if item.Output == nil {
			continue
		}
		ts.appendHeard(item.Output.DisplayText.Text)
		ts.orch.Submit(ctx, *item.Output)
	}

	// Model stream exception surfaces as a record carrying "error"; the
	// divider and the transformer chain forward records untouched, and the
	// loop above reports it to the client. The stream error has already
	// ended the fragment channel — finalize whatever audio was already queued.
	ts.orch.Finish(ctx)
	drainWG.Wait()
	c.finalizeTurn(ctx, ts, skipHistory)
}

// finalizeTurn sends backend-synth-complete, waits for the client's
// frontend-playback-complete ack (or the turn's cancellation), then closes
// out the turn with force-new-message/conversation-chain-end.
func (c *Controller) finalizeTurn(ctx context.Context, ts *turnState, skipHistory bool) {
	c.sender.SendSynthComplete()

	select {
	case <-ts.ackCh:
	case <-ctx.Done():
	}

	c.sender.SendControl("force-new-message")
	c.sender.SendControl("conversation-chain-end")

	if !skipHistory {
		if full := ts.heardSoFar(); full != "" {
			c.recorder.Record(HistoryEntry{Role: "ai", Text: full})
		}
	}

	c.mu.Lock()
	if c.active == ts {
		c.active = nil
	}
	c.mu.Unlock()
}

// HandlePlaybackComplete processes a "frontend-playback-complete" ack,
// unblocking the active turn's finalize step.
func (c *Controller) HandlePlaybackComplete() {
	c.mu.Lock()
	ts := c.active
	c.mu.Unlock()
	if ts == nil {
		return
	}
	select {
	case ts.ackCh <- struct{}{}:
	default:
	}
}

// HandleInterrupt processes a client "interrupt-signal" (explicit
// barge-in). heardResponse is the text the client reports it actually
// played before the user spoke over it.
func (c *Controller) HandleInterrupt(heardResponse string) {
	c.interruptActive(heardResponse)
}

// interruptActive cancels the active turn, if any, with a shielded wait
// for graceful stop, clears its orchestrator's merge buffer, and persists
// the interrupt markers. heardOverride, when non-empty, is used instead of
// the turn's own accumulated display text (the client's own account of
// what it audibly played takes precedence).
func (c *Controller) interruptActive(heardOverride string) {
	c.mu.Lock()
	ts := c.active
	c.active = nil
	c.mu.Unlock()

	if ts == nil {
		return
	}

	ts.turn.Cancel()

	shieldCtx, cancelShield := context.WithTimeout(context.Background(), c.cfg.shield())
	select {
	case <-ts.done:
	case <-shieldCtx.Done():
	}
	cancelShield()

	ts.orch.Clear()
	c.sender.SendControl("interrupt")

	heard := heardOverride
	if heard == "" {
		heard = ts.heardSoFar()
	}
	if heard != "" {
		c.recorder.Record(
			HistoryEntry{Role: "ai", Text: heard},
			HistoryEntry{Role: "system", Text: "[Interrupted by user]"},
		)
	}
}
