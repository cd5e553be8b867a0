// Package tts's remote provider talks to an OpenAI-compatible TTS HTTP
// endpoint: bearer-token auth, a JSON body of {model, input, voice, speed,
// volume, response_format}, and a single-chunk audio response.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Remote TTS voices - OpenAI's catalog, which the remote endpoint's voice
// parameter is modeled on.
const (
	VoiceAlloy   = "alloy"   // Neutral, balanced
	VoiceEcho    = "echo"    // Male, warm
	VoiceFable   = "fable"   // British, expressive
	VoiceOnyx    = "onyx"    // Male, deep
	VoiceNova    = "nova"    // Female, warm and natural (recommended)
	VoiceShimmer = "shimmer" // Female, clear and bright
)

// validResponseFormats are the response_format values the remote endpoint
// accepts. An unrecognized value falls back to mp3 rather than erroring,
// since a client-supplied format is never worth failing a turn over.
var validResponseFormats = map[string]struct{}{
	"wav": {}, "mp3": {}, "flac": {}, "opus": {}, "pcm": {},
}

// RemoteProvider implements TTS against an OpenAI-compatible HTTP endpoint,
// rate-limited and retried against transient failures.
type RemoteProvider struct {
	apiKey      string
	client      *http.Client
	logger      zerolog.Logger
	config      *RemoteConfig
	rateLimiter *RateLimiter
}

// RemoteConfig holds remote TTS configuration
type RemoteConfig struct {
	APIKey           string        `json:"api_key"`
	BaseURL          string        `json:"base_url"` // default: https://api.openai.com/v1/audio/speech
	Model            string        `json:"model"`    // tts-1 or tts-1-hd
	DefaultVoice     string        `json:"default_voice"`
	Speed            float64       `json:"speed"`  // clamped to [0.5, 2.0]
	Volume           float64       `json:"volume"` // clamped to [0.1, 2.0]
	ResponseFormat   string        `json:"response_format"`
	Timeout          time.Duration `json:"timeout"`
	RetryMaxAttempts int           `json:"retry_max_attempts"`
	// RateLimitRetryDelay and TimeoutRetryDelay are the flat backoffs used
	// for 429 and timeout retries respectively (§4.5/§7: 12s and 2s). Zero
	// falls back to those spec defaults; tests override them to run fast.
	RateLimitRetryDelay time.Duration `json:"rate_limit_retry_delay"`
	TimeoutRetryDelay   time.Duration `json:"timeout_retry_delay"`
}

// DefaultRemoteConfig returns sensible defaults
func DefaultRemoteConfig() *RemoteConfig {
	return &RemoteConfig{
		BaseURL:          "https://api.openai.com/v1/audio/speech",
		Model:            "tts-1",
		DefaultVoice:     VoiceNova,
		Speed:            1.0,
		Volume:           1.0,
		ResponseFormat:   "mp3",
		Timeout:             60 * time.Second,
		RetryMaxAttempts:    3,
		RateLimitRetryDelay: 12 * time.Second,
		TimeoutRetryDelay:   2 * time.Second,
	}
}

// NewRemoteProvider creates a new remote TTS provider. rl may be nil, in
// which case a default 6-requests-per-60s/1-concurrent limiter is created.
func NewRemoteProvider(logger zerolog.Logger, config *RemoteConfig, rl *RateLimiter) *RemoteProvider {
	if config == nil {
		config = DefaultRemoteConfig()
	}
	if _, ok := validResponseFormats[config.ResponseFormat]; !ok {
		config.ResponseFormat = "mp3"
	}
	config.Speed = clampFloat(config.Speed, 0.5, 2.0)
	config.Volume = clampFloat(config.Volume, 0.1, 2.0)
	if config.RateLimitRetryDelay <= 0 {
		config.RateLimitRetryDelay = 12 * time.Second
	}
	if config.TimeoutRetryDelay <= 0 {
		config.TimeoutRetryDelay = 2 * time.Second
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	if rl == nil {
		rl = NewRateLimiter(6, 60*time.Second, 1)
	}

	return &RemoteProvider{
		apiKey:      apiKey,
		client:      &http.Client{Timeout: config.Timeout},
		logger:      logger.With().Str("provider", "remote-tts").Logger(),
		config:      config,
		rateLimiter: rl,
	}
}

// Name returns the provider identifier
func (p *RemoteProvider) Name() string {
	return "remote"
}

// IsAvailable checks if the provider has an API key configured
func (p *RemoteProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// SetAPIKey sets the API key
func (p *RemoteProvider) SetAPIKey(key string) {
	p.apiKey = key
	p.logger.Info().Msg("remote TTS API key updated")
}

// remoteTTSRequest is the request body sent to the remote endpoint
type remoteTTSRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
	Volume         float64 `json:"volume,omitempty"`
}

// Synthesize converts text to audio via the remote HTTP endpoint, subject
// to the provider's rate limiter and retried on 429/timeout.
func (p *RemoteProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("remote TTS API key not configured")
	}

	startTime := time.Now()

	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = p.config.DefaultVoice
	}
	remoteVoice := p.mapVoice(voiceID)

	speed := req.Speed
	if speed == 0 {
		speed = p.config.Speed
	}
	speed = clampFloat(speed, 0.5, 2.0)

	format := req.Format
	if format == "" {
		format = p.config.ResponseFormat
	}
	if _, ok := validResponseFormats[format]; !ok {
		format = "mp3"
	}

	ttsReq := remoteTTSRequest{
		Model:          p.config.Model,
		Input:          req.Text,
		Voice:          remoteVoice,
		ResponseFormat: format,
		Speed:          speed,
		Volume:         p.config.Volume,
	}

	body, err := json.Marshal(ttsReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var audioData []byte
	var attempt int
	for {
		attempt++
		if err := p.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		audioData, err = p.doRequest(ctx, body, remoteVoice)
		p.rateLimiter.Release()

		if err == nil {
			break
		}

		// §4.5/§7: 429 and request timeouts get a flat backoff and a
		// bounded number of retries; every other HTTP error is logged and
		// returned as-is, with no retry at all.
		var delay time.Duration
		switch {
		case isRateLimited(err):
			delay = p.config.RateLimitRetryDelay
		case isTimeout(err):
			delay = p.config.TimeoutRetryDelay
		default:
			p.logger.Warn().Err(err).Msg("TTS request failed, not retrying")
			return nil, err
		}

		if attempt >= p.config.RetryMaxAttempts {
			p.logger.Warn().Err(err).Int("attempt", attempt).Msg("TTS request exhausted retries")
			return nil, err
		}

		p.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying TTS request")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	processingTime := time.Since(startTime)

	p.logger.Info().
		Str("voice", remoteVoice).
		Int("audioBytes", len(audioData)).
		Dur("processingTime", processingTime).
		Msg("remote TTS synthesis complete")

	return &SynthesizeResponse{
		Audio:          audioData,
		Format:         format,
		SampleRate:     24000,
		ProcessingTime: processingTime,
		VoiceID:        voiceID,
		Provider:       p.Name(),
	}, nil
}

// rateLimitedError wraps a 429 response: retried on a flat 12s backoff.
type rateLimitedError struct{ err error }

func (e *rateLimitedError) Error() string { return e.err.Error() }
func (e *rateLimitedError) Unwrap() error { return e.err }

// timeoutError wraps a network-level timeout: retried on a flat 2s backoff.
type timeoutError struct{ err error }

func (e *timeoutError) Error() string { return e.err.Error() }
func (e *timeoutError) Unwrap() error { return e.err }

func isRateLimited(err error) bool {
	_, ok := err.(*rateLimitedError)
	return ok
}

func isTimeout(err error) bool {
	_, ok := err.(*timeoutError)
	return ok
}

func (p *RemoteProvider) doRequest(ctx context.Context, body []byte, voice string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	p.logger.Debug().Str("voice", voice).Str("model", p.config.Model).Msg("sending TTS request")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		wrapped := fmt.Errorf("send request: %w", err)
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, &timeoutError{wrapped}
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &timeoutError{wrapped}
		}
		return nil, wrapped
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &rateLimitedError{fmt.Errorf("remote TTS error (status %d): %s", resp.StatusCode, string(bodyBytes))}
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("remote TTS error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	return io.ReadAll(resp.Body)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mapVoice maps our voice IDs to the remote endpoint's voice catalog
func (p *RemoteProvider) mapVoice(voiceID string) string {
	switch voiceID {
	case "af_bella", "af_sarah", "af_sky":
		return VoiceNova
	case "am_adam", "am_michael":
		return VoiceOnyx
	case "bf_emma":
		return VoiceShimmer
	case "bm_george":
		return VoiceEcho
	default:
		switch voiceID {
		case VoiceAlloy, VoiceEcho, VoiceFable, VoiceOnyx, VoiceNova, VoiceShimmer:
			return voiceID
		}
		return p.config.DefaultVoice
	}
}

// SynthesizeStream wraps Synthesize as a single-chunk stream; the remote
// endpoint has no true streaming mode.
func (p *RemoteProvider) SynthesizeStream(ctx context.Context, req *SynthesizeRequest) (<-chan *AudioChunk, error) {
	chunks := make(chan *AudioChunk, 1)

	go func() {
		defer close(chunks)

		resp, err := p.Synthesize(ctx, req)
		if err != nil {
			p.logger.Error().Err(err).Msg("stream synthesis failed")
			return
		}

		chunks <- &AudioChunk{
			Data:    resp.Audio,
			Index:   0,
			IsFinal: true,
		}
	}()

	return chunks, nil
}

// ListVoices returns available remote voices
func (p *RemoteProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	return []Voice{
		{ID: VoiceNova, Name: "Nova (Female, Warm)", Language: "en", Gender: "female"},
		{ID: VoiceShimmer, Name: "Shimmer (Female, Clear)", Language: "en", Gender: "female"},
		{ID: VoiceAlloy, Name: "Alloy (Neutral)", Language: "en", Gender: "neutral"},
		{ID: VoiceEcho, Name: "Echo (Male, Warm)", Language: "en", Gender: "male"},
		{ID: VoiceOnyx, Name: "Onyx (Male, Deep)", Language: "en", Gender: "male"},
		{ID: VoiceFable, Name: "Fable (British)", Language: "en", Gender: "neutral"},
	}, nil
}

// Health checks if the remote API is available
func (p *RemoteProvider) Health(ctx context.Context) error {
	if p.apiKey == "" {
		return ErrProviderUnavailable
	}
	return nil
}

// Capabilities returns remote TTS capabilities
func (p *RemoteProvider) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{
		SupportsStreaming:   false,
		SupportsConcurrency: false,
		SupportsCloning:     false,
		SupportsPhonemes:    false,
		SupportedLanguages:  []string{"en", "es", "fr", "de", "it", "pt", "pl", "ja", "ko", "zh"},
		MaxTextLength:       4096,
		AvgLatencyMs:        500,
		RequiresGPU:         false,
		IsLocal:             false,
	}
}
