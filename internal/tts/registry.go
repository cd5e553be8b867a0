package tts

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexstream/internal/a2a"
	"github.com/normanking/cortexstream/internal/config"
)

// New builds the Provider named by cfg.Provider, wiring its provider-specific
// config from cfg and, for "remote", the shared rate limiter. The "a2a"
// provider additionally needs a live a2a.Client, since the TTS call rides
// the same agent connection used for conversation turns; pass nil for any
// other provider.
func New(cfg config.TTSConfig, logger zerolog.Logger, rl *RateLimiter, a2aClient *a2a.Client) (Provider, error) {
	switch cfg.Provider {
	case "remote":
		rc := DefaultRemoteConfig()
		rc.DefaultVoice = cfg.VoiceID
		return NewRemoteProvider(logger, rc, rl), nil

	case "cartesia":
		cc := DefaultCartesiaConfig()
		if cfg.CartesiaAPIKey != "" {
			cc.APIKey = cfg.CartesiaAPIKey
		}
		if cfg.CartesiaVoiceID != "" {
			cc.DefaultVoice = cfg.CartesiaVoiceID
		}
		return NewCartesiaProvider(logger, cc), nil

	case "piper":
		pc := DefaultPiperConfig()
		if cfg.VoiceID != "" {
			pc.DefaultVoice = cfg.VoiceID
		}
		return NewPiperProvider(logger, pc), nil

	case "macos":
		mc := DefaultMacOSConfig()
		if cfg.VoiceID != "" {
			mc.DefaultVoice = cfg.VoiceID
		}
		return NewMacOSTTSProvider(logger, mc), nil

	case "elevenlabs":
		ec := DefaultElevenLabsConfig()
		if cfg.VoiceID != "" {
			ec.DefaultVoice = cfg.VoiceID
		}
		return NewElevenLabsProvider(logger, ec), nil

	case "hf_melo":
		hc := DefaultHFMeloConfig()
		if cfg.VoiceID != "" {
			hc.DefaultVoice = cfg.VoiceID
		}
		return NewHFMeloProvider(hc, logger), nil

	case "a2a":
		if a2aClient == nil {
			return nil, fmt.Errorf("tts: provider %q requires an a2a client", cfg.Provider)
		}
		ac := DefaultA2AConfig()
		if cfg.VoiceID != "" {
			ac.DefaultVoice = cfg.VoiceID
		}
		if cfg.Speed > 0 {
			ac.Speed = cfg.Speed
		}
		return NewA2AProvider(a2aClient, logger, ac), nil

	default:
		return nil, fmt.Errorf("tts: unknown provider %q", cfg.Provider)
	}
}
