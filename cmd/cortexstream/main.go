// Command cortexstream runs the streaming-response core of the voice
// avatar system: one websocket endpoint, a per-client conversation
// controller, and the shared TTS rate limiter and A2A client backing them.
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/normanking/cortexstream/internal/a2a"
	"github.com/normanking/cortexstream/internal/config"
	"github.com/normanking/cortexstream/internal/conversation"
	"github.com/normanking/cortexstream/internal/divider"
	"github.com/normanking/cortexstream/internal/logging"
	"github.com/normanking/cortexstream/internal/orchestrator"
	"github.com/normanking/cortexstream/internal/transport"
	"github.com/normanking/cortexstream/internal/tts"
	"github.com/normanking/cortexstream/internal/ttsproject"
	"github.com/normanking/cortexstream/internal/voice"
	"github.com/rs/zerolog"
)

func main() {
	syslog, err := logging.New(nil)
	if err != nil {
		panic(err)
	}
	defer syslog.Close()

	cfg, err := config.Load()
	if err != nil {
		syslog.Warn("config", "failed to load config, using defaults", map[string]interface{}{"error": err.Error()})
		cfg = config.DefaultConfig()
	}

	zlogger := syslog.Zerolog()

	a2aClient := a2a.NewClient(&a2a.ClientConfig{
		ServerURL:      cfg.A2A.ServerURL,
		Timeout:        cfg.A2A.Timeout,
		ReconnectDelay: cfg.A2A.ReconnectDelay,
		MaxReconnects:  cfg.A2A.MaxReconnects,
		UserID:         cfg.User.ID,
		PersonaID:      cfg.User.PersonaID,
	}, zlogger)
	a2aClient.SetErrorHandler(func(err error) {
		syslog.Warn("a2a", "agent backend connection attempt failed", map[string]interface{}{"error": err.Error()})
	})

	// Discovery runs in the background: a client that connects before the
	// agent backend is up should still serve websocket connections, since
	// per-turn model calls surface their own errors to the caller.
	go func() {
		if err := a2aClient.ConnectWithRetry(context.Background()); err != nil {
			syslog.Error("a2a", "failed to connect to agent backend", err, nil)
		}
	}()

	rateLimiter := tts.NewRateLimiter(
		cfg.RateLimiter.MaxRequests,
		cfg.RateLimiter.Window,
		cfg.RateLimiter.MaxConcurrent,
	)

	provider, err := tts.New(cfg.TTS, zlogger, rateLimiter, a2aClient)
	if err != nil {
		syslog.Error("tts", "failed to build tts provider", err, map[string]interface{}{"provider": cfg.TTS.Provider})
		os.Exit(1)
	}

	server := transport.NewServer(newControllerFactory(cfg, a2aClient, provider, zlogger), zlogger)

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	syslog.Info("server", "listening", map[string]interface{}{"addr": cfg.Server.ListenAddr})
	if err := http.ListenAndServe(cfg.Server.ListenAddr, mux); err != nil {
		syslog.Error("server", "http server exited", err, nil)
		os.Exit(1)
	}
}

// newControllerFactory closes over the process-wide shared collaborators
// (A2A client, TTS provider, rate limiter already wired into provider) and
// builds a fresh per-connection Controller, each with its own model
// client, conversation history manager, and orchestrator-config snapshot.
func newControllerFactory(cfg *config.Config, a2aClient *a2a.Client, provider tts.Provider, logger zerolog.Logger) transport.ControllerFactory {
	controllerCfg := conversation.Config{
		WakeWord:        cfg.WakeWord,
		StopWord:        cfg.StopWord,
		InterruptShield: cfg.Server.InterruptShield,
		TextFilter: ttsproject.Config{
			RemoveSpecialChar:   cfg.TTS.TextFilter.RemoveSpecialChar,
			IgnoreBrackets:      cfg.TTS.TextFilter.IgnoreBrackets,
			IgnoreParentheses:   cfg.TTS.TextFilter.IgnoreParentheses,
			IgnoreAsterisks:     cfg.TTS.TextFilter.IgnoreAsterisks,
			IgnoreAngleBrackets: cfg.TTS.TextFilter.IgnoreAngleBrackets,
		},
		DividerConfig: divider.DefaultConfig(),
		OrchestratorCfg: orchestrator.Config{
			MergeEnabled:    true,
			MaxSentencesCap: cfg.MergeBuffer.MaxSentencesCap,
			VoiceID:         cfg.TTS.VoiceID,
			Speed:           cfg.TTS.Speed,
			Format:          cfg.TTS.ResponseFormat,
		},
	}

	return func(sender conversation.Sender) *conversation.Controller {
		model := conversation.NewA2AModelClient(a2aClient)
		manager := voice.NewConversationManager(voice.ConversationConfig{})
		recorder := conversation.NewManagerRecorder(manager)
		return conversation.New(model, provider, sender, recorder, nil, controllerCfg, logger)
	}
}
