package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRemoteProvider_ResponseFormatFallback(t *testing.T) {
	cfg := DefaultRemoteConfig()
	cfg.ResponseFormat = "bogus"
	p := NewRemoteProvider(zerolog.Nop(), cfg, nil)

	if p.config.ResponseFormat != "mp3" {
		t.Errorf("expected invalid response_format to fall back to mp3, got %q", p.config.ResponseFormat)
	}
}

func TestRemoteProvider_ClampsSpeedAndVolume(t *testing.T) {
	cfg := DefaultRemoteConfig()
	cfg.Speed = 10.0
	cfg.Volume = 0.0
	p := NewRemoteProvider(zerolog.Nop(), cfg, nil)

	if p.config.Speed != 2.0 {
		t.Errorf("expected speed clamped to 2.0, got %v", p.config.Speed)
	}
	if p.config.Volume != 0.1 {
		t.Errorf("expected volume clamped to 0.1, got %v", p.config.Volume)
	}
}

func TestRemoteProvider_Synthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing or wrong auth header: %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("fake-audio-bytes"))
	}))
	defer srv.Close()

	cfg := DefaultRemoteConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "test-key"
	p := NewRemoteProvider(zerolog.Nop(), cfg, NewRateLimiter(6, 60*time.Second, 1))

	resp, err := p.Synthesize(context.Background(), &SynthesizeRequest{Text: "hello", VoiceID: "nova"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(resp.Audio) != "fake-audio-bytes" {
		t.Errorf("Synthesize() audio = %q", resp.Audio)
	}
	if resp.Provider != "remote" {
		t.Errorf("Synthesize() provider = %q, want remote", resp.Provider)
	}
}

func TestRemoteProvider_RetriesOn429ThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok-audio"))
	}))
	defer srv.Close()

	cfg := DefaultRemoteConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "test-key"
	cfg.RateLimitRetryDelay = time.Millisecond
	p := NewRemoteProvider(zerolog.Nop(), cfg, NewRateLimiter(6, 60*time.Second, 1))

	resp, err := p.Synthesize(context.Background(), &SynthesizeRequest{Text: "hi"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if string(resp.Audio) != "ok-audio" {
		t.Errorf("unexpected audio: %q", resp.Audio)
	}
}

func TestRemoteProvider_NonRetryableErrorStopsImmediately(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := DefaultRemoteConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "test-key"
	p := NewRemoteProvider(zerolog.Nop(), cfg, NewRateLimiter(6, 60*time.Second, 1))

	_, err := p.Synthesize(context.Background(), &SynthesizeRequest{Text: "hi"})
	if err == nil {
		t.Fatal("expected an error for a non-retryable HTTP status")
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for a non-retryable error, got %d", attempts)
	}
}

func TestRemoteProvider_NoAPIKey(t *testing.T) {
	cfg := DefaultRemoteConfig()
	cfg.APIKey = ""
	p := &RemoteProvider{config: cfg, client: http.DefaultClient, rateLimiter: NewRateLimiter(6, time.Minute, 1)}

	_, err := p.Synthesize(context.Background(), &SynthesizeRequest{Text: "hi"})
	if err == nil {
		t.Error("expected error when API key is not configured")
	}
}
