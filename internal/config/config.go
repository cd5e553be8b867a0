// Package config provides configuration management for cortexstream.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	A2A         A2AConfig         `mapstructure:"a2a"`
	User        UserConfig        `mapstructure:"user"`
	STT         STTConfig         `mapstructure:"stt"`
	TTS         TTSConfig         `mapstructure:"tts"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter"`
	MergeBuffer MergeBufferConfig `mapstructure:"merge_buffer"`
	WakeWord    WordTriggerConfig `mapstructure:"wake_word"`
	StopWord    WordTriggerConfig `mapstructure:"stop_word"`
	Server      ServerConfig      `mapstructure:"server"`
}

// A2AConfig configures the A2A client used to reach the agent backend
type A2AConfig struct {
	ServerURL      string        `mapstructure:"server_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
}

// UserConfig identifies the user and their selected persona
type UserConfig struct {
	ID        string `mapstructure:"id"`
	PersonaID string `mapstructure:"persona_id"`
}

// STTConfig configures the pre-screen pass applied to ASR transcripts
// before they reach the conversation controller.
type STTConfig struct {
	Language        string `mapstructure:"language"`
	NoiseFilter     bool   `mapstructure:"noise_filter"`
	InterimResults  bool   `mapstructure:"interim_results"`
}

// TTSConfig configures text-to-speech synthesis
type TTSConfig struct {
	Provider        string  `mapstructure:"provider"` // remote, cartesia, piper, macos, elevenlabs, hf_melo, a2a
	VoiceID         string  `mapstructure:"voice_id"`
	Speed           float64 `mapstructure:"speed"`           // clamped [0.5, 2.0]
	Volume          float64 `mapstructure:"volume"`          // clamped [0.1, 2.0]
	ResponseFormat  string  `mapstructure:"response_format"` // wav, mp3, flac, opus, pcm; invalid falls back to mp3
	CacheEnabled    bool    `mapstructure:"cache_enabled"`
	ReasoningFilter int     `mapstructure:"reasoning_filter"` // 0-100: how much inner-voice reasoning to filter
	CartesiaAPIKey  string  `mapstructure:"cartesia_api_key"`
	CartesiaVoiceID string  `mapstructure:"cartesia_voice_id"`
	EnableLipSync   bool    `mapstructure:"enable_lip_sync"` // not read by the pipeline; AudioPayload carries no phoneme timeline

	// TextFilter controls the TTS-text projection applied to display text
	// before synthesis (see internal/ttsproject).
	TextFilter TTSTextFilterConfig `mapstructure:"text_filter"`
}

// TTSTextFilterConfig toggles the independently-configurable steps of the
// display-text → speech-text projection.
type TTSTextFilterConfig struct {
	RemoveSpecialChar    bool `mapstructure:"remove_special_char"`
	IgnoreBrackets       bool `mapstructure:"ignore_brackets"`
	IgnoreParentheses    bool `mapstructure:"ignore_parentheses"`
	IgnoreAsterisks      bool `mapstructure:"ignore_asterisks"`
	IgnoreAngleBrackets  bool `mapstructure:"ignore_angle_brackets"`
}

// RateLimiterConfig bounds the TTS provider's outbound request rate
type RateLimiterConfig struct {
	MaxRequests      int           `mapstructure:"max_requests"`       // default 6
	Window           time.Duration `mapstructure:"window"`             // default 60s
	MaxConcurrent    int           `mapstructure:"max_concurrent"`     // default 1
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxAttempts int           `mapstructure:"retry_max_attempts"`
}

// MergeBufferConfig controls the orchestrator's progressive merge ramp
type MergeBufferConfig struct {
	MaxSentencesCap int `mapstructure:"max_sentences_cap"` // default 3
}

// WordTriggerConfig is the shared shape for wake_word_config / stop_word_config
type WordTriggerConfig struct {
	Enabled              bool     `mapstructure:"enabled"`
	Words                []string `mapstructure:"words"`
	FuzzyPinyin          bool     `mapstructure:"fuzzy_pinyin"`
	VoicePromptInjection bool     `mapstructure:"voice_prompt_injection"`
}

// ServerConfig configures the websocket transport
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	InterruptShield time.Duration `mapstructure:"interrupt_shield"` // default 500ms
}

// Persona represents a voice/avatar persona
type Persona struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Gender  string `json:"gender"` // male or female
	VoiceID string `json:"voice_id"`
}

// AvailablePersonas returns the default personas
func AvailablePersonas() []Persona {
	return []Persona{
		{
			ID:      "henry",
			Name:    "Henry",
			Gender:  "male",
			VoiceID: "onyx", // Male, deep
		},
		{
			ID:      "hannah",
			Name:    "Hannah",
			Gender:  "female",
			VoiceID: "nova", // Female, warm
		},
	}
}

// GetPersona returns a persona by ID
func GetPersona(id string) *Persona {
	for _, p := range AvailablePersonas() {
		if p.ID == id {
			return &p
		}
	}
	return nil
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		A2A: A2AConfig{
			ServerURL:      "http://localhost:8080",
			Timeout:        30 * time.Second,
			ReconnectDelay: 5 * time.Second,
			MaxReconnects:  10,
		},
		User: UserConfig{
			ID:        "default-user",
			PersonaID: "hannah",
		},
		STT: STTConfig{
			Language:       "auto",
			NoiseFilter:    true,
			InterimResults: true,
		},
		TTS: TTSConfig{
			Provider:        "remote",
			VoiceID:         "nova",
			Speed:           1.0,
			Volume:          1.0,
			ResponseFormat:  "mp3",
			CacheEnabled:    true,
			ReasoningFilter: 70,
			CartesiaVoiceID: "a0e99841-438c-4a64-b679-ae501e7d6091",
			EnableLipSync:   true,
			TextFilter: TTSTextFilterConfig{
				RemoveSpecialChar:   true,
				IgnoreBrackets:      true,
				IgnoreParentheses:   false,
				IgnoreAsterisks:     false,
				IgnoreAngleBrackets: true,
			},
		},
		RateLimiter: RateLimiterConfig{
			MaxRequests:      6,
			Window:           60 * time.Second,
			MaxConcurrent:    1,
			RetryBaseDelay:   500 * time.Millisecond,
			RetryMaxAttempts: 3,
		},
		MergeBuffer: MergeBufferConfig{
			MaxSentencesCap: 3,
		},
		WakeWord: WordTriggerConfig{
			Enabled: false,
		},
		StopWord: WordTriggerConfig{
			Enabled: false,
			Words:   []string{"stop"},
		},
		Server: ServerConfig{
			ListenAddr:      ":8090",
			InterruptShield: 500 * time.Millisecond,
		},
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return cfg, err
	}

	configDir := filepath.Join(homeDir, ".cortexstream")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("CORTEXSTREAM")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to file
func Save(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(homeDir, ".cortexstream")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("a2a", cfg.A2A)
	viper.Set("user", cfg.User)
	viper.Set("stt", cfg.STT)
	viper.Set("tts", cfg.TTS)
	viper.Set("rate_limiter", cfg.RateLimiter)
	viper.Set("merge_buffer", cfg.MergeBuffer)
	viper.Set("wake_word", cfg.WakeWord)
	viper.Set("stop_word", cfg.StopWord)
	viper.Set("server", cfg.Server)

	configPath := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configPath)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".cortexstream"), nil
}
