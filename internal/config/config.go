package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the engine.
type Config struct {
	Deepgram DeepgramConfig
	Audio    AudioConfig
	OpenAI   OpenAIConfig
	Rules    RulesConfig
	Engine   EngineConfig
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	KeepAlive   time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	ChunkSize       int
}

type OpenAIConfig struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type EngineConfig struct {
	FallbackEnabled bool
	QueueSize       int
	RestartBackoff  time.Duration
	ExitPhrases     []string
}

// Load resolves configuration from environment variables and sensible
// defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	rulesPath := strings.TrimSpace(os.Getenv("HOTMIC_RULES_FILE"))
	if rulesPath == "" {
		rulesPath = filepath.Join(home, ".config", "hotmic", "dictation.rules")
	}

	cfg := Config{
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
			KeepAlive:   time.Duration(envOrDefaultInt("HOTMIC_KEEPALIVE_MS", 5000)) * time.Millisecond,
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("HOTMIC_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("HOTMIC_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("HOTMIC_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("HOTMIC_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("HOTMIC_CHANNELS", 1),
			ChunkSize:       envOrDefaultInt("HOTMIC_AUDIO_CHUNK_SIZE", 4096),
		},
		OpenAI: OpenAIConfig{
			APIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			Model:      envOrDefault("HOTMIC_CLASSIFIER_MODEL", "gpt-4o-mini"),
			Timeout:    time.Duration(envOrDefaultInt("HOTMIC_CLASSIFIER_TIMEOUT_MS", 8000)) * time.Millisecond,
			MaxRetries: envOrDefaultInt("HOTMIC_CLASSIFIER_RETRIES", 1),
		},
		Rules: RulesConfig{
			Path:           rulesPath,
			IterationLimit: envOrDefaultInt("HOTMIC_RULE_ITERATION_LIMIT", 30),
		},
		Engine: EngineConfig{
			FallbackEnabled: envOrDefaultBool("HOTMIC_FALLBACK_ENABLED", true),
			QueueSize:       envOrDefaultInt("HOTMIC_TRANSCRIPT_QUEUE", 32),
			RestartBackoff:  time.Duration(envOrDefaultInt("HOTMIC_RESTART_BACKOFF_MS", 500)) * time.Millisecond,
			ExitPhrases:     envOrDefaultList("HOTMIC_DICTATION_EXIT_PHRASES", []string{"stop dictation", "end dictation"}),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Engine.QueueSize <= 0 {
		cfg.Engine.QueueSize = 32
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envOrDefaultList(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
