package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all process configuration. It is constructed once at
// startup and passed by reference; nothing reads the environment after
// Load returns.
type Config struct {
	// Media platform connection
	LiveKitURL string `yaml:"livekit_url"` // connection endpoint returned to token callers
	APIKey     string `yaml:"api_key"`     // signing key id
	APISecret  string `yaml:"api_secret"`  // signing key secret

	// Rooms
	DefaultRoom   string `yaml:"default_room"`
	AgentIdentity string `yaml:"agent_identity"`

	// Token server
	Port     int           `yaml:"port"`
	TokenTTL time.Duration `yaml:"token_ttl"`

	// LLM provider selection
	LLMProvider   string `yaml:"llm_provider"` // "openai", "anthropic", "ollama"
	LLMModel      string `yaml:"llm_model"`
	OpenAIKey     string `yaml:"openai_api_key"`
	AnthropicKey  string `yaml:"anthropic_api_key"`
	OllamaBaseURL string `yaml:"ollama_base_url"`

	// Speech
	TTSProvider   string `yaml:"tts_provider"` // "openai", "elevenlabs"
	TTSVoice      string `yaml:"tts_voice"`
	ElevenLabsKey string `yaml:"elevenlabs_api_key"`
	VADModelPath  string `yaml:"vad_model_path"`
	SampleRate    int    `yaml:"sample_rate"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LiveKitURL:    "http://localhost:7880",
		DefaultRoom:   "test-room",
		AgentIdentity: "calmsupport-agent",
		Port:          8000,
		TokenTTL:      time.Hour,
		LLMProvider:   "openai",
		TTSProvider:   "openai",
		TTSVoice:      "alloy",
		OllamaBaseURL: "http://localhost:11434",
		SampleRate:    16000,
	}
}

// Load builds the configuration from defaults, an optional aipsych.yaml
// in the working directory, and finally the environment. A .env file is
// loaded first if present so local development matches production env
// wiring.
func Load() (*Config, error) {
	// Best effort; a missing .env is the normal case in production.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if data, err := os.ReadFile("aipsych.yaml"); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse aipsych.yaml: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables onto the config. Environment
// wins over the YAML file so deployments can override checked-in config.
func (c *Config) applyEnv() {
	setString(&c.LiveKitURL, "LIVEKIT_URL")
	setString(&c.APIKey, "LIVEKIT_API_KEY")
	setString(&c.APISecret, "LIVEKIT_API_SECRET")
	setString(&c.DefaultRoom, "ROOM_NAME")
	setString(&c.AgentIdentity, "AGENT_IDENTITY")
	setString(&c.LLMProvider, "LLM_PROVIDER")
	setString(&c.LLMModel, "LLM_MODEL")
	setString(&c.OpenAIKey, "OPENAI_API_KEY")
	setString(&c.AnthropicKey, "ANTHROPIC_API_KEY")
	setString(&c.OllamaBaseURL, "OLLAMA_BASE_URL")
	setString(&c.TTSProvider, "TTS_PROVIDER")
	setString(&c.TTSVoice, "TTS_VOICE")
	setString(&c.ElevenLabsKey, "ELEVENLABS_API_KEY")
	setString(&c.VADModelPath, "VAD_MODEL_PATH")

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.TokenTTL = d
		}
	}
}

// HasSigningCredentials reports whether both halves of the signing
// key-pair are present. Token issuance must not be attempted without it.
func (c *Config) HasSigningCredentials() bool {
	return c.APIKey != "" && c.APISecret != ""
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
