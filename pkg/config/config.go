// Package config loads the voicebridge configuration: a YAML file with
// environment variable overrides for secrets, so credentials never have
// to live on disk.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// DefaultConfigFile is the config filename looked up in the working
// directory when no path is given.
const DefaultConfigFile = "voicebridge.yaml"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Twilio    TwilioConfig    `yaml:"twilio"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Recording RecordingConfig `yaml:"recording"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Listen is the bind address, e.g. ":5050".
	Listen string `yaml:"listen"`

	// PublicHost is the externally reachable host Twilio connects back
	// to, e.g. "example.ngrok.io".
	PublicHost string `yaml:"public_host"`
}

// TwilioConfig configures the telephony leg.
type TwilioConfig struct {
	AccountSID  string `yaml:"account_sid"`
	AuthToken   string `yaml:"auth_token"`
	PhoneNumber string `yaml:"phone_number"`

	// WelcomeMessage and ReadyMessage are spoken in the TwiML
	// handshake before the media stream connects.
	WelcomeMessage string `yaml:"welcome_message"`
	ReadyMessage   string `yaml:"ready_message"`
}

// OpenAIConfig configures the model leg.
type OpenAIConfig struct {
	APIKey       string   `yaml:"api_key"`
	Model        string   `yaml:"model"`
	Voice        string   `yaml:"voice"`
	Instructions string   `yaml:"instructions"`
	Greeting     string   `yaml:"greeting"`
	Temperature  *float64 `yaml:"temperature,omitempty"`

	// EmbedModel and EmbedDimension configure the embedding endpoint
	// used by the knowledge base.
	EmbedModel     string `yaml:"embed_model"`
	EmbedDimension int    `yaml:"embed_dimension"`
}

// KnowledgeConfig configures the knowledge base.
type KnowledgeConfig struct {
	// DataDir is the BadgerDB directory. Empty means in-memory.
	DataDir string `yaml:"data_dir"`
}

// CalendarConfig configures scheduling.
type CalendarConfig struct {
	// DefaultAppointmentDuration fills in appointment end times the
	// model leaves out.
	DefaultAppointmentDuration time.Duration `yaml:"default_appointment_duration"`
}

// RecordingConfig configures call audio archival.
type RecordingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Backend is "local" or "s3".
	Backend string `yaml:"backend"`

	// Dir is the local recording directory (backend local).
	Dir string `yaml:"dir"`

	// Bucket and Prefix locate recordings in S3 (backend s3).
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Listen: ":5050"},
		Twilio: TwilioConfig{
			WelcomeMessage: "Please wait while we connect your call to the A. I. voice assistant.",
			ReadyMessage:   "You can start talking now.",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-realtime-preview",
			Voice: "alloy",
			Instructions: "You are a helpful and professional AI assistant for a business. " +
				"Answer questions about services, products and appointments. " +
				"Use the rag_search tool to look up business information and the " +
				"schedule_appointment tool to book confirmed appointments.",
			Greeting:       "Greet the caller warmly and ask how you can help them today.",
			EmbedModel:     "text-embedding-3-small",
			EmbedDimension: 1536,
		},
		Calendar: CalendarConfig{DefaultAppointmentDuration: time.Hour},
		Recording: RecordingConfig{
			Backend: "local",
			Dir:     "recordings",
		},
	}
}

// Load reads the YAML file at path, layered over Default and under the
// environment overrides. A missing file with an empty path is not an
// error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Defaults plus environment only.
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays secrets and connection settings from the
// environment.
func (c *Config) applyEnv() {
	overlay(&c.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	overlay(&c.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	overlay(&c.Twilio.PhoneNumber, "TWILIO_PHONE_NUMBER")
	overlay(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	overlay(&c.Server.Listen, "VOICEBRIDGE_LISTEN")
	overlay(&c.Server.PublicHost, "VOICEBRIDGE_PUBLIC_HOST")
}

func overlay(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// Validate checks the settings required to serve calls.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("config: openai.api_key (or OPENAI_API_KEY) is required")
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("config: server.listen is required")
	}
	switch c.Recording.Backend {
	case "", "local", "s3":
	default:
		return fmt.Errorf("config: recording.backend must be local or s3, got %q", c.Recording.Backend)
	}
	if c.Recording.Enabled && c.Recording.Backend == "s3" && c.Recording.Bucket == "" {
		return fmt.Errorf("config: recording.bucket is required for the s3 backend")
	}
	return nil
}
