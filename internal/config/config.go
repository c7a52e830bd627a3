// Package config loads process configuration from an optional YAML file with
// environment-variable overrides. Environment always wins over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Twilio     TwilioConfig     `yaml:"twilio"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Agent      AgentConfig      `yaml:"agent"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// PublicURL is the externally reachable base URL the telephony provider
	// calls back to; the media-stream websocket URL is derived from it.
	PublicURL string `yaml:"public_url"`
	StaticDir string `yaml:"static_dir"`
}

type TwilioConfig struct {
	AccountSID  string `yaml:"account_sid"`
	AuthToken   string `yaml:"auth_token"`
	PhoneNumber string `yaml:"phone_number"`
}

type ElevenLabsConfig struct {
	AgentID string `yaml:"agent_id"`
	APIKey  string `yaml:"api_key"`
}

type AgentConfig struct {
	// Prompt and FirstMessage are the defaults used when a call carries no
	// overrides in its custom parameters.
	Prompt       string `yaml:"prompt"`
	FirstMessage string `yaml:"first_message"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8000,
			StaticDir: "static",
		},
		Agent: AgentConfig{
			Prompt:       "You are a helpful assistant on a phone call. Keep responses short and conversational.",
			FirstMessage: "Hello! How can I help you today?",
		},
	}
}

// Load reads the configuration file at path (skipped when path is empty or
// the file does not exist), applies environment overrides, and validates the
// required credentials.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "BRIDGE_HOST")
	setInt(&cfg.Server.Port, "BRIDGE_PORT")
	setString(&cfg.Server.PublicURL, "BRIDGE_PUBLIC_URL")
	setString(&cfg.Server.StaticDir, "BRIDGE_STATIC_DIR")

	setString(&cfg.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&cfg.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&cfg.Twilio.PhoneNumber, "TWILIO_PHONE_NUMBER")

	setString(&cfg.ElevenLabs.AgentID, "ELEVENLABS_AGENT_ID")
	setString(&cfg.ElevenLabs.APIKey, "ELEVENLABS_API_KEY")

	setString(&cfg.Agent.Prompt, "BRIDGE_AGENT_PROMPT")
	setString(&cfg.Agent.FirstMessage, "BRIDGE_AGENT_FIRST_MESSAGE")
}

func (c *Config) validate() error {
	var missing []string
	if c.Twilio.AccountSID == "" {
		missing = append(missing, "twilio.account_sid")
	}
	if c.Twilio.AuthToken == "" {
		missing = append(missing, "twilio.auth_token")
	}
	if c.Twilio.PhoneNumber == "" {
		missing = append(missing, "twilio.phone_number")
	}
	if c.ElevenLabs.AgentID == "" {
		missing = append(missing, "elevenlabs.agent_id")
	}
	if c.ElevenLabs.APIKey == "" {
		missing = append(missing, "elevenlabs.api_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func setString(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok {
		*target = value
	}
}

func setInt(target *int, key string) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return
	}
	*target = parsed
}
