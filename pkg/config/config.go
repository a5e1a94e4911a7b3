package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Platform names the chat transport the bot connects to
type Platform string

const (
	PlatformDiscord  Platform = "discord"
	PlatformTelegram Platform = "telegram"
)

// Config holds all configuration for the application
type Config struct {
	Platform Platform

	// Discord bot configuration
	DiscordToken string
	MentionRole  string

	// Telegram bot configuration
	BotToken string

	// Channels: reminders and vote reactions live in EventsChannel,
	// /schedule is only accepted in CommandChannel
	EventsChannel  string
	CommandChannel string

	// Scheduler configuration
	TickInterval   time.Duration
	CleanupDelay   time.Duration
	EventRetention time.Duration

	// OpenAI configuration (optional)
	OpenAIAPIBase string
	OpenAIAPIKey  string
	OpenAIModel   string

	// Application configuration
	DataDir  string
	Port     int
	LogLevel string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	return FromLookup(os.Getenv)
}

// FromLookup builds a Config from any key lookup, which keeps the
// validation rules testable without touching the process environment
func FromLookup(getenv func(string) string) (*Config, error) {
	get := func(key, defaultValue string) string {
		if value := strings.TrimSpace(getenv(key)); value != "" {
			return value
		}
		return defaultValue
	}

	cfg := &Config{
		Platform:       Platform(strings.ToLower(get("PLATFORM", string(PlatformDiscord)))),
		DiscordToken:   get("DISCORD_TOKEN", ""),
		MentionRole:    get("ROLE_ID_HOME_KINGDOM", ""),
		BotToken:       get("BOT_TOKEN", ""),
		EventsChannel:  get("CHANNEL_ID", ""),
		CommandChannel: get("COMMAND_CHANNEL_ID", ""),
		OpenAIAPIKey:   get("OPENAI_API_KEY", ""),
		OpenAIAPIBase:  get("OPENAI_API_BASE", "https://api.openai.com/v1"),
		OpenAIModel:    get("OPENAI_MODEL", "gpt-3.5-turbo"),
		DataDir:        get("DATA_DIR", "./data"),
		LogLevel:       get("LOG_LEVEL", "info"),
	}

	// Required configurations
	switch cfg.Platform {
	case PlatformDiscord:
		if cfg.DiscordToken == "" {
			return nil, fmt.Errorf("DISCORD_TOKEN environment variable is required")
		}
	case PlatformTelegram:
		if cfg.BotToken == "" {
			return nil, fmt.Errorf("BOT_TOKEN environment variable is required")
		}
	default:
		return nil, fmt.Errorf("unsupported PLATFORM %q (want discord or telegram)", cfg.Platform)
	}

	if cfg.EventsChannel == "" {
		return nil, fmt.Errorf("CHANNEL_ID environment variable is required")
	}
	if cfg.CommandChannel == "" {
		return nil, fmt.Errorf("COMMAND_CHANNEL_ID environment variable is required")
	}

	// Optional configurations with defaults
	var err error
	if cfg.TickInterval, err = parseDuration(get("TICK_INTERVAL", "60s")); err != nil {
		return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
	}
	if cfg.CleanupDelay, err = parseDuration(get("CLEANUP_DELAY", "10m")); err != nil {
		return nil, fmt.Errorf("invalid CLEANUP_DELAY: %w", err)
	}
	if cfg.EventRetention, err = parseDuration(get("EVENT_RETENTION", "168h")); err != nil {
		return nil, fmt.Errorf("invalid EVENT_RETENTION: %w", err)
	}

	cfg.Port, err = strconv.Atoi(get("PORT", "8080"))
	if err != nil || cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid PORT %q", get("PORT", ""))
	}

	// Log configuration with sensitive data redacted
	logCfg := *cfg
	logCfg.DiscordToken = redact(logCfg.DiscordToken)
	logCfg.BotToken = redact(logCfg.BotToken)
	logCfg.OpenAIAPIKey = redact(logCfg.OpenAIAPIKey)
	log.Printf("Configuration loaded: %+v", logCfg)
	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}

func redact(secret string) string {
	if len(secret) > 8 {
		return secret[:8] + "...REDACTED..."
	}
	return secret
}
