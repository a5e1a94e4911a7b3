package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(env map[string]string) func(string) string {
	return func(key string) string { return env[key] }
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(lookup(map[string]string{
		"DISCORD_TOKEN":      "token-abcdefghijkl",
		"CHANNEL_ID":         "100",
		"COMMAND_CHANNEL_ID": "200",
	}))
	require.NoError(t, err)

	assert.Equal(t, PlatformDiscord, cfg.Platform)
	assert.Equal(t, 60*time.Second, cfg.TickInterval)
	assert.Equal(t, 10*time.Minute, cfg.CleanupDelay)
	assert.Equal(t, 168*time.Hour, cfg.EventRetention)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Empty(t, cfg.OpenAIAPIKey)
}

func TestFromLookup_Telegram(t *testing.T) {
	cfg, err := FromLookup(lookup(map[string]string{
		"PLATFORM":           "Telegram",
		"BOT_TOKEN":          "123:abc",
		"CHANNEL_ID":         "-1001",
		"COMMAND_CHANNEL_ID": "-1002",
		"TICK_INTERVAL":      "30s",
		"PORT":               "9090",
	}))
	require.NoError(t, err)

	assert.Equal(t, PlatformTelegram, cfg.Platform)
	assert.Equal(t, 30*time.Second, cfg.TickInterval)
	assert.Equal(t, 9090, cfg.Port)
}

func TestFromLookup_Errors(t *testing.T) {
	base := func() map[string]string {
		return map[string]string{
			"DISCORD_TOKEN":      "token",
			"CHANNEL_ID":         "100",
			"COMMAND_CHANNEL_ID": "200",
		}
	}

	tests := []struct {
		name   string
		mutate func(map[string]string)
		want   string
	}{
		{"missing token", func(m map[string]string) { delete(m, "DISCORD_TOKEN") }, "DISCORD_TOKEN"},
		{"missing channel", func(m map[string]string) { delete(m, "CHANNEL_ID") }, "CHANNEL_ID"},
		{"missing command channel", func(m map[string]string) { delete(m, "COMMAND_CHANNEL_ID") }, "COMMAND_CHANNEL_ID"},
		{"unknown platform", func(m map[string]string) { m["PLATFORM"] = "irc" }, "unsupported PLATFORM"},
		{"bad tick", func(m map[string]string) { m["TICK_INTERVAL"] = "soon" }, "TICK_INTERVAL"},
		{"negative cleanup", func(m map[string]string) { m["CLEANUP_DELAY"] = "-1m" }, "CLEANUP_DELAY"},
		{"bad port", func(m map[string]string) { m["PORT"] = "http" }, "PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := base()
			tt.mutate(env)
			_, err := FromLookup(lookup(env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "short", redact("short"))
	assert.Equal(t, "12345678...REDACTED...", redact("1234567890"))
}
