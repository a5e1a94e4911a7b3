package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestLoggerRespectsMinimumLevel(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{Logger: log.New(&buf, "", 0), scope: "scheduler"}

	SetLevel(LevelWarn)
	defer SetLevel(LevelInfo)

	l.Info("tick %d", 1)
	assert.Empty(t, buf.String())

	l.Warn("slow tick %d", 2)
	assert.Contains(t, buf.String(), "[WARN] [scheduler] slow tick 2")
}

func TestWithNestsScope(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{Logger: log.New(&buf, "", 0), scope: "discord"}

	l.With("gateway").Info("connected")
	assert.Contains(t, buf.String(), "[INFO] [discord/gateway] connected")

	buf.Reset()
	(&Logger{Logger: l.Logger}).With("root").Error("boom")
	assert.Contains(t, buf.String(), "[ERROR] [root] boom")
}
