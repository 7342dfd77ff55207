package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry))
		out = append(out, entry)
	}
	return out
}

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "debug", Format: "json"}, &buf)

	logger.Info("stream started",
		String("guild_id", "g1"),
		Int("attempt", 2),
		Bool("playing", true),
		Duration("delay", 5*time.Second),
		Error(errors.New("boom")),
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "stream started", entry["message"])
	assert.Equal(t, "g1", entry["guild_id"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, true, entry["playing"])
	assert.Equal(t, "5s", entry["delay"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"debug", 4},
		{"info", 3},
		{"warn", 2},
		{"error", 1},
		{"bogus", 3},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(Config{Level: tt.level, Format: "json"}, &buf)
			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")
			assert.Len(t, decodeLines(t, &buf), tt.want)
		})
	}
}

func TestWithAddsContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "info", Format: "json"}, &buf).
		With(String("component", "stream"))

	logger.Warn("reconnecting", String("guild_id", "g2"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "stream", entries[0]["component"])
	assert.Equal(t, "g2", entries[0]["guild_id"])
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "info", Format: "console"}, &buf)
	logger.Info("hello", String("who", "world"))

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "who=")
	assert.Contains(t, out, "world")
}

func TestNullLoggerDiscards(t *testing.T) {
	logger := NullLogger()
	assert.NotPanics(t, func() {
		logger.Info("nothing")
		logger.With(String("a", "b")).Error("still nothing", Error(nil))
	})
}

func TestStdLogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "info", Format: "json"}, &buf)

	adapter := NewStdLogAdapter(logger)
	adapter.SetAsStdLogger()
	defer func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
	}()

	log.Println("from std log")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "from std log", entries[0]["message"])
}

func TestFileOutputRotates(t *testing.T) {
	path := t.TempDir() + "/bot.log"
	logger := New(Config{Level: "info", Format: "json", Output: path, RotateSizeMB: 1, RotateCount: 2})
	logger.Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
