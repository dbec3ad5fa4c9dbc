package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_FormatFromEnvironment(t *testing.T) {
	tests := []struct {
		environment string
		wantJSON    bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(Config{Writer: &buf, Environment: tt.environment, Level: slog.LevelInfo, NoColor: true})
			l.Info("hello", "book_id", "book-1")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"hello"`)
				assert.Contains(t, buf.String(), `"book_id":"book-1"`)
			} else {
				assert.Contains(t, buf.String(), "INF hello book_id=book-1")
			}
		})
	}
}

func TestConsoleHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Writer: &buf, Format: FormatConsole, Level: slog.LevelWarn, NoColor: true})

	l.Info("quiet")
	l.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "WRN loud")
}

func TestConsoleHandler_GroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Writer: &buf, Format: FormatConsole, Level: slog.LevelDebug, NoColor: true})

	l.With("component", "lending").WithGroup("loan").Debug("borrowed", "id", "order-1", "note", "two words")

	out := buf.String()
	assert.Contains(t, out, "DBG borrowed")
	assert.Contains(t, out, "component=lending")
	assert.Contains(t, out, "loan.id=order-1")
	assert.Contains(t, out, `loan.note="two words"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
