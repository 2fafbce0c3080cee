package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRecorder(t *testing.T) {
	logger, rec := NewLogRecorder(t)

	logger.Debug("chunk read", slog.Int("rows", 500))
	logger.With(slog.String("tab", "T1")).Warn("metadata refresh failed", slog.String("call", "meta"))

	assert.Equal(t, []string{"chunk read", "metadata refresh failed"}, rec.Messages(slog.LevelDebug))

	warns := rec.Entries(slog.LevelWarn)
	require.Len(t, warns, 1)
	assert.Equal(t, "T1", warns[0].Attrs["tab"])
	assert.Equal(t, "meta", warns[0].Attrs["call"])
	assert.Equal(t, "500", rec.Entries(slog.LevelDebug)[0].Attrs["rows"])
}
