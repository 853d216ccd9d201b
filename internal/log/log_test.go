package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetup_Fallback(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup("", false, &buf)
	require.True(t, Initialized())

	slog.Info("quiet")
	slog.Warn("loud", "path", "history.json")

	require.NotContains(t, buf.String(), "quiet")
	require.Contains(t, buf.String(), "loud")
	require.Contains(t, buf.String(), "path=history.json")

	// only the first call configures logging
	var other bytes.Buffer
	Setup("", true, &other)
	slog.Warn("again")
	require.Empty(t, other.String())
}
