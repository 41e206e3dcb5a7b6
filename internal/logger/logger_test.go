package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew_production(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	logger.Debug().Msg("hidden")
	require.Zero(t, buf.Len())

	logger.Info().Str("path", "/profile").Msg("visible")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "visible", entry["message"])
	require.Equal(t, "/profile", entry["path"])
	require.Contains(t, entry, zerolog.TimestampFieldName)
	require.Contains(t, entry, zerolog.CallerFieldName)
}

func TestNew_dev(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, true)

	logger.Debug().Msg("probe attempt")
	require.Contains(t, buf.String(), "probe attempt")
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}
