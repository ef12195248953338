package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, Options{}.Level())
	assert.Equal(t, slog.LevelDebug, Options{Verbose: true}.Level())
	assert.Equal(t, slog.LevelWarn, Options{Quiet: true}.Level())
	assert.Equal(t, slog.LevelWarn, Options{Verbose: true, Quiet: true}.Level())
}

func TestSetupQuietDropsInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Quiet: true, Output: &buf})
	ctx := context.Background()
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelWarn))
	logger.Info("hidden")
	assert.Zero(t, buf.Len())
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Format: "json", Output: &buf})
	logger.Info("dataset loaded", "rows", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "dataset loaded", record["msg"])
	assert.Equal(t, "sheetboard", record["app"])
	assert.EqualValues(t, 3, record["rows"])
}
