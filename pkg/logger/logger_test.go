package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayyadi/paroll-sub001/pkg/logger"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatJSON))
		log.Info("hello", slog.String("k", "v"))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "hello", record["msg"])
		assert.Equal(t, "v", record["k"])
	})

	t.Run("level filtering", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))
		log.Info("dropped")
		assert.Zero(t, buf.Len())

		log.Warn("kept")
		assert.NotZero(t, buf.Len())
	})

	t.Run("static attrs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithAttr(slog.String("service", "notifications")),
		)
		log.Info("msg")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "notifications", record["service"])
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			logger.New(logger.WithFormat("yaml"))
		})
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewFromConfig(
		logger.Config{Level: "debug", Format: logger.FormatText},
		logger.WithOutput(&buf),
	)
	log.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestErrorAttr(t *testing.T) {
	t.Parallel()

	attr := logger.Error(errors.New("boom"))
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, "boom", attr.Value.String())
}
