package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneclass-zw/platform/pkg/logger"
	"github.com/oneclass-zw/platform/pkg/requestid"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("emits json with static attributes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithService("platform-gateway"),
			logger.WithAttrs(slog.String("env", "test")),
		)
		log.Info("hello")

		line := logLine(t, &buf)
		assert.Equal(t, "hello", line["msg"])
		assert.Equal(t, "platform-gateway", line["service"])
		assert.Equal(t, "test", line["env"])
	})

	t.Run("injects context attributes per record", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithContextExtractors(requestid.LoggerExtractor()),
		)

		ctx := requestid.WithContext(context.Background(), "req-42")
		log.InfoContext(ctx, "with id")

		line := logLine(t, &buf)
		assert.Equal(t, "req-42", line["request_id"])
	})

	t.Run("honours the minimum level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))
		log.Info("dropped")
		assert.Zero(t, buf.Len())

		log.Warn("kept")
		assert.NotZero(t, buf.Len())
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatText))
		log.Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})
}

func TestErrorAttr(t *testing.T) {
	t.Parallel()

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))

	attr := logger.Error(assert.AnError)
	assert.Equal(t, "error", attr.Key)
}
