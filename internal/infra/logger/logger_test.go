package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewHonoursLevelOverride(t *testing.T) {
	log, err := New("production", "warn")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	log, err = New("development", "")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	_, err = New("development", "loud")
	assert.Error(t, err)
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "joh***@example.com", MaskEmail("john.doe@example.com"))
	assert.Equal(t, "al***@example.com", MaskEmail("al@example.com"))
	assert.Equal(t, "", MaskEmail(""))
	assert.Equal(t, "***", MaskEmail("not-an-email"))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "***7890", MaskPhone("+1 (234) 567-7890"))
	assert.Equal(t, "***", MaskPhone("123"))
	assert.Equal(t, "", MaskPhone(""))
}

func TestMaskIP(t *testing.T) {
	assert.Equal(t, "192.168.0.0", MaskIP("192.168.1.100"))
	assert.Equal(t, "2001:db8:85a3::", MaskIP("2001:0db8:85a3:0000:0000:8a2e:0370:7334"))
	assert.Equal(t, "***", MaskIP("localhost"))
	assert.Equal(t, "", MaskIP(""))
}

func TestWithContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := WithRequestID(context.Background(), "req-1")
	WithContext(ctx, base).Info("hello")
	WithContext(context.Background(), base).Info("bare")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestErrorFieldsIncludeOopsCode(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	log.Error("coded", Error(oops.Code("MAIL_SEND_FAILED").With("status", 503).Errorf("upstream"))...)
	log.Error("plain", Error(errors.New("boom"))...)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "MAIL_SEND_FAILED", entries[0].ContextMap()["error_code"])
	assert.Contains(t, entries[0].ContextMap(), "error_context")
	assert.NotContains(t, entries[1].ContextMap(), "error_code")
}
