package obs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTimeLogsOutcome(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	ctx := WithRequestID(context.Background(), "req-1")

	var err error
	Time(ctx, log, "visits.List")(&err)

	err = errors.New("boom")
	Time(ctx, log, "visits.Get")(&err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "op done", entries[0].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "req-1", entries[0].ContextMap()["req_id"])
	assert.Equal(t, "visits.List", entries[0].ContextMap()["op"])

	assert.Equal(t, "op failed", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestRequestIDDefaultsToEmpty(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, "abc", RequestID(WithRequestID(context.Background(), "abc")))
}
