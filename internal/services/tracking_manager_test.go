package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"field-visit-service/internal/adapters/tracking"
	"field-visit-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleLog struct {
	mu      sync.Mutex
	samples []domain.LocationCoordinates
}

func (l *sampleLog) handle(_ context.Context, _ string, s domain.LocationCoordinates) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples = append(l.samples, s)
	return nil
}

func (l *sampleLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.samples)
}

func TestTrackingManagerLifecycle(t *testing.T) {
	source := tracking.NewChannelSource()
	log := &sampleLog{}
	m := NewTrackingManager(source, log.handle, nil)

	require.NoError(t, m.Start(context.Background(), "V1"))
	assert.True(t, m.Active("V1"))
	assert.Equal(t, 1, source.Subscribers("V1"))

	var perr *domain.PreconditionError
	assert.ErrorAs(t, m.Start(context.Background(), "V1"), &perr)

	source.Push("V1", domain.LocationCoordinates{Latitude: 1, Longitude: 2})
	source.Push("V2", domain.LocationCoordinates{Latitude: 3, Longitude: 4})
	source.PushError("V1", errors.New("gps glitch"))
	assert.Eventually(t, func() bool { return log.count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Stop("V1"))
	assert.False(t, m.Active("V1"))
	assert.Equal(t, 0, source.Subscribers("V1"))

	assert.Zero(t, source.Push("V1", domain.LocationCoordinates{Latitude: 5, Longitude: 6}))
	assert.Equal(t, 1, log.count(), "samples after stop are discarded")

	var nf *domain.NotFoundError
	assert.ErrorAs(t, m.Stop("V1"), &nf)
}

func TestTrackingManagerStopAll(t *testing.T) {
	source := tracking.NewChannelSource()
	m := NewTrackingManager(source, (&sampleLog{}).handle, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Start(ctx, "V1"))
	require.NoError(t, m.Start(ctx, "V2"))
	cancel()
	assert.True(t, m.Active("V1"), "sessions outlive the starting request")

	m.StopAll()
	assert.False(t, m.Active("V1"))
	assert.False(t, m.Active("V2"))
}

func TestTrackingManagerWithoutSource(t *testing.T) {
	m := NewTrackingManager(nil, (&sampleLog{}).handle, nil)

	var pe *domain.PositioningError
	require.ErrorAs(t, m.Start(context.Background(), "V1"), &pe)
	assert.Equal(t, domain.PositionUnavailable, pe.Kind)
}
