package services

import (
	"context"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/ports"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// SampleHandler applies one position sample to a visit.
type SampleHandler func(ctx context.Context, visitID string, sample domain.LocationCoordinates) error

type trackingSession struct {
	cancel context.CancelFunc
	sub    ports.PositionSubscription
	done   chan struct{}
}

// TrackingManager owns the live position subscriptions, one per visit.
//
// Stopping a session cancels its consumer and releases the subscription;
// samples still buffered at that point are discarded.
type TrackingManager struct {
	source  ports.PositionSource
	handle  SampleHandler
	log     *zap.Logger
	mu      sync.Mutex
	session map[string]*trackingSession
}

func NewTrackingManager(source ports.PositionSource, handle SampleHandler, log *zap.Logger) *TrackingManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &TrackingManager{
		source:  source,
		handle:  handle,
		log:     log,
		session: make(map[string]*trackingSession),
	}
}

// Start subscribes to position samples for the visit. The session outlives
// ctx's cancellation; use Stop to end it.
func (m *TrackingManager) Start(ctx context.Context, visitID string) error {
	if m.source == nil {
		return &domain.PositioningError{Kind: domain.PositionUnavailable, Message: "no position source configured"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.session[visitID]; ok {
		return &domain.PreconditionError{Op: "start tracking", Reason: fmt.Sprintf("visit %q is already tracked", visitID)}
	}

	sub, err := m.source.Subscribe(ctx, visitID)
	if err != nil {
		return fmt.Errorf("start tracking %q: %w", visitID, ClassifyPositionError(err))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &trackingSession{cancel: cancel, sub: sub, done: make(chan struct{})}
	m.session[visitID] = s

	go m.consume(runCtx, visitID, s)

	m.log.Info("tracking started", zap.String("visit_id", visitID))
	return nil
}

// Stop ends tracking for the visit and waits for the consumer to exit.
func (m *TrackingManager) Stop(visitID string) error {
	m.mu.Lock()
	s, ok := m.session[visitID]
	if ok {
		delete(m.session, visitID)
	}
	m.mu.Unlock()

	if !ok {
		return &domain.NotFoundError{Kind: "tracking session", ID: visitID}
	}

	s.cancel()
	err := s.sub.Close()
	<-s.done

	m.log.Info("tracking stopped", zap.String("visit_id", visitID))
	if err != nil {
		return fmt.Errorf("stop tracking %q: close subscription: %w", visitID, err)
	}
	return nil
}

func (m *TrackingManager) StopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.session))
	for id := range m.session {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Stop(id); err != nil {
			m.log.Warn("stop tracking failed", zap.String("visit_id", id), zap.Error(err))
		}
	}
}

func (m *TrackingManager) Active(visitID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.session[visitID]
	return ok
}

func (m *TrackingManager) consume(ctx context.Context, visitID string, s *trackingSession) {
	defer close(s.done)

	samples := s.sub.Samples()
	errs := s.sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			// A sample may win the select race against cancellation.
			if ctx.Err() != nil {
				return
			}
			if err := m.handle(ctx, visitID, sample); err != nil {
				m.log.Warn("apply position sample failed", zap.String("visit_id", visitID), zap.Error(err))
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			pe := ClassifyPositionError(err)
			m.log.Warn("position source error",
				zap.String("visit_id", visitID),
				zap.String("kind", string(pe.Kind)),
				zap.Error(pe))
		}
	}
}
