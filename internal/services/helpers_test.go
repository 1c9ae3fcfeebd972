package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"field-visit-service/internal/domain"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newTestRecorder(clock *testClock) *TimelineRecorder {
	return &TimelineRecorder{Now: clock.Now, NewID: sequentialIDs("ev")}
}

func newTestEngine(clock *testClock) *ProgressEngine {
	e := NewProgressEngine(nil, newTestRecorder(clock))
	e.NewID = sequentialIDs("id")
	return e
}

// coordResolver resolves visits from a fixed table.
type coordResolver map[string]domain.Coordinates

func (r coordResolver) ResolveVisit(_ context.Context, v domain.Visit) (domain.Coordinates, error) {
	c, ok := r[v.ID]
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("no coordinates for %q", v.ID)
	}
	return c, nil
}

func eventTypes(events []domain.TimelineEvent) []domain.TimelineEventType {
	out := make([]domain.TimelineEventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}
