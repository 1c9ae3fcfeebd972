package tracking

import (
	"context"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/ports"
	"sync"
)

// ChannelSource is an in-process PositionSource. Reports are pushed with
// Push and PushError and reach every open subscription for the visit.
type ChannelSource struct {
	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

func NewChannelSource() *ChannelSource {
	return &ChannelSource{subs: make(map[string]map[*subscription]struct{})}
}

func (c *ChannelSource) Subscribe(ctx context.Context, visitID string) (ports.PositionSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sub *subscription
	sub = newSubscription(func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[visitID], sub)
		if len(c.subs[visitID]) == 0 {
			delete(c.subs, visitID)
		}
		return nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs[visitID] == nil {
		c.subs[visitID] = make(map[*subscription]struct{})
	}
	c.subs[visitID][sub] = struct{}{}
	return sub, nil
}

// Push delivers a sample and reports how many subscriptions accepted it.
func (c *ChannelSource) Push(visitID string, sample domain.LocationCoordinates) int {
	n := 0
	for _, s := range c.snapshot(visitID) {
		if s.deliverSample(sample) {
			n++
		}
	}
	return n
}

// PushPayload decodes a device report and delivers it. Undecodable or
// device-side error reports are delivered on the error channel.
func (c *ChannelSource) PushPayload(visitID string, payload []byte) int {
	sample, err := decodePosition(payload)
	if err != nil {
		return c.PushError(visitID, err)
	}
	return c.Push(visitID, sample)
}

func (c *ChannelSource) PushError(visitID string, err error) int {
	n := 0
	for _, s := range c.snapshot(visitID) {
		if s.deliverError(err) {
			n++
		}
	}
	return n
}

func (c *ChannelSource) Subscribers(visitID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[visitID])
}

func (c *ChannelSource) snapshot(visitID string) []*subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*subscription, 0, len(c.subs[visitID]))
	for s := range c.subs[visitID] {
		out = append(out, s)
	}
	return out
}
