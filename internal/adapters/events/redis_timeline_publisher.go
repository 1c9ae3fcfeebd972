package events

import (
	"context"
	"encoding/json"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/platform/obs"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultMaxLen = 10000

// RedisTimelinePublisher appends timeline events to a Redis stream so other
// services can follow visit activity. Each event is one stream entry with
// visit_id, event_id, type and the JSON-encoded event under data.
type RedisTimelinePublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	log    *zap.Logger
}

func NewRedisTimelinePublisher(client *redis.Client, stream string, maxLen int64, log *zap.Logger) *RedisTimelinePublisher {
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisTimelinePublisher{client: client, stream: stream, maxLen: maxLen, log: log}
}

func (p *RedisTimelinePublisher) Publish(ctx context.Context, visitID string, evs []domain.TimelineEvent) (err error) {
	defer obs.Time(ctx, p.log, "timeline.redis.Publish")(&err)

	if len(evs) == 0 {
		return nil
	}

	_, err = p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, ev := range evs {
			data, err := json.Marshal(ev)
			if err != nil {
				return fmt.Errorf("encode event %q: %w", ev.ID, err)
			}
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: p.stream,
				MaxLen: p.maxLen,
				Approx: true,
				Values: map[string]any{
					"visit_id": visitID,
					"event_id": ev.ID,
					"type":     string(ev.Type),
					"data":     string(data),
				},
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish %d timeline events for %q: %w", len(evs), visitID, err)
	}
	return nil
}
