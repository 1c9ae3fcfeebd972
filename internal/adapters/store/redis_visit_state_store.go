package store

import (
	"context"
	"encoding/json"
	"errors"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/platform/obs"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisVisitStateStore keeps one JSON document per visit under
// <prefix>visit:<id>. Saves are guarded by WATCH on the key and a version
// comparison, so concurrent writers from other processes cannot overwrite
// each other silently.
type RedisVisitStateStore struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

func NewRedisVisitStateStore(client *redis.Client, prefix string, log *zap.Logger) *RedisVisitStateStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisVisitStateStore{client: client, prefix: prefix, log: log}
}

func (s *RedisVisitStateStore) key(visitID string) string {
	return s.prefix + "visit:" + visitID
}

func (s *RedisVisitStateStore) Load(ctx context.Context, visitID string) (_ *domain.VisitState, err error) {
	defer obs.Time(ctx, s.log, "state.redis.Load")(&err)

	raw, err := s.client.Get(ctx, s.key(visitID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load visit state %q: %w", visitID, err)
	}
	return decodeState(visitID, raw)
}

func (s *RedisVisitStateStore) LoadMany(ctx context.Context, visitIDs []string) (_ map[string]*domain.VisitState, err error) {
	defer obs.Time(ctx, s.log, "state.redis.LoadMany")(&err)

	out := make(map[string]*domain.VisitState, len(visitIDs))
	if len(visitIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(visitIDs))
	for i, id := range visitIDs {
		keys[i] = s.key(id)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load visit states: %w", err)
	}

	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		st, err := decodeState(visitIDs[i], []byte(str))
		if err != nil {
			return nil, err
		}
		out[visitIDs[i]] = st
	}
	return out, nil
}

// Save writes st if the stored version still equals st.Version, then bumps
// st.Version. A lost race returns domain.ErrVersionConflict.
func (s *RedisVisitStateStore) Save(ctx context.Context, st *domain.VisitState) (err error) {
	defer obs.Time(ctx, s.log, "state.redis.Save")(&err)

	if st == nil || st.VisitID == "" {
		return errors.New("save visit state: state must have a visit id")
	}
	key := s.key(st.VisitID)

	next := *st
	next.Version = st.Version + 1
	payload, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("save visit state %q: encode: %w", st.VisitID, err)
	}

	txf := func(tx *redis.Tx) error {
		stored, err := currentVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if stored != st.Version {
			return domain.ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txf, key)
	switch {
	case err == nil:
		st.Version = next.Version
		return nil
	case errors.Is(err, redis.TxFailedErr), errors.Is(err, domain.ErrVersionConflict):
		return domain.ErrVersionConflict
	default:
		return fmt.Errorf("save visit state %q: %w", st.VisitID, err)
	}
}

func currentVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var head struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return 0, fmt.Errorf("decode stored version: %w", err)
	}
	return head.Version, nil
}

func decodeState(visitID string, raw []byte) (*domain.VisitState, error) {
	var st domain.VisitState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode visit state %q: %w", visitID, err)
	}
	return &st, nil
}
