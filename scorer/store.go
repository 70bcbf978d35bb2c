package scorer

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pulseward/pulseward/core"
)

// BaselineStore holds the rolling sample windows. Samples returns newest
// first; Append evicts beyond the window and refreshes the TTL.
type BaselineStore interface {
	Append(ctx context.Context, patientID, metric, unit string, value float64) error
	Samples(ctx context.Context, patientID, metric, unit string) ([]float64, error)
}

// RedisBaselineStore keeps baselines in Redis lists. LPUSH+LTRIM+EXPIRE run
// in one pipeline and stats are computed on read, so concurrent appenders
// never race on a read-modify-write.
type RedisBaselineStore struct {
	redis  *core.RedisClient
	window int64
	ttl    time.Duration
}

// NewRedisBaselineStore creates the store.
func NewRedisBaselineStore(redis *core.RedisClient, window int, ttl time.Duration) *RedisBaselineStore {
	return &RedisBaselineStore{redis: redis, window: int64(window), ttl: ttl}
}

func (s *RedisBaselineStore) key(patientID, metric, unit string) string {
	return s.redis.Key("baseline", patientID, metric, unit)
}

func (s *RedisBaselineStore) Append(ctx context.Context, patientID, metric, unit string, value float64) error {
	v := strconv.FormatFloat(value, 'g', -1, 64)
	return s.redis.ListPush(ctx, s.key(patientID, metric, unit), v, s.window, s.ttl)
}

func (s *RedisBaselineStore) Samples(ctx context.Context, patientID, metric, unit string) ([]float64, error) {
	raw, err := s.redis.ListRange(ctx, s.key(patientID, metric, unit), s.window)
	if err != nil {
		return nil, err
	}
	samples := make([]float64, 0, len(raw))
	for _, r := range raw {
		if v, err := strconv.ParseFloat(r, 64); err == nil {
			samples = append(samples, v)
		}
	}
	return samples, nil
}

// MemoryBaselineStore is the in-process fallback: per-replica, lost on
// restart, rebuilt lazily from subsequent samples. Updates serialize on a
// per-key mutex.
type MemoryBaselineStore struct {
	mu      sync.Mutex
	entries map[string]*memoryBaseline
	window  int
	ttl     time.Duration
}

type memoryBaseline struct {
	mu        sync.Mutex
	values    []float64 // newest first
	updatedAt time.Time
}

// NewMemoryBaselineStore creates the fallback store.
func NewMemoryBaselineStore(window int, ttl time.Duration) *MemoryBaselineStore {
	return &MemoryBaselineStore{
		entries: make(map[string]*memoryBaseline),
		window:  window,
		ttl:     ttl,
	}
}

func (s *MemoryBaselineStore) entry(key string) *memoryBaseline {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &memoryBaseline{}
		s.entries[key] = e
	}
	return e
}

func (s *MemoryBaselineStore) Append(ctx context.Context, patientID, metric, unit string, value float64) error {
	e := s.entry(patientID + ":" + metric + ":" + unit)
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.expired(e) {
		e.values = nil
	}
	e.values = append([]float64{value}, e.values...)
	if len(e.values) > s.window {
		e.values = e.values[:s.window]
	}
	e.updatedAt = time.Now()
	return nil
}

func (s *MemoryBaselineStore) Samples(ctx context.Context, patientID, metric, unit string) ([]float64, error) {
	e := s.entry(patientID + ":" + metric + ":" + unit)
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.expired(e) {
		e.values = nil
		return nil, nil
	}
	out := make([]float64, len(e.values))
	copy(out, e.values)
	return out, nil
}

func (s *MemoryBaselineStore) expired(e *memoryBaseline) bool {
	return s.ttl > 0 && !e.updatedAt.IsZero() && time.Since(e.updatedAt) > s.ttl
}

// FailoverBaselineStore prefers the shared cache and degrades to the
// in-process store when the cache misbehaves, logging WARN once per window
// via the logger's rate limiting.
type FailoverBaselineStore struct {
	primary  BaselineStore
	fallback BaselineStore
	logger   core.Logger
}

// NewFailoverBaselineStore wires primary and fallback.
func NewFailoverBaselineStore(primary, fallback BaselineStore, logger core.Logger) *FailoverBaselineStore {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &FailoverBaselineStore{primary: primary, fallback: fallback, logger: logger}
}

func (s *FailoverBaselineStore) Append(ctx context.Context, patientID, metric, unit string, value float64) error {
	if s.primary != nil {
		if err := s.primary.Append(ctx, patientID, metric, unit, value); err == nil {
			return nil
		} else {
			s.logger.Warn("baseline cache write failed, using in-process store", map[string]interface{}{
				"patient_id": patientID,
				"metric":     metric,
				"error":      err.Error(),
			})
		}
	}
	return s.fallback.Append(ctx, patientID, metric, unit, value)
}

func (s *FailoverBaselineStore) Samples(ctx context.Context, patientID, metric, unit string) ([]float64, error) {
	if s.primary != nil {
		if samples, err := s.primary.Samples(ctx, patientID, metric, unit); err == nil {
			return samples, nil
		} else {
			s.logger.Warn("baseline cache read failed, using in-process store", map[string]interface{}{
				"patient_id": patientID,
				"metric":     metric,
				"error":      err.Error(),
			})
		}
	}
	return s.fallback.Samples(ctx, patientID, metric, unit)
}
