package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"lichsu-rewards-service/internal/domain"
	"lichsu-rewards-service/internal/metrics"
)

// Store abstracts the durable key-value backend (in-memory, Redis, Postgres).
// Get returns domain.ErrRecordNotFound for absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetMulti writes all records together, atomically where the backend supports it.
	SetMulti(ctx context.Context, values map[string][]byte) error
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizCache is implemented by quiz repositories that keep content between reads.
type QuizCache interface {
	Invalidate(ctx context.Context, quizID string) error
}

const (
	ledgerKeyPrefix   = "user_points_"
	vouchersKeyPrefix = "redeemed_vouchers_"
	attemptsKeyPrefix = "quiz_demo_v1_"
)

func ledgerKey(userID string) string   { return ledgerKeyPrefix + userID }
func vouchersKey(userID string) string { return vouchersKeyPrefix + userID }
func attemptsKey(quizID string) string { return attemptsKeyPrefix + quizID }

// records is the typed JSON layer over Store. It reports failures explicitly;
// callers decide the fallback.
type records struct {
	store Store
}

// load decodes key into dst. Absent keys return ErrRecordNotFound, undecodable ones
// ErrStoreReadCorrupt and backend failures ErrStoreUnavailable.
func (r records) load(ctx context.Context, key string, dst any) error {
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.ErrRecordNotFound
		}
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreReadCorrupt, err)
	}
	return nil
}

func (r records) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreWriteFailed, err)
	}
	if err := r.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreWriteFailed, err)
	}
	return nil
}

func (r records) saveMulti(ctx context.Context, values map[string]any) error {
	encoded := make(map[string][]byte, len(values))
	for key, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStoreWriteFailed, err)
		}
		encoded[key] = raw
	}
	if err := r.store.SetMulti(ctx, encoded); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreWriteFailed, err)
	}
	return nil
}

type recordState int

const (
	recordFound recordState = iota
	// recordMissing covers absent and corrupt records; defaults may be written over them.
	recordMissing
	// recordUnavailable means the backend failed; defaults are served but not written back.
	recordUnavailable
)

// loadOrDefault applies the read policy: absent and corrupt records both mean "use defaults".
func (r records) loadOrDefault(ctx context.Context, key string, dst any) recordState {
	err := r.load(ctx, key, dst)
	switch {
	case err == nil:
		return recordFound
	case errors.Is(err, domain.ErrRecordNotFound):
		return recordMissing
	case errors.Is(err, domain.ErrStoreReadCorrupt):
		metrics.StoreFailures.WithLabelValues("read_corrupt").Inc()
		log.WithError(err).WithField("key", key).Warn("discarding unreadable record")
		return recordMissing
	default:
		metrics.StoreFailures.WithLabelValues("read").Inc()
		log.WithError(err).WithField("key", key).Error("store read failed, serving defaults")
		return recordUnavailable
	}
}

// absorbWrite applies the write policy: failures are logged and counted, never surfaced.
func absorbWrite(err error, key string) {
	if err == nil {
		return
	}
	metrics.StoreFailures.WithLabelValues("write").Inc()
	log.WithError(err).WithField("key", key).Warn("record not persisted; change kept in memory only")
}

// keyedMutex serializes read-modify-write cycles per owner id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
