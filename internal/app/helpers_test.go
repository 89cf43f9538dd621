package app_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"lichsu-rewards-service/internal/app"
	"lichsu-rewards-service/internal/domain"
	"lichsu-rewards-service/internal/infra/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// flakyStore wraps a memory store and can be told to fail reads or writes.
type flakyStore struct {
	*memory.Store
	mu         sync.Mutex
	failWrites bool
	failReads  bool
}

var errQuotaExceeded = errors.New("quota exceeded")

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memory.NewStore()}
}

func (s *flakyStore) setFailWrites(v bool) {
	s.mu.Lock()
	s.failWrites = v
	s.mu.Unlock()
}

func (s *flakyStore) setFailReads(v bool) {
	s.mu.Lock()
	s.failReads = v
	s.mu.Unlock()
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	fail := s.failReads
	s.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	return s.Store.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	fail := s.failWrites
	s.mu.Unlock()
	if fail {
		return errQuotaExceeded
	}
	return s.Store.Set(ctx, key, value)
}

func (s *flakyStore) SetMulti(ctx context.Context, values map[string][]byte) error {
	s.mu.Lock()
	fail := s.failWrites
	s.mu.Unlock()
	if fail {
		return errQuotaExceeded
	}
	return s.Store.SetMulti(ctx, values)
}

// eventRecorder collects run events in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []app.RunEvent
}

func (r *eventRecorder) record(ev app.RunEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) last() app.RunEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return app.RunEvent{}
	}
	return r.events[len(r.events)-1]
}

func (r *eventRecorder) ofType(t app.EventType) []app.RunEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []app.RunEvent
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func historyQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "demo-1",
		Title: "Lịch sử Việt Nam",
		Questions: []domain.Question{
			{ID: "q1", Prompt: "Ai lãnh đạo trận Bạch Đằng năm 938?", Options: []string{"Lý Thường Kiệt", "Ngô Quyền", "Trần Hưng Đạo"}, Correct: 1},
			{ID: "q2", Prompt: "Vua Quang Trung đại phá quân Thanh năm nào?", Options: []string{"1789", "1802", "1771"}, Correct: 0},
			{ID: "q3", Prompt: "Kinh đô của nhà Lý là?", Options: []string{"Hoa Lư", "Phú Xuân", "Thăng Long"}, Correct: 2},
		},
	}
}
