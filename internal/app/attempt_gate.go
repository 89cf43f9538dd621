package app

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"lichsu-rewards-service/internal/domain"
	"lichsu-rewards-service/internal/metrics"
)

const (
	DefaultBaseAttempts  = 2
	DefaultBonusAttempts = 10
	DefaultLockDuration  = 12 * time.Hour
)

// GateConfig tunes an AttemptGate. Zero values fall back to defaults.
type GateConfig struct {
	BaseAttempts  int
	BonusAttempts int
	LockDuration  time.Duration
	Now           func() time.Time
}

// AttemptGate tracks the wrong-answer budget of each quiz and locks it once exhausted.
// State is keyed by quiz id only, so every player of a quiz shares one budget.
type AttemptGate struct {
	records      records
	baseAttempts int
	bonus        int
	lockDuration time.Duration
	now          func() time.Time
	locks        *keyedMutex
}

func NewAttemptGate(store Store, cfg GateConfig) *AttemptGate {
	if cfg.BaseAttempts <= 0 {
		cfg.BaseAttempts = DefaultBaseAttempts
	}
	if cfg.BonusAttempts <= 0 {
		cfg.BonusAttempts = DefaultBonusAttempts
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = DefaultLockDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AttemptGate{
		records:      records{store: store},
		baseAttempts: cfg.BaseAttempts,
		bonus:        cfg.BonusAttempts,
		lockDuration: cfg.LockDuration,
		now:          cfg.Now,
		locks:        newKeyedMutex(),
	}
}

// State returns the persisted attempt state, or the defaults when none exists.
func (g *AttemptGate) State(ctx context.Context, quizID string) domain.QuizAttemptState {
	unlock := g.locks.lock(quizID)
	defer unlock()
	state, _ := g.loadLocked(ctx, quizID)
	return state
}

// Check returns the current state together with a QuizLockedError while the lock is in
// effect. An expired lock is ignored but left in place.
func (g *AttemptGate) Check(ctx context.Context, quizID string) (domain.QuizAttemptState, error) {
	state := g.State(ctx, quizID)
	if state.Locked(g.now()) {
		return state, &domain.QuizLockedError{Until: *state.LockedUntil}
	}
	return state, nil
}

// Now is the clock lock expiry is evaluated against.
func (g *AttemptGate) Now() time.Time {
	return g.now()
}

// RecordCorrect clears the wrong-answer counter.
func (g *AttemptGate) RecordCorrect(ctx context.Context, quizID string) domain.QuizAttemptState {
	return g.update(ctx, quizID, func(s *domain.QuizAttemptState) {
		s.Failed = 0
	})
}

// ResetFailed is RecordCorrect under the name used when a run completes.
func (g *AttemptGate) ResetFailed(ctx context.Context, quizID string) domain.QuizAttemptState {
	return g.RecordCorrect(ctx, quizID)
}

// RecordWrong counts a wrong answer. Reaching the allowed total locks the quiz for the lock
// duration and resets both the counter and the bonus attempts. It reports whether it locked.
func (g *AttemptGate) RecordWrong(ctx context.Context, quizID string) (domain.QuizAttemptState, bool) {
	locked := false
	state := g.update(ctx, quizID, func(s *domain.QuizAttemptState) {
		s.Failed++
		if s.Failed >= s.Allowed() {
			until := g.now().Add(g.lockDuration)
			s.LockedUntil = &until
			s.Failed = 0
			s.Extra = 0
			locked = true
		}
	})
	if locked {
		metrics.QuizLocks.Inc()
		log.WithFields(log.Fields{"quiz": quizID, "until": state.LockedUntil}).Info("quiz locked")
	}
	return state, locked
}

// Purchase grants bonus attempts and lifts any lock. The wrong-answer counter is untouched.
func (g *AttemptGate) Purchase(ctx context.Context, quizID string) domain.QuizAttemptState {
	state := g.update(ctx, quizID, func(s *domain.QuizAttemptState) {
		s.Extra += g.bonus
		s.LockedUntil = nil
	})
	log.WithFields(log.Fields{"quiz": quizID, "extra": state.Extra}).Info("bonus attempts purchased")
	return state
}

func (g *AttemptGate) update(ctx context.Context, quizID string, mutate func(*domain.QuizAttemptState)) domain.QuizAttemptState {
	unlock := g.locks.lock(quizID)
	defer unlock()

	state, durable := g.loadLocked(ctx, quizID)
	mutate(&state)
	if durable {
		absorbWrite(g.records.save(ctx, attemptsKey(quizID), state), attemptsKey(quizID))
	}
	return state
}

func (g *AttemptGate) loadLocked(ctx context.Context, quizID string) (domain.QuizAttemptState, bool) {
	var state domain.QuizAttemptState
	switch g.records.loadOrDefault(ctx, attemptsKey(quizID), &state) {
	case recordFound:
		if state.BaseAttempts >= 0 && state.Extra >= 0 && state.Failed >= 0 {
			return state, true
		}
		return g.defaults(), true
	case recordMissing:
		return g.defaults(), true
	default:
		return g.defaults(), false
	}
}

func (g *AttemptGate) defaults() domain.QuizAttemptState {
	return domain.QuizAttemptState{BaseAttempts: g.baseAttempts}
}
