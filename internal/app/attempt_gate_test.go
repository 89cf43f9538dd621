package app_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lichsu-rewards-service/internal/app"
	"lichsu-rewards-service/internal/domain"
	"lichsu-rewards-service/internal/infra/memory"
)

func TestGateLocksAfterBaseAttempts(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := memory.NewStore()
	gate := app.NewAttemptGate(store, app.GateConfig{Now: clock.Now})

	state, locked := gate.RecordWrong(ctx, "demo-1")
	require.False(t, locked)
	require.Equal(t, 1, state.Failed)
	require.Equal(t, 1, state.Remaining())

	state, locked = gate.RecordWrong(ctx, "demo-1")
	require.True(t, locked)
	require.Equal(t, 0, state.Failed)
	require.Equal(t, 0, state.Extra)
	require.NotNil(t, state.LockedUntil)
	require.Equal(t, clock.Now().Add(12*time.Hour), *state.LockedUntil)

	checked, err := gate.Check(ctx, "demo-1")
	var lockedErr *domain.QuizLockedError
	require.ErrorAs(t, err, &lockedErr)
	require.Equal(t, *state.LockedUntil, lockedErr.Until)
	require.True(t, checked.LockedUntil.Equal(*state.LockedUntil))

	_, err = store.Get(ctx, "quiz_demo_v1_demo-1")
	require.NoError(t, err)
}

func TestGatePurchaseLiftsLock(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	gate := app.NewAttemptGate(memory.NewStore(), app.GateConfig{Now: clock.Now})
	gate.RecordWrong(ctx, "demo-1")
	gate.RecordWrong(ctx, "demo-1")

	state := gate.Purchase(ctx, "demo-1")
	require.Equal(t, 10, state.Extra)
	require.Nil(t, state.LockedUntil)
	_, err := gate.Check(ctx, "demo-1")
	require.NoError(t, err)

	state, locked := gate.RecordWrong(ctx, "demo-1")
	require.False(t, locked)
	require.Equal(t, 1, state.Failed)
	require.Equal(t, 11, state.Remaining())
}

func TestGatePurchaseKeepsFailedCount(t *testing.T) {
	ctx := context.Background()
	gate := app.NewAttemptGate(memory.NewStore(), app.GateConfig{})
	gate.RecordWrong(ctx, "demo-1")

	state := gate.Purchase(ctx, "demo-1")
	require.Equal(t, 1, state.Failed)
	state = gate.Purchase(ctx, "demo-1")
	require.Equal(t, 20, state.Extra)
	require.Equal(t, 21, state.Remaining())

	state = gate.RecordCorrect(ctx, "demo-1")
	require.Equal(t, 0, state.Failed)
	require.Equal(t, 20, state.Extra)
}

func TestGateExpiredLockIsIgnored(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	gate := app.NewAttemptGate(memory.NewStore(), app.GateConfig{Now: clock.Now})
	gate.RecordWrong(ctx, "demo-1")
	gate.RecordWrong(ctx, "demo-1")

	clock.Advance(12*time.Hour + time.Second)
	state, err := gate.Check(ctx, "demo-1")
	require.NoError(t, err)
	require.NotNil(t, state.LockedUntil, "expired lock stays recorded")
	require.Equal(t, clock.Now(), gate.Now())
}

func TestGateStateDefaultsWithoutPersisting(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gate := app.NewAttemptGate(store, app.GateConfig{})

	state := gate.State(ctx, "demo-2")
	require.Equal(t, domain.QuizAttemptState{BaseAttempts: 2}, state)
	_, err := store.Get(ctx, "quiz_demo_v1_demo-2")
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestGateCorruptStateFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Set(ctx, "quiz_demo_v1_demo-1", []byte(`"locked"`)))
	gate := app.NewAttemptGate(store, app.GateConfig{})

	require.Equal(t, 2, gate.State(ctx, "demo-1").Remaining())
	state, locked := gate.RecordWrong(ctx, "demo-1")
	require.False(t, locked)
	require.Equal(t, 1, state.Failed)
}

func TestGateFailedNeverReachesAllowed(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	gate := app.NewAttemptGate(memory.NewStore(), app.GateConfig{Now: clock.Now})
	rnd := rand.New(rand.NewSource(7))

	for i := 0; i < 300; i++ {
		var state domain.QuizAttemptState
		switch rnd.Intn(4) {
		case 0:
			state = gate.RecordCorrect(ctx, "demo-1")
		case 1:
			state = gate.Purchase(ctx, "demo-1")
		default:
			state, _ = gate.RecordWrong(ctx, "demo-1")
		}
		require.GreaterOrEqual(t, state.Failed, 0)
		require.Less(t, state.Failed, state.Allowed())
		require.GreaterOrEqual(t, state.Extra, 0)
	}
}
