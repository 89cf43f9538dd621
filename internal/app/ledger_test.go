package app_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"lichsu-rewards-service/internal/app"
	"lichsu-rewards-service/internal/domain"
	"lichsu-rewards-service/internal/infra/memory"
)

func TestGetBalanceInitializesWelcomeLedger(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ledger := app.NewLedger(store, app.LedgerConfig{})

	balance := ledger.GetBalance(ctx, "u1")
	require.Equal(t, 1000, balance.Total)
	require.Equal(t, 1000, balance.Earned)
	require.Equal(t, 0, balance.Spent)
	require.Len(t, balance.History, 1)
	require.Equal(t, domain.KindEarn, balance.History[0].Kind)

	raw, err := store.Get(ctx, "user_points_u1")
	require.NoError(t, err, "welcome ledger must be persisted on first read")
	require.Contains(t, string(raw), `"total":1000`)

	again := ledger.GetBalance(ctx, "u1")
	require.Equal(t, balance.History[0].ID, again.History[0].ID)
}

func TestEarnAndSpendKeepInvariant(t *testing.T) {
	ctx := context.Background()
	ledger := app.NewLedger(memory.NewStore(), app.LedgerConfig{Now: newFakeClock().Now})
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		before := ledger.GetBalance(ctx, "u1")
		amount := rnd.Intn(400) + 1
		if rnd.Intn(2) == 0 {
			after, err := ledger.Earn(ctx, "u1", amount, "thưởng")
			require.NoError(t, err)
			require.Equal(t, before.Total+amount, after.Total)
			require.True(t, after.Consistent())
			continue
		}

		after, err := ledger.Spend(ctx, "u1", amount, "chi")
		if amount > before.Total {
			var insufficient *domain.InsufficientBalanceError
			require.ErrorAs(t, err, &insufficient)
			require.Equal(t, amount, insufficient.Required)
			require.Equal(t, before.Total, insufficient.Available)
			require.Equal(t, before, ledger.GetBalance(ctx, "u1"), "failed spend must not mutate")
			continue
		}
		require.NoError(t, err)
		require.Equal(t, before.Total-amount, after.Total)
		require.GreaterOrEqual(t, after.Total, 0)
		require.True(t, after.Consistent())
		require.Len(t, after.History, len(before.History)+1)
		require.Equal(t, domain.KindSpend, after.History[0].Kind)
	}
}

func TestEarnRejectsNonPositiveAmounts(t *testing.T) {
	ledger := app.NewLedger(memory.NewStore(), app.LedgerConfig{})

	_, err := ledger.Earn(context.Background(), "u1", 0, "x")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = ledger.Spend(context.Background(), "u1", -5, "x")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestEarnRejectsOverflowingAmount(t *testing.T) {
	ctx := context.Background()
	var totals []int
	ledger := app.NewLedger(memory.NewStore(), app.LedgerConfig{
		Now:      newFakeClock().Now,
		OnChange: func(_ string, total int) { totals = append(totals, total) },
	})
	before, err := ledger.Earn(ctx, "u1", 25, "Đọc bài viết")
	require.NoError(t, err)

	_, err = ledger.Earn(ctx, "u1", math.MaxInt, "tràn số")
	require.ErrorIs(t, err, domain.ErrPointsOverflow)
	_, err = ledger.Earn(ctx, "u1", math.MaxInt-before.Total+1, "tràn số")
	require.ErrorIs(t, err, domain.ErrPointsOverflow)

	after := ledger.GetBalance(ctx, "u1")
	require.Equal(t, before, after, "rejected credit must leave the ledger intact")
	require.Equal(t, 1025, after.Total)
	require.Len(t, after.History, 2)
	require.Equal(t, []int{1025}, totals)

	// The largest credit that still fits is accepted.
	maxed, err := ledger.Earn(ctx, "u1", math.MaxInt-before.Earned, "tối đa")
	require.NoError(t, err)
	require.Equal(t, math.MaxInt, maxed.Earned)
	require.True(t, maxed.Consistent())
}

func TestCorruptLedgerIsReinitialized(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Set(ctx, "user_points_u1", []byte(`{not json`)))
	require.NoError(t, store.Set(ctx, "user_points_u2", []byte(`{"total":5000,"earned":10,"spent":0}`)))
	ledger := app.NewLedger(store, app.LedgerConfig{})

	require.Equal(t, 1000, ledger.GetBalance(ctx, "u1").Total)
	require.Equal(t, 1000, ledger.GetBalance(ctx, "u2").Total)
}

func TestWriteFailuresAreAbsorbed(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	ledger := app.NewLedger(store, app.LedgerConfig{})
	ledger.GetBalance(ctx, "u1")

	store.setFailWrites(true)
	updated, err := ledger.Earn(ctx, "u1", 50, "quiz")
	require.NoError(t, err)
	require.Equal(t, 1050, updated.Total)

	store.setFailWrites(false)
	require.Equal(t, 1000, ledger.GetBalance(ctx, "u1").Total, "unpersisted change does not survive a reload")
}

func TestUnavailableStoreIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	ledger := app.NewLedger(store, app.LedgerConfig{})
	_, err := ledger.Spend(ctx, "u1", 400, "chi")
	require.NoError(t, err)

	store.setFailReads(true)
	served := ledger.GetBalance(ctx, "u1")
	require.Equal(t, 1000, served.Total)

	store.setFailReads(false)
	require.Equal(t, 600, ledger.GetBalance(ctx, "u1").Total)
}

func TestPointsListenerSeesEveryChange(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var totals []int
	ledger := app.NewLedger(memory.NewStore(), app.LedgerConfig{
		OnChange: func(userID string, total int) {
			mu.Lock()
			totals = append(totals, total)
			mu.Unlock()
		},
	})

	ledger.GetBalance(ctx, "u1")
	_, _ = ledger.Earn(ctx, "u1", 20, "a")
	_, _ = ledger.Spend(ctx, "u1", 120, "b")
	_, err := ledger.Spend(ctx, "u1", 5000, "c")
	require.True(t, errors.As(err, new(*domain.InsufficientBalanceError)))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1020, 900}, totals)
}

func TestHistoryNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	ledger := app.NewLedger(memory.NewStore(), app.LedgerConfig{})
	_, _ = ledger.Earn(ctx, "u1", 1, "một")
	_, _ = ledger.Earn(ctx, "u1", 2, "hai")

	history := ledger.History(ctx, "u1", 2)
	require.Len(t, history, 2)
	require.Equal(t, "hai", history[0].Description)
	require.Equal(t, "một", history[1].Description)
	require.Len(t, ledger.History(ctx, "u1", 0), 3)
}
