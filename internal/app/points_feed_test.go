package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"lichsu-rewards-service/internal/app"
	"lichsu-rewards-service/internal/infra/memory"
)

func TestPointsFeedDeliversLedgerChanges(t *testing.T) {
	ctx := context.Background()
	feed := app.NewPointsFeed()
	ledger := app.NewLedger(memory.NewStore(), app.LedgerConfig{OnChange: feed.Publish})
	ledger.GetBalance(ctx, "u1")

	updates, cancel := feed.Subscribe("u1")
	defer cancel()
	other, cancelOther := feed.Subscribe("u2")
	defer cancelOther()

	_, err := ledger.Earn(ctx, "u1", 15, "quiz")
	require.NoError(t, err)

	update := <-updates
	require.Equal(t, app.PointsUpdate{UserID: "u1", Total: 1015}, update)
	require.Empty(t, other)
}

func TestPointsFeedKeepsLatestForSlowReaders(t *testing.T) {
	feed := app.NewPointsFeed()
	updates, cancel := feed.Subscribe("u1")
	defer cancel()

	for total := 1; total <= 10; total++ {
		feed.Publish("u1", total)
	}

	var last app.PointsUpdate
	for len(updates) > 0 {
		last = <-updates
	}
	require.Equal(t, 10, last.Total)
}

func TestPointsFeedCancelClosesChannel(t *testing.T) {
	feed := app.NewPointsFeed()
	updates, cancel := feed.Subscribe("u1")

	cancel()
	cancel()
	_, ok := <-updates
	require.False(t, ok)

	feed.Publish("u1", 5)
}
