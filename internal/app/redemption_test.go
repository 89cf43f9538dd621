package app_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lichsu-rewards-service/internal/app"
	"lichsu-rewards-service/internal/domain"
	"lichsu-rewards-service/internal/infra/memory"
)

type redemptionFixture struct {
	store       app.Store
	clock       *fakeClock
	ledger      *app.Ledger
	redemptions *app.Redemptions
}

func newRedemptionFixture(t *testing.T, store app.Store) redemptionFixture {
	t.Helper()
	clock := newFakeClock()
	ledger := app.NewLedger(store, app.LedgerConfig{Now: clock.Now})
	return redemptionFixture{
		store:       store,
		clock:       clock,
		ledger:      ledger,
		redemptions: app.NewRedemptions(store, ledger, app.DefaultCatalog(), app.RedemptionConfig{Now: clock.Now}),
	}
}

func TestRedeemDebitsAndMintsVoucher(t *testing.T) {
	ctx := context.Background()
	f := newRedemptionFixture(t, memory.NewStore())

	voucher, err := f.redemptions.Redeem(ctx, "u1", "momo-10k")
	require.NoError(t, err)
	require.Equal(t, domain.ProviderMomo, voucher.Provider)
	require.Equal(t, 10000, voucher.FaceValue)
	require.False(t, voucher.Used)
	require.True(t, strings.HasPrefix(voucher.Code, "MOMO-"))
	require.Len(t, voucher.Code, len("MOMO-")+8)
	require.Equal(t, 30*24*time.Hour, voucher.ExpiresAt.Sub(voucher.RedeemedAt))

	balance := f.ledger.GetBalance(ctx, "u1")
	require.Equal(t, 900, balance.Total)
	require.Equal(t, 1000, balance.Earned)
	require.Equal(t, 100, balance.Spent)
	require.Equal(t, domain.KindSpend, balance.History[0].Kind)
	require.Equal(t, "Đổi Voucher Momo 10.000đ", balance.History[0].Description)

	views := f.redemptions.Vouchers(ctx, "u1")
	require.Len(t, views, 1)
	require.Equal(t, voucher.ID, views[0].ID)
	require.Equal(t, "Voucher Momo 10.000đ", views[0].Name)
	require.False(t, views[0].Expired)
}

func TestRedeemInsufficientPointsChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newRedemptionFixture(t, memory.NewStore())
	_, err := f.ledger.Spend(ctx, "u1", 950, "chi")
	require.NoError(t, err)

	_, err = f.redemptions.Redeem(ctx, "u1", "momo-10k")
	var insufficient *domain.InsufficientPointsError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, 100, insufficient.Needed)
	require.Equal(t, 50, insufficient.Have)
	require.Equal(t, "Không đủ điểm! Cần 100 điểm, bạn có 50 điểm.", err.Error())

	require.Equal(t, 50, f.ledger.GetBalance(ctx, "u1").Total)
	require.Empty(t, f.redemptions.Vouchers(ctx, "u1"))
}

func TestRedeemExactBalance(t *testing.T) {
	ctx := context.Background()
	f := newRedemptionFixture(t, memory.NewStore())
	_, err := f.ledger.Spend(ctx, "u1", 250, "chi")
	require.NoError(t, err)

	voucher, err := f.redemptions.Redeem(ctx, "u1", "vnpay-100k")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(voucher.Code, "VNPAY-"))
	require.Equal(t, 0, f.ledger.GetBalance(ctx, "u1").Total)
}

func TestRedeemUnknownTemplate(t *testing.T) {
	ctx := context.Background()
	f := newRedemptionFixture(t, memory.NewStore())

	_, err := f.redemptions.Redeem(ctx, "u1", "zalopay-10k")
	require.ErrorIs(t, err, domain.ErrTemplateNotFound)
	require.Equal(t, "Voucher không tồn tại", err.Error())

	_, err = f.store.Get(ctx, "redeemed_vouchers_u1")
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestRedeemWritesBothRecordsTogether(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	f := newRedemptionFixture(t, store)
	f.ledger.GetBalance(ctx, "u1")

	store.setFailWrites(true)
	_, err := f.redemptions.Redeem(ctx, "u1", "momo-50k")
	require.NoError(t, err, "write failures are absorbed")
	store.setFailWrites(false)

	require.Equal(t, 1000, f.ledger.GetBalance(ctx, "u1").Total)
	require.Empty(t, f.redemptions.Vouchers(ctx, "u1"), "neither record may be written alone")

	_, err = f.redemptions.Redeem(ctx, "u1", "momo-50k")
	require.NoError(t, err)
	require.Equal(t, 600, f.ledger.GetBalance(ctx, "u1").Total)
	require.Len(t, f.redemptions.Vouchers(ctx, "u1"), 1)
}

func TestRedeemHonoursCancellationDuringProcessing(t *testing.T) {
	store := memory.NewStore()
	ledger := app.NewLedger(store, app.LedgerConfig{})
	redemptions := app.NewRedemptions(store, ledger, app.DefaultCatalog(), app.RedemptionConfig{ProcessingDelay: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := redemptions.Redeem(ctx, "u1", "momo-10k")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1000, ledger.GetBalance(context.Background(), "u1").Total)
}

func TestVoucherCodesAreUnique(t *testing.T) {
	ctx := context.Background()
	f := newRedemptionFixture(t, memory.NewStore())

	seen := make(map[string]struct{})
	var last domain.RedeemedVoucher
	for i := 0; i < 9; i++ {
		v, err := f.redemptions.Redeem(ctx, "u1", "momo-10k")
		require.NoError(t, err)
		_, dup := seen[v.Code]
		require.False(t, dup, "duplicate code %s", v.Code)
		seen[v.Code] = struct{}{}
		last = v
	}
	require.Equal(t, last.ID, f.redemptions.Vouchers(ctx, "u1")[0].ID, "newest first")
	require.Len(t, f.redemptions.Vouchers(ctx, "u1"), 9)
	require.Equal(t, 100, f.ledger.GetBalance(ctx, "u1").Total)
}

func TestMarkUsedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newRedemptionFixture(t, memory.NewStore())
	voucher, err := f.redemptions.Redeem(ctx, "u1", "vnpay-20k")
	require.NoError(t, err)

	used, err := f.redemptions.MarkUsed(ctx, "u1", voucher.ID)
	require.NoError(t, err)
	require.True(t, used.Used)

	again, err := f.redemptions.MarkUsed(ctx, "u1", voucher.ID)
	require.NoError(t, err)
	require.True(t, again.Used)
	require.True(t, f.redemptions.Vouchers(ctx, "u1")[0].Used)

	_, err = f.redemptions.MarkUsed(ctx, "u1", "nope")
	require.ErrorIs(t, err, domain.ErrVoucherNotFound)
}

func TestVoucherViewsForRetiredTemplatesAndExpiry(t *testing.T) {
	ctx := context.Background()
	f := newRedemptionFixture(t, memory.NewStore())

	now := f.clock.Now()
	retired := []domain.RedeemedVoucher{{
		ID:         "v-old",
		TemplateID: "momo-5k",
		Provider:   domain.ProviderMomo,
		Code:       "MOMO-AAAAAAAA",
		FaceValue:  5000,
		RedeemedAt: now.Add(-40 * 24 * time.Hour),
		ExpiresAt:  now.Add(-10 * 24 * time.Hour),
	}}
	raw, err := json.Marshal(retired)
	require.NoError(t, err)
	require.NoError(t, f.store.Set(ctx, "redeemed_vouchers_u1", raw))

	views := f.redemptions.Vouchers(ctx, "u1")
	require.Len(t, views, 1)
	require.Equal(t, "Voucher Momo 5.000đ", views[0].Name)
	require.True(t, views[0].Expired)
}

func TestCatalogByProvider(t *testing.T) {
	catalog := app.DefaultCatalog()

	require.Len(t, catalog.All(), 6)
	require.Len(t, catalog.ByProvider(""), 6)
	require.Len(t, catalog.ByProvider("all"), 6)

	momo := catalog.ByProvider(domain.ProviderMomo)
	require.Len(t, momo, 3)
	for _, tmpl := range momo {
		require.Equal(t, domain.ProviderMomo, tmpl.Provider)
		require.Positive(t, tmpl.PointsCost)
	}

	tmpl, ok := catalog.Get("vnpay-100k")
	require.True(t, ok)
	require.Equal(t, 750, tmpl.PointsCost)
	require.Equal(t, 100000, tmpl.FaceValue)
}
