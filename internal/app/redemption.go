package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"lichsu-rewards-service/internal/domain"
	"lichsu-rewards-service/internal/metrics"
)

const DefaultVoucherValidity = 30 * 24 * time.Hour

// RedemptionConfig tunes the redemption engine. Zero values fall back to defaults.
type RedemptionConfig struct {
	Validity time.Duration
	// ProcessingDelay simulates the payment provider round trip before a redemption completes.
	ProcessingDelay time.Duration
	Now             func() time.Time
}

// VoucherView is a redeemed voucher decorated for display.
type VoucherView struct {
	domain.RedeemedVoucher
	Name    string `json:"name"`
	Expired bool   `json:"expired"`
}

// Redemptions exchanges ledger points for vouchers.
type Redemptions struct {
	ledger   *Ledger
	catalog  *Catalog
	records  records
	validity time.Duration
	delay    time.Duration
	now      func() time.Time
}

func NewRedemptions(store Store, ledger *Ledger, catalog *Catalog, cfg RedemptionConfig) *Redemptions {
	if cfg.Validity <= 0 {
		cfg.Validity = DefaultVoucherValidity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Redemptions{
		ledger:   ledger,
		catalog:  catalog,
		records:  records{store: store},
		validity: cfg.Validity,
		delay:    cfg.ProcessingDelay,
		now:      cfg.Now,
	}
}

// Redeem debits the template's cost and mints a voucher. It is all-or-nothing: on any error
// neither the ledger nor the voucher list changes.
func (r *Redemptions) Redeem(ctx context.Context, userID, templateID string) (domain.RedeemedVoucher, error) {
	tmpl, ok := r.catalog.Get(templateID)
	if !ok {
		metrics.Redemptions.WithLabelValues("unknown", "not_found").Inc()
		return domain.RedeemedVoucher{}, domain.ErrTemplateNotFound
	}
	if err := r.simulateProcessing(ctx); err != nil {
		return domain.RedeemedVoucher{}, err
	}

	unlock := r.ledger.locks.lock(userID)
	defer unlock()

	balance, ledgerDurable := r.ledger.loadLocked(ctx, userID)
	if balance.Total < tmpl.PointsCost {
		metrics.Redemptions.WithLabelValues(string(tmpl.Provider), "insufficient").Inc()
		return domain.RedeemedVoucher{}, &domain.InsufficientPointsError{Needed: tmpl.PointsCost, Have: balance.Total}
	}
	vouchers, vouchersDurable := r.loadVouchersLocked(ctx, userID)

	code, err := newVoucherCode(tmpl.Provider.CodePrefix())
	if err != nil {
		return domain.RedeemedVoucher{}, fmt.Errorf("generate voucher code: %w", err)
	}
	now := r.now()
	voucher := domain.RedeemedVoucher{
		ID:         newID(),
		TemplateID: tmpl.ID,
		Provider:   tmpl.Provider,
		Code:       code,
		FaceValue:  tmpl.FaceValue,
		RedeemedAt: now,
		ExpiresAt:  now.Add(r.validity),
	}

	// Both records are computed before either is written.
	updatedLedger := debit(balance, r.ledger.newTransaction(domain.KindSpend, tmpl.PointsCost, "Đổi "+tmpl.Name))
	updatedVouchers := prepend(vouchers, voucher)

	if ledgerDurable && vouchersDurable {
		absorbWrite(r.records.saveMulti(ctx, map[string]any{
			ledgerKey(userID):   updatedLedger,
			vouchersKey(userID): updatedVouchers,
		}), ledgerKey(userID)+","+vouchersKey(userID))
	}
	r.ledger.notify(userID, updatedLedger.Total)

	metrics.Redemptions.WithLabelValues(string(tmpl.Provider), "success").Inc()
	log.WithFields(log.Fields{
		"user":     userID,
		"template": tmpl.ID,
		"cost":     tmpl.PointsCost,
		"total":    updatedLedger.Total,
	}).Info("voucher redeemed")
	return voucher, nil
}

// Vouchers lists the user's vouchers, newest first.
func (r *Redemptions) Vouchers(ctx context.Context, userID string) []VoucherView {
	unlock := r.ledger.locks.lock(userID)
	vouchers, _ := r.loadVouchersLocked(ctx, userID)
	unlock()

	now := r.now()
	views := make([]VoucherView, 0, len(vouchers))
	for _, v := range vouchers {
		views = append(views, VoucherView{
			RedeemedVoucher: v,
			Name:            r.displayName(v),
			Expired:         v.Expired(now),
		})
	}
	return views
}

// MarkUsed flips a voucher to used. Marking an already used voucher is a no-op.
func (r *Redemptions) MarkUsed(ctx context.Context, userID, voucherID string) (domain.RedeemedVoucher, error) {
	unlock := r.ledger.locks.lock(userID)
	defer unlock()

	vouchers, durable := r.loadVouchersLocked(ctx, userID)
	for i := range vouchers {
		if vouchers[i].ID != voucherID {
			continue
		}
		if vouchers[i].Used {
			return vouchers[i], nil
		}
		updated := append([]domain.RedeemedVoucher(nil), vouchers...)
		updated[i].Used = true
		if durable {
			absorbWrite(r.records.save(ctx, vouchersKey(userID), updated), vouchersKey(userID))
		}
		return updated[i], nil
	}
	return domain.RedeemedVoucher{}, domain.ErrVoucherNotFound
}

func (r *Redemptions) loadVouchersLocked(ctx context.Context, userID string) ([]domain.RedeemedVoucher, bool) {
	var vouchers []domain.RedeemedVoucher
	switch r.records.loadOrDefault(ctx, vouchersKey(userID), &vouchers) {
	case recordFound:
		return vouchers, true
	case recordMissing:
		return nil, true
	default:
		return nil, false
	}
}

// displayName falls back to provider and face value when the template left the catalog.
func (r *Redemptions) displayName(v domain.RedeemedVoucher) string {
	if tmpl, ok := r.catalog.Get(v.TemplateID); ok {
		return tmpl.Name
	}
	provider := strings.ToUpper(string(v.Provider))
	if v.Provider == domain.ProviderMomo {
		provider = "Momo"
	} else if v.Provider == domain.ProviderVNPay {
		provider = "VNPay"
	}
	return fmt.Sprintf("Voucher %s %s", provider, domain.FormatVND(v.FaceValue))
}

func (r *Redemptions) simulateProcessing(ctx context.Context) error {
	if r.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
