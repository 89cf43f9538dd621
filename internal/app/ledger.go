package app

import (
	"context"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"lichsu-rewards-service/internal/domain"
	"lichsu-rewards-service/internal/metrics"
)

const (
	DefaultWelcomeBonus = 1000
	welcomeDescription  = "Điểm thưởng chào mừng"
)

// PointsListener is notified after an operation changes a user's point total.
type PointsListener func(userID string, total int)

// LedgerConfig tunes a Ledger. Zero values fall back to defaults.
type LedgerConfig struct {
	WelcomeBonus int
	Now          func() time.Time
	OnChange     PointsListener
}

// Ledger owns per-user point balances and their transaction history.
type Ledger struct {
	records      records
	welcomeBonus int
	now          func() time.Time
	onChange     PointsListener
	locks        *keyedMutex
}

func NewLedger(store Store, cfg LedgerConfig) *Ledger {
	if cfg.WelcomeBonus <= 0 {
		cfg.WelcomeBonus = DefaultWelcomeBonus
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Ledger{
		records:      records{store: store},
		welcomeBonus: cfg.WelcomeBonus,
		now:          cfg.Now,
		onChange:     cfg.OnChange,
		locks:        newKeyedMutex(),
	}
}

// GetBalance returns the user's ledger, creating and persisting the welcome ledger on first read.
func (l *Ledger) GetBalance(ctx context.Context, userID string) domain.PointsLedger {
	unlock := l.locks.lock(userID)
	defer unlock()
	ledger, _ := l.loadLocked(ctx, userID)
	return ledger
}

// History returns up to limit of the newest transactions; limit <= 0 returns all of them.
func (l *Ledger) History(ctx context.Context, userID string, limit int) []domain.Transaction {
	history := l.GetBalance(ctx, userID).History
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history
}

// Earn credits amount points to the user.
func (l *Ledger) Earn(ctx context.Context, userID string, amount int, description string) (domain.PointsLedger, error) {
	if amount <= 0 {
		return domain.PointsLedger{}, domain.ErrInvalidAmount
	}
	unlock := l.locks.lock(userID)
	defer unlock()

	current, durable := l.loadLocked(ctx, userID)
	if amount > math.MaxInt-current.Total || amount > math.MaxInt-current.Earned {
		return current, domain.ErrPointsOverflow
	}
	updated := credit(current, l.newTransaction(domain.KindEarn, amount, description))
	l.commitLocked(ctx, userID, updated, durable)

	log.WithFields(log.Fields{"user": userID, "amount": amount, "total": updated.Total}).Info("points earned")
	return updated, nil
}

// Spend debits amount points. It fails without mutation when the balance is too low.
func (l *Ledger) Spend(ctx context.Context, userID string, amount int, description string) (domain.PointsLedger, error) {
	if amount <= 0 {
		return domain.PointsLedger{}, domain.ErrInvalidAmount
	}
	unlock := l.locks.lock(userID)
	defer unlock()

	current, durable := l.loadLocked(ctx, userID)
	if current.Total < amount {
		return current, &domain.InsufficientBalanceError{Required: amount, Available: current.Total}
	}
	updated := debit(current, l.newTransaction(domain.KindSpend, amount, description))
	l.commitLocked(ctx, userID, updated, durable)

	log.WithFields(log.Fields{"user": userID, "amount": amount, "total": updated.Total}).Info("points spent")
	return updated, nil
}

// loadLocked reads the ledger or initializes it. The boolean is false when the backend could not
// be read, in which case the result must not be written back over the real record.
func (l *Ledger) loadLocked(ctx context.Context, userID string) (domain.PointsLedger, bool) {
	var ledger domain.PointsLedger
	state := l.records.loadOrDefault(ctx, ledgerKey(userID), &ledger)
	if state == recordFound {
		if ledger.Consistent() {
			return ledger, true
		}
		metrics.StoreFailures.WithLabelValues("read_corrupt").Inc()
		log.WithField("user", userID).Warn("ledger violates balance invariant, reinitializing")
		state = recordMissing
	}

	ledger = l.welcomeLedger()
	if state == recordUnavailable {
		return ledger, false
	}
	absorbWrite(l.records.save(ctx, ledgerKey(userID), ledger), ledgerKey(userID))
	return ledger, true
}

func (l *Ledger) commitLocked(ctx context.Context, userID string, ledger domain.PointsLedger, durable bool) {
	if durable {
		absorbWrite(l.records.save(ctx, ledgerKey(userID), ledger), ledgerKey(userID))
	}
	l.notify(userID, ledger.Total)
}

func (l *Ledger) notify(userID string, total int) {
	if l.onChange != nil {
		l.onChange(userID, total)
	}
}

func (l *Ledger) welcomeLedger() domain.PointsLedger {
	return credit(domain.PointsLedger{}, l.newTransaction(domain.KindEarn, l.welcomeBonus, welcomeDescription))
}

func (l *Ledger) newTransaction(kind domain.TransactionKind, amount int, description string) domain.Transaction {
	metrics.PointsTransactions.WithLabelValues(string(kind)).Inc()
	return domain.Transaction{
		ID:          newID(),
		Kind:        kind,
		Amount:      amount,
		Description: description,
		CreatedAt:   l.now(),
	}
}

// credit and debit are pure: they return a new ledger with tx prepended.
func credit(ledger domain.PointsLedger, tx domain.Transaction) domain.PointsLedger {
	return domain.PointsLedger{
		Total:   ledger.Total + tx.Amount,
		Earned:  ledger.Earned + tx.Amount,
		Spent:   ledger.Spent,
		History: prepend(ledger.History, tx),
	}
}

func debit(ledger domain.PointsLedger, tx domain.Transaction) domain.PointsLedger {
	return domain.PointsLedger{
		Total:   ledger.Total - tx.Amount,
		Earned:  ledger.Earned,
		Spent:   ledger.Spent + tx.Amount,
		History: prepend(ledger.History, tx),
	}
}

func prepend[T any](items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, item)
	return append(out, items...)
}
