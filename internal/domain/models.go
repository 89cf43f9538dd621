package domain

import "time"

// TransactionKind distinguishes credits from debits in a points ledger.
type TransactionKind string

const (
	KindEarn  TransactionKind = "earn"
	KindSpend TransactionKind = "spend"
)

// Transaction is one immutable ledger entry. Amount is always positive; Kind carries the sign.
type Transaction struct {
	ID          string          `json:"id"`
	Kind        TransactionKind `json:"kind"`
	Amount      int             `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// PointsLedger is a user's balance plus its history, newest first.
// Total must always equal Earned - Spent and never go negative.
type PointsLedger struct {
	Total   int           `json:"total"`
	Earned  int           `json:"earned"`
	Spent   int           `json:"spent"`
	History []Transaction `json:"history"`
}

// Consistent reports whether the ledger satisfies its balance invariants.
func (l PointsLedger) Consistent() bool {
	return l.Total >= 0 && l.Earned >= 0 && l.Spent >= 0 && l.Total == l.Earned-l.Spent
}

// Provider identifies the wallet a voucher is issued for.
type Provider string

const (
	ProviderMomo  Provider = "momo"
	ProviderVNPay Provider = "vnpay"
)

// CodePrefix is the uppercase prefix used for generated voucher codes.
func (p Provider) CodePrefix() string {
	switch p {
	case ProviderMomo:
		return "MOMO"
	case ProviderVNPay:
		return "VNPAY"
	default:
		return "VOUCHER"
	}
}

// VoucherTemplate is a catalog entry that can be redeemed for points.
type VoucherTemplate struct {
	ID          string   `json:"id"`
	Provider    Provider `json:"provider"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	FaceValue   int      `json:"faceValue"`
	PointsCost  int      `json:"pointsCost"`
	ImageRef    string   `json:"imageRef"`
}

// RedeemedVoucher is a voucher minted for a user by a successful redemption.
type RedeemedVoucher struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"templateId"`
	Provider   Provider  `json:"provider"`
	Code       string    `json:"code"`
	FaceValue  int       `json:"faceValue"`
	RedeemedAt time.Time `json:"redeemedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Used       bool      `json:"used"`
}

// Expired reports whether the voucher is past its expiry at now.
func (v RedeemedVoucher) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

// QuizAttemptState is the persisted attempt budget of one quiz.
type QuizAttemptState struct {
	BaseAttempts int        `json:"baseAttempts"`
	Extra        int        `json:"extra"`
	Failed       int        `json:"failed"`
	LockedUntil  *time.Time `json:"lockedUntil"`
}

// Allowed is the total number of wrong answers tolerated before a lock.
func (s QuizAttemptState) Allowed() int {
	return s.BaseAttempts + s.Extra
}

// Remaining is how many wrong answers may still be given in this cycle.
func (s QuizAttemptState) Remaining() int {
	if r := s.Allowed() - s.Failed; r > 0 {
		return r
	}
	return 0
}

// Locked reports whether the lock is still in effect at now.
func (s QuizAttemptState) Locked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// Question models a multiple choice question with one correct option index.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Correct int      `json:"correct"`
}

// Quiz is an ordered collection of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Validate checks that every question has options and a correct index within range.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return ErrInvalidQuiz
	}
	for _, question := range q.Questions {
		if len(question.Options) == 0 || question.Correct < 0 || question.Correct >= len(question.Options) {
			return ErrInvalidQuiz
		}
	}
	return nil
}
