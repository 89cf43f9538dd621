package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTemplateNotFound is returned when a redemption references an unknown catalog entry.
	ErrTemplateNotFound = errors.New("Voucher không tồn tại")
	// ErrVoucherNotFound is returned when a user does not own the referenced voucher.
	ErrVoucherNotFound = errors.New("Không tìm thấy voucher")
	// ErrInvalidAmount is returned for zero or negative point amounts.
	ErrInvalidAmount = errors.New("Số điểm phải lớn hơn 0")
	// ErrPointsOverflow is returned when a credit would push a total past the integer range.
	ErrPointsOverflow = errors.New("Số điểm vượt quá giới hạn cho phép")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("Không tìm thấy quiz")
	// ErrInvalidQuiz indicates quiz content without questions or with a bad correct index.
	ErrInvalidQuiz = errors.New("Nội dung quiz không hợp lệ")
	// ErrRunFinished is returned when answering a quiz run that already completed.
	ErrRunFinished = errors.New("Quiz đã kết thúc")
	// ErrOptionOutOfRange indicates the submitted option index does not exist.
	ErrOptionOutOfRange = errors.New("Lựa chọn không hợp lệ")
)

// Store level failures. They never leave the record layer.
var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrStoreReadCorrupt = errors.New("stored record is corrupt")
	ErrStoreWriteFailed = errors.New("store write failed")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// InsufficientPointsError reports a redemption the user cannot afford.
type InsufficientPointsError struct {
	Needed int
	Have   int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("Không đủ điểm! Cần %s, bạn có %s.", FormatPoints(e.Needed), FormatPoints(e.Have))
}

// InsufficientBalanceError reports a ledger debit larger than the balance.
type InsufficientBalanceError struct {
	Required  int
	Available int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Số dư không đủ: cần %d điểm, hiện có %d điểm", e.Required, e.Available)
}

// QuizLockedError is returned for submissions made while the attempt gate is locked.
type QuizLockedError struct {
	Until time.Time
}

func (e *QuizLockedError) Error() string {
	return fmt.Sprintf("Bạn đã hết lượt trả lời. Vui lòng quay lại sau %s.", FormatClock(e.Until))
}
