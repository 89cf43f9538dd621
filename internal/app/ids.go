package app

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const (
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength   = 8
)

// newID returns a time-ordered UUIDv7, falling back to a random UUID if the clock source fails.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// newVoucherCode returns prefix + "-" + 8 random base-36 characters (~41 bits of entropy).
func newVoucherCode(prefix string) (string, error) {
	buf := make([]byte, codeLength)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return prefix + "-" + string(buf), nil
}
