// Package transfer issues and stores the one-time codes that authorise a
// cross-chat balance transfer.
package transfer

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength = 8
)

// NewCode returns a random code of CodeLength uppercase alphanumerics.
func NewCode() (string, error) {
	out := make([]byte, CodeLength)
	max := big.NewInt(int64(len(codeChars)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate transfer code: %w", err)
		}
		out[i] = codeChars[n.Int64()]
	}
	return string(out), nil
}

// ValidCode reports whether s has the shape of a transfer code.
func ValidCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
