package account

import (
	"crypto/rand"
	"math/big"
	"strings"
	"unicode"
)

const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GeneratePassword returns the account's last name (whitespace removed) followed by n random
// alphanumeric characters.
func GeneratePassword(lastName string, n int) (string, error) {
	var b strings.Builder
	for _, r := range lastName {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(passwordAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
