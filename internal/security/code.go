package security

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// GenerateNumericCode returns a uniformly random decimal code of exactly
// length digits, leading zeros included. Lengths above 18 would overflow int64.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 || length > 18 {
		return "", fmt.Errorf("code length %d out of range", length)
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

func CodesEqual(expected, supplied string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}
