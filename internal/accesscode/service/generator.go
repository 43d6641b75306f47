package service

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/smallbiznis/homeaccess/internal/accesscode/domain"
)

type randomGenerator struct{}

// NewRandomGenerator draws codes from crypto/rand.
func NewRandomGenerator() domain.CodeGenerator {
	return randomGenerator{}
}

func (randomGenerator) Generate(alphabet string, length int) (string, error) {
	if alphabet == "" || length <= 0 {
		return "", errors.New("code alphabet and length are required")
	}
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}
