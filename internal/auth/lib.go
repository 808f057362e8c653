package auth

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrEmptyPassword = errors.New("empty password")

func RandomString(n int) (string, error) {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b), nil
}

// Hasher salts and verifies passwords with bcrypt at a fixed cost.
type Hasher struct {
	cost      int
	dummyHash string
}

func NewHasher(cost int) (*Hasher, error) {
	const op = "auth.NewHasher"

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%s: bcrypt cost %d out of range", op, cost)
	}

	h := &Hasher{cost: cost}

	secret, err := RandomString(32)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	h.dummyHash, err = h.HashPassword(secret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return h, nil
}

func (h *Hasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	return string(bytes), err
}

func (h *Hasher) CheckPasswordHash(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckMissing burns one bcrypt comparison against a throwaway hash. Login
// calls it when no user matched so both paths take the same time.
func (h *Hasher) CheckMissing(password string) bool {
	h.CheckPasswordHash(h.dummyHash, password)
	return false
}
