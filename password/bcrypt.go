package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const minPassBytes = 8

// Config tunes the bcrypt cost factor. Cost is a correctness-critical
// security property: the comparison must stay slow and salted.
type Config struct {
	Cost int
}

// Bcrypt hashes and verifies password credentials. Immutable after
// construction and safe for concurrent use.
type Bcrypt struct {
	cost int
}

// NewBcrypt validates the cost factor and returns a hasher.
func NewBcrypt(cfg Config) (*Bcrypt, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}

	return &Bcrypt{cost: cost}, nil
}

// Hash derives a salted hash from the password. The salt is generated by
// bcrypt itself and embedded in the output.
func (b *Bcrypt) Hash(password string) (string, error) {
	// Password processing uses raw string bytes exactly as provided (no
	// Unicode normalization).
	if len(password) < minPassBytes {
		return "", errors.New("password must be at least 8 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Verify compares a presented password against a stored hash. A mismatch is
// (false, nil); an error means the stored hash itself is unusable.
func (b *Bcrypt) Verify(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return false, err
}

// NeedsUpgrade reports whether the stored hash was produced with a lower
// cost than currently configured.
func (b *Bcrypt) NeedsUpgrade(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, err
	}

	return cost < b.cost, nil
}
