// Package password hashes and verifies account passwords with bcrypt.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is used when a Hasher is built with a zero cost.
const DefaultCost = 12

// ErrTooLong is returned for plaintexts bcrypt would silently truncate.
var ErrTooLong = errors.New("password longer than 72 bytes")

// Hasher is the bcrypt credential hasher. The zero value uses DefaultCost.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given work factor, clamped to bcrypt's range.
func NewHasher(cost int) Hasher {
	switch {
	case cost == 0:
		cost = DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return Hasher{Cost: cost}
}

func (h Hasher) cost() int {
	if h.Cost == 0 {
		return DefaultCost
	}
	return h.Cost
}

// Hash returns a salted bcrypt hash of pw. Two calls with the same input
// never return the same hash.
func (h Hasher) Hash(pw string) (string, error) {
	if len(pw) > 72 {
		return "", ErrTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), h.cost())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether pw matches hash. A malformed hash is a mismatch.
func (h Hasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
