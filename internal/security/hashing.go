package security

import "golang.org/x/crypto/bcrypt"

// Hasher hashes and verifies passwords with bcrypt. The plaintext never
// leaves this package's callers; only the hash is stored.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to the
// valid 4 to 31 range. A non-positive cost falls back to the bcrypt default.
func NewHasher(cost int) *Hasher {
	switch {
	case cost <= 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Cost returns the effective bcrypt cost.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns the bcrypt hash of password, suitable for storage.
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies password against the stored hash in constant time.
// Returns nil on match, bcrypt.ErrMismatchedHashAndPassword otherwise.
func (h *Hasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
