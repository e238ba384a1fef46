package auth

import "golang.org/x/crypto/bcrypt"

// Hasher wraps bcrypt with a configurable cost. Each call salts the hash
// itself, so equal passwords never produce equal outputs.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), h.cost)
}

// Verify reports whether password matches hashed. A corrupt or truncated
// hash counts as a non-match; Verify never returns an error to the caller.
func (h *Hasher) Verify(password string, hashed []byte) bool {
	return bcrypt.CompareHashAndPassword(hashed, []byte(password)) == nil
}
