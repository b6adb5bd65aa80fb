package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, encoded string) (bool, error)
}

// Hasher writes new hashes with one scheme and verifies both argon2id and
// bcrypt encodings, so accounts imported with bcrypt keep working.
type Hasher struct {
	scheme     string
	params     *argon2id.Params
	bcryptCost int
}

func NewHasher(scheme string, bcryptCost int) (*Hasher, error) {
	switch scheme {
	case "argon2id", "bcrypt":
	default:
		return nil, fmt.Errorf("unknown password hash scheme %q", scheme)
	}
	if bcryptCost < 12 {
		return nil, fmt.Errorf("bcrypt cost %d below minimum 12", bcryptCost)
	}
	return &Hasher{scheme: scheme, params: argon2id.DefaultParams, bcryptCost: bcryptCost}, nil
}

func (h *Hasher) Hash(password string) (string, error) {
	if h.scheme == "bcrypt" {
		b, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("bcrypt hash: %w", err)
		}
		return string(b), nil
	}
	hash, err := argon2id.CreateHash(password, h.params)
	if err != nil {
		return "", fmt.Errorf("argon2id hash: %w", err)
	}
	return hash, nil
}

func (h *Hasher) Compare(password, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return argon2id.ComparePasswordAndHash(password, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	default:
		return false, errors.New("unrecognized password hash format")
	}
}
