package users

import (
	"errors"
	"strings"
	"time"

	"github.com/fieme-one/Teleserver/internal/telegram"
)

// DefaultMaxFieldLength bounds stored name and username values.
const DefaultMaxFieldLength = 100

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// NormalizerConfig describes how claim sets are turned into user records.
type NormalizerConfig struct {
	MaxFieldLength int
	Clock          func() time.Time
}

// Normalizer converts verified claim sets into User records. It holds no mutable state.
type Normalizer struct {
	maxFieldLength int
	now            func() time.Time
}

// NewNormalizer constructs a normalizer, defaulting the field bound and clock.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	maxFieldLength := cfg.MaxFieldLength
	if maxFieldLength <= 0 {
		maxFieldLength = DefaultMaxFieldLength
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Normalizer{
		maxFieldLength: maxFieldLength,
		now:            clock,
	}
}

// Normalize builds the user record for a claim set that already passed signature verification.
func (n *Normalizer) Normalize(claims telegram.ClaimSet) (User, error) {
	telegramID := strings.TrimSpace(claims.ID.Text())
	if telegramID == "" {
		return User{}, ErrInvalidIdentity
	}

	firstName, lastName := SplitName(claims.FirstName.Text(), claims.LastName.Text())

	user := User{
		TelegramID: telegramID,
		Username:   optional(sanitize(claims.Username.Text(), n.maxFieldLength)),
		FirstName:  sanitize(firstName, n.maxFieldLength),
		LastName:   sanitize(lastName, n.maxFieldLength),
		Picture:    optional(claims.PhotoURL.Text()),
		LastLogin:  n.now().UTC(),
	}
	if authTime, ok := claims.AuthTime(); ok {
		user.AuthDate = &authTime
	}
	return user, nil
}

// SplitName moves everything after the first space of firstName into lastName
// when lastName is empty. Remaining words are joined with single spaces.
func SplitName(firstName, lastName string) (string, string) {
	first := strings.TrimSpace(firstName)
	last := strings.TrimSpace(lastName)
	if last != "" {
		return first, last
	}
	head, tail, found := strings.Cut(first, " ")
	if !found {
		return first, last
	}
	return head, strings.Join(strings.Fields(tail), " ")
}
