package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
)

// ErrMissingBotToken indicates the verifier was built without the shared bot token.
var ErrMissingBotToken = errors.New("telegram: bot token required")

// Verifier checks login widget signatures against a bot token.
// It holds only SHA-256(token) and is safe for concurrent use.
type Verifier struct {
	secretKey [sha256.Size]byte
}

// NewVerifier derives the HMAC key from the bot token.
func NewVerifier(botToken string) (*Verifier, error) {
	if strings.TrimSpace(botToken) == "" {
		return nil, ErrMissingBotToken
	}
	return &Verifier{secretKey: sha256.Sum256([]byte(botToken))}, nil
}

// Verify recomputes the signature over the data fields and compares it in constant time.
// A nil claim set or one without a hash (absent, null or empty) fails closed.
func (v *Verifier) Verify(claims *ClaimSet) bool {
	if v == nil || claims == nil {
		return false
	}
	if !claims.Hash.Present || claims.Hash.Null || claims.Hash.Value == "" {
		return false
	}
	expected := v.Sign(*claims)
	return hmac.Equal([]byte(expected), []byte(claims.Hash.Value))
}

// Sign returns the lowercase hex HMAC-SHA256 of the data check string.
func (v *Verifier) Sign(claims ClaimSet) string {
	mac := hmac.New(sha256.New, v.secretKey[:])
	mac.Write([]byte(DataCheckString(claims)))
	return hex.EncodeToString(mac.Sum(nil))
}

// DataCheckString renders the data fields as key=value lines sorted by key and joined by "\n".
func DataCheckString(claims ClaimSet) string {
	fields := claims.DataFields()
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+fields[key])
	}
	return strings.Join(lines, "\n")
}
