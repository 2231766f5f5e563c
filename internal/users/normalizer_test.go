package users

import (
	"strings"
	"testing"
	"time"

	"github.com/fieme-one/Teleserver/internal/telegram"
)

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(NormalizerConfig{
		Clock: func() time.Time { return fixedNow },
	})
}

func TestNormalizeGraceClaimSet(t *testing.T) {
	user, err := newTestNormalizer().Normalize(telegram.ClaimSet{
		ID:        telegram.Some("42"),
		FirstName: telegram.Some("Grace"),
		Hash:      telegram.Some("ignored"),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if user.TelegramID != "42" {
		t.Fatalf("unexpected telegram id %q", user.TelegramID)
	}
	if user.FirstName != "Grace" || user.LastName != "" {
		t.Fatalf("unexpected names %q / %q", user.FirstName, user.LastName)
	}
	if user.Username != nil || user.Picture != nil || user.AuthDate != nil {
		t.Fatalf("expected optional fields to be nil, got %+v", user)
	}
	if !user.LastLogin.Equal(fixedNow) {
		t.Fatalf("expected last login %v, got %v", fixedNow, user.LastLogin)
	}
}

func TestNormalizeRequiresIdentifier(t *testing.T) {
	normalizer := newTestNormalizer()
	for _, claims := range []telegram.ClaimSet{
		{FirstName: telegram.Some("Grace")},
		{ID: telegram.Some("  ")},
		{ID: telegram.NullClaim()},
	} {
		if _, err := normalizer.Normalize(claims); err != ErrInvalidIdentity {
			t.Fatalf("expected ErrInvalidIdentity, got %v", err)
		}
	}
}

func TestNormalizeSplitsCombinedFirstName(t *testing.T) {
	user, err := newTestNormalizer().Normalize(telegram.ClaimSet{
		ID:        telegram.Some("1"),
		FirstName: telegram.Some("Ada Lovelace"),
		LastName:  telegram.Some(""),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if user.FirstName != "Ada" || user.LastName != "Lovelace" {
		t.Fatalf("expected Ada / Lovelace, got %q / %q", user.FirstName, user.LastName)
	}
}

func TestNormalizeKeepsSuppliedLastName(t *testing.T) {
	user, err := newTestNormalizer().Normalize(telegram.ClaimSet{
		ID:        telegram.Some("1"),
		FirstName: telegram.Some("Ada"),
		LastName:  telegram.Some("Lovelace"),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if user.FirstName != "Ada" || user.LastName != "Lovelace" {
		t.Fatalf("expected names unchanged, got %q / %q", user.FirstName, user.LastName)
	}
}

func TestSplitName(t *testing.T) {
	testCases := []struct {
		first, last         string
		wantFirst, wantLast string
	}{
		{"Ada Lovelace", "", "Ada", "Lovelace"},
		{"Ada Augusta  King Lovelace", "", "Ada", "Augusta King Lovelace"},
		{"  Ada Lovelace  ", "  ", "Ada", "Lovelace"},
		{"Ada", "", "Ada", ""},
		{"Ada Byron", "Lovelace", "Ada Byron", "Lovelace"},
		{"", "", "", ""},
	}
	for _, testCase := range testCases {
		gotFirst, gotLast := SplitName(testCase.first, testCase.last)
		if gotFirst != testCase.wantFirst || gotLast != testCase.wantLast {
			t.Fatalf("SplitName(%q, %q) = %q, %q; want %q, %q",
				testCase.first, testCase.last, gotFirst, gotLast, testCase.wantFirst, testCase.wantLast)
		}
	}
}

func TestNormalizeTruncatesLongFields(t *testing.T) {
	longValue := strings.Repeat("a", 500)
	user, err := newTestNormalizer().Normalize(telegram.ClaimSet{
		ID:        telegram.Some("1"),
		FirstName: telegram.Some(longValue),
		LastName:  telegram.Some(longValue),
		Username:  telegram.Some(longValue),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if user.Username == nil || len(*user.Username) != DefaultMaxFieldLength {
		t.Fatalf("expected username truncated to %d characters, got %v", DefaultMaxFieldLength, user.Username)
	}
	if len(user.FirstName) != DefaultMaxFieldLength || len(user.LastName) != DefaultMaxFieldLength {
		t.Fatalf("expected names truncated to %d characters", DefaultMaxFieldLength)
	}

	multibyte := strings.Repeat("ё", 150)
	user, err = NewNormalizer(NormalizerConfig{MaxFieldLength: 10}).Normalize(telegram.ClaimSet{
		ID:       telegram.Some("1"),
		Username: telegram.Some(multibyte),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if *user.Username != strings.Repeat("ё", 10) {
		t.Fatalf("expected truncation by characters, got %q", *user.Username)
	}
}

func TestNormalizeOptionalFields(t *testing.T) {
	user, err := newTestNormalizer().Normalize(telegram.ClaimSet{
		ID:       telegram.Some("7"),
		Username: telegram.Some("  grace  "),
		PhotoURL: telegram.Some("https://t.me/i/userpic/320/grace.jpg"),
		AuthDate: telegram.Some("1700000000"),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if user.Username == nil || *user.Username != "grace" {
		t.Fatalf("expected trimmed username, got %v", user.Username)
	}
	if user.Picture == nil || *user.Picture != "https://t.me/i/userpic/320/grace.jpg" {
		t.Fatalf("expected picture to pass through, got %v", user.Picture)
	}
	if user.AuthDate == nil || !user.AuthDate.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected auth date %v", user.AuthDate)
	}

	user, err = newTestNormalizer().Normalize(telegram.ClaimSet{
		ID:       telegram.Some("7"),
		Username: telegram.Some("   "),
		AuthDate: telegram.Some("not-a-number"),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if user.Username != nil || user.AuthDate != nil {
		t.Fatalf("expected blank username and invalid auth date to be nil, got %+v", user)
	}
}

func TestNormalizeTreatsNullClaimsAsEmpty(t *testing.T) {
	user, err := newTestNormalizer().Normalize(telegram.ClaimSet{
		ID:        telegram.Some("42"),
		FirstName: telegram.NullClaim(),
		LastName:  telegram.NullClaim(),
		Username:  telegram.NullClaim(),
		PhotoURL:  telegram.NullClaim(),
		AuthDate:  telegram.NullClaim(),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if user.FirstName != "" || user.LastName != "" {
		t.Fatalf("expected null names to be empty, got %q / %q", user.FirstName, user.LastName)
	}
	if user.Username != nil || user.Picture != nil || user.AuthDate != nil {
		t.Fatalf("expected null optional fields to be nil, got %+v", user)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first := newTestNormalizer()
	user, err := first.Normalize(telegram.ClaimSet{
		ID:        telegram.Some("99"),
		FirstName: telegram.Some("  Grace Brewster Hopper "),
		Username:  telegram.Some(strings.Repeat("g", 250)),
		PhotoURL:  telegram.Some("https://t.me/i/userpic/320/hopper.jpg"),
		AuthDate:  telegram.Some("1700000000"),
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	later := fixedNow.Add(time.Hour)
	second := NewNormalizer(NormalizerConfig{Clock: func() time.Time { return later }})
	again, err := second.Normalize(claimsFromUser(user))
	if err != nil {
		t.Fatalf("second normalize failed: %v", err)
	}

	if !again.LastLogin.Equal(later) {
		t.Fatalf("expected refreshed last login, got %v", again.LastLogin)
	}
	again.LastLogin = user.LastLogin
	if again.TelegramID != user.TelegramID ||
		again.FirstName != user.FirstName ||
		again.LastName != user.LastName ||
		*again.Username != *user.Username ||
		*again.Picture != *user.Picture ||
		!again.AuthDate.Equal(*user.AuthDate) {
		t.Fatalf("expected identical record, got %+v vs %+v", again, user)
	}
}

func claimsFromUser(user User) telegram.ClaimSet {
	claims := telegram.ClaimSet{
		ID:        telegram.Some(user.TelegramID),
		FirstName: telegram.Some(user.FirstName),
		LastName:  telegram.Some(user.LastName),
	}
	if user.Username != nil {
		claims.Username = telegram.Some(*user.Username)
	}
	if user.Picture != nil {
		claims.PhotoURL = telegram.Some(*user.Picture)
	}
	if user.AuthDate != nil {
		claims.AuthDate = telegram.Some(telegram.Render(user.AuthDate.Unix()))
	}
	return claims
}
