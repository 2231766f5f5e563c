package telegram

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Field names emitted by the Telegram login widget.
const (
	FieldID        = "id"
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldUsername  = "username"
	FieldPhotoURL  = "photo_url"
	FieldAuthDate  = "auth_date"
	FieldHash      = "hash"
)

var (
	// ErrMissingID indicates the claim set carries no provider user id.
	ErrMissingID = errors.New("telegram: claim set missing id")
	// ErrMissingHash indicates the claim set carries no signature.
	ErrMissingHash = errors.New("telegram: claim set missing hash")
	// ErrUnsupportedValue indicates a claim value that is not a JSON scalar.
	ErrUnsupportedValue = errors.New("telegram: unsupported claim value")
	errNotAnObject      = errors.New("telegram: claim set must be a JSON object")
)

// Claim is a rendered claim value. Present distinguishes an empty value from an absent field.
// A JSON null is present and signed as "null" but carries no usable value.
type Claim struct {
	Value   string
	Present bool
	Null    bool
}

// Some returns a present claim holding value.
func Some(value string) Claim {
	return Claim{Value: value, Present: true}
}

// NullClaim returns a present claim decoded from a JSON null.
func NullClaim() Claim {
	return Claim{Value: Render(nil), Present: true, Null: true}
}

// Text returns the usable value: empty for absent and null claims.
func (c Claim) Text() string {
	if !c.Present || c.Null {
		return ""
	}
	return c.Value
}

// Missing reports whether the claim is absent, null or blank.
func (c Claim) Missing() bool {
	return strings.TrimSpace(c.Text()) == ""
}

// ClaimSet is the signed payload posted by the login widget.
// Known fields are typed; anything else the provider adds lands in Extra and is still signed.
type ClaimSet struct {
	ID        Claim
	FirstName Claim
	LastName  Claim
	Username  Claim
	PhotoURL  Claim
	AuthDate  Claim
	Hash      Claim
	Extra     map[string]string
}

// Set stores a rendered value under the provider field name.
func (c *ClaimSet) Set(key, value string) {
	if slot := c.slot(key); slot != nil {
		*slot = Some(value)
		return
	}
	if c.Extra == nil {
		c.Extra = make(map[string]string)
	}
	c.Extra[key] = value
}

func (c *ClaimSet) setNull(key string) {
	if slot := c.slot(key); slot != nil {
		*slot = NullClaim()
		return
	}
	c.Set(key, Render(nil))
}

// Get returns the claim stored under the provider field name.
func (c ClaimSet) Get(key string) Claim {
	if slot := c.slot(key); slot != nil {
		return *slot
	}
	value, ok := c.Extra[key]
	if !ok {
		return Claim{}
	}
	return Some(value)
}

func (c *ClaimSet) slot(key string) *Claim {
	switch key {
	case FieldID:
		return &c.ID
	case FieldFirstName:
		return &c.FirstName
	case FieldLastName:
		return &c.LastName
	case FieldUsername:
		return &c.Username
	case FieldPhotoURL:
		return &c.PhotoURL
	case FieldAuthDate:
		return &c.AuthDate
	case FieldHash:
		return &c.Hash
	default:
		return nil
	}
}

// DataFields returns every present field except the hash.
func (c ClaimSet) DataFields() map[string]string {
	fields := make(map[string]string, len(c.Extra)+6)
	known := []struct {
		key   string
		claim Claim
	}{
		{FieldID, c.ID},
		{FieldFirstName, c.FirstName},
		{FieldLastName, c.LastName},
		{FieldUsername, c.Username},
		{FieldPhotoURL, c.PhotoURL},
		{FieldAuthDate, c.AuthDate},
	}
	for _, field := range known {
		if field.claim.Present {
			fields[field.key] = field.claim.Value
		}
	}
	for key, value := range c.Extra {
		if key == FieldHash {
			continue
		}
		if _, shadowed := fields[key]; shadowed {
			continue
		}
		fields[key] = value
	}
	return fields
}

// Validate reports Malformed Input: a claim set without a usable id or hash.
// Null values and a numeric zero id count as missing.
func (c ClaimSet) Validate() error {
	if c.ID.Missing() || isZeroNumber(c.ID.Value) {
		return ErrMissingID
	}
	if c.Hash.Missing() {
		return ErrMissingHash
	}
	return nil
}

func isZeroNumber(value string) bool {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	return err == nil && parsed == 0
}

// AuthTime converts auth_date (unix seconds) into an instant.
// Fractional seconds are kept to millisecond precision.
func (c ClaimSet) AuthTime() (time.Time, bool) {
	raw := strings.TrimSpace(c.AuthDate.Text())
	if raw == "" {
		return time.Time{}, false
	}
	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), true
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(math.Trunc(seconds * 1000))).UTC(), true
}

// UnmarshalJSON decodes a flat JSON object, rendering each scalar the way the provider signs it.
func (c *ClaimSet) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return errNotAnObject
	}

	claims := ClaimSet{}
	for key, value := range raw {
		switch value.(type) {
		case map[string]any, []any:
			return fmt.Errorf("%w: %s", ErrUnsupportedValue, key)
		case nil:
			claims.setNull(key)
			continue
		}
		claims.Set(key, Render(value))
	}
	*c = claims
	return nil
}

// MarshalJSON emits the present fields; integer id and auth_date are written as numbers.
func (c ClaimSet) MarshalJSON() ([]byte, error) {
	fields := c.DataFields()
	if c.Hash.Present {
		fields[FieldHash] = c.Hash.Value
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buffer bytes.Buffer
	buffer.WriteByte('{')
	for index, key := range keys {
		if index > 0 {
			buffer.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buffer.Write(encodedKey)
		buffer.WriteByte(':')

		value := fields[key]
		if c.Get(key).Null {
			buffer.WriteString("null")
			continue
		}
		if (key == FieldID || key == FieldAuthDate) && isIntegerLiteral(value) {
			buffer.WriteString(value)
			continue
		}
		encodedValue, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buffer.Write(encodedValue)
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}
