package users

import (
	"strings"
	"time"
	"unicode/utf8"
)

// User is the local record of a Telegram identity, keyed by TelegramID.
type User struct {
	TelegramID string     `gorm:"column:telegram_id;primaryKey;size:64;not null" json:"telegram_id"`
	Username   *string    `gorm:"column:username;size:100" json:"username"`
	FirstName  string     `gorm:"column:first_name;size:100" json:"first_name"`
	LastName   string     `gorm:"column:last_name;size:100" json:"last_name"`
	Picture    *string    `gorm:"column:picture;size:2048" json:"picture"`
	AuthDate   *time.Time `gorm:"column:auth_date" json:"auth_date"`
	LastLogin  time.Time  `gorm:"column:last_login;not null" json:"last_login"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

// TableName exposes the table backing user records.
func (User) TableName() string {
	return "users"
}

// sanitize trims and caps value at maxLength characters.
func sanitize(value string, maxLength int) string {
	trimmed := strings.TrimSpace(value)
	if maxLength <= 0 || utf8.RuneCountInString(trimmed) <= maxLength {
		return trimmed
	}
	runes := []rune(trimmed)
	return strings.TrimSpace(string(runes[:maxLength]))
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
