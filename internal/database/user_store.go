package database

import (
	"context"
	"errors"

	"github.com/fieme-one/Teleserver/internal/users"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errMissingDatabase = errors.New("database handle is required")

// upsertColumns are overwritten on conflict; created_at keeps the first-seen value.
var upsertColumns = []string{
	"username",
	"first_name",
	"last_name",
	"picture",
	"auth_date",
	"last_login",
	"updated_at",
}

// UserStore persists users through gorm with last-write-wins upserts on telegram_id.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore wraps a gorm connection.
func NewUserStore(db *gorm.DB) (*UserStore, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &UserStore{db: db}, nil
}

// UpsertUser inserts the record or overwrites the existing row with the same telegram_id.
func (s *UserStore) UpsertUser(ctx context.Context, user users.User) (users.User, error) {
	record := user
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(&record).Error
	if err != nil {
		return users.User{}, err
	}

	var stored users.User
	if err := s.db.WithContext(ctx).
		Where("telegram_id = ?", user.TelegramID).
		Take(&stored).Error; err != nil {
		return users.User{}, err
	}
	return stored, nil
}
