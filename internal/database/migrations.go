package database

import (
	"errors"
	"time"

	"github.com/fieme-one/Teleserver/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationSplitCombinedNames = "2026-10-01_split_combined_names"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSplitCombinedNames, apply: splitCombinedNames},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Transaction(migration.apply); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// splitCombinedNames applies the login-time name rule to rows stored before it existed.
func splitCombinedNames(db *gorm.DB) error {
	var candidates []users.User
	err := db.Where("(last_name IS NULL OR last_name = '') AND first_name LIKE ?", "% %").
		Find(&candidates).Error
	if err != nil {
		return err
	}
	for _, candidate := range candidates {
		firstName, lastName := users.SplitName(candidate.FirstName, candidate.LastName)
		if firstName == candidate.FirstName && lastName == candidate.LastName {
			continue
		}
		err := db.Model(&users.User{}).
			Where("telegram_id = ?", candidate.TelegramID).
			UpdateColumns(map[string]any{
				"first_name": firstName,
				"last_name":  lastName,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
