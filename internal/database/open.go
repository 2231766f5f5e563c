package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fieme-one/Teleserver/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	schemeSQLite     = "sqlite://"
	schemePostgres   = "postgres://"
	schemePostgreSQL = "postgresql://"
)

// ErrUnsupportedURL indicates a database url with an unknown scheme.
var ErrUnsupportedURL = errors.New("database: unsupported url scheme, expected sqlite://, postgres:// or postgresql://")

// Open connects to the database named by url and brings the schema up to date.
// sqlite://<path> selects the embedded driver, postgres:// and postgresql:// the pgx driver.
func Open(url string, logger *zap.Logger) (*gorm.DB, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	isSQLite := false
	switch {
	case strings.HasPrefix(url, schemeSQLite):
		path := strings.TrimPrefix(url, schemeSQLite)
		if path == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		if !strings.HasPrefix(path, "file:") && !strings.Contains(path, ":memory:") {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
		}
		dialector = sqlite.Open(path)
		isSQLite = true
	case strings.HasPrefix(url, schemePostgres), strings.HasPrefix(url, schemePostgreSQL):
		dialector = postgres.Open(url)
	default:
		return nil, ErrUnsupportedURL
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if isSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&users.User{}, &migrationRecord{}); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	logger.Info("database initialized", zap.String("dialect", db.Dialector.Name()))
	return db, nil
}
