package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieme-one/Teleserver/internal/telegram"
	"go.uber.org/zap"
)

var (
	errMissingStore      = errors.New("user store is required")
	errMissingNormalizer = errors.New("normalizer is required")
)

// Store persists user records. UpsertUser inserts or overwrites the row keyed by
// TelegramID and returns the stored representation.
type Store interface {
	UpsertUser(ctx context.Context, user User) (User, error)
}

// ServiceError carries an operation.reason code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "users.service.new"
	opLogin      = "users.login"

	reasonNormalizeFailed = "normalize_failed"
	reasonUpsertFailed    = "upsert_failed"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: operation + "." + reason, err: cause}
}

// ServiceConfig describes the dependencies of the login service.
type ServiceConfig struct {
	Store      Store
	Normalizer *Normalizer
	Logger     *zap.Logger
}

// Service records successful Telegram logins.
type Service struct {
	store      Store
	normalizer *Normalizer
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.Normalizer == nil {
		return nil, newServiceError(opServiceNew, "missing_normalizer", errMissingNormalizer)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      cfg.Store,
		normalizer: cfg.Normalizer,
		logger:     logger,
	}, nil
}

// Login normalizes verified claims and upserts the resulting record once.
// Callers must verify the claim signature first.
func (s *Service) Login(ctx context.Context, claims telegram.ClaimSet) (User, error) {
	user, err := s.normalizer.Normalize(claims)
	if err != nil {
		return User{}, newServiceError(opLogin, reasonNormalizeFailed, err)
	}

	stored, err := s.store.UpsertUser(ctx, user)
	if err != nil {
		s.logger.Error("user upsert failed",
			zap.String("operation", opLogin),
			zap.String("reason", reasonUpsertFailed),
			zap.String("telegram_id", user.TelegramID),
			zap.Error(err))
		return User{}, newServiceError(opLogin, reasonUpsertFailed, err)
	}

	s.logger.Debug("user login recorded", zap.String("telegram_id", stored.TelegramID))
	return stored, nil
}
