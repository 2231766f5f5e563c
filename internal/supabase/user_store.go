package supabase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fieme-one/Teleserver/internal/users"
	"github.com/supabase-community/postgrest-go"
)

const (
	defaultTable      = "users"
	defaultTimeout    = 10 * time.Second
	restPath          = "/rest/v1"
	conflictColumn    = "telegram_id"
	returnRows        = "representation"
	maxErrorBodyBytes = 512
)

var (
	errMissingURL = errors.New("supabase url is required")
	errMissingKey = errors.New("supabase key is required")
	// ErrEmptyRepresentation indicates PostgREST acknowledged the upsert without returning the row.
	ErrEmptyRepresentation = errors.New("supabase: upsert returned no rows")
)

// Config describes how to reach the PostgREST endpoint of a Supabase project.
type Config struct {
	URL       string
	Key       string
	Table     string
	Transport http.RoundTripper
	Timeout   time.Duration
}

// UserStore upserts users through the Supabase REST API.
type UserStore struct {
	restURL   string
	key       string
	table     string
	transport http.RoundTripper
	timeout   time.Duration
}

// StatusError reports a non-2xx PostgREST response. Body is truncated and meant for logs only.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("supabase: upsert returned status %d: %s", e.StatusCode, e.Body)
}

// NewUserStore validates configuration and resolves the REST root of the project.
func NewUserStore(cfg Config) (*UserStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errMissingURL
	}
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		return nil, errMissingKey
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = defaultTable
	}
	restURL, err := url.Parse(baseURL + restPath)
	if err != nil {
		return nil, fmt.Errorf("supabase url: %w", err)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &UserStore{
		restURL:   restURL.String(),
		key:       key,
		table:     table,
		transport: transport,
		timeout:   timeout,
	}, nil
}

type userRow struct {
	TelegramID string     `json:"telegram_id"`
	Username   *string    `json:"username"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Picture    *string    `json:"picture"`
	AuthDate   *time.Time `json:"auth_date"`
	LastLogin  time.Time  `json:"last_login"`
}

func newUserRow(user users.User) userRow {
	return userRow{
		TelegramID: user.TelegramID,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Picture:    user.Picture,
		AuthDate:   user.AuthDate,
		LastLogin:  user.LastLogin,
	}
}

func (r userRow) toUser() users.User {
	return users.User{
		TelegramID: r.TelegramID,
		Username:   r.Username,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Picture:    r.Picture,
		AuthDate:   r.AuthDate,
		LastLogin:  r.LastLogin,
	}
}

// UpsertUser posts the record with merge-duplicates resolution and returns the stored row.
// A single attempt is made, bounded by ctx and the configured timeout.
func (s *UserStore) UpsertUser(ctx context.Context, user users.User) (users.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exchange := &exchangeTransport{ctx: ctx, base: s.transport}
	client := postgrest.NewClient(s.restURL, "", map[string]string{"apikey": s.key})
	if client.ClientError != nil {
		return users.User{}, client.ClientError
	}
	client.SetAuthToken(s.key)
	client.Transport.Parent = exchange

	var rows []userRow
	_, err := client.From(s.table).
		Upsert(newUserRow(user), conflictColumn, returnRows, "").
		ExecuteTo(&rows)
	if err != nil {
		if exchange.statusCode >= http.StatusBadRequest {
			return users.User{}, &StatusError{StatusCode: exchange.statusCode, Body: exchange.errorBody}
		}
		return users.User{}, fmt.Errorf("supabase: upsert: %w", err)
	}
	if len(rows) == 0 {
		return users.User{}, ErrEmptyRepresentation
	}
	return rows[0].toUser(), nil
}

// exchangeTransport binds the request to the caller's context and keeps the
// status and a bounded body excerpt of failed responses for logging.
type exchangeTransport struct {
	ctx        context.Context
	base       http.RoundTripper
	statusCode int
	errorBody  string
}

func (t *exchangeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	response, err := t.base.RoundTrip(req.WithContext(t.ctx))
	if err != nil {
		return nil, err
	}
	t.statusCode = response.StatusCode
	if response.StatusCode < http.StatusBadRequest {
		return response, nil
	}

	body, err := io.ReadAll(response.Body)
	response.Body.Close()
	if err != nil {
		return nil, err
	}
	excerpt := body
	if len(excerpt) > maxErrorBodyBytes {
		excerpt = excerpt[:maxErrorBodyBytes]
	}
	t.errorBody = strings.TrimSpace(string(excerpt))
	response.Body = io.NopCloser(bytes.NewReader(body))
	return response, nil
}
