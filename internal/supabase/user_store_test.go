package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fieme-one/Teleserver/internal/users"
)

const testKey = "service-role-key"

type capturedRequest struct {
	method string
	path   string
	query  string
	header http.Header
	body   map[string]any
}

// recordingServer answers every request with the given status and body and keeps what it received.
func recordingServer(t *testing.T, status int, response string) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		captured []capturedRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		request := capturedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.Query().Get("on_conflict"),
			header: r.Header.Clone(),
		}
		if raw, err := io.ReadAll(r.Body); err == nil && len(raw) > 0 {
			_ = json.Unmarshal(raw, &request.body)
		}
		mu.Lock()
		captured = append(captured, request)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), captured...)
	}
}

func newTestStore(t *testing.T, server *httptest.Server, table string) *UserStore {
	t.Helper()
	store, err := NewUserStore(Config{
		URL:       server.URL,
		Key:       testKey,
		Table:     table,
		Transport: server.Client().Transport,
	})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return store
}

func TestNewUserStoreValidatesConfig(t *testing.T) {
	if _, err := NewUserStore(Config{Key: testKey}); !errors.Is(err, errMissingURL) {
		t.Fatalf("expected missing url error, got %v", err)
	}
	if _, err := NewUserStore(Config{URL: "https://project.supabase.co"}); !errors.Is(err, errMissingKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}

	store, err := NewUserStore(Config{URL: "https://project.supabase.co/", Key: testKey})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.restURL != "https://project.supabase.co/rest/v1" {
		t.Fatalf("unexpected rest url %q", store.restURL)
	}
	if store.table != defaultTable || store.timeout != defaultTimeout {
		t.Fatalf("unexpected defaults %q / %v", store.table, store.timeout)
	}
}

func TestUpsertUserSendsPostgrestUpsert(t *testing.T) {
	lastLogin := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	username := "grace"
	server, requests := recordingServer(t, http.StatusCreated,
		`[{"telegram_id":"42","username":"grace","first_name":"Grace","last_name":"","picture":null,"auth_date":null,"last_login":"2026-10-16T12:00:00+00:00"}]`)

	stored, err := newTestStore(t, server, "profiles").UpsertUser(context.Background(), users.User{
		TelegramID: "42",
		Username:   &username,
		FirstName:  "Grace",
		LastLogin:  lastLogin,
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if stored.TelegramID != "42" || stored.FirstName != "Grace" {
		t.Fatalf("unexpected stored user %+v", stored)
	}
	if stored.Username == nil || *stored.Username != "grace" {
		t.Fatalf("unexpected stored username %v", stored.Username)
	}
	if !stored.LastLogin.Equal(lastLogin) {
		t.Fatalf("unexpected last login %v", stored.LastLogin)
	}

	received := requests()
	if len(received) != 1 {
		t.Fatalf("expected one request, got %d", len(received))
	}
	request := received[0]
	if request.method != http.MethodPost || request.path != "/rest/v1/profiles" || request.query != "telegram_id" {
		t.Fatalf("unexpected request line %s %s on_conflict=%s", request.method, request.path, request.query)
	}
	if request.header.Get("apikey") != testKey || request.header.Get("Authorization") != "Bearer "+testKey {
		t.Fatalf("unexpected auth headers %v", request.header)
	}
	if prefer := request.header.Get("Prefer"); prefer != "resolution=merge-duplicates,return=representation" {
		t.Fatalf("unexpected Prefer header %q", prefer)
	}
	expected := map[string]any{
		"telegram_id": "42",
		"username":    "grace",
		"first_name":  "Grace",
		"last_name":   "",
		"picture":     nil,
		"auth_date":   nil,
		"last_login":  "2026-10-16T12:00:00Z",
	}
	for key, want := range expected {
		if got, ok := request.body[key]; !ok || got != want {
			t.Fatalf("body field %s = %v, want %v", key, got, want)
		}
	}
}

func TestUpsertUserReportsStatusErrors(t *testing.T) {
	server, requests := recordingServer(t, http.StatusConflict,
		`{"code":"23505","message":"duplicate key value violates unique constraint","details":"`+strings.Repeat("x", 1024)+`"}`)

	_, err := newTestStore(t, server, "").UpsertUser(context.Background(), users.User{TelegramID: "42"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected status %d", statusErr.StatusCode)
	}
	if !strings.Contains(statusErr.Body, "23505") || len(statusErr.Body) > maxErrorBodyBytes {
		t.Fatalf("expected bounded body excerpt, got %d bytes", len(statusErr.Body))
	}
	if attempts := len(requests()); attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestUpsertUserReportsNonJSONErrorBodies(t *testing.T) {
	server, _ := recordingServer(t, http.StatusBadGateway, `upstream unavailable`)

	_, err := newTestStore(t, server, "").UpsertUser(context.Background(), users.User{TelegramID: "42"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway || statusErr.Body != "upstream unavailable" {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
}

func TestUpsertUserRejectsEmptyRepresentation(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, `[]`)

	_, err := newTestStore(t, server, "").UpsertUser(context.Background(), users.User{TelegramID: "42"})
	if !errors.Is(err, ErrEmptyRepresentation) {
		t.Fatalf("expected ErrEmptyRepresentation, got %v", err)
	}
}

func TestUpsertUserHonoursContextCancellation(t *testing.T) {
	server, requests := recordingServer(t, http.StatusCreated, `[]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestStore(t, server, "").UpsertUser(ctx, users.User{TelegramID: "42"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(requests()) != 0 {
		t.Fatalf("expected no request after cancellation")
	}
}
