package addonsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addonService is a stand-in for the remote addon API
type addonService struct {
	server       *httptest.Server
	lookups      atomic.Int32
	updates      atomic.Int32
	failFirst    atomic.Int32 // number of requests answered with 503
	lookupStatus atomic.Int32

	mu       sync.Mutex
	lastBody []byte
	lastAuth string
}

func (s *addonService) auth() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

func (s *addonService) body() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBody
}

func newAddonService(t *testing.T) *addonService {
	t.Helper()
	s := &addonService{}
	s.lookupStatus.Store(http.StatusOK)

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if s.failFirst.Load() > 0 {
				s.failFirst.Add(-1)
				http.Error(w, "try later", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	r.HandleFunc("/api/addon/{name}", func(w http.ResponseWriter, req *http.Request) {
		s.lookups.Add(1)
		s.mu.Lock()
		s.lastAuth = req.Header.Get("Authorization")
		s.mu.Unlock()
		if status := int(s.lookupStatus.Load()); status != http.StatusOK {
			http.Error(w, "nope", status)
			return
		}
		name := mux.Vars(req)["name"]
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"uuid": "uuid-" + name})
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/addons/update", func(w http.ResponseWriter, req *http.Request) {
		s.updates.Add(1)
		body, _ := io.ReadAll(req.Body)
		s.mu.Lock()
		s.lastBody = body
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPost)

	s.server = httptest.NewServer(r)
	t.Cleanup(s.server.Close)
	return s
}

func (s *addonService) client(secret string) *HTTPRemote {
	return NewHTTPRemote(RemoteConfig{
		BaseURL: s.server.URL + "/api",
		Secret:  secret,
		Timeout: 5 * time.Second,
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Millisecond,
			MaxWait:     5 * time.Millisecond,
			Multiplier:  2,
		},
	})
}

func TestRemoteAddonID(t *testing.T) {
	svc := newAddonService(t)

	id, err := svc.client("").AddonID(context.Background(), "@my addon")
	require.NoError(t, err)
	assert.Equal(t, "uuid-@my addon", id)
	assert.Equal(t, int32(1), svc.lookups.Load())
	assert.Empty(t, svc.auth())
}

func TestRemoteNotifyUpdates(t *testing.T) {
	svc := newAddonService(t)
	remote := svc.client("")

	updates := UpdateSet{"uuid-a": "20240101-000000", "uuid-b": "20240102-000000"}
	require.NoError(t, remote.NotifyUpdates(context.Background(), updates))
	assert.Equal(t, int32(1), svc.updates.Load())

	var body map[string]string
	require.NoError(t, json.Unmarshal(svc.body(), &body))
	assert.Equal(t, map[string]string(updates), body)
}

func TestRemoteNotifyEmptySendsNothing(t *testing.T) {
	svc := newAddonService(t)

	require.NoError(t, svc.client("").NotifyUpdates(context.Background(), UpdateSet{}))
	require.NoError(t, svc.client("").NotifyUpdates(context.Background(), nil))
	assert.Zero(t, svc.updates.Load())
}

func TestRemoteRetriesServerErrors(t *testing.T) {
	svc := newAddonService(t)
	svc.failFirst.Store(2)

	id, err := svc.client("").AddonID(context.Background(), "@a")
	require.NoError(t, err)
	assert.Equal(t, "uuid-@a", id)
	assert.Equal(t, int32(1), svc.lookups.Load())

	svc.failFirst.Store(5)
	_, err = svc.client("").AddonID(context.Background(), "@a")
	require.ErrorIs(t, err, ErrRemote)
	assert.True(t, strings.Contains(err.Error(), "503"))
}

func TestRemoteClientErrorNotRetried(t *testing.T) {
	svc := newAddonService(t)
	svc.lookupStatus.Store(http.StatusNotFound)

	_, err := svc.client("").AddonID(context.Background(), "@a")
	require.ErrorIs(t, err, ErrRemote)
	assert.Equal(t, int32(1), svc.lookups.Load())
}

func TestRemoteEmptyUUID(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/addon/{name}", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"uuid": ""}`))
	})
	server := httptest.NewServer(r)
	defer server.Close()

	_, err := NewHTTPRemote(RemoteConfig{BaseURL: server.URL}).AddonID(context.Background(), "@a")
	require.ErrorIs(t, err, ErrRemote)
}

func TestRemoteSignsRequests(t *testing.T) {
	svc := newAddonService(t)
	secret := "s3cret"

	_, err := svc.client(secret).AddonID(context.Background(), "@a")
	require.NoError(t, err)
	auth := svc.auth()
	require.True(t, strings.HasPrefix(auth, "Bearer "))

	raw := strings.TrimPrefix(auth, "Bearer ")
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "addonsync", claims.Subject)

	_, err = jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(tok *jwt.Token) (interface{}, error) {
		return []byte("wrong"), nil
	})
	assert.Error(t, err)
}

func TestRemoteCancelled(t *testing.T) {
	svc := newAddonService(t)
	svc.failFirst.Store(100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.client("").AddonID(ctx, "@a")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRemoteFromConfig(t *testing.T) {
	api := NewMemoryConfig().GetAPIConfig()
	remote := RemoteFromConfig(api)
	assert.Equal(t, DefaultAPIURL, remote.baseURL)
	assert.Equal(t, api.Retries, remote.retry.MaxAttempts)
}

func TestWithRetry(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 4, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 2}

	calls := 0
	err := withRetry(context.Background(), cfg, "test", func() error {
		calls++
		if calls < 3 {
			return retryable(errors.New("flaky"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	permanent := errors.New("permanent")
	err = withRetry(context.Background(), cfg, "test", func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)

	calls = 0
	err = withRetry(context.Background(), cfg, "test", func() error {
		calls++
		return retryable(errors.New("always"))
	})
	assert.Error(t, err)
	assert.True(t, isRetryable(err))
	assert.Equal(t, 4, calls)
}
