package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"noqbot/pkg/logger"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingHandler(calls *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"data":{"id":"b1"}}`))
	})
}

var adminC1 = Identity{UserID: "u1", Role: "client_admin", ClientID: "c1"}

func idempotentRequest(method, path, key string, id *Identity) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(IdempotencyHeader, key)
	if id != nil {
		req = req.WithContext(WithIdentity(req.Context(), *id))
	}
	return req
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	calls := 0
	h := Idempotency(store, logger.Discard())(countingHandler(&calls, http.StatusCreated))

	for i := 0; i < 2; i++ {
		req := idempotentRequest(http.MethodPost, "/api/v1/clients/c1/bookings", "abc", &adminC1)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"data":{"id":"b1"}}`, rec.Body.String())
	}
	assert.Equal(t, 1, calls)
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	calls := 0
	h := Idempotency(store, logger.Discard())(countingHandler(&calls, http.StatusConflict))

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "/x", "abc", &adminC1))
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotency_ScopedByPath(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	calls := 0
	h := Idempotency(store, logger.Discard())(countingHandler(&calls, http.StatusOK))

	for _, path := range []string{"/a", "/b"} {
		h.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPut, path, "same", &adminC1))
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotency_ScopedByCaller(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	calls := 0
	h := Idempotency(store, logger.Discard())(countingHandler(&calls, http.StatusCreated))
	path := "/api/v1/clients/c1/bookings"

	h.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, path, "k-1", &adminC1))

	callers := []Identity{
		{UserID: "u2", Role: "staff", ClientID: "c2"},
		{UserID: "u1", Role: "staff", ClientID: "c1"},
		{UserID: "u3", Role: "client_admin", ClientID: "c1"},
	}
	for _, id := range callers {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, idempotentRequest(http.MethodPost, path, "k-1", &id))
		assert.Empty(t, rec.Header().Get("Idempotent-Replayed"), "replayed for %+v", id)
	}
	assert.Equal(t, 4, calls)
}

func TestIdempotency_AnonymousRequestsAreNotCached(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	calls := 0
	h := Idempotency(store, logger.Discard())(countingHandler(&calls, http.StatusCreated))

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "/x", "abc", nil))
	}
	assert.Equal(t, 2, calls)
}

func TestInMemoryIdempotencyStore_Expires(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Millisecond)
	defer store.Stop()

	store.Set(context.Background(), "k", &CachedResponse{StatusCode: 200})
	time.Sleep(5 * time.Millisecond)

	_, ok := store.Get(context.Background(), "k")
	assert.False(t, ok)
}

type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttl  time.Duration
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttl = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestRedisIdempotencyStore_RoundTrip(t *testing.T) {
	fake := &fakeRedis{data: map[string]string{}}
	store := NewRedisIdempotencyStore(fake, time.Hour, logger.Discard())

	_, ok := store.Get(context.Background(), "k")
	assert.False(t, ok)

	store.Set(context.Background(), "k", &CachedResponse{StatusCode: 201, Body: []byte(`{"ok":true}`)})
	assert.Equal(t, time.Hour, fake.ttl)
	assert.Contains(t, fake.data, redisIdempotencyPrefix+"k")

	cached, ok := store.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, 201, cached.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(cached.Body))
}
