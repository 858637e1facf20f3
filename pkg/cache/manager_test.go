package cache

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis on DB 15 and skips when none is
// running. tests/integration covers the same paths against a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client, 0)
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
	if manager.FallbackTTL() != DefaultTTL {
		t.Errorf("FallbackTTL() = %v, want %v", manager.FallbackTTL(), DefaultTTL)
	}

	if got := NewManager(client, time.Minute).FallbackTTL(); got != time.Minute {
		t.Errorf("FallbackTTL() = %v, want 1m", got)
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil, 0)
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t), 0)
	ctx := context.Background()

	key := CacheKey{
		Endpoint:    "/business",
		QueryParams: url.Values{"type": {"1"}},
		UserID:      42,
	}
	entry := &CacheEntry{
		Data:       []byte(`{"error":false,"result":[{"id":1}]}`),
		ETag:       `"abc123"`,
		Expires:    time.Now().Add(5 * time.Minute),
		StatusCode: 200,
		CachedAt:   time.Now(),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data = %s, want %s", got.Data, entry.Data)
	}
	if got.ETag != entry.ETag {
		t.Errorf("ETag = %s, want %s", got.ETag, entry.ETag)
	}

	other := key
	other.UserID = 43
	if _, err := manager.Get(ctx, other); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get for another user = %v, want ErrCacheMiss", err)
	}
}

func TestManager_Set_ExpiredEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t), 0)
	ctx := context.Background()
	key := CacheKey{Endpoint: "/business"}

	entry := &CacheEntry{Data: []byte(`{}`), Expires: time.Now().Add(-time.Hour)}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get = %v, want ErrCacheMiss", err)
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t), 0)
	ctx := context.Background()
	key := CacheKey{Endpoint: "/orders", UserID: 1}

	if err := manager.Set(ctx, key, &CacheEntry{Data: []byte(`{}`), Expires: time.Now().Add(time.Minute)}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after Delete = %v, want ErrCacheMiss", err)
	}
}

func TestManager_UpdateTTL(t *testing.T) {
	manager := NewManager(setupTestRedis(t), 0)
	ctx := context.Background()
	key := CacheKey{Endpoint: "/business"}

	if err := manager.Set(ctx, key, &CacheEntry{Data: []byte(`{}`), Expires: time.Now().Add(time.Minute)}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	newExpires := time.Now().Add(10 * time.Minute)
	if err := manager.UpdateTTL(ctx, key, newExpires); err != nil {
		t.Fatalf("UpdateTTL failed: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := got.Expires.Sub(newExpires); diff < -time.Second || diff > time.Second {
		t.Errorf("Expires = %v, want %v", got.Expires, newExpires)
	}
}

func TestManager_InvalidateUser(t *testing.T) {
	manager := NewManager(setupTestRedis(t), 0)
	ctx := context.Background()
	live := func() *CacheEntry {
		return &CacheEntry{Data: []byte(`{}`), Expires: time.Now().Add(time.Minute)}
	}

	mine := []CacheKey{
		{Endpoint: "/business", QueryParams: url.Values{"type": {"1"}}, UserID: 42},
		{Endpoint: "/orders", UserID: 42},
	}
	theirs := CacheKey{Endpoint: "/business", UserID: 7}

	for _, key := range append(mine, theirs) {
		if err := manager.Set(ctx, key, live()); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	removed, err := manager.InvalidateUser(ctx, 42)
	if err != nil {
		t.Fatalf("InvalidateUser failed: %v", err)
	}
	if removed != len(mine) {
		t.Errorf("removed = %d, want %d", removed, len(mine))
	}
	for _, key := range mine {
		if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Get(%s) = %v, want ErrCacheMiss", key, err)
		}
	}
	if _, err := manager.Get(ctx, theirs); err != nil {
		t.Errorf("other user's entry was removed: %v", err)
	}

	if n, err := manager.InvalidateUser(ctx, 0); n != 0 || err != nil {
		t.Errorf("InvalidateUser(0) = %d, %v", n, err)
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t), 0)
	if err := manager.Set(context.Background(), CacheKey{Endpoint: "/x"}, nil); err == nil {
		t.Error("Set with nil entry should return error")
	}
}
