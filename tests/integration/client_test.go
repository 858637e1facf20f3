//go:build integration

package integration

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/ordering-favorites/internal/testutil"
	"github.com/Sternrassler/ordering-favorites/pkg/client"
	"github.com/Sternrassler/ordering-favorites/pkg/favorites"
	"github.com/Sternrassler/ordering-favorites/pkg/pagination"
	"github.com/Sternrassler/ordering-favorites/pkg/ratelimit"
	"github.com/Sternrassler/ordering-favorites/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newClient(t *testing.T, baseURL string, rdb *redis.Client) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig(baseURL, "integration-test")
	cfg.Redis = rdb
	cfg.MaxRetries = 1
	cfg.InitialBackoff = 10 * time.Millisecond
	cfg.ThrottleDelay = 10 * time.Millisecond
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func newFavoritesMock(t *testing.T) *testutil.MockAPI {
	t.Helper()
	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)

	mock.Respond("GET /users/42/favorite_businesses", testutil.OKPage(
		[]map[string]any{{"id": 100, "object_id": 1}, {"id": 101, "object_id": 2}},
		testutil.Page{CurrentPage: 1, PageSize: 10, TotalPages: 1, Total: 2, From: 1, To: 2},
	))
	mock.Respond("GET /business", testutil.OK([]map[string]any{
		{"id": 1, "name": "Pizza Place"},
		{"id": 2, "name": "Taco Stand"},
	}).WithHeaders(map[string]string{"Cache-Control": "max-age=300"}))
	return mock
}

// TestFavoritesFlow covers reference fetch, cached lookup and refresh
// against a real Redis.
func TestFavoritesFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := newFavoritesMock(t)
	api := newClient(t, mock.URL(), redisClient)

	ctrl, err := favorites.NewController(api, session.New("tkn", 42), favorites.Config{
		FavoriteURL: "favorite_businesses",
		OriginalURL: "business",
		Kind:        favorites.KindGeneric,
		Pagination:  pagination.Settings{ControlType: pagination.ControlInfinity, PageSize: 10},
	})
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}
	defer ctrl.Close()

	ctx := context.Background()

	list := ctrl.Start(ctx)
	if list.Error != nil {
		t.Fatalf("Start() error = %v", list.Error)
	}
	if len(list.Favorites) != 2 {
		t.Fatalf("favorites = %d, want 2", len(list.Favorites))
	}

	// Same page again: references are refetched, the lookup is cached.
	ctrl.Reset()
	if list := ctrl.Start(ctx); len(list.Favorites) != 2 {
		t.Fatalf("favorites after reset = %d, want 2", len(list.Favorites))
	}
	if n := len(mock.RequestsTo("/users/42/favorite_businesses")); n != 2 {
		t.Errorf("reference requests = %d, want 2", n)
	}
	if n := len(mock.RequestsTo("/business")); n != 1 {
		t.Errorf("lookup requests = %d, want 1", n)
	}

	// Refresh drops the user's cached lookups.
	if list := ctrl.Refresh(ctx); list.Error != nil {
		t.Fatalf("Refresh() error = %v", list.Error)
	}
	if n := len(mock.RequestsTo("/business")); n != 2 {
		t.Errorf("lookup requests after refresh = %d, want 2", n)
	}

	keys, err := redisClient.Keys(ctx, "favorites:*:user=42").Result()
	if err != nil {
		t.Fatalf("Failed to list keys: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("cached keys = %v, want one lookup entry", keys)
	}
}

// TestRateLimitSharedAcrossClients verifies that the budget reported to one
// client blocks another client on the same Redis.
func TestRateLimitSharedAcrossClients(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.Respond("/business/1", testutil.OK(map[string]any{"slug": "pizza-place"}).WithHeaders(map[string]string{
		ratelimit.HeaderRemaining: "1",
		ratelimit.HeaderReset:     "60",
	}))

	first := newClient(t, mock.URL(), redisClient)
	second := newClient(t, mock.URL(), redisClient)
	ctx := context.Background()

	if _, err := first.Get(ctx, "/business/1", nil); err != nil {
		t.Fatalf("first Get() failed: %v", err)
	}

	_, err := second.Get(ctx, "/business/1", nil)
	if !errors.Is(err, client.ErrRateLimited) {
		t.Errorf("second Get() error = %v, want ErrRateLimited", err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.RequestCount())
	}
}

func TestTrackerState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := ratelimit.NewTracker(redisClient, zerolog.Nop(), time.Millisecond)
	ctx := context.Background()

	headers := http.Header{}
	headers.Set(ratelimit.HeaderRemaining, "10")
	headers.Set(ratelimit.HeaderReset, "30")
	if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() failed: %v", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() failed: %v", err)
	}
	if state.Remaining != 10 {
		t.Errorf("Remaining = %d, want 10", state.Remaining)
	}
	if !state.NeedsThrottling() || state.NeedsCriticalBlock() {
		t.Errorf("state = %+v, want throttling without block", state)
	}

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil || !allowed {
		t.Errorf("ShouldAllowRequest() = %v, %v, want true", allowed, err)
	}
}
