package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/ordering-favorites/internal/testutil"
	"github.com/Sternrassler/ordering-favorites/pkg/client"
	"github.com/Sternrassler/ordering-favorites/pkg/session"
)

type reorderOutcome struct {
	result json.RawMessage
	err    error
	delay  time.Duration
}

// fakeReorderer answers per order id; unknown ids succeed with {}.
type fakeReorderer struct {
	outcomes map[int64]reorderOutcome
	calls    atomic.Int32
}

func (f *fakeReorderer) Reorder(ctx context.Context, orderID int64) (json.RawMessage, error) {
	f.calls.Add(1)
	o, ok := f.outcomes[orderID]
	if !ok {
		return json.RawMessage(`{}`), nil
	}
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	return o.result, o.err
}

type fakeBusinesses struct {
	mu    sync.Mutex
	slugs map[int64]string
	err   error
	calls []int64
}

func (f *fakeBusinesses) BusinessSlug(ctx context.Context, businessID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, businessID)
	return f.slugs[businessID], f.err
}

func rejected(result string) error {
	return &client.APIError{StatusCode: 200, Endpoint: "/orders/:id/reorder", Result: json.RawMessage(result)}
}

func newReorderController(t *testing.T, r Reorderer, b BusinessLookup) *Controller {
	t.Helper()
	return newTestController(t, "https://example.com", genericConfig(), WithReorderer(r), WithBusinessLookup(b))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	return string(data)
}

func TestReorder_Success(t *testing.T) {
	reorderer := &fakeReorderer{outcomes: map[int64]reorderOutcome{
		5: {result: json.RawMessage(`{"status":"ok"}`)},
	}}
	ctrl := newReorderController(t, reorderer, &fakeBusinesses{})

	state := ctrl.Reorder(context.Background(), 5)

	want := `{"loading":false,"error":false,"result":{"orderId":5,"status":"ok"}}`
	if got := mustJSON(t, state); got != want {
		t.Errorf("state = %s, want %s", got, want)
	}
	if state.Result.OrderID() != 5 {
		t.Errorf("OrderID() = %d, want 5", state.Result.OrderID())
	}
	if got := mustJSON(t, ctrl.ReorderState()); got != want {
		t.Errorf("ReorderState() = %s, want %s", got, want)
	}
}

func TestReorder_FailureEnrichment(t *testing.T) {
	tests := []struct {
		name   string
		entity Entity
	}{
		{"business_id", Entity{ID: 5, BusinessID: 9}},
		{"original business_id", Entity{ID: 5, OriginalBusinessID: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reorderer := &fakeReorderer{outcomes: map[int64]reorderOutcome{
				5: {err: rejected(`{"message":"ORDER_NOT_AVAILABLE"}`)},
			}}
			businesses := &fakeBusinesses{slugs: map[int64]string{9: "taco-shop"}}
			ctrl := newReorderController(t, reorderer, businesses)
			ctrl.list.put(Entity{ID: 4, BusinessID: 1}, tt.entity)

			state := ctrl.Reorder(context.Background(), 5)

			want := `{"loading":false,"error":true,"result":{"business":{"slug":"taco-shop"},"business_id":9,"message":"ORDER_NOT_AVAILABLE","orderId":5}}`
			if got := mustJSON(t, state); got != want {
				t.Errorf("state = %s, want %s", got, want)
			}
			if state.Result.BusinessID() != 9 || state.Result.BusinessSlug() != "taco-shop" {
				t.Errorf("business = %d/%q", state.Result.BusinessID(), state.Result.BusinessSlug())
			}
		})
	}
}

func TestReorder_FailureWithListResult(t *testing.T) {
	reorderer := &fakeReorderer{outcomes: map[int64]reorderOutcome{
		5: {err: rejected(`["BUSINESS_CLOSED"]`)},
	}}
	ctrl := newReorderController(t, reorderer, &fakeBusinesses{slugs: map[int64]string{9: "taco-shop"}})
	ctrl.list.put(Entity{ID: 5, BusinessID: 9})

	state := ctrl.Reorder(context.Background(), 5)

	want := `{"loading":false,"error":true,"result":{"business":{"slug":"taco-shop"},"business_id":9,"errors":["BUSINESS_CLOSED"],"orderId":5}}`
	if got := mustJSON(t, state); got != want {
		t.Errorf("state = %s, want %s", got, want)
	}
}

func TestReorder_FailureEntryNotFound(t *testing.T) {
	reorderer := &fakeReorderer{outcomes: map[int64]reorderOutcome{
		5: {err: rejected(`{"message":"NOPE"}`)},
	}}
	businesses := &fakeBusinesses{}
	ctrl := newReorderController(t, reorderer, businesses)
	ctrl.list.put(Entity{ID: 6, BusinessID: 9})

	state := ctrl.Reorder(context.Background(), 5)

	want := `{"loading":false,"error":true,"result":{"message":"NOPE","orderId":5}}`
	if got := mustJSON(t, state); got != want {
		t.Errorf("state = %s, want %s", got, want)
	}
	if len(businesses.calls) != 0 {
		t.Errorf("business lookups = %v, want none", businesses.calls)
	}
}

func TestReorder_SlugLookupRejected(t *testing.T) {
	reorderer := &fakeReorderer{outcomes: map[int64]reorderOutcome{
		5: {err: rejected(`{}`)},
	}}
	businesses := &fakeBusinesses{err: rejected(`["NOT_FOUND"]`)}
	ctrl := newReorderController(t, reorderer, businesses)
	ctrl.list.put(Entity{ID: 5, BusinessID: 9})

	state := ctrl.Reorder(context.Background(), 5)

	want := `{"loading":false,"error":true,"result":{"business":{},"business_id":9,"orderId":5}}`
	if got := mustJSON(t, state); got != want {
		t.Errorf("state = %s, want %s", got, want)
	}
}

func TestReorder_TransportFailure(t *testing.T) {
	tests := []struct {
		name       string
		reorderErr error
		lookupErr  error
		wantMsg    string
	}{
		{
			name:       "reorder call",
			reorderErr: errors.New("connection refused"),
			wantMsg:    "connection refused",
		},
		{
			name:       "slug lookup",
			reorderErr: rejected(`{}`),
			lookupErr:  errors.New("timeout"),
			wantMsg:    "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reorderer := &fakeReorderer{outcomes: map[int64]reorderOutcome{5: {err: tt.reorderErr}}}
			ctrl := newReorderController(t, reorderer, &fakeBusinesses{err: tt.lookupErr})
			ctrl.list.put(Entity{ID: 5, BusinessID: 9})

			state := ctrl.Reorder(context.Background(), 5)

			want := `{"loading":false,"error":true,"result":["` + tt.wantMsg + `"]}`
			if got := mustJSON(t, state); got != want {
				t.Errorf("state = %s, want %s", got, want)
			}
		})
	}
}

func TestReorder_FalsyIDGuard(t *testing.T) {
	reorderer := &fakeReorderer{outcomes: map[int64]reorderOutcome{
		5: {result: json.RawMessage(`{"status":"ok"}`)},
	}}
	ctrl := newReorderController(t, reorderer, &fakeBusinesses{})

	initial := mustJSON(t, ctrl.ReorderState())
	for _, id := range []int64{0, -1} {
		if got := mustJSON(t, ctrl.Reorder(context.Background(), id)); got != initial {
			t.Errorf("Reorder(%d) = %s, want unchanged %s", id, got, initial)
		}
	}

	ctrl.Reorder(context.Background(), 5)
	after := mustJSON(t, ctrl.ReorderState())
	if got := mustJSON(t, ctrl.Reorder(context.Background(), 0)); got != after {
		t.Errorf("Reorder(0) = %s, want unchanged %s", got, after)
	}

	if reorderer.calls.Load() != 1 {
		t.Errorf("reorder calls = %d, want 1", reorderer.calls.Load())
	}
}

func TestReorder_OverwritesPreviousState(t *testing.T) {
	reorderer := &fakeReorderer{outcomes: map[int64]reorderOutcome{
		5: {err: errors.New("offline")},
		6: {result: json.RawMessage(`{"status":"ok"}`)},
	}}
	ctrl := newReorderController(t, reorderer, &fakeBusinesses{})

	ctrl.Reorder(context.Background(), 5)
	state := ctrl.Reorder(context.Background(), 6)

	if state.Error || state.Result.Messages != nil || state.Result.OrderID() != 6 {
		t.Errorf("state = %s, want the second attempt only", mustJSON(t, state))
	}
}

func TestReorderGroup(t *testing.T) {
	tests := []struct {
		name        string
		outcomes    map[int64]reorderOutcome
		ids         []int64
		wantError   bool
		wantOrderID int64
	}{
		{
			name: "all succeed folds to last by position",
			outcomes: map[int64]reorderOutcome{
				1: {result: json.RawMessage(`{"status":"ok"}`)},
				2: {result: json.RawMessage(`{"status":"ok"}`), delay: 20 * time.Millisecond},
				3: {result: json.RawMessage(`{"status":"ok"}`)},
			},
			ids:         []int64{3, 2, 1},
			wantOrderID: 1,
		},
		{
			name: "first failure by position wins",
			outcomes: map[int64]reorderOutcome{
				1: {result: json.RawMessage(`{"status":"ok"}`)},
				2: {err: rejected(`{"message":"B"}`), delay: 20 * time.Millisecond},
				3: {err: rejected(`{"message":"C"}`)},
			},
			ids:         []int64{1, 2, 3},
			wantError:   true,
			wantOrderID: 2,
		},
		{
			name: "non-positive ids are skipped",
			outcomes: map[int64]reorderOutcome{
				4: {result: json.RawMessage(`{"status":"ok"}`)},
			},
			ids:         []int64{0, 4, -2},
			wantOrderID: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newReorderController(t, &fakeReorderer{outcomes: tt.outcomes}, &fakeBusinesses{})

			state := ctrl.ReorderGroup(context.Background(), tt.ids)
			if state.Error != tt.wantError {
				t.Errorf("Error = %v, want %v (%s)", state.Error, tt.wantError, mustJSON(t, state))
			}
			if state.Result.OrderID() != tt.wantOrderID {
				t.Errorf("OrderID() = %d, want %d", state.Result.OrderID(), tt.wantOrderID)
			}
			if state.Loading {
				t.Error("Loading still true")
			}
		})
	}
}

func TestReorderGroup_NoIDs(t *testing.T) {
	reorderer := &fakeReorderer{}
	ctrl := newReorderController(t, reorderer, &fakeBusinesses{})

	ctrl.ReorderGroup(context.Background(), []int64{0})
	if reorderer.calls.Load() != 0 {
		t.Errorf("reorder calls = %d, want 0", reorderer.calls.Load())
	}
}

func TestReorder_ThroughOrderingAPI(t *testing.T) {
	api := newFakeAPI(t, []int64{5, 6})
	api.mock.Respond("POST /orders/5/reorder", testutil.Fail(map[string]any{"message": "ORDER_NOT_AVAILABLE"}))
	api.mock.Respond("/business/50", testutil.OK(map[string]any{"slug": "taco-shop"}))

	ctrl := newTestController(t, api.mock.URL(), genericConfig())
	ctx := context.Background()
	ctrl.Start(ctx)

	state := ctrl.Reorder(ctx, 5)

	// The fake API assigns business_id = id * 10.
	want := `{"loading":false,"error":true,"result":{"business":{"slug":"taco-shop"},"business_id":50,"message":"ORDER_NOT_AVAILABLE","orderId":5}}`
	if got := mustJSON(t, state); got != want {
		t.Errorf("state = %s, want %s", got, want)
	}
	if got := api.mock.RequestsTo("/business/50")[0].Query.Get("params"); got != "slug" {
		t.Errorf("params = %q, want slug", got)
	}
}

// newRetryingController uses the default retry budget so retries would
// show up as extra requests.
func newRetryingController(t *testing.T, baseURL string) *Controller {
	t.Helper()
	cfg := client.DefaultConfig(baseURL, "test-app")
	cfg.InitialBackoff = time.Millisecond
	api, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { api.Close() })

	ctrl, err := NewController(api, session.New("tkn", testUserID), genericConfig())
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}
	t.Cleanup(func() { ctrl.Close() })
	return ctrl
}

func TestReorder_ServerErrorStatusTakesEnrichment(t *testing.T) {
	api := newFakeAPI(t, []int64{5, 6})
	rejection := testutil.Fail([]string{"ORDER_NOT_AVAILABLE"})
	rejection.StatusCode = http.StatusInternalServerError
	api.mock.Respond("POST /orders/5/reorder", rejection)
	api.mock.Respond("/business/50", testutil.OK(map[string]any{"slug": "taco-shop"}))

	ctrl := newRetryingController(t, api.mock.URL())
	ctx := context.Background()
	ctrl.Start(ctx)

	state := ctrl.Reorder(ctx, 5)

	want := `{"loading":false,"error":true,"result":{"business":{"slug":"taco-shop"},"business_id":50,"errors":["ORDER_NOT_AVAILABLE"],"orderId":5}}`
	if got := mustJSON(t, state); got != want {
		t.Errorf("state = %s, want %s", got, want)
	}
	if n := len(api.mock.RequestsTo("/orders/5/reorder")); n != 1 {
		t.Errorf("reorder requests = %d, want 1", n)
	}
}

func TestReorder_SentOnceOnServerFailure(t *testing.T) {
	api := newFakeAPI(t, []int64{5})
	api.mock.Sequence("POST /orders/5/reorder",
		testutil.ServerError(),
		testutil.OK(map[string]any{"status": "ok"}),
	)

	ctrl := newRetryingController(t, api.mock.URL())
	state := ctrl.Reorder(context.Background(), 5)

	if !state.Error || len(state.Result.Messages) != 1 {
		t.Errorf("state = %s, want a single transport message", mustJSON(t, state))
	}
	if n := len(api.mock.RequestsTo("/orders/5/reorder")); n != 1 {
		t.Errorf("reorder requests = %d, want 1", n)
	}
}

func TestReorder_AfterClose(t *testing.T) {
	reorderer := &fakeReorderer{}
	ctrl := newReorderController(t, reorderer, &fakeBusinesses{})
	ctrl.Close()

	ctrl.Reorder(context.Background(), 5)
	if reorderer.calls.Load() != 0 {
		t.Errorf("reorder calls = %d after close, want 0", reorderer.calls.Load())
	}
}
