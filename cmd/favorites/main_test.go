package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/ordering-favorites/internal/testutil"
)

func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	content := fmt.Sprintf(`
api:
  base_url: %s
  app_id: test-app
  max_retries: 0
session:
  token: tkn
  user_id: 42
list:
  favorite_url: favorite_businesses
  original_url: business
  pagination:
    page_size: 10
log:
  level: error
`, baseURL)
	path := filepath.Join(t.TempDir(), "favorites.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--env-file", ""))
	err := cmd.Execute()
	return out.String(), err
}

func TestListCommand(t *testing.T) {
	mock := newTestMock(t)

	out, err := execute(t, "list", "--config", writeTestConfig(t, mock.URL()))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	var snap map[string]json.RawMessage
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("Failed to decode output %q: %v", out, err)
	}
	if ids := favoriteIDs(t, snap["favorite_list"]); len(ids) != 2 {
		t.Errorf("favorites = %v, want 2 entries", ids)
	}

	reqs := mock.RequestsTo("/users/42/favorite_businesses")
	if len(reqs) != 1 {
		t.Fatalf("reference requests = %d, want 1", len(reqs))
	}
	if got := reqs[0].Header.Get("X-App-X"); got != "test-app" {
		t.Errorf("X-App-X = %q, want test-app", got)
	}
}

func TestListCommand_ServerFailure(t *testing.T) {
	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)
	mock.Respond("GET /users/42/favorite_businesses", testutil.Fail([]string{"SESSION_EXPIRED"}))

	out, err := execute(t, "list", "--config", writeTestConfig(t, mock.URL()))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(out, "SESSION_EXPIRED") {
		t.Errorf("output %q does not carry the server error", out)
	}
}

func TestReorderCommand(t *testing.T) {
	mock := newTestMock(t)
	mock.Respond("POST /orders/5/reorder", testutil.OK(map[string]any{"uuid": "cart-1"}))

	out, err := execute(t, "reorder", "5", "--config", writeTestConfig(t, mock.URL()))
	if err != nil {
		t.Fatalf("reorder failed: %v", err)
	}
	if !strings.Contains(out, `"orderId": 5`) {
		t.Errorf("output %q missing orderId", out)
	}
}

func TestReorderCommand_Failure(t *testing.T) {
	mock := newTestMock(t)
	mock.Respond("POST /orders/5/reorder", testutil.Fail([]string{"ORDER_NOT_FOUND"}))

	_, err := execute(t, "reorder", "5", "--config", writeTestConfig(t, mock.URL()))
	if err != errReorderFailed {
		t.Errorf("err = %v, want errReorderFailed", err)
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"3", "17"})
	if err != nil || len(ids) != 2 || ids[0] != 3 || ids[1] != 17 {
		t.Errorf("parseIDs() = %v, %v", ids, err)
	}
	for _, bad := range []string{"0", "-1", "abc"} {
		if _, err := parseIDs([]string{bad}); err == nil {
			t.Errorf("parseIDs(%q) expected error", bad)
		}
	}
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "favorites.yaml")
	if err := os.WriteFile(path, []byte("list:\n  kind: store\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := execute(t, "list", "--config", path); err == nil {
		t.Error("expected config error")
	}
}
