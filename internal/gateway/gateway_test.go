package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Mayores-04/my-messaging-app/internal/bus"
	"github.com/Mayores-04/my-messaging-app/internal/chat"
	"github.com/Mayores-04/my-messaging-app/internal/identity"
	"github.com/Mayores-04/my-messaging-app/internal/live"
	"github.com/Mayores-04/my-messaging-app/internal/store"
)

var (
	alice = identity.Identity{Email: "alice@example.com", Name: "Alice Doe"}
	bob   = identity.Identity{Email: "bob@example.com", Name: "Bob Roe"}
)

type fixture struct {
	app    *fiber.App
	signer *identity.Signer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "gateway_test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	b := bus.New()
	svc := chat.NewService(db, b, zap.NewNop())
	signer := identity.NewSigner("gateway-test-secret", time.Hour)

	app := fiber.New()
	New(svc, signer, b, live.NewHub(b), zap.NewNop()).Register(app)

	for _, id := range []identity.Identity{alice, bob} {
		if err := svc.StoreUser(id); err != nil {
			t.Fatalf("store user %s: %v", id.Email, err)
		}
	}
	return &fixture{app: app, signer: signer}
}

// do performs an authenticated JSON request and decodes the envelope.
func (f *fixture) do(t *testing.T, as *identity.Identity, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		token, err := f.signer.Generate(*as)
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var envelope map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	return resp.StatusCode, envelope
}

func data(t *testing.T, envelope map[string]any) map[string]any {
	t.Helper()
	d, ok := envelope["data"].(map[string]any)
	if !ok {
		t.Fatalf("response has no data object: %v", envelope)
	}
	return d
}

func TestHealthIsPublic(t *testing.T) {
	f := newFixture(t)
	code, _ := f.do(t, nil, http.MethodGet, "/api/v1/health", nil)
	if code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", code)
	}
}

func TestRejectsMissingAndInvalidTokens(t *testing.T) {
	f := newFixture(t)

	code, envelope := f.do(t, nil, http.MethodGet, "/api/v1/friends/", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", code)
	}
	if envelope["success"] != false {
		t.Fatalf("no token envelope = %v, want success false", envelope)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("invalid token status = %d, want 401", resp.StatusCode)
	}
}

func TestFriendRequestOverHTTP(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, &alice, http.MethodPost, "/api/v1/friends/requests",
		map[string]any{"email": bob.Email})
	if code != http.StatusOK {
		t.Fatalf("send request status = %d, want 200", code)
	}

	// Bob sees it pending.
	code, envelope := f.do(t, &bob, http.MethodGet, "/api/v1/friends/requests", nil)
	if code != http.StatusOK {
		t.Fatalf("pending status = %d, want 200", code)
	}
	pending, ok := envelope["data"].([]any)
	if !ok || len(pending) != 1 {
		t.Fatalf("pending = %v, want one entry", envelope["data"])
	}
	entry := pending[0].(map[string]any)
	requestID := int64(entry["friendshipId"].(float64))

	code, _ = f.do(t, &bob, http.MethodPost,
		fmt.Sprintf("/api/v1/friends/requests/%d/accept", requestID), nil)
	if code != http.StatusOK {
		t.Fatalf("accept status = %d, want 200", code)
	}

	code, envelope = f.do(t, &alice, http.MethodGet, "/api/v1/friends/", nil)
	if code != http.StatusOK {
		t.Fatalf("friends status = %d, want 200", code)
	}
	friends, _ := envelope["data"].([]any)
	if len(friends) != 1 {
		t.Fatalf("alice has %d friends, want 1", len(friends))
	}
}

func TestMessageRoundTripOverHTTP(t *testing.T) {
	f := newFixture(t)

	code, envelope := f.do(t, &alice, http.MethodPost, "/api/v1/conversations/",
		map[string]any{"otherEmail": bob.Email})
	if code != http.StatusOK {
		t.Fatalf("create conversation status = %d, want 200", code)
	}
	convID := int64(data(t, envelope)["conversationId"].(float64))

	code, envelope = f.do(t, &alice, http.MethodPost,
		fmt.Sprintf("/api/v1/conversations/%d/messages", convID),
		map[string]any{"body": "hello over http"})
	if code != http.StatusOK {
		t.Fatalf("send message status = %d, want 200", code)
	}
	if data(t, envelope)["messageId"].(float64) <= 0 {
		t.Fatalf("messageId missing from %v", envelope)
	}

	code, envelope = f.do(t, &bob, http.MethodGet,
		fmt.Sprintf("/api/v1/conversations/%d/messages", convID), nil)
	if code != http.StatusOK {
		t.Fatalf("list messages status = %d, want 200", code)
	}
	msgs, _ := envelope["data"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("bob sees %d messages, want 1", len(msgs))
	}
}

func TestServiceErrorsMapToHTTPStatus(t *testing.T) {
	f := newFixture(t)

	// Missing conversation.
	code, envelope := f.do(t, &alice, http.MethodGet, "/api/v1/conversations/9999", nil)
	if code != http.StatusNotFound {
		t.Fatalf("missing conversation status = %d, want 404", code)
	}
	if envelope["success"] != false {
		t.Fatalf("error envelope = %v, want success false", envelope)
	}

	// Bob's conversation with himself is rejected before any lookup.
	code, _ = f.do(t, &bob, http.MethodPost, "/api/v1/conversations/",
		map[string]any{"otherEmail": bob.Email})
	if code != http.StatusBadRequest {
		t.Fatalf("self conversation status = %d, want 400", code)
	}

	// Carol has no business in alice and bob's conversation.
	carol := identity.Identity{Email: "carol@example.com", Name: "Carol Poe"}
	code, envelope = f.do(t, &alice, http.MethodPost, "/api/v1/conversations/",
		map[string]any{"otherEmail": bob.Email})
	if code != http.StatusOK {
		t.Fatalf("create conversation status = %d, want 200", code)
	}
	convID := int64(data(t, envelope)["conversationId"].(float64))
	code, _ = f.do(t, &carol, http.MethodGet,
		fmt.Sprintf("/api/v1/conversations/%d/messages", convID), nil)
	if code != http.StatusForbidden {
		t.Fatalf("outsider status = %d, want 403", code)
	}

	// Duplicate friend request conflicts.
	code, _ = f.do(t, &alice, http.MethodPost, "/api/v1/friends/requests",
		map[string]any{"email": bob.Email})
	if code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", code)
	}
	code, _ = f.do(t, &alice, http.MethodPost, "/api/v1/friends/requests",
		map[string]any{"email": bob.Email})
	if code != http.StatusConflict {
		t.Fatalf("duplicate request status = %d, want 409", code)
	}
}

func TestSignalRelayOverHTTP(t *testing.T) {
	f := newFixture(t)

	code, envelope := f.do(t, &alice, http.MethodPost, "/api/v1/conversations/",
		map[string]any{"otherEmail": bob.Email})
	if code != http.StatusOK {
		t.Fatalf("create conversation status = %d, want 200", code)
	}
	convID := int64(data(t, envelope)["conversationId"].(float64))

	code, _ = f.do(t, &alice, http.MethodPost,
		fmt.Sprintf("/api/v1/conversations/%d/signals", convID),
		map[string]any{"type": "call-request", "signal": "{}"})
	if code != http.StatusOK {
		t.Fatalf("send signal status = %d, want 200", code)
	}

	// The envelope lands in bob's inbox, not alice's.
	code, envelope = f.do(t, &bob, http.MethodGet,
		fmt.Sprintf("/api/v1/conversations/%d/signals", convID), nil)
	if code != http.StatusOK {
		t.Fatalf("bob pending status = %d, want 200", code)
	}
	if sigs, _ := envelope["data"].([]any); len(sigs) != 1 {
		t.Fatalf("bob sees %d signals, want 1", len(sigs))
	}

	code, envelope = f.do(t, &alice, http.MethodGet,
		fmt.Sprintf("/api/v1/conversations/%d/signals", convID), nil)
	if code != http.StatusOK {
		t.Fatalf("alice pending status = %d, want 200", code)
	}
	if sigs, _ := envelope["data"].([]any); len(sigs) != 0 {
		t.Fatalf("alice sees %d signals, want 0", len(sigs))
	}

	code, _ = f.do(t, &bob, http.MethodDelete,
		fmt.Sprintf("/api/v1/conversations/%d/signals", convID), nil)
	if code != http.StatusOK {
		t.Fatalf("clear status = %d, want 200", code)
	}
}

func TestRejectsBadSignalType(t *testing.T) {
	f := newFixture(t)

	code, envelope := f.do(t, &alice, http.MethodPost, "/api/v1/conversations/",
		map[string]any{"otherEmail": bob.Email})
	if code != http.StatusOK {
		t.Fatalf("create conversation status = %d, want 200", code)
	}
	convID := int64(data(t, envelope)["conversationId"].(float64))

	code, _ = f.do(t, &alice, http.MethodPost,
		fmt.Sprintf("/api/v1/conversations/%d/signals", convID),
		map[string]any{"type": "not-a-signal", "signal": "{}"})
	if code != http.StatusBadRequest {
		t.Fatalf("bad signal type status = %d, want 400", code)
	}
}
