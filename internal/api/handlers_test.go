package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pairpad/internal/models"
	"pairpad/internal/session"
	"pairpad/internal/store"
	"pairpad/internal/utils"
)

func newTestHandlers(t *testing.T, jwtSecret []byte) (*Handlers, store.Store) {
	t.Helper()
	st, err := store.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	gateway := session.NewGateway(session.NewRegistry(), st, zap.NewNop())
	return NewHandlers(zap.NewNop(), gateway, jwtSecret), st
}

func addRoomID(ctx context.Context, id string) context.Context {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return context.WithValue(ctx, chi.RouteCtxKey, rctx)
}

func decodeBody(t *testing.T, body *bytes.Buffer, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
}

func newWSServer(t *testing.T, h *Handlers) (*httptest.Server, string) {
	t.Helper()
	router := chi.NewRouter()
	router.Get("/ws/rooms/{id}", h.RoomWS)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil))
	if rec.Body.String() != "ok" {
		t.Fatalf("expected ok, got %q", rec.Body.String())
	}
}

func TestCreateRoomThenValidate(t *testing.T) {
	h, _ := newTestHandlers(t, nil)

	rec := httptest.NewRecorder()
	h.CreateRoom(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rooms", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created models.CreateRoomResponse
	decodeBody(t, rec.Body, &created)
	if created.RoomID == "" {
		t.Fatalf("expected a room id in response")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/"+created.RoomID, nil)
	req = req.WithContext(addRoomID(req.Context(), created.RoomID))
	rec = httptest.NewRecorder()
	h.ValidateRoom(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var validity models.RoomValidityResponse
	decodeBody(t, rec.Body, &validity)
	if !validity.Valid {
		t.Fatalf("expected created room to be valid")
	}
}

func TestValidateUnknownRoom(t *testing.T) {
	h, _ := newTestHandlers(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/unknown", nil)
	req = req.WithContext(addRoomID(req.Context(), "unknown"))
	rec := httptest.NewRecorder()
	h.ValidateRoom(rec, req)

	// Unknown ids answer as data, not as an HTTP failure.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var validity models.RoomValidityResponse
	decodeBody(t, rec.Body, &validity)
	if validity.Valid {
		t.Fatalf("expected unknown room to be invalid")
	}
}

func TestAutocompleteHandler(t *testing.T) {
	h, _ := newTestHandlers(t, nil)

	body := bytes.NewBufferString(`{"code":"imp","cursorPosition":3,"language":"python"}`)
	rec := httptest.NewRecorder()
	h.Autocomplete(rec, httptest.NewRequest(http.MethodPost, "/api/v1/autocomplete", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp models.AutocompleteResponse
	decodeBody(t, rec.Body, &resp)
	if resp.Suggestion != "import os" {
		t.Fatalf("unexpected suggestion %q", resp.Suggestion)
	}

	rec = httptest.NewRecorder()
	h.Autocomplete(rec, httptest.NewRequest(http.MethodPost, "/api/v1/autocomplete", bytes.NewBufferString(`bad-json`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
}

// Omitting cursorPosition means "cursor at end of code"; an explicit value,
// including 0, is honored as given.
func TestAutocompleteDefaultCursor(t *testing.T) {
	h, _ := newTestHandlers(t, nil)

	body := bytes.NewBufferString(`{"code":"x = imp","language":"python"}`)
	rec := httptest.NewRecorder()
	h.Autocomplete(rec, httptest.NewRequest(http.MethodPost, "/api/v1/autocomplete", body))
	var resp models.AutocompleteResponse
	decodeBody(t, rec.Body, &resp)
	if resp.Suggestion != "import os" {
		t.Fatalf("expected end-of-code token to win with omitted cursor, got %q", resp.Suggestion)
	}

	body = bytes.NewBufferString(`{"code":"x = imp","cursorPosition":1,"language":"python"}`)
	rec = httptest.NewRecorder()
	h.Autocomplete(rec, httptest.NewRequest(http.MethodPost, "/api/v1/autocomplete", body))
	decodeBody(t, rec.Body, &resp)
	if resp.Suggestion != "x_value" {
		t.Fatalf("expected explicit cursor to pick the first token, got %q", resp.Suggestion)
	}
}

func TestRoomWSFlow(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	_, wsBase := newWSServer(t, h)

	connA, _, err := websocket.DefaultDialer.Dial(wsBase+"/ws/rooms/room1", nil)
	if err != nil {
		t.Fatalf("dial first websocket: %v", err)
	}
	defer connA.Close()

	var frame models.Frame
	if err := connA.ReadJSON(&frame); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if frame.Type != models.FrameInitialState || frame.Code != "" {
		t.Fatalf("expected empty initial state, got %#v", frame)
	}

	connB, _, err := websocket.DefaultDialer.Dial(wsBase+"/ws/rooms/room1", nil)
	if err != nil {
		t.Fatalf("dial second websocket: %v", err)
	}
	defer connB.Close()
	if err := connB.ReadJSON(&frame); err != nil || frame.Type != models.FrameInitialState {
		t.Fatalf("expected initial state for second client, got %#v err=%v", frame, err)
	}

	if err := connA.WriteJSON(models.Frame{Type: models.FrameCodeUpdate, Code: "x = 1"}); err != nil {
		t.Fatalf("send update: %v", err)
	}
	if err := connB.ReadJSON(&frame); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if frame.Type != models.FrameCodeUpdate || frame.Code != "x = 1" {
		t.Fatalf("expected update to reach peer, got %#v", frame)
	}

	// The sender must not receive its own update.
	_ = connA.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if err := connA.ReadJSON(&frame); err == nil {
		t.Fatalf("expected no echo to sender, got %#v", frame)
	}

	// A late joiner is seeded with the committed document.
	connC, _, err := websocket.DefaultDialer.Dial(wsBase+"/ws/rooms/room1", nil)
	if err != nil {
		t.Fatalf("dial third websocket: %v", err)
	}
	defer connC.Close()
	if err := connC.ReadJSON(&frame); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if frame.Type != models.FrameInitialState || frame.Code != "x = 1" {
		t.Fatalf("expected late joiner seeded with x = 1, got %#v", frame)
	}

	// The edit also produced the durable row that validity reports on.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/room1", nil)
	req = req.WithContext(addRoomID(req.Context(), "room1"))
	rec := httptest.NewRecorder()
	h.ValidateRoom(rec, req)
	var validity models.RoomValidityResponse
	decodeBody(t, rec.Body, &validity)
	if !validity.Valid {
		t.Fatalf("expected room durable after first edit")
	}
}

func TestRoomWSUnknownFrameIgnored(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	_, wsBase := newWSServer(t, h)

	conn, _, err := websocket.DefaultDialer.Dial(wsBase+"/ws/rooms/room1", nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	var frame models.Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read initial state: %v", err)
	}

	if err := conn.WriteJSON(models.Frame{Type: "bogus"}); err != nil {
		t.Fatalf("send unknown frame: %v", err)
	}
	// Still connected: a real update round-trips afterwards.
	if err := conn.WriteJSON(models.Frame{Type: models.FrameCodeUpdate, Code: "ok"}); err != nil {
		t.Fatalf("send update: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/room1", nil)
	req = req.WithContext(addRoomID(req.Context(), "room1"))
	waitUntil(t, func() bool {
		rec := httptest.NewRecorder()
		h.ValidateRoom(rec, req)
		var validity models.RoomValidityResponse
		decodeBody(t, rec.Body, &validity)
		return validity.Valid
	})
}

func TestRoomWSPersistFailureKeepsConnection(t *testing.T) {
	h, st := newTestHandlers(t, nil)
	_, wsBase := newWSServer(t, h)

	conn, _, err := websocket.DefaultDialer.Dial(wsBase+"/ws/rooms/room1", nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	var frame models.Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read initial state: %v", err)
	}

	// Kill the store so the next edit cannot durably commit.
	st.Close()

	if err := conn.WriteJSON(models.Frame{Type: models.FrameCodeUpdate, Code: "lost"}); err != nil {
		t.Fatalf("send update: %v", err)
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if frame.Type != models.FrameError {
		t.Fatalf("expected error frame, got %#v", frame)
	}

	// The connection survives the failed edit.
	if err := conn.WriteJSON(models.Frame{Type: "noop"}); err != nil {
		t.Fatalf("connection should still accept frames: %v", err)
	}
}

func TestRoomWSAuth(t *testing.T) {
	secret := []byte("test-secret")
	h, _ := newTestHandlers(t, secret)
	_, wsBase := newWSServer(t, h)

	// No token.
	_, resp, err := websocket.DefaultDialer.Dial(wsBase+"/ws/rooms/room1", nil)
	if err == nil {
		t.Fatalf("expected handshake rejection without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %#v", resp)
	}

	// Token issued for a different room.
	otherToken, err := utils.GenerateRoomToken("other-room", "u1", secret)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	_, resp, err = websocket.DefaultDialer.Dial(wsBase+"/ws/rooms/room1?token="+otherToken, nil)
	if err == nil {
		t.Fatalf("expected handshake rejection for mismatched room")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %#v", resp)
	}

	// Valid token in the query string.
	token, err := utils.GenerateRoomToken("room1", "u1", secret)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsBase+"/ws/rooms/room1?token="+token, nil)
	if err != nil {
		t.Fatalf("dial with valid token: %v", err)
	}
	var frame models.Frame
	if err := conn.ReadJSON(&frame); err != nil || frame.Type != models.FrameInitialState {
		t.Fatalf("expected initial state, got %#v err=%v", frame, err)
	}
	conn.Close()

	// Valid token in the Authorization header.
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err = websocket.DefaultDialer.Dial(wsBase+"/ws/rooms/room1", header)
	if err != nil {
		t.Fatalf("dial with auth header: %v", err)
	}
	defer conn.Close()
	if err := conn.ReadJSON(&frame); err != nil || frame.Type != models.FrameInitialState {
		t.Fatalf("expected initial state, got %#v err=%v", frame, err)
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met")
}
