package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pairpad/internal/models"
	"pairpad/internal/session"
	"pairpad/internal/suggest"
	"pairpad/internal/utils"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type Handlers struct {
	log     *zap.Logger
	gateway *session.Gateway
	// jwtSecret enables room-token checks on the WS endpoint when non-empty.
	jwtSecret []byte
}

func NewHandlers(log *zap.Logger, gateway *session.Gateway, jwtSecret []byte) *Handlers {
	return &Handlers{log: log, gateway: gateway, jwtSecret: jwtSecret}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// CreateRoom allocates a fresh room and persists its initial empty document.
func (h *Handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := h.gateway.CreateRoom(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}
	writeJSON(w, http.StatusCreated, models.CreateRoomResponse{RoomID: id})
}

// ValidateRoom reports whether a durable room exists, as data rather than a
// failure: unknown ids answer {"valid": false} with status 200.
func (h *Handlers) ValidateRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exists, err := h.gateway.RoomExists(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up room")
		return
	}
	writeJSON(w, http.StatusOK, models.RoomValidityResponse{Valid: exists})
}

func (h *Handlers) Autocomplete(w http.ResponseWriter, r *http.Request) {
	var req models.AutocompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cursor := len(req.Code)
	if req.CursorPosition != nil {
		cursor = *req.CursorPosition
	}
	s := suggest.Suggest(req.Code, cursor, req.Language)
	writeJSON(w, http.StatusOK, models.AutocompleteResponse{Suggestion: s})
}

// RoomWS is the collaboration endpoint. After the upgrade the connection
// joins the room, receives the current document, and every subsequent
// code_update it sends is applied and fanned out to its peers. The deferred
// Leave runs exactly once per connection, on any exit path.
func (h *Handlers) RoomWS(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	if len(h.jwtSecret) > 0 {
		if !h.authorizeWS(w, r, roomID) {
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// The connection outlives any request deadline set by middleware, so
	// gateway calls run on a background context for the life of the socket.
	ctx := context.Background()

	client := session.NewClient(conn)
	defer h.gateway.Leave(roomID, client)

	if err := h.gateway.Join(ctx, roomID, client); err != nil {
		h.log.Warn("join failed", zap.String("room", roomID), zap.Error(err))
		return
	}

	for {
		var frame models.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case models.FrameCodeUpdate:
			if err := h.gateway.ApplyEdit(ctx, roomID, frame.Code, client); err != nil {
				// The edit did not durably commit; tell the sender and keep
				// the connection alive.
				_ = client.Send(models.Frame{Type: models.FrameError, Message: "failed to save edit"})
			}
		default:
			h.log.Debug("ignoring unknown frame type", zap.String("type", frame.Type))
		}
	}
}

// authorizeWS validates the room token from the query string or the
// Authorization header and checks it was issued for this room.
func (h *Handlers) authorizeWS(w http.ResponseWriter, r *http.Request, roomID string) bool {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		extracted, err := utils.ExtractTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			http.Error(w, "missing room token", http.StatusUnauthorized)
			return false
		}
		tokenStr = extracted
	}

	claims, err := utils.ValidateRoomToken(tokenStr, h.jwtSecret)
	if err != nil || claims.RoomID != roomID {
		http.Error(w, "invalid room token", http.StatusForbidden)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
