package models

// Frame is the flat JSON message exchanged over a room WebSocket.
// Type is one of "initial_state", "code_update" or "error".
type Frame struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	FrameInitialState = "initial_state"
	FrameCodeUpdate   = "code_update"
	FrameError        = "error"
)

type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

type RoomValidityResponse struct {
	Valid bool `json:"valid"`
}

// AutocompleteRequest carries the document and cursor for a suggestion.
// CursorPosition is a pointer so an omitted field defaults to the end of the
// code rather than position 0.
type AutocompleteRequest struct {
	Code           string `json:"code"`
	CursorPosition *int   `json:"cursorPosition"`
	Language       string `json:"language"`
}

type AutocompleteResponse struct {
	Suggestion string `json:"suggestion"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
