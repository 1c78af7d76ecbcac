package ws

import "encoding/json"

// wireMessage is the type-peek for incoming frames.
type wireMessage struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Request is a parsed incoming request.
type Request struct {
	ID     string
	Method string
	Params json.RawMessage
}

// Response is an outgoing reply to one request.
type Response struct {
	Type    string     `json:"type"`
	ID      string     `json:"id"`
	OK      bool       `json:"ok"`
	Payload any        `json:"payload,omitempty"`
	Error   *WireError `json:"error,omitempty"`
}

type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event is an outgoing broadcast frame.
type Event struct {
	Type    string `json:"type"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

func NewResponse(id string, payload any) Response {
	return Response{Type: "res", ID: id, OK: true, Payload: payload}
}

func NewErrorResponse(id, code, message string) Response {
	return Response{
		Type:  "res",
		ID:    id,
		OK:    false,
		Error: &WireError{Code: code, Message: message},
	}
}

func NewEvent(event string, payload any) Event {
	return Event{Type: "event", Event: event, Payload: payload}
}
