// Package ws carries the room over websockets: one hub, one room, a
// small req/res/event wire protocol. The orchestration engine behind the
// Room interface never sees a connection.
package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/nicebartender/salon-server/engine"
)

// Room is the engine side of the transport boundary.
type Room interface {
	Join(name string, bot bool, persona string) error
	Leave(name string)
	Incoming(sender, to, text string)
}

type Hub struct {
	room      Room
	botSecret string

	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]bool
}

func NewHub(room Room, botSecret string) *Hub {
	return &Hub{
		room:       room,
		botSecret:  botSecret,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
			}
			h.mu.Unlock()
			if ok {
				close(client.done)
				close(client.send)
				if client.Joined() {
					h.room.Leave(client.Name())
				}
				slog.Info("client unregistered", "name", client.Name())
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Broadcast fans an event out to every connected client. This is the
// engine's at-least-once, in-order local broadcast primitive (slow
// clients may drop frames, see Client.SendJSON).
func (h *Hub) Broadcast(event string, payload any) {
	data, err := json.Marshal(NewEvent(event, payload))
	if err != nil {
		slog.Error("broadcast marshal error", "err", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			slog.Warn("client send buffer full, dropping event", "name", client.Name())
		}
	}
}

func (h *Hub) handleMessage(client *Client, data []byte) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("invalid message", "err", err)
		return
	}
	if msg.Type != "req" {
		slog.Warn("unknown message type", "type", msg.Type)
		return
	}

	req := Request{ID: msg.ID, Method: msg.Method, Params: msg.Params}
	switch req.Method {
	case "join":
		h.handleJoin(client, req)
	case "send":
		h.handleSend(client, req)
	default:
		client.SendJSON(NewErrorResponse(req.ID, "UNKNOWN_METHOD", "Unknown method: "+req.Method))
	}
}

type joinParams struct {
	Name     string `json:"name"`
	BotToken string `json:"botToken,omitempty"`
	Persona  string `json:"persona,omitempty"`
}

func (h *Hub) handleJoin(client *Client, req Request) {
	if client.Joined() {
		client.SendJSON(NewErrorResponse(req.ID, "ALREADY_JOINED", "Already joined"))
		return
	}
	var params joinParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		client.SendJSON(NewErrorResponse(req.ID, "INVALID_PARAMS", "Invalid join params"))
		return
	}

	bot := false
	if params.BotToken != "" {
		if params.BotToken != h.botSecret {
			client.SendJSON(NewErrorResponse(req.ID, "INVALID_TOKEN", "Bot token rejected"))
			return
		}
		bot = true
	}

	if err := h.room.Join(params.Name, bot, params.Persona); err != nil {
		code := "JOIN_FAILED"
		if errors.Is(err, engine.ErrNameTaken) {
			code = "NAME_TAKEN"
		}
		client.SendJSON(NewErrorResponse(req.ID, code, err.Error()))
		return
	}

	client.setJoined(params.Name)
	client.SendJSON(NewResponse(req.ID, map[string]any{
		"name": params.Name,
		"bot":  bot,
	}))
	slog.Info("client joined", "name", params.Name, "bot", bot)
}

type sendParams struct {
	Content string `json:"content"`
	To      string `json:"to,omitempty"`
}

func (h *Hub) handleSend(client *Client, req Request) {
	if !client.Joined() {
		client.SendJSON(NewErrorResponse(req.ID, "JOIN_REQUIRED", "Join first"))
		return
	}
	var params sendParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Content == "" {
		client.SendJSON(NewErrorResponse(req.ID, "INVALID_PARAMS", "content is required"))
		return
	}

	h.room.Incoming(client.Name(), params.To, params.Content)
	client.SendJSON(NewResponse(req.ID, map[string]any{"ok": true}))
}
