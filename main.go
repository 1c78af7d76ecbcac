package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/nicebartender/salon-server/db"
	"github.com/nicebartender/salon-server/engine"
	"github.com/nicebartender/salon-server/llm"
	"github.com/nicebartender/salon-server/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})))

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	personas, err := engine.LoadPersonas(cfg.PersonaFile)
	if err != nil {
		return err
	}

	limiter := llm.NewLimiter(llm.NewClient(cfg.ProviderURL, cfg.ProviderKey, cfg.Model), cfg.CallGap)
	defer limiter.Close()

	var hub *ws.Hub
	eng := engine.New(slog.Default(), engine.DefaultOptions(), database, database, limiter,
		broadcasterFunc(func(event string, payload any) { hub.Broadcast(event, payload) }), personas)
	hub = ws.NewHub(eng, cfg.BotSecret)

	eng.Start()
	defer eng.Stop()
	go hub.Run()

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade failed", "err", err)
			return
		}
		client := ws.NewClient(hub, conn)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	})

	// Health check
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	slog.Info("salon-server starting", "addr", cfg.ListenAddr)
	return http.ListenAndServe(cfg.ListenAddr, nil)
}

// broadcasterFunc adapts a closure to engine.Broadcaster so the hub can
// be constructed after the engine it feeds.
type broadcasterFunc func(event string, payload any)

func (f broadcasterFunc) Broadcast(event string, payload any) { f(event, payload) }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
