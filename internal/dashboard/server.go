package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"auctionhouse/internal/config"
)

// Server runs the dashboard's HTTP/WebSocket API (teacher's api/server.go).
type Server struct {
	cfg      config.DashboardConfig
	provider Provider
	fullCfg  config.Config
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer wires routes and the WebSocket hub.
func NewServer(cfg config.DashboardConfig, provider Provider, fullCfg config.Config, logger *slog.Logger) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(provider, fullCfg, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)
	mux.Handle("/", http.FileServer(http.Dir("web")))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		provider: provider,
		fullCfg:  fullCfg,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "dashboard-server"),
	}
}

// Start runs the hub and blocks serving HTTP until Stop is called.
func (s *Server) Start() error {
	go s.hub.Run()

	s.logger.Info("dashboard server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping dashboard server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// BroadcastSnapshot pushes a full dashboard snapshot to every client, on top
// of the per-commodity pushes. Nothing in this module calls it on a schedule.
func (s *Server) BroadcastSnapshot() {
	s.hub.BroadcastEvent(NewSnapshotEvent(BuildSnapshot(s.provider, s.fullCfg)))
}

// Hub exposes the WebSocket hub so a Publisher adapter can push
// per-commodity events as the house resolves each tick.
func (s *Server) Hub() *Hub {
	return s.hub
}
