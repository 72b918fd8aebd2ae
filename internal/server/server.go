package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tradewatch/internal/config"
	"tradewatch/internal/event"
	"tradewatch/internal/logger"
	"tradewatch/internal/store"
)

// Server wires the HTTP boundary: ingest, listings, mutations, the
// websocket notification endpoint and the basic-auth page gate.
type Server struct {
	store store.Store
	hub   *event.Hub
	auth  BasicAuthConfig
	srv   *http.Server
}

func New(cfg *config.Config, st store.Store, hub *event.Hub) *Server {
	ttl, _ := cfg.CookieTTL()
	s := &Server{
		store: st,
		hub:   hub,
		auth: BasicAuthConfig{
			Username:     cfg.Auth.Username,
			Password:     cfg.Auth.Password,
			CookieSecret: cfg.Auth.CookieSecret,
			CookieTTL:    ttl,
		},
	}
	s.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
	}
	return s
}

// Router builds the route table. Exported so tests can drive the full
// middleware stack through httptest.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/trades", s.handleIngest).Methods(http.MethodPost)

	r.HandleFunc("/api/trading/accounts", s.handleAccounts).Methods(http.MethodGet)
	r.HandleFunc("/api/trading/accounts", s.handleUpdateAccount).Methods(http.MethodPut)
	r.HandleFunc("/api/trading/accounts", s.handleDeleteAccount).Methods(http.MethodDelete)
	r.HandleFunc("/api/trading/accounts-with-history", s.handleAccountsWithHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/trading/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/trading/stats", s.handleStats).Methods(http.MethodGet)

	r.HandleFunc("/api/categories", s.handleCategories).Methods(http.MethodGet)
	r.HandleFunc("/api/categories", s.handleCreateCategory).Methods(http.MethodPost)
	r.HandleFunc("/api/categories/accounts-count", s.handleAccountsCount).Methods(http.MethodGet)
	r.HandleFunc("/api/categories/{id:[0-9]+}", s.handleUpdateCategory).Methods(http.MethodPut)
	r.HandleFunc("/api/categories/{id:[0-9]+}", s.handleDeleteCategory).Methods(http.MethodDelete)

	r.HandleFunc("/ws", s.handleWebsocket)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	return basicAuth(s.auth, r)
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	logger.Info(context.Background(), "HTTP server listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown drains connections and closes the hub so websocket writers
// unblock.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ErrorWithErr(context.Background(), "Failed to encode response", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
