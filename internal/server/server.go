package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aipsych-founder/AIPsych/internal/config"
	"github.com/aipsych-founder/AIPsych/internal/logging"
	"github.com/aipsych-founder/AIPsych/internal/token"
)

// TokenRequest is the body of POST /token. Room falls back to the
// configured default room when omitted.
type TokenRequest struct {
	Identity string `json:"identity"`
	Room     string `json:"room,omitempty"`
}

// TokenResponse is returned on successful issuance.
type TokenResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// Server is the stateless credential issuer. It holds no mutable state
// beyond its configuration, so instances can be replicated freely.
type Server struct {
	cfg    *config.Config
	issuer *token.Issuer
}

// New creates a Server. The issuer stays nil when signing credentials
// are missing; /token then reports the configuration failure instead of
// silently degrading.
func New(cfg *config.Config) *Server {
	s := &Server{cfg: cfg}
	if cfg.HasSigningCredentials() {
		issuer, err := token.NewIssuer(cfg.APIKey, cfg.APISecret, cfg.TokenTTL)
		if err == nil {
			s.issuer = issuer
		}
	}
	return s
}

// Router builds the chi router for the token server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(allowAllCORS)

	r.Post("/token", s.handleToken)
	r.Get("/healthz", s.handleHealth)
	return r
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("token server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "invalid_request",
			"details": err.Error(),
		})
		return
	}
	if req.Identity == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "invalid_request",
			"details": "identity is required",
		})
		return
	}
	if req.Room == "" {
		req.Room = s.cfg.DefaultRoom
	}

	if s.issuer == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "LIVEKIT_API_KEY/SECRET not set on server.",
		})
		return
	}

	signed, err := s.issuer.Issue(req.Identity, req.Room)
	if err != nil {
		var genErr *token.GenerationError
		details := err.Error()
		if errors.As(err, &genErr) {
			details = genErr.Cause
		}
		logging.Errorf("token generation failed for %q: %v", req.Identity, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "token_generation_failed",
			"details": details,
		})
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: signed, URL: s.cfg.LiveKitURL})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// allowAllCORS permits any origin, method, and header. This is the dev
// default so a local frontend can call /token; production deployments
// must restrict it to the frontend origin or add an auth layer.
func allowAllCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
