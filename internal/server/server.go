package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"factoryScope/internal/model"
	"factoryScope/internal/projection"
	"factoryScope/internal/storage"
)

// Server exposes the webhook ingestion endpoint and the read-model API.
type Server struct {
	pipeline *projection.Pipeline
	stores   storage.Stores
	logger   *zap.Logger
	router   *mux.Router
}

// New builds the HTTP server and its routes.
func New(pipeline *projection.Pipeline, stores storage.Stores, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		pipeline: pipeline,
		stores:   stores,
		logger:   logger,
		router:   mux.NewRouter(),
	}

	s.router.HandleFunc("/webhooks/factory", s.handleWebhook).Methods("POST")
	s.router.HandleFunc("/api/tokens", s.handleListTokens).Methods("GET")
	s.router.HandleFunc("/api/tokens/{address}", s.handleGetToken).Methods("GET")
	s.router.HandleFunc("/api/tokens/{address}/trades", s.handleListTrades).Methods("GET")
	s.router.HandleFunc("/api/users/{address}", s.handleGetUser).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	return s
}

// Handler returns the router for mounting on an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type webhookResponse struct {
	Status  string             `json:"status"`
	Summary projection.Summary `json:"summary"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload model.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.logger.Warn("webhook body not decodable", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "bad_request", Error: "invalid JSON body"})
		return
	}

	summary, err := s.pipeline.ProcessDelivery(r.Context(), payload)
	if errors.Is(err, projection.ErrMalformedPayload) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "bad_request", Error: err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("delivery processing failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "error", Error: "internal error"})
		return
	}

	// A non-2xx answer makes the source redeliver the block; idempotent
	// projection makes the repeat safe, so failed events get another chance.
	if summary.EventsFailed > 0 {
		writeJSON(w, http.StatusInternalServerError, webhookResponse{Status: "partial_failure", Summary: summary})
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Status: "success", Summary: summary})
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.stores.Tokens.List(r.Context())
	if err != nil {
		s.logger.Error("token list failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "error", Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": tokens,
		"count":  len(tokens),
	})
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	address, ok := requireAddress(w, r)
	if !ok {
		return
	}

	token, err := s.stores.Tokens.Get(r.Context(), address)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Status: "not_found", Error: "token not found"})
		return
	}
	if err != nil {
		s.logger.Error("token lookup failed", zap.Error(err), zap.String("token", address))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "error", Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	address, ok := requireAddress(w, r)
	if !ok {
		return
	}

	from, err := parseUnixParam(r, "from")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "bad_request", Error: "invalid from parameter"})
		return
	}
	to, err := parseUnixParam(r, "to")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "bad_request", Error: "invalid to parameter"})
		return
	}

	trades, err := s.stores.Trades.ListByToken(r.Context(), address, from, to)
	if err != nil {
		s.logger.Error("trade list failed", zap.Error(err), zap.String("token", address))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "error", Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	address, ok := requireAddress(w, r)
	if !ok {
		return
	}

	user, err := s.stores.Users.Get(r.Context(), address)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Status: "not_found", Error: "user not found"})
		return
	}
	if err != nil {
		s.logger.Error("user lookup failed", zap.Error(err), zap.String("user", address))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "error", Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireAddress validates and lower-cases the address path variable.
func requireAddress(w http.ResponseWriter, r *http.Request) (string, bool) {
	address := mux.Vars(r)["address"]
	if !common.IsHexAddress(address) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "bad_request", Error: "invalid address"})
		return "", false
	}
	return strings.ToLower(address), true
}

func parseUnixParam(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
