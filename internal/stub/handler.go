package stub

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/comigor/triagem-go/internal/logger"
)

// wireTime is the naive timestamp layout the triage service emits.
const wireTime = "2006-01-02T15:04:05.000000"

type messageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type messageResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type conversationRequest struct {
	PhoneNumber string `json:"numero_paciente"`
}

type conversationResponse struct {
	SessionID string `json:"session_id"`
}

type rowResponse struct {
	SessionID   string `json:"session_id"`
	Timestamp   string `json:"timestamp"`
	LastMessage string `json:"last_message"`
}

type recordResponse struct {
	Cargo     string `json:"cargo"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
}

// Handler serves the triage service endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// NewRouter mounts the handler under /chat with request logging.
func NewRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/chat", NewHandler(svc).RegisterRoutes)
	return r
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/message", h.handlePostMessage)
	r.Get("/messages/{sessionID}", h.handleMessages)
	r.Get("/triage/{sessionID}", h.handleTriage)
	r.Get("/{phone}", h.handleList)
	r.Post("/", h.handleCreate)
}

func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, id, err := h.svc.Post(r.Context(), req.SessionID, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: reply, SessionID: id})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PhoneNumber == "" {
		respondError(w, http.StatusBadRequest, "numero_paciente is required")
		return
	}

	id, err := h.svc.Create(r.Context(), req.PhoneNumber)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, conversationResponse{SessionID: id})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.List(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]rowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowResponse{
			SessionID:   row.SessionID,
			Timestamp:   row.Timestamp.UTC().Format(wireTime),
			LastMessage: row.LastMessage,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.Messages(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, recordResponse{
			Cargo:     rec.Cargo,
			Body:      rec.Body,
			Timestamp: rec.CreatedAt.UTC().Format(wireTime),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleTriage(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Triage(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	logger.L.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	respondError(w, http.StatusInternalServerError, "internal error")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.L.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
