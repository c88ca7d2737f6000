package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bulk-user-provisioner/internal/assign"
	"bulk-user-provisioner/internal/gateway"
	"bulk-user-provisioner/internal/models"
	"bulk-user-provisioner/internal/ratelimit"
	"bulk-user-provisioner/internal/telemetry"
)

// Caller identity travels in this header; there is no ambient security
// context anywhere in the pipeline.
const actorHeader = "X-Actor-ID"

// Server wires HTTP handlers for submission, job status, and the
// synchronous assignment path.
type Server struct {
	gateway *gateway.Service
	assign  *assign.Service
	limiter *ratelimit.ActorBucket
}

// New constructs the API server. limiter may be nil.
func New(gw *gateway.Service, as *assign.Service, limiter *ratelimit.ActorBucket) *Server {
	return &Server{gateway: gw, assign: as, limiter: limiter}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/users/bulk", s.handleSubmitBulk)
		r.Get("/jobs/{id}", s.handleJobStatus)
		r.Post("/users/{id}/accounts", s.handleAssignAccounts)
		r.Put("/users/{id}/accounts", s.handleReplaceAccounts)
		r.Post("/accounts/onboard", s.handleOnboard)
		r.Get("/accounts/orphans", s.handleOrphans)
	})
	return r
}

func (s *Server) handleSubmitBulk(w http.ResponseWriter, r *http.Request) {
	actorID := r.Header.Get(actorHeader)
	if actorID == "" {
		http.Error(w, actorHeader+" header is required", http.StatusBadRequest)
		return
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(r.Context(), actorID)
		if err != nil {
			http.Error(w, "rate limit error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	jobID, err := s.gateway.SubmitBulkCSV(r.Context(), raw, actorID)
	if err != nil {
		if errors.Is(err, gateway.ErrEmptyUpload) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "submit failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.gateway.JobStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "job lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type accountIDsRequest struct {
	AccountIDs []string `json:"accountIds"`
}

func (s *Server) handleAssignAccounts(w http.ResponseWriter, r *http.Request) {
	actorID := r.Header.Get(actorHeader)
	if actorID == "" {
		http.Error(w, actorHeader+" header is required", http.StatusBadRequest)
		return
	}
	var req accountIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	userID := chi.URLParam(r, "id")
	assigned, err := s.assign.AssignAccounts(r.Context(), userID, req.AccountIDs, actorID)
	if err != nil {
		writeAssignError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"assigned": assigned})
}

func (s *Server) handleReplaceAccounts(w http.ResponseWriter, r *http.Request) {
	actorID := r.Header.Get(actorHeader)
	if actorID == "" {
		http.Error(w, actorHeader+" header is required", http.StatusBadRequest)
		return
	}
	var req accountIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	userID := chi.URLParam(r, "id")
	if err := s.assign.ReplaceAccounts(r.Context(), userID, req.AccountIDs, actorID); err != nil {
		writeAssignError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	actorID := r.Header.Get(actorHeader)
	if actorID == "" {
		http.Error(w, actorHeader+" header is required", http.StatusBadRequest)
		return
	}
	var req accountIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	accounts, err := s.assign.OnboardAccounts(r.Context(), req.AccountIDs, actorID)
	if err != nil {
		if errors.Is(err, assign.ErrNoAccounts) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "onboarding failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleOrphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := s.assign.OrphanAccounts(r.Context())
	if err != nil {
		http.Error(w, "orphan lookup failed", http.StatusInternalServerError)
		return
	}
	if orphans == nil {
		orphans = []models.Account{}
	}
	writeJSON(w, http.StatusOK, orphans)
}

func writeAssignError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assign.ErrUserNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, assign.ErrNotCustomer):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "assignment failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
