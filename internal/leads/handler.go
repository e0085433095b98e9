package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/leadtriage/pkg/logging"
)

// Service is the query/update surface the admin API needs. The triage engine
// implements it so updates serialise with batch processing.
type Service interface {
	ListLeads(f Filter) []Lead
	LeadStats() Stats
	GetLead(id string) (Lead, error)
	UpdateLead(ctx context.Context, id string, patch Patch) (Lead, error)
}

// Handler handles admin HTTP requests for leads
type Handler struct {
	svc    Service
	logger *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(svc Service, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("leads: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// ListLeadsResponse is the response for listing leads
type ListLeadsResponse struct {
	Leads []Lead `json:"leads"`
	Count int    `json:"count"`
	Limit int    `json:"limit"`
}

// ListLeads handles GET /admin/leads
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		Limit:          50,
		ConversationID: q.Get("conversation_id"),
		Assignee:       q.Get("assignee"),
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 500 {
			filter.Limit = limit
		}
	}
	if status := q.Get("status"); status != "" {
		parsed, err := ParseStatus(status)
		if err != nil {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		filter.Status = parsed
	}
	if priority := q.Get("priority"); priority != "" {
		switch p := Priority(priority); p {
		case PriorityHigh, PriorityMedium, PriorityLow:
			filter.Priority = p
		default:
			http.Error(w, "invalid priority", http.StatusBadRequest)
			return
		}
	}
	if since := q.Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		filter.Since = ts
	}

	leads := h.svc.ListLeads(filter)
	writeJSON(w, http.StatusOK, ListLeadsResponse{Leads: leads, Count: len(leads), Limit: filter.Limit})
}

// Stats handles GET /admin/leads/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.LeadStats())
}

// GetLead handles GET /admin/leads/{leadID}
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.svc.GetLead(chi.URLParam(r, "leadID"))
	if errors.Is(err, ErrLeadNotFound) {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load lead", "error", err)
		http.Error(w, "failed to load lead", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// UpdateLeadRequest is the PATCH body. Status accepts any ParseStatus spelling.
type UpdateLeadRequest struct {
	Status   *string `json:"status,omitempty"`
	Assignee *string `json:"assignee,omitempty"`
	// OppID attaches a CRM opportunity id so later messages quoting it match.
	OppID *string `json:"oppId,omitempty"`
	Note  string  `json:"note,omitempty"`
}

// UpdateLead handles PATCH /admin/leads/{leadID}
func (h *Handler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	var req UpdateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	patch := Patch{Assignee: req.Assignee, Note: req.Note, Detail: map[string]string{"via": "admin"}}
	if req.Status != nil {
		status, err := ParseStatus(*req.Status)
		if err != nil {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		patch.Status = &status
	}
	if req.OppID != nil {
		current, err := h.svc.GetLead(leadID)
		if errors.Is(err, ErrLeadNotFound) {
			http.Error(w, "lead not found", http.StatusNotFound)
			return
		}
		if err != nil {
			h.logger.Error("failed to load lead", "error", err, "lead_id", leadID)
			http.Error(w, "failed to update lead", http.StatusInternalServerError)
			return
		}
		opp := strings.TrimSpace(*req.OppID)
		switch {
		case opp == "" || opp == current.Identifiers.OppID:
		case current.Identifiers.OppID != "":
			http.Error(w, "lead already has opportunity id "+current.Identifiers.OppID, http.StatusConflict)
			return
		default:
			ids := current.Identifiers
			ids.OppID = opp
			patch.Identifiers = &ids
		}
	}
	if patch.Status == nil && patch.Assignee == nil && patch.Identifiers == nil && patch.Note == "" {
		http.Error(w, "nothing to update", http.StatusBadRequest)
		return
	}

	lead, err := h.svc.UpdateLead(r.Context(), leadID, patch)
	switch {
	case errors.Is(err, ErrLeadNotFound):
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrEmptyPatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error("failed to update lead", "error", err, "lead_id", leadID)
		http.Error(w, "failed to update lead", http.StatusInternalServerError)
		return
	}

	h.logger.Info("lead updated", "lead_id", lead.ID, "status", lead.Status)
	writeJSON(w, http.StatusOK, lead)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
