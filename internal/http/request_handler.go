package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/interpreter-brokerage/internal/application"
	"github.com/example/interpreter-brokerage/internal/lifecycle"
)

type requestService interface {
	CreateRequest(ctx context.Context, params application.CreateRequestParams) (lifecycle.ServiceRequest, error)
	ApplyAction(ctx context.Context, params application.RequestActionParams) (lifecycle.ServiceRequest, error)
	GetRequest(ctx context.Context, id string) (lifecycle.ServiceRequest, error)
	ListRequests(ctx context.Context, params application.ListRequestsParams) ([]lifecycle.ServiceRequest, error)
}

type RequestHandler struct {
	service   requestService
	responder responder
}

func NewRequestHandler(service requestService, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{service: service, responder: newResponder(logger)}
}

func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req requestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	request, err := h.service.CreateRequest(r.Context(), application.CreateRequestParams{
		Principal: principal,
		Input:     req.toInput(principal),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toRequestDTO(request))
}

func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	requestID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(requestID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRequestID)
		return
	}

	request, err := h.service.GetRequest(r.Context(), requestID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRequestDTO(request))
}

// Act applies a lifecycle action named by the trailing path segment.
func (h *RequestHandler) Act(w http.ResponseWriter, r *http.Request, action string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	requestID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(requestID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRequestID)
		return
	}

	lifecycleAction, ok := requestActionFromPath(action)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var req requestActionPayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
	}

	principal, _ := PrincipalFromContext(r.Context())

	request, err := h.service.ApplyAction(r.Context(), application.RequestActionParams{
		Principal:       principal,
		RequestID:       requestID,
		Action:          lifecycleAction,
		RejectionReason: req.Reason,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRequestDTO(request))
}

func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	requests, err := h.service.ListRequests(r.Context(), buildListRequestsParams(r.URL.Query(), principal))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRequestsResponse{Requests: toRequestDTOs(requests)})
}

func requestActionFromPath(action string) (lifecycle.RequestAction, bool) {
	switch action {
	case "confirm":
		return lifecycle.RequestActionConfirm, true
	case "start":
		return lifecycle.RequestActionStart, true
	case "complete":
		return lifecycle.RequestActionComplete, true
	case "cancel":
		return lifecycle.RequestActionCancel, true
	case "reject":
		return lifecycle.RequestActionReject, true
	}
	return "", false
}

func buildListRequestsParams(values url.Values, principal application.Principal) application.ListRequestsParams {
	params := application.ListRequestsParams{Principal: principal}

	if clientID := strings.TrimSpace(values.Get("client_id")); clientID != "" {
		params.ClientID = clientID
	}
	for _, status := range parseCSV(values.Get("statuses")) {
		params.Statuses = append(params.Statuses, lifecycle.RequestStatus(strings.ToUpper(status)))
	}

	return params
}

type requestPayload struct {
	ClientID       string `json:"client_id"`
	Type           string `json:"type"`
	Specialization string `json:"specialization"`
	LanguageFrom   string `json:"language_from"`
	LanguageTo     string `json:"language_to"`
	PreferredStart string `json:"preferred_start"`
	PreferredEnd   string `json:"preferred_end"`
	Urgency        string `json:"urgency"`
	WordCount      int    `json:"word_count"`
}

func (p requestPayload) toInput(principal application.Principal) application.RequestInput {
	clientID := strings.TrimSpace(p.ClientID)
	if clientID == "" {
		clientID = principal.UserID
	}
	return application.RequestInput{
		ClientID:       clientID,
		Type:           lifecycle.SessionType(strings.ToUpper(strings.TrimSpace(p.Type))),
		Specialization: strings.TrimSpace(p.Specialization),
		LanguageFrom:   strings.TrimSpace(p.LanguageFrom),
		LanguageTo:     strings.TrimSpace(p.LanguageTo),
		PreferredStart: parseTimePtr(p.PreferredStart),
		PreferredEnd:   parseTimePtr(p.PreferredEnd),
		Urgency:        lifecycle.UrgencyLevel(strings.ToUpper(strings.TrimSpace(p.Urgency))),
		WordCount:      p.WordCount,
	}
}

type requestActionPayload struct {
	Reason string `json:"reason"`
}

type listRequestsResponse struct {
	Requests []requestDTO `json:"requests"`
}

type requestDTO struct {
	ID              string  `json:"id"`
	ClientID        string  `json:"client_id"`
	Type            string  `json:"type"`
	Specialization  string  `json:"specialization"`
	LanguageFrom    string  `json:"language_from"`
	LanguageTo      string  `json:"language_to"`
	PreferredStart  *string `json:"preferred_start,omitempty"`
	PreferredEnd    *string `json:"preferred_end,omitempty"`
	Urgency         string  `json:"urgency"`
	WordCount       int     `json:"word_count,omitempty"`
	Status          string  `json:"status"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
	SessionID       string  `json:"session_id,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func toRequestDTO(request lifecycle.ServiceRequest) requestDTO {
	return requestDTO{
		ID:              request.ID,
		ClientID:        request.ClientID,
		Type:            string(request.Type),
		Specialization:  request.Specialization,
		LanguageFrom:    request.LanguageFrom,
		LanguageTo:      request.LanguageTo,
		PreferredStart:  formatTimePtr(request.PreferredStart),
		PreferredEnd:    formatTimePtr(request.PreferredEnd),
		Urgency:         string(request.Urgency),
		WordCount:       request.WordCount,
		Status:          string(request.Status),
		RejectionReason: request.RejectionReason,
		SessionID:       request.SessionID,
		CreatedAt:       request.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       request.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toRequestDTOs(requests []lifecycle.ServiceRequest) []requestDTO {
	if len(requests) == 0 {
		return nil
	}
	out := make([]requestDTO, 0, len(requests))
	for _, request := range requests {
		out = append(out, toRequestDTO(request))
	}
	return out
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

func parseTimePtr(value string) *time.Time {
	ts := parseTime(value)
	if ts.IsZero() {
		return nil
	}
	return &ts
}

func formatTimePtr(ts *time.Time) *string {
	if ts == nil || ts.IsZero() {
		return nil
	}
	formatted := ts.UTC().Format(time.RFC3339Nano)
	return &formatted
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
