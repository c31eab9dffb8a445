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
	"github.com/example/interpreter-brokerage/internal/booking"
	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/pricing"
	"github.com/example/interpreter-brokerage/internal/rating"
)

type sessionService interface {
	CreateSession(ctx context.Context, params application.CreateSessionParams) (lifecycle.Session, error)
	ApplyAction(ctx context.Context, params application.SessionActionParams) (lifecycle.Session, error)
	Reschedule(ctx context.Context, params application.RescheduleSessionParams) (lifecycle.RescheduleResult, error)
	Rate(ctx context.Context, params application.RateSessionParams) (lifecycle.Session, error)
	CheckConflict(ctx context.Context, interpreterID string, candidate booking.Interval, excludeSessionID string) (booking.Verdict, error)
	GetSession(ctx context.Context, id string) (lifecycle.Session, error)
	ListSessions(ctx context.Context, params application.ListSessionsParams) ([]lifecycle.Session, error)
}

type SessionHandler struct {
	service   sessionService
	responder responder
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, responder: newResponder(logger)}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req sessionPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	session, err := h.service.CreateSession(r.Context(), application.CreateSessionParams{
		Principal: principal,
		Input:     req.toInput(principal),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toSessionDTO(session))
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	session, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionDTO(session))
}

// Act applies the lifecycle action named by the trailing path segment.
// Reschedule and rating requests carry their own payloads and are dispatched
// separately from the plain state transitions.
func (h *SessionHandler) Act(w http.ResponseWriter, r *http.Request, action string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	switch action {
	case "reschedule":
		h.reschedule(w, r, sessionID)
		return
	case "ratings":
		h.rate(w, r, sessionID)
		return
	}

	lifecycleAction, ok := sessionActionFromPath(action)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var req sessionActionPayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
	}

	principal, _ := PrincipalFromContext(r.Context())

	session, err := h.service.ApplyAction(r.Context(), application.SessionActionParams{
		Principal:    principal,
		SessionID:    sessionID,
		Action:       lifecycleAction,
		ActualStart:  parseTimePtr(req.ActualStart),
		ActualEnd:    parseTimePtr(req.ActualEnd),
		Cancellation: req.toCancellation(principal),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionDTO(session))
}

func (h *SessionHandler) reschedule(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req reschedulePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	result, err := h.service.Reschedule(r.Context(), application.RescheduleSessionParams{
		Principal: principal,
		SessionID: sessionID,
		NewStart:  parseTime(req.NewStart),
		NewEnd:    parseTime(req.NewEnd),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, rescheduleResponse{
		Old: toSessionDTO(result.Old),
		New: toSessionDTO(result.New),
	})
}

func (h *SessionHandler) rate(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req ratingPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	session, err := h.service.Rate(r.Context(), application.RateSessionParams{
		Principal: principal,
		SessionID: sessionID,
		Score:     req.toScore(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toSessionDTO(session))
}

func (h *SessionHandler) CheckConflict(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req conflictCheckPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	interpreterID := strings.TrimSpace(req.InterpreterID)
	if interpreterID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInterpreterID)
		return
	}

	verdict, err := h.service.CheckConflict(r.Context(), interpreterID, booking.Interval{
		Start: parseTime(req.Start),
		End:   parseTime(req.End),
	}, strings.TrimSpace(req.ExcludeSessionID))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, conflictCheckResponse{
		Bookable:      verdict.Bookable,
		ConflictsWith: verdict.ConflictsWith,
	})
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	sessions, err := h.service.ListSessions(r.Context(), buildListSessionsParams(r.URL.Query(), principal))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSessionsResponse{Sessions: toSessionDTOs(sessions)})
}

func sessionActionFromPath(action string) (lifecycle.Action, bool) {
	switch action {
	case "confirm":
		return lifecycle.ActionConfirm, true
	case "start":
		return lifecycle.ActionStart, true
	case "complete":
		return lifecycle.ActionComplete, true
	case "cancel":
		return lifecycle.ActionCancel, true
	case "no-show":
		return lifecycle.ActionMarkNoShow, true
	}
	return "", false
}

func buildListSessionsParams(values url.Values, principal application.Principal) application.ListSessionsParams {
	params := application.ListSessionsParams{Principal: principal}

	params.ClientID = strings.TrimSpace(values.Get("client_id"))
	params.InterpreterID = strings.TrimSpace(values.Get("interpreter_id"))
	for _, status := range parseCSV(values.Get("statuses")) {
		params.Statuses = append(params.Statuses, lifecycle.SessionStatus(strings.ToUpper(status)))
	}
	if after := parseTime(values.Get("starts_after")); !after.IsZero() {
		params.StartsAfter = &after
	}
	if before := parseTime(values.Get("ends_before")); !before.IsZero() {
		params.EndsBefore = &before
	}

	return params
}

type sessionPayload struct {
	RequestID      string       `json:"request_id"`
	ClientID       string       `json:"client_id"`
	InterpreterID  string       `json:"interpreter_id"`
	Type           string       `json:"type"`
	Specialization string       `json:"specialization"`
	LanguageFrom   string       `json:"language_from"`
	LanguageTo     string       `json:"language_to"`
	ScheduledStart string       `json:"scheduled_start"`
	ScheduledEnd   string       `json:"scheduled_end"`
	HourlyRate     float64      `json:"hourly_rate"`
	WordCount      int          `json:"word_count"`
	AdditionalFees []feePayload `json:"additional_fees"`
}

func (p sessionPayload) toInput(principal application.Principal) application.SessionInput {
	clientID := strings.TrimSpace(p.ClientID)
	if clientID == "" {
		clientID = principal.UserID
	}
	fees := make([]pricing.Fee, 0, len(p.AdditionalFees))
	for _, fee := range p.AdditionalFees {
		fees = append(fees, pricing.Fee{Label: strings.TrimSpace(fee.Label), Amount: fee.Amount})
	}
	if len(fees) == 0 {
		fees = nil
	}
	return application.SessionInput{
		RequestID:      strings.TrimSpace(p.RequestID),
		ClientID:       clientID,
		InterpreterID:  strings.TrimSpace(p.InterpreterID),
		Type:           lifecycle.SessionType(strings.ToUpper(strings.TrimSpace(p.Type))),
		Specialization: strings.TrimSpace(p.Specialization),
		LanguageFrom:   strings.TrimSpace(p.LanguageFrom),
		LanguageTo:     strings.TrimSpace(p.LanguageTo),
		ScheduledStart: parseTime(p.ScheduledStart),
		ScheduledEnd:   parseTime(p.ScheduledEnd),
		HourlyRate:     p.HourlyRate,
		WordCount:      p.WordCount,
		AdditionalFees: fees,
	}
}

type feePayload struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

type sessionActionPayload struct {
	ActualStart string `json:"actual_start"`
	ActualEnd   string `json:"actual_end"`
	Reason      string `json:"reason"`
	Category    string `json:"category"`
}

func (p sessionActionPayload) toCancellation(principal application.Principal) *lifecycle.Cancellation {
	if strings.TrimSpace(p.Reason) == "" && strings.TrimSpace(p.Category) == "" {
		return nil
	}
	return &lifecycle.Cancellation{
		Reason:      strings.TrimSpace(p.Reason),
		Category:    lifecycle.CancellationCategory(strings.ToUpper(strings.TrimSpace(p.Category))),
		CancelledBy: principal.UserID,
	}
}

type reschedulePayload struct {
	NewStart string `json:"new_start"`
	NewEnd   string `json:"new_end"`
}

type rescheduleResponse struct {
	Old sessionDTO `json:"old"`
	New sessionDTO `json:"new"`
}

type ratingPayload struct {
	Overall         int    `json:"overall"`
	Punctuality     int    `json:"punctuality"`
	Professionalism int    `json:"professionalism"`
	Accuracy        int    `json:"accuracy"`
	Communication   int    `json:"communication"`
	Comment         string `json:"comment"`
}

func (p ratingPayload) toScore() rating.Score {
	return rating.Score{
		Overall:         p.Overall,
		Punctuality:     p.Punctuality,
		Professionalism: p.Professionalism,
		Accuracy:        p.Accuracy,
		Communication:   p.Communication,
		Comment:         p.Comment,
	}
}

type conflictCheckPayload struct {
	InterpreterID    string `json:"interpreter_id"`
	Start            string `json:"start"`
	End              string `json:"end"`
	ExcludeSessionID string `json:"exclude_session_id"`
}

type conflictCheckResponse struct {
	Bookable      bool   `json:"bookable"`
	ConflictsWith string `json:"conflicts_with,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionDTO `json:"sessions"`
}

type sessionDTO struct {
	ID             string `json:"id"`
	RequestID      string `json:"request_id,omitempty"`
	ClientID       string `json:"client_id"`
	InterpreterID  string `json:"interpreter_id"`
	Type           string `json:"type"`
	Specialization string `json:"specialization"`
	LanguageFrom   string `json:"language_from"`
	LanguageTo     string `json:"language_to"`

	Status string `json:"status"`

	ScheduledStart        string  `json:"scheduled_start,omitempty"`
	ScheduledEnd          string  `json:"scheduled_end,omitempty"`
	ActualStart           *string `json:"actual_start,omitempty"`
	ActualEnd             *string `json:"actual_end,omitempty"`
	ActualDurationMinutes int     `json:"actual_duration_minutes,omitempty"`

	HourlyRate     float64  `json:"hourly_rate"`
	WordCount      int      `json:"word_count,omitempty"`
	AdditionalFees []feeDTO `json:"additional_fees,omitempty"`
	BaseCost       float64  `json:"base_cost"`
	FeeTotal       float64  `json:"fee_total"`
	TotalCost      float64  `json:"total_cost"`

	PaymentID string `json:"payment_id,omitempty"`
	IsPaid    bool   `json:"is_paid"`

	OriginalSessionID    string `json:"original_session_id,omitempty"`
	RescheduledSessionID string `json:"rescheduled_session_id,omitempty"`
	RescheduledCount     int    `json:"rescheduled_count,omitempty"`

	Cancellation *cancellationDTO `json:"cancellation,omitempty"`

	ClientRating      *ratingDTO `json:"client_rating,omitempty"`
	InterpreterRating *ratingDTO `json:"interpreter_rating,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type feeDTO struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

type cancellationDTO struct {
	Reason      string `json:"reason"`
	Category    string `json:"category"`
	CancelledBy string `json:"cancelled_by"`
	CancelledAt string `json:"cancelled_at"`
}

type ratingDTO struct {
	Overall         int    `json:"overall"`
	Punctuality     int    `json:"punctuality,omitempty"`
	Professionalism int    `json:"professionalism,omitempty"`
	Accuracy        int    `json:"accuracy,omitempty"`
	Communication   int    `json:"communication,omitempty"`
	Comment         string `json:"comment,omitempty"`
}

func toSessionDTO(session lifecycle.Session) sessionDTO {
	dto := sessionDTO{
		ID:                    session.ID,
		RequestID:             session.RequestID,
		ClientID:              session.ClientID,
		InterpreterID:         session.InterpreterID,
		Type:                  string(session.Type),
		Specialization:        session.Specialization,
		LanguageFrom:          session.LanguageFrom,
		LanguageTo:            session.LanguageTo,
		Status:                string(session.EffectiveStatus()),
		ActualStart:           formatTimePtr(session.ActualStart),
		ActualEnd:             formatTimePtr(session.ActualEnd),
		ActualDurationMinutes: session.ActualDurationMinutes,
		HourlyRate:            session.HourlyRate,
		WordCount:             session.WordCount,
		BaseCost:              session.BaseCost,
		FeeTotal:              session.FeeTotal,
		TotalCost:             session.TotalCost,
		PaymentID:             session.PaymentID,
		IsPaid:                session.IsPaid,
		OriginalSessionID:     session.OriginalSessionID,
		RescheduledSessionID:  session.RescheduledSessionID,
		RescheduledCount:      session.RescheduledCount,
		CreatedAt:             session.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:             session.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	if !session.ScheduledStart.IsZero() {
		dto.ScheduledStart = session.ScheduledStart.UTC().Format(time.RFC3339Nano)
	}
	if !session.ScheduledEnd.IsZero() {
		dto.ScheduledEnd = session.ScheduledEnd.UTC().Format(time.RFC3339Nano)
	}

	for _, fee := range session.AdditionalFees {
		dto.AdditionalFees = append(dto.AdditionalFees, feeDTO{Label: fee.Label, Amount: fee.Amount})
	}

	if session.Cancellation != nil {
		dto.Cancellation = &cancellationDTO{
			Reason:      session.Cancellation.Reason,
			Category:    string(session.Cancellation.Category),
			CancelledBy: session.Cancellation.CancelledBy,
			CancelledAt: session.Cancellation.CancelledAt.UTC().Format(time.RFC3339Nano),
		}
	}

	dto.ClientRating = toRatingDTO(session.ClientRating)
	dto.InterpreterRating = toRatingDTO(session.InterpreterRating)

	return dto
}

func toRatingDTO(score *rating.Score) *ratingDTO {
	if score == nil {
		return nil
	}
	return &ratingDTO{
		Overall:         score.Overall,
		Punctuality:     score.Punctuality,
		Professionalism: score.Professionalism,
		Accuracy:        score.Accuracy,
		Communication:   score.Communication,
		Comment:         score.Comment,
	}
}

func toSessionDTOs(sessions []lifecycle.Session) []sessionDTO {
	if len(sessions) == 0 {
		return nil
	}
	out := make([]sessionDTO, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, toSessionDTO(session))
	}
	return out
}
