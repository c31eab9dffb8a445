package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/interpreter-brokerage/internal/application"
	"github.com/example/interpreter-brokerage/internal/availability"
	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/pricing"
)

type interpreterService interface {
	CreateInterpreter(ctx context.Context, params application.CreateInterpreterParams) (lifecycle.Interpreter, error)
	UpdateInterpreter(ctx context.Context, params application.UpdateInterpreterParams) (lifecycle.Interpreter, error)
	SetAvailabilityStatus(ctx context.Context, principal application.Principal, interpreterID string, status lifecycle.AvailabilityStatus) error
	GetInterpreter(ctx context.Context, id string) (lifecycle.Interpreter, error)
	ListInterpreters(ctx context.Context) ([]lifecycle.Interpreter, error)
	UpsertAvailabilityRule(ctx context.Context, principal application.Principal, rule availability.Rule) (availability.Rule, error)
	AvailabilityPreview(ctx context.Context, params application.AvailabilityPreviewParams) ([]availability.Slot, error)
}

type InterpreterHandler struct {
	service   interpreterService
	responder responder
}

func NewInterpreterHandler(service interpreterService, logger *slog.Logger) *InterpreterHandler {
	return &InterpreterHandler{service: service, responder: newResponder(logger)}
}

func (h *InterpreterHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req interpreterPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	interpreter, err := h.service.CreateInterpreter(r.Context(), application.CreateInterpreterParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toInterpreterDTO(interpreter))
}

func (h *InterpreterHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	interpreterID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(interpreterID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInterpreterID)
		return
	}

	var req interpreterPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	interpreter, err := h.service.UpdateInterpreter(r.Context(), application.UpdateInterpreterParams{
		Principal:     principal,
		InterpreterID: interpreterID,
		Input:         req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toInterpreterDTO(interpreter))
}

func (h *InterpreterHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	interpreterID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(interpreterID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInterpreterID)
		return
	}

	interpreter, err := h.service.GetInterpreter(r.Context(), interpreterID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toInterpreterDTO(interpreter))
}

func (h *InterpreterHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	interpreters, err := h.service.ListInterpreters(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listInterpretersResponse{Interpreters: toInterpreterDTOs(interpreters)})
}

func (h *InterpreterHandler) SetAvailabilityStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	interpreterID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(interpreterID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInterpreterID)
		return
	}

	var req availabilityStatusPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	status := lifecycle.AvailabilityStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if err := h.service.SetAvailabilityStatus(r.Context(), principal, interpreterID, status); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *InterpreterHandler) UpsertAvailabilityRule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	interpreterID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(interpreterID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInterpreterID)
		return
	}

	var req availabilityRulePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	rule, err := h.service.UpsertAvailabilityRule(r.Context(), principal, req.toRule(interpreterID))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAvailabilityRuleDTO(rule))
}

func (h *InterpreterHandler) AvailabilityPreview(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	interpreterID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(interpreterID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInterpreterID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	slots, err := h.service.AvailabilityPreview(r.Context(), application.AvailabilityPreviewParams{
		Principal:     principal,
		InterpreterID: interpreterID,
		From:          parseTime(r.URL.Query().Get("from")),
		To:            parseTime(r.URL.Query().Get("to")),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityPreviewResponse{Slots: toSlotDTOs(slots)})
}

type interpreterPayload struct {
	UserID          string             `json:"user_id"`
	Name            string             `json:"name"`
	Languages       []string           `json:"languages"`
	Specializations []string           `json:"specializations"`
	SessionTypes    []string           `json:"session_types"`
	Rates           ratesPayload       `json:"rates"`
}

type ratesPayload struct {
	HourlyRate      float64            `json:"hourly_rate"`
	MinimumHours    int                `json:"minimum_hours"`
	RatePerWord     float64            `json:"rate_per_word"`
	Specializations map[string]float64 `json:"specializations"`
}

func (p interpreterPayload) toInput() application.InterpreterInput {
	types := make([]lifecycle.SessionType, 0, len(p.SessionTypes))
	for _, t := range p.SessionTypes {
		types = append(types, lifecycle.SessionType(strings.ToUpper(strings.TrimSpace(t))))
	}
	if len(types) == 0 {
		types = nil
	}
	return application.InterpreterInput{
		UserID:          strings.TrimSpace(p.UserID),
		Name:            strings.TrimSpace(p.Name),
		Languages:       append([]string(nil), p.Languages...),
		Specializations: append([]string(nil), p.Specializations...),
		SessionTypes:    types,
		Rates: pricing.RateStructure{
			HourlyRate:      p.Rates.HourlyRate,
			MinimumHours:    p.Rates.MinimumHours,
			RatePerWord:     p.Rates.RatePerWord,
			Specializations: p.Rates.Specializations,
		},
	}
}

type availabilityStatusPayload struct {
	Status string `json:"status"`
}

type availabilityRulePayload struct {
	ID             string           `json:"id"`
	Windows        []windowPayload  `json:"windows"`
	EffectiveFrom  string           `json:"effective_from"`
	EffectiveUntil string           `json:"effective_until"`
}

type windowPayload struct {
	Weekday     int `json:"weekday"`
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

func (p availabilityRulePayload) toRule(interpreterID string) availability.Rule {
	windows := make([]availability.Window, 0, len(p.Windows))
	for _, window := range p.Windows {
		windows = append(windows, availability.Window{
			Weekday:     time.Weekday(window.Weekday),
			StartMinute: window.StartMinute,
			EndMinute:   window.EndMinute,
		})
	}
	if len(windows) == 0 {
		windows = nil
	}
	return availability.Rule{
		ID:             strings.TrimSpace(p.ID),
		InterpreterID:  interpreterID,
		Windows:        windows,
		EffectiveFrom:  parseTime(p.EffectiveFrom),
		EffectiveUntil: parseTimePtr(p.EffectiveUntil),
	}
}

type listInterpretersResponse struct {
	Interpreters []interpreterDTO `json:"interpreters"`
}

type interpreterDTO struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	Availability    string    `json:"availability"`
	Languages       []string  `json:"languages"`
	Specializations []string  `json:"specializations"`
	SessionTypes    []string  `json:"session_types"`
	Rates           ratesDTO  `json:"rates"`
	Stats           statsDTO  `json:"stats"`
	CreatedAt       string    `json:"created_at"`
	UpdatedAt       string    `json:"updated_at"`
}

type ratesDTO struct {
	HourlyRate      float64            `json:"hourly_rate"`
	MinimumHours    int                `json:"minimum_hours"`
	RatePerWord     float64            `json:"rate_per_word"`
	Specializations map[string]float64 `json:"specializations,omitempty"`
}

type statsDTO struct {
	TotalSessionsCompleted int     `json:"total_sessions_completed"`
	AverageRating          float64 `json:"average_rating"`
	TotalRatings           int     `json:"total_ratings"`
	TotalEarnings          float64 `json:"total_earnings"`
}

func toInterpreterDTO(interpreter lifecycle.Interpreter) interpreterDTO {
	types := make([]string, 0, len(interpreter.SessionTypes))
	for _, t := range interpreter.SessionTypes {
		types = append(types, string(t))
	}
	return interpreterDTO{
		ID:              interpreter.ID,
		UserID:          interpreter.UserID,
		Name:            interpreter.Name,
		Status:          string(interpreter.Status),
		Availability:    string(interpreter.Availability),
		Languages:       append([]string(nil), interpreter.Languages...),
		Specializations: append([]string(nil), interpreter.Specializations...),
		SessionTypes:    types,
		Rates: ratesDTO{
			HourlyRate:      interpreter.Rates.HourlyRate,
			MinimumHours:    interpreter.Rates.MinimumHours,
			RatePerWord:     interpreter.Rates.RatePerWord,
			Specializations: interpreter.Rates.Specializations,
		},
		Stats: statsDTO{
			TotalSessionsCompleted: interpreter.Stats.TotalSessionsCompleted,
			AverageRating:          interpreter.Stats.AverageRating,
			TotalRatings:           interpreter.Stats.TotalRatings,
			TotalEarnings:          interpreter.Stats.TotalEarnings,
		},
		CreatedAt: interpreter.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: interpreter.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toInterpreterDTOs(interpreters []lifecycle.Interpreter) []interpreterDTO {
	if len(interpreters) == 0 {
		return nil
	}
	out := make([]interpreterDTO, 0, len(interpreters))
	for _, interpreter := range interpreters {
		out = append(out, toInterpreterDTO(interpreter))
	}
	return out
}

type availabilityRuleDTO struct {
	ID             string      `json:"id"`
	InterpreterID  string      `json:"interpreter_id"`
	Windows        []windowDTO `json:"windows"`
	EffectiveFrom  string      `json:"effective_from"`
	EffectiveUntil *string     `json:"effective_until,omitempty"`
}

type windowDTO struct {
	Weekday     int `json:"weekday"`
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

func toAvailabilityRuleDTO(rule availability.Rule) availabilityRuleDTO {
	windows := make([]windowDTO, 0, len(rule.Windows))
	for _, window := range rule.Windows {
		windows = append(windows, windowDTO{
			Weekday:     int(window.Weekday),
			StartMinute: window.StartMinute,
			EndMinute:   window.EndMinute,
		})
	}
	return availabilityRuleDTO{
		ID:             rule.ID,
		InterpreterID:  rule.InterpreterID,
		Windows:        windows,
		EffectiveFrom:  rule.EffectiveFrom.UTC().Format(time.RFC3339Nano),
		EffectiveUntil: formatTimePtr(rule.EffectiveUntil),
	}
}

type availabilityPreviewResponse struct {
	Slots []slotDTO `json:"slots"`
}

type slotDTO struct {
	RuleID string `json:"rule_id,omitempty"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

func toSlotDTOs(slots []availability.Slot) []slotDTO {
	if len(slots) == 0 {
		return nil
	}
	out := make([]slotDTO, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slotDTO{
			RuleID: slot.RuleID,
			Start:  slot.Start.UTC().Format(time.RFC3339Nano),
			End:    slot.End.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}
