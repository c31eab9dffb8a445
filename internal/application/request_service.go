package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/interpreter-brokerage/internal/booking"
	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/persistence"
)

// RequestService orchestrates service request intake and lifecycle transitions.
type RequestService struct {
	requests    persistence.RequestRepository
	machine     *lifecycle.Machine
	executor    *EffectExecutor
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRequestService wires dependencies for the request service.
func NewRequestService(requests persistence.RequestRepository, executor *EffectExecutor, idGenerator func() string, now func() time.Time) *RequestService {
	return NewRequestServiceWithLogger(requests, executor, idGenerator, now, nil)
}

// NewRequestServiceWithLogger wires dependencies with a specified logger.
func NewRequestServiceWithLogger(requests persistence.RequestRepository, executor *EffectExecutor, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RequestService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RequestService{
		requests:    requests,
		machine:     lifecycle.NewMachine(now),
		executor:    executor,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *RequestService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RequestService", operation, attrs...)
}

// CreateRequest validates input and opens a new service request in PENDING state.
func (s *RequestService) CreateRequest(ctx context.Context, params CreateRequestParams) (request lifecycle.ServiceRequest, err error) {
	if s == nil || s.requests == nil {
		err = fmt.Errorf("request repository not configured")
		return
	}

	input := params.Input
	logger := s.loggerWith(ctx, "CreateRequest", "client_id", input.ClientID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "request intake failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("request_id", request.ID).InfoContext(ctx, "request opened")
	}()

	if vErr := validateRequestInput(input); vErr != nil {
		err = vErr
		return
	}

	now := s.now()
	urgency := input.Urgency
	if urgency == "" {
		urgency = lifecycle.UrgencyStandard
	}

	request = lifecycle.ServiceRequest{
		ID:             s.idGenerator(),
		ClientID:       input.ClientID,
		Type:           input.Type,
		Specialization: input.Specialization,
		LanguageFrom:   input.LanguageFrom,
		LanguageTo:     input.LanguageTo,
		PreferredStart: input.PreferredStart,
		PreferredEnd:   input.PreferredEnd,
		Urgency:        urgency,
		WordCount:      input.WordCount,
		Status:         lifecycle.RequestPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err = s.requests.CreateRequest(ctx, request); err != nil {
		err = mapRepoError(err)
		request = lifecycle.ServiceRequest{}
		return
	}

	return
}

// ApplyAction runs a lifecycle transition against the request and executes the
// resulting effects.
func (s *RequestService) ApplyAction(ctx context.Context, params RequestActionParams) (request lifecycle.ServiceRequest, err error) {
	if s == nil || s.requests == nil {
		err = fmt.Errorf("request repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ApplyAction",
		"request_id", params.RequestID,
		"action", string(params.Action),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "request transition failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", string(request.Status)).InfoContext(ctx, "request transitioned")
	}()

	current, err := s.requests.GetRequest(ctx, params.RequestID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	if params.Action == lifecycle.RequestActionReject && strings.TrimSpace(params.RejectionReason) == "" {
		vErr := lifecycle.NewValidationError(lifecycle.CodeValidation)
		vErr.Add("rejection_reason", "rejection reason is required")
		err = vErr
		return
	}

	result, err := s.machine.ApplyRequest(current, params.Action, params.Principal.Actor(), lifecycle.ActionParams{
		RejectionReason: strings.TrimSpace(params.RejectionReason),
	}, lifecycle.Env{Now: s.now()})
	if err != nil {
		return
	}

	if err = s.executor.Execute(ctx, result.Effects); err != nil {
		return
	}

	request = result.Request
	return
}

// AttachSession links the request to the session booked for it.
func (s *RequestService) AttachSession(ctx context.Context, requestID, sessionID string) (lifecycle.ServiceRequest, error) {
	if s == nil || s.requests == nil {
		return lifecycle.ServiceRequest{}, fmt.Errorf("request repository not configured")
	}

	request, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return lifecycle.ServiceRequest{}, mapRepoError(err)
	}

	request.SessionID = sessionID
	request.UpdatedAt = s.now()
	if err := s.requests.UpdateRequest(ctx, request); err != nil {
		return lifecycle.ServiceRequest{}, mapRepoError(err)
	}
	return request, nil
}

// GetRequest retrieves a request by ID.
func (s *RequestService) GetRequest(ctx context.Context, id string) (lifecycle.ServiceRequest, error) {
	if s == nil || s.requests == nil {
		return lifecycle.ServiceRequest{}, fmt.Errorf("request repository not configured")
	}
	request, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return lifecycle.ServiceRequest{}, mapRepoError(err)
	}
	return request, nil
}

// ListRequests lists requests visible to the principal. Clients only see
// their own requests.
func (s *RequestService) ListRequests(ctx context.Context, params ListRequestsParams) ([]lifecycle.ServiceRequest, error) {
	if s == nil || s.requests == nil {
		return nil, fmt.Errorf("request repository not configured")
	}

	filter := persistence.RequestFilter{ClientID: params.ClientID, Statuses: params.Statuses}
	if !params.Principal.IsAdmin() && params.Principal.Role == lifecycle.RoleClient {
		filter.ClientID = params.Principal.UserID
	}

	requests, err := s.requests.ListRequests(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return requests, nil
}

func validateRequestInput(input RequestInput) *lifecycle.ValidationError {
	vErr := lifecycle.NewValidationError(lifecycle.CodeValidation)
	if strings.TrimSpace(input.ClientID) == "" {
		vErr.Add("client_id", "client id is required")
	}
	if !lifecycle.KnownSessionType(input.Type) {
		vErr.Add("type", "unknown session type")
	}
	if strings.TrimSpace(input.LanguageFrom) == "" || strings.TrimSpace(input.LanguageTo) == "" {
		vErr.Add("languages", "source and target languages are required")
	}
	switch input.Urgency {
	case "", lifecycle.UrgencyStandard, lifecycle.UrgencyUrgent, lifecycle.UrgencyImmediate:
	default:
		vErr.Add("urgency", "unknown urgency level")
	}

	if input.Type == lifecycle.SessionTypeTranslation {
		if input.WordCount <= 0 {
			vErr.Add("word_count", "word count is required for translation requests")
		}
	} else if input.PreferredStart != nil || input.PreferredEnd != nil {
		if input.PreferredStart == nil || input.PreferredEnd == nil {
			vErr.Add("preferred_time", "both preferred start and end are required")
		} else if !(booking.Interval{Start: *input.PreferredStart, End: *input.PreferredEnd}).Valid() {
			vErr.Add("preferred_time", "preferred end must be after preferred start")
		}
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}
