package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/interpreter-brokerage/internal/availability"
	"github.com/example/interpreter-brokerage/internal/booking"
	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/persistence"
)

// InterpreterService manages interpreter profiles, their recurring
// availability, and derived open-slot previews.
type InterpreterService struct {
	interpreters persistence.InterpreterRepository
	rules        persistence.AvailabilityRepository
	sessions     persistence.SessionRepository
	engine       *availability.Engine
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewInterpreterService wires dependencies for the interpreter service.
func NewInterpreterService(interpreters persistence.InterpreterRepository, rules persistence.AvailabilityRepository, sessions persistence.SessionRepository, engine *availability.Engine, idGenerator func() string, now func() time.Time) *InterpreterService {
	return NewInterpreterServiceWithLogger(interpreters, rules, sessions, engine, idGenerator, now, nil)
}

// NewInterpreterServiceWithLogger wires dependencies with a specified logger.
func NewInterpreterServiceWithLogger(interpreters persistence.InterpreterRepository, rules persistence.AvailabilityRepository, sessions persistence.SessionRepository, engine *availability.Engine, idGenerator func() string, now func() time.Time, logger *slog.Logger) *InterpreterService {
	if engine == nil {
		engine = availability.NewEngine(nil)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &InterpreterService{
		interpreters: interpreters,
		rules:        rules,
		sessions:     sessions,
		engine:       engine,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *InterpreterService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "InterpreterService", operation, attrs...)
}

// CreateInterpreter validates input and registers a new interpreter profile.
func (s *InterpreterService) CreateInterpreter(ctx context.Context, params CreateInterpreterParams) (interpreter lifecycle.Interpreter, err error) {
	if s == nil || s.interpreters == nil {
		err = fmt.Errorf("interpreter repository not configured")
		return
	}
	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	logger := s.loggerWith(ctx, "CreateInterpreter", "user_id", params.Input.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "interpreter registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("interpreter_id", interpreter.ID).InfoContext(ctx, "interpreter registered")
	}()

	if vErr := validateInterpreterInput(params.Input); vErr != nil {
		err = vErr
		return
	}

	now := s.now()
	interpreter = lifecycle.Interpreter{
		ID:              s.idGenerator(),
		UserID:          params.Input.UserID,
		Name:            strings.TrimSpace(params.Input.Name),
		Status:          lifecycle.InterpreterActive,
		Availability:    lifecycle.AvailabilityOffline,
		Languages:       params.Input.Languages,
		Specializations: params.Input.Specializations,
		SessionTypes:    params.Input.SessionTypes,
		Rates:           params.Input.Rates,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err = s.interpreters.CreateInterpreter(ctx, interpreter); err != nil {
		err = mapRepoError(err)
		interpreter = lifecycle.Interpreter{}
		return
	}

	return
}

// UpdateInterpreter replaces the profile fields of an existing interpreter.
// The statistics block is preserved.
func (s *InterpreterService) UpdateInterpreter(ctx context.Context, params UpdateInterpreterParams) (interpreter lifecycle.Interpreter, err error) {
	if s == nil || s.interpreters == nil {
		err = fmt.Errorf("interpreter repository not configured")
		return
	}
	logger := s.loggerWith(ctx, "UpdateInterpreter", "interpreter_id", params.InterpreterID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "interpreter update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "interpreter updated")
	}()

	if vErr := validateInterpreterInput(params.Input); vErr != nil {
		err = vErr
		return
	}

	current, err := s.interpreters.GetInterpreter(ctx, params.InterpreterID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if !params.Principal.IsAdmin() && params.Principal.UserID != current.UserID {
		err = ErrUnauthorized
		return
	}

	current.Name = strings.TrimSpace(params.Input.Name)
	current.Languages = params.Input.Languages
	current.Specializations = params.Input.Specializations
	current.SessionTypes = params.Input.SessionTypes
	current.Rates = params.Input.Rates
	current.UpdatedAt = s.now()

	if err = s.interpreters.UpdateInterpreter(ctx, current); err != nil {
		err = mapRepoError(err)
		return
	}

	interpreter = current
	return
}

// SetAvailabilityStatus updates the interpreter's self-reported availability.
func (s *InterpreterService) SetAvailabilityStatus(ctx context.Context, principal Principal, interpreterID string, status lifecycle.AvailabilityStatus) error {
	if s == nil || s.interpreters == nil {
		return fmt.Errorf("interpreter repository not configured")
	}

	switch status {
	case lifecycle.AvailabilityAvailable, lifecycle.AvailabilityBusy, lifecycle.AvailabilityOffline:
	default:
		vErr := lifecycle.NewValidationError(lifecycle.CodeValidation)
		vErr.Add("availability", "unknown availability status")
		return vErr
	}

	interpreter, err := s.interpreters.GetInterpreter(ctx, interpreterID)
	if err != nil {
		return mapRepoError(err)
	}
	if !principal.IsAdmin() && principal.UserID != interpreter.UserID {
		return ErrUnauthorized
	}

	interpreter.Availability = status
	interpreter.UpdatedAt = s.now()
	if err := s.interpreters.UpdateInterpreter(ctx, interpreter); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// GetInterpreter retrieves an interpreter profile by ID.
func (s *InterpreterService) GetInterpreter(ctx context.Context, id string) (lifecycle.Interpreter, error) {
	if s == nil || s.interpreters == nil {
		return lifecycle.Interpreter{}, fmt.Errorf("interpreter repository not configured")
	}
	interpreter, err := s.interpreters.GetInterpreter(ctx, id)
	if err != nil {
		return lifecycle.Interpreter{}, mapRepoError(err)
	}
	return interpreter, nil
}

// ListInterpreters lists all interpreter profiles.
func (s *InterpreterService) ListInterpreters(ctx context.Context) ([]lifecycle.Interpreter, error) {
	if s == nil || s.interpreters == nil {
		return nil, fmt.Errorf("interpreter repository not configured")
	}
	interpreters, err := s.interpreters.ListInterpreters(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return interpreters, nil
}

// UpsertAvailabilityRule stores a recurring weekly availability rule. The rule
// ID is assigned when absent.
func (s *InterpreterService) UpsertAvailabilityRule(ctx context.Context, principal Principal, rule availability.Rule) (availability.Rule, error) {
	if s == nil || s.rules == nil {
		return availability.Rule{}, fmt.Errorf("availability repository not configured")
	}

	interpreter, err := s.interpreters.GetInterpreter(ctx, rule.InterpreterID)
	if err != nil {
		return availability.Rule{}, mapRepoError(err)
	}
	if !principal.IsAdmin() && principal.UserID != interpreter.UserID {
		return availability.Rule{}, ErrUnauthorized
	}

	for _, window := range rule.Windows {
		if window.StartMinute < 0 || window.EndMinute <= window.StartMinute || window.EndMinute > 24*60 {
			vErr := lifecycle.NewValidationError(lifecycle.CodeValidation)
			vErr.Add("windows", "window must end after it starts within one day")
			return availability.Rule{}, vErr
		}
	}

	if rule.ID == "" {
		rule.ID = s.idGenerator()
	}
	if err := s.rules.UpsertRule(ctx, rule); err != nil {
		return availability.Rule{}, mapRepoError(err)
	}
	return rule, nil
}

// AvailabilityPreview expands the interpreter's rules over the requested range
// and drops the slots the committed calendar already occupies.
func (s *InterpreterService) AvailabilityPreview(ctx context.Context, params AvailabilityPreviewParams) ([]availability.Slot, error) {
	if s == nil || s.rules == nil || s.sessions == nil {
		return nil, fmt.Errorf("availability preview dependencies not configured")
	}

	rules, err := s.rules.ListRulesForInterpreter(ctx, params.InterpreterID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	slots, err := s.engine.ExpandAll(rules, params.From, params.To)
	if err != nil {
		return nil, err
	}

	committedSessions, err := s.sessions.CommittedSessions(ctx, params.InterpreterID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	committed := make([]booking.Committed, 0, len(committedSessions))
	for _, session := range committedSessions {
		committed = append(committed, booking.Committed{SessionID: session.ID, Interval: session.Interval()})
	}

	open := slots[:0]
	for _, slot := range slots {
		verdict := booking.Check(committed, booking.Interval{Start: slot.Start, End: slot.End}, "")
		if verdict.Bookable {
			open = append(open, slot)
		}
	}
	return open, nil
}

func validateInterpreterInput(input InterpreterInput) *lifecycle.ValidationError {
	vErr := lifecycle.NewValidationError(lifecycle.CodeValidation)
	if strings.TrimSpace(input.Name) == "" {
		vErr.Add("name", "name is required")
	}
	if len(input.Languages) == 0 {
		vErr.Add("languages", "at least one language pair is required")
	}
	if len(input.SessionTypes) == 0 {
		vErr.Add("session_types", "at least one session type is required")
	}
	for _, t := range input.SessionTypes {
		if !lifecycle.KnownSessionType(t) {
			vErr.Add("session_types", "unknown session type "+string(t))
		}
	}
	if input.Rates.HourlyRate < 0 || input.Rates.RatePerWord < 0 {
		vErr.Add("rates", "rates must be non-negative")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}
