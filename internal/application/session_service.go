package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/interpreter-brokerage/internal/booking"
	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/persistence"
)

// SessionService orchestrates session booking and lifecycle transitions. All
// state changes for one interpreter are serialized through a keyed lock so the
// conflict check and the write it guards see a consistent calendar.
// RequestLinker back-links a service request to the session booked for it. A
// nil linker leaves requests untouched.
type RequestLinker interface {
	AttachSession(ctx context.Context, requestID, sessionID string) (lifecycle.ServiceRequest, error)
}

type SessionService struct {
	sessions     persistence.SessionRepository
	interpreters persistence.InterpreterRepository
	requests     RequestLinker
	machine      *lifecycle.Machine
	tracker      *lifecycle.RescheduleTracker
	executor     *EffectExecutor
	snapshots    *committedCache
	locks        *keyedMutex
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewSessionService wires dependencies for the session service.
func NewSessionService(sessions persistence.SessionRepository, interpreters persistence.InterpreterRepository, requests RequestLinker, executor *EffectExecutor, idGenerator func() string, now func() time.Time) *SessionService {
	return NewSessionServiceWithLogger(sessions, interpreters, requests, executor, idGenerator, now, nil)
}

// NewSessionServiceWithLogger wires dependencies with a specified logger.
func NewSessionServiceWithLogger(sessions persistence.SessionRepository, interpreters persistence.InterpreterRepository, requests RequestLinker, executor *EffectExecutor, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SessionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		sessions:     sessions,
		interpreters: interpreters,
		requests:     requests,
		machine:      lifecycle.NewMachine(now),
		tracker:      lifecycle.NewRescheduleTracker(idGenerator, now),
		executor:     executor,
		snapshots:    newCommittedCache(0, now),
		locks:        newKeyedMutex(),
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, attrs...)
}

// CreateSession validates input and books a new session in REQUESTED state.
func (s *SessionService) CreateSession(ctx context.Context, params CreateSessionParams) (session lifecycle.Session, err error) {
	if s == nil || s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	input := params.Input
	logger := s.loggerWith(ctx, "CreateSession",
		"client_id", input.ClientID,
		"interpreter_id", input.InterpreterID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session booking failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", session.ID).InfoContext(ctx, "session booked")
	}()

	if vErr := validateSessionInput(input); vErr != nil {
		err = vErr
		return
	}

	interpreter, err := s.interpreters.GetInterpreter(ctx, input.InterpreterID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if interpreter.Status != lifecycle.InterpreterActive {
		vErr := lifecycle.NewValidationError(lifecycle.CodeValidation)
		vErr.Add("interpreter_id", "interpreter is not accepting bookings")
		err = vErr
		return
	}

	now := s.now()
	hourlyRate := input.HourlyRate
	if hourlyRate == 0 {
		hourlyRate = interpreter.Rates.HourlyRate
	}

	session = lifecycle.Session{
		ID:             s.idGenerator(),
		RequestID:      input.RequestID,
		ClientID:       input.ClientID,
		InterpreterID:  input.InterpreterID,
		Type:           input.Type,
		Specialization: input.Specialization,
		LanguageFrom:   input.LanguageFrom,
		LanguageTo:     input.LanguageTo,
		Status:         lifecycle.SessionRequested,
		ScheduledStart: input.ScheduledStart,
		ScheduledEnd:   input.ScheduledEnd,
		HourlyRate:     hourlyRate,
		WordCount:      input.WordCount,
		AdditionalFees: input.AdditionalFees,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err = s.sessions.CreateSession(ctx, session); err != nil {
		err = mapRepoError(err)
		session = lifecycle.Session{}
		return
	}

	if session.RequestID != "" && s.requests != nil {
		if _, linkErr := s.requests.AttachSession(ctx, session.RequestID, session.ID); linkErr != nil {
			logger.WarnContext(ctx, "request link failed", "request_id", session.RequestID, "error", linkErr)
		}
	}

	return
}

// ApplyAction runs a lifecycle transition against the session under the
// interpreter's lock and executes the resulting effects.
func (s *SessionService) ApplyAction(ctx context.Context, params SessionActionParams) (session lifecycle.Session, err error) {
	if s == nil || s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ApplyAction",
		"session_id", params.SessionID,
		"action", string(params.Action),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session transition failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", string(session.EffectiveStatus())).InfoContext(ctx, "session transitioned")
	}()

	current, err := s.sessions.GetSession(ctx, params.SessionID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	unlock := s.locks.Lock(current.InterpreterID)
	defer unlock()

	// Reload under the lock; a concurrent transition may have advanced it.
	current, err = s.sessions.GetSession(ctx, params.SessionID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	env, err := s.buildEnv(ctx, current.InterpreterID)
	if err != nil {
		return
	}

	result, err := s.machine.Apply(current, params.Action, params.Principal.Actor(), lifecycle.ActionParams{
		ActualStart:  params.ActualStart,
		ActualEnd:    params.ActualEnd,
		Cancellation: params.Cancellation,
	}, env)
	if err != nil {
		return
	}

	if err = s.executor.Execute(ctx, result.Effects); err != nil {
		return
	}
	s.snapshots.Invalidate(current.InterpreterID)

	session = result.Session
	return
}

// Reschedule supersedes the session with a replacement on a new interval.
func (s *SessionService) Reschedule(ctx context.Context, params RescheduleSessionParams) (result lifecycle.RescheduleResult, err error) {
	if s == nil || s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Reschedule", "session_id", params.SessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "reschedule failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("successor_id", result.New.ID).InfoContext(ctx, "session rescheduled")
	}()

	old, err := s.sessions.GetSession(ctx, params.SessionID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	unlock := s.locks.Lock(old.InterpreterID)
	defer unlock()

	old, err = s.sessions.GetSession(ctx, params.SessionID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	env, err := s.buildEnv(ctx, old.InterpreterID)
	if err != nil {
		return
	}

	result, err = s.tracker.Reschedule(old, booking.Interval{Start: params.NewStart, End: params.NewEnd}, params.Principal.Actor(), env)
	if err != nil {
		return
	}

	if err = s.executor.Execute(ctx, result.Effects); err != nil {
		return
	}
	s.snapshots.Invalidate(old.InterpreterID)

	return
}

// Rate records a participant's rating for the session.
func (s *SessionService) Rate(ctx context.Context, params RateSessionParams) (session lifecycle.Session, err error) {
	if s == nil || s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Rate",
		"session_id", params.SessionID,
		"actor_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "rating failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "rating recorded")
	}()

	current, err := s.sessions.GetSession(ctx, params.SessionID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	unlock := s.locks.Lock(current.InterpreterID)
	defer unlock()

	current, err = s.sessions.GetSession(ctx, params.SessionID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	actor, err := s.resolveActor(ctx, params.Principal)
	if err != nil {
		return
	}

	result, err := s.machine.Rate(current, actor, params.Score, lifecycle.Env{Now: s.now()})
	if err != nil {
		return
	}

	if err = s.executor.Execute(ctx, result.Effects); err != nil {
		return
	}

	session = result.Session
	return
}

// CheckConflict previews whether the candidate interval is bookable against
// the interpreter's committed calendar. Read-only; serves availability probes.
func (s *SessionService) CheckConflict(ctx context.Context, interpreterID string, candidate booking.Interval, excludeSessionID string) (booking.Verdict, error) {
	if s == nil || s.sessions == nil {
		return booking.Verdict{}, fmt.Errorf("session repository not configured")
	}
	if strings.TrimSpace(interpreterID) == "" {
		vErr := lifecycle.NewValidationError(lifecycle.CodeValidation)
		vErr.Add("interpreter_id", "interpreter id is required")
		return booking.Verdict{}, vErr
	}
	if !candidate.Valid() {
		vErr := lifecycle.NewValidationError(lifecycle.CodeInvalidInterval)
		vErr.Add("interval", "end must be after start")
		return booking.Verdict{}, vErr
	}

	committed, err := s.committedSnapshot(ctx, interpreterID)
	if err != nil {
		return booking.Verdict{}, err
	}

	return booking.Check(committed, candidate, excludeSessionID), nil
}

// GetSession retrieves a session by ID.
func (s *SessionService) GetSession(ctx context.Context, id string) (lifecycle.Session, error) {
	if s == nil || s.sessions == nil {
		return lifecycle.Session{}, fmt.Errorf("session repository not configured")
	}
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return lifecycle.Session{}, mapRepoError(err)
	}
	return session, nil
}

// ListSessions lists sessions visible to the principal. Non-admin callers are
// restricted to sessions they participate in.
func (s *SessionService) ListSessions(ctx context.Context, params ListSessionsParams) ([]lifecycle.Session, error) {
	if s == nil || s.sessions == nil {
		return nil, fmt.Errorf("session repository not configured")
	}

	filter := persistence.SessionFilter{
		ClientID:      params.ClientID,
		InterpreterID: params.InterpreterID,
		Statuses:      params.Statuses,
		StartsAfter:   params.StartsAfter,
		EndsBefore:    params.EndsBefore,
	}

	if !params.Principal.IsAdmin() {
		switch params.Principal.Role {
		case lifecycle.RoleClient:
			filter.ClientID = params.Principal.UserID
		case lifecycle.RoleInterpreter:
			interpreter, err := s.interpreters.GetInterpreterByUserID(ctx, params.Principal.UserID)
			if err != nil {
				if errors.Is(err, persistence.ErrNotFound) {
					return []lifecycle.Session{}, nil
				}
				return nil, mapRepoError(err)
			}
			filter.InterpreterID = interpreter.ID
		default:
			return nil, ErrUnauthorized
		}
	}

	sessions, err := s.sessions.ListSessions(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return sessions, nil
}

// resolveActor maps an interpreter principal to their interpreter profile ID,
// which is what sessions reference. Sessions carry the generated profile ID,
// not the account ID, so the raw principal would never match as a participant.
func (s *SessionService) resolveActor(ctx context.Context, principal Principal) (lifecycle.Actor, error) {
	actor := principal.Actor()
	if principal.Role != lifecycle.RoleInterpreter || s.interpreters == nil {
		return actor, nil
	}

	interpreter, err := s.interpreters.GetInterpreterByUserID(ctx, principal.UserID)
	if errors.Is(err, persistence.ErrNotFound) {
		return actor, nil
	}
	if err != nil {
		return lifecycle.Actor{}, mapRepoError(err)
	}

	actor.ID = interpreter.ID
	return actor, nil
}

// buildEnv assembles the snapshot a transition is evaluated against: the
// interpreter's committed calendar and rate structure.
func (s *SessionService) buildEnv(ctx context.Context, interpreterID string) (lifecycle.Env, error) {
	committed, err := s.loadCommitted(ctx, interpreterID)
	if err != nil {
		return lifecycle.Env{}, err
	}

	env := lifecycle.Env{Committed: committed, Now: s.now()}

	if s.interpreters != nil {
		interpreter, err := s.interpreters.GetInterpreter(ctx, interpreterID)
		if err != nil && !errors.Is(err, persistence.ErrNotFound) {
			return lifecycle.Env{}, err
		}
		env.Rates = interpreter.Rates
	}

	return env, nil
}

func (s *SessionService) loadCommitted(ctx context.Context, interpreterID string) ([]booking.Committed, error) {
	sessions, err := s.sessions.CommittedSessions(ctx, interpreterID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	committed := make([]booking.Committed, 0, len(sessions))
	for _, session := range sessions {
		committed = append(committed, booking.Committed{
			SessionID: session.ID,
			Interval:  session.Interval(),
		})
	}
	return committed, nil
}

// committedSnapshot serves the cached calendar for read-only probes, loading
// and caching it on miss.
func (s *SessionService) committedSnapshot(ctx context.Context, interpreterID string) ([]booking.Committed, error) {
	if cached, ok := s.snapshots.Get(interpreterID); ok {
		return cached, nil
	}
	committed, err := s.loadCommitted(ctx, interpreterID)
	if err != nil {
		return nil, err
	}
	s.snapshots.Store(interpreterID, committed)
	return committed, nil
}

func validateSessionInput(input SessionInput) *lifecycle.ValidationError {
	vErr := lifecycle.NewValidationError(lifecycle.CodeValidation)
	if strings.TrimSpace(input.ClientID) == "" {
		vErr.Add("client_id", "client id is required")
	}
	if strings.TrimSpace(input.InterpreterID) == "" {
		vErr.Add("interpreter_id", "interpreter id is required")
	}
	if !lifecycle.KnownSessionType(input.Type) {
		vErr.Add("type", "unknown session type")
	}
	if strings.TrimSpace(input.LanguageFrom) == "" || strings.TrimSpace(input.LanguageTo) == "" {
		vErr.Add("languages", "source and target languages are required")
	}

	if input.Type == lifecycle.SessionTypeTranslation {
		if input.WordCount <= 0 {
			vErr.Add("word_count", "word count is required for translation sessions")
		}
	} else {
		interval := booking.Interval{Start: input.ScheduledStart, End: input.ScheduledEnd}
		if !interval.Valid() {
			vErr.Add("scheduled_time", "scheduled end must be after scheduled start")
		}
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	return err
}
