package lifecycle

import (
	"time"

	"github.com/example/interpreter-brokerage/internal/booking"
	"github.com/example/interpreter-brokerage/internal/pricing"
	"github.com/example/interpreter-brokerage/internal/rating"
)

// Role identifies the kind of actor invoking a transition.
type Role string

const (
	RoleClient      Role = "CLIENT"
	RoleInterpreter Role = "INTERPRETER"
	RoleAdmin       Role = "ADMIN"
)

// Actor is the authenticated identity requesting a transition.
type Actor struct {
	ID   string
	Role Role
}

// Action requests a session state change.
type Action string

const (
	ActionConfirm    Action = "confirm"
	ActionStart      Action = "start"
	ActionComplete   Action = "complete"
	ActionCancel     Action = "cancel"
	ActionMarkNoShow Action = "no_show"
)

// RequestAction requests a service request state change.
type RequestAction string

const (
	RequestActionConfirm  RequestAction = "confirm"
	RequestActionStart    RequestAction = "start"
	RequestActionComplete RequestAction = "complete"
	RequestActionCancel   RequestAction = "cancel"
	RequestActionReject   RequestAction = "reject"
)

// Env supplies the consistent snapshot a transition is evaluated against. The
// machine never reads shared state; the caller assembles the committed session
// set and the interpreter's rate structure before invoking it.
type Env struct {
	Committed []booking.Committed
	Rates     pricing.RateStructure
	Now       time.Time
}

func (e Env) at(fallback func() time.Time) time.Time {
	if !e.Now.IsZero() {
		return e.Now
	}
	return fallback()
}

// ActionParams carries the optional inputs specific actions need.
type ActionParams struct {
	ActualStart  *time.Time
	ActualEnd    *time.Time
	Cancellation *Cancellation
	// RejectionReason applies to RequestActionReject.
	RejectionReason string
}

// Result is a successful session transition: the new entity state plus the
// side-effect instructions for collaborators to execute.
type Result struct {
	Session Session
	Effects []Effect
}

// RequestResult is a successful service request transition.
type RequestResult struct {
	Request ServiceRequest
	Effects []Effect
}

// Machine validates and applies status transitions for sessions and service
// requests. It performs no I/O and is safe for concurrent use as long as each
// invocation receives a consistent snapshot in Env.
type Machine struct {
	now func() time.Time
}

// NewMachine constructs a Machine. A nil now falls back to time.Now.
func NewMachine(now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{now: now}
}

// sessionTarget names the state an action drives toward, for error reporting.
func sessionTarget(action Action) SessionStatus {
	switch action {
	case ActionConfirm:
		return SessionConfirmed
	case ActionStart:
		return SessionInProgress
	case ActionComplete:
		return SessionCompleted
	case ActionCancel:
		return SessionCancelled
	case ActionMarkNoShow:
		return SessionNoShow
	}
	return SessionStatus(action)
}

// Apply validates the requested action against the session's current state and
// returns the new state plus effects, or a typed failure. Only forward
// transitions in the declared order are legal, plus the documented exits.
func (m *Machine) Apply(session Session, action Action, actor Actor, params ActionParams, env Env) (Result, error) {
	if session.Superseded() {
		return Result{}, &InvalidTransitionError{
			Entity:    "session",
			EntityID:  session.ID,
			Current:   string(SessionRescheduled),
			Requested: string(sessionTarget(action)),
		}
	}

	switch action {
	case ActionConfirm:
		return m.confirm(session, env)
	case ActionStart:
		return m.start(session, params, env)
	case ActionComplete:
		return m.complete(session, params, env)
	case ActionCancel:
		return m.cancel(session, actor, params, env)
	case ActionMarkNoShow:
		return m.markNoShow(session, env)
	}

	return Result{}, &InvalidTransitionError{
		Entity:    "session",
		EntityID:  session.ID,
		Current:   string(session.Status),
		Requested: string(action),
	}
}

func (m *Machine) invalid(session Session, action Action) error {
	return &InvalidTransitionError{
		Entity:    "session",
		EntityID:  session.ID,
		Current:   string(session.EffectiveStatus()),
		Requested: string(sessionTarget(action)),
	}
}

// confirm moves REQUESTED to CONFIRMED. It requires a bookable verdict from
// the conflict check and finalizes the session cost. Translation work carries
// no schedule, so it skips the calendar checks entirely.
func (m *Machine) confirm(session Session, env Env) (Result, error) {
	if session.Status != SessionRequested {
		return Result{}, m.invalid(session, ActionConfirm)
	}

	if session.Type != SessionTypeTranslation {
		if !session.Interval().Valid() {
			vErr := NewValidationError(CodeInvalidInterval)
			vErr.Add("scheduled_time", "scheduled end must be after scheduled start")
			return Result{}, vErr
		}

		verdict := booking.Check(env.Committed, session.Interval(), session.ID)
		if !verdict.Bookable {
			return Result{}, &ConflictError{
				InterpreterID: session.InterpreterID,
				ConflictsWith: verdict.ConflictsWith,
			}
		}
	}

	now := env.at(m.now)
	updated := session
	updated.Status = SessionConfirmed
	updated.UpdatedAt = now

	if !updated.CostFinalized() {
		applyQuote(&updated, env.Rates, int(session.Interval().Duration().Minutes()), now)
	}

	return Result{
		Session: updated,
		Effects: []Effect{
			PersistSession{Session: updated},
			NotifyParties{
				Event:     EventSessionConfirmed,
				SessionID: updated.ID,
				RequestID: updated.RequestID,
				Payload:   statusPayload(updated),
			},
			InvalidateInvoiceDraft{SessionID: updated.ID},
		},
	}, nil
}

// start moves CONFIRMED to IN_PROGRESS and stamps the actual start time.
func (m *Machine) start(session Session, params ActionParams, env Env) (Result, error) {
	if session.Status != SessionConfirmed {
		return Result{}, m.invalid(session, ActionStart)
	}

	now := env.at(m.now)
	updated := session
	updated.Status = SessionInProgress
	updated.UpdatedAt = now
	if params.ActualStart != nil {
		started := *params.ActualStart
		updated.ActualStart = &started
	} else if updated.ActualStart == nil {
		started := now
		updated.ActualStart = &started
	}

	return Result{
		Session: updated,
		Effects: []Effect{
			PersistSession{Session: updated},
			NotifyParties{
				Event:     EventSessionStarted,
				SessionID: updated.ID,
				RequestID: updated.RequestID,
				Payload:   statusPayload(updated),
			},
		},
	}, nil
}

// complete moves IN_PROGRESS to COMPLETED. It requires an actual end time,
// derives the actual duration from timestamps, finalizes the cost when it has
// not been fixed yet, and instructs collaborators to update the interpreter's
// completion statistics.
func (m *Machine) complete(session Session, params ActionParams, env Env) (Result, error) {
	if session.Status != SessionInProgress {
		return Result{}, m.invalid(session, ActionComplete)
	}

	actualEnd := session.ActualEnd
	if params.ActualEnd != nil {
		ended := *params.ActualEnd
		actualEnd = &ended
	}
	if actualEnd == nil {
		vErr := NewValidationError(CodeValidation)
		vErr.Add("actual_end", "actual end time is required to complete a session")
		return Result{}, vErr
	}

	actualStart := session.ActualStart
	if actualStart == nil {
		started := session.ScheduledStart
		actualStart = &started
	}

	durationMinutes := int(actualEnd.Sub(*actualStart).Minutes())
	if durationMinutes < 0 {
		vErr := NewValidationError(CodeValidation)
		vErr.Add("actual_duration", "actual duration must be non-negative")
		return Result{}, vErr
	}

	now := env.at(m.now)
	updated := session
	updated.Status = SessionCompleted
	updated.ActualStart = actualStart
	updated.ActualEnd = actualEnd
	updated.ActualDurationMinutes = durationMinutes
	updated.UpdatedAt = now

	if !updated.CostFinalized() {
		applyQuote(&updated, env.Rates, durationMinutes, now)
	}

	return Result{
		Session: updated,
		Effects: []Effect{
			PersistSession{Session: updated},
			RecomputeInterpreterStats{
				InterpreterID:  updated.InterpreterID,
				CompletedDelta: 1,
				EarningsDelta:  updated.TotalCost,
			},
			NotifyParties{
				Event:     EventSessionCompleted,
				SessionID: updated.ID,
				RequestID: updated.RequestID,
				Payload:   statusPayload(updated),
			},
			InvalidateInvoiceDraft{SessionID: updated.ID},
		},
	}, nil
}

// cancel is legal from any non-terminal state. It requires a reason and
// category and records who cancelled; no conflict check runs.
func (m *Machine) cancel(session Session, actor Actor, params ActionParams, env Env) (Result, error) {
	if session.Terminal() {
		return Result{}, m.invalid(session, ActionCancel)
	}

	vErr := NewValidationError(CodeValidation)
	if params.Cancellation == nil {
		vErr.Add("cancellation", "cancellation details are required")
		return Result{}, vErr
	}
	if params.Cancellation.Reason == "" {
		vErr.Add("reason", "cancellation reason is required")
	}
	if params.Cancellation.Category == "" {
		vErr.Add("category", "cancellation category is required")
	}
	if vErr.HasErrors() {
		return Result{}, vErr
	}

	now := env.at(m.now)
	cancellation := *params.Cancellation
	if cancellation.CancelledBy == "" {
		cancellation.CancelledBy = actor.ID
	}
	if cancellation.CancelledAt.IsZero() {
		cancellation.CancelledAt = now
	}

	updated := session
	updated.Status = SessionCancelled
	updated.Cancellation = &cancellation
	updated.UpdatedAt = now

	return Result{
		Session: updated,
		Effects: []Effect{
			PersistSession{Session: updated},
			NotifyParties{
				Event:     EventSessionCancelled,
				SessionID: updated.ID,
				RequestID: updated.RequestID,
				Payload:   statusPayload(updated),
			},
			InvalidateInvoiceDraft{SessionID: updated.ID},
		},
	}, nil
}

// markNoShow is legal only from CONFIRMED and is terminal.
func (m *Machine) markNoShow(session Session, env Env) (Result, error) {
	if session.Status != SessionConfirmed {
		return Result{}, m.invalid(session, ActionMarkNoShow)
	}

	updated := session
	updated.Status = SessionNoShow
	updated.UpdatedAt = env.at(m.now)

	return Result{
		Session: updated,
		Effects: []Effect{
			PersistSession{Session: updated},
			NotifyParties{
				Event:     EventSessionNoShow,
				SessionID: updated.ID,
				RequestID: updated.RequestID,
				Payload:   statusPayload(updated),
			},
			InvalidateInvoiceDraft{SessionID: updated.ID},
		},
	}, nil
}

// Rate records a rating for a completed session. Each party may rate exactly
// once; only the client's overall score feeds the interpreter's running average.
func (m *Machine) Rate(session Session, actor Actor, score rating.Score, env Env) (Result, error) {
	if session.EffectiveStatus() != SessionCompleted {
		return Result{}, &InvalidTransitionError{
			Entity:    "session",
			EntityID:  session.ID,
			Current:   string(session.EffectiveStatus()),
			Requested: "RATED",
		}
	}

	if err := validateScore(score); err != nil {
		return Result{}, err
	}

	updated := session
	updated.UpdatedAt = env.at(m.now)

	var effects []Effect
	switch actor.ID {
	case session.ClientID:
		if session.ClientRating != nil {
			return Result{}, &DuplicateRatingError{SessionID: session.ID, ActorID: actor.ID}
		}
		recorded := score
		updated.ClientRating = &recorded
		overall := score.Overall
		effects = append(effects, RecomputeInterpreterStats{
			InterpreterID: session.InterpreterID,
			Rating:        &overall,
		})
	case session.InterpreterID:
		if session.InterpreterRating != nil {
			return Result{}, &DuplicateRatingError{SessionID: session.ID, ActorID: actor.ID}
		}
		recorded := score
		updated.InterpreterRating = &recorded
	default:
		vErr := NewValidationError(CodeValidation)
		vErr.Add("actor", "only session participants may submit ratings")
		return Result{}, vErr
	}

	effects = append([]Effect{PersistSession{Session: updated}}, effects...)
	effects = append(effects, NotifyParties{
		Event:     EventSessionRated,
		SessionID: updated.ID,
		RequestID: updated.RequestID,
		Payload:   statusPayload(updated),
	})

	return Result{Session: updated, Effects: effects}, nil
}

func validateScore(score rating.Score) error {
	vErr := NewValidationError(CodeRatingOutOfRange)
	if !rating.InRange(score.Overall) {
		vErr.Add("overall", "overall rating must be between 1 and 5")
	}
	components := map[string]int{
		"punctuality":     score.Punctuality,
		"professionalism": score.Professionalism,
		"accuracy":        score.Accuracy,
		"communication":   score.Communication,
	}
	for field, value := range components {
		if value != 0 && !rating.InRange(value) {
			vErr.Add(field, field+" rating must be between 1 and 5")
		}
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

// requestTarget names the state a request action drives toward.
func requestTarget(action RequestAction) RequestStatus {
	switch action {
	case RequestActionConfirm:
		return RequestConfirmed
	case RequestActionStart:
		return RequestInProgress
	case RequestActionComplete:
		return RequestCompleted
	case RequestActionCancel:
		return RequestCancelled
	case RequestActionReject:
		return RequestRejected
	}
	return RequestStatus(action)
}

// ApplyRequest validates and applies a service request transition. The forward
// order is PENDING, CONFIRMED, IN_PROGRESS, COMPLETED; rejection is legal only
// while PENDING and cancellation from any non-terminal state.
func (m *Machine) ApplyRequest(request ServiceRequest, action RequestAction, actor Actor, params ActionParams, env Env) (RequestResult, error) {
	invalid := func() error {
		return &InvalidTransitionError{
			Entity:    "request",
			EntityID:  request.ID,
			Current:   string(request.Status),
			Requested: string(requestTarget(action)),
		}
	}

	now := env.at(m.now)
	updated := request
	updated.UpdatedAt = now

	var event string
	switch action {
	case RequestActionConfirm:
		if request.Status != RequestPending {
			return RequestResult{}, invalid()
		}
		updated.Status = RequestConfirmed
		event = EventRequestConfirmed
	case RequestActionStart:
		if request.Status != RequestConfirmed {
			return RequestResult{}, invalid()
		}
		updated.Status = RequestInProgress
		event = EventRequestStarted
	case RequestActionComplete:
		if request.Status != RequestInProgress {
			return RequestResult{}, invalid()
		}
		updated.Status = RequestCompleted
		event = EventRequestCompleted
	case RequestActionCancel:
		if request.Terminal() {
			return RequestResult{}, invalid()
		}
		updated.Status = RequestCancelled
		event = EventRequestCancelled
	case RequestActionReject:
		if request.Status != RequestPending {
			return RequestResult{}, invalid()
		}
		updated.Status = RequestRejected
		updated.RejectionReason = params.RejectionReason
		event = EventRequestRejected
	default:
		return RequestResult{}, invalid()
	}

	return RequestResult{
		Request: updated,
		Effects: []Effect{
			PersistRequest{Request: updated},
			NotifyParties{
				Event:     event,
				RequestID: updated.ID,
				SessionID: updated.SessionID,
				Payload:   map[string]string{"status": string(updated.Status)},
			},
		},
	}, nil
}

// applyQuote computes and stores the cost breakdown for the given billable
// duration and stamps QuotedAt. Callers must not invoke it once the session
// is paid.
func applyQuote(session *Session, rates pricing.RateStructure, durationMinutes int, quotedAt time.Time) {
	hourlyRate := session.HourlyRate
	if hourlyRate == 0 {
		hourlyRate = rates.HourlyRate
		session.HourlyRate = hourlyRate
	}

	quote := pricing.Compute(pricing.Input{
		Kind:            session.Type.Billing(),
		DurationMinutes: durationMinutes,
		HourlyRate:      hourlyRate,
		MinimumHours:    rates.MinimumHours,
		RatePerWord:     rates.RatePerWord,
		WordCount:       session.WordCount,
		Specialization:  session.Specialization,
		Multipliers:     rates.Specializations,
		AdditionalFees:  session.AdditionalFees,
	})

	session.BaseCost = quote.BaseCost
	session.FeeTotal = quote.Fees
	session.TotalCost = quote.Total
	session.QuotedAt = &quotedAt
}

func statusPayload(session Session) map[string]string {
	return map[string]string{
		"status":         string(session.EffectiveStatus()),
		"client_id":      session.ClientID,
		"interpreter_id": session.InterpreterID,
	}
}
