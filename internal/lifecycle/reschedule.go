package lifecycle

import (
	"time"

	"github.com/example/interpreter-brokerage/internal/booking"
)

// RescheduleTracker maintains the chain linking an original session to its
// rescheduled successor. A session may be rescheduled at most once forward; a
// later reschedule must act on the newest session in the chain.
type RescheduleTracker struct {
	idGenerator func() string
	now         func() time.Time
}

// NewRescheduleTracker wires the tracker's identifier and time sources.
func NewRescheduleTracker(idGenerator func() string, now func() time.Time) *RescheduleTracker {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RescheduleTracker{idGenerator: idGenerator, now: now}
}

// RescheduleResult carries both ends of a new chain link plus the effects for
// collaborators to execute.
type RescheduleResult struct {
	Old     Session
	New     Session
	Effects []Effect
}

// Reschedule replaces old with a successor session occupying newInterval.
// The old session is superseded, never deleted, and its status is not
// overwritten so cancellation statistics stay accurate.
func (t *RescheduleTracker) Reschedule(old Session, newInterval booking.Interval, actor Actor, env Env) (RescheduleResult, error) {
	if old.Superseded() {
		return RescheduleResult{}, &AlreadyRescheduledError{
			SessionID:   old.ID,
			SuccessorID: old.RescheduledSessionID,
		}
	}

	// Only sessions that have not begun can move to a new slot.
	if old.Status != SessionRequested && old.Status != SessionConfirmed {
		return RescheduleResult{}, &InvalidTransitionError{
			Entity:    "session",
			EntityID:  old.ID,
			Current:   string(old.Status),
			Requested: string(SessionRescheduled),
		}
	}

	if !newInterval.Valid() {
		vErr := NewValidationError(CodeInvalidInterval)
		vErr.Add("scheduled_time", "scheduled end must be after scheduled start")
		return RescheduleResult{}, vErr
	}

	verdict := booking.Check(env.Committed, newInterval, old.ID)
	if !verdict.Bookable {
		return RescheduleResult{}, &ConflictError{
			InterpreterID: old.InterpreterID,
			ConflictsWith: verdict.ConflictsWith,
		}
	}

	now := env.Now
	if now.IsZero() {
		now = t.now()
	}

	successor := Session{
		ID:                t.idGenerator(),
		RequestID:         old.RequestID,
		ClientID:          old.ClientID,
		InterpreterID:     old.InterpreterID,
		Type:              old.Type,
		Specialization:    old.Specialization,
		LanguageFrom:      old.LanguageFrom,
		LanguageTo:        old.LanguageTo,
		Status:            old.Status,
		ScheduledStart:    newInterval.Start,
		ScheduledEnd:      newInterval.End,
		HourlyRate:        old.HourlyRate,
		WordCount:         old.WordCount,
		AdditionalFees:    old.AdditionalFees,
		PaymentID:         old.PaymentID,
		IsPaid:            old.IsPaid,
		OriginalSessionID: old.ID,
		RescheduledCount:  old.RescheduledCount + 1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if old.IsPaid {
		// A paid cost is immutable; the successor carries it verbatim.
		successor.BaseCost = old.BaseCost
		successor.FeeTotal = old.FeeTotal
		successor.TotalCost = old.TotalCost
		successor.QuotedAt = old.QuotedAt
	} else if successor.Status == SessionConfirmed {
		applyQuote(&successor, env.Rates, int(newInterval.Duration().Minutes()), now)
	}

	superseded := old
	superseded.RescheduledSessionID = successor.ID
	superseded.UpdatedAt = now

	return RescheduleResult{
		Old: superseded,
		New: successor,
		Effects: []Effect{
			PersistSession{Session: superseded},
			PersistSession{Session: successor},
			NotifyParties{
				Event:     EventSessionRescheduled,
				SessionID: successor.ID,
				RequestID: successor.RequestID,
				Payload: map[string]string{
					"superseded_session_id": superseded.ID,
					"client_id":             successor.ClientID,
					"interpreter_id":        successor.InterpreterID,
				},
			},
			InvalidateInvoiceDraft{SessionID: superseded.ID},
		},
	}, nil
}
