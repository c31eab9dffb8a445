package lifecycle

import (
	"time"

	"github.com/example/interpreter-brokerage/internal/booking"
	"github.com/example/interpreter-brokerage/internal/pricing"
	"github.com/example/interpreter-brokerage/internal/rating"
)

// SessionType identifies the kind of service a session delivers.
type SessionType string

const (
	// SessionTypeTranslation is asynchronous document translation billed per word.
	SessionTypeTranslation SessionType = "TRANSLATION"
	// SessionTypeInPerson is on-site interpretation billed hourly.
	SessionTypeInPerson SessionType = "IN_PERSON"
	// SessionTypePhone is phone interpretation billed hourly.
	SessionTypePhone SessionType = "PHONE"
	// SessionTypeVideo is video interpretation billed hourly.
	SessionTypeVideo SessionType = "VIDEO"
)

// Billing maps the session type to its billing model.
func (t SessionType) Billing() pricing.BillingKind {
	if t == SessionTypeTranslation {
		return pricing.BillingPerWord
	}
	return pricing.BillingHourly
}

// KnownSessionType reports whether the value is one of the declared session types.
func KnownSessionType(t SessionType) bool {
	switch t {
	case SessionTypeTranslation, SessionTypeInPerson, SessionTypePhone, SessionTypeVideo:
		return true
	}
	return false
}

// SessionStatus is the closed set of states an InterpreterSession moves through.
type SessionStatus string

const (
	SessionRequested  SessionStatus = "REQUESTED"
	SessionConfirmed  SessionStatus = "CONFIRMED"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionCancelled  SessionStatus = "CANCELLED"
	SessionNoShow     SessionStatus = "NO_SHOW"
	// SessionRescheduled is never stored; it is the status a superseded
	// session reports once its RescheduledSessionID link is set.
	SessionRescheduled SessionStatus = "RESCHEDULED"
)

// CancellationCategory classifies why a session was called off.
type CancellationCategory string

const (
	CancellationByClient      CancellationCategory = "CLIENT"
	CancellationByInterpreter CancellationCategory = "INTERPRETER"
	CancellationByPlatform    CancellationCategory = "PLATFORM"
	CancellationEmergency     CancellationCategory = "EMERGENCY"
)

// Cancellation records who called a session off, when, and why.
type Cancellation struct {
	Reason      string
	Category    CancellationCategory
	CancelledBy string
	CancelledAt time.Time
}

// Session is the booked unit of work tying one client, one interpreter, one
// time interval, and one rate. Completed, cancelled, and no-show sessions are
// logically terminal and never deleted.
type Session struct {
	ID            string
	RequestID     string
	ClientID      string
	InterpreterID string

	Type           SessionType
	Specialization string
	LanguageFrom   string
	LanguageTo     string

	Status SessionStatus

	ScheduledStart time.Time
	ScheduledEnd   time.Time
	ActualStart    *time.Time
	ActualEnd      *time.Time
	// ActualDurationMinutes is derived from the actual timestamps on completion.
	ActualDurationMinutes int

	HourlyRate     float64
	WordCount      int
	AdditionalFees []pricing.Fee
	BaseCost       float64
	FeeTotal       float64
	TotalCost      float64
	// QuotedAt marks when the cost breakdown was fixed. A quoted session is
	// never re-priced, even when the quote legitimately came to zero.
	QuotedAt *time.Time

	PaymentID string
	IsPaid    bool

	// Reschedule linkage. OriginalSessionID points at the session this one
	// replaced; RescheduledSessionID points at the successor that superseded
	// this one. RescheduledCount is the number of reschedules in the chain
	// leading to this session.
	OriginalSessionID    string
	RescheduledSessionID string
	RescheduledCount     int

	Cancellation *Cancellation

	ClientRating      *rating.Score
	InterpreterRating *rating.Score

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interval returns the scheduled time range as a half-open interval.
func (s Session) Interval() booking.Interval {
	return booking.Interval{Start: s.ScheduledStart, End: s.ScheduledEnd}
}

// Superseded reports whether a reschedule replaced this session.
func (s Session) Superseded() bool {
	return s.RescheduledSessionID != ""
}

// EffectiveStatus is the externally visible status. A superseded session
// reports RESCHEDULED regardless of the status it carried when replaced, so
// cancellation statistics stay accurate.
func (s Session) EffectiveStatus() SessionStatus {
	if s.Superseded() {
		return SessionRescheduled
	}
	return s.Status
}

// Terminal reports whether no further transitions are legal.
func (s Session) Terminal() bool {
	if s.Superseded() {
		return true
	}
	switch s.Status {
	case SessionCompleted, SessionCancelled, SessionNoShow:
		return true
	}
	return false
}

// Committed reports whether the session occupies the interpreter's calendar
// for conflict purposes.
func (s Session) Committed() bool {
	if s.Superseded() {
		return false
	}
	return s.Status == SessionConfirmed || s.Status == SessionInProgress
}

// CostFinalized reports whether the session's cost has been fixed. A paid
// session's cost is immutable.
func (s Session) CostFinalized() bool {
	return s.IsPaid || s.QuotedAt != nil
}
