package application

import (
	"time"

	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/persistence"
	"github.com/example/interpreter-brokerage/internal/pricing"
	"github.com/example/interpreter-brokerage/internal/rating"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   lifecycle.Role
}

// IsAdmin reports whether the principal holds the platform admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == lifecycle.RoleAdmin
}

// Actor converts the principal into the identity the lifecycle engine expects.
func (p Principal) Actor() lifecycle.Actor {
	return lifecycle.Actor{ID: p.UserID, Role: p.Role}
}

// RegisterUserParams captures the data required to create an account.
type RegisterUserParams struct {
	Principal   Principal
	Email       string
	Password    string
	DisplayName string
	Role        lifecycle.Role
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User      persistence.User
	Token     string
	ExpiresAt time.Time
}

// RequestInput captures caller provided service request fields.
type RequestInput struct {
	ClientID       string
	Type           lifecycle.SessionType
	Specialization string
	LanguageFrom   string
	LanguageTo     string
	PreferredStart *time.Time
	PreferredEnd   *time.Time
	Urgency        lifecycle.UrgencyLevel
	WordCount      int
}

// CreateRequestParams wraps the data required to open a service request.
type CreateRequestParams struct {
	Principal Principal
	Input     RequestInput
}

// RequestActionParams wraps the data required to transition a service request.
type RequestActionParams struct {
	Principal       Principal
	RequestID       string
	Action          lifecycle.RequestAction
	RejectionReason string
}

// ListRequestsParams wraps the data required to list service requests.
type ListRequestsParams struct {
	Principal Principal
	ClientID  string
	Statuses  []lifecycle.RequestStatus
}

// SessionInput captures caller provided session fields.
type SessionInput struct {
	RequestID      string
	ClientID       string
	InterpreterID  string
	Type           lifecycle.SessionType
	Specialization string
	LanguageFrom   string
	LanguageTo     string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	HourlyRate     float64
	WordCount      int
	AdditionalFees []pricing.Fee
}

// CreateSessionParams wraps the data required to book a session.
type CreateSessionParams struct {
	Principal Principal
	Input     SessionInput
}

// SessionActionParams wraps the data required to transition a session.
type SessionActionParams struct {
	Principal    Principal
	SessionID    string
	Action       lifecycle.Action
	ActualStart  *time.Time
	ActualEnd    *time.Time
	Cancellation *lifecycle.Cancellation
}

// RescheduleSessionParams wraps the data required to reschedule a session.
type RescheduleSessionParams struct {
	Principal Principal
	SessionID string
	NewStart  time.Time
	NewEnd    time.Time
}

// RateSessionParams wraps the data required to record a session rating.
type RateSessionParams struct {
	Principal Principal
	SessionID string
	Score     rating.Score
}

// ListSessionsParams wraps the data required to list sessions.
type ListSessionsParams struct {
	Principal     Principal
	ClientID      string
	InterpreterID string
	Statuses      []lifecycle.SessionStatus
	StartsAfter   *time.Time
	EndsBefore    *time.Time
}

// InterpreterInput captures caller provided interpreter profile fields.
type InterpreterInput struct {
	UserID          string
	Name            string
	Languages       []string
	Specializations []string
	SessionTypes    []lifecycle.SessionType
	Rates           pricing.RateStructure
}

// CreateInterpreterParams wraps the data required to register an interpreter.
type CreateInterpreterParams struct {
	Principal Principal
	Input     InterpreterInput
}

// UpdateInterpreterParams wraps the data required to update an interpreter profile.
type UpdateInterpreterParams struct {
	Principal     Principal
	InterpreterID string
	Input         InterpreterInput
}

// AvailabilityPreviewParams wraps the data required to preview open slots.
type AvailabilityPreviewParams struct {
	Principal     Principal
	InterpreterID string
	From          time.Time
	To            time.Time
}
