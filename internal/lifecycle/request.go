package lifecycle

import "time"

// RequestStatus is the closed set of states a ServiceRequest moves through.
type RequestStatus string

const (
	RequestPending    RequestStatus = "PENDING"
	RequestConfirmed  RequestStatus = "CONFIRMED"
	RequestInProgress RequestStatus = "IN_PROGRESS"
	RequestCompleted  RequestStatus = "COMPLETED"
	RequestCancelled  RequestStatus = "CANCELLED"
	RequestRejected   RequestStatus = "REJECTED"
)

// UrgencyLevel expresses how quickly a client needs the service delivered.
type UrgencyLevel string

const (
	UrgencyStandard  UrgencyLevel = "STANDARD"
	UrgencyUrgent    UrgencyLevel = "URGENT"
	UrgencyImmediate UrgencyLevel = "IMMEDIATE"
)

// ServiceRequest identifies a client's ask before it is matched to an
// interpreter. The lifecycle engine mutates it as it progresses toward a
// session or rejection.
type ServiceRequest struct {
	ID       string
	ClientID string

	Type           SessionType
	Specialization string
	LanguageFrom   string
	LanguageTo     string

	// Optional preferred schedule. Translation requests typically carry no
	// schedule, only a word count.
	PreferredStart *time.Time
	PreferredEnd   *time.Time

	Urgency   UrgencyLevel
	WordCount int

	Status          RequestStatus
	RejectionReason string
	SessionID       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether no further transitions are legal for the request.
func (r ServiceRequest) Terminal() bool {
	switch r.Status {
	case RequestCompleted, RequestCancelled, RequestRejected:
		return true
	}
	return false
}
