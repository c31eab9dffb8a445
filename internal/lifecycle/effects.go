package lifecycle

// Effect is a side-effect instruction the engine returns for an external
// collaborator to execute. The engine itself never performs I/O; the
// surrounding service persists entities, recomputes statistics, and delivers
// notifications on its behalf.
type Effect interface {
	effect()
}

// PersistSession instructs the persistence collaborator to store the session.
type PersistSession struct {
	Session Session
}

// PersistRequest instructs the persistence collaborator to store the request.
type PersistRequest struct {
	Request ServiceRequest
}

// RecomputeInterpreterStats instructs the persistence collaborator to fold
// deltas into the interpreter's running statistics. When Rating is set, the
// overall score is folded into the running average as well.
type RecomputeInterpreterStats struct {
	InterpreterID  string
	CompletedDelta int
	EarningsDelta  float64
	Rating         *int
}

// NotifyParties instructs the notification collaborator to inform the
// client and interpreter about a lifecycle event.
type NotifyParties struct {
	Event     string
	SessionID string
	RequestID string
	Payload   map[string]string
}

// InvalidateInvoiceDraft instructs the billing collaborator to discard any
// draft invoice derived from the session's previous cost.
type InvalidateInvoiceDraft struct {
	SessionID string
}

func (PersistSession) effect()            {}
func (PersistRequest) effect()            {}
func (RecomputeInterpreterStats) effect() {}
func (NotifyParties) effect()             {}
func (InvalidateInvoiceDraft) effect()    {}

// Lifecycle event names carried by NotifyParties effects.
const (
	EventSessionConfirmed   = "session.confirmed"
	EventSessionStarted     = "session.started"
	EventSessionCompleted   = "session.completed"
	EventSessionCancelled   = "session.cancelled"
	EventSessionNoShow      = "session.no_show"
	EventSessionRescheduled = "session.rescheduled"
	EventSessionRated       = "session.rated"
	EventRequestConfirmed   = "request.confirmed"
	EventRequestStarted     = "request.started"
	EventRequestCompleted   = "request.completed"
	EventRequestCancelled   = "request.cancelled"
	EventRequestRejected    = "request.rejected"
)
