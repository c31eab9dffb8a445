package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/persistence"
	"github.com/example/interpreter-brokerage/internal/rating"
)

// Notifier delivers lifecycle events to the parties involved.
type Notifier interface {
	Publish(ctx context.Context, event string, payload map[string]string) error
}

// InvoiceDrafts discards draft invoices derived from a session's previous cost.
type InvoiceDrafts interface {
	Invalidate(ctx context.Context, sessionID string) error
}

// NoopNotifier drops events. Used when no broker is configured.
type NoopNotifier struct{}

// Publish implements Notifier.
func (NoopNotifier) Publish(context.Context, string, map[string]string) error { return nil }

// NoopInvoiceDrafts ignores invalidations. Used when billing is not wired.
type NoopInvoiceDrafts struct{}

// Invalidate implements InvoiceDrafts.
func (NoopInvoiceDrafts) Invalidate(context.Context, string) error { return nil }

// EffectExecutor carries out the side-effect instructions the lifecycle engine
// returns. Persistence failures abort execution; notification failures are
// logged and swallowed so a flaky broker cannot roll back a committed
// transition.
type EffectExecutor struct {
	sessions     persistence.SessionRepository
	requests     persistence.RequestRepository
	interpreters persistence.InterpreterRepository
	notifier     Notifier
	invoices     InvoiceDrafts
	logger       *slog.Logger
}

// NewEffectExecutor wires the collaborators effects are executed against. A
// nil notifier or invoice collaborator falls back to a noop implementation.
func NewEffectExecutor(sessions persistence.SessionRepository, requests persistence.RequestRepository, interpreters persistence.InterpreterRepository, notifier Notifier, invoices InvoiceDrafts, logger *slog.Logger) *EffectExecutor {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if invoices == nil {
		invoices = NoopInvoiceDrafts{}
	}
	return &EffectExecutor{
		sessions:     sessions,
		requests:     requests,
		interpreters: interpreters,
		notifier:     notifier,
		invoices:     invoices,
		logger:       defaultLogger(logger),
	}
}

// Execute runs the effects in order.
func (e *EffectExecutor) Execute(ctx context.Context, effects []lifecycle.Effect) error {
	for _, effect := range effects {
		if err := e.execute(ctx, effect); err != nil {
			return err
		}
	}
	return nil
}

func (e *EffectExecutor) execute(ctx context.Context, effect lifecycle.Effect) error {
	switch ef := effect.(type) {
	case lifecycle.PersistSession:
		return e.persistSession(ctx, ef.Session)
	case lifecycle.PersistRequest:
		return e.persistRequest(ctx, ef.Request)
	case lifecycle.RecomputeInterpreterStats:
		return e.recomputeStats(ctx, ef)
	case lifecycle.NotifyParties:
		payload := ef.Payload
		if payload == nil {
			payload = map[string]string{}
		}
		if ef.SessionID != "" {
			payload["session_id"] = ef.SessionID
		}
		if ef.RequestID != "" {
			payload["request_id"] = ef.RequestID
		}
		if err := e.notifier.Publish(ctx, ef.Event, payload); err != nil {
			e.logger.WarnContext(ctx, "event delivery failed",
				"event", ef.Event,
				"session_id", ef.SessionID,
				"error", err,
			)
		}
		return nil
	case lifecycle.InvalidateInvoiceDraft:
		if err := e.invoices.Invalidate(ctx, ef.SessionID); err != nil {
			e.logger.WarnContext(ctx, "invoice draft invalidation failed",
				"session_id", ef.SessionID,
				"error", err,
			)
		}
		return nil
	}
	return fmt.Errorf("unknown effect %T", effect)
}

// persistSession updates the session, falling back to insert for successors
// minted by a reschedule.
func (e *EffectExecutor) persistSession(ctx context.Context, session lifecycle.Session) error {
	err := e.sessions.UpdateSession(ctx, session)
	if errors.Is(err, persistence.ErrNotFound) {
		return e.sessions.CreateSession(ctx, session)
	}
	return err
}

func (e *EffectExecutor) persistRequest(ctx context.Context, request lifecycle.ServiceRequest) error {
	err := e.requests.UpdateRequest(ctx, request)
	if errors.Is(err, persistence.ErrNotFound) {
		return e.requests.CreateRequest(ctx, request)
	}
	return err
}

// recomputeStats folds the instructed deltas into the interpreter's running
// statistics block.
func (e *EffectExecutor) recomputeStats(ctx context.Context, ef lifecycle.RecomputeInterpreterStats) error {
	interpreter, err := e.interpreters.GetInterpreter(ctx, ef.InterpreterID)
	if err != nil {
		return err
	}

	stats := interpreter.Stats
	stats.TotalSessionsCompleted += ef.CompletedDelta
	stats.TotalEarnings += ef.EarningsDelta
	if ef.Rating != nil {
		agg := rating.Fold(stats.Aggregate(), *ef.Rating)
		stats.AverageRating = agg.Average
		stats.TotalRatings = agg.Total
	}

	return e.interpreters.UpdateStats(ctx, ef.InterpreterID, stats)
}
