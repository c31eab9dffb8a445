package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite
type SessionRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSessionRepository creates a new SQLite session repository
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const sessionColumns = `id, request_id, client_id, interpreter_id, type, specialization,
	language_from, language_to, status, scheduled_start, scheduled_end,
	actual_start, actual_end, actual_duration_minutes, hourly_rate, word_count,
	additional_fees, base_cost, fee_total, total_cost, quoted_at, payment_id, is_paid,
	original_session_id, rescheduled_session_id, rescheduled_count,
	cancellation, client_rating, interpreter_rating, created_at, updated_at`

// CreateSession stores a new interpreter session
func (r *SessionRepository) CreateSession(ctx context.Context, session lifecycle.Session) error {
	if strings.TrimSpace(session.ID) == "" {
		return persistence.ErrConstraintViolation
	}

	args, err := sessionArgs(session)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO sessions (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionColumns)

	if _, err := r.helper.Exec(ctx, query, args...); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateSession replaces the stored state of an existing session
func (r *SessionRepository) UpdateSession(ctx context.Context, session lifecycle.Session) error {
	args, err := sessionArgs(session)
	if err != nil {
		return err
	}

	query := `
		UPDATE sessions SET
			request_id = ?, client_id = ?, interpreter_id = ?, type = ?,
			specialization = ?, language_from = ?, language_to = ?, status = ?,
			scheduled_start = ?, scheduled_end = ?, actual_start = ?, actual_end = ?,
			actual_duration_minutes = ?, hourly_rate = ?, word_count = ?,
			additional_fees = ?, base_cost = ?, fee_total = ?, total_cost = ?,
			quoted_at = ?, payment_id = ?, is_paid = ?, original_session_id = ?,
			rescheduled_session_id = ?, rescheduled_count = ?, cancellation = ?,
			client_rating = ?, interpreter_rating = ?, created_at = ?, updated_at = ?
		WHERE id = ?
	`

	// Rotate the id from first positional argument to the WHERE clause.
	rotated := append(args[1:], args[0])

	result, err := r.helper.Exec(ctx, query, rotated...)
	if err != nil {
		return r.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return r.mapper.MapError(err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetSession retrieves a session by ID
func (r *SessionRepository) GetSession(ctx context.Context, id string) (lifecycle.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = ?`, sessionColumns)

	session, err := scanSession(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		return lifecycle.Session{}, r.mapper.MapError(err)
	}
	return session, nil
}

// ListSessions retrieves sessions matching the filter, ordered by scheduled start
func (r *SessionRepository) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]lifecycle.Session, error) {
	var conditions []string
	var args []interface{}

	if filter.ClientID != "" {
		conditions = append(conditions, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.InterpreterID != "" {
		conditions = append(conditions, "interpreter_id = ?")
		args = append(args, filter.InterpreterID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.StartsAfter != nil {
		conditions = append(conditions, "scheduled_start >= ?")
		args = append(args, formatTime(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		conditions = append(conditions, "scheduled_end <= ?")
		args = append(args, formatTime(*filter.EndsBefore))
	}

	query := fmt.Sprintf(`SELECT %s FROM sessions`, sessionColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY scheduled_start, id"

	return r.querySessions(ctx, query, args...)
}

// CommittedSessions returns the interpreter's confirmed and in-progress
// sessions that have not been superseded, ordered by scheduled start
func (r *SessionRepository) CommittedSessions(ctx context.Context, interpreterID string) ([]lifecycle.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sessions
		WHERE interpreter_id = ?
		  AND status IN (?, ?)
		  AND rescheduled_session_id = ''
		ORDER BY scheduled_start, id
	`, sessionColumns)

	return r.querySessions(ctx, query,
		interpreterID,
		string(lifecycle.SessionConfirmed),
		string(lifecycle.SessionInProgress),
	)
}

func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...interface{}) ([]lifecycle.Session, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var sessions []lifecycle.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return sessions, nil
}

func sessionArgs(session lifecycle.Session) ([]interface{}, error) {
	fees, err := marshalJSON(session.AdditionalFees)
	if err != nil {
		return nil, err
	}
	cancellation, err := nullJSON(session.Cancellation, session.Cancellation == nil)
	if err != nil {
		return nil, err
	}
	clientRating, err := nullJSON(session.ClientRating, session.ClientRating == nil)
	if err != nil {
		return nil, err
	}
	interpreterRating, err := nullJSON(session.InterpreterRating, session.InterpreterRating == nil)
	if err != nil {
		return nil, err
	}

	return []interface{}{
		session.ID,
		session.RequestID,
		session.ClientID,
		session.InterpreterID,
		string(session.Type),
		session.Specialization,
		session.LanguageFrom,
		session.LanguageTo,
		string(session.Status),
		formatTime(session.ScheduledStart),
		formatTime(session.ScheduledEnd),
		nullTime(session.ActualStart),
		nullTime(session.ActualEnd),
		session.ActualDurationMinutes,
		session.HourlyRate,
		session.WordCount,
		fees,
		session.BaseCost,
		session.FeeTotal,
		session.TotalCost,
		nullTime(session.QuotedAt),
		session.PaymentID,
		session.IsPaid,
		session.OriginalSessionID,
		session.RescheduledSessionID,
		session.RescheduledCount,
		cancellation,
		clientRating,
		interpreterRating,
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (lifecycle.Session, error) {
	var session lifecycle.Session
	var sessionType, status string
	var scheduledStart, scheduledEnd, createdAt, updatedAt string
	var actualStart, actualEnd, quotedAt sql.NullString
	var fees string
	var cancellation, clientRating, interpreterRating sql.NullString

	err := row.Scan(
		&session.ID,
		&session.RequestID,
		&session.ClientID,
		&session.InterpreterID,
		&sessionType,
		&session.Specialization,
		&session.LanguageFrom,
		&session.LanguageTo,
		&status,
		&scheduledStart,
		&scheduledEnd,
		&actualStart,
		&actualEnd,
		&session.ActualDurationMinutes,
		&session.HourlyRate,
		&session.WordCount,
		&fees,
		&session.BaseCost,
		&session.FeeTotal,
		&session.TotalCost,
		&quotedAt,
		&session.PaymentID,
		&session.IsPaid,
		&session.OriginalSessionID,
		&session.RescheduledSessionID,
		&session.RescheduledCount,
		&cancellation,
		&clientRating,
		&interpreterRating,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return lifecycle.Session{}, err
	}

	session.Type = lifecycle.SessionType(sessionType)
	session.Status = lifecycle.SessionStatus(status)

	if session.ScheduledStart, err = parseTime(scheduledStart); err != nil {
		return lifecycle.Session{}, err
	}
	if session.ScheduledEnd, err = parseTime(scheduledEnd); err != nil {
		return lifecycle.Session{}, err
	}
	if session.ActualStart, err = parseTimePtr(actualStart); err != nil {
		return lifecycle.Session{}, err
	}
	if session.ActualEnd, err = parseTimePtr(actualEnd); err != nil {
		return lifecycle.Session{}, err
	}
	if session.QuotedAt, err = parseTimePtr(quotedAt); err != nil {
		return lifecycle.Session{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return lifecycle.Session{}, err
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return lifecycle.Session{}, err
	}

	if err := unmarshalJSON(fees, &session.AdditionalFees); err != nil {
		return lifecycle.Session{}, err
	}
	if err := unmarshalJSONPtr(cancellation, &session.Cancellation); err != nil {
		return lifecycle.Session{}, err
	}
	if err := unmarshalJSONPtr(clientRating, &session.ClientRating); err != nil {
		return lifecycle.Session{}, err
	}
	if err := unmarshalJSONPtr(interpreterRating, &session.InterpreterRating); err != nil {
		return lifecycle.Session{}, err
	}

	return session, nil
}
