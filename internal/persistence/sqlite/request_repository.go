package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/persistence"
)

// RequestRepository implements persistence.RequestRepository using SQLite
type RequestRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewRequestRepository creates a new SQLite request repository
func NewRequestRepository(pool *ConnectionPool) *RequestRepository {
	return &RequestRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const requestColumns = `id, client_id, type, specialization, language_from, language_to,
	preferred_start, preferred_end, urgency, word_count, status,
	rejection_reason, session_id, created_at, updated_at`

// CreateRequest stores a new service request
func (r *RequestRepository) CreateRequest(ctx context.Context, request lifecycle.ServiceRequest) error {
	if strings.TrimSpace(request.ID) == "" {
		return persistence.ErrConstraintViolation
	}

	query := fmt.Sprintf(`
		INSERT INTO requests (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, requestColumns)

	_, err := r.helper.Exec(ctx, query,
		request.ID,
		request.ClientID,
		string(request.Type),
		request.Specialization,
		request.LanguageFrom,
		request.LanguageTo,
		nullTime(request.PreferredStart),
		nullTime(request.PreferredEnd),
		string(request.Urgency),
		request.WordCount,
		string(request.Status),
		request.RejectionReason,
		request.SessionID,
		formatTime(request.CreatedAt),
		formatTime(request.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateRequest replaces the stored state of an existing request
func (r *RequestRepository) UpdateRequest(ctx context.Context, request lifecycle.ServiceRequest) error {
	query := `
		UPDATE requests SET
			client_id = ?, type = ?, specialization = ?, language_from = ?,
			language_to = ?, preferred_start = ?, preferred_end = ?, urgency = ?,
			word_count = ?, status = ?, rejection_reason = ?, session_id = ?,
			created_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.helper.Exec(ctx, query,
		request.ClientID,
		string(request.Type),
		request.Specialization,
		request.LanguageFrom,
		request.LanguageTo,
		nullTime(request.PreferredStart),
		nullTime(request.PreferredEnd),
		string(request.Urgency),
		request.WordCount,
		string(request.Status),
		request.RejectionReason,
		request.SessionID,
		formatTime(request.CreatedAt),
		formatTime(request.UpdatedAt),
		request.ID,
	)
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

// GetRequest retrieves a request by ID
func (r *RequestRepository) GetRequest(ctx context.Context, id string) (lifecycle.ServiceRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE id = ?`, requestColumns)

	request, err := scanRequest(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		return lifecycle.ServiceRequest{}, r.mapper.MapError(err)
	}
	return request, nil
}

// ListRequests retrieves requests matching the filter, newest first
func (r *RequestRepository) ListRequests(ctx context.Context, filter persistence.RequestFilter) ([]lifecycle.ServiceRequest, error) {
	var conditions []string
	var args []interface{}

	if filter.ClientID != "" {
		conditions = append(conditions, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	query := fmt.Sprintf(`SELECT %s FROM requests`, requestColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var requests []lifecycle.ServiceRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return requests, nil
}

func scanRequest(row rowScanner) (lifecycle.ServiceRequest, error) {
	var request lifecycle.ServiceRequest
	var requestType, urgency, status string
	var preferredStart, preferredEnd sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&request.ID,
		&request.ClientID,
		&requestType,
		&request.Specialization,
		&request.LanguageFrom,
		&request.LanguageTo,
		&preferredStart,
		&preferredEnd,
		&urgency,
		&request.WordCount,
		&status,
		&request.RejectionReason,
		&request.SessionID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return lifecycle.ServiceRequest{}, err
	}

	request.Type = lifecycle.SessionType(requestType)
	request.Urgency = lifecycle.UrgencyLevel(urgency)
	request.Status = lifecycle.RequestStatus(status)

	if request.PreferredStart, err = parseTimePtr(preferredStart); err != nil {
		return lifecycle.ServiceRequest{}, err
	}
	if request.PreferredEnd, err = parseTimePtr(preferredEnd); err != nil {
		return lifecycle.ServiceRequest{}, err
	}
	if request.CreatedAt, err = parseTime(createdAt); err != nil {
		return lifecycle.ServiceRequest{}, err
	}
	if request.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return lifecycle.ServiceRequest{}, err
	}

	return request, nil
}
