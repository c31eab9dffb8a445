package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/interpreter-brokerage/internal/persistence"
)

// AuthSessionRepository implements persistence.AuthSessionRepository using SQLite
type AuthSessionRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewAuthSessionRepository creates a new SQLite auth session repository
func NewAuthSessionRepository(pool *ConnectionPool) *AuthSessionRepository {
	return &AuthSessionRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateAuthSession stores a new authentication session
func (r *AuthSessionRepository) CreateAuthSession(ctx context.Context, session persistence.AuthSession) (persistence.AuthSession, error) {
	if strings.TrimSpace(session.ID) == "" || strings.TrimSpace(session.UserID) == "" {
		return persistence.AuthSession{}, persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO auth_sessions (id, user_id, expires_at, revoked_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.helper.Exec(ctx, query,
		session.ID,
		session.UserID,
		formatTime(session.ExpiresAt),
		nullTime(session.RevokedAt),
		formatTime(session.CreatedAt),
	)
	if err != nil {
		return persistence.AuthSession{}, r.mapper.MapError(err)
	}
	return session, nil
}

// GetAuthSession retrieves an authentication session by ID
func (r *AuthSessionRepository) GetAuthSession(ctx context.Context, id string) (persistence.AuthSession, error) {
	query := `
		SELECT id, user_id, expires_at, revoked_at, created_at
		FROM auth_sessions WHERE id = ?
	`

	var session persistence.AuthSession
	var expiresAt, createdAt string
	var revokedAt sql.NullString

	err := r.helper.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&expiresAt,
		&revokedAt,
		&createdAt,
	)
	if err != nil {
		return persistence.AuthSession{}, r.mapper.MapError(err)
	}

	if session.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return persistence.AuthSession{}, err
	}
	if session.RevokedAt, err = parseTimePtr(revokedAt); err != nil {
		return persistence.AuthSession{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.AuthSession{}, err
	}

	return session, nil
}

// RevokeAuthSession marks a session revoked and returns the stored state
func (r *AuthSessionRepository) RevokeAuthSession(ctx context.Context, id string, revokedAt time.Time) (persistence.AuthSession, error) {
	result, err := r.helper.Exec(ctx,
		`UPDATE auth_sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		formatTime(revokedAt), id,
	)
	if err != nil {
		return persistence.AuthSession{}, r.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.AuthSession{}, r.mapper.MapError(err)
	}
	if affected == 0 {
		// Distinguish missing from already revoked.
		session, getErr := r.GetAuthSession(ctx, id)
		if getErr != nil {
			return persistence.AuthSession{}, getErr
		}
		return session, nil
	}

	return r.GetAuthSession(ctx, id)
}

// DeleteExpiredAuthSessions removes sessions that expired before the reference time
func (r *AuthSessionRepository) DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error {
	_, err := r.helper.Exec(ctx,
		`DELETE FROM auth_sessions WHERE expires_at < ?`,
		formatTime(reference),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}
