package sqlite

import (
	"context"
	"strings"

	"github.com/example/interpreter-brokerage/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateUser stores a new account together with its credentials
func (r *UserRepository) CreateUser(ctx context.Context, creds persistence.UserCredentials) error {
	user := creds.User
	if strings.TrimSpace(user.ID) == "" || strings.TrimSpace(user.Email) == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO users (id, email, display_name, role, password_hash, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.helper.Exec(ctx, query,
		user.ID,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.DisplayName,
		user.Role,
		creds.PasswordHash,
		creds.Disabled,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateUser updates the account's profile fields. Credentials are untouched.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	query := `
		UPDATE users SET email = ?, display_name = ?, role = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.helper.Exec(ctx, query,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.DisplayName,
		user.Role,
		formatTime(user.UpdatedAt),
		user.ID,
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

// GetUser retrieves an account by ID
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	query := `
		SELECT id, email, display_name, role, created_at, updated_at
		FROM users WHERE id = ?
	`

	var user persistence.User
	var createdAt, updatedAt string

	err := r.helper.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.Role,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}

	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.User{}, err
	}

	return user, nil
}

// GetUserCredentialsByEmail retrieves an account and its credentials for login
func (r *UserRepository) GetUserCredentialsByEmail(ctx context.Context, email string) (persistence.UserCredentials, error) {
	query := `
		SELECT id, email, display_name, role, password_hash, disabled, created_at, updated_at
		FROM users WHERE email = ?
	`

	var creds persistence.UserCredentials
	var createdAt, updatedAt string

	err := r.helper.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))).Scan(
		&creds.User.ID,
		&creds.User.Email,
		&creds.User.DisplayName,
		&creds.User.Role,
		&creds.PasswordHash,
		&creds.Disabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.UserCredentials{}, r.mapper.MapError(err)
	}

	if creds.User.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.UserCredentials{}, err
	}
	if creds.User.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.UserCredentials{}, err
	}

	return creds, nil
}

// ListUsers retrieves all accounts ordered by email
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	query := `
		SELECT id, email, display_name, role, created_at, updated_at
		FROM users ORDER BY email
	`

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		var user persistence.User
		var createdAt, updatedAt string

		if err := rows.Scan(&user.ID, &user.Email, &user.DisplayName, &user.Role, &createdAt, &updatedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if user.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}

		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return users, nil
}
