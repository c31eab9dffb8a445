package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/persistence"
)

// InterpreterRepository implements persistence.InterpreterRepository using SQLite
type InterpreterRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewInterpreterRepository creates a new SQLite interpreter repository
func NewInterpreterRepository(pool *ConnectionPool) *InterpreterRepository {
	return &InterpreterRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const interpreterColumns = `id, user_id, name, status, availability, languages,
	specializations, session_types, rates, stats, created_at, updated_at`

// CreateInterpreter stores a new interpreter profile
func (r *InterpreterRepository) CreateInterpreter(ctx context.Context, interpreter lifecycle.Interpreter) error {
	if strings.TrimSpace(interpreter.ID) == "" {
		return persistence.ErrConstraintViolation
	}

	args, err := interpreterArgs(interpreter)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO interpreters (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, interpreterColumns)

	if _, err := r.helper.Exec(ctx, query, args...); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateInterpreter replaces the stored state of an existing interpreter
func (r *InterpreterRepository) UpdateInterpreter(ctx context.Context, interpreter lifecycle.Interpreter) error {
	args, err := interpreterArgs(interpreter)
	if err != nil {
		return err
	}

	query := `
		UPDATE interpreters SET
			user_id = ?, name = ?, status = ?, availability = ?, languages = ?,
			specializations = ?, session_types = ?, rates = ?, stats = ?,
			created_at = ?, updated_at = ?
		WHERE id = ?
	`

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

// GetInterpreter retrieves an interpreter by ID
func (r *InterpreterRepository) GetInterpreter(ctx context.Context, id string) (lifecycle.Interpreter, error) {
	query := fmt.Sprintf(`SELECT %s FROM interpreters WHERE id = ?`, interpreterColumns)

	interpreter, err := scanInterpreter(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		return lifecycle.Interpreter{}, r.mapper.MapError(err)
	}
	return interpreter, nil
}

// GetInterpreterByUserID retrieves the interpreter profile owned by a user
func (r *InterpreterRepository) GetInterpreterByUserID(ctx context.Context, userID string) (lifecycle.Interpreter, error) {
	query := fmt.Sprintf(`SELECT %s FROM interpreters WHERE user_id = ?`, interpreterColumns)

	interpreter, err := scanInterpreter(r.helper.QueryRow(ctx, query, userID))
	if err != nil {
		return lifecycle.Interpreter{}, r.mapper.MapError(err)
	}
	return interpreter, nil
}

// ListInterpreters retrieves all interpreter profiles ordered by name
func (r *InterpreterRepository) ListInterpreters(ctx context.Context) ([]lifecycle.Interpreter, error) {
	query := fmt.Sprintf(`SELECT %s FROM interpreters ORDER BY name, id`, interpreterColumns)

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var interpreters []lifecycle.Interpreter
	for rows.Next() {
		interpreter, err := scanInterpreter(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		interpreters = append(interpreters, interpreter)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return interpreters, nil
}

// UpdateStats replaces the interpreter's statistics block
func (r *InterpreterRepository) UpdateStats(ctx context.Context, interpreterID string, stats lifecycle.InterpreterStats) error {
	encoded, err := marshalJSON(stats)
	if err != nil {
		return err
	}

	result, err := r.helper.Exec(ctx,
		`UPDATE interpreters SET stats = ? WHERE id = ?`,
		encoded, interpreterID,
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

func interpreterArgs(interpreter lifecycle.Interpreter) ([]interface{}, error) {
	languages, err := marshalJSON(interpreter.Languages)
	if err != nil {
		return nil, err
	}
	specializations, err := marshalJSON(interpreter.Specializations)
	if err != nil {
		return nil, err
	}
	sessionTypes, err := marshalJSON(interpreter.SessionTypes)
	if err != nil {
		return nil, err
	}
	rates, err := marshalJSON(interpreter.Rates)
	if err != nil {
		return nil, err
	}
	stats, err := marshalJSON(interpreter.Stats)
	if err != nil {
		return nil, err
	}

	return []interface{}{
		interpreter.ID,
		interpreter.UserID,
		interpreter.Name,
		string(interpreter.Status),
		string(interpreter.Availability),
		languages,
		specializations,
		sessionTypes,
		rates,
		stats,
		formatTime(interpreter.CreatedAt),
		formatTime(interpreter.UpdatedAt),
	}, nil
}

func scanInterpreter(row rowScanner) (lifecycle.Interpreter, error) {
	var interpreter lifecycle.Interpreter
	var status, availability string
	var languages, specializations, sessionTypes, rates, stats string
	var createdAt, updatedAt string

	err := row.Scan(
		&interpreter.ID,
		&interpreter.UserID,
		&interpreter.Name,
		&status,
		&availability,
		&languages,
		&specializations,
		&sessionTypes,
		&rates,
		&stats,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return lifecycle.Interpreter{}, err
	}

	interpreter.Status = lifecycle.InterpreterStatus(status)
	interpreter.Availability = lifecycle.AvailabilityStatus(availability)

	if err := unmarshalJSON(languages, &interpreter.Languages); err != nil {
		return lifecycle.Interpreter{}, err
	}
	if err := unmarshalJSON(specializations, &interpreter.Specializations); err != nil {
		return lifecycle.Interpreter{}, err
	}
	if err := unmarshalJSON(sessionTypes, &interpreter.SessionTypes); err != nil {
		return lifecycle.Interpreter{}, err
	}
	if err := unmarshalJSON(rates, &interpreter.Rates); err != nil {
		return lifecycle.Interpreter{}, err
	}
	if err := unmarshalJSON(stats, &interpreter.Stats); err != nil {
		return lifecycle.Interpreter{}, err
	}

	if interpreter.CreatedAt, err = parseTime(createdAt); err != nil {
		return lifecycle.Interpreter{}, err
	}
	if interpreter.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return lifecycle.Interpreter{}, err
	}

	return interpreter, nil
}
