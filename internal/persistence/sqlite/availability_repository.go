package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/interpreter-brokerage/internal/availability"
	"github.com/example/interpreter-brokerage/internal/persistence"
)

// AvailabilityRepository implements persistence.AvailabilityRepository using SQLite
type AvailabilityRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewAvailabilityRepository creates a new SQLite availability repository
func NewAvailabilityRepository(pool *ConnectionPool) *AvailabilityRepository {
	return &AvailabilityRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// UpsertRule inserts the rule or replaces it when the ID already exists
func (r *AvailabilityRepository) UpsertRule(ctx context.Context, rule availability.Rule) error {
	if strings.TrimSpace(rule.ID) == "" || strings.TrimSpace(rule.InterpreterID) == "" {
		return persistence.ErrConstraintViolation
	}

	windows, err := marshalJSON(rule.Windows)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO availability_rules (id, interpreter_id, windows, effective_from, effective_until)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			interpreter_id = excluded.interpreter_id,
			windows = excluded.windows,
			effective_from = excluded.effective_from,
			effective_until = excluded.effective_until
	`

	_, err = r.helper.Exec(ctx, query,
		rule.ID,
		rule.InterpreterID,
		windows,
		formatTime(rule.EffectiveFrom),
		nullTime(rule.EffectiveUntil),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// ListRulesForInterpreter retrieves the interpreter's availability rules
func (r *AvailabilityRepository) ListRulesForInterpreter(ctx context.Context, interpreterID string) ([]availability.Rule, error) {
	query := `
		SELECT id, interpreter_id, windows, effective_from, effective_until
		FROM availability_rules
		WHERE interpreter_id = ?
		ORDER BY effective_from, id
	`

	rows, err := r.helper.Query(ctx, query, interpreterID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rules []availability.Rule
	for rows.Next() {
		var rule availability.Rule
		var windows, effectiveFrom string
		var effectiveUntil sql.NullString

		if err := rows.Scan(&rule.ID, &rule.InterpreterID, &windows, &effectiveFrom, &effectiveUntil); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if err := unmarshalJSON(windows, &rule.Windows); err != nil {
			return nil, err
		}
		if rule.EffectiveFrom, err = parseTime(effectiveFrom); err != nil {
			return nil, err
		}
		if rule.EffectiveUntil, err = parseTimePtr(effectiveUntil); err != nil {
			return nil, err
		}

		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rules, nil
}

// DeleteRule removes an availability rule
func (r *AvailabilityRepository) DeleteRule(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM availability_rules WHERE id = ?`, id)
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
