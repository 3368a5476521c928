package store

import (
	"context"
	"database/sql"

	"mediaparser/internal/model"
)

// RecordDecision appends an audit row for a user-directed mutation.
// UserDecisions are never consulted for correctness; they exist purely for
// traceability per spec.md §3.
func RecordDecision(ctx context.Context, tx *sql.Tx, fileID int64, actionType model.ActionType, valueJSON string) error {
	if valueJSON == "" {
		valueJSON = "{}"
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_decisions (file_id, decision_type, decision_value, decided_at)
		VALUES (?, ?, ?, ?)`, fileID, string(actionType), valueJSON, nowUTC())
	return err
}

// Decisions returns the audit trail for a file, most recent first.
func (s *Store) Decisions(ctx context.Context, fileID int64) ([]model.UserDecision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, decision_type, decision_value, decided_at
		FROM user_decisions WHERE file_id = ? ORDER BY decided_at DESC`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.UserDecision
	for rows.Next() {
		var d model.UserDecision
		var decisionType, decidedAt string
		if err := rows.Scan(&d.ID, &d.FileID, &decisionType, &d.DecisionValue, &decidedAt); err != nil {
			return nil, err
		}
		d.DecisionType = model.ActionType(decisionType)
		out = append(out, d)
	}
	return out, rows.Err()
}
