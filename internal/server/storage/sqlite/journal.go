package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/gophreview/internal/models"
)

// Record добавляет решения в журнал одной транзакцией
func (s *Storage) Record(ctx context.Context, decisions ...models.Decision) error {
	if len(decisions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO decisions (session_id, peer_id, annotation_id, action, admitted, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range decisions {
		createdAt := d.CreatedAt
		if createdAt.IsZero() {
			createdAt = s.now()
		}
		if _, err := stmt.ExecContext(ctx,
			d.SessionID,
			d.PeerID,
			d.AnnotationID,
			d.Action,
			boolToInt(d.Admitted),
			d.Reason,
			createdAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("failed to insert decision: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit decisions: %w", err)
	}
	return nil
}

// List возвращает решения сессии в порядке записи. limit <= 0 - все.
func (s *Storage) List(ctx context.Context, sessionID string, limit int) ([]models.Decision, error) {
	query := `
		SELECT id, session_id, peer_id, annotation_id, action, admitted, reason, created_at
		FROM decisions
		WHERE session_id = ?
		ORDER BY id
	`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	decisions := make([]models.Decision, 0)
	for rows.Next() {
		var (
			d         models.Decision
			admitted  int
			createdAt int64
		)
		if err := rows.Scan(&d.ID, &d.SessionID, &d.PeerID, &d.AnnotationID, &d.Action, &admitted, &d.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.Admitted = admitted != 0
		d.CreatedAt = time.UnixMilli(createdAt).UTC()
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decisions: %w", err)
	}
	return decisions, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
