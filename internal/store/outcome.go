package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"crosspost/internal/models"
)

// RecordOutcomes stores every outcome of one run in a single transaction.
func (s *PostStore) RecordOutcomes(ctx context.Context, postID uuid.UUID, outcomes []models.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record outcomes begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO publish_outcomes (post_id, destination, status, kind, reason, remote_id, reauth_required)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("record outcomes prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		if _, err := stmt.ExecContext(ctx, postID, o.Destination, o.Status, o.Kind, o.Reason, o.RemoteID, o.ReauthRequired); err != nil {
			return fmt.Errorf("record outcome %s: %w", o.Destination, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record outcomes commit: %w", err)
	}
	return nil
}

// ListOutcomes returns the recorded outcomes of a post in insertion order.
func (s *PostStore) ListOutcomes(ctx context.Context, postID uuid.UUID) ([]models.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT destination, status, kind, reason, remote_id, reauth_required
		FROM publish_outcomes WHERE post_id = $1 ORDER BY id
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []models.Outcome
	for rows.Next() {
		var o models.Outcome
		if err := rows.Scan(&o.Destination, &o.Status, &o.Kind, &o.Reason, &o.RemoteID, &o.ReauthRequired); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
