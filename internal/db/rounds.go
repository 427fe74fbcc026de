package db

import (
	"context"
	"fmt"

	"mathbattle/internal/events"
)

const insertRound = `
	INSERT INTO rounds (id, room_code, mode, outcome, winner, lhs, rhs, correct_answer, started_at, ended_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO NOTHING
`

func roundArgs(r events.RoundResult) []any {
	return []any{r.ID, r.RoomCode, string(r.Mode), string(r.Outcome), r.Winner, r.LHS, r.RHS, r.CorrectAnswer, r.StartedAt, r.EndedAt}
}

// BatchRecordRounds writes rounds in one transaction. Rounds whose id is
// already stored are skipped, so a retried batch is safe.
func (d *DB) BatchRecordRounds(ctx context.Context, rounds []events.RoundResult) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertRound)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range rounds {
		if _, err := stmt.ExecContext(ctx, roundArgs(r)...); err != nil {
			return fmt.Errorf("recording round in batch: %w", err)
		}
	}

	return tx.Commit()
}
