package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mathbattle/internal/db"
)

var ErrNotFound = errors.New("no rounds recorded")

type Queries struct {
	DB *db.DB
}

func NewQueries(database *db.DB) *Queries {
	return &Queries{DB: database}
}

const playerStatsQuery = `
	WITH solved AS (
		SELECT winner, room_code, EXTRACT(EPOCH FROM (ended_at - started_at)) * 1000 AS solve_ms
		FROM rounds
		WHERE outcome = 'solved' AND winner <> '' %s
	), per_room AS (
		SELECT winner, COUNT(*) AS c FROM solved GROUP BY winner, room_code
	)
	SELECT s.winner,
		COUNT(*) AS wins,
		COUNT(DISTINCT s.room_code) AS rooms,
		COALESCE(AVG(s.solve_ms), 0) AS avg_ms,
		COALESCE(MIN(s.solve_ms), 0)::int AS fastest_ms,
		(SELECT MAX(c) FROM per_room p WHERE p.winner = s.winner) AS best_room
	FROM solved s
	GROUP BY s.winner
	ORDER BY wins DESC, avg_ms ASC
	LIMIT $1`

// GetLeaderboard ranks players by rounds won across every room.
func (q *Queries) GetLeaderboard(ctx context.Context, limit int) ([]PlayerStats, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return q.playerStats(ctx, fmt.Sprintf(playerStatsQuery, ""), limit)
}

func (q *Queries) GetRoomSummary(ctx context.Context, code string) (*RoomSummary, error) {
	summary := &RoomSummary{RoomCode: code}

	var first, last *time.Time
	err := q.DB.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'solved'),
			COUNT(*) FILTER (WHERE outcome = 'expired'),
			COUNT(*) FILTER (WHERE outcome = 'reset'),
			MIN(started_at),
			MAX(ended_at)
		FROM rounds
		WHERE room_code = $1
	`, code).Scan(&summary.Rounds, &summary.Solved, &summary.Expired, &summary.Resets, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("getting room summary: %w", err)
	}
	if summary.Rounds == 0 {
		return nil, ErrNotFound
	}
	summary.FirstRound, summary.LastRound = first, last

	players, err := q.playerStats(ctx, fmt.Sprintf(playerStatsQuery, "AND room_code = $2"), 100, code)
	if err != nil {
		return nil, err
	}
	summary.Players = players
	return summary, nil
}

func (q *Queries) playerStats(ctx context.Context, query string, limit int, args ...any) ([]PlayerStats, error) {
	rows, err := q.DB.Query(ctx, query, append([]any{limit}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("getting player stats: %w", err)
	}
	defer rows.Close()

	var entries []PlayerStats
	rank := 0
	for rows.Next() {
		var e PlayerStats
		if err := rows.Scan(&e.Name, &e.Wins, &e.Rooms, &e.AvgSolveMs, &e.FastestMs, &e.BestRoomWins); err != nil {
			return nil, err
		}
		rank++
		e.Rank = rank
		e.Badges = EvaluateBadges(e)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
