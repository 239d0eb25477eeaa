package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-duel-service/internal/domain"
)

// Recorder persists finished matches and visit analytics.
type Recorder struct {
	pool *pgxpool.Pool
}

func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

func (r *Recorder) RecordMatch(ctx context.Context, rec domain.MatchRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO matches (room_id, player1_id, player1_name, player2_id, player2_name, player1_score, player2_score, winner, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (room_id) DO NOTHING`,
		rec.RoomID, rec.Player1ID, rec.Player1Name, rec.Player2ID, rec.Player2Name,
		rec.Player1Score, rec.Player2Score, rec.WinnerName, rec.FinishedAt)
	if err != nil {
		return fmt.Errorf("record match: %w", err)
	}
	return nil
}

func (r *Recorder) RecordVisit(ctx context.Context, v domain.Visit) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO visits (ip, user_agent, path, at) VALUES ($1, $2, $3, $4)`,
		v.IP, v.UserAgent, v.Path, v.At)
	if err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

// MatchHistory returns up to limit finished matches, newest first.
func (r *Recorder) MatchHistory(ctx context.Context, limit int) ([]domain.MatchRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT room_id, player1_id, player1_name, player2_id, player2_name, player1_score, player2_score, winner, finished_at
		FROM matches ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("match history: %w", err)
	}
	defer rows.Close()

	var records []domain.MatchRecord
	for rows.Next() {
		var rec domain.MatchRecord
		if err := rows.Scan(&rec.RoomID, &rec.Player1ID, &rec.Player1Name, &rec.Player2ID, &rec.Player2Name,
			&rec.Player1Score, &rec.Player2Score, &rec.WinnerName, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// VisitStats returns per-day visit counts for the most recent days.
func (r *Recorder) VisitStats(ctx context.Context, days int) ([]domain.VisitStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(at::date, 'YYYY-MM-DD') AS date, COUNT(*) AS total
		FROM visits GROUP BY at::date ORDER BY at::date DESC LIMIT $1`, days)
	if err != nil {
		return nil, fmt.Errorf("visit stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.VisitStat
	for rows.Next() {
		var s domain.VisitStat
		if err := rows.Scan(&s.Date, &s.Total); err != nil {
			return nil, fmt.Errorf("scan visit stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
