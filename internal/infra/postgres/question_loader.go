package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-duel-service/internal/domain"
)

// QuestionLoader reads the question pool from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, text, options, correct_option FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q       domain.Question
			rawOpts []byte
		)
		if err := rows.Scan(&q.ID, &q.Text, &rawOpts, &q.CorrectOption); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(rawOpts, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal question options: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return questions, nil
}
