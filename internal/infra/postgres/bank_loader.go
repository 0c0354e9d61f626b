package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"trivia-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// BankLoader loads the fallback question bank from Postgres, one JSONB row
// per question.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

func (l *BankLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var question domain.Question
		if err := json.Unmarshal(raw, &question); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question bank: %w", err)
	}
	return questions, nil
}
