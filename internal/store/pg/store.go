package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"autopost/internal/domain"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// Append mirrors one post log row into post_log.
func (s *Store) Append(ctx context.Context, e domain.LogEntry) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO post_log (run_id, logged_at, status, content, details)
		VALUES ($1,$2,$3,$4,$5)
	`, e.RunID, e.Timestamp, string(e.Status), e.Content, e.Details)
	return err
}
