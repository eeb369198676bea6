package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"accounting/internal/journal/models"
	"accounting/internal/platform/postgres"
	"accounting/pkg/domain"
	txcontext "accounting/pkg/platform/tx"
)

// PostgresStore persists journals in the journals table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM journals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count journals: %w", postgres.Classify(err))
	}
	return n, nil
}

func (s *PostgresStore) List(ctx context.Context, offset, limit int) ([]*models.Journal, error) {
	query := `
		SELECT journal_id, name
		FROM journals
		ORDER BY journal_id
		LIMIT $1 OFFSET $2
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list journals: %w", postgres.Classify(err))
	}
	defer rows.Close()

	out := []*models.Journal{}
	for rows.Next() {
		var j models.Journal
		if err := rows.Scan(&j.ID, &j.Name); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		out = append(out, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journals: %w", postgres.Classify(err))
	}
	return out, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.JournalID) (*models.Journal, error) {
	var j models.Journal
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT journal_id, name FROM journals WHERE journal_id = $1`, int64(id)).Scan(&j.ID, &j.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find journal: %w", postgres.Classify(err))
	}
	return &j, nil
}

// Create inserts journal and sets its generated ID.
func (s *PostgresStore) Create(ctx context.Context, journal *models.Journal) error {
	var id int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`INSERT INTO journals (name) VALUES ($1) RETURNING journal_id`, journal.Name).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert journal: %w", postgres.Classify(err))
	}
	journal.ID = domain.JournalID(id)
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, journal *models.Journal) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE journals SET name = $2 WHERE journal_id = $1`, int64(journal.ID), journal.Name)
	if err != nil {
		return fmt.Errorf("update journal: %w", postgres.Classify(err))
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.JournalID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM journals WHERE journal_id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete journal: %w", postgres.Classify(err))
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
