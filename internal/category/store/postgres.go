package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"accounting/internal/category/models"
	"accounting/internal/platform/postgres"
	"accounting/pkg/domain"
	txcontext "accounting/pkg/platform/tx"
)

// PostgresStore persists categories in the categories table. The key column
// uses the "C" collation, so ordering and prefix matching agree with the
// in-memory store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed category store.
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
	if err := s.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", postgres.Classify(err))
	}
	return n, nil
}

func (s *PostgresStore) List(ctx context.Context, offset, limit int) ([]*models.Category, error) {
	query := `
		SELECT category_id, name
		FROM categories
		ORDER BY category_id
		LIMIT $1 OFFSET $2
	`
	return s.query(ctx, query, limit, offset)
}

func (s *PostgresStore) CountByPrefix(ctx context.Context, prefix domain.CategoryKey) (int, error) {
	query := `SELECT COUNT(*) FROM categories WHERE category_id LIKE $1 ESCAPE '\'`
	var n int
	if err := s.execer(ctx).QueryRowContext(ctx, query, postgres.LikePrefix(prefix.String())).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories by prefix: %w", postgres.Classify(err))
	}
	return n, nil
}

func (s *PostgresStore) ListByPrefix(ctx context.Context, prefix domain.CategoryKey, offset, limit int) ([]*models.Category, error) {
	query := `
		SELECT category_id, name
		FROM categories
		WHERE category_id LIKE $1 ESCAPE '\'
		ORDER BY category_id
		LIMIT $2 OFFSET $3
	`
	return s.query(ctx, query, postgres.LikePrefix(prefix.String()), limit, offset)
}

func (s *PostgresStore) FindByKey(ctx context.Context, key domain.CategoryKey) (*models.Category, error) {
	query := `SELECT category_id, name FROM categories WHERE category_id = $1`
	var c models.Category
	err := s.execer(ctx).QueryRowContext(ctx, query, key.String()).Scan(&c.Key, &c.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find category: %w", postgres.Classify(err))
	}
	return &c, nil
}

// Create inserts a category. A duplicate key yields sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Create(ctx context.Context, category *models.Category) error {
	query := `INSERT INTO categories (category_id, name) VALUES ($1, $2)`
	if _, err := s.execer(ctx).ExecContext(ctx, query, category.Key.String(), category.Name); err != nil {
		return fmt.Errorf("insert category: %w", postgres.Classify(err))
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, category *models.Category) error {
	query := `UPDATE categories SET name = $2 WHERE category_id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, category.Key.String(), category.Name)
	if err != nil {
		return fmt.Errorf("update category: %w", postgres.Classify(err))
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, key domain.CategoryKey) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM categories WHERE category_id = $1`, key.String())
	if err != nil {
		return fmt.Errorf("delete category: %w", postgres.Classify(err))
	}
	return requireRow(res)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Category, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", postgres.Classify(err))
	}
	defer rows.Close()

	out := []*models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.Key, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", postgres.Classify(err))
	}
	return out, nil
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
