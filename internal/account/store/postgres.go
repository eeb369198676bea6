package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"accounting/internal/account/models"
	"accounting/internal/platform/postgres"
	"accounting/pkg/domain"
	txcontext "accounting/pkg/platform/tx"
)

// PostgresStore persists accounts in the accounts table.
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
	return s.count(ctx, `SELECT COUNT(*) FROM accounts`)
}

func (s *PostgresStore) List(ctx context.Context, offset, limit int) ([]*models.Account, error) {
	query := `
		SELECT account_id, category_id, name
		FROM accounts
		ORDER BY account_id
		LIMIT $1 OFFSET $2
	`
	return s.query(ctx, query, limit, offset)
}

func (s *PostgresStore) CountByCategoryPrefix(ctx context.Context, prefix domain.CategoryKey) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM accounts WHERE category_id LIKE $1 ESCAPE '\'`,
		postgres.LikePrefix(prefix.String()))
}

func (s *PostgresStore) ListByCategoryPrefix(ctx context.Context, prefix domain.CategoryKey, offset, limit int) ([]*models.Account, error) {
	query := `
		SELECT account_id, category_id, name
		FROM accounts
		WHERE category_id LIKE $1 ESCAPE '\'
		ORDER BY account_id
		LIMIT $2 OFFSET $3
	`
	return s.query(ctx, query, postgres.LikePrefix(prefix.String()), limit, offset)
}

func (s *PostgresStore) CountByCategory(ctx context.Context, key domain.CategoryKey) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM accounts WHERE category_id = $1`, key.String())
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.AccountID) (*models.Account, error) {
	query := `SELECT account_id, category_id, name FROM accounts WHERE account_id = $1`
	var a models.Account
	err := s.execer(ctx).QueryRowContext(ctx, query, int64(id)).Scan(&a.ID, &a.Category, &a.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", postgres.Classify(err))
	}
	return &a, nil
}

// Create inserts account and sets its generated ID.
func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (category_id, name) VALUES ($1, $2) RETURNING account_id`
	var id int64
	if err := s.execer(ctx).QueryRowContext(ctx, query, account.Category.String(), account.Name).Scan(&id); err != nil {
		return fmt.Errorf("insert account: %w", postgres.Classify(err))
	}
	account.ID = domain.AccountID(id)
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, account *models.Account) error {
	query := `UPDATE accounts SET category_id = $2, name = $3 WHERE account_id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, int64(account.ID), account.Category.String(), account.Name)
	if err != nil {
		return fmt.Errorf("update account: %w", postgres.Classify(err))
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.AccountID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM accounts WHERE account_id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete account: %w", postgres.Classify(err))
	}
	return requireRow(res)
}

// ReassignCategory moves every account in category from to category to. The
// target category row must already exist.
func (s *PostgresStore) ReassignCategory(ctx context.Context, from, to domain.CategoryKey) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE accounts SET category_id = $2 WHERE category_id = $1`, from.String(), to.String())
	if err != nil {
		return 0, fmt.Errorf("reassign accounts: %w", postgres.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.execer(ctx).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", postgres.Classify(err))
	}
	return n, nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Account, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", postgres.Classify(err))
	}
	defer rows.Close()

	out := []*models.Account{}
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Category, &a.Name); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", postgres.Classify(err))
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
