/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all SQL touching the accounts, transactions and
 * daily_summaries tables.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/moabank/ledger-service/internal/domain"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNoTransactions  = errors.New("no transactions for account")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindAccountByID retrieves one linked account by its internal id.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, member_id, account_number, organization_code, connected_id, created_at FROM accounts WHERE id = $1`
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&account.ID,
		&account.MemberID,
		&account.AccountNumber,
		&account.OrganizationCode,
		&account.ConnectedID,
		&account.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ListAccounts returns every linked account across all members. The fetch
// driver iterates this to issue one fetch message per account.
func (r *PostgresRepository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	query := `SELECT id, member_id, account_number, organization_code, connected_id, created_at FROM accounts ORDER BY member_id, created_at`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccounts(rows)
}

// ListAccountsByMemberID returns one member's linked accounts.
func (r *PostgresRepository) ListAccountsByMemberID(ctx context.Context, memberID uuid.UUID) ([]domain.Account, error) {
	query := `SELECT id, member_id, account_number, organization_code, connected_id, created_at FROM accounts WHERE member_id = $1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccounts(rows)
}

func scanAccounts(rows pgx.Rows) ([]domain.Account, error) {
	var accounts []domain.Account
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(
			&account.ID,
			&account.MemberID,
			&account.AccountNumber,
			&account.OrganizationCode,
			&account.ConnectedID,
			&account.CreatedAt,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// LatestTransactionDate returns the most recent persisted tr_date for the
// account. Used as the fetch watermark so overlapping windows are never
// re-requested in full.
func (r *PostgresRepository) LatestTransactionDate(ctx context.Context, accountID uuid.UUID) (string, error) {
	var trDate string
	query := `SELECT tr_date FROM transactions WHERE account_id = $1 ORDER BY tr_date DESC, tr_time DESC LIMIT 1`
	err := r.db.QueryRow(ctx, query, accountID).Scan(&trDate)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrNoTransactions
		}
		return "", err
	}
	return trDate, nil
}

// SaveTransactions bulk-inserts the fetched batch inside one transaction.
// The unique index on (account_id, tr_date, tr_time, withdrawal, deposit,
// description) plus ON CONFLICT DO NOTHING makes an overlapping re-fetch a
// no-op rather than an error.
func (r *PostgresRepository) SaveTransactions(ctx context.Context, txs []domain.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin save transactions: %w", err)
	}
	defer dbTx.Rollback(ctx)

	query := `
		INSERT INTO transactions (id, member_id, account_id, tr_date, tr_time, description, withdrawal, deposit, balance, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (account_id, tr_date, tr_time, withdrawal, deposit, description) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, tx := range txs {
		id := tx.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(query,
			id, tx.MemberID, tx.AccountID, tx.TrDate, tx.TrTime,
			tx.Desc, tx.Withdrawal, tx.Deposit, tx.Balance, domain.CategoryUncategorized,
		)
	}

	results := dbTx.SendBatch(ctx, batch)
	inserted := 0
	for range txs {
		tag, execErr := results.Exec()
		if execErr != nil {
			results.Close()
			return 0, fmt.Errorf("insert transaction: %w", execErr)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit save transactions: %w", err)
	}
	return inserted, nil
}

// UpdateTransactionCategories assigns category ids by description for rows
// still at the uncategorized sentinel. One batch, one round trip; this is the
// only writer of category_id after insert.
func (r *PostgresRepository) UpdateTransactionCategories(ctx context.Context, accountID uuid.UUID, assignments map[string]int) error {
	if len(assignments) == 0 {
		return nil
	}

	query := `
		UPDATE transactions
		SET category_id = $1
		WHERE account_id = $2 AND description = $3 AND category_id = $4
	`

	batch := &pgx.Batch{}
	for desc, categoryID := range assignments {
		batch.Queue(query, categoryID, accountID, desc, domain.CategoryUncategorized)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for range assignments {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("update transaction category: %w", err)
		}
	}
	return nil
}

// RecomputeDailySummaries rebuilds the member's daily aggregates from
// startDate onward. The upsert on (member_id, summary_date) overwrites with
// freshly summed values, so running it twice converges.
func (r *PostgresRepository) RecomputeDailySummaries(ctx context.Context, memberID uuid.UUID, startDate string) error {
	query := `
		INSERT INTO daily_summaries (member_id, summary_date, income, expense, updated_at)
		SELECT member_id, tr_date, COALESCE(SUM(deposit), 0), COALESCE(SUM(withdrawal), 0), now()
		FROM transactions
		WHERE member_id = $1 AND tr_date >= $2
		GROUP BY member_id, tr_date
		ON CONFLICT (member_id, summary_date)
		DO UPDATE SET income = EXCLUDED.income, expense = EXCLUDED.expense, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.Exec(ctx, query, memberID, startDate); err != nil {
		return fmt.Errorf("recompute daily summaries: %w", err)
	}
	return nil
}

// FindDailySummaries returns the member's aggregates inside [startDate, endDate].
func (r *PostgresRepository) FindDailySummaries(ctx context.Context, memberID uuid.UUID, startDate, endDate string) ([]domain.DailySummary, error) {
	query := `
		SELECT member_id, summary_date, income, expense, updated_at
		FROM daily_summaries
		WHERE member_id = $1 AND summary_date BETWEEN $2 AND $3
		ORDER BY summary_date
	`
	rows, err := r.db.Query(ctx, query, memberID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.DailySummary
	for rows.Next() {
		var s domain.DailySummary
		if err := rows.Scan(&s.MemberID, &s.SummaryDate, &s.Income, &s.Expense, &s.UpdatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
