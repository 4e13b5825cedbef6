/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the pipeline needs. Keeping it an interface decouples stage logic
 * from PostgreSQL and lets the stage tests run against in-memory fakes.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/moabank/ledger-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Account methods
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	ListAccountsByMemberID(ctx context.Context, memberID uuid.UUID) ([]domain.Account, error)

	// Transaction methods
	// LatestTransactionDate returns the newest persisted tr_date (YYYYMMDD)
	// for the account, or ErrNoTransactions when the account has none.
	LatestTransactionDate(ctx context.Context, accountID uuid.UUID) (string, error)
	// SaveTransactions bulk-inserts the batch. Exact duplicates on
	// (account_id, tr_date, tr_time, amount, description) are silently
	// skipped; the returned count is the number of rows actually inserted.
	SaveTransactions(ctx context.Context, txs []domain.Transaction) (int, error)
	// UpdateTransactionCategories assigns category ids by description for one
	// account's still-uncategorized rows, in one round trip.
	UpdateTransactionCategories(ctx context.Context, accountID uuid.UUID, assignments map[string]int) error

	// Summary methods
	// RecomputeDailySummaries rebuilds the member's per-day income/expense
	// aggregates from startDate onward with an upsert keyed on
	// (member_id, summary_date), so a re-run converges.
	RecomputeDailySummaries(ctx context.Context, memberID uuid.UUID, startDate string) error
	FindDailySummaries(ctx context.Context, memberID uuid.UUID, startDate, endDate string) ([]domain.DailySummary, error)
}
