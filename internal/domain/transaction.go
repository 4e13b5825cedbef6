/**
 * @description
 * This file defines the core domain models for the ledger-service.
 * These structs represent the main entities used throughout the ingestion
 * pipeline, the database layer, and the external aggregation client.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (won), which
 *   avoids floating-point inaccuracies with financial data.
 * - A transaction's category id starts at the uncategorized sentinel and is
 *   written exactly once by the category persistence stage.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account represents one linked external bank account. Accounts are created
// when a member connects a bank through the aggregation provider and are
// read-only to the pipeline.
type Account struct {
	ID               uuid.UUID `json:"id"`
	MemberID         uuid.UUID `json:"member_id"`
	AccountNumber    string    `json:"account_number"` // masked by the provider
	OrganizationCode string    `json:"organization_code"`
	ConnectedID      string    `json:"connected_id"` // aggregation-provider credential handle
	CreatedAt        time.Time `json:"created_at"`
}

// Transaction represents one ledger entry fetched from the aggregation
// provider. It maps directly to the `transactions` table. Rows are
// deduplicated on (account_id, tr_date, tr_time, amount, description).
type Transaction struct {
	ID         uuid.UUID `json:"id"`
	MemberID   uuid.UUID `json:"member_id"`
	AccountID  uuid.UUID `json:"account_id"`
	TrDate     string    `json:"tr_date"` // YYYYMMDD as returned by the provider
	TrTime     string    `json:"tr_time"` // HHMMSS
	Desc       string    `json:"description"` // merchant / counterparty free text
	Withdrawal int64     `json:"withdrawal"`  // in won; 0 when the row is a deposit
	Deposit    int64     `json:"deposit"`     // in won; 0 when the row is a withdrawal
	Balance    int64     `json:"balance"`     // running balance after this entry
	CategoryID int       `json:"category_id"` // CategoryUncategorized until classified
	CreatedAt  time.Time `json:"created_at"`
}

// Amount returns the signed movement of the transaction: deposits positive,
// withdrawals negative.
func (t Transaction) Amount() int64 {
	if t.Deposit != 0 {
		return t.Deposit
	}
	return -t.Withdrawal
}

// DailySummary is the per-member daily aggregate recomputed by the summary
// stage. Rows are upserted keyed on (member_id, summary_date) so a re-run
// converges instead of double-counting.
type DailySummary struct {
	MemberID    uuid.UUID `json:"member_id"`
	SummaryDate string    `json:"summary_date"` // YYYYMMDD
	Income      int64     `json:"income"`
	Expense     int64     `json:"expense"`
	UpdatedAt   time.Time `json:"updated_at"`
}
