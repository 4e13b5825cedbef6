package domain

import "github.com/google/uuid"

// Routing keys for the pipeline topic exchange. Each stage consumes exactly
// one key and publishes at most one follow-up message.
const (
	PipelineExchange = "ledger.pipeline"

	RouteFetch            = "transaction.fetch"
	RouteSave             = "transaction.save"
	RouteClassifyInternal = "classify.internal"
	RouteClassifyExternal = "classify.external"
	RouteCategorySave     = "category.save"
	RouteSummarySave      = "summary.save"
)

// FetchMessage triggers one account's ingestion run. StartDate/EndDate are
// optional; when empty the fetch stage derives the window from the account's
// watermark.
type FetchMessage struct {
	MemberID  uuid.UUID `json:"member_id"`
	Account   Account   `json:"account"`
	StartDate string    `json:"start_date,omitempty"` // YYYYMMDD
	EndDate   string    `json:"end_date,omitempty"`   // YYYYMMDD
	OrderBy   string    `json:"order_by,omitempty"`   // "0" desc / "1" asc
}

// SaveMessage carries the fetched batch to persistence.
type SaveMessage struct {
	MemberID     uuid.UUID     `json:"member_id"`
	Account      Account       `json:"account"`
	StartDate    string        `json:"start_date"`
	Transactions []Transaction `json:"transactions"`
}

// ClassifyMessage carries the persisted batch into internal classification.
type ClassifyMessage struct {
	MemberID     uuid.UUID     `json:"member_id"`
	Account      Account       `json:"account"`
	StartDate    string        `json:"start_date"`
	Transactions []Transaction `json:"transactions"`
}

// ExternalClassifyMessage carries the descriptions the rule table could not
// place, alongside the full batch so it can continue downstream unchanged.
type ExternalClassifyMessage struct {
	MemberID     uuid.UUID     `json:"member_id"`
	Account      Account       `json:"account"`
	StartDate    string        `json:"start_date"`
	Unresolved   []string      `json:"unresolved"`
	Transactions []Transaction `json:"transactions"`
}

// CategorySaveMessage carries the batch into category persistence once every
// description has a cache entry.
type CategorySaveMessage struct {
	MemberID     uuid.UUID     `json:"member_id"`
	AccountID    uuid.UUID     `json:"account_id"`
	Account      Account       `json:"account"`
	StartDate    string        `json:"start_date"`
	Transactions []Transaction `json:"transactions"`
}

// SummarySaveMessage triggers the aggregate recompute for the member's
// affected window.
type SummarySaveMessage struct {
	MemberID  uuid.UUID `json:"member_id"`
	StartDate string    `json:"start_date"`
}
