package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/moabank/ledger-service/internal/cache"
	"github.com/moabank/ledger-service/internal/domain"
	"github.com/moabank/ledger-service/internal/store"
	"github.com/moabank/ledger-service/pkg/rabbitmq"
)

// CategorySaveStage reads the account's classification results out of the
// pipeline cache and persists them. It is the only writer of a transaction's
// category id after insert. A description missing from the cache gets the
// default category; a miss is never an error.
type CategorySaveStage struct {
	repo     store.Repository
	cache    cache.Pipeline
	producer rabbitmq.Publisher
}

// NewCategorySaveStage creates the category persistence stage.
func NewCategorySaveStage(repo store.Repository, pipelineCache cache.Pipeline, producer rabbitmq.Publisher) *CategorySaveStage {
	return &CategorySaveStage{
		repo:     repo,
		cache:    pipelineCache,
		producer: producer,
	}
}

// HandleMessage is the raw consumer entry point.
func (s *CategorySaveStage) HandleMessage(ctx context.Context, body []byte) error {
	var msg domain.CategorySaveMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Printf("category-save: failed to unmarshal payload, dropping: %v", err)
		return nil
	}
	return s.Handle(ctx, msg)
}

// Handle assigns category ids from the cache and persists them in one bulk
// update, then hands the run to the summary stage.
func (s *CategorySaveStage) Handle(ctx context.Context, msg domain.CategorySaveMessage) error {
	if err := s.cache.SetStatus(ctx, msg.MemberID, msg.Account.AccountNumber, domain.StatusAnalyzing); err != nil {
		log.Printf("category-save: status update failed for account %s: %v", msg.AccountID, err)
	}

	cached, err := s.cache.GetCategories(ctx, msg.AccountID)
	if err != nil {
		return fmt.Errorf("read category cache: %w", err)
	}

	assignments := make(map[string]int)
	misses := 0
	for _, tx := range msg.Transactions {
		desc := strings.TrimSpace(tx.Desc)
		if desc == "" {
			continue
		}
		categoryID, ok := cached[desc]
		if !ok || !domain.ValidCategoryID(categoryID) {
			categoryID = domain.CategoryOther
			misses++
		}
		assignments[desc] = categoryID
	}
	if misses > 0 {
		log.Printf("category-save: %d descriptions missing from cache for account %s; defaulted", misses, msg.AccountID)
	}

	if err := s.repo.UpdateTransactionCategories(ctx, msg.AccountID, assignments); err != nil {
		return fmt.Errorf("persist categories: %w", err)
	}

	summaryMsg := domain.SummarySaveMessage{
		MemberID:  msg.MemberID,
		StartDate: msg.StartDate,
	}
	if err := s.producer.Publish(ctx, domain.PipelineExchange, domain.RouteSummarySave, summaryMsg); err != nil {
		return fmt.Errorf("publish summary message: %w", err)
	}

	// The summary recompute carries no account reference, so the run is
	// marked DONE here once classification has been persisted.
	if err := s.cache.SetStatus(ctx, msg.MemberID, msg.Account.AccountNumber, domain.StatusDone); err != nil {
		log.Printf("category-save: final status update failed for account %s: %v", msg.AccountID, err)
	}
	return nil
}
