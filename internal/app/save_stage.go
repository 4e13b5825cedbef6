package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/moabank/ledger-service/internal/domain"
	"github.com/moabank/ledger-service/internal/store"
	"github.com/moabank/ledger-service/pkg/rabbitmq"
)

// SaveStage persists the fetched batch and hands it to classification.
// Duplicate rows from an overlapping re-fetch are skipped by the store, so
// redelivery of this message is harmless.
type SaveStage struct {
	repo     store.Repository
	producer rabbitmq.Publisher
}

// NewSaveStage creates the save stage.
func NewSaveStage(repo store.Repository, producer rabbitmq.Publisher) *SaveStage {
	return &SaveStage{repo: repo, producer: producer}
}

// HandleMessage is the raw consumer entry point.
func (s *SaveStage) HandleMessage(ctx context.Context, body []byte) error {
	var msg domain.SaveMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Printf("save-stage: failed to unmarshal payload, dropping: %v", err)
		return nil
	}
	return s.Handle(ctx, msg)
}

// Handle persists the batch and forwards it.
func (s *SaveStage) Handle(ctx context.Context, msg domain.SaveMessage) error {
	if len(msg.Transactions) == 0 {
		log.Printf("save-stage: empty batch for account %s; nothing to do", msg.Account.ID)
		return nil
	}

	inserted, err := s.repo.SaveTransactions(ctx, msg.Transactions)
	if err != nil {
		return fmt.Errorf("save transactions: %w", err)
	}
	if inserted < len(msg.Transactions) {
		log.Printf("save-stage: %d of %d rows were duplicates for account %s", len(msg.Transactions)-inserted, len(msg.Transactions), msg.Account.ID)
	}

	classifyMsg := domain.ClassifyMessage{
		MemberID:     msg.MemberID,
		Account:      msg.Account,
		StartDate:    msg.StartDate,
		Transactions: msg.Transactions,
	}
	if err := s.producer.Publish(ctx, domain.PipelineExchange, domain.RouteClassifyInternal, classifyMsg); err != nil {
		return fmt.Errorf("publish classify message: %w", err)
	}
	return nil
}
