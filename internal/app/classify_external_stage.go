package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/moabank/ledger-service/internal/cache"
	"github.com/moabank/ledger-service/internal/domain"
	"github.com/moabank/ledger-service/pkg/aiclient"
	"github.com/moabank/ledger-service/pkg/rabbitmq"
)

// ExternalClassifyStage sends the rule table's leftovers to the generative
// model, one call per batch. Whatever the model does — fail, answer short,
// answer garbage — every requested description ends up with a cache entry
// before the batch moves on, so the persistence stage never blocks on a miss.
type ExternalClassifyStage struct {
	classifier aiclient.Classifier
	cache      cache.Pipeline
	producer   rabbitmq.Publisher
}

// NewExternalClassifyStage creates the external classification stage.
func NewExternalClassifyStage(classifier aiclient.Classifier, pipelineCache cache.Pipeline, producer rabbitmq.Publisher) *ExternalClassifyStage {
	return &ExternalClassifyStage{
		classifier: classifier,
		cache:      pipelineCache,
		producer:   producer,
	}
}

// HandleMessage is the raw consumer entry point.
func (s *ExternalClassifyStage) HandleMessage(ctx context.Context, body []byte) error {
	var msg domain.ExternalClassifyMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Printf("classify-external: failed to unmarshal payload, dropping: %v", err)
		return nil
	}
	return s.Handle(ctx, msg)
}

// Handle classifies the unresolved set and forwards the batch. A model
// failure degrades to the default category rather than halting the run.
func (s *ExternalClassifyStage) Handle(ctx context.Context, msg domain.ExternalClassifyMessage) error {
	if len(msg.Unresolved) > 0 {
		names, err := s.classifier.ClassifyDescriptions(ctx, msg.Unresolved, domain.CategoryNames())
		if err != nil {
			log.Printf("classify-external: model call failed for account %s, defaulting %d descriptions: %v", msg.Account.ID, len(msg.Unresolved), err)
			names = nil
		} else if len(names) < len(msg.Unresolved) {
			log.Printf("classify-external: model returned %d names for %d descriptions (account %s); padding with default", len(names), len(msg.Unresolved), msg.Account.ID)
		}

		for i, desc := range msg.Unresolved {
			categoryID := domain.CategoryOther
			if i < len(names) {
				categoryID = domain.CategoryFromName(names[i])
			}
			if err := s.cache.PutCategory(ctx, msg.Account.ID, desc, categoryID); err != nil {
				return fmt.Errorf("cache external category: %w", err)
			}
		}
	}

	categoryMsg := domain.CategorySaveMessage{
		MemberID:     msg.MemberID,
		AccountID:    msg.Account.ID,
		Account:      msg.Account,
		StartDate:    msg.StartDate,
		Transactions: msg.Transactions,
	}
	if err := s.producer.Publish(ctx, domain.PipelineExchange, domain.RouteCategorySave, categoryMsg); err != nil {
		return fmt.Errorf("publish category save message: %w", err)
	}
	return nil
}
