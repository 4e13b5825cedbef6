package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/moabank/ledger-service/internal/cache"
	"github.com/moabank/ledger-service/internal/domain"
	"github.com/moabank/ledger-service/pkg/rabbitmq"
)

// DescriptionResolver is the slice of the internal resolver this stage needs.
type DescriptionResolver interface {
	Resolve(ctx context.Context, description string) int
}

// InternalClassifyStage partitions the batch's distinct descriptions into
// rule-resolved and unresolved sets. Resolved entries go straight into the
// pipeline cache; unresolved ones are escalated to the external stage. When
// nothing is left unresolved the batch is routed directly to category
// persistence.
type InternalClassifyStage struct {
	resolver DescriptionResolver
	cache    cache.Pipeline
	producer rabbitmq.Publisher
}

// NewInternalClassifyStage creates the internal classification stage.
func NewInternalClassifyStage(resolver DescriptionResolver, pipelineCache cache.Pipeline, producer rabbitmq.Publisher) *InternalClassifyStage {
	return &InternalClassifyStage{
		resolver: resolver,
		cache:    pipelineCache,
		producer: producer,
	}
}

// HandleMessage is the raw consumer entry point.
func (s *InternalClassifyStage) HandleMessage(ctx context.Context, body []byte) error {
	var msg domain.ClassifyMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Printf("classify-internal: failed to unmarshal payload, dropping: %v", err)
		return nil
	}
	return s.Handle(ctx, msg)
}

// Handle classifies the batch's distinct descriptions with the rule table.
// Resolver calls for one message run in parallel and are joined before the
// stage proceeds; this is the pipeline's only intra-stage parallel section.
func (s *InternalClassifyStage) Handle(ctx context.Context, msg domain.ClassifyMessage) error {
	if err := s.cache.SetStatus(ctx, msg.MemberID, msg.Account.AccountNumber, domain.StatusClassifying); err != nil {
		log.Printf("classify-internal: status update failed for account %s: %v", msg.Account.ID, err)
	}

	descriptions := distinctDescriptions(msg.Transactions)
	if len(descriptions) == 0 {
		log.Printf("classify-internal: batch for account %s has no usable descriptions", msg.Account.ID)
		return s.forwardToCategorySave(ctx, msg)
	}

	if err := s.cache.SetExpectedTotal(ctx, msg.Account.ID, len(descriptions)); err != nil {
		return fmt.Errorf("init expected total: %w", err)
	}

	type result struct {
		description string
		categoryID  int
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]result, 0, len(descriptions))
	)
	for _, desc := range descriptions {
		wg.Add(1)
		go func(desc string) {
			defer wg.Done()
			id := s.resolver.Resolve(ctx, desc)
			mu.Lock()
			results = append(results, result{description: desc, categoryID: id})
			mu.Unlock()
		}(desc)
	}
	wg.Wait()

	var unresolved []string
	for _, res := range results {
		if res.categoryID == domain.CategoryOther {
			unresolved = append(unresolved, res.description)
			continue
		}
		if err := s.cache.PutCategory(ctx, msg.Account.ID, res.description, res.categoryID); err != nil {
			return fmt.Errorf("cache resolved category: %w", err)
		}
	}

	if len(unresolved) == 0 {
		log.Printf("classify-internal: all %d descriptions resolved for account %s", len(descriptions), msg.Account.ID)
		return s.forwardToCategorySave(ctx, msg)
	}

	// Deterministic order keeps the external prompt stable across retries.
	sort.Strings(unresolved)

	externalMsg := domain.ExternalClassifyMessage{
		MemberID:     msg.MemberID,
		Account:      msg.Account,
		StartDate:    msg.StartDate,
		Unresolved:   unresolved,
		Transactions: msg.Transactions,
	}
	if err := s.producer.Publish(ctx, domain.PipelineExchange, domain.RouteClassifyExternal, externalMsg); err != nil {
		return fmt.Errorf("publish external classify message: %w", err)
	}

	log.Printf("classify-internal: account %s resolved=%d unresolved=%d", msg.Account.ID, len(descriptions)-len(unresolved), len(unresolved))
	return nil
}

func (s *InternalClassifyStage) forwardToCategorySave(ctx context.Context, msg domain.ClassifyMessage) error {
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

// distinctDescriptions returns the unique, trimmed, non-empty descriptions of
// the batch, in first-appearance order.
func distinctDescriptions(txs []domain.Transaction) []string {
	seen := make(map[string]struct{}, len(txs))
	var out []string
	for _, tx := range txs {
		desc := strings.TrimSpace(tx.Desc)
		if desc == "" {
			continue
		}
		if _, ok := seen[desc]; ok {
			continue
		}
		seen[desc] = struct{}{}
		out = append(out, desc)
	}
	return out
}
