package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/moabank/ledger-service/internal/domain"
	"github.com/moabank/ledger-service/internal/store"
)

// SummaryStage recomputes the member's daily income/expense aggregates for
// the affected window. The recompute is an upsert keyed on (member, date), so
// running it twice converges instead of double-counting.
type SummaryStage struct {
	repo store.Repository
}

// NewSummaryStage creates the summary stage.
func NewSummaryStage(repo store.Repository) *SummaryStage {
	return &SummaryStage{repo: repo}
}

// HandleMessage is the raw consumer entry point.
func (s *SummaryStage) HandleMessage(ctx context.Context, body []byte) error {
	var msg domain.SummarySaveMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Printf("summary-stage: failed to unmarshal payload, dropping: %v", err)
		return nil
	}
	return s.Handle(ctx, msg)
}

// Handle rebuilds the aggregates from the run's start marker onward.
func (s *SummaryStage) Handle(ctx context.Context, msg domain.SummarySaveMessage) error {
	if msg.StartDate == "" {
		log.Printf("summary-stage: missing start marker for member %s; dropping", msg.MemberID)
		return nil
	}

	if err := s.repo.RecomputeDailySummaries(ctx, msg.MemberID, msg.StartDate); err != nil {
		return fmt.Errorf("recompute summaries: %w", err)
	}

	log.Printf("summary-stage: recomputed summaries for member %s from %s", msg.MemberID, msg.StartDate)
	return nil
}
