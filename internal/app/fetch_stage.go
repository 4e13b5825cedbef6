/**
 * @description
 * This file implements the fetch stage: the entry point of one account's
 * ingestion run. It claims the account's run lock, derives the fetch window
 * from the persisted watermark, calls the aggregation provider, and forwards
 * the fetched batch to the save stage.
 *
 * @dependencies
 * - internal/cache, internal/domain, internal/store: Pipeline state and models.
 * - pkg/bankclient, pkg/rabbitmq: External history client and message transport.
 */

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moabank/ledger-service/internal/cache"
	"github.com/moabank/ledger-service/internal/domain"
	"github.com/moabank/ledger-service/internal/store"
	"github.com/moabank/ledger-service/pkg/bankclient"
	"github.com/moabank/ledger-service/pkg/rabbitmq"
)

// dateLayout is the YYYYMMDD wire format shared with the aggregation provider.
const dateLayout = "20060102"

// defaultLookback bounds the first fetch for an account with no history.
const defaultLookback = 2 * 365 * 24 * time.Hour

// BankHistoryClient is the slice of the aggregation client the fetch stage needs.
type BankHistoryClient interface {
	FetchHistory(ctx context.Context, organization, connectedID, account, startDate, endDate, orderBy string) ([]bankclient.HistoryItem, error)
}

// FetchStage resolves the fetch window and pulls one account's history.
type FetchStage struct {
	repo     store.Repository
	cache    cache.Pipeline
	bank     BankHistoryClient
	producer rabbitmq.Publisher
	now      func() time.Time
}

// NewFetchStage creates the fetch stage.
func NewFetchStage(repo store.Repository, pipelineCache cache.Pipeline, bank BankHistoryClient, producer rabbitmq.Publisher) *FetchStage {
	return &FetchStage{
		repo:     repo,
		cache:    pipelineCache,
		bank:     bank,
		producer: producer,
		now:      time.Now,
	}
}

// HandleMessage is the raw consumer entry point.
func (s *FetchStage) HandleMessage(ctx context.Context, body []byte) error {
	var msg domain.FetchMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Printf("fetch-stage: failed to unmarshal payload, dropping: %v", err)
		return nil
	}
	return s.Handle(ctx, msg)
}

// Handle runs one fetch. A held run lock means a concurrent run is already in
// flight and this attempt is skipped, not queued. Zero fetched transactions
// terminate the run silently; a provider failure marks the run FAILED and
// stops forward progress.
func (s *FetchStage) Handle(ctx context.Context, msg domain.FetchMessage) error {
	account := msg.Account

	acquired, err := s.cache.AcquireRunLock(ctx, msg.MemberID, account.AccountNumber)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		// A terminal status is a stale lock from a finished or failed run;
		// take it over so retries and the next schedule are not starved.
		current, ok, statusErr := s.cache.GetStatus(ctx, msg.MemberID, account.AccountNumber)
		if statusErr != nil {
			return fmt.Errorf("inspect run lock: %w", statusErr)
		}
		if ok && current != domain.StatusDone && current != domain.StatusFailed {
			log.Printf("fetch-stage: run already in flight for account %s (status %s); skipping", account.ID, current)
			return nil
		}
		if err := s.cache.SetStatus(ctx, msg.MemberID, account.AccountNumber, domain.StatusFetching); err != nil {
			return fmt.Errorf("reset run status: %w", err)
		}
	}

	startDate, endDate, err := s.fetchWindow(ctx, msg)
	if err != nil {
		// This run holds the lock; leave it in a terminal state so the
		// redelivery can take it over instead of hitting the in-flight skip.
		if statusErr := s.cache.SetStatus(ctx, msg.MemberID, account.AccountNumber, domain.StatusFailed); statusErr != nil {
			log.Printf("fetch-stage: failed to mark run FAILED for account %s: %v", account.ID, statusErr)
		}
		return err
	}

	orderBy := msg.OrderBy
	if orderBy == "" {
		orderBy = "0"
	}

	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	items, err := s.bank.FetchHistory(callCtx, account.OrganizationCode, account.ConnectedID, account.AccountNumber, startDate, endDate, orderBy)
	if err != nil {
		log.Printf("fetch-stage: history fetch failed for account %s: %v", account.ID, err)
		if statusErr := s.cache.SetStatus(ctx, msg.MemberID, account.AccountNumber, domain.StatusFailed); statusErr != nil {
			log.Printf("fetch-stage: failed to mark run FAILED for account %s: %v", account.ID, statusErr)
		}
		return nil
	}

	if len(items) == 0 {
		log.Printf("fetch-stage: no new transactions for account %s in [%s, %s]", account.ID, startDate, endDate)
		return nil
	}

	transactions := make([]domain.Transaction, 0, len(items))
	for _, item := range items {
		transactions = append(transactions, domain.Transaction{
			ID:         uuid.New(),
			MemberID:   msg.MemberID,
			AccountID:  account.ID,
			TrDate:     item.TrDate,
			TrTime:     item.TrTime,
			// The trimmed form is the description's canonical spelling from
			// here on: the persisted row, the cache field, and the category
			// update all have to key on the same bytes.
			Desc:       strings.TrimSpace(item.Desc),
			Withdrawal: bankclient.ParseAmount(item.Withdrawal),
			Deposit:    bankclient.ParseAmount(item.Deposit),
			Balance:    bankclient.ParseAmount(item.Balance),
			CategoryID: domain.CategoryUncategorized,
		})
	}

	saveMsg := domain.SaveMessage{
		MemberID:     msg.MemberID,
		Account:      account,
		StartDate:    startDate,
		Transactions: transactions,
	}
	if err := s.producer.Publish(ctx, domain.PipelineExchange, domain.RouteSave, saveMsg); err != nil {
		return fmt.Errorf("publish save message: %w", err)
	}

	log.Printf("fetch-stage: fetched %d transactions for account %s in [%s, %s]", len(transactions), account.ID, startDate, endDate)
	return nil
}

// fetchWindow returns the [start, end] dates for this run. An explicit range
// on the message wins; otherwise the window opens the day after the latest
// persisted transaction, or defaultLookback back when the account has none.
func (s *FetchStage) fetchWindow(ctx context.Context, msg domain.FetchMessage) (string, string, error) {
	today := s.now().Format(dateLayout)

	endDate := msg.EndDate
	if endDate == "" {
		endDate = today
	}

	if msg.StartDate != "" {
		return msg.StartDate, endDate, nil
	}

	latest, err := s.repo.LatestTransactionDate(ctx, msg.Account.ID)
	if err == store.ErrNoTransactions {
		return s.now().Add(-defaultLookback).Format(dateLayout), endDate, nil
	}
	if err != nil {
		return "", "", fmt.Errorf("load watermark: %w", err)
	}

	watermark, parseErr := time.Parse(dateLayout, latest)
	if parseErr != nil {
		return "", "", fmt.Errorf("parse watermark %q: %w", latest, parseErr)
	}
	return watermark.AddDate(0, 0, 1).Format(dateLayout), endDate, nil
}
