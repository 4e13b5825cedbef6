/**
 * @description
 * Fetch orchestration: the scheduled driver that enumerates linked accounts
 * and issues one fetch message per account, carrying that account's
 * last-known-transaction watermark. One account's failure never stops the
 * loop; the remaining accounts still get their messages.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/moabank/ledger-service/internal/domain"
	"github.com/moabank/ledger-service/internal/store"
	"github.com/moabank/ledger-service/pkg/rabbitmq"
)

// FetchDriver publishes fetch messages for linked accounts.
type FetchDriver struct {
	repo     store.Repository
	producer rabbitmq.Publisher
	logger   *slog.Logger
}

// NewFetchDriver creates the driver.
func NewFetchDriver(repo store.Repository, producer rabbitmq.Publisher, logger *slog.Logger) *FetchDriver {
	return &FetchDriver{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

// RunAll issues one fetch message per linked account across all members.
func (d *FetchDriver) RunAll(ctx context.Context) {
	accounts, err := d.repo.ListAccounts(ctx)
	if err != nil {
		d.logger.Error("failed to list accounts", "error", err)
		return
	}
	d.dispatch(ctx, accounts)
}

// RunForMember issues fetch messages for one member's accounts, for the
// on-demand sync endpoint.
func (d *FetchDriver) RunForMember(ctx context.Context, memberID uuid.UUID) (int, error) {
	accounts, err := d.repo.ListAccountsByMemberID(ctx, memberID)
	if err != nil {
		return 0, err
	}
	d.dispatch(ctx, accounts)
	return len(accounts), nil
}

func (d *FetchDriver) dispatch(ctx context.Context, accounts []domain.Account) {
	if len(accounts) == 0 {
		d.logger.Info("no linked accounts to fetch")
		return
	}

	d.logger.Info("dispatching fetch messages", "accounts", len(accounts))
	for _, account := range accounts {
		msg := domain.FetchMessage{
			MemberID:  account.MemberID,
			Account:   account,
			StartDate: d.watermarkStart(ctx, account.ID),
		}
		if err := d.producer.Publish(ctx, domain.PipelineExchange, domain.RouteFetch, msg); err != nil {
			d.logger.Error("failed to publish fetch message", "account_id", account.ID, "error", err)
			continue
		}
		d.logger.Info("fetch message published", "account_id", account.ID, "member_id", account.MemberID, "start_date", msg.StartDate)
	}
}

// watermarkStart returns the day after the account's latest persisted
// transaction, or empty to let the fetch stage apply its default lookback.
func (d *FetchDriver) watermarkStart(ctx context.Context, accountID uuid.UUID) string {
	latest, err := d.repo.LatestTransactionDate(ctx, accountID)
	if err != nil {
		if err != store.ErrNoTransactions {
			d.logger.Warn("failed to load watermark; fetch stage will derive the window", "account_id", accountID, "error", err)
		}
		return ""
	}
	watermark, parseErr := time.Parse(dateLayout, latest)
	if parseErr != nil {
		d.logger.Warn("unparsable watermark; fetch stage will derive the window", "account_id", accountID, "value", latest)
		return ""
	}
	return watermark.AddDate(0, 0, 1).Format(dateLayout)
}

// Scheduler runs the fetch driver on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	driver *FetchDriver
	logger *slog.Logger
}

// NewScheduler creates a scheduler with panic recovery around job runs.
func NewScheduler(driver *FetchDriver, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		driver: driver,
		logger: logger,
	}
}

// Start registers the fetch job and starts the scheduler.
func (s *Scheduler) Start(schedule string) {
	if _, err := s.cron.AddFunc(schedule, func() {
		s.logger.Info("starting scheduled transaction fetch")
		s.driver.RunAll(context.Background())
		s.logger.Info("scheduled transaction fetch finished")
	}); err != nil {
		s.logger.Error("failed to schedule transaction fetch job", "error", err)
		return
	}
	s.logger.Info("scheduled transaction fetch job", "schedule", schedule)
	s.cron.Start()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
