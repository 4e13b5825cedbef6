package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/moabank/ledger-service/internal/domain"
	"github.com/moabank/ledger-service/internal/store"
	"github.com/moabank/ledger-service/pkg/bankclient"
)

// fakeRepo implements store.Repository for stage tests.
type fakeRepo struct {
	accounts        []domain.Account
	latestDate      string
	latestDateErr   error
	saved           []domain.Transaction
	saveErr         error
	categoryUpdates map[string]int
	categoryAccount uuid.UUID
	summaryMember   uuid.UUID
	summaryStart    string
	summaryCalls    int
}

func (f *fakeRepo) FindAccountByID(_ context.Context, accountID uuid.UUID) (*domain.Account, error) {
	for i := range f.accounts {
		if f.accounts[i].ID == accountID {
			return &f.accounts[i], nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (f *fakeRepo) ListAccounts(context.Context) ([]domain.Account, error) {
	return f.accounts, nil
}

func (f *fakeRepo) ListAccountsByMemberID(_ context.Context, memberID uuid.UUID) ([]domain.Account, error) {
	var out []domain.Account
	for _, a := range f.accounts {
		if a.MemberID == memberID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) LatestTransactionDate(context.Context, uuid.UUID) (string, error) {
	if f.latestDateErr != nil {
		return "", f.latestDateErr
	}
	return f.latestDate, nil
}

func (f *fakeRepo) SaveTransactions(_ context.Context, txs []domain.Transaction) (int, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.saved = append(f.saved, txs...)
	return len(txs), nil
}

func (f *fakeRepo) UpdateTransactionCategories(_ context.Context, accountID uuid.UUID, assignments map[string]int) error {
	f.categoryAccount = accountID
	f.categoryUpdates = assignments
	return nil
}

func (f *fakeRepo) RecomputeDailySummaries(_ context.Context, memberID uuid.UUID, startDate string) error {
	f.summaryMember = memberID
	f.summaryStart = startDate
	f.summaryCalls++
	return nil
}

func (f *fakeRepo) FindDailySummaries(context.Context, uuid.UUID, string, string) ([]domain.DailySummary, error) {
	return nil, nil
}

// fakePublisher records published messages in order.
type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMessage
}

type publishedMessage struct {
	exchange   string
	routingKey string
	body       interface{}
}

func (f *fakePublisher) Publish(_ context.Context, exchange, routingKey string, body interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (f *fakePublisher) Close() {}

func (f *fakePublisher) messages() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedMessage, len(f.published))
	copy(out, f.published)
	return out
}

// fakeBank returns canned history items.
type fakeBank struct {
	items     []bankclient.HistoryItem
	err       error
	lastStart string
	lastEnd   string
	calls     int
}

func (f *fakeBank) FetchHistory(_ context.Context, _, _, _, startDate, endDate, _ string) ([]bankclient.HistoryItem, error) {
	f.calls++
	f.lastStart = startDate
	f.lastEnd = endDate
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

// fakeResolver counts Resolve calls and answers from a fixed table,
// defaulting to the "other" category.
type fakeResolver struct {
	mu      sync.Mutex
	answers map[string]int
	calls   int
}

func (f *fakeResolver) Resolve(_ context.Context, description string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if id, ok := f.answers[description]; ok {
		return id
	}
	return domain.CategoryOther
}

// fakeClassifier returns a canned name list.
type fakeClassifier struct {
	names []string
	err   error
	calls int
	last  []string
}

func (f *fakeClassifier) ClassifyDescriptions(_ context.Context, descriptions []string, _ []string) ([]string, error) {
	f.calls++
	f.last = descriptions
	if f.err != nil {
		return nil, f.err
	}
	return f.names, nil
}
