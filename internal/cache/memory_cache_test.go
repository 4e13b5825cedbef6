package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/moabank/ledger-service/internal/domain"
)

func TestMemoryPipelineCategoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPipeline()
	accountID := uuid.New()

	if err := p.SetExpectedTotal(ctx, accountID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = p.PutCategory(ctx, accountID, "스타벅스 강남점", domain.CategoryCafeSnack)
	_ = p.PutCategory(ctx, accountID, "배달의민족", domain.CategoryFood)

	got, err := p.GetCategories(ctx, accountID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got["스타벅스 강남점"] != domain.CategoryCafeSnack || got["배달의민족"] != domain.CategoryFood {
		t.Fatalf("unexpected categories: %v", got)
	}

	written, expected, err := p.Progress(ctx, accountID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written != 2 || expected != 2 {
		t.Fatalf("progress = (%d, %d), want (2, 2)", written, expected)
	}
}

func TestMemoryPipelineMissingKeyYieldsEmptyMap(t *testing.T) {
	p := NewMemoryPipeline()
	got, err := p.GetCategories(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestMemoryPipelineCategoryExpiry(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPipeline()
	accountID := uuid.New()

	base := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	current := base
	p.SetClock(func() time.Time { return current })

	_ = p.SetExpectedTotal(ctx, accountID, 1)
	_ = p.PutCategory(ctx, accountID, "스타벅스 강남점", domain.CategoryCafeSnack)

	current = base.Add(CategoryTTL - time.Minute)
	if got, _ := p.GetCategories(ctx, accountID); len(got) != 1 {
		t.Fatalf("expected entries to survive inside the TTL, got %v", got)
	}

	current = base.Add(CategoryTTL + time.Minute)
	if got, _ := p.GetCategories(ctx, accountID); len(got) != 0 {
		t.Fatalf("expected entries to expire, got %v", got)
	}
}

func TestMemoryPipelineRunLock(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPipeline()
	memberID := uuid.New()

	acquired, err := p.AcquireRunLock(ctx, memberID, "110-123-456789")
	if err != nil || !acquired {
		t.Fatalf("expected first acquisition to succeed, got (%t, %v)", acquired, err)
	}

	status, ok, _ := p.GetStatus(ctx, memberID, "110-123-456789")
	if !ok || status != domain.StatusFetching {
		t.Fatalf("expected lock to set FETCHING, got %v (set=%t)", status, ok)
	}

	acquired, err = p.AcquireRunLock(ctx, memberID, "110-123-456789")
	if err != nil || acquired {
		t.Fatalf("expected second acquisition to fail while the run is live, got (%t, %v)", acquired, err)
	}

	// A different account of the same member is an independent run.
	acquired, _ = p.AcquireRunLock(ctx, memberID, "110-987-654321")
	if !acquired {
		t.Fatal("expected other account's lock to be free")
	}
}

func TestMemoryPipelineLockExpires(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPipeline()
	memberID := uuid.New()

	base := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	current := base
	p.SetClock(func() time.Time { return current })

	if acquired, _ := p.AcquireRunLock(ctx, memberID, "110-123-456789"); !acquired {
		t.Fatal("expected first acquisition to succeed")
	}

	current = base.Add(StatusTTL + time.Second)
	if acquired, _ := p.AcquireRunLock(ctx, memberID, "110-123-456789"); !acquired {
		t.Fatal("expected the lock to be reacquirable after expiry")
	}
}

func TestMemoryPipelineStatusTransitions(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPipeline()
	memberID := uuid.New()
	const account = "110-123-456789"

	if _, err := p.AcquireRunLock(ctx, memberID, account); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, status := range []domain.PipelineStatus{domain.StatusClassifying, domain.StatusAnalyzing, domain.StatusDone} {
		if err := p.SetStatus(ctx, memberID, account, status); err != nil {
			t.Fatalf("advancing to %s: %v", status, err)
		}
	}

	err := p.SetStatus(ctx, memberID, account, domain.StatusAnalyzing)
	var illegal *IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalTransitionError for DONE -> ANALYZING, got %v", err)
	}

	// Terminal state re-enters a fresh run.
	if err := p.SetStatus(ctx, memberID, account, domain.StatusFetching); err != nil {
		t.Fatalf("restarting after DONE: %v", err)
	}
}

func TestMemoryPipelineConcurrentStatusWrites(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPipeline()
	memberID := uuid.New()
	const account = "110-123-456789"

	if _, err := p.AcquireRunLock(ctx, memberID, account); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Every writer races the same legal transition (redelivered messages do
	// exactly this); the check-and-set must stay consistent under -race.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.SetStatus(ctx, memberID, account, domain.StatusClassifying); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	status, ok, _ := p.GetStatus(ctx, memberID, account)
	if !ok || status != domain.StatusClassifying {
		t.Fatalf("expected CLASSIFYING after concurrent writes, got %v (set=%t)", status, ok)
	}
}

func TestMemoryPipelineStatusCannotStartMidPipeline(t *testing.T) {
	p := NewMemoryPipeline()
	err := p.SetStatus(context.Background(), uuid.New(), "110-123-456789", domain.StatusAnalyzing)
	var illegal *IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalTransitionError without a prior state, got %v", err)
	}
}
