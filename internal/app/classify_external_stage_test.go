package app

import (
	"context"
	"errors"
	"testing"

	"github.com/moabank/ledger-service/internal/cache"
	"github.com/moabank/ledger-service/internal/domain"
)

func TestExternalClassifyMapsModelNamesToCategories(t *testing.T) {
	account := testAccount()
	classifier := &fakeClassifier{names: []string{"식비", "쇼핑"}}
	pipelineCache := cache.NewMemoryPipeline()
	publisher := &fakePublisher{}
	stage := NewExternalClassifyStage(classifier, pipelineCache, publisher)

	msg := domain.ExternalClassifyMessage{
		MemberID:     account.MemberID,
		Account:      account,
		StartDate:    "20250311",
		Unresolved:   []string{"배달의민족", "올리브영 홍대점"},
		Transactions: batchOf(account, "배달의민족", "올리브영 홍대점"),
	}
	if err := stage.Handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if classifier.calls != 1 {
		t.Fatalf("expected a single model call per batch, got %d", classifier.calls)
	}
	cached, _ := pipelineCache.GetCategories(context.Background(), account.ID)
	if cached["배달의민족"] != domain.CategoryFood {
		t.Errorf("expected 배달의민족 -> %d, got %d", domain.CategoryFood, cached["배달의민족"])
	}
	if cached["올리브영 홍대점"] != domain.CategoryShopping {
		t.Errorf("expected 올리브영 홍대점 -> %d, got %d", domain.CategoryShopping, cached["올리브영 홍대점"])
	}

	published := publisher.messages()
	if len(published) != 1 || published[0].routingKey != domain.RouteCategorySave {
		t.Fatalf("expected forward to %s, got %v", domain.RouteCategorySave, published)
	}
}

func TestExternalClassifyPadsShortModelResponse(t *testing.T) {
	account := testAccount()
	classifier := &fakeClassifier{names: []string{"식비"}}
	pipelineCache := cache.NewMemoryPipeline()
	publisher := &fakePublisher{}
	stage := NewExternalClassifyStage(classifier, pipelineCache, publisher)

	msg := domain.ExternalClassifyMessage{
		MemberID:   account.MemberID,
		Account:    account,
		StartDate:  "20250311",
		Unresolved: []string{"배달의민족", "모르는가게", "또모르는가게"},
	}
	if err := stage.Handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cached, _ := pipelineCache.GetCategories(context.Background(), account.ID)
	if cached["배달의민족"] != domain.CategoryFood {
		t.Errorf("expected the answered description to keep the model's category, got %d", cached["배달의민족"])
	}
	if cached["모르는가게"] != domain.CategoryOther || cached["또모르는가게"] != domain.CategoryOther {
		t.Errorf("expected unanswered descriptions to default, got %v", cached)
	}
}

func TestExternalClassifyModelFailureDefaultsEverything(t *testing.T) {
	account := testAccount()
	classifier := &fakeClassifier{err: errors.New("model unavailable")}
	pipelineCache := cache.NewMemoryPipeline()
	publisher := &fakePublisher{}
	stage := NewExternalClassifyStage(classifier, pipelineCache, publisher)

	msg := domain.ExternalClassifyMessage{
		MemberID:   account.MemberID,
		Account:    account,
		StartDate:  "20250311",
		Unresolved: []string{"배달의민족", "모르는가게"},
	}
	if err := stage.Handle(context.Background(), msg); err != nil {
		t.Fatalf("model failure must not fail the stage: %v", err)
	}

	cached, _ := pipelineCache.GetCategories(context.Background(), account.ID)
	for desc, id := range cached {
		if id != domain.CategoryOther {
			t.Errorf("expected %s to default after model failure, got %d", desc, id)
		}
	}
	if len(cached) != 2 {
		t.Fatalf("expected every requested description to be cached, got %d", len(cached))
	}

	// The batch still has to reach category persistence.
	published := publisher.messages()
	if len(published) != 1 || published[0].routingKey != domain.RouteCategorySave {
		t.Fatalf("expected forward to %s, got %v", domain.RouteCategorySave, published)
	}
}

func TestExternalClassifyUnknownNameDefaults(t *testing.T) {
	account := testAccount()
	classifier := &fakeClassifier{names: []string{"존재하지않는카테고리"}}
	pipelineCache := cache.NewMemoryPipeline()
	publisher := &fakePublisher{}
	stage := NewExternalClassifyStage(classifier, pipelineCache, publisher)

	msg := domain.ExternalClassifyMessage{
		MemberID:   account.MemberID,
		Account:    account,
		StartDate:  "20250311",
		Unresolved: []string{"모르는가게"},
	}
	if err := stage.Handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cached, _ := pipelineCache.GetCategories(context.Background(), account.ID)
	if cached["모르는가게"] != domain.CategoryOther {
		t.Fatalf("expected unknown category name to map to the default, got %d", cached["모르는가게"])
	}
}
