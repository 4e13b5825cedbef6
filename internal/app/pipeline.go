package app

import (
	"github.com/moabank/ledger-service/internal/cache"
	"github.com/moabank/ledger-service/internal/domain"
	"github.com/moabank/ledger-service/internal/store"
	"github.com/moabank/ledger-service/pkg/aiclient"
	"github.com/moabank/ledger-service/pkg/rabbitmq"
)

// Pipeline bundles the six stages and their routing-key bindings. Stages
// never call each other directly; every arrow in the chain is a publish
// through the broker.
type Pipeline struct {
	Fetch            *FetchStage
	Save             *SaveStage
	ClassifyInternal *InternalClassifyStage
	ClassifyExternal *ExternalClassifyStage
	CategorySave     *CategorySaveStage
	Summary          *SummaryStage
}

// NewPipeline wires all stages against their shared dependencies.
func NewPipeline(
	repo store.Repository,
	pipelineCache cache.Pipeline,
	bank BankHistoryClient,
	classifier aiclient.Classifier,
	producer rabbitmq.Publisher,
	resolver DescriptionResolver,
) *Pipeline {
	return &Pipeline{
		Fetch:            NewFetchStage(repo, pipelineCache, bank, producer),
		Save:             NewSaveStage(repo, producer),
		ClassifyInternal: NewInternalClassifyStage(resolver, pipelineCache, producer),
		ClassifyExternal: NewExternalClassifyStage(classifier, pipelineCache, producer),
		CategorySave:     NewCategorySaveStage(repo, pipelineCache, producer),
		Summary:          NewSummaryStage(repo),
	}
}

// Bindings maps each routing key to its stage's raw handler, for registration
// with the consumer at process startup.
func (p *Pipeline) Bindings() map[string]rabbitmq.Handler {
	return map[string]rabbitmq.Handler{
		domain.RouteFetch:            p.Fetch.HandleMessage,
		domain.RouteSave:             p.Save.HandleMessage,
		domain.RouteClassifyInternal: p.ClassifyInternal.HandleMessage,
		domain.RouteClassifyExternal: p.ClassifyExternal.HandleMessage,
		domain.RouteCategorySave:     p.CategorySave.HandleMessage,
		domain.RouteSummarySave:      p.Summary.HandleMessage,
	}
}
