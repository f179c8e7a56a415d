// Package core wires the analysis engine together: document ingestion,
// topic graph maintenance, gap and contradiction mining, and question
// generation, all on top of the typed store and the oracle client cache.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lacunalabs/lacuna/internal/config"
	"github.com/lacunalabs/lacuna/internal/core/contradiction"
	"github.com/lacunalabs/lacuna/internal/core/extraction"
	"github.com/lacunalabs/lacuna/internal/core/gaps"
	"github.com/lacunalabs/lacuna/internal/core/graph"
	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/core/questions"
	"github.com/lacunalabs/lacuna/internal/driver"
	"github.com/lacunalabs/lacuna/internal/ids"
	"github.com/lacunalabs/lacuna/internal/llm"
	"github.com/lacunalabs/lacuna/internal/store"
)

// ErrAnalysisRunning is returned when a full analysis run is requested
// while a previous run is still in flight.
var ErrAnalysisRunning = errors.New("core: analysis already in progress")

// ClientSource hands out oracle clients for a given set of options.
// llm.Cache is the production implementation.
type ClientSource interface {
	Get(ctx context.Context, opts llm.Options) (llm.Client, error)
	Invalidate()
}

// Engine is the top-level façade the HTTP surface talks to. Mirror is
// optional; when set, topic graph changes are projected into it best-effort.
type Engine struct {
	Store   store.Store
	Clients ClientSource
	Config  *config.Config
	Mirror  driver.GraphDriver
	Log     *zap.Logger

	analyzing atomic.Bool
}

func NewEngine(st store.Store, clients ClientSource, cfg *config.Config, mirror driver.GraphDriver, log *zap.Logger) *Engine {
	return &Engine{Store: st, Clients: clients, Config: cfg, Mirror: mirror, Log: log}
}

// client resolves the oracle client from the stored settings, falling back
// to the static config for anything the settings leave blank.
func (e *Engine) client(ctx context.Context, settings *model.Settings) (llm.Client, error) {
	opts := llm.Options{
		Provider: settings.Provider,
		Model:    settings.Model,
		APIKey:   settings.APIKey,
		BaseURL:  settings.BaseURL,
	}
	if opts.Provider == "" {
		opts.Provider = e.Config.LLM.Provider
	}
	if opts.Model == "" {
		opts.Model = e.Config.LLM.Model
	}
	if opts.APIKey == "" {
		opts.APIKey = e.Config.LLM.APIKey
	}
	if opts.BaseURL == "" {
		opts.BaseURL = e.Config.LLM.BaseURL
	}
	return e.Clients.Get(ctx, opts)
}

// IngestDocuments runs the ingestion pipeline over a batch of uploads and
// then mirrors the updated topic graph.
func (e *Engine) IngestDocuments(ctx context.Context, files []extraction.IngestFile) ([]extraction.IngestResult, error) {
	settings, err := e.Store.EnsureSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	client, err := e.client(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("building oracle client: %w", err)
	}

	ex := extraction.NewExtractor(client, e.Config.Prompts, e.Log)
	ingestor := extraction.NewIngestor(e.Store, ex, e.Log, settings)

	results, err := ingestor.Ingest(ctx, files)
	if err != nil {
		return results, err
	}

	e.mirrorTopicGraph(ctx)
	return results, nil
}

// AnalysisSummary reports what one full analysis run produced.
type AnalysisSummary struct {
	Gaps           int `json:"gaps"`
	Questions      int `json:"questions"`
	Contradictions int `json:"contradictions"`
}

// RunAnalysis clears prior analysis output and recomputes gaps, questions,
// and contradictions over the whole corpus. Only one run executes at a
// time. Gap detection failure aborts the run since questions depend on it;
// contradiction detection failure is logged and leaves that set empty.
func (e *Engine) RunAnalysis(ctx context.Context) (*AnalysisSummary, error) {
	if !e.analyzing.CompareAndSwap(false, true) {
		return nil, ErrAnalysisRunning
	}
	defer e.analyzing.Store(false)

	settings, err := e.Store.EnsureSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	client, err := e.client(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("building oracle client: %w", err)
	}

	if err := e.Store.ClearAnalysis(ctx); err != nil {
		return nil, fmt.Errorf("clearing previous analysis: %w", err)
	}

	detector := gaps.NewDetector(e.Store, client, e.Config.Prompts, e.Log)
	found, err := detector.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detecting gaps: %w", err)
	}

	generator := questions.NewGenerator(e.Store, client, e.Config.Prompts, e.Log, settings.QuestionConcurrency)
	generated, err := generator.Generate(ctx, found)
	if err != nil {
		return nil, fmt.Errorf("generating questions: %w", err)
	}

	summary := &AnalysisSummary{Gaps: len(found), Questions: len(generated)}

	contradictions := contradiction.NewDetector(e.Store, client, e.Config.Prompts, e.Log)
	confirmed, err := contradictions.Detect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		e.Log.Error("contradiction detection failed", zap.Error(err))
	} else {
		summary.Contradictions = len(confirmed)
	}

	return summary, nil
}

// DeleteDocument removes a document and its derived records, then brings
// the mirror back in line with the surviving topic graph.
func (e *Engine) DeleteDocument(ctx context.Context, id ids.DocumentID) error {
	before, err := e.Store.ListTopics(ctx)
	if err != nil {
		return err
	}

	if err := e.Store.DeleteDocument(ctx, id); err != nil {
		return err
	}

	if e.Mirror == nil {
		return nil
	}
	after, err := e.Store.ListTopics(ctx)
	if err != nil {
		e.Log.Warn("mirror sync skipped after delete", zap.Error(err))
		return nil
	}
	survived := map[ids.TopicID]bool{}
	for _, t := range after {
		survived[t.ID] = true
	}
	for _, t := range before {
		if survived[t.ID] {
			continue
		}
		if _, err := e.Mirror.ExecuteQuery(ctx, driver.DeleteTopicQuery, map[string]any{"id": string(t.ID)}); err != nil {
			e.Log.Warn("mirror topic delete failed",
				zap.String("topic_id", string(t.ID)),
				zap.Error(err))
		}
	}
	e.mirrorTopicGraph(ctx)
	return nil
}

// TopicNetwork assembles the read model of the co-occurrence graph.
func (e *Engine) TopicNetwork(ctx context.Context) (*model.TopicNetwork, error) {
	allTopics, err := e.Store.ListTopics(ctx)
	if err != nil {
		return nil, err
	}
	rels, err := e.Store.ListRelationships(ctx)
	if err != nil {
		return nil, err
	}
	return &model.TopicNetwork{
		Topics:        allTopics,
		Relationships: rels,
		Density:       graph.CalculateDensity(allTopics),
	}, nil
}

// UpdateSettings persists new settings and invalidates the oracle client
// cache so credential changes take effect on the next call.
func (e *Engine) UpdateSettings(ctx context.Context, s *model.Settings) error {
	if err := e.Store.PutSettings(ctx, s); err != nil {
		return err
	}
	e.Clients.Invalidate()
	return nil
}

// mirrorTopicGraph pushes the current topics and relationships into the
// mirror. Failures are logged and swallowed.
func (e *Engine) mirrorTopicGraph(ctx context.Context) {
	if e.Mirror == nil {
		return
	}
	allTopics, err := e.Store.ListTopics(ctx)
	if err != nil {
		e.Log.Warn("mirror sync skipped", zap.Error(err))
		return
	}
	for _, t := range allTopics {
		params := map[string]any{
			"id":               string(t.ID),
			"label":            t.Label,
			"normalized_label": t.NormalizedLabel,
			"claim_count":      t.ClaimCount,
			"document_count":   t.DocumentCount,
		}
		if _, err := e.Mirror.ExecuteQuery(ctx, driver.SaveTopicQuery, params); err != nil {
			e.Log.Warn("mirror topic save failed", zap.String("topic_id", string(t.ID)), zap.Error(err))
			return
		}
	}

	rels, err := e.Store.ListRelationships(ctx)
	if err != nil {
		e.Log.Warn("mirror sync skipped", zap.Error(err))
		return
	}
	for _, r := range rels {
		params := map[string]any{
			"id":        string(r.ID),
			"source_id": string(r.SourceID),
			"target_id": string(r.TargetID),
			"kind":      r.Kind,
			"weight":    r.Weight,
		}
		if _, err := e.Mirror.ExecuteQuery(ctx, driver.SaveRelationshipQuery, params); err != nil {
			e.Log.Warn("mirror relationship save failed", zap.String("relationship_id", string(r.ID)), zap.Error(err))
			return
		}
	}
}
