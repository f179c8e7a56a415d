// End-to-end pipeline tests against the in-memory store and a scripted
// oracle: upload, extraction, graph building, full analysis, and deletion,
// with no network and no real provider.
package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lacunalabs/lacuna/internal/config"
	"github.com/lacunalabs/lacuna/internal/core"
	"github.com/lacunalabs/lacuna/internal/core/extraction"
	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/llm"
	"github.com/lacunalabs/lacuna/internal/store"
)

// researchOracle routes prompts by shape: extraction prompts get claims
// keyed off the document text, verification prompts get a contradiction
// verdict, and so on.
type researchOracle struct{}

func (o *researchOracle) Get(ctx context.Context, opts llm.Options) (llm.Client, error) {
	return o, nil
}
func (o *researchOracle) Invalidate() {}

func (o *researchOracle) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	prompt := messages[0].Content
	switch {
	case strings.Contains(prompt, "Extract atomic factual statements"):
		if strings.Contains(prompt, "prolongs lifespan") {
			return `{"claims": [
				{"text": "Caloric restriction prolongs lifespan in mice.", "type": "finding", "confidence": 0.9, "topics": ["caloric restriction", "lifespan"]},
				{"text": "Mice were fed 30% fewer calories.", "type": "methodology", "confidence": 0.95, "topics": ["caloric restriction"]}
			]}`, nil
		}
		return `{"claims": [
			{"text": "Caloric restriction shortens lifespan in mice.", "type": "finding", "confidence": 0.85, "topics": ["caloric restriction", "lifespan"]}
		]}`, nil

	case strings.Contains(prompt, "Do these two research claims contradict"):
		if strings.Contains(prompt, "prolongs") && strings.Contains(prompt, "shortens") {
			return `{"is_contradiction": true, "description": "Opposite lifespan effects.", "severity": "high", "confidence": 0.95}`, nil
		}
		return `{"is_contradiction": false, "description": "", "severity": "low", "confidence": 0.9}`, nil

	case strings.Contains(prompt, "Identify under-explored areas"):
		return `{"gaps": [{"description": "No human studies of caloric restriction.", "topic_labels": ["caloric restriction"], "gap_type": "methodological", "significance": 0.7}]}`, nil

	case strings.Contains(prompt, "Propose 3-5 research questions"):
		return `{"questions": [
			{"question": "Does caloric restriction extend human lifespan?", "rationale": "Bridges the species gap.", "impact": 9, "feasibility": 3},
			{"question": "What biomarkers track restriction response?", "rationale": "Enables shorter trials.", "impact": 6, "feasibility": 7}
		]}`, nil
	}
	return "", nil
}

func newPipeline(t *testing.T) (*core.Engine, store.Store) {
	t.Helper()
	st := store.NewMemory()
	t.Cleanup(func() { st.Close() })
	engine := core.NewEngine(st, &researchOracle{}, config.Default(), nil, zap.NewNop())
	return engine, st
}

func ingestCorpus(t *testing.T, engine *core.Engine) []extraction.IngestResult {
	t.Helper()
	results, err := engine.IngestDocuments(context.Background(), []extraction.IngestFile{
		{Name: "mice-up.txt", Content: []byte("Study A: caloric restriction prolongs lifespan.")},
		{Name: "mice-down.txt", Content: []byte("Study B: caloric restriction shortens lifespan.")},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.Empty(t, r.Error)
	}
	return results
}

func TestPipelineIngestBuildsGraph(t *testing.T) {
	engine, st := newPipeline(t)
	ingestCorpus(t, engine)

	docs, err := st.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Equal(t, model.StatusComplete, d.Status)
		assert.Equal(t, 100, d.Progress)
	}

	topics, err := st.ListTopics(context.Background())
	require.NoError(t, err)
	require.Len(t, topics, 2)
	byLabel := map[string]*model.Topic{}
	for _, tp := range topics {
		byLabel[tp.NormalizedLabel] = tp
	}
	require.Contains(t, byLabel, "caloric restriction")
	require.Contains(t, byLabel, "lifespan")
	assert.Equal(t, 3, byLabel["caloric restriction"].ClaimCount)
	assert.Equal(t, 2, byLabel["caloric restriction"].DocumentCount)
	assert.Equal(t, 2, byLabel["lifespan"].ClaimCount)

	rels, err := st.ListRelationships(context.Background())
	require.NoError(t, err)
	require.Len(t, rels, 1)
	// Doc A contributes an intra-claim pair and a cross-claim pair, doc B
	// one more intra-claim pair on the same edge.
	assert.Equal(t, 3.0, rels[0].Weight)
}

func TestPipelineFullAnalysis(t *testing.T) {
	engine, st := newPipeline(t)
	ingestCorpus(t, engine)

	summary, err := engine.RunAnalysis(context.Background())
	require.NoError(t, err)
	require.NotZero(t, summary.Gaps)
	require.NotZero(t, summary.Questions)
	assert.Equal(t, 1, summary.Contradictions)

	gaps, err := st.ListGaps(context.Background())
	require.NoError(t, err)
	var methodological *model.KnowledgeGap
	for _, g := range gaps {
		if g.GapType == model.GapMethodological {
			methodological = g
		}
	}
	require.NotNil(t, methodological)
	assert.Len(t, methodological.TopicIDs, 1)

	questions, err := st.ListQuestions(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, questions)
	// Highest composite score first.
	assert.InDelta(t, 9*0.6+3*0.4, questions[0].OverallScore, 1e-9)

	contradictions, err := st.ListContradictions(context.Background())
	require.NoError(t, err)
	require.Len(t, contradictions, 1)
	assert.Equal(t, model.SeverityHigh, contradictions[0].Severity)
	assert.Equal(t, model.ContradictionPending, contradictions[0].Status)
}

func TestPipelineRerunReplacesAnalysis(t *testing.T) {
	engine, st := newPipeline(t)
	ingestCorpus(t, engine)

	first, err := engine.RunAnalysis(context.Background())
	require.NoError(t, err)
	second, err := engine.RunAnalysis(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Gaps, second.Gaps)

	gaps, err := st.ListGaps(context.Background())
	require.NoError(t, err)
	assert.Len(t, gaps, second.Gaps, "rerun must not accumulate gaps")
}

func TestPipelineDeleteDocumentCleansUp(t *testing.T) {
	engine, st := newPipeline(t)
	results := ingestCorpus(t, engine)

	// Drop the document that contributed two of the three claims.
	require.NoError(t, engine.DeleteDocument(context.Background(), results[0].DocumentID))

	topics, err := st.ListTopics(context.Background())
	require.NoError(t, err)
	require.Len(t, topics, 2)
	for _, tp := range topics {
		assert.Equal(t, 1, tp.ClaimCount)
		assert.Equal(t, 1, tp.DocumentCount)
	}

	claims, err := st.ListClaims(context.Background())
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestPipelineDuplicateUploadSkipped(t *testing.T) {
	engine, st := newPipeline(t)
	content := []byte("Study A: caloric restriction prolongs lifespan.")

	_, err := engine.IngestDocuments(context.Background(),
		[]extraction.IngestFile{{Name: "a.txt", Content: content}})
	require.NoError(t, err)
	results, err := engine.IngestDocuments(context.Background(),
		[]extraction.IngestFile{{Name: "copy.txt", Content: content}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)

	docs, err := st.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
