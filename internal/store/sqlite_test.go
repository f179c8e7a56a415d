package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/ids"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "lacuna.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_DocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	doc := seedDocument(t, s, "a")

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Name, got.Name)
	assert.Equal(t, doc.ContentHash, got.ContentHash)
	assert.Equal(t, model.StatusComplete, got.Status)

	byHash, err := s.GetDocumentByHash(ctx, doc.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byHash.ID)
}

func TestSQLite_ClaimTopicsKeepOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	doc := seedDocument(t, s, "a")
	t1 := seedTopic(t, s, "alpha", 1, 1)
	t2 := seedTopic(t, s, "beta", 1, 1)
	claim := seedClaim(t, s, doc.ID, t2.ID, t1.ID)

	claims, err := s.ListClaimsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, claim.TopicIDs, claims[0].TopicIDs)

	byTopic, err := s.ListClaimsByTopic(ctx, t1.ID)
	require.NoError(t, err)
	require.Len(t, byTopic, 1)
	assert.Equal(t, claim.ID, byTopic[0].ID)
}

func TestSQLite_DeleteDocumentCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	doc := seedDocument(t, s, "a")
	solo := seedTopic(t, s, "solo", 1, 1)
	shared := seedTopic(t, s, "shared", 2, 2)
	seedClaim(t, s, doc.ID, solo.ID, shared.ID)
	other := seedDocument(t, s, "b")
	seedClaim(t, s, other.ID, shared.ID)

	// Chunks reference the documents row, so the cascade must remove them
	// before the document itself.
	require.NoError(t, s.PutChunks(ctx, []*model.TextChunk{
		{ID: ids.NewChunkID(), DocumentID: doc.ID, Content: "some text", StartOffset: 0, EndOffset: 9, ChunkIndex: 0},
	}))

	src, dst := model.CanonicalPair(solo.ID, shared.ID)
	require.NoError(t, s.PutRelationship(ctx, &model.TopicRelationship{
		ID: ids.NewRelationshipID(), SourceID: src, TargetID: dst,
		Kind: model.RelationshipRelated, Weight: 1,
	}))

	require.NoError(t, s.DeleteDocument(ctx, doc.ID))

	_, err := s.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetTopic(ctx, solo.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetTopic(ctx, shared.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ClaimCount)
	assert.Equal(t, 1, got.DocumentCount)

	rels, err := s.ListRelationships(ctx)
	require.NoError(t, err)
	assert.Empty(t, rels)

	chunks, err := s.ListChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSQLite_RelationshipUpsertByPair(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	a := seedTopic(t, s, "a", 1, 1)
	b := seedTopic(t, s, "b", 1, 1)
	src, dst := model.CanonicalPair(a.ID, b.ID)

	rel := &model.TopicRelationship{
		ID: ids.NewRelationshipID(), SourceID: src, TargetID: dst,
		Kind: model.RelationshipRelated, Weight: 2,
	}
	require.NoError(t, s.PutRelationship(ctx, rel))

	// Lookup is order independent.
	got, err := s.GetRelationship(ctx, b.ID, a.ID, model.RelationshipRelated)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Weight)

	got.Weight = 5
	require.NoError(t, s.PutRelationship(ctx, got))
	rels, err := s.ListRelationships(ctx)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, 5.0, rels[0].Weight)
}

func TestSQLite_GapsAndQuestionsReplaceAll(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	topic := seedTopic(t, s, "alpha", 1, 1)

	gap := &model.KnowledgeGap{
		ID: ids.NewGapID(), Description: "gap", TopicIDs: []ids.TopicID{topic.ID},
		GapType: model.GapStructural, Significance: 0.8,
	}
	require.NoError(t, s.PutGap(ctx, gap))
	require.NoError(t, s.PutQuestions(ctx, []*model.ResearchQuestion{
		{ID: ids.NewQuestionID(), GapID: gap.ID, Question: "q?", Impact: 8, Feasibility: 6, OverallScore: 7.2},
	}))

	gaps, err := s.ListGaps(ctx)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, gap.TopicIDs, gaps[0].TopicIDs)

	require.NoError(t, s.ClearAnalysis(ctx))
	gaps, err = s.ListGaps(ctx)
	require.NoError(t, err)
	assert.Empty(t, gaps)
	questions, err := s.ListQuestions(ctx)
	require.NoError(t, err)
	assert.Empty(t, questions)
}

func TestSQLite_SettingsSingleton(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	got, err := s.EnsureSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1500, got.ChunkSize)

	got.Provider = "openai"
	require.NoError(t, s.PutSettings(ctx, got))
	again, err := s.EnsureSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "openai", again.Provider)
}
