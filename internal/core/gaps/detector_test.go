package gaps

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lacunalabs/lacuna/internal/config"
	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/ids"
	"github.com/lacunalabs/lacuna/internal/llm"
	"github.com/lacunalabs/lacuna/internal/store"
)

type stubClient struct {
	response string
	err      error
}

func (c *stubClient) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	return c.response, c.err
}

func newTestDetector(st store.Store, client llm.Client) *Detector {
	return NewDetector(st, client, config.DefaultPrompts(), zap.NewNop())
}

func putTopic(t *testing.T, st store.Store, id ids.TopicID, label string, claimCount int) {
	t.Helper()
	require.NoError(t, st.PutTopic(context.Background(), &model.Topic{
		ID:              id,
		Label:           label,
		NormalizedLabel: label,
		ClaimCount:      claimCount,
		DocumentCount:   1,
	}))
}

func putEdge(t *testing.T, st store.Store, a, b ids.TopicID) {
	t.Helper()
	src, dst := model.CanonicalPair(a, b)
	require.NoError(t, st.PutRelationship(context.Background(), &model.TopicRelationship{
		ID:       ids.NewRelationshipID(),
		SourceID: src,
		TargetID: dst,
		Kind:     model.RelationshipRelated,
		Weight:   1,
	}))
}

// Five topics where a and b each touch three edges but never each other.
// The median degree is 2, so a and b are the only well-connected topics and
// their missing edge is the single structural gap.
func TestStructuralGapBetweenHighDegreeTopics(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()
	for _, id := range []ids.TopicID{"a", "b", "c", "d", "e"} {
		putTopic(t, st, id, string(id), 1)
	}
	putEdge(t, st, "a", "c")
	putEdge(t, st, "a", "d")
	putEdge(t, st, "a", "e")
	putEdge(t, st, "b", "c")
	putEdge(t, st, "b", "d")
	putEdge(t, st, "b", "e")

	d := newTestDetector(st, &stubClient{err: errors.New("oracle down")})
	found, err := d.Detect(context.Background())
	require.NoError(t, err)

	var structural []*model.KnowledgeGap
	for _, g := range found {
		if g.GapType == model.GapStructural {
			structural = append(structural, g)
		}
	}
	require.Len(t, structural, 1)
	assert.ElementsMatch(t, []ids.TopicID{"a", "b"}, structural[0].TopicIDs)
	assert.InDelta(t, 0.8, structural[0].Significance, 1e-9)
}

func TestStructuralGapSkipsConnectedPairs(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()
	for _, id := range []ids.TopicID{"a", "b", "c", "d", "e"} {
		putTopic(t, st, id, string(id), 1)
	}
	putEdge(t, st, "a", "c")
	putEdge(t, st, "a", "d")
	putEdge(t, st, "a", "e")
	putEdge(t, st, "b", "c")
	putEdge(t, st, "b", "d")
	putEdge(t, st, "b", "e")
	putEdge(t, st, "a", "b")

	d := newTestDetector(st, &stubClient{err: errors.New("oracle down")})
	found, err := d.Detect(context.Background())
	require.NoError(t, err)
	for _, g := range found {
		assert.NotEqual(t, model.GapStructural, g.GapType)
	}
}

func TestDensityGapFlagsThinTopics(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()
	putTopic(t, st, "rich1", "rich1", 6)
	putTopic(t, st, "rich2", "rich2", 6)
	putTopic(t, st, "thin", "thin", 0)

	d := newTestDetector(st, &stubClient{err: errors.New("oracle down")})
	found, err := d.Detect(context.Background())
	require.NoError(t, err)

	require.Len(t, found, 1)
	assert.Equal(t, model.GapDensity, found[0].GapType)
	assert.Equal(t, []ids.TopicID{"thin"}, found[0].TopicIDs)
	// average is 4, a zero-claim topic maxes out significance
	assert.Equal(t, 1.0, found[0].Significance)
}

func TestDensityPassSkippedOnThinCorpus(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()
	putTopic(t, st, "a", "a", 0)
	putTopic(t, st, "b", "b", 0)
	putTopic(t, st, "c", "c", 1)

	d := newTestDetector(st, &stubClient{err: errors.New("oracle down")})
	found, err := d.Detect(context.Background())
	require.NoError(t, err)
	for _, g := range found {
		assert.NotEqual(t, model.GapDensity, g.GapType)
	}
}

func TestOracleGapsValidated(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()
	putTopic(t, st, "t1", "caffeine", 2)
	putTopic(t, st, "t2", "sleep", 2)

	reply := `{"gaps": [
		{"description": "No longitudinal studies.", "topic_labels": ["Caffeine", "unknown topic"], "gap_type": "temporal", "significance": 1.4},
		{"description": "Odd type.", "topic_labels": ["sleep"], "gap_type": "mystery", "significance": -0.2},
		{"description": "", "topic_labels": ["sleep"], "gap_type": "density", "significance": 0.5}
	]}`
	d := newTestDetector(st, &stubClient{response: reply})

	// Two topics with even claim counts produce no computed gaps, so only
	// the oracle proposals survive; the empty-description one is dropped.
	found, err := d.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2)

	temporal := found[0]
	assert.Equal(t, model.GapTemporal, temporal.GapType)
	assert.Equal(t, []ids.TopicID{"t1"}, temporal.TopicIDs, "unresolvable labels are dropped")
	assert.Equal(t, 1.0, temporal.Significance)

	fallback := found[1]
	assert.Equal(t, model.GapStructural, fallback.GapType, "unknown gap types fall back to structural")
	assert.Equal(t, 0.0, fallback.Significance)
}

func TestDetectPersistsGaps(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()
	putTopic(t, st, "rich1", "rich1", 6)
	putTopic(t, st, "rich2", "rich2", 6)
	putTopic(t, st, "thin", "thin", 0)

	d := newTestDetector(st, &stubClient{err: errors.New("oracle down")})
	found, err := d.Detect(context.Background())
	require.NoError(t, err)

	stored, err := st.ListGaps(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, len(found))
}

// capturingClient records the prompt it was sent.
type capturingClient struct {
	prompt   string
	response string
}

func (c *capturingClient) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	c.prompt = messages[0].Content
	return c.response, nil
}

func TestOracleDigestCarriesEveryClaim(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()
	doc := &model.Document{ID: "doc", Name: "d.txt", Status: model.StatusComplete}
	require.NoError(t, st.PutDocument(context.Background(), doc))
	putTopic(t, st, "t1", "caffeine", 4)
	for i := 1; i <= 4; i++ {
		require.NoError(t, st.PutClaim(context.Background(), &model.Claim{
			ID:         ids.ClaimID(fmt.Sprintf("c%d", i)),
			DocumentID: doc.ID,
			Text:       fmt.Sprintf("Observation number %d about caffeine.", i),
			Type:       model.ClaimFinding,
			Confidence: 0.9,
			TopicIDs:   []ids.TopicID{"t1"},
		}))
	}

	client := &capturingClient{response: `{"gaps": []}`}
	d := newTestDetector(st, client)
	_, err := d.Detect(context.Background())
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		assert.Contains(t, client.prompt, fmt.Sprintf("Observation number %d", i))
	}
}

func TestStructuralPassNeedsTwoTopics(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()
	putTopic(t, st, "only", "only", 1)

	d := newTestDetector(st, &stubClient{err: errors.New("oracle down")})
	found, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDetectEmptyCorpus(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()
	d := newTestDetector(st, &stubClient{response: `{"gaps": []}`})
	found, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, found)
}
