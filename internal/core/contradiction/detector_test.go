package contradiction

import (
	"context"
	"strings"
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

func claim(id ids.ClaimID, typ model.ClaimType, text string, topicIDs ...ids.TopicID) *model.Claim {
	return &model.Claim{
		ID:         id,
		DocumentID: "doc",
		Text:       text,
		Type:       typ,
		Confidence: 0.9,
		TopicIDs:   topicIDs,
	}
}

func TestGenerateCandidatesRequiresSameTypeAndSharedTopic(t *testing.T) {
	claims := []*model.Claim{
		claim("c1", model.ClaimFinding, "a", "t1"),
		claim("c2", model.ClaimFinding, "b", "t1", "t2"),
		claim("c3", model.ClaimMethodology, "c", "t1"),
		claim("c4", model.ClaimFinding, "d", "t3"),
	}
	cands := GenerateCandidates(claims)
	require.Len(t, cands, 1)
	assert.Equal(t, ids.ClaimID("c1"), cands[0].A.ID)
	assert.Equal(t, ids.ClaimID("c2"), cands[0].B.ID)
}

func TestGenerateCandidatesEmptyAndSingle(t *testing.T) {
	assert.Empty(t, GenerateCandidates(nil))
	assert.Empty(t, GenerateCandidates([]*model.Claim{claim("c1", model.ClaimFinding, "a", "t1")}))
}

// verifierClient answers contradiction prompts per claim-pair content.
type verifierClient struct {
	answer func(prompt string) string
	calls  int
}

func (c *verifierClient) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	c.calls++
	return c.answer(messages[0].Content), nil
}

func seedConflictingClaims(t *testing.T, st store.Store) {
	t.Helper()
	doc := &model.Document{ID: "doc", Name: "d.txt", Status: model.StatusComplete}
	require.NoError(t, st.PutDocument(context.Background(), doc))
	require.NoError(t, st.PutClaim(context.Background(),
		claim("c1", model.ClaimFinding, "Caffeine improves recall.", "t1")))
	require.NoError(t, st.PutClaim(context.Background(),
		claim("c2", model.ClaimFinding, "Caffeine impairs recall.", "t1")))
	require.NoError(t, st.PutClaim(context.Background(),
		claim("c3", model.ClaimFinding, "Caffeine is bitter.", "t1")))
}

func TestDetectKeepsOnlyConfidentContradictions(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()
	seedConflictingClaims(t, st)

	client := &verifierClient{answer: func(prompt string) string {
		if strings.Contains(prompt, "improves") && strings.Contains(prompt, "impairs") {
			return `{"is_contradiction": true, "description": "Opposite effects on recall.", "severity": "high", "confidence": 0.9}`
		}
		if strings.Contains(prompt, "bitter") && strings.Contains(prompt, "improves") {
			return `{"is_contradiction": true, "description": "Weak signal.", "severity": "low", "confidence": 0.5}`
		}
		return `{"is_contradiction": false, "description": "", "severity": "low", "confidence": 0.9}`
	}}

	d := NewDetector(st, client, config.DefaultPrompts(), zap.NewNop())
	confirmed, err := d.Detect(context.Background())
	require.NoError(t, err)

	// 3 same-type claims sharing one topic yield C(3,2) candidates.
	assert.Equal(t, 3, client.calls)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "Opposite effects on recall.", confirmed[0].Description)
	assert.Equal(t, model.SeverityHigh, confirmed[0].Severity)
	assert.Equal(t, model.ContradictionPending, confirmed[0].Status)

	stored, err := st.ListContradictions(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestDetectReplacesPriorContradictions(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()
	seedConflictingClaims(t, st)
	require.NoError(t, st.ReplaceContradictions(context.Background(), []*model.Contradiction{
		{ID: ids.NewContradictionID(), ClaimAID: "c1", ClaimBID: "c2", Status: model.ContradictionPending},
	}))

	client := &verifierClient{answer: func(string) string {
		return `{"is_contradiction": false, "description": "", "severity": "low", "confidence": 0.9}`
	}}
	d := NewDetector(st, client, config.DefaultPrompts(), zap.NewNop())
	_, err := d.Detect(context.Background())
	require.NoError(t, err)

	stored, err := st.ListContradictions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestDetectTreatsBadReplyAsNoContradiction(t *testing.T) {
	st := store.NewMemory()
	defer st.Close()
	seedConflictingClaims(t, st)

	client := &verifierClient{answer: func(string) string { return "definitely not json" }}
	d := NewDetector(st, client, config.DefaultPrompts(), zap.NewNop())
	confirmed, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, confirmed)
}

func TestSeverityFromDefaultsToMedium(t *testing.T) {
	assert.Equal(t, model.SeverityLow, severityFrom(" LOW "))
	assert.Equal(t, model.SeverityHigh, severityFrom("high"))
	assert.Equal(t, model.SeverityMedium, severityFrom("catastrophic"))
	assert.Equal(t, model.SeverityMedium, severityFrom(""))
}
