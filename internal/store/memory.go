package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/ids"
)

// Memory is the in-process Store used by tests and memory-backed runs. All
// records are copied on the way in and out so callers never alias store
// state.
type Memory struct {
	*notifier

	mu             sync.RWMutex
	documents      map[ids.DocumentID]*model.Document
	chunks         map[ids.ChunkID]*model.TextChunk
	claims         map[ids.ClaimID]*model.Claim
	topics         map[ids.TopicID]*model.Topic
	relationships  map[ids.RelationshipID]*model.TopicRelationship
	contradictions map[ids.ContradictionID]*model.Contradiction
	gaps           map[ids.GapID]*model.KnowledgeGap
	questions      map[ids.QuestionID]*model.ResearchQuestion
	settings       *model.Settings
}

func NewMemory() *Memory {
	return &Memory{
		notifier:       newNotifier(),
		documents:      make(map[ids.DocumentID]*model.Document),
		chunks:         make(map[ids.ChunkID]*model.TextChunk),
		claims:         make(map[ids.ClaimID]*model.Claim),
		topics:         make(map[ids.TopicID]*model.Topic),
		relationships:  make(map[ids.RelationshipID]*model.TopicRelationship),
		contradictions: make(map[ids.ContradictionID]*model.Contradiction),
		gaps:           make(map[ids.GapID]*model.KnowledgeGap),
		questions:      make(map[ids.QuestionID]*model.ResearchQuestion),
	}
}

func (m *Memory) Close() error { return nil }

func copyDocument(d *model.Document) *model.Document { c := *d; return &c }
func copyChunk(c *model.TextChunk) *model.TextChunk  { cp := *c; return &cp }

func copyClaim(c *model.Claim) *model.Claim {
	cp := *c
	cp.TopicIDs = append([]ids.TopicID(nil), c.TopicIDs...)
	return &cp
}

func copyTopic(t *model.Topic) *model.Topic { c := *t; return &c }

func copyRelationship(r *model.TopicRelationship) *model.TopicRelationship {
	c := *r
	return &c
}

func copyContradiction(c *model.Contradiction) *model.Contradiction { cp := *c; return &cp }

func copyGap(g *model.KnowledgeGap) *model.KnowledgeGap {
	c := *g
	c.TopicIDs = append([]ids.TopicID(nil), g.TopicIDs...)
	return &c
}

func copyQuestion(q *model.ResearchQuestion) *model.ResearchQuestion { c := *q; return &c }

// --- documents ---

func (m *Memory) PutDocument(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	m.documents[doc.ID] = copyDocument(doc)
	m.mu.Unlock()
	m.publish(KindDocuments)
	return nil
}

func (m *Memory) GetDocument(_ context.Context, id ids.DocumentID) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(d), nil
}

func (m *Memory) GetDocumentByHash(_ context.Context, hash string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.documents {
		if d.ContentHash == hash {
			return copyDocument(d), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListDocuments(_ context.Context) ([]*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Document, 0, len(m.documents))
	for _, d := range m.documents {
		out = append(out, copyDocument(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) DeleteDocument(_ context.Context, id ids.DocumentID) error {
	m.mu.Lock()
	if _, ok := m.documents[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.documents, id)

	for cid, c := range m.chunks {
		if c.DocumentID == id {
			delete(m.chunks, cid)
		}
	}

	// Per-topic bookkeeping for the claims being removed: total claim
	// references, and whether this document touched the topic at all.
	claimRefs := make(map[ids.TopicID]int)
	for cid, c := range m.claims {
		if c.DocumentID != id {
			continue
		}
		for _, tid := range c.TopicIDs {
			claimRefs[tid]++
		}
		delete(m.claims, cid)
	}

	orphaned := make(map[ids.TopicID]bool)
	for tid, refs := range claimRefs {
		t, ok := m.topics[tid]
		if !ok {
			continue
		}
		t.ClaimCount -= refs
		t.DocumentCount--
		if t.ClaimCount <= 0 {
			delete(m.topics, tid)
			orphaned[tid] = true
		}
	}

	for rid, r := range m.relationships {
		if orphaned[r.SourceID] || orphaned[r.TargetID] {
			delete(m.relationships, rid)
		}
	}
	m.mu.Unlock()

	m.publish(KindDocuments, KindClaims, KindTopics, KindRelationships)
	return nil
}

// --- chunks ---

func (m *Memory) PutChunks(_ context.Context, chunks []*model.TextChunk) error {
	m.mu.Lock()
	for _, c := range chunks {
		m.chunks[c.ID] = copyChunk(c)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListChunksByDocument(_ context.Context, id ids.DocumentID) ([]*model.TextChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.TextChunk
	for _, c := range m.chunks {
		if c.DocumentID == id {
			out = append(out, copyChunk(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

// --- claims ---

func (m *Memory) PutClaim(_ context.Context, claim *model.Claim) error {
	m.mu.Lock()
	m.claims[claim.ID] = copyClaim(claim)
	m.mu.Unlock()
	m.publish(KindClaims)
	return nil
}

func sortClaims(out []*model.Claim) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}

func (m *Memory) ListClaims(_ context.Context) ([]*model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Claim, 0, len(m.claims))
	for _, c := range m.claims {
		out = append(out, copyClaim(c))
	}
	sortClaims(out)
	return out, nil
}

func (m *Memory) ListClaimsByDocument(_ context.Context, id ids.DocumentID) ([]*model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Claim
	for _, c := range m.claims {
		if c.DocumentID == id {
			out = append(out, copyClaim(c))
		}
	}
	sortClaims(out)
	return out, nil
}

func (m *Memory) ListClaimsByTopic(_ context.Context, id ids.TopicID) ([]*model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Claim
	for _, c := range m.claims {
		if c.HasTopic(id) {
			out = append(out, copyClaim(c))
		}
	}
	sortClaims(out)
	return out, nil
}

// --- topics ---

func (m *Memory) PutTopic(_ context.Context, topic *model.Topic) error {
	m.mu.Lock()
	m.topics[topic.ID] = copyTopic(topic)
	m.mu.Unlock()
	m.publish(KindTopics)
	return nil
}

func (m *Memory) GetTopic(_ context.Context, id ids.TopicID) (*model.Topic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.topics[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTopic(t), nil
}

func (m *Memory) GetTopicByNormalizedLabel(_ context.Context, label string) (*model.Topic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.topics {
		if t.NormalizedLabel == label {
			return copyTopic(t), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListTopics(_ context.Context) ([]*model.Topic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Topic, 0, len(m.topics))
	for _, t := range m.topics {
		out = append(out, copyTopic(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NormalizedLabel < out[j].NormalizedLabel })
	return out, nil
}

// --- relationships ---

func (m *Memory) PutRelationship(_ context.Context, rel *model.TopicRelationship) error {
	m.mu.Lock()
	m.relationships[rel.ID] = copyRelationship(rel)
	m.mu.Unlock()
	m.publish(KindRelationships)
	return nil
}

func (m *Memory) GetRelationship(_ context.Context, source, target ids.TopicID, kind string) (*model.TopicRelationship, error) {
	source, target = model.CanonicalPair(source, target)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.relationships {
		if r.SourceID == source && r.TargetID == target && r.Kind == kind {
			return copyRelationship(r), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListRelationships(_ context.Context) ([]*model.TopicRelationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.TopicRelationship, 0, len(m.relationships))
	for _, r := range m.relationships {
		out = append(out, copyRelationship(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out, nil
}

// --- contradictions ---

func (m *Memory) ReplaceContradictions(_ context.Context, items []*model.Contradiction) error {
	m.mu.Lock()
	m.contradictions = make(map[ids.ContradictionID]*model.Contradiction, len(items))
	for _, c := range items {
		m.contradictions[c.ID] = copyContradiction(c)
	}
	m.mu.Unlock()
	m.publish(KindContradictions)
	return nil
}

func (m *Memory) ListContradictions(_ context.Context) ([]*model.Contradiction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Contradiction, 0, len(m.contradictions))
	for _, c := range m.contradictions {
		out = append(out, copyContradiction(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateContradictionStatus(_ context.Context, id ids.ContradictionID, status model.ContradictionStatus) error {
	m.mu.Lock()
	c, ok := m.contradictions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	c.Status = status
	m.mu.Unlock()
	m.publish(KindContradictions)
	return nil
}

// --- gaps & questions ---

func (m *Memory) ClearAnalysis(_ context.Context) error {
	m.mu.Lock()
	m.gaps = make(map[ids.GapID]*model.KnowledgeGap)
	m.questions = make(map[ids.QuestionID]*model.ResearchQuestion)
	m.mu.Unlock()
	m.publish(KindGaps, KindQuestions)
	return nil
}

func (m *Memory) PutGap(_ context.Context, gap *model.KnowledgeGap) error {
	m.mu.Lock()
	m.gaps[gap.ID] = copyGap(gap)
	m.mu.Unlock()
	m.publish(KindGaps)
	return nil
}

func (m *Memory) ListGaps(_ context.Context) ([]*model.KnowledgeGap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.KnowledgeGap, 0, len(m.gaps))
	for _, g := range m.gaps {
		out = append(out, copyGap(g))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Significance != out[j].Significance {
			return out[i].Significance > out[j].Significance
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) PutQuestions(_ context.Context, questions []*model.ResearchQuestion) error {
	m.mu.Lock()
	for _, q := range questions {
		m.questions[q.ID] = copyQuestion(q)
	}
	m.mu.Unlock()
	m.publish(KindQuestions)
	return nil
}

func (m *Memory) ListQuestions(_ context.Context) ([]*model.ResearchQuestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.ResearchQuestion, 0, len(m.questions))
	for _, q := range m.questions {
		out = append(out, copyQuestion(q))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OverallScore != out[j].OverallScore {
			return out[i].OverallScore > out[j].OverallScore
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- settings ---

func (m *Memory) EnsureSettings(_ context.Context) (*model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		m.settings = model.DefaultSettings()
	}
	c := *m.settings
	return &c, nil
}

func (m *Memory) PutSettings(_ context.Context, s *model.Settings) error {
	m.mu.Lock()
	c := *s
	m.settings = &c
	m.mu.Unlock()
	m.publish(KindSettings)
	return nil
}
