// Package store is the typed persistence boundary of the analysis engine.
// Implementations must serialize conflicting writes at the record level and
// provide two atomic batches: document delete (with its chunks, claims,
// topic bookkeeping, and dangling relationships) and analysis replace-all.
package store

import (
	"context"
	"errors"

	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/ids"
)

var ErrNotFound = errors.New("store: not found")

// EntityKind names a record set for change notification.
type EntityKind string

const (
	KindDocuments      EntityKind = "documents"
	KindClaims         EntityKind = "claims"
	KindTopics         EntityKind = "topics"
	KindRelationships  EntityKind = "relationships"
	KindContradictions EntityKind = "contradictions"
	KindGaps           EntityKind = "gaps"
	KindQuestions      EntityKind = "questions"
	KindSettings       EntityKind = "settings"
)

// Event signals that the named record set changed. Consumers re-read the
// data they care about; events carry no payload.
type Event struct {
	Kind EntityKind
}

type Store interface {
	PutDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id ids.DocumentID) (*model.Document, error)
	GetDocumentByHash(ctx context.Context, hash string) (*model.Document, error)
	ListDocuments(ctx context.Context) ([]*model.Document, error)
	// DeleteDocument removes the document with its chunks and claims,
	// decrements topic counts, drops orphaned topics, and drops
	// relationships touching orphaned topics, atomically.
	DeleteDocument(ctx context.Context, id ids.DocumentID) error

	PutChunks(ctx context.Context, chunks []*model.TextChunk) error
	ListChunksByDocument(ctx context.Context, id ids.DocumentID) ([]*model.TextChunk, error)

	PutClaim(ctx context.Context, claim *model.Claim) error
	ListClaims(ctx context.Context) ([]*model.Claim, error)
	ListClaimsByDocument(ctx context.Context, id ids.DocumentID) ([]*model.Claim, error)
	ListClaimsByTopic(ctx context.Context, id ids.TopicID) ([]*model.Claim, error)

	PutTopic(ctx context.Context, topic *model.Topic) error
	GetTopic(ctx context.Context, id ids.TopicID) (*model.Topic, error)
	GetTopicByNormalizedLabel(ctx context.Context, label string) (*model.Topic, error)
	ListTopics(ctx context.Context) ([]*model.Topic, error)

	PutRelationship(ctx context.Context, rel *model.TopicRelationship) error
	GetRelationship(ctx context.Context, source, target ids.TopicID, kind string) (*model.TopicRelationship, error)
	ListRelationships(ctx context.Context) ([]*model.TopicRelationship, error)

	// ReplaceContradictions atomically clears all prior contradictions and
	// inserts the given set.
	ReplaceContradictions(ctx context.Context, items []*model.Contradiction) error
	ListContradictions(ctx context.Context) ([]*model.Contradiction, error)
	UpdateContradictionStatus(ctx context.Context, id ids.ContradictionID, status model.ContradictionStatus) error

	// ClearAnalysis atomically empties the gap and question stores; a full
	// analysis run calls it once before any new inserts.
	ClearAnalysis(ctx context.Context) error
	PutGap(ctx context.Context, gap *model.KnowledgeGap) error
	ListGaps(ctx context.Context) ([]*model.KnowledgeGap, error)
	PutQuestions(ctx context.Context, questions []*model.ResearchQuestion) error
	ListQuestions(ctx context.Context) ([]*model.ResearchQuestion, error)

	// EnsureSettings returns the singleton settings record, creating it with
	// defaults on first access.
	EnsureSettings(ctx context.Context) (*model.Settings, error)
	PutSettings(ctx context.Context, s *model.Settings) error

	// Subscribe returns a change-event channel and a cancel function. Events
	// are dropped, not blocked on, when the subscriber falls behind.
	Subscribe(buffer int) (<-chan Event, func())

	Close() error
}
