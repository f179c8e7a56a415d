// Package ids defines one opaque identifier type per entity kind so that,
// for example, a ClaimID can never be passed where a TopicID is expected.
// Each kind has exactly one factory; nothing else mints ids.
package ids

import "github.com/google/uuid"

type (
	DocumentID      string
	ChunkID         string
	ClaimID         string
	TopicID         string
	RelationshipID  string
	ContradictionID string
	GapID           string
	QuestionID      string
)

func NewDocumentID() DocumentID           { return DocumentID(uuid.NewString()) }
func NewChunkID() ChunkID                 { return ChunkID(uuid.NewString()) }
func NewClaimID() ClaimID                 { return ClaimID(uuid.NewString()) }
func NewTopicID() TopicID                 { return TopicID(uuid.NewString()) }
func NewRelationshipID() RelationshipID   { return RelationshipID(uuid.NewString()) }
func NewContradictionID() ContradictionID { return ContradictionID(uuid.NewString()) }
func NewGapID() GapID                     { return GapID(uuid.NewString()) }
func NewQuestionID() QuestionID           { return QuestionID(uuid.NewString()) }
