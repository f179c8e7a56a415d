package model

import "github.com/lacunalabs/lacuna/internal/ids"

// Topic is a canonicalized subject label shared by one or more claims.
// NormalizedLabel is the unique dedup key. A topic whose ClaimCount reaches
// zero is orphaned and removed from the store.
type Topic struct {
	ID              ids.TopicID `json:"id"`
	Label           string      `json:"label"`
	NormalizedLabel string      `json:"normalized_label"`
	ClaimCount      int         `json:"claim_count"`
	DocumentCount   int         `json:"document_count"`
}

const RelationshipRelated = "related"

// TopicRelationship is an undirected co-occurrence edge between two topics.
// Endpoints are stored in canonical order (SourceID < TargetID
// lexicographically); Weight accumulates across ingestion runs.
type TopicRelationship struct {
	ID       ids.RelationshipID `json:"id"`
	SourceID ids.TopicID        `json:"source_id"`
	TargetID ids.TopicID        `json:"target_id"`
	Kind     string             `json:"kind"`
	Weight   float64            `json:"weight"`
}

// CanonicalPair orders two topic ids so (a,b) and (b,a) map to the same edge.
func CanonicalPair(a, b ids.TopicID) (ids.TopicID, ids.TopicID) {
	if string(a) < string(b) {
		return a, b
	}
	return b, a
}

// TopicNetwork bundles the nodes and edges of the co-occurrence graph for
// read API consumers, with min-max normalized research density per topic.
type TopicNetwork struct {
	Topics        []*Topic                `json:"topics"`
	Relationships []*TopicRelationship    `json:"relationships"`
	Density       map[ids.TopicID]float64 `json:"density"`
}
