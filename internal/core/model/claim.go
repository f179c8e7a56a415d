package model

import (
	"time"

	"github.com/lacunalabs/lacuna/internal/ids"
)

type ClaimType string

const (
	ClaimFinding     ClaimType = "finding"
	ClaimMethodology ClaimType = "methodology"
	ClaimClaim       ClaimType = "claim"
	ClaimHypothesis  ClaimType = "hypothesis"
	ClaimLimitation  ClaimType = "limitation"
)

// ValidClaimTypes is the closed set of accepted claim types.
var ValidClaimTypes = map[ClaimType]bool{
	ClaimFinding:     true,
	ClaimMethodology: true,
	ClaimClaim:       true,
	ClaimHypothesis:  true,
	ClaimLimitation:  true,
}

// Claim is a single extracted factual statement. Immutable once created;
// deleted together with its owning document.
type Claim struct {
	ID         ids.ClaimID    `json:"id"`
	DocumentID ids.DocumentID `json:"document_id"`
	ChunkID    ids.ChunkID    `json:"chunk_id"`
	Text       string         `json:"text"`
	Type       ClaimType      `json:"type"`
	Confidence float64        `json:"confidence"` // [0,1]
	TopicIDs   []ids.TopicID  `json:"topic_ids"`
	CreatedAt  time.Time      `json:"created_at"`
}

// HasTopic reports whether the claim references the given topic.
func (c *Claim) HasTopic(id ids.TopicID) bool {
	for _, t := range c.TopicIDs {
		if t == id {
			return true
		}
	}
	return false
}
