package model

import (
	"time"

	"github.com/lacunalabs/lacuna/internal/ids"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type ContradictionStatus string

const (
	ContradictionPending   ContradictionStatus = "pending"
	ContradictionConfirmed ContradictionStatus = "confirmed"
	ContradictionDismissed ContradictionStatus = "dismissed"
)

// Contradiction is an oracle-adjudicated conflict between two claims.
// A detection run replaces all prior contradictions.
type Contradiction struct {
	ID          ids.ContradictionID `json:"id"`
	ClaimAID    ids.ClaimID         `json:"claim_a_id"`
	ClaimBID    ids.ClaimID         `json:"claim_b_id"`
	Description string              `json:"description"`
	Severity    Severity            `json:"severity"`
	Confidence  float64             `json:"confidence"` // [0,1]
	Status      ContradictionStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
}

type GapType string

const (
	GapStructural     GapType = "structural"
	GapDensity        GapType = "density"
	GapMethodological GapType = "methodological"
	GapTemporal       GapType = "temporal"
)

// ValidGapTypes is the closed set of accepted gap types.
var ValidGapTypes = map[GapType]bool{
	GapStructural:     true,
	GapDensity:        true,
	GapMethodological: true,
	GapTemporal:       true,
}

// KnowledgeGap is an under-explored region of the topic graph. A detection
// run replaces all prior gaps.
type KnowledgeGap struct {
	ID           ids.GapID     `json:"id"`
	Description  string        `json:"description"`
	TopicIDs     []ids.TopicID `json:"topic_ids"`
	GapType      GapType       `json:"gap_type"`
	Significance float64       `json:"significance"` // [0,1]
	CreatedAt    time.Time     `json:"created_at"`
}

// ResearchQuestion is a scored candidate question addressing one gap.
type ResearchQuestion struct {
	ID           ids.QuestionID `json:"id"`
	GapID        ids.GapID      `json:"gap_id"`
	Question     string         `json:"question"`
	Rationale    string         `json:"rationale"`
	Impact       float64        `json:"impact"`      // [1,10]
	Feasibility  float64        `json:"feasibility"` // [1,10]
	OverallScore float64        `json:"overall_score"`
}

// Score computes the composite question score from impact and feasibility.
func Score(impact, feasibility float64) float64 {
	return impact*0.6 + feasibility*0.4
}

// Settings is the singleton configuration record, stored under a fixed key.
type Settings struct {
	ChunkSize             int    `json:"chunk_size"`
	ChunkOverlap          int    `json:"chunk_overlap"`
	Provider              string `json:"provider"`
	Model                 string `json:"model"`
	APIKey                string `json:"api_key"`
	BaseURL               string `json:"base_url"`
	ExtractionConcurrency int    `json:"extraction_concurrency"`
	QuestionConcurrency   int    `json:"question_concurrency"`
}

// DefaultSettings returns the values EnsureSettings seeds on first access.
func DefaultSettings() *Settings {
	return &Settings{
		ChunkSize:             1500,
		ChunkOverlap:          200,
		ExtractionConcurrency: 2,
		QuestionConcurrency:   3,
	}
}
