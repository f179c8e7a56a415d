package model

// Wire shapes for oracle (LLM) responses. All fields arrive as free-form
// JSON and are validated item by item; invalid items are dropped, never the
// whole batch.

type ExtractedClaim struct {
	Text       string   `json:"text"`
	Type       string   `json:"type"`
	Confidence float64  `json:"confidence"`
	Topics     []string `json:"topics"`
}

type ExtractedClaims struct {
	Claims []ExtractedClaim `json:"claims"`
}

type VerificationResult struct {
	IsContradiction bool    `json:"is_contradiction"`
	Description     string  `json:"description"`
	Severity        string  `json:"severity"`
	Confidence      float64 `json:"confidence"`
}

type ProposedGap struct {
	Description  string   `json:"description"`
	TopicLabels  []string `json:"topic_labels"`
	GapType      string   `json:"gap_type"`
	Significance float64  `json:"significance"`
}

type ProposedGaps struct {
	Gaps []ProposedGap `json:"gaps"`
}

type ProposedQuestion struct {
	Question    string  `json:"question"`
	Rationale   string  `json:"rationale"`
	Impact      float64 `json:"impact"`
	Feasibility float64 `json:"feasibility"`
}

type ProposedQuestions struct {
	Questions []ProposedQuestion `json:"questions"`
}
