// Package extraction turns chunk text into validated claims via the oracle
// and drives the document ingestion pipeline.
package extraction

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lacunalabs/lacuna/internal/config"
	"github.com/lacunalabs/lacuna/internal/core/common"
	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/llm"
)

type Extractor struct {
	LLM     llm.Client
	Prompts config.Prompts
	Log     *zap.Logger
}

func NewExtractor(client llm.Client, prompts config.Prompts, log *zap.Logger) *Extractor {
	return &Extractor{
		LLM:     client,
		Prompts: prompts,
		Log:     log,
	}
}

// ExtractClaims asks the oracle for claims in one chunk of text. A reply
// that fails to parse gets exactly one corrective retry that replays the
// bad reply so the model can see what it produced; a reply that still does
// not parse degrades to zero claims with a warning. Only transport failures
// surface as errors. Individually invalid claims are dropped; the rest of
// the batch survives.
func (e *Extractor) ExtractClaims(ctx context.Context, content string) ([]model.ExtractedClaim, error) {
	prompt := fmt.Sprintf(e.Prompts.Extraction, content)

	response, err := e.LLM.Complete(ctx, llm.UserMessage(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate claims: %w", err)
	}

	result, parseErr := common.ParseJSON[model.ExtractedClaims](response)
	if parseErr != nil {
		e.Log.Warn("claim extraction reply unparseable, retrying once",
			zap.Error(parseErr))
		messages := []llm.Message{
			{Role: llm.RoleUser, Content: prompt},
			{Role: llm.RoleAssistant, Content: response},
			{Role: llm.RoleUser, Content: e.Prompts.Corrective},
		}
		response, err = e.LLM.Complete(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("failed to generate claims on retry: %w", err)
		}
		result, parseErr = common.ParseJSON[model.ExtractedClaims](response)
		if parseErr != nil {
			e.Log.Warn("claim extraction reply unparseable after retry, dropping chunk",
				zap.Error(parseErr))
			return nil, nil
		}
	}

	valid := make([]model.ExtractedClaim, 0, len(result.Claims))
	for _, claim := range result.Claims {
		cleaned, ok := validateClaim(claim)
		if !ok {
			e.Log.Debug("dropping invalid extracted claim",
				zap.String("type", claim.Type),
				zap.String("text", claim.Text))
			continue
		}
		valid = append(valid, cleaned)
	}
	return valid, nil
}

// validateClaim normalizes one oracle claim. Claims with empty text or an
// unknown type are rejected; confidence is clamped into [0,1]. An empty
// topic list is fine, the claim just contributes no topic bookkeeping.
func validateClaim(c model.ExtractedClaim) (model.ExtractedClaim, bool) {
	c.Text = strings.TrimSpace(c.Text)
	if c.Text == "" {
		return c, false
	}

	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if !model.ValidClaimTypes[model.ClaimType(c.Type)] {
		return c, false
	}

	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}

	topics := make([]string, 0, len(c.Topics))
	for _, t := range c.Topics {
		t = strings.TrimSpace(t)
		if t != "" {
			topics = append(topics, t)
		}
	}
	c.Topics = topics
	return c, true
}
