// Package contradiction pairs up comparable claims and asks the oracle to
// adjudicate each pair. Candidate generation is cheap set intersection; the
// expensive oracle verification runs sequentially so a detection sweep never
// bursts the provider.
package contradiction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lacunalabs/lacuna/internal/config"
	"github.com/lacunalabs/lacuna/internal/core/common"
	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/ids"
	"github.com/lacunalabs/lacuna/internal/llm"
	"github.com/lacunalabs/lacuna/internal/store"
)

// minConfidence is the verification confidence below which an oracle-flagged
// contradiction is discarded as noise.
const minConfidence = 0.6

type Candidate struct {
	A *model.Claim
	B *model.Claim
}

type Detector struct {
	Store   store.Store
	LLM     llm.Client
	Prompts config.Prompts
	Log     *zap.Logger
}

func NewDetector(st store.Store, client llm.Client, prompts config.Prompts, log *zap.Logger) *Detector {
	return &Detector{Store: st, LLM: client, Prompts: prompts, Log: log}
}

// GenerateCandidates returns every unordered claim pair worth checking: same
// claim type and at least one shared topic. Pairs are deduplicated so (a,b)
// and (b,a) never both appear.
func GenerateCandidates(claims []*model.Claim) []Candidate {
	var out []Candidate
	seen := map[[2]ids.ClaimID]bool{}

	for i := 0; i < len(claims); i++ {
		for j := i + 1; j < len(claims); j++ {
			a, b := claims[i], claims[j]
			if a.Type != b.Type {
				continue
			}
			if !sharesTopic(a, b) {
				continue
			}
			key := [2]ids.ClaimID{a.ID, b.ID}
			if string(b.ID) < string(a.ID) {
				key = [2]ids.ClaimID{b.ID, a.ID}
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Candidate{A: a, B: b})
		}
	}
	return out
}

func sharesTopic(a, b *model.Claim) bool {
	for _, t := range a.TopicIDs {
		if b.HasTopic(t) {
			return true
		}
	}
	return false
}

// Detect generates candidates over the whole corpus, verifies each pair with
// the oracle, and atomically replaces the stored contradiction set with the
// confirmed ones. A failed verification is treated as "no contradiction".
func (d *Detector) Detect(ctx context.Context) ([]*model.Contradiction, error) {
	claims, err := d.Store.ListClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}

	candidates := GenerateCandidates(claims)
	d.Log.Info("verifying contradiction candidates", zap.Int("count", len(candidates)))

	var confirmed []*model.Contradiction
	for _, cand := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result, err := d.verify(ctx, cand)
		if err != nil {
			d.Log.Warn("contradiction verification failed, skipping pair",
				zap.String("claim_a", string(cand.A.ID)),
				zap.String("claim_b", string(cand.B.ID)),
				zap.Error(err))
			continue
		}
		if !result.IsContradiction || result.Confidence <= minConfidence {
			continue
		}
		confirmed = append(confirmed, &model.Contradiction{
			ID:          ids.NewContradictionID(),
			ClaimAID:    cand.A.ID,
			ClaimBID:    cand.B.ID,
			Description: result.Description,
			Severity:    severityFrom(result.Severity),
			Confidence:  result.Confidence,
			Status:      model.ContradictionPending,
			CreatedAt:   time.Now().UTC(),
		})
	}

	if err := d.Store.ReplaceContradictions(ctx, confirmed); err != nil {
		return nil, fmt.Errorf("storing contradictions: %w", err)
	}
	return confirmed, nil
}

func (d *Detector) verify(ctx context.Context, cand Candidate) (model.VerificationResult, error) {
	prompt := fmt.Sprintf(d.Prompts.Contradiction, cand.A.Text, cand.B.Text)
	response, err := d.LLM.Complete(ctx, llm.UserMessage(prompt))
	if err != nil {
		return model.VerificationResult{}, err
	}
	return common.ParseJSON[model.VerificationResult](response)
}

func severityFrom(s string) model.Severity {
	switch model.Severity(strings.ToLower(strings.TrimSpace(s))) {
	case model.SeverityLow:
		return model.SeverityLow
	case model.SeverityHigh:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}
