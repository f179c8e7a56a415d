// Package questions turns detected knowledge gaps into scored research
// questions. Gaps are processed by a small worker pool and each gap's
// questions are persisted as soon as they are scored, so a failure late in
// the run keeps everything generated before it.
package questions

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lacunalabs/lacuna/internal/config"
	"github.com/lacunalabs/lacuna/internal/core/common"
	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/ids"
	"github.com/lacunalabs/lacuna/internal/llm"
	"github.com/lacunalabs/lacuna/internal/store"
)

type Generator struct {
	Store   store.Store
	LLM     llm.Client
	Prompts config.Prompts
	Log     *zap.Logger
	Workers int
}

func NewGenerator(st store.Store, client llm.Client, prompts config.Prompts, log *zap.Logger, workers int) *Generator {
	return &Generator{Store: st, LLM: client, Prompts: prompts, Log: log, Workers: workers}
}

// Generate produces questions for every given gap. A gap whose oracle call
// or parse fails simply yields no questions.
func (g *Generator) Generate(ctx context.Context, gaps []*model.KnowledgeGap) ([]*model.ResearchQuestion, error) {
	var (
		mu  sync.Mutex
		all []*model.ResearchQuestion
	)

	common.RunIndexed(ctx, len(gaps), g.Workers, func(ctx context.Context, i int) {
		gap := gaps[i]
		qs, err := g.generateForGap(ctx, gap)
		if err != nil {
			g.Log.Warn("question generation failed for gap",
				zap.String("gap_id", string(gap.ID)),
				zap.Error(err))
			return
		}
		if err := g.Store.PutQuestions(ctx, qs); err != nil {
			g.Log.Error("failed to store questions",
				zap.String("gap_id", string(gap.ID)),
				zap.Error(err))
			return
		}
		mu.Lock()
		all = append(all, qs...)
		mu.Unlock()
	})

	if ctx.Err() != nil {
		return all, ctx.Err()
	}
	return all, nil
}

func (g *Generator) generateForGap(ctx context.Context, gap *model.KnowledgeGap) ([]*model.ResearchQuestion, error) {
	claimContext, err := g.claimContext(ctx, gap)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(g.Prompts.Questions, gap.Description, claimContext)
	response, err := g.LLM.Complete(ctx, llm.UserMessage(prompt))
	if err != nil {
		return nil, fmt.Errorf("oracle question call: %w", err)
	}
	proposed, err := common.ParseJSON[model.ProposedQuestions](response)
	if err != nil {
		return nil, fmt.Errorf("parsing questions: %w", err)
	}

	out := make([]*model.ResearchQuestion, 0, len(proposed.Questions))
	for _, pq := range proposed.Questions {
		text := strings.TrimSpace(pq.Question)
		if text == "" {
			continue
		}
		impact := clampScore(pq.Impact)
		feasibility := clampScore(pq.Feasibility)
		out = append(out, &model.ResearchQuestion{
			ID:           ids.NewQuestionID(),
			GapID:        gap.ID,
			Question:     text,
			Rationale:    strings.TrimSpace(pq.Rationale),
			Impact:       impact,
			Feasibility:  feasibility,
			OverallScore: model.Score(impact, feasibility),
		})
	}
	return out, nil
}

// claimContext gathers every claim text across the gap's topics for the
// prompt. Duplicate claims referenced by several topics appear once.
func (g *Generator) claimContext(ctx context.Context, gap *model.KnowledgeGap) (string, error) {
	var b strings.Builder
	seen := map[ids.ClaimID]bool{}
	for _, topicID := range gap.TopicIDs {
		claims, err := g.Store.ListClaimsByTopic(ctx, topicID)
		if err != nil {
			return "", err
		}
		for _, c := range claims {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			fmt.Fprintf(&b, "- %s\n", c.Text)
		}
	}
	if b.Len() == 0 {
		return "(no claims on record for these topics)", nil
	}
	return b.String(), nil
}

func clampScore(v float64) float64 {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
