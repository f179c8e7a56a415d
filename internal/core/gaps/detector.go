// Package gaps mines the claim corpus and topic graph for under-explored
// areas. Three passes run per detection: structural (missing edges between
// well-connected topics), density (topics with thin claim coverage), and an
// oracle pass over a topic-to-claims digest.
package gaps

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lacunalabs/lacuna/internal/config"
	"github.com/lacunalabs/lacuna/internal/core/common"
	"github.com/lacunalabs/lacuna/internal/core/graph"
	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/core/topics"
	"github.com/lacunalabs/lacuna/internal/ids"
	"github.com/lacunalabs/lacuna/internal/llm"
	"github.com/lacunalabs/lacuna/internal/store"
)

// maxGapsPerPass caps how many gaps the structural and density passes each
// contribute, keeping the downstream question workload bounded.
const maxGapsPerPass = 20

type Detector struct {
	Store   store.Store
	LLM     llm.Client
	Prompts config.Prompts
	Log     *zap.Logger
}

func NewDetector(st store.Store, client llm.Client, prompts config.Prompts, log *zap.Logger) *Detector {
	return &Detector{Store: st, LLM: client, Prompts: prompts, Log: log}
}

// Detect runs all three passes and persists the resulting gaps. The oracle
// pass is best-effort: its failure is logged and the computed passes still
// count. The caller is responsible for clearing previous analysis output
// first.
func (d *Detector) Detect(ctx context.Context) ([]*model.KnowledgeGap, error) {
	allTopics, err := d.Store.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	rels, err := d.Store.ListRelationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing relationships: %w", err)
	}

	found := d.structuralGaps(allTopics, rels)
	found = append(found, d.densityGaps(allTopics)...)

	oracleGaps, err := d.oracleGaps(ctx, allTopics)
	if err != nil {
		d.Log.Warn("oracle gap pass failed, keeping computed gaps", zap.Error(err))
	} else {
		found = append(found, oracleGaps...)
	}

	for _, gap := range found {
		if err := d.Store.PutGap(ctx, gap); err != nil {
			return nil, fmt.Errorf("storing gap: %w", err)
		}
	}
	return found, nil
}

// structuralGaps flags pairs of well-connected topics with no edge between
// them. "Well-connected" means degree strictly above the median degree;
// significance grows with the pair's combined degree relative to the graph
// size.
func (d *Detector) structuralGaps(allTopics []*model.Topic, rels []*model.TopicRelationship) []*model.KnowledgeGap {
	if len(allTopics) < 2 {
		return nil
	}

	degrees := graph.Degrees(allTopics, rels)
	sorted := make([]int, 0, len(allTopics))
	for _, t := range allTopics {
		sorted = append(sorted, degrees[t.ID])
	}
	sort.Ints(sorted)
	median := sorted[len(sorted)/2]

	var high []*model.Topic
	for _, t := range allTopics {
		if degrees[t.ID] > median {
			high = append(high, t)
		}
	}

	connected := map[[2]ids.TopicID]bool{}
	for _, r := range rels {
		src, dst := model.CanonicalPair(r.SourceID, r.TargetID)
		connected[[2]ids.TopicID{src, dst}] = true
	}

	var out []*model.KnowledgeGap
	for i := 0; i < len(high); i++ {
		for j := i + 1; j < len(high); j++ {
			a, b := high[i], high[j]
			src, dst := model.CanonicalPair(a.ID, b.ID)
			if connected[[2]ids.TopicID{src, dst}] {
				continue
			}
			combined := float64(degrees[a.ID]+degrees[b.ID]) / float64(2*len(allTopics))
			out = append(out, &model.KnowledgeGap{
				ID: ids.NewGapID(),
				Description: fmt.Sprintf(
					"%q and %q are both well-studied topics but are never discussed together.",
					a.Label, b.Label),
				TopicIDs:     []ids.TopicID{a.ID, b.ID},
				GapType:      model.GapStructural,
				Significance: 0.5 + 0.5*math.Min(1, combined),
				CreatedAt:    time.Now().UTC(),
			})
		}
	}
	return topBySignificance(out)
}

// densityGaps flags topics whose claim coverage is far below the corpus
// average. The pass is skipped entirely while the corpus is too thin for
// the average to mean anything.
func (d *Detector) densityGaps(allTopics []*model.Topic) []*model.KnowledgeGap {
	if len(allTopics) == 0 {
		return nil
	}
	var total int
	for _, t := range allTopics {
		total += t.ClaimCount
	}
	avg := float64(total) / float64(len(allTopics))
	if avg < 1 {
		return nil
	}

	var out []*model.KnowledgeGap
	for _, t := range allTopics {
		if float64(t.ClaimCount) >= 0.5*avg {
			continue
		}
		out = append(out, &model.KnowledgeGap{
			ID: ids.NewGapID(),
			Description: fmt.Sprintf(
				"%q is mentioned but thinly covered (%d claims against a corpus average of %.1f).",
				t.Label, t.ClaimCount, avg),
			TopicIDs:     []ids.TopicID{t.ID},
			GapType:      model.GapDensity,
			Significance: clamp01(1 - float64(t.ClaimCount)/avg),
			CreatedAt:    time.Now().UTC(),
		})
	}
	return topBySignificance(out)
}

// oracleGaps sends one aggregate digest of the corpus to the oracle and
// validates each proposed gap. Unknown gap types fall back to structural;
// topic labels that resolve to nothing are dropped from the gap.
func (d *Detector) oracleGaps(ctx context.Context, allTopics []*model.Topic) ([]*model.KnowledgeGap, error) {
	if len(allTopics) == 0 {
		return nil, nil
	}

	digest, err := d.corpusDigest(ctx, allTopics)
	if err != nil {
		return nil, err
	}

	response, err := d.LLM.Complete(ctx, llm.UserMessage(fmt.Sprintf(d.Prompts.Gaps, digest)))
	if err != nil {
		return nil, fmt.Errorf("oracle gap call: %w", err)
	}
	proposed, err := common.ParseJSON[model.ProposedGaps](response)
	if err != nil {
		return nil, fmt.Errorf("parsing oracle gaps: %w", err)
	}

	var out []*model.KnowledgeGap
	for _, pg := range proposed.Gaps {
		description := strings.TrimSpace(pg.Description)
		if description == "" {
			continue
		}

		gapType := model.GapType(strings.ToLower(strings.TrimSpace(pg.GapType)))
		if !model.ValidGapTypes[gapType] {
			gapType = model.GapStructural
		}

		var topicIDs []ids.TopicID
		for _, label := range pg.TopicLabels {
			normalized := topics.Normalize(label)
			if normalized == "" {
				continue
			}
			topic, err := d.Store.GetTopicByNormalizedLabel(ctx, normalized)
			if err != nil {
				continue
			}
			topicIDs = append(topicIDs, topic.ID)
		}

		out = append(out, &model.KnowledgeGap{
			ID:           ids.NewGapID(),
			Description:  description,
			TopicIDs:     topicIDs,
			GapType:      gapType,
			Significance: clamp01(pg.Significance),
			CreatedAt:    time.Now().UTC(),
		})
	}
	return out, nil
}

// corpusDigest renders the full topic-to-claims map for the oracle prompt.
func (d *Detector) corpusDigest(ctx context.Context, allTopics []*model.Topic) (string, error) {
	var b strings.Builder
	for _, t := range allTopics {
		claims, err := d.Store.ListClaimsByTopic(ctx, t.ID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%s (%d claims):\n", t.Label, t.ClaimCount)
		for _, c := range claims {
			fmt.Fprintf(&b, "  - %s\n", c.Text)
		}
	}
	return b.String(), nil
}

func topBySignificance(gaps []*model.KnowledgeGap) []*model.KnowledgeGap {
	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].Significance > gaps[j].Significance
	})
	if len(gaps) > maxGapsPerPass {
		gaps = gaps[:maxGapsPerPass]
	}
	return gaps
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
