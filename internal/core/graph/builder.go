// Package graph derives the weighted topic co-occurrence graph from stored
// claims and computes normalized research density per topic.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/ids"
	"github.com/lacunalabs/lacuna/internal/store"
)

// CalculateDensity min-max normalizes claim counts into [0,1]. When every
// topic has the same claim count (including a single topic) each maps to
// 1.0; an empty input yields an empty map.
func CalculateDensity(topics []*model.Topic) map[ids.TopicID]float64 {
	out := make(map[ids.TopicID]float64, len(topics))
	if len(topics) == 0 {
		return out
	}

	min, max := topics[0].ClaimCount, topics[0].ClaimCount
	for _, t := range topics[1:] {
		if t.ClaimCount < min {
			min = t.ClaimCount
		}
		if t.ClaimCount > max {
			max = t.ClaimCount
		}
	}

	if max == min {
		for _, t := range topics {
			out[t.ID] = 1.0
		}
		return out
	}
	for _, t := range topics {
		out[t.ID] = float64(t.ClaimCount-min) / float64(max-min)
	}
	return out
}

type pairKey struct {
	source ids.TopicID
	target ids.TopicID
}

// BuildRelationships accumulates co-occurrence weight for one document's
// claims and upserts the resulting edges. Two topics inside the same claim
// add weight 1; topics in different claims of the same document add weight 1
// per (claim, claim, topic, topic) combination. The cross-claim rule
// deliberately double-counts topics that appear in many claims, rewarding
// topics that pervade the document; see DESIGN.md before changing it.
func BuildRelationships(ctx context.Context, st store.Store, documentID ids.DocumentID) error {
	claims, err := st.ListClaimsByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("listing claims: %w", err)
	}

	weights := make(map[pairKey]float64)
	add := func(a, b ids.TopicID) {
		if a == b {
			return
		}
		src, dst := model.CanonicalPair(a, b)
		weights[pairKey{src, dst}]++
	}

	for _, claim := range claims {
		for i := 0; i < len(claim.TopicIDs); i++ {
			for j := i + 1; j < len(claim.TopicIDs); j++ {
				add(claim.TopicIDs[i], claim.TopicIDs[j])
			}
		}
	}

	for i := 0; i < len(claims); i++ {
		for j := i + 1; j < len(claims); j++ {
			for _, a := range claims[i].TopicIDs {
				for _, b := range claims[j].TopicIDs {
					add(a, b)
				}
			}
		}
	}

	for key, weight := range weights {
		existing, err := st.GetRelationship(ctx, key.source, key.target, model.RelationshipRelated)
		switch {
		case err == nil:
			existing.Weight += weight
			if err := st.PutRelationship(ctx, existing); err != nil {
				return fmt.Errorf("updating relationship: %w", err)
			}
		case errors.Is(err, store.ErrNotFound):
			rel := &model.TopicRelationship{
				ID:       ids.NewRelationshipID(),
				SourceID: key.source,
				TargetID: key.target,
				Kind:     model.RelationshipRelated,
				Weight:   weight,
			}
			if err := st.PutRelationship(ctx, rel); err != nil {
				return fmt.Errorf("creating relationship: %w", err)
			}
		default:
			return fmt.Errorf("looking up relationship: %w", err)
		}
	}
	return nil
}

// Degrees counts, per topic, how many relationships touch it at either end.
func Degrees(topics []*model.Topic, rels []*model.TopicRelationship) map[ids.TopicID]int {
	out := make(map[ids.TopicID]int, len(topics))
	for _, t := range topics {
		out[t.ID] = 0
	}
	for _, r := range rels {
		if _, ok := out[r.SourceID]; ok {
			out[r.SourceID]++
		}
		if _, ok := out[r.TargetID]; ok {
			out[r.TargetID]++
		}
	}
	return out
}
