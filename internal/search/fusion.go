package search

import "math"

// normalize min-max scales scores to [0, 1], guarding against a zero
// range (every candidate scoring identically collapses to 1.0 rather than
// dividing by zero).
func normalize(scores map[string]float64) map[string]float64 {
	if len(scores) == 0 {
		return scores
	}

	min, max := math.Inf(1), math.Inf(-1)
	for _, s := range scores {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	out := make(map[string]float64, len(scores))
	spread := max - min
	for id, s := range scores {
		if spread == 0 {
			out[id] = 1
			continue
		}
		out[id] = (s - min) / spread
	}
	return out
}

// candidate is one file_id's normalized semantic/lexical scores ahead of
// fusion; a candidate present in only one source carries a zero for the
// other.
type candidate struct {
	fileID   string
	semantic float64
	lexical  float64
	inVector bool
	inLexical bool
}

// fuse computes the base weighted score per candidate. Authority weighting
// is applied by the caller, which is the only place that knows each
// candidate's partition authority.
func fuse(candidates map[string]*candidate, weights Weights) map[string]float64 {
	base := make(map[string]float64, len(candidates))
	for id, c := range candidates {
		base[id] = weights.Semantic*c.semantic + weights.Lexical*c.lexical
	}
	return base
}

// applyAuthority combines a base score with a partition's authority_score
// per the engine's configured fusion mode.
func applyAuthority(base, authority float64, mode FusionMode) float64 {
	switch mode {
	case FusionAdditiveLog:
		return base + math.Log1p(authority)
	default:
		return base * authority
	}
}
