package domain

import (
	"bytes"
	"sort"
)

const DefaultSlotLimit = 10

// Rank orders candidates by score, then earliest start, then provider id,
// and keeps at most limit of them.
func Rank(candidates []CandidateSlot, limit int) []CandidateSlot {
	if limit <= 0 {
		limit = DefaultSlotLimit
	}

	out := make([]CandidateSlot, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return bytes.Compare(a.ProviderID[:], b.ProviderID[:]) < 0
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
