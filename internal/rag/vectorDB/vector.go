package vectorDB

import (
	"context"
	"sort"

	"github.com/akolanti/DocQA/internal/domain/commonModels"
)

type Gateway interface {
	// ClearCollection removes every row of the collection. Fails with ErrStoreUnavailable.
	ClearCollection(ctx context.Context, collection string) error
	// BulkInsert stores all chunks or none. Fails with ErrStoreWrite.
	BulkInsert(ctx context.Context, collection string, chunks []commonModels.EmbeddedChunk) error
	// SimilaritySearch returns contents scoring strictly above threshold, best first, at most limit.
	// Fails with ErrStoreQuery; an empty slice always means nothing matched.
	SimilaritySearch(ctx context.Context, collection string, queryVector []float32, threshold float32, limit int) ([]string, error)
}

type ScoredContent struct {
	Content string
	Score   float32
}

// RankAndFilter keeps hits above threshold, sorted by score descending and capped at limit.
// Every backend funnels its raw hits through here so they agree on boundaries.
func RankAndFilter(hits []ScoredContent, threshold float32, limit int) []string {
	kept := make([]ScoredContent, 0, len(hits))
	for _, h := range hits {
		if h.Score > threshold {
			kept = append(kept, h)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })

	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	out := make([]string, len(kept))
	for i, h := range kept {
		out[i] = h.Content
	}
	return out
}
