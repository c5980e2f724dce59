package vectorDB

import (
	"reflect"
	"testing"
)

func TestRankAndFilter(t *testing.T) {
	candidates := []ScoredContent{
		{Content: "c", Score: 0.76},
		{Content: "e", Score: 0.6},
		{Content: "a", Score: 0.9},
		{Content: "d", Score: 0.7},
		{Content: "b", Score: 0.8},
	}

	tests := []struct {
		name      string
		threshold float32
		limit     int
		want      []string
	}{
		{name: "threshold keeps the top three in order", threshold: 0.75, limit: 5, want: []string{"a", "b", "c"}},
		{name: "limit caps the result", threshold: 0.75, limit: 2, want: []string{"a", "b"}},
		{name: "score equal to threshold is excluded", threshold: 0.8, limit: 5, want: []string{"a"}},
		{name: "nothing above threshold", threshold: 0.95, limit: 5, want: []string{}},
		{name: "zero limit means no cap", threshold: 0, limit: 0, want: []string{"a", "b", "c", "d", "e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RankAndFilter(candidates, tt.threshold, tt.limit)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RankAndFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}
