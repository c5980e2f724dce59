package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/akolanti/DocQA/internal/domain/ragErrors"
)

func TestChunk_Boundaries(t *testing.T) {
	text := strings.Repeat("abcdefghij", 250) // 2500 characters

	chunks, err := Chunk(text, 1000, 100)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	want := [][2]int{{0, 1000}, {900, 1900}, {1800, 2500}}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i, w := range want {
		c := chunks[i]
		if c.Start != w[0] || c.End != w[1] {
			t.Errorf("chunk %d = [%d,%d), want [%d,%d)", i, c.Start, c.End, w[0], w[1])
		}
		if c.Content != text[w[0]:w[1]] {
			t.Errorf("chunk %d content does not match its range", i)
		}
		if c.TokenCount != w[1]-w[0] || c.Index != i {
			t.Errorf("chunk %d metadata = %+v", i, c)
		}
	}
}

func TestChunk_CoverageAndOverlap(t *testing.T) {
	tests := []struct {
		name      string
		length    int
		chunkSize int
		overlap   int
	}{
		{name: "no overlap", length: 95, chunkSize: 10, overlap: 0},
		{name: "small overlap", length: 1234, chunkSize: 100, overlap: 7},
		{name: "large overlap", length: 50, chunkSize: 10, overlap: 9},
		{name: "shorter than one chunk", length: 3, chunkSize: 10, overlap: 2},
		{name: "exact multiple of step", length: 90, chunkSize: 10, overlap: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			for i := 0; i < tt.length; i++ {
				b.WriteByte(byte('a' + i%26))
			}
			text := b.String()

			chunks, err := Chunk(text, tt.chunkSize, tt.overlap)
			if err != nil {
				t.Fatalf("Chunk failed: %v", err)
			}
			if chunks[0].Start != 0 {
				t.Fatalf("first chunk starts at %d", chunks[0].Start)
			}
			if chunks[len(chunks)-1].End != tt.length {
				t.Fatalf("last chunk ends at %d, want %d", chunks[len(chunks)-1].End, tt.length)
			}
			for i, c := range chunks {
				if c.End-c.Start > tt.chunkSize {
					t.Errorf("chunk %d longer than chunk size", i)
				}
				if c.Content != text[c.Start:c.End] {
					t.Errorf("chunk %d content mismatch", i)
				}
				if i == 0 {
					continue
				}
				prev := chunks[i-1]
				if c.Start > prev.End {
					t.Errorf("gap between chunk %d and %d", i-1, i)
				}
				if prev.End-prev.Start == tt.chunkSize && prev.End-c.Start != tt.overlap {
					t.Errorf("chunks %d/%d overlap by %d, want %d", i-1, i, prev.End-c.Start, tt.overlap)
				}
			}
		})
	}
}

func TestChunk_CountsRunes(t *testing.T) {
	chunks, err := Chunk("ééééé", 2, 0)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 3 || chunks[0].Content != "éé" || chunks[2].Content != "é" {
		t.Errorf("unexpected rune chunks: %+v", chunks)
	}
}

func TestChunk_EmptyText(t *testing.T) {
	chunks, err := Chunk("", 1000, 100)
	if err != nil || len(chunks) != 0 {
		t.Errorf("Chunk(\"\") = %v, %v; want no chunks", chunks, err)
	}
}

func TestChunk_DegenerateConfig(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{name: "overlap equals size", chunkSize: 100, overlap: 100},
		{name: "overlap larger than size", chunkSize: 100, overlap: 150},
		{name: "negative overlap", chunkSize: 100, overlap: -1},
		{name: "zero size", chunkSize: 0, overlap: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Chunk("some text", tt.chunkSize, tt.overlap)
			if !errors.Is(err, ragErrors.ErrDegenerateChunkingConfig) {
				t.Errorf("err = %v, want ErrDegenerateChunkingConfig", err)
			}
		})
	}
}
