package ingestion

import (
	"strings"
	"testing"
)

func TestRecursiveSplitRespectsTarget(t *testing.T) {
	content := strings.Repeat("word ", 400)
	pieces := recursiveSplit(content, 512)
	if len(pieces) < 2 {
		t.Fatalf("expected content longer than target to split into multiple pieces, got %d", len(pieces))
	}
	for _, p := range pieces {
		if len(p) > 512+8 {
			t.Fatalf("piece exceeds target bound: %d chars", len(p))
		}
	}
}

func TestMarkdownAwareSplitOnHeaders(t *testing.T) {
	content := "# Intro\n\nsome text\n\n## Details\n\nmore text here"
	pieces := markdownAwareSplit(content, 1024)
	if len(pieces) != 2 {
		t.Fatalf("expected 2 header-delimited blocks, got %d: %v", len(pieces), pieces)
	}
}

func TestOptimizeMergesTinyTrailingChunk(t *testing.T) {
	pieces := []string{strings.Repeat("a", 1000), "tiny"}
	merged := optimize(pieces, 1024)
	if len(merged) != 1 {
		t.Fatalf("expected tiny trailing chunk merged into previous, got %d pieces", len(merged))
	}
}

func TestOptimizeKeepsAtLeastOneChunk(t *testing.T) {
	pieces := []string{"only"}
	merged := optimize(pieces, 1024)
	if len(merged) != 1 {
		t.Fatalf("expected single chunk preserved, got %d", len(merged))
	}
}

func TestChunkerCarriesMetadata(t *testing.T) {
	c := NewChunker()
	chunks := c.Chunk(strings.Repeat("word ", 50), StrategyRecursive, SizeSmall)
	for i, ch := range chunks {
		if ch.Meta.ChunkIndex != i {
			t.Fatalf("expected chunk_index %d, got %d", i, ch.Meta.ChunkIndex)
		}
		if ch.Meta.Total != len(chunks) {
			t.Fatalf("expected total %d, got %d", len(chunks), ch.Meta.Total)
		}
		if ch.Meta.Strategy != string(StrategyRecursive) {
			t.Fatalf("expected strategy recorded, got %q", ch.Meta.Strategy)
		}
	}
}
