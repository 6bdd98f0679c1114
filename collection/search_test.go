package collection

import "testing"

func TestNormalize(t *testing.T) {
	hits := []SearchHit{{Score: 1}, {Score: 3}, {Score: 5}}
	normalize(hits)
	if hits[0].Score != 0 || hits[2].Score != 1 {
		t.Fatalf("expected min-max normalized bounds 0..1, got %v", hits)
	}
	if hits[1].Score != 0.5 {
		t.Fatalf("expected midpoint 0.5, got %v", hits[1].Score)
	}
}

func TestNormalizeConstantScores(t *testing.T) {
	hits := []SearchHit{{Score: 2}, {Score: 2}}
	normalize(hits)
	for _, h := range hits {
		if h.Score != 1 {
			t.Fatalf("expected constant scores to normalize to 1, got %v", h.Score)
		}
	}
}

func TestGroupByDocument(t *testing.T) {
	hits := []SearchHit{
		{ChunkID: "c1", DocumentID: "d1", Score: 0.3},
		{ChunkID: "c2", DocumentID: "d2", Score: 0.9},
		{ChunkID: "c3", DocumentID: "d1", Score: 0.6},
	}
	results := groupByDocument(hits)
	if len(results) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(results))
	}
	if results[0].DocumentID != "d2" {
		t.Fatalf("expected d2 (highest top score) first, got %s", results[0].DocumentID)
	}
	if len(results[1].Chunks) != 2 {
		t.Fatalf("expected d1 to have 2 chunks, got %d", len(results[1].Chunks))
	}
}

func TestBuildTSQueryPhraseAndPrefixOred(t *testing.T) {
	got := buildTSQuery([]string{"hello world", "cat"})
	want := "'hello world' | 'cat':*"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestBuildTSQueryEscapesQuotes(t *testing.T) {
	got := buildTSQuery([]string{"o'brien"})
	want := "'o''brien':*"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestBuildTSQuerySkipsBlankEntries(t *testing.T) {
	got := buildTSQuery([]string{"", "  ", "term"})
	want := "'term':*"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestHybridSearchTiesBreakByChunkID(t *testing.T) {
	combined := map[string]*SearchHit{
		"c2": {ChunkID: "c2", Score: 0.5},
		"c1": {ChunkID: "c1", Score: 0.5},
		"c3": {ChunkID: "c3", Score: 0.9},
	}
	out := make([]SearchHit, 0, len(combined))
	for _, h := range combined {
		out = append(out, *h)
	}
	sortHitsByScoreThenChunkID(out)
	if out[0].ChunkID != "c3" || out[1].ChunkID != "c1" || out[2].ChunkID != "c2" {
		t.Fatalf("expected c3, c1, c2 (ties broken by chunk id), got %v", out)
	}
}

func TestExpandAroundMatch(t *testing.T) {
	siblings := []Chunk{
		{ID: "c0", Content: "aaaaa"},
		{ID: "c1", Content: "bbbbb"},
		{ID: "c2", Content: "ccccc"},
	}
	match := SearchHit{ChunkID: "c1", Content: "bbbbb", Matched: true}

	expanded := expandAroundMatch(match, siblings, 100)
	if len(expanded) != 3 {
		t.Fatalf("expected all 3 siblings within budget, got %d", len(expanded))
	}

	tight := expandAroundMatch(match, siblings, 5)
	if len(tight) != 1 {
		t.Fatalf("expected only the matched chunk within a tight budget, got %d", len(tight))
	}
	if !tight[0].Matched {
		t.Fatalf("expected the sole remaining hit to be the match")
	}
}
