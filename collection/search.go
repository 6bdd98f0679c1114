package collection

import (
	"context"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/weavehub/weave/apperr"
)

// VectorIndex is the external collaborator that holds chunk embeddings and
// answers nearest-neighbor queries. The vector store itself is out of scope
// for this service; callers inject a concrete implementation (e.g. a
// standalone vector database client) at wiring time.
type VectorIndex interface {
	// Query returns up to k chunk ids ranked by similarity to queryText,
	// restricted to collectionIDs, along with a raw similarity score per hit.
	Query(ctx context.Context, collectionIDs []string, queryText string, k int) ([]VectorHit, error)
}

type VectorHit struct {
	ChunkID string
	Score   float64
}

type SearchMode string

const (
	SearchSemantic SearchMode = "semantic"
	SearchKeyword  SearchMode = "keyword"
	SearchHybrid   SearchMode = "hybrid"
)

type SearchOptions struct {
	Mode               SearchMode
	CollectionIDs      []string
	Query              string   // semantic search text
	Keywords           []string // keyword/hybrid search terms
	K                  int
	HybridWeight       float64 // weight given to the semantic score in hybrid mode, in [0,1]
	PreferFullDocument bool
	MaxCharacters      int
}

type SearchHit struct {
	ChunkID      string
	DocumentID   string
	CollectionID string
	Content      string
	Score        float64
	Matched      bool // true for the chunk that actually matched; false for context-expansion neighbors
}

type DocumentResult struct {
	DocumentID string
	Chunks     []SearchHit
	TopScore   float64
}

type Searcher struct {
	db     *gorm.DB
	store  *Store
	vector VectorIndex
}

func NewSearcher(db *gorm.DB, store *Store, vector VectorIndex) *Searcher {
	return &Searcher{db: db, store: store, vector: vector}
}

func (s *Searcher) Search(ctx context.Context, opts SearchOptions) ([]DocumentResult, error) {
	if opts.K <= 0 {
		opts.K = 10
	}
	if opts.HybridWeight == 0 {
		opts.HybridWeight = 0.5
	}

	var hits []SearchHit
	var err error
	switch opts.Mode {
	case SearchSemantic:
		hits, err = s.semanticSearch(ctx, opts.CollectionIDs, opts.Query, opts.K)
	case SearchKeyword:
		hits, err = s.keywordSearch(ctx, opts.CollectionIDs, opts.Keywords, opts.K)
	case SearchHybrid:
		hits, err = s.hybridSearch(ctx, opts.CollectionIDs, opts.Query, opts.Keywords, opts.K, opts.HybridWeight)
	default:
		return nil, apperr.NewInvalidInput("unknown search mode %q", opts.Mode)
	}
	if err != nil {
		return nil, err
	}

	if opts.MaxCharacters > 0 {
		hits, err = s.expandContext(ctx, hits, opts.PreferFullDocument, opts.MaxCharacters)
		if err != nil {
			return nil, err
		}
	}

	return groupByDocument(hits), nil
}

func (s *Searcher) semanticSearch(ctx context.Context, collectionIDs []string, query string, k int) ([]SearchHit, error) {
	if s.vector == nil {
		return nil, apperr.NewInvalidInput("semantic search requires a configured vector index")
	}
	vhits, err := s.vector.Query(ctx, collectionIDs, query, k)
	if err != nil {
		return nil, apperr.WrapUpstream(err, "querying vector index")
	}
	if len(vhits) == 0 {
		return nil, nil
	}

	chunks, err := s.loadChunks(ctx, chunkIDs(vhits))
	if err != nil {
		return nil, err
	}
	scoreByID := make(map[string]float64, len(vhits))
	for _, h := range vhits {
		scoreByID[h.ChunkID] = h.Score
	}

	hits := make([]SearchHit, 0, len(chunks))
	for _, c := range chunks {
		hits = append(hits, SearchHit{
			ChunkID:      c.ID,
			DocumentID:   derefString(c.DocumentID),
			CollectionID: c.CollectionID,
			Content:      c.Content,
			Score:        scoreByID[c.ID],
			Matched:      true,
		})
	}
	return hits, nil
}

type keywordRow struct {
	ID           string
	DocumentID   *string
	CollectionID string
	Content      string
	Rank         float64
}

// buildTSQuery turns a list of keywords into a Postgres tsquery expression:
// multi-word entries are phrase-quoted, single tokens get prefix matching,
// and every entry is combined with OR.
func buildTSQuery(keywords []string) string {
	parts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		escaped := strings.ReplaceAll(kw, "'", "''")
		if strings.Contains(kw, " ") {
			parts = append(parts, "'"+escaped+"'")
		} else {
			parts = append(parts, "'"+escaped+"':*")
		}
	}
	return strings.Join(parts, " | ")
}

func (s *Searcher) keywordSearch(ctx context.Context, collectionIDs []string, keywords []string, k int) ([]SearchHit, error) {
	tsquery := buildTSQuery(keywords)
	if tsquery == "" {
		return nil, nil
	}

	var rows []keywordRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT id, document_id, collection_id, content,
		       ts_rank(content_tsv, to_tsquery('english', ?)) AS rank
		FROM chunks
		WHERE collection_id IN ? AND content_tsv @@ to_tsquery('english', ?)
		ORDER BY rank DESC
		LIMIT ?
	`, tsquery, collectionIDs, tsquery, k).Scan(&rows).Error
	if err != nil {
		return nil, apperr.WrapInternal(err, "keyword search")
	}

	hits := make([]SearchHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, SearchHit{
			ChunkID:      r.ID,
			DocumentID:   derefString(r.DocumentID),
			CollectionID: r.CollectionID,
			Content:      r.Content,
			Score:        r.Rank,
			Matched:      true,
		})
	}
	return hits, nil
}

// hybridSearch executes both semantic and keyword search with k' = min(2k,
// 50), min-max normalizes each score set independently, combines as s =
// w*sem + (1-w)*kw, and dedups by chunk id: a chunk found by both legs gets
// the sum of its two weighted scores.
func (s *Searcher) hybridSearch(ctx context.Context, collectionIDs []string, query string, keywords []string, k int, weight float64) ([]SearchHit, error) {
	kPrime := 2 * k
	if kPrime > 50 {
		kPrime = 50
	}

	semHits, err := s.semanticSearch(ctx, collectionIDs, query, kPrime)
	if err != nil {
		return nil, err
	}
	kwHits, err := s.keywordSearch(ctx, collectionIDs, keywords, kPrime)
	if err != nil {
		return nil, err
	}

	normalize(semHits)
	normalize(kwHits)

	combined := make(map[string]*SearchHit, len(semHits)+len(kwHits))
	for i := range semHits {
		h := semHits[i]
		h.Score = weight * h.Score
		combined[h.ChunkID] = &h
	}
	for i := range kwHits {
		h := kwHits[i]
		kwScore := (1 - weight) * h.Score
		if existing, ok := combined[h.ChunkID]; ok {
			existing.Score += kwScore
		} else {
			h.Score = kwScore
			combined[h.ChunkID] = &h
		}
	}

	out := make([]SearchHit, 0, len(combined))
	for _, h := range combined {
		out = append(out, *h)
	}
	sortHitsByScoreThenChunkID(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// sortHitsByScoreThenChunkID orders hits by descending score, breaking ties
// on chunk id so the result is deterministic regardless of the randomized
// map iteration order hybridSearch builds hits from (and regardless of
// normalize's spread==0 branch producing an all-equal-score side).
func sortHitsByScoreThenChunkID(hits []SearchHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}

// normalize applies min-max normalization to hits' scores in place.
func normalize(hits []SearchHit) {
	if len(hits) == 0 {
		return
	}
	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}
	spread := max - min
	for i := range hits {
		if spread == 0 {
			hits[i].Score = 1
			continue
		}
		hits[i].Score = (hits[i].Score - min) / spread
	}
}

// expandContext applies post-processing: when preferFullDocument is set and
// a matched document fits within maxCharacters, its full content replaces
// the single chunk; otherwise it walks sibling chunks outward from the
// match until maxCharacters is reached.
func (s *Searcher) expandContext(ctx context.Context, hits []SearchHit, preferFullDocument bool, maxCharacters int) ([]SearchHit, error) {
	out := make([]SearchHit, 0, len(hits))
	seenDoc := make(map[string]bool)

	for _, h := range hits {
		if h.DocumentID == "" || seenDoc[h.DocumentID+h.ChunkID] {
			out = append(out, h)
			continue
		}

		if preferFullDocument {
			doc, err := s.store.GetDocument(ctx, h.DocumentID)
			if err == nil && len(doc.Content) <= maxCharacters {
				out = append(out, SearchHit{
					ChunkID:      h.ChunkID,
					DocumentID:   h.DocumentID,
					CollectionID: h.CollectionID,
					Content:      doc.Content,
					Score:        h.Score,
					Matched:      true,
				})
				continue
			}
		}

		siblings, err := s.store.SiblingChunks(ctx, h.DocumentID)
		if err != nil {
			return nil, err
		}
		expanded := expandAroundMatch(h, siblings, maxCharacters)
		out = append(out, expanded...)
	}
	return out, nil
}

// expandAroundMatch walks outward from the matched chunk within siblings,
// keeping the running combined length under maxCharacters.
func expandAroundMatch(match SearchHit, siblings []Chunk, maxCharacters int) []SearchHit {
	idx := -1
	for i, c := range siblings {
		if c.ID == match.ChunkID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return []SearchHit{match}
	}

	total := len(match.Content)
	result := []SearchHit{match}
	lo, hi := idx-1, idx+1
	for lo >= 0 || hi < len(siblings) {
		if lo >= 0 {
			c := siblings[lo]
			if total+len(c.Content) > maxCharacters {
				break
			}
			total += len(c.Content)
			result = append([]SearchHit{{
				ChunkID: c.ID, DocumentID: derefString(c.DocumentID), CollectionID: c.CollectionID,
				Content: c.Content, Matched: false,
			}}, result...)
			lo--
		}
		if hi < len(siblings) {
			c := siblings[hi]
			if total+len(c.Content) > maxCharacters {
				break
			}
			total += len(c.Content)
			result = append(result, SearchHit{
				ChunkID: c.ID, DocumentID: derefString(c.DocumentID), CollectionID: c.CollectionID,
				Content: c.Content, Matched: false,
			})
			hi++
		}
	}
	return result
}

func groupByDocument(hits []SearchHit) []DocumentResult {
	byDoc := make(map[string]*DocumentResult)
	order := make([]string, 0)
	for _, h := range hits {
		r, ok := byDoc[h.DocumentID]
		if !ok {
			r = &DocumentResult{DocumentID: h.DocumentID}
			byDoc[h.DocumentID] = r
			order = append(order, h.DocumentID)
		}
		r.Chunks = append(r.Chunks, h)
		if h.Score > r.TopScore {
			r.TopScore = h.Score
		}
	}

	results := make([]DocumentResult, 0, len(order))
	for _, id := range order {
		results = append(results, *byDoc[id])
	}
	sort.Slice(results, func(i, j int) bool { return results[i].TopScore > results[j].TopScore })
	return results
}

// RenderMarkdown formats search results as markdown grouped by document,
// flagging the chunks that actually matched, for LLM-facing consumers.
func RenderMarkdown(results []DocumentResult) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString("## Document ")
		b.WriteString(r.DocumentID)
		b.WriteString("\n\n")
		for _, c := range r.Chunks {
			if c.Matched {
				b.WriteString("**[matched]**\n")
			}
			b.WriteString(c.Content)
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func (s *Searcher) loadChunks(ctx context.Context, ids []string) ([]Chunk, error) {
	var chunks []Chunk
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&chunks).Error; err != nil {
		return nil, apperr.WrapInternal(err, "loading chunks")
	}
	return chunks, nil
}

func chunkIDs(hits []VectorHit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	return ids
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
