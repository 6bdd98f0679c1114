package ingestion

import (
	"regexp"
	"strings"

	"github.com/weavehub/weave/collection"
)

type ChunkStrategy string

const (
	StrategyMarkdownAware ChunkStrategy = "markdown_aware"
	StrategySemantic      ChunkStrategy = "semantic"
	StrategyRecursive     ChunkStrategy = "recursive"
)

type SizeClass string

const (
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
)

var sizeTargets = map[SizeClass]int{
	SizeSmall:  512,
	SizeMedium: 1024,
	SizeLarge:  2048,
}

// minTrailingFraction is the fraction of the target size below which a
// trailing chunk is considered "tiny" and merged into the previous one by
// the optimize pass.
const minTrailingFraction = 0.25

var markdownHeaderRE = regexp.MustCompile(`(?m)^#{1,6}\s+.+$`)

// Chunker splits document content into collection.ChunkInput values ready
// for collection.Upserter.UpsertDocument.
type Chunker struct{}

func NewChunker() *Chunker { return &Chunker{} }

func (c *Chunker) Chunk(content string, strategy ChunkStrategy, size SizeClass) []collection.ChunkInput {
	target, ok := sizeTargets[size]
	if !ok {
		target = sizeTargets[SizeMedium]
	}

	var pieces []string
	switch strategy {
	case StrategyMarkdownAware:
		pieces = markdownAwareSplit(content, target)
	case StrategySemantic:
		pieces = semanticSplit(content, target)
	default:
		pieces = recursiveSplit(content, target)
	}

	pieces = optimize(pieces, target)

	chunks := make([]collection.ChunkInput, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, collection.ChunkInput{
			Content: p,
			Meta: collection.ChunkMetadata{
				ChunkIndex: i,
				Total:      len(pieces),
				Strategy:   string(strategy),
				SizeClass:  string(size),
			},
		})
	}
	return chunks
}

// markdownAwareSplit splits on headers first, then re-splits any
// over-target block recursively.
func markdownAwareSplit(content string, target int) []string {
	locs := markdownHeaderRE.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		return recursiveSplit(content, target)
	}

	var blocks []string
	if locs[0][0] > 0 {
		blocks = append(blocks, content[:locs[0][0]])
	}
	for i, loc := range locs {
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, content[loc[0]:end])
	}

	var pieces []string
	for _, b := range blocks {
		if strings.TrimSpace(b) == "" {
			continue
		}
		if len(b) > target {
			pieces = append(pieces, recursiveSplit(b, target)...)
		} else {
			pieces = append(pieces, b)
		}
	}
	return pieces
}

// semanticSplit splits on paragraph boundaries, grouping consecutive
// paragraphs up to target size. A true embedding-similarity split needs the
// embedder; this approximates it structurally.
func semanticSplit(content string, target int) []string {
	paragraphs := strings.Split(content, "\n\n")
	var pieces []string
	var current strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p) > target {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	if len(pieces) == 0 {
		return recursiveSplit(content, target)
	}

	var out []string
	for _, p := range pieces {
		if len(p) > target*2 {
			out = append(out, recursiveSplit(p, target)...)
		} else {
			out = append(out, p)
		}
	}
	return out
}

// recursiveSplit breaks content into target-sized windows on whitespace
// boundaries, never cutting mid-word where avoidable.
func recursiveSplit(content string, target int) []string {
	if len(content) <= target {
		if strings.TrimSpace(content) == "" {
			return nil
		}
		return []string{content}
	}

	var pieces []string
	remaining := content
	for len(remaining) > target {
		cut := target
		if idx := strings.LastIndexAny(remaining[:target], " \n\t"); idx > target/2 {
			cut = idx
		}
		piece := strings.TrimSpace(remaining[:cut])
		if piece != "" {
			pieces = append(pieces, piece)
		}
		remaining = remaining[cut:]
	}
	if strings.TrimSpace(remaining) != "" {
		pieces = append(pieces, strings.TrimSpace(remaining))
	}
	return pieces
}

// optimize merges a tiny trailing chunk into the previous one, ensuring at
// least one chunk survives.
func optimize(pieces []string, target int) []string {
	if len(pieces) <= 1 {
		return pieces
	}
	last := pieces[len(pieces)-1]
	if float64(len(last)) < float64(target)*minTrailingFraction {
		merged := append([]string{}, pieces[:len(pieces)-2]...)
		merged = append(merged, pieces[len(pieces)-2]+"\n\n"+last)
		return merged
	}
	return pieces
}
