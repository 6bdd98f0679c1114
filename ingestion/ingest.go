package ingestion

import (
	"context"

	"github.com/weavehub/weave/apperr"
	"github.com/weavehub/weave/auth"
	"github.com/weavehub/weave/collection"
)

// FileOutcome records what happened to one input in a batch.
type FileOutcome struct {
	Filename   string
	DocumentID string
	Duplicate  DuplicateOutcome
	Error      string
}

// Result aggregates the outcome of processing a batch, matching the counts
// a Job's result_data reports.
type Result struct {
	DocumentsProcessed int
	ChunksCreated      int
	SkippedFiles       []FileOutcome
	Overwritten        []FileOutcome
	FilesToProcess     []FileOutcome
	Failed             []FileOutcome
}

// ProgressFunc reports incremental progress back to the job scheduler.
type ProgressFunc func(step string, percent int)

// Pipeline wires duplicate detection, conversion, chunking, and the
// collection write path into the per-batch ingestion flow.
type Pipeline struct {
	registry *Registry
	chunker  *Chunker
	upserter *collection.Upserter
}

func NewPipeline(registry *Registry, chunker *Chunker, upserter *collection.Upserter) *Pipeline {
	return &Pipeline{registry: registry, chunker: chunker, upserter: upserter}
}

type RunOptions struct {
	CollectionID string
	Strategy     ChunkStrategy
	Size         SizeClass
}

// Run processes a batch of inputs against a single collection, applying
// duplicate detection before conversion so skipped inputs never pay
// conversion cost. The batch itself fails only if no document survives;
// individual per-file failures (including conversion timeouts) are
// collected and reported instead of aborting the batch.
func (p *Pipeline) Run(ctx context.Context, actor auth.Actor, inputs []Input, opts RunOptions, progress ProgressFunc) (*Result, error) {
	dedup := NewDeduplicator(p.upserter.Store())
	result := &Result{}
	total := len(inputs)

	for i, in := range inputs {
		if progress != nil {
			progress(labelFor(in), (i*100)/max(total, 1))
		}

		outcome := FileOutcome{Filename: labelFor(in)}

		dup, existing, err := checkDuplicate(ctx, dedup, opts.CollectionID, in)
		if err != nil {
			outcome.Error = err.Error()
			result.Failed = append(result.Failed, outcome)
			continue
		}
		if dup != DuplicateNone && dup != DuplicateOverwrite {
			outcome.Duplicate = dup
			if existing != nil {
				outcome.DocumentID = existing.ID
			}
			result.SkippedFiles = append(result.SkippedFiles, outcome)
			continue
		}
		if dup == DuplicateOverwrite {
			outcome.Duplicate = dup
			result.Overwritten = append(result.Overwritten, outcome)
			// Declared-intent only: superseding the prior document is not
			// performed here, matching the source behavior this was
			// modeled on.
		}

		content, err := p.registry.Convert(ctx, in)
		if err != nil {
			outcome.Error = err.Error()
			result.Failed = append(result.Failed, outcome)
			continue
		}

		chunks := p.chunker.Chunk(content, opts.Strategy, opts.Size)
		doc, created, err := p.upserter.UpsertDocument(ctx, actor, opts.CollectionID, content, docMetadataFor(in), chunks)
		if err != nil {
			outcome.Error = err.Error()
			result.Failed = append(result.Failed, outcome)
			continue
		}

		outcome.DocumentID = doc.ID
		result.FilesToProcess = append(result.FilesToProcess, outcome)
		result.DocumentsProcessed++
		result.ChunksCreated += len(created)
	}

	if result.DocumentsProcessed == 0 && len(inputs) > 0 {
		return result, apperr.NewInvalidInput("no document survived ingestion: %d failed, %d skipped", len(result.Failed), len(result.SkippedFiles))
	}
	return result, nil
}

func checkDuplicate(ctx context.Context, dedup *Deduplicator, collectionID string, in Input) (DuplicateOutcome, *collection.Document, error) {
	switch in.Kind {
	case KindFile:
		return dedup.CheckFile(ctx, collectionID, in.Bytes, in.Filename)
	case KindURL, KindVideo:
		return dedup.CheckURL(ctx, collectionID, in.URL)
	case KindText:
		return dedup.CheckText(ctx, collectionID, []byte(in.Text))
	default:
		return DuplicateNone, nil, nil
	}
}

func docMetadataFor(in Input) collection.DocumentMetadata {
	meta := collection.DocumentMetadata{Title: in.Title}
	switch in.Kind {
	case KindFile:
		meta.SourceType = collection.SourceFile
		meta.OriginalFilename = in.Filename
		meta.ContentHash = contentHash(in.Bytes)
	case KindURL:
		meta.SourceType = collection.SourceURL
		meta.OriginalFilename = in.URL
	case KindVideo:
		meta.SourceType = collection.SourceYoutube
		meta.OriginalFilename = in.URL
	case KindText:
		meta.SourceType = collection.SourceText
		meta.ContentHash = contentHash([]byte(in.Text))
	}
	return meta
}

func labelFor(in Input) string {
	switch in.Kind {
	case KindFile:
		return in.Filename
	case KindURL, KindVideo:
		return in.URL
	default:
		return in.Title
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
