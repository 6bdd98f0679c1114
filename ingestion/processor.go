package ingestion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/weavehub/weave/apperr"
	"github.com/weavehub/weave/auth"
	"github.com/weavehub/weave/jobqueue"
)

// jobInput is the wire shape of one entry in a job's input_data array.
// Binary content travels base64-encoded since input_data is a plain JSON
// string column, not a multipart body.
type jobInput struct {
	Kind     SourceKind `json:"kind"`
	Filename string     `json:"filename,omitempty"`
	Content  string     `json:"content,omitempty"`
	URL      string     `json:"url,omitempty"`
	Text     string     `json:"text,omitempty"`
	Title    string     `json:"title,omitempty"`
}

type jobOptions struct {
	Strategy ChunkStrategy `json:"strategy"`
	Size     SizeClass     `json:"size"`
}

type jobResult struct {
	DocumentsProcessed int          `json:"documents_processed"`
	ChunksCreated      int          `json:"chunks_created"`
	SkippedFiles       []FileOutcome `json:"skipped_files,omitempty"`
	Overwritten        []FileOutcome `json:"overwritten,omitempty"`
	FilesProcessed     []FileOutcome `json:"files_processed,omitempty"`
	Failed             []FileOutcome `json:"failed,omitempty"`
}

// JobProcessor adapts Pipeline.Run to jobqueue.Processor so the worker pool
// can drive ingestion jobs without jobqueue knowing anything about
// documents, chunks, or converters.
type JobProcessor struct {
	pipeline *Pipeline
}

func NewJobProcessor(pipeline *Pipeline) *JobProcessor {
	return &JobProcessor{pipeline: pipeline}
}

var _ jobqueue.Processor = (*JobProcessor)(nil)

func (p *JobProcessor) Process(ctx context.Context, job *jobqueue.Job, report func(percent int, step string)) (string, int, int, error) {
	var rawInputs []jobInput
	if err := json.Unmarshal([]byte(job.InputData), &rawInputs); err != nil {
		return "", 0, 0, apperr.NewInvalidInput("decoding job input_data: %v", err)
	}

	var opts jobOptions
	if job.ProcessingOptions != "" {
		if err := json.Unmarshal([]byte(job.ProcessingOptions), &opts); err != nil {
			return "", 0, 0, apperr.NewInvalidInput("decoding job processing_options: %v", err)
		}
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyRecursive
	}
	if opts.Size == "" {
		opts.Size = SizeMedium
	}

	inputs := make([]Input, 0, len(rawInputs))
	for _, raw := range rawInputs {
		in := Input{Kind: raw.Kind, Filename: raw.Filename, URL: raw.URL, Text: raw.Text, Title: raw.Title}
		if raw.Content != "" {
			decoded, err := base64.StdEncoding.DecodeString(raw.Content)
			if err != nil {
				return "", 0, 0, apperr.NewInvalidInput("decoding content for %s: %v", raw.Filename, err)
			}
			in.Bytes = decoded
		}
		inputs = append(inputs, in)
	}

	actor := auth.Actor{Type: auth.ActorUser, Identity: job.UserID}
	runOpts := RunOptions{CollectionID: job.CollectionID, Strategy: opts.Strategy, Size: opts.Size}

	result, err := p.pipeline.Run(ctx, actor, inputs, runOpts, func(step string, percent int) {
		if report != nil {
			report(percent, step)
		}
	})
	if result == nil {
		return "", 0, 0, err
	}

	resultJSON, marshalErr := json.Marshal(jobResult{
		DocumentsProcessed: result.DocumentsProcessed,
		ChunksCreated:      result.ChunksCreated,
		SkippedFiles:       result.SkippedFiles,
		Overwritten:        result.Overwritten,
		FilesProcessed:     result.FilesToProcess,
		Failed:             result.Failed,
	})
	if marshalErr != nil {
		return "", result.DocumentsProcessed, result.ChunksCreated, fmt.Errorf("encoding job result_data: %w", marshalErr)
	}
	return string(resultJSON), result.DocumentsProcessed, result.ChunksCreated, err
}
