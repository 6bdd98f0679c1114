package ingestion

import (
	"testing"

	"github.com/weavehub/weave/apperr"
	"github.com/weavehub/weave/jobqueue"
)

func TestJobProcessorRejectsInvalidInputData(t *testing.T) {
	p := NewJobProcessor(nil)
	job := &jobqueue.Job{InputData: `not json`}

	_, _, _, err := p.Process(t.Context(), job, nil)
	if err == nil {
		t.Fatal("expected error decoding invalid input_data")
	}
	if !apperr.Is(err, apperr.InvalidInput) {
		t.Fatalf("expected invalid-input error, got %v", err)
	}
}

func TestJobProcessorRejectsInvalidProcessingOptions(t *testing.T) {
	p := NewJobProcessor(nil)
	job := &jobqueue.Job{
		InputData:         `[{"kind":"text","text":"hello"}]`,
		ProcessingOptions: `not json`,
	}

	_, _, _, err := p.Process(t.Context(), job, nil)
	if err == nil {
		t.Fatal("expected error decoding invalid processing_options")
	}
	if !apperr.Is(err, apperr.InvalidInput) {
		t.Fatalf("expected invalid-input error, got %v", err)
	}
}

func TestJobProcessorRejectsInvalidContentEncoding(t *testing.T) {
	p := NewJobProcessor(nil)
	job := &jobqueue.Job{
		InputData: `[{"kind":"file","filename":"a.txt","content":"not-base64!!"}]`,
	}

	_, _, _, err := p.Process(t.Context(), job, nil)
	if err == nil {
		t.Fatal("expected error decoding invalid base64 content")
	}
	if !apperr.Is(err, apperr.InvalidInput) {
		t.Fatalf("expected invalid-input error, got %v", err)
	}
}
