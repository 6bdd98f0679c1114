package ingestion

import (
	"context"
	"fmt"

	"github.com/weavehub/weave/apperr"
)

// Input describes one item submitted for ingestion.
type Input struct {
	Kind     SourceKind
	Filename string
	Bytes    []byte
	URL      string
	Text     string
	Title    string
}

type SourceKind string

const (
	KindFile  SourceKind = "file"
	KindURL   SourceKind = "url"
	KindVideo SourceKind = "video"
	KindText  SourceKind = "text"
)

// Converter turns an Input into plain text content. Binary/URL inputs
// delegate to an external converter service; video inputs to a transcript
// provider. CanHandle lets a Registry dispatch by priority, mirroring the
// teacher's executor registry shape.
type Converter interface {
	CanHandle(in Input) bool
	Convert(ctx context.Context, in Input) (string, error)
}

// Registry dispatches an Input to the first Converter that claims it,
// highest priority first.
type Registry struct {
	converters []Converter
}

func NewRegistry(converters ...Converter) *Registry {
	return &Registry{converters: converters}
}

// Register prepends converter, giving it priority over those already
// registered.
func (r *Registry) Register(c Converter) {
	r.converters = append([]Converter{c}, r.converters...)
}

func (r *Registry) Convert(ctx context.Context, in Input) (string, error) {
	for _, c := range r.converters {
		if c.CanHandle(in) {
			return c.Convert(ctx, in)
		}
	}
	return "", apperr.NewInvalidInput("no converter registered for input kind %q", in.Kind)
}

// TextPassthrough handles raw text inputs, which need no conversion.
type TextPassthrough struct{}

func (TextPassthrough) CanHandle(in Input) bool { return in.Kind == KindText }
func (TextPassthrough) Convert(_ context.Context, in Input) (string, error) {
	return in.Text, nil
}

// ExternalConverter delegates file and URL inputs to an external document
// conversion service (e.g. an OCR/office-document converter). The
// conversion service itself is an injected collaborator, not implemented
// here.
type DocumentConverterClient interface {
	Convert(ctx context.Context, filename string, content []byte) (string, error)
	ConvertURL(ctx context.Context, url string) (string, error)
}

type ExternalConverter struct {
	client DocumentConverterClient
}

func NewExternalConverter(client DocumentConverterClient) *ExternalConverter {
	return &ExternalConverter{client: client}
}

func (e *ExternalConverter) CanHandle(in Input) bool {
	return in.Kind == KindFile || in.Kind == KindURL
}

func (e *ExternalConverter) Convert(ctx context.Context, in Input) (string, error) {
	if in.Kind == KindURL {
		text, err := e.client.ConvertURL(ctx, in.URL)
		if err != nil {
			return "", apperr.WrapUpstream(err, "converting url %s", in.URL)
		}
		return text, nil
	}
	text, err := e.client.Convert(ctx, in.Filename, in.Bytes)
	if err != nil {
		return "", apperr.WrapUpstream(err, "converting file %s", in.Filename)
	}
	return text, nil
}

// TranscriptProvider fetches a transcript for a video URL. VideoConverter
// tries a primary provider, falling back to a secondary on failure.
type TranscriptProvider interface {
	Name() string
	Transcript(ctx context.Context, videoURL string) (string, error)
}

type VideoConverter struct {
	primary  TranscriptProvider
	fallback TranscriptProvider
}

func NewVideoConverter(primary, fallback TranscriptProvider) *VideoConverter {
	return &VideoConverter{primary: primary, fallback: fallback}
}

func (v *VideoConverter) CanHandle(in Input) bool { return in.Kind == KindVideo }

func (v *VideoConverter) Convert(ctx context.Context, in Input) (string, error) {
	text, err := v.primary.Transcript(ctx, in.URL)
	if err == nil {
		return text, nil
	}
	if v.fallback == nil {
		return "", apperr.WrapUpstream(err, "primary transcript provider %s failed", v.primary.Name())
	}
	text, fbErr := v.fallback.Transcript(ctx, in.URL)
	if fbErr != nil {
		return "", apperr.WrapUpstream(fmt.Errorf("primary: %w; fallback: %v", err, fbErr), "transcript providers exhausted for %s", in.URL)
	}
	return text, nil
}
