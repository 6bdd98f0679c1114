package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dustin/go-humanize"

	"github.com/weavehub/weave/apperr"
	"github.com/weavehub/weave/common"
)

// ObjectFetcher downloads a batch input's bytes from object storage ahead
// of conversion.
type ObjectFetcher struct {
	client     *s3.Client
	downloader *manager.Downloader
	logger     *common.ContextLogger
}

func NewObjectFetcher(client *s3.Client, logger *common.ContextLogger) *ObjectFetcher {
	return &ObjectFetcher{
		client:     client,
		downloader: manager.NewDownloader(client),
		logger:     logger,
	}
}

// Fetch downloads bucket/key into memory, logging the transferred size.
func (f *ObjectFetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	n, err := f.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, apperr.NewNotFound("object %s not found in bucket %s", key, bucket)
		}
		return nil, apperr.WrapUpstream(err, "fetching object %s/%s", bucket, key)
	}

	if f.logger != nil {
		f.logger.WithField("bytes", humanize.Bytes(uint64(n))).WithField("key", key).Debug("fetched object from storage")
	}
	return buf.Bytes(), nil
}

// FetchReader streams bucket/key without buffering into memory, used for
// large files where the converter accepts a reader.
func (f *ObjectFetcher) FetchReader(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, apperr.NewNotFound("object %s not found in bucket %s", key, bucket)
		}
		return nil, apperr.WrapUpstream(err, "fetching object %s/%s", bucket, key)
	}
	return out.Body, nil
}

// drain reads r fully into a buffer; used by converters that need the whole
// payload before dispatching (e.g. computing a content hash).
func drain(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("draining reader: %w", err)
	}
	return buf.Bytes(), nil
}
