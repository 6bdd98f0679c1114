package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/weavehub/weave/collection"
)

type DuplicateOutcome string

const (
	DuplicateNone            DuplicateOutcome = ""
	DuplicateExact           DuplicateOutcome = "exact_duplicate"
	DuplicateInBatch         DuplicateOutcome = "duplicate_in_batch"
	DuplicateOverwrite       DuplicateOutcome = "overwrite"
	DuplicateCanonicalURL    DuplicateOutcome = "duplicate_url"
)

// contentHash computes the SHA-256 of canonicalized content bytes.
func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Deduplicator applies per-collection duplicate detection ahead of
// conversion, tracking content hashes seen earlier in the same batch.
type Deduplicator struct {
	store    *collection.Store
	seenHash map[string]bool
}

func NewDeduplicator(store *collection.Store) *Deduplicator {
	return &Deduplicator{store: store, seenHash: make(map[string]bool)}
}

// CheckFile applies the file duplicate-detection rules: skip on exact
// content-hash match, duplicate_in_batch on a repeat within this batch,
// overwrite when an existing document shares the filename but not the hash.
func (d *Deduplicator) CheckFile(ctx context.Context, collectionID string, content []byte, filename string) (DuplicateOutcome, *collection.Document, error) {
	hash := contentHash(content)

	if d.seenHash[hash] {
		return DuplicateInBatch, nil, nil
	}

	existing, err := d.store.FindDocumentByContentHash(ctx, collectionID, hash)
	if err != nil {
		return DuplicateNone, nil, err
	}
	if existing != nil {
		d.seenHash[hash] = true
		return DuplicateExact, existing, nil
	}

	if filename != "" {
		byName, err := d.store.FindDocumentByFilename(ctx, collectionID, filename)
		if err != nil {
			return DuplicateNone, nil, err
		}
		if byName != nil {
			d.seenHash[hash] = true
			return DuplicateOverwrite, byName, nil
		}
	}

	d.seenHash[hash] = true
	return DuplicateNone, nil, nil
}

// CheckURL applies the URL duplicate-detection rule: skip if a document with
// the same canonical URL already exists in the collection.
func (d *Deduplicator) CheckURL(ctx context.Context, collectionID, canonicalURL string) (DuplicateOutcome, *collection.Document, error) {
	existing, err := d.store.FindDocumentByFilename(ctx, collectionID, canonicalURL)
	if err != nil {
		return DuplicateNone, nil, err
	}
	if existing != nil {
		return DuplicateCanonicalURL, existing, nil
	}
	return DuplicateNone, nil, nil
}

// CheckText applies the text duplicate-detection rule: skip on content-hash
// match only, titles are advisory and do not participate.
func (d *Deduplicator) CheckText(ctx context.Context, collectionID string, content []byte) (DuplicateOutcome, *collection.Document, error) {
	hash := contentHash(content)
	if d.seenHash[hash] {
		return DuplicateInBatch, nil, nil
	}
	existing, err := d.store.FindDocumentByContentHash(ctx, collectionID, hash)
	if err != nil {
		return DuplicateNone, nil, err
	}
	d.seenHash[hash] = true
	if existing != nil {
		return DuplicateExact, existing, nil
	}
	return DuplicateNone, nil, nil
}
