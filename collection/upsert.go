package collection

import (
	"context"
	"encoding/json"

	"github.com/weavehub/weave/apperr"
	"github.com/weavehub/weave/auth"
	"github.com/weavehub/weave/permission"
)

// Embedder computes the vector representation for a chunk's content and
// inserts it into the backing vector index, returning nothing since the
// vector itself is not held relationally.
type Embedder interface {
	Upsert(ctx context.Context, chunkID, collectionID, content string) error
}

// Upserter is the write path for documents and chunks: editor|owner only,
// grounded on the layered permission engine for authorization.
type Upserter struct {
	store    *Store
	perms    *permission.Engine
	embedder Embedder
}

func NewUpserter(store *Store, perms *permission.Engine, embedder Embedder) *Upserter {
	if embedder == nil {
		embedder = NoopEmbedder{}
	}
	return &Upserter{store: store, perms: perms, embedder: embedder}
}

// NoopEmbedder discards chunk content instead of indexing it, for running
// without a vector database configured; search then falls back to keyword
// mode only.
type NoopEmbedder struct{}

func (NoopEmbedder) Upsert(ctx context.Context, chunkID, collectionID, content string) error {
	return nil
}

// Store exposes the backing store for callers (e.g. the ingestion pipeline)
// that need read-only access alongside the write path.
func (u *Upserter) Store() *Store { return u.store }

type ChunkInput struct {
	Content string
	Meta    ChunkMetadata
}

// UpsertDocument requires editor|owner on the collection. It creates the
// document row, then each chunk row, backfilling each new chunk's metadata
// with its own id and collection_id and setting document_id for join
// integrity, and finally dispatches each chunk to the vector index.
func (u *Upserter) UpsertDocument(ctx context.Context, actor auth.Actor, collectionID, content string, docMeta DocumentMetadata, chunks []ChunkInput) (*Document, []Chunk, error) {
	ok, err := u.perms.CanAccess(ctx, actor, permission.TargetCollection, collectionID, permission.LevelEditor)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperr.NewForbidden("actor lacks editor access on collection %s", collectionID)
	}

	doc, err := u.store.CreateDocument(ctx, collectionID, content, docMeta)
	if err != nil {
		return nil, nil, err
	}

	created := make([]Chunk, 0, len(chunks))
	for _, ci := range chunks {
		meta := ci.Meta
		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return nil, nil, apperr.NewInvalidInput("invalid chunk metadata: %v", err)
		}

		docID := doc.ID
		c := &Chunk{
			DocumentID:   &docID,
			CollectionID: collectionID,
			Content:      ci.Content,
			Metadata:     string(metaBytes),
		}
		if err := u.store.CreateChunk(ctx, c); err != nil {
			return nil, nil, err
		}

		// Backfill metadata with the chunk's own id and collection_id now
		// that both are known, so downstream consumers never have to join
		// back to the row to identify it.
		backfilled := map[string]interface{}{
			"chunk_index":   meta.ChunkIndex,
			"total":         meta.Total,
			"strategy":      meta.Strategy,
			"size_class":    meta.SizeClass,
			"chunk_id":      c.ID,
			"collection_id": collectionID,
			"document_id":   doc.ID,
		}
		backfilledBytes, err := json.Marshal(backfilled)
		if err != nil {
			return nil, nil, apperr.WrapInternal(err, "backfilling chunk metadata")
		}
		c.Metadata = string(backfilledBytes)
		if err := u.store.db.WithContext(ctx).Model(&Chunk{}).
			Where("id = ?", c.ID).
			Update("metadata", c.Metadata).Error; err != nil {
			return nil, nil, apperr.WrapInternal(err, "saving backfilled chunk metadata")
		}

		if u.embedder != nil {
			if err := u.embedder.Upsert(ctx, c.ID, collectionID, ci.Content); err != nil {
				return nil, nil, apperr.WrapUpstream(err, "embedding chunk %s", c.ID)
			}
		}

		created = append(created, *c)
	}

	return doc, created, nil
}

// DeleteDocument requires editor|owner on the collection. The document's
// chunks are kept, with their document_id cleared.
func (u *Upserter) DeleteDocument(ctx context.Context, actor auth.Actor, collectionID, documentID string) error {
	ok, err := u.perms.CanAccess(ctx, actor, permission.TargetCollection, collectionID, permission.LevelEditor)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NewForbidden("actor lacks editor access on collection %s", collectionID)
	}

	doc, err := u.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.CollectionID != collectionID {
		return apperr.NewNotFound("document %s not in collection %s", documentID, collectionID)
	}

	if err := u.store.db.WithContext(ctx).Model(&Chunk{}).Where("document_id = ?", documentID).Update("document_id", nil).Error; err != nil {
		return apperr.WrapInternal(err, "detaching chunks")
	}
	if err := u.store.db.WithContext(ctx).Delete(doc).Error; err != nil {
		return apperr.WrapInternal(err, "deleting document")
	}
	return nil
}
