package collection

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weavehub/weave/apperr"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Collection{}, &Document{}, &Chunk{}); err != nil {
		return err
	}
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_chunks_content_tsv ON chunks USING gin (to_tsvector('english', content))
	`).Error
}

func (s *Store) CreateCollection(ctx context.Context, name, ownerID string, metadata JSON) (*Collection, error) {
	metaBytes, err := metadata.Value()
	if err != nil {
		return nil, apperr.NewInvalidInput("invalid metadata: %v", err)
	}
	c := &Collection{
		ID:       uuid.NewString(),
		Name:     name,
		Metadata: string(metaBytes),
		OwnerID:  ownerID,
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, apperr.WrapInternal(err, "creating collection")
	}
	return c, nil
}

func (s *Store) GetCollection(ctx context.Context, id string) (*Collection, error) {
	var c Collection
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NewNotFound("collection %s", id)
		}
		return nil, apperr.WrapInternal(err, "loading collection")
	}
	return &c, nil
}

// ListCollectionsByOwner returns every collection owned by ownerID, most
// recently created first.
func (s *Store) ListCollectionsByOwner(ctx context.Context, ownerID string) ([]Collection, error) {
	var rows []Collection
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&rows).Error; err != nil {
		return nil, apperr.WrapInternal(err, "listing collections")
	}
	return rows, nil
}

// DeleteCollection removes a collection row. Documents and chunks are left
// in place; C5 has no cascade requirement and the search path already scopes
// by collection id, so orphaned rows are simply unreachable once the
// collection is gone.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&Collection{}, "id = ?", id)
	if res.Error != nil {
		return apperr.WrapInternal(res.Error, "deleting collection")
	}
	if res.RowsAffected == 0 {
		return apperr.NewNotFound("collection %s", id)
	}
	return nil
}

// IsLegacyOwner implements permission.LegacyOwnerChecker for collections
// created before the permission table existed, whose ownership is recorded
// only in the Collection.OwnerID column.
func (s *Store) IsLegacyOwner(ctx context.Context, collectionID, userID string) (bool, error) {
	c, err := s.GetCollection(ctx, collectionID)
	if err != nil {
		return false, err
	}
	return c.OwnerID == userID, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	var d Document
	if err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NewNotFound("document %s", id)
		}
		return nil, apperr.WrapInternal(err, "loading document")
	}
	return &d, nil
}

// FindDocumentByContentHash looks up a document in a collection by its
// stored content_hash metadata field, used for duplicate detection.
func (s *Store) FindDocumentByContentHash(ctx context.Context, collectionID, hash string) (*Document, error) {
	var d Document
	err := s.db.WithContext(ctx).
		Where("collection_id = ? AND metadata->>'content_hash' = ?", collectionID, hash).
		First(&d).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.WrapInternal(err, "looking up document by content hash")
	}
	return &d, nil
}

// FindDocumentByFilename looks up a document in a collection by its stored
// original_filename metadata field, used for the overwrite duplicate path.
func (s *Store) FindDocumentByFilename(ctx context.Context, collectionID, filename string) (*Document, error) {
	var d Document
	err := s.db.WithContext(ctx).
		Where("collection_id = ? AND metadata->>'original_filename' = ?", collectionID, filename).
		First(&d).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.WrapInternal(err, "looking up document by filename")
	}
	return &d, nil
}

// CreateDocument inserts a new document row, returning it with a freshly
// generated id. The id is always generated here; a document_id supplied by
// the caller in metadata is not read.
func (s *Store) CreateDocument(ctx context.Context, collectionID, content string, meta DocumentMetadata) (*Document, error) {
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, apperr.NewInvalidInput("invalid document metadata: %v", err)
	}
	now := time.Now()
	d := &Document{
		ID:           uuid.NewString(),
		CollectionID: collectionID,
		Content:      content,
		Metadata:     string(metaBytes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, apperr.WrapInternal(err, "creating document")
	}
	return d, nil
}

// SiblingChunks returns chunks of document, ordered by chunk_index, used for
// context expansion.
func (s *Store) SiblingChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	var chunks []Chunk
	if err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("(metadata->>'chunk_index')::int").
		Find(&chunks).Error; err != nil {
		return nil, apperr.WrapInternal(err, "loading sibling chunks")
	}
	return chunks, nil
}

func (s *Store) CreateChunk(ctx context.Context, c *Chunk) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now()
	if err := s.db.WithContext(ctx).Exec(`
		INSERT INTO chunks (id, document_id, collection_id, content, metadata, created_at, content_tsv)
		VALUES (?, ?, ?, ?, ?::jsonb, ?, to_tsvector('english', ?))
	`, c.ID, c.DocumentID, c.CollectionID, c.Content, c.Metadata, c.CreatedAt, c.Content).Error; err != nil {
		return apperr.WrapInternal(err, "creating chunk")
	}
	return nil
}

func (s *Store) GetChunksByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	return s.SiblingChunks(ctx, documentID)
}
