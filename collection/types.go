// Package collection implements the Collection & Document Store (C5):
// collections, documents and chunks, and semantic/keyword/hybrid search with
// context expansion.
package collection

import (
	"encoding/json"
	"time"
)

type JSON map[string]interface{}

func (j JSON) Value() ([]byte, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

type Collection struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"not null"`
	Metadata  string `gorm:"type:jsonb"`
	OwnerID   string `gorm:"not null"`
	TableID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Collection) TableName() string { return "collections" }

type SourceType string

const (
	SourceFile    SourceType = "file"
	SourceURL     SourceType = "url"
	SourceYoutube SourceType = "youtube"
	SourceText    SourceType = "text"
)

type Document struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	CollectionID string `gorm:"not null;index"`
	Content      string
	Metadata     string `gorm:"type:jsonb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Document) TableName() string { return "documents" }

// DocumentMetadata is the typed projection of Document.Metadata used by the
// ingestion and duplicate-detection paths.
type DocumentMetadata struct {
	ContentHash      string     `json:"content_hash,omitempty"`
	OriginalFilename string     `json:"original_filename,omitempty"`
	SourceType       SourceType `json:"source_type,omitempty"`
	Title            string     `json:"title,omitempty"`
}

type Chunk struct {
	ID           string  `gorm:"type:uuid;primaryKey"`
	DocumentID   *string `gorm:"index"`
	CollectionID string  `gorm:"not null;index"`
	Content      string
	Embedding    []float32 `gorm:"-"` // held by the vector index, not relational storage
	Metadata     string    `gorm:"type:jsonb"`
	ContentTSV   string    `gorm:"type:tsvector;index:idx_chunk_tsv,type:gin"`
	CreatedAt    time.Time
}

func (Chunk) TableName() string { return "chunks" }

// ChunkMetadata is the typed projection of Chunk.Metadata.
type ChunkMetadata struct {
	ChunkIndex int    `json:"chunk_index"`
	Total      int    `json:"total,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
	SizeClass  string `json:"size_class,omitempty"`
}
