// Package mirror implements the Engine Mirror & Sync (C8) and the Version
// History (C9) components: a local read-optimized copy of upstream Graph
// and Assistant state with monotonic cache-version counters, plus
// append-only assistant version snapshots with restore-as-new-version
// semantics.
package mirror

import "time"

// Graph mirrors an upstream graph entity.
type Graph struct {
	ID           string `gorm:"primaryKey"`
	Name         string
	Active       bool      `gorm:"default:true"`
	LastSeenAt   time.Time `gorm:"index"`
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Graph) TableName() string { return "mirror_graphs" }

// Assistant mirrors an upstream assistant entity.
type Assistant struct {
	ID          string `gorm:"primaryKey"`
	GraphID     string `gorm:"not null;index"`
	Name        string
	Config      string `gorm:"type:jsonb"`
	Metadata    string `gorm:"type:jsonb"`
	Description string
	Context     string
	Version     int
	Tags        string    `gorm:"type:jsonb"` // []string, projected from metadata._x_oap_tags
	Hash        string    `gorm:"index"`
	IsTemplate  bool      // metadata.created_by == "system"
	LastSeenAt  time.Time `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Assistant) TableName() string { return "mirror_assistants" }

// AssistantVersion is an append-only snapshot of an assistant's
// configuration at a point in upstream version history.
type AssistantVersion struct {
	ID            uint   `gorm:"primaryKey"`
	AssistantID   string `gorm:"not null;uniqueIndex:idx_assistant_version"`
	Version       int    `gorm:"not null;uniqueIndex:idx_assistant_version"`
	Name          string
	Description   string
	Config        string `gorm:"type:jsonb"`
	Metadata      string `gorm:"type:jsonb"`
	Tags          string `gorm:"type:jsonb"`
	CommitMessage string
	CreatedAt     time.Time
}

func (AssistantVersion) TableName() string { return "assistant_versions" }

// CacheState holds monotonic version counters clients compare against a
// snapshot version returned with responses to decide whether to refetch.
type CacheState struct {
	ID                uint `gorm:"primaryKey"`
	GraphsVersion     int64
	AssistantsVersion int64
	SchemasVersion    int64
	ThreadsVersion    int64
	UpdatedAt         time.Time
}

func (CacheState) TableName() string { return "cache_state" }

// SyncStats aggregates the outcome of a sync sweep.
type SyncStats struct {
	New           int
	Updated       int
	Unchanged     int
	SchemaUpdates int
	Errors        []string
}

func (s *SyncStats) merge(other SyncStats) {
	s.New += other.New
	s.Updated += other.Updated
	s.Unchanged += other.Unchanged
	s.SchemaUpdates += other.SchemaUpdates
	s.Errors = append(s.Errors, other.Errors...)
}
