// Package permission implements the layered permission model (C2) spanning
// graphs, assistants and collections, plus the public-permission
// materializer (C4) that fans "everyone" grants out across the user base.
package permission

import "time"

type TargetType string

const (
	TargetGraph      TargetType = "graph"
	TargetAssistant  TargetType = "assistant"
	TargetCollection TargetType = "collection"
)

// Level is a target-type-scoped authorization level. Ordering is defined by
// levelRank; levels from different target types are not comparable.
type Level string

const (
	LevelAccess Level = "access" // graph
	LevelAdmin  Level = "admin"  // graph

	LevelViewer Level = "viewer" // assistant, collection
	LevelEditor Level = "editor" // assistant, collection
	LevelOwner  Level = "owner"  // assistant, collection
)

var levelRank = map[TargetType]map[Level]int{
	TargetGraph: {
		LevelAccess: 1,
		LevelAdmin:  2,
	},
	TargetAssistant: {
		LevelViewer: 1,
		LevelEditor: 2,
		LevelOwner:  3,
	},
	TargetCollection: {
		LevelViewer: 1,
		LevelEditor: 2,
		LevelOwner:  3,
	},
}

// ValidLevel reports whether level is a recognized level for target type t.
func ValidLevel(t TargetType, level Level) bool {
	_, ok := levelRank[t][level]
	return ok
}

// manageLevel is the minimum level that grants manage authority (grant/
// revoke/list) over a target of type t.
func manageLevel(t TargetType) Level {
	if t == TargetGraph {
		return LevelAdmin
	}
	return LevelOwner
}

func meetsLevel(t TargetType, have, want Level) bool {
	ranks := levelRank[t]
	return ranks[have] >= ranks[want]
}

// Permission is a single per-user grant on a target.
type Permission struct {
	ID         uint       `gorm:"primaryKey"`
	TargetType TargetType `gorm:"type:text;not null;index:idx_perm_target;uniqueIndex:idx_perm_unique"`
	TargetID   string     `gorm:"not null;index:idx_perm_target;uniqueIndex:idx_perm_unique"`
	UserID     string     `gorm:"not null;uniqueIndex:idx_perm_unique"`
	Level      Level      `gorm:"type:text;not null"`
	GrantedBy  string     `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Permission) TableName() string { return "permissions" }

// PublicPermission is the "everyone" grant for a target. At most one active
// (RevokedAt IS NULL) row may exist per target; enforced by a partial unique
// index created outside GORM's AutoMigrate (see Migrate).
type PublicPermission struct {
	ID         uint       `gorm:"primaryKey"`
	TargetType TargetType `gorm:"type:text;not null;index:idx_pubperm_target"`
	TargetID   string     `gorm:"not null;index:idx_pubperm_target"`
	Level      Level      `gorm:"type:text;not null"`
	CreatedBy  string     `gorm:"not null"`
	CreatedAt  time.Time
	RevokedAt  *time.Time
	RevokeMode *string
	Notes      string
}

func (PublicPermission) TableName() string { return "public_permissions" }

const (
	RevokeFutureOnly = "future_only"
	RevokeAll        = "revoke_all"

	GrantedBySystemPublic = "system:public"
)
