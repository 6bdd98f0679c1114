// Package notification implements share-invitation notifications (C3):
// creation, listing, accept/reject with the graph-first acceptance policy,
// and expiry sweeping.
package notification

import (
	"time"

	"github.com/weavehub/weave/permission"
)

type Type string

const (
	TypeGraphShare      Type = "graph_share"
	TypeAssistantShare  Type = "assistant_share"
	TypeCollectionShare Type = "collection_share"
)

func (t Type) ResourceType() permission.TargetType {
	switch t {
	case TypeGraphShare:
		return permission.TargetGraph
	case TypeAssistantShare:
		return permission.TargetAssistant
	case TypeCollectionShare:
		return permission.TargetCollection
	}
	return ""
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

type Notification struct {
	ID                 string `gorm:"type:uuid;primaryKey"`
	RecipientID        string `gorm:"not null;index"`
	Type               Type   `gorm:"type:text;not null"`
	ResourceID         string `gorm:"not null"`
	ResourceType       permission.TargetType `gorm:"type:text;not null"`
	PermissionLevel    permission.Level      `gorm:"type:text;not null"`
	SenderID           string
	SenderDisplayName  string
	Status             Status `gorm:"type:text;not null;index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
	RespondedAt        *time.Time
	ExpiresAt          time.Time
	ResourceName       string
	ResourceDescription string
}

func (Notification) TableName() string { return "notifications" }

// AcceptAction distinguishes the three accept outcomes.
type AcceptAction string

const (
	ActionGranted AcceptAction = "granted"
	ActionGuided  AcceptAction = "guided"
	ActionFailed  AcceptAction = "failed"
)

// AcceptResult mirrors the HTTP response shape in spec.md §6.
type AcceptResult struct {
	NotificationID             string
	Action                     AcceptAction
	Success                    bool
	Message                    string
	PermissionGranted          bool
	NextAction                 string
	RequiresGraphFirst         bool
	RelatedGraphNotificationID string
}
