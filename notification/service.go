package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weavehub/weave/apperr"
	"github.com/weavehub/weave/auth"
	"github.com/weavehub/weave/eventbus"
	"github.com/weavehub/weave/permission"
)

// AssistantGraphResolver resolves the graph an assistant belongs to, used to
// enforce the graph-first acceptance policy.
type AssistantGraphResolver interface {
	AssistantGraphID(ctx context.Context, assistantID string) (string, error)
}

type Service struct {
	db       *gorm.DB
	perms    *permission.Engine
	graphs   AssistantGraphResolver
	events   eventbus.Publisher
	expiry   time.Duration
}

func NewService(db *gorm.DB, perms *permission.Engine, graphs AssistantGraphResolver, events eventbus.Publisher, expiry time.Duration) *Service {
	if events == nil {
		events = eventbus.NoopPublisher{}
	}
	if expiry <= 0 {
		expiry = 14 * 24 * time.Hour
	}
	return &Service{db: db, perms: perms, graphs: graphs, events: events, expiry: expiry}
}

// Create inserts a new pending notification, returning an existing
// equivalent pending row if one already exists (idempotent on recipient,
// resource, sender, pending).
func (s *Service) Create(ctx context.Context, sender auth.Actor, recipientID string, typ Type, resourceID string, level permission.Level, resourceName, resourceDescription string) (*Notification, error) {
	if !permission.ValidLevel(typ.ResourceType(), level) {
		return nil, apperr.NewInvalidInput("unknown level %q for %s", level, typ.ResourceType())
	}

	var existing Notification
	err := s.db.WithContext(ctx).Where(
		"recipient_id = ? AND resource_id = ? AND resource_type = ? AND sender_id = ? AND status = ?",
		recipientID, resourceID, typ.ResourceType(), sender.Identity, StatusPending,
	).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, apperr.WrapInternal(err, "checking for existing notification")
	}

	now := time.Now()
	n := &Notification{
		ID:                  uuid.NewString(),
		RecipientID:         recipientID,
		Type:                typ,
		ResourceID:          resourceID,
		ResourceType:        typ.ResourceType(),
		PermissionLevel:     level,
		SenderID:            sender.Identity,
		Status:              StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
		ExpiresAt:           now.Add(s.expiry),
		ResourceName:        resourceName,
		ResourceDescription: resourceDescription,
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, apperr.WrapInternal(err, "creating notification")
	}

	_ = s.events.Publish("notification.created", n)
	return n, nil
}

type ListResult struct {
	Notifications []Notification
	TotalCount    int64
	PendingCount  int64
}

func (s *Service) List(ctx context.Context, recipientID string, status *Status, limit, offset int) (*ListResult, error) {
	q := s.db.WithContext(ctx).Model(&Notification{}).Where("recipient_id = ?", recipientID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, apperr.WrapInternal(err, "counting notifications")
	}

	var pending int64
	if err := s.db.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND status = ?", recipientID, StatusPending).
		Count(&pending).Error; err != nil {
		return nil, apperr.WrapInternal(err, "counting pending notifications")
	}

	var rows []Notification
	if err := q.Order("created_at desc").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, apperr.WrapInternal(err, "listing notifications")
	}

	return &ListResult{Notifications: rows, TotalCount: total, PendingCount: pending}, nil
}

func (s *Service) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND status = ?", recipientID, StatusPending).
		Count(&count).Error
	if err != nil {
		return 0, apperr.WrapInternal(err, "counting unread notifications")
	}
	return count, nil
}

func (s *Service) loadPending(ctx context.Context, recipientID, id string) (*Notification, error) {
	var n Notification
	if err := s.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NewNotFound("notification %s", id)
		}
		return nil, apperr.WrapInternal(err, "loading notification")
	}
	if n.RecipientID != recipientID {
		return nil, apperr.NewForbidden("notification %s does not belong to this actor", id)
	}
	if n.Status != StatusPending || n.ExpiresAt.Before(time.Now()) {
		return nil, apperr.NewNotPending("notification %s is not pending", id)
	}
	return &n, nil
}

// Accept applies the graph-first acceptance policy. For an assistant-share
// notification when the recipient lacks graph access, acceptance is
// "guided": the assistant share stays pending and a sibling graph_share is
// ensured to exist.
func (s *Service) Accept(ctx context.Context, recipient auth.Actor, notificationID string) (*AcceptResult, error) {
	n, err := s.loadPending(ctx, recipient.Identity, notificationID)
	if err != nil {
		return nil, err
	}

	if n.Type == TypeAssistantShare && s.graphs != nil {
		graphID, err := s.graphs.AssistantGraphID(ctx, n.ResourceID)
		if err != nil {
			return nil, apperr.WrapUpstream(err, "resolving graph for assistant %s", n.ResourceID)
		}

		hasGraph, err := s.perms.CanAccess(ctx, recipient, permission.TargetGraph, graphID, permission.LevelAccess)
		if err != nil {
			return nil, err
		}
		if !hasGraph {
			related, err := s.ensureGraphShare(ctx, n.SenderID, n.SenderDisplayName, recipient.Identity, graphID)
			if err != nil {
				return nil, err
			}
			return &AcceptResult{
				NotificationID:             n.ID,
				Action:                     ActionGuided,
				Success:                    false,
				Message:                    "graph access is required before this assistant share can be accepted",
				NextAction:                 "accept_graph",
				RequiresGraphFirst:         true,
				RelatedGraphNotificationID: related,
			}, nil
		}
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		n.Status = StatusAccepted
		n.RespondedAt = &now
		n.UpdatedAt = now
		if err := tx.Save(n).Error; err != nil {
			return err
		}

		_, err := s.perms.WithTx(tx).Grant(ctx, auth.Actor{Type: auth.ActorService}, n.ResourceType, n.ResourceID, recipient.Identity, n.PermissionLevel)
		return err
	})
	if txErr != nil {
		return nil, apperr.WrapInternal(txErr, "accepting notification %s", n.ID)
	}

	_ = s.events.Publish("notification.accepted", n)

	return &AcceptResult{
		NotificationID:    n.ID,
		Action:            ActionGranted,
		Success:           true,
		Message:           "permission granted",
		PermissionGranted: true,
	}, nil
}

// ensureGraphShare finds or creates a pending graph_share for (recipient,
// graphID, sender) and returns its id.
func (s *Service) ensureGraphShare(ctx context.Context, senderID, senderDisplayName, recipientID, graphID string) (string, error) {
	var existing Notification
	err := s.db.WithContext(ctx).Where(
		"recipient_id = ? AND resource_id = ? AND resource_type = ? AND sender_id = ? AND status = ?",
		recipientID, graphID, permission.TargetGraph, senderID, StatusPending,
	).First(&existing).Error
	if err == nil {
		return existing.ID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return "", apperr.WrapInternal(err, "checking for existing graph share")
	}

	now := time.Now()
	n := &Notification{
		ID:                uuid.NewString(),
		RecipientID:       recipientID,
		Type:              TypeGraphShare,
		ResourceID:        graphID,
		ResourceType:      permission.TargetGraph,
		PermissionLevel:   permission.LevelAccess,
		SenderID:          senderID,
		SenderDisplayName: senderDisplayName,
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         now.Add(s.expiry),
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return "", apperr.WrapInternal(err, "creating graph share")
	}
	_ = s.events.Publish("notification.created", n)
	return n.ID, nil
}

func (s *Service) Reject(ctx context.Context, recipient auth.Actor, notificationID string) error {
	n, err := s.loadPending(ctx, recipient.Identity, notificationID)
	if err != nil {
		return err
	}
	now := time.Now()
	n.Status = StatusRejected
	n.RespondedAt = &now
	n.UpdatedAt = now
	if err := s.db.WithContext(ctx).Save(n).Error; err != nil {
		return apperr.WrapInternal(err, "rejecting notification %s", n.ID)
	}
	return nil
}

// Delete permanently removes a notification row. Service principals only;
// unlike Reject, this leaves no trace for the recipient to review.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, notificationID string) error {
	if !actor.IsService() {
		return apperr.NewForbidden("notification deletion requires a service principal")
	}
	res := s.db.WithContext(ctx).Delete(&Notification{}, "id = ?", notificationID)
	if res.Error != nil {
		return apperr.WrapInternal(res.Error, "deleting notification %s", notificationID)
	}
	if res.RowsAffected == 0 {
		return apperr.NewNotFound("notification %s", notificationID)
	}
	return nil
}

// ExpireDue sweeps pending rows past their expiry, returning the count
// transitioned to expired.
func (s *Service) ExpireDue(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Notification{}).
		Where("status = ? AND expires_at < ?", StatusPending, time.Now()).
		Updates(map[string]interface{}{"status": StatusExpired, "updated_at": time.Now()})
	if res.Error != nil {
		return 0, apperr.WrapInternal(res.Error, "expiring notifications")
	}
	return res.RowsAffected, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Notification{})
}
