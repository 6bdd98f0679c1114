package permission

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/weavehub/weave/apperr"
	"github.com/weavehub/weave/auth"
)

// UserLister enumerates every registered user id, used to fan public grants
// out across the user base.
type UserLister interface {
	ListAllUserIDs(ctx context.Context) ([]string, error)
}

// GraphAssistantLister resolves the assistants belonging to a graph, used by
// the public-graph-revoke cascade.
type GraphAssistantLister interface {
	ListAssistantIDsByGraph(ctx context.Context, graphID string) ([]string, error)
}

// Materializer implements the Public-Permission Materializer (C4).
type Materializer struct {
	db       *gorm.DB
	engine   *Engine
	users    UserLister
	graphs   GraphAssistantLister
}

func NewMaterializer(db *gorm.DB, engine *Engine, users UserLister) *Materializer {
	return &Materializer{db: db, engine: engine, users: users}
}

func (m *Materializer) SetGraphAssistantLister(l GraphAssistantLister) {
	m.graphs = l
}

func requireAdmin(actor auth.Actor) error {
	if actor.IsService() || actor.IsDevAdmin() || actor.Role == auth.RoleBusinessAdmin {
		return nil
	}
	return apperr.NewForbidden("public permission administration requires an admin actor")
}

// Create inserts the public row and fans out a grant to every existing user,
// skipping anyone who already holds a permission row (upsert would promote
// them past what the public grant intends).
func (m *Materializer) Create(ctx context.Context, actor auth.Actor, t TargetType, targetID string, level Level, notes string) (usersGranted int, err error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	if !ValidLevel(t, level) {
		return 0, apperr.NewInvalidInput("unknown level %q for %s", level, t)
	}

	var active int64
	if err := m.db.WithContext(ctx).Model(&PublicPermission{}).
		Where("target_type = ? AND target_id = ? AND revoked_at IS NULL", t, targetID).
		Count(&active).Error; err != nil {
		return 0, apperr.WrapInternal(err, "checking for active public permission")
	}
	if active > 0 {
		return 0, apperr.NewConflict("an active public permission already exists for %s %s", t, targetID)
	}

	userIDs, err := m.users.ListAllUserIDs(ctx)
	if err != nil {
		return 0, apperr.WrapInternal(err, "listing users")
	}

	txErr := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := PublicPermission{
			TargetType: t,
			TargetID:   targetID,
			Level:      level,
			CreatedBy:  actor.Identity,
			CreatedAt:  time.Now(),
			Notes:      notes,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		granted, err := fanoutGrant(tx, t, targetID, level, userIDs)
		if err != nil {
			return err
		}
		usersGranted = granted
		return nil
	})
	if txErr != nil {
		return 0, apperr.WrapInternal(txErr, "creating public permission")
	}
	return usersGranted, nil
}

// fanoutGrant inserts permission rows for userIDs that don't already have
// one on target, tagged as system:public. Must run inside tx.
func fanoutGrant(tx *gorm.DB, t TargetType, targetID string, level Level, userIDs []string) (int, error) {
	granted := 0
	for _, uid := range userIDs {
		var count int64
		if err := tx.Model(&Permission{}).
			Where("target_type = ? AND target_id = ? AND user_id = ?", t, targetID, uid).
			Count(&count).Error; err != nil {
			return granted, err
		}
		if count > 0 {
			continue
		}
		p := Permission{
			TargetType: t,
			TargetID:   targetID,
			UserID:     uid,
			Level:      level,
			GrantedBy:  GrantedBySystemPublic,
		}
		if err := tx.Create(&p).Error; err != nil {
			return granted, err
		}
		granted++
	}
	return granted, nil
}

// Revoke marks the active public row revoked with mode, optionally deleting
// the per-user system:public rows, and cascades to a graph's assistants.
func (m *Materializer) Revoke(ctx context.Context, actor auth.Actor, t TargetType, targetID, mode string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if mode != RevokeFutureOnly && mode != RevokeAll {
		return apperr.NewInvalidInput("unknown revoke mode %q", mode)
	}

	if err := m.revokeOne(ctx, t, targetID, mode); err != nil {
		return err
	}

	if t == TargetGraph && m.graphs != nil {
		assistantIDs, err := m.graphs.ListAssistantIDsByGraph(ctx, targetID)
		if err != nil {
			return apperr.WrapInternal(err, "listing assistants for graph %s", targetID)
		}
		for _, aid := range assistantIDs {
			if err := m.revokeOne(ctx, TargetAssistant, aid, mode); err != nil && apperr.KindOf(err) != apperr.NotFound {
				return err
			}
		}
	}

	return nil
}

func (m *Materializer) revokeOne(ctx context.Context, t TargetType, targetID, mode string) error {
	var row PublicPermission
	err := m.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND revoked_at IS NULL", t, targetID).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return apperr.NewNotFound("no active public permission for %s %s", t, targetID)
	}
	if err != nil {
		return apperr.WrapInternal(err, "loading public permission")
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		row.RevokedAt = &now
		row.RevokeMode = &mode
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		if mode == RevokeAll {
			if err := tx.Where("target_type = ? AND target_id = ? AND granted_by = ?", t, targetID, GrantedBySystemPublic).
				Delete(&Permission{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Reinvoke clears revoked_at/revoke_mode on the most recent public row for
// target, reactivating it without re-fanning out.
func (m *Materializer) Reinvoke(ctx context.Context, actor auth.Actor, t TargetType, targetID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	var row PublicPermission
	err := m.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", t, targetID).
		Order("created_at desc").
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return apperr.NewNotFound("no public permission history for %s %s", t, targetID)
	}
	if err != nil {
		return apperr.WrapInternal(err, "loading public permission")
	}
	if row.RevokedAt == nil {
		return apperr.NewConflict("public permission for %s %s is already active", t, targetID)
	}

	row.RevokedAt = nil
	row.RevokeMode = nil
	if err := m.db.WithContext(ctx).Save(&row).Error; err != nil {
		return apperr.WrapInternal(err, "reactivating public permission")
	}
	return nil
}

// Backfill explicitly re-runs the fanout for the currently active public
// permission on target. Added per SPEC_FULL's Open Question decision #3.
func (m *Materializer) Backfill(ctx context.Context, actor auth.Actor, t TargetType, targetID string) (usersGranted int, err error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}

	var row PublicPermission
	derr := m.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND revoked_at IS NULL", t, targetID).
		First(&row).Error
	if derr == gorm.ErrRecordNotFound {
		return 0, apperr.NewNotFound("no active public permission for %s %s", t, targetID)
	}
	if derr != nil {
		return 0, apperr.WrapInternal(derr, "loading public permission")
	}

	userIDs, err := m.users.ListAllUserIDs(ctx)
	if err != nil {
		return 0, apperr.WrapInternal(err, "listing users")
	}

	txErr := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		granted, err := fanoutGrant(tx, t, targetID, row.Level, userIDs)
		if err != nil {
			return err
		}
		usersGranted = granted
		return nil
	})
	if txErr != nil {
		return 0, apperr.WrapInternal(txErr, "backfilling public permission")
	}
	return usersGranted, nil
}

// List returns every public permission row for target type t, most recent
// first, for the admin listing surface.
func (m *Materializer) List(ctx context.Context, actor auth.Actor, t TargetType) ([]PublicPermission, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var rows []PublicPermission
	if err := m.db.WithContext(ctx).
		Where("target_type = ?", t).
		Order("created_at desc").
		Find(&rows).Error; err != nil {
		return nil, apperr.WrapInternal(err, "listing public permissions")
	}
	return rows, nil
}

// GrantToNewUser is the auth.UserCreatedHook: every active public permission
// is granted to userID as system:public.
func (m *Materializer) GrantToNewUser(ctx context.Context, userID string) error {
	var active []PublicPermission
	if err := m.db.WithContext(ctx).Where("revoked_at IS NULL").Find(&active).Error; err != nil {
		return apperr.WrapInternal(err, "listing active public permissions")
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range active {
			var count int64
			if err := tx.Model(&Permission{}).
				Where("target_type = ? AND target_id = ? AND user_id = ?", row.TargetType, row.TargetID, userID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			p := Permission{
				TargetType: row.TargetType,
				TargetID:   row.TargetID,
				UserID:     userID,
				Level:      row.Level,
				GrantedBy:  GrantedBySystemPublic,
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
