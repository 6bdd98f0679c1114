package permission

import (
	"context"

	"gorm.io/gorm"

	"github.com/weavehub/weave/apperr"
	"github.com/weavehub/weave/auth"
)

// LegacyOwnerChecker lets the collection package honor legacy owner
// metadata on collections created before the permission table existed.
type LegacyOwnerChecker interface {
	IsLegacyOwner(ctx context.Context, collectionID, userID string) (bool, error)
}

// Engine implements the Permission Engine (C2).
type Engine struct {
	db          *gorm.DB
	legacyOwner LegacyOwnerChecker
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// WithTx returns a shallow copy of the engine scoped to tx, so callers that
// already hold a transaction (e.g. notification.Service.Accept) can grant
// permissions as part of it instead of autocommitting against the engine's
// own handle.
func (e *Engine) WithTx(tx *gorm.DB) *Engine {
	clone := *e
	clone.db = tx
	return &clone
}

func (e *Engine) SetLegacyOwnerChecker(c LegacyOwnerChecker) {
	e.legacyOwner = c
}

// CanAccess reports whether actor holds at least level on the target.
// dev_admin actors always pass for graphs; collections additionally honor
// legacy owner metadata.
func (e *Engine) CanAccess(ctx context.Context, actor auth.Actor, t TargetType, targetID string, level Level) (bool, error) {
	if !ValidLevel(t, level) {
		return false, apperr.NewInvalidInput("unknown level %q for %s", level, t)
	}
	if actor.IsService() {
		return true, nil
	}
	if t == TargetGraph && actor.IsDevAdmin() {
		return true, nil
	}

	have, found, err := e.LevelOf(ctx, actor.Identity, t, targetID)
	if err != nil {
		return false, err
	}
	if found && meetsLevel(t, have, level) {
		return true, nil
	}

	if t == TargetCollection && e.legacyOwner != nil {
		if owner, err := e.legacyOwner.IsLegacyOwner(ctx, targetID, actor.Identity); err == nil && owner {
			return true, nil
		}
	}

	return false, nil
}

// LevelOf returns the level a user holds directly on a target, if any.
func (e *Engine) LevelOf(ctx context.Context, userID string, t TargetType, targetID string) (Level, bool, error) {
	var p Permission
	err := e.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND user_id = ?", t, targetID, userID).
		First(&p).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.WrapInternal(err, "loading permission")
	}
	return p.Level, true, nil
}

// Grant upserts recipient's level on target. The actor must already hold
// manage authority (owner/admin) or be dev_admin. A recipient already at or
// above the requested level keeps their level only if it is exactly equal;
// otherwise they are promoted/demoted to exactly the requested level.
func (e *Engine) Grant(ctx context.Context, actor auth.Actor, t TargetType, targetID, recipientID string, level Level) (created bool, err error) {
	if !ValidLevel(t, level) {
		return false, apperr.NewInvalidInput("unknown level %q for %s", level, t)
	}
	if err := e.requireManage(ctx, actor, t, targetID); err != nil {
		return false, err
	}

	var existing Permission
	err = e.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND user_id = ?", t, targetID, recipientID).
		First(&existing).Error

	switch err {
	case gorm.ErrRecordNotFound:
		p := Permission{
			TargetType: t,
			TargetID:   targetID,
			UserID:     recipientID,
			Level:      level,
			GrantedBy:  actor.Identity,
		}
		if createErr := e.db.WithContext(ctx).Create(&p).Error; createErr != nil {
			return false, apperr.WrapInternal(createErr, "creating permission")
		}
		return true, nil
	case nil:
		existing.Level = level
		existing.GrantedBy = actor.Identity
		if saveErr := e.db.WithContext(ctx).Save(&existing).Error; saveErr != nil {
			return false, apperr.WrapInternal(saveErr, "updating permission")
		}
		return false, nil
	default:
		return false, apperr.WrapInternal(err, "loading existing permission")
	}
}

// GrantOwner inserts the first owner permission row for a target the actor
// just created, bypassing the manage-authority check Grant requires (a
// brand-new resource has no owner yet, so nobody could pass it).
func (e *Engine) GrantOwner(ctx context.Context, actor auth.Actor, t TargetType, targetID string) error {
	p := Permission{
		TargetType: t,
		TargetID:   targetID,
		UserID:     actor.Identity,
		Level:      manageLevel(t),
		GrantedBy:  actor.Identity,
	}
	if err := e.db.WithContext(ctx).Create(&p).Error; err != nil {
		return apperr.WrapInternal(err, "granting initial owner permission")
	}
	return nil
}

// Revoke deletes recipient's permission row on target, rejecting removal of
// the last owner for assistants and collections.
func (e *Engine) Revoke(ctx context.Context, actor auth.Actor, t TargetType, targetID, recipientID string) error {
	if err := e.requireManage(ctx, actor, t, targetID); err != nil {
		return err
	}

	level, found, err := e.LevelOf(ctx, recipientID, t, targetID)
	if err != nil {
		return err
	}
	if !found {
		return apperr.NewNotFound("permission for user %s on %s %s", recipientID, t, targetID)
	}

	if level == LevelOwner {
		var ownerCount int64
		if err := e.db.WithContext(ctx).Model(&Permission{}).
			Where("target_type = ? AND target_id = ? AND level = ?", t, targetID, LevelOwner).
			Count(&ownerCount).Error; err != nil {
			return apperr.WrapInternal(err, "counting owners")
		}
		if ownerCount <= 1 {
			return apperr.NewLastOwner("cannot revoke the last owner of %s %s", t, targetID)
		}
	}

	res := e.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND user_id = ?", t, targetID, recipientID).
		Delete(&Permission{})
	if res.Error != nil {
		return apperr.WrapInternal(res.Error, "deleting permission")
	}
	return nil
}

// List returns every permission row on target. Requires manage authority.
func (e *Engine) List(ctx context.Context, actor auth.Actor, t TargetType, targetID string) ([]Permission, error) {
	if err := e.requireManage(ctx, actor, t, targetID); err != nil {
		return nil, err
	}
	var perms []Permission
	if err := e.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", t, targetID).
		Order("created_at asc").
		Find(&perms).Error; err != nil {
		return nil, apperr.WrapInternal(err, "listing permissions")
	}
	return perms, nil
}

func (e *Engine) requireManage(ctx context.Context, actor auth.Actor, t TargetType, targetID string) error {
	ok, err := e.CanAccess(ctx, actor, t, targetID, manageLevel(t))
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NewForbidden("actor lacks manage authority on %s %s", t, targetID)
	}
	return nil
}

// Migrate creates the permission tables plus the partial unique index on
// public_permissions that GORM's tag syntax cannot express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Permission{}, &PublicPermission{}); err != nil {
		return err
	}
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_public_permissions_active
		ON public_permissions (target_type, target_id)
		WHERE revoked_at IS NULL
	`).Error
}
