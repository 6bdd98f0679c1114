package summarizer

import (
	"context"
	"time"

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
	return db.AutoMigrate(&Thread{})
}

// EnsureThread creates a thread row on first observation of a new one,
// flagging it for naming. It is a no-op if the thread already exists.
func (s *Store) EnsureThread(ctx context.Context, id, userID string, lastMessageAt time.Time) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Thread{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperr.WrapInternal(err, "checking thread existence")
	}
	if count > 0 {
		return s.db.WithContext(ctx).Model(&Thread{}).Where("id = ?", id).
			Update("last_message_at", lastMessageAt).Error
	}
	t := &Thread{
		ID: id, UserID: userID, NeedsNaming: true, LastMessageAt: lastMessageAt,
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return apperr.WrapInternal(err, "creating thread")
	}
	return nil
}

func (s *Store) GetThread(ctx context.Context, id string) (*Thread, error) {
	var t Thread
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NewNotFound("thread %s", id)
		}
		return nil, apperr.WrapInternal(err, "loading thread")
	}
	return &t, nil
}

// PickDue returns threads eligible for naming: needs_naming, not
// user_renamed, and either never named or last named before cutoff.
func (s *Store) PickDue(ctx context.Context, cutoff time.Time, limit int) ([]Thread, error) {
	var threads []Thread
	err := s.db.WithContext(ctx).
		Where("needs_naming = ? AND user_renamed = ?", true, false).
		Where("last_naming_at IS NULL OR last_naming_at < ?", cutoff).
		Order("last_message_at asc").
		Limit(limit).
		Find(&threads).Error
	if err != nil {
		return nil, apperr.WrapInternal(err, "listing threads due for naming")
	}
	return threads, nil
}

// ApplyNaming atomically writes the naming result and clears needs_naming.
func (s *Store) ApplyNaming(ctx context.Context, threadID string, result NamingResult, now time.Time) error {
	err := s.db.WithContext(ctx).Model(&Thread{}).Where("id = ?", threadID).Updates(map[string]interface{}{
		"name": result.Name, "summary": result.Summary,
		"last_naming_at": now, "needs_naming": false,
	}).Error
	if err != nil {
		return apperr.WrapInternal(err, "applying thread naming")
	}
	return nil
}

// MarkAttempted stamps last_naming_at without clearing needs_naming, used to
// throttle retries after a naming failure.
func (s *Store) MarkAttempted(ctx context.Context, threadID string, now time.Time) error {
	err := s.db.WithContext(ctx).Model(&Thread{}).Where("id = ?", threadID).
		Update("last_naming_at", now).Error
	if err != nil {
		return apperr.WrapInternal(err, "marking naming attempt")
	}
	return nil
}

// MarkUserRenamed records that the user has taken ownership of the name; the
// sweeper must never overwrite it afterward.
func (s *Store) MarkUserRenamed(ctx context.Context, threadID, name string) error {
	err := s.db.WithContext(ctx).Model(&Thread{}).Where("id = ?", threadID).Updates(map[string]interface{}{
		"name": name, "user_renamed": true, "needs_naming": false,
	}).Error
	if err != nil {
		return apperr.WrapInternal(err, "recording user rename")
	}
	return nil
}
