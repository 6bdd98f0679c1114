package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// EventLogEntry is a durable record of a domain event published through
// eventbus, kept alongside the AMQP delivery for audit and replay: the queue
// is fire-and-forget, this table is not.
type EventLogEntry struct {
	gorm.Model
	Name        string
	Payload     []byte `gorm:"type:jsonb"`
	PublishedAt time.Time
}

func (EventLogEntry) TableName() string { return "event_log" }

// EventLogWriter persists published events. It implements eventbus's
// recorder interface so publishers can log without importing db directly.
type EventLogWriter struct {
	db *gorm.DB
}

func NewEventLogWriter(db *gorm.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

func (w *EventLogWriter) Migrate() error {
	return w.db.AutoMigrate(&EventLogEntry{})
}

// Record writes one event to the log. A failed audit write is the caller's
// to handle; it should never block the AMQP publish it accompanies.
func (w *EventLogWriter) Record(ctx context.Context, name string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling event payload for %s: %w", name, err)
	}
	entry := EventLogEntry{Name: name, Payload: body, PublishedAt: time.Now()}
	if err := w.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("recording event %s: %w", name, err)
	}
	return nil
}

// List returns the most recent events, newest first, for admin inspection.
func (w *EventLogWriter) List(ctx context.Context, limit int) ([]EventLogEntry, error) {
	var entries []EventLogEntry
	if err := w.db.WithContext(ctx).Order("published_at desc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("listing event log: %w", err)
	}
	return entries, nil
}
