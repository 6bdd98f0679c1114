// Package summarizer implements the Thread Summarizer (C10): a background
// sweeper that names and summarizes conversation threads via an LLM,
// respecting a minimum interval, a token budget, and user-renamed threads.
package summarizer

import "time"

// Thread is the naming/summarization state for one conversation thread. The
// conversation content itself lives upstream; this row only tracks naming.
type Thread struct {
	ID            string `gorm:"primaryKey"`
	UserID        string `gorm:"not null;index"`
	Name          string
	Summary       string
	UserRenamed   bool `gorm:"default:false"`
	NeedsNaming   bool `gorm:"default:true;index"`
	LastNamingAt  *time.Time
	LastMessageAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Thread) TableName() string { return "threads" }

// Message is one turn of a thread's conversation history, as fetched from
// the upstream engine.
type Message struct {
	Role    string
	Content string
}

// NamingResult is the structured shape the LLM is asked to produce.
type NamingResult struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}
