package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/KhubaibAhamed/SentinelAI/internal/moderation"
)

// Message is one piece of user text that reached the classifier.
type Message struct {
	ID        string    `gorm:"primaryKey;size:36"`
	SessionID string    `gorm:"size:36;index"`
	Text      string    `gorm:"type:text"`
	Language  string    `gorm:"size:10"`
	CreatedAt time.Time `gorm:"index"`
}

// Prediction is the classifier output recorded for a message.
type Prediction struct {
	ID           uint   `gorm:"primaryKey"`
	MessageID    string `gorm:"size:36;index"`
	ModelVersion string `gorm:"size:50"`
	ScoresJSON   string `gorm:"type:text"`
	SpansJSON    string `gorm:"type:text"`
	Label        string `gorm:"size:20;index"`
	Confidence   float64
	LatencyMs    int64
	Explanation  string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// ModerationAction is the decision taken for a message.
type ModerationAction struct {
	ID         uint      `gorm:"primaryKey"`
	MessageID  string    `gorm:"size:36;index"`
	ActionType string    `gorm:"size:20;index"`
	ReasonCode string    `gorm:"size:50"`
	ReviewerID string    `gorm:"size:36"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// SetScores persists the score set as JSON.
func (p *Prediction) SetScores(scores moderation.ScoreSet) {
	if scores == nil {
		p.ScoresJSON = "{}"
		return
	}
	payload, _ := json.Marshal(scores)
	p.ScoresJSON = string(payload)
}

// SetSpans persists the spans as JSON.
func (p *Prediction) SetSpans(spans []moderation.Span) {
	if spans == nil {
		p.SpansJSON = "[]"
		return
	}
	payload, _ := json.Marshal(spans)
	p.SpansJSON = string(payload)
}

// Entry is the joined view of a message with its prediction and action.
type Entry struct {
	MessageID    string
	SessionID    string
	Text         string
	CreatedAt    time.Time
	ModelVersion string
	ScoresJSON   string
	SpansJSON    string
	Label        string
	Confidence   float64
	LatencyMs    int64
	Explanation  string
	Action       string
	ReasonCode   string
	ReviewerID   string
}

// Scores returns the decoded score set.
func (e Entry) Scores() moderation.ScoreSet {
	return decodeScores(e.ScoresJSON)
}

// Spans returns the decoded spans.
func (e Entry) Spans() []moderation.Span {
	if strings.TrimSpace(e.SpansJSON) == "" {
		return nil
	}
	var out []moderation.Span
	if err := json.Unmarshal([]byte(e.SpansJSON), &out); err != nil {
		return nil
	}
	return out
}

func decodeScores(raw string) moderation.ScoreSet {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out moderation.ScoreSet
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
