package api

import (
	"strings"
	"time"

	"github.com/KhubaibAhamed/SentinelAI/internal/detector"
	"github.com/KhubaibAhamed/SentinelAI/internal/moderation"
	"github.com/KhubaibAhamed/SentinelAI/internal/store"
)

// TextRequest carries text to classify.
type TextRequest struct {
	Text string `json:"text"`
}

// ClassifyResponse is the one-shot classification payload.
type ClassifyResponse struct {
	MessageID string                          `json:"message_id,omitempty"`
	Result    moderation.ClassificationResult `json:"result"`
	Action    moderation.Action               `json:"action"`
	Segments  []moderation.Segment            `json:"segments"`
}

// DecideRequest carries a raw score set.
type DecideRequest struct {
	Scores map[string]float64 `json:"scores"`
}

// DecideResponse reports the verdict for a score set.
type DecideResponse struct {
	Action   moderation.Action `json:"action"`
	Max      float64           `json:"max"`
	Category string            `json:"category,omitempty"`
}

// RenderRequest carries text and spans to turn into segments.
type RenderRequest struct {
	Text  string            `json:"text"`
	Spans []moderation.Span `json:"spans"`
}

// RenderResponse holds the rendering plan.
type RenderResponse struct {
	Segments []moderation.Segment `json:"segments"`
}

// EntryDTO is the API representation of a recorded classification.
type EntryDTO struct {
	MessageID    string              `json:"message_id"`
	SessionID    string              `json:"session_id,omitempty"`
	Text         string              `json:"text"`
	Action       string              `json:"action"`
	Reason       string              `json:"reason"`
	Confidence   float64             `json:"confidence"`
	Scores       moderation.ScoreSet `json:"scores"`
	Spans        []moderation.Span   `json:"spans"`
	ModelVersion string              `json:"model_version"`
	LatencyMs    int64               `json:"latency_ms"`
	Explanation  string              `json:"explanation"`
	ReviewerID   string              `json:"reviewer_id"`
	CreatedAt    time.Time           `json:"created_at"`
}

// EntriesResponse is the paginated response for recorded classifications.
type EntriesResponse struct {
	Items []EntryDTO `json:"items"`
	Total int64      `json:"total"`
}

// FlaggedDTO is a row of the dashboard's recent flagged table.
type FlaggedDTO struct {
	MessageID  string    `json:"message_id"`
	SessionID  string    `json:"session_id,omitempty"`
	Snippet    string    `json:"snippet"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence"`
	Action     string    `json:"action"`
	CreatedAt  time.Time `json:"created_at"`
}

// CategoryDTO counts violations for one category.
type CategoryDTO struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Value    int64  `json:"value"`
}

// VolumeDTO is one day of moderation volume.
type VolumeDTO struct {
	Name    string `json:"name"`
	Date    string `json:"date"`
	Total   int64  `json:"total"`
	Blocked int64  `json:"blocked"`
	Flagged int64  `json:"flagged"`
}

// DashboardResponse aggregates the recorded history.
type DashboardResponse struct {
	TotalMessages int64         `json:"total_messages"`
	Blocked       int64         `json:"blocked"`
	Flagged       int64         `json:"flagged"`
	AvgLatencyMs  float64       `json:"avg_latency_ms"`
	Categories    []CategoryDTO `json:"categories"`
	Volume        []VolumeDTO   `json:"volume"`
	RecentFlagged []FlaggedDTO  `json:"recent_flagged"`
}

// StateDTO is the detector state pushed to the browser.
type StateDTO struct {
	Text      string                           `json:"text"`
	Analyzing bool                             `json:"analyzing"`
	Result    *moderation.ClassificationResult `json:"result"`
	Action    moderation.Action                `json:"action"`
	Segments  []moderation.Segment             `json:"segments"`
	Error     string                           `json:"error,omitempty"`
	Seq       uint64                           `json:"seq"`
}

const snippetLength = 80

// FromEntry converts a store.Entry into the DTO representation.
func FromEntry(e store.Entry) EntryDTO {
	return EntryDTO{
		MessageID:    e.MessageID,
		SessionID:    e.SessionID,
		Text:         e.Text,
		Action:       e.Action,
		Reason:       reasonTitle(e.ReasonCode),
		Confidence:   round2(e.Confidence),
		Scores:       e.Scores(),
		Spans:        e.Spans(),
		ModelVersion: e.ModelVersion,
		LatencyMs:    e.LatencyMs,
		Explanation:  strings.TrimSpace(e.Explanation),
		ReviewerID:   e.ReviewerID,
		CreatedAt:    e.CreatedAt,
	}
}

// DashboardFromSummary converts store aggregates into the dashboard payload.
func DashboardFromSummary(s store.Summary) DashboardResponse {
	out := DashboardResponse{
		TotalMessages: s.TotalMessages,
		Blocked:       s.Blocked,
		Flagged:       s.Flagged,
		AvgLatencyMs:  round2(s.AvgLatencyMs),
		Categories:    make([]CategoryDTO, 0, len(s.Categories)),
		Volume:        make([]VolumeDTO, 0, len(s.Volume)),
		RecentFlagged: make([]FlaggedDTO, 0, len(s.RecentFlagged)),
	}
	for _, c := range s.Categories {
		out.Categories = append(out.Categories, CategoryDTO{Category: c.Category, Name: reasonTitle(c.Category), Value: c.Total})
	}
	for _, day := range s.Volume {
		out.Volume = append(out.Volume, VolumeDTO{
			Name:    day.Date.Format("Mon"),
			Date:    day.Date.Format("2006-01-02"),
			Total:   day.Total,
			Blocked: day.Blocked,
			Flagged: day.Flagged,
		})
	}
	for _, e := range s.RecentFlagged {
		out.RecentFlagged = append(out.RecentFlagged, FlaggedDTO{
			MessageID:  e.MessageID,
			SessionID:  e.SessionID,
			Snippet:    snippet(e.Text, snippetLength),
			Reason:     reasonTitle(e.ReasonCode),
			Confidence: round2(e.Confidence),
			Action:     e.Action,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

// StateFromSession converts a detector snapshot into its wire form.
func StateFromSession(st detector.State) StateDTO {
	segments := st.Segments
	if segments == nil {
		segments = []moderation.Segment{}
	}
	return StateDTO{
		Text:      st.Text,
		Analyzing: st.Analyzing,
		Result:    st.Result,
		Action:    moderation.DecideResult(st.Result),
		Segments:  segments,
		Error:     st.Error,
		Seq:       st.Seq,
	}
}

func reasonTitle(code string) string {
	if code == "" {
		return ""
	}
	return moderation.Category(code).Title()
}

func snippet(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
