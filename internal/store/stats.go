package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/KhubaibAhamed/SentinelAI/internal/moderation"
)

// CategoryCount is the number of flagged or blocked messages whose top category matches.
type CategoryCount struct {
	Category string
	Total    int64
}

// DayVolume buckets one calendar day (UTC) of traffic.
type DayVolume struct {
	Date    time.Time
	Total   int64
	Blocked int64
	Flagged int64
}

// Summary aggregates the recorded history for the dashboard.
type Summary struct {
	TotalMessages int64
	Blocked       int64
	Flagged       int64
	AvgLatencyMs  float64
	Categories    []CategoryCount
	Volume        []DayVolume
	RecentFlagged []Entry
}

// Summarize computes dashboard aggregates. Volume covers the seven days ending at now.
func (d *Database) Summarize(now time.Time, recentLimit int) (Summary, error) {
	if d == nil {
		return Summary{}, errors.New("database is nil")
	}
	if recentLimit <= 0 {
		recentLimit = 10
	}
	var out Summary

	total, err := d.CountMessages()
	if err != nil {
		return Summary{}, err
	}
	out.TotalMessages = total

	var actions []struct {
		ActionType string
		Total      int64
	}
	if err := d.gorm.Model(&ModerationAction{}).
		Select("action_type, COUNT(*) AS total").
		Group("action_type").
		Scan(&actions).Error; err != nil {
		return Summary{}, fmt.Errorf("action counts: %w", err)
	}
	for _, row := range actions {
		switch moderation.Action(row.ActionType) {
		case moderation.ActionBlock:
			out.Blocked = row.Total
		case moderation.ActionFlag:
			out.Flagged = row.Total
		}
	}

	var avg struct{ Avg *float64 }
	if err := d.gorm.Model(&Prediction{}).Select("AVG(latency_ms) AS avg").Scan(&avg).Error; err != nil {
		return Summary{}, fmt.Errorf("average latency: %w", err)
	}
	if avg.Avg != nil {
		out.AvgLatencyMs = *avg.Avg
	}

	if err := d.gorm.Model(&ModerationAction{}).
		Select("reason_code AS category, COUNT(*) AS total").
		Where("action_type IN ?", []string{string(moderation.ActionFlag), string(moderation.ActionBlock)}).
		Group("reason_code").
		Order("total DESC, reason_code ASC").
		Scan(&out.Categories).Error; err != nil {
		return Summary{}, fmt.Errorf("category counts: %w", err)
	}

	volume, err := d.volume(now)
	if err != nil {
		return Summary{}, err
	}
	out.Volume = volume

	recent, _, err := d.ListEntries(EntryQuery{
		Actions: []string{string(moderation.ActionFlag), string(moderation.ActionBlock)},
		Limit:   recentLimit,
	})
	if err != nil {
		return Summary{}, err
	}
	out.RecentFlagged = recent
	return out, nil
}

func (d *Database) volume(now time.Time) ([]DayVolume, error) {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -6)

	var rows []struct {
		CreatedAt  time.Time
		ActionType string
	}
	if err := d.gorm.Table("messages AS m").
		Select("m.created_at, a.action_type").
		Joins("JOIN moderation_actions a ON a.message_id = m.id").
		Where("m.created_at >= ?", first).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("volume: %w", err)
	}

	days := make([]DayVolume, 7)
	for i := range days {
		days[i].Date = first.AddDate(0, 0, i)
	}
	for _, row := range rows {
		idx := int(row.CreatedAt.UTC().Sub(first) / (24 * time.Hour))
		if idx < 0 || idx >= len(days) {
			continue
		}
		days[idx].Total++
		switch moderation.Action(row.ActionType) {
		case moderation.ActionBlock:
			days[idx].Blocked++
		case moderation.ActionFlag:
			days[idx].Flagged++
		}
	}
	return days, nil
}
