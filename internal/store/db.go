package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/KhubaibAhamed/SentinelAI/internal/moderation"
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
	now  func() time.Time
}

// Open initializes the SQLite-backed history at path. An empty path opens a private
// in-memory database that disappears on Close.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	dsn := strings.TrimSpace(path)
	memory := dsn == "" || dsn == ":memory:"
	if memory {
		dsn = fmt.Sprintf("file:sentinel-%s?mode=memory&cache=shared", uuid.NewString())
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memory {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		// the in-memory database lives as long as its single connection
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}
	if err := db.AutoMigrate(&Message{}, &Prediction{}, &ModerationAction{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if !memory {
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			logrus.WithError(err).Warn("enable WAL mode")
		}
		if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
			logrus.WithError(err).Warn("set synchronous pragma")
		}
	}
	return &Database{gorm: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoReviewer is the reviewer id stored for decisions taken by the thresholds alone.
const AutoReviewer = "sentinel-auto"

// Record describes one completed classification.
type Record struct {
	SessionID string
	Text      string
	Result    moderation.ClassificationResult
	Action    moderation.Action
	// ReviewerID defaults to AutoReviewer.
	ReviewerID string
	CreatedAt  time.Time
}

// Save writes the message, prediction and moderation action rows in one transaction.
func (d *Database) Save(rec Record) (Entry, error) {
	if d == nil {
		return Entry{}, errors.New("database is nil")
	}
	if strings.TrimSpace(rec.Text) == "" {
		return Entry{}, errors.New("message text is empty")
	}
	if !rec.Action.Valid() {
		return Entry{}, fmt.Errorf("invalid action %q", rec.Action)
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = d.now()
	}
	created = created.UTC()

	label, confidence, _ := rec.Result.Scores.Top()
	msg := Message{
		ID:        uuid.NewString(),
		SessionID: rec.SessionID,
		Text:      rec.Text,
		Language:  "en",
		CreatedAt: created,
	}
	pred := Prediction{
		MessageID:    msg.ID,
		ModelVersion: rec.Result.ModelVersion,
		Label:        string(label),
		Confidence:   confidence,
		LatencyMs:    rec.Result.LatencyMs,
		Explanation:  strings.TrimSpace(rec.Result.Explanation),
		CreatedAt:    created,
	}
	pred.SetScores(rec.Result.Scores)
	pred.SetSpans(rec.Result.Spans)
	reviewer := strings.TrimSpace(rec.ReviewerID)
	if reviewer == "" {
		reviewer = AutoReviewer
	}
	action := ModerationAction{
		MessageID:  msg.ID,
		ActionType: string(rec.Action),
		ReasonCode: string(label),
		ReviewerID: reviewer,
		CreatedAt:  created,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		if err := tx.Create(&pred).Error; err != nil {
			return err
		}
		return tx.Create(&action).Error
	})
	if err != nil {
		return Entry{}, fmt.Errorf("save classification: %w", err)
	}

	return Entry{
		MessageID:    msg.ID,
		SessionID:    msg.SessionID,
		Text:         msg.Text,
		CreatedAt:    msg.CreatedAt,
		ModelVersion: pred.ModelVersion,
		ScoresJSON:   pred.ScoresJSON,
		SpansJSON:    pred.SpansJSON,
		Label:        pred.Label,
		Confidence:   pred.Confidence,
		LatencyMs:    pred.LatencyMs,
		Explanation:  pred.Explanation,
		Action:       action.ActionType,
		ReasonCode:   action.ReasonCode,
		ReviewerID:   action.ReviewerID,
	}, nil
}

// CountMessages returns the number of recorded messages.
func (d *Database) CountMessages() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Message{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// EntryQuery encapsulates filters and pagination for listing entries.
type EntryQuery struct {
	Query     string
	Action    string
	Actions   []string
	SessionID string
	Sort      string
	Offset    int
	Limit     int
}

const entryColumns = `m.id AS message_id, m.session_id, m.text, m.created_at,
	p.model_version, p.scores_json, p.spans_json, p.label, p.confidence, p.latency_ms, p.explanation,
	a.action_type AS action, a.reason_code, a.reviewer_id`

// ListEntries returns paginated entries applying optional filters.
func (d *Database) ListEntries(opts EntryQuery) ([]Entry, int64, error) {
	if d == nil {
		return nil, 0, errors.New("database is nil")
	}
	base := func() *gorm.DB {
		q := d.gorm.Table("messages AS m").
			Joins("JOIN predictions p ON p.message_id = m.id").
			Joins("JOIN moderation_actions a ON a.message_id = m.id")
		if opts.Query != "" {
			like := fmt.Sprintf("%%%s%%", opts.Query)
			q = q.Where("m.text LIKE ? OR p.label LIKE ?", like, like)
		}
		if action := strings.TrimSpace(opts.Action); action != "" {
			q = q.Where("a.action_type = ?", strings.ToUpper(action))
		}
		if len(opts.Actions) > 0 {
			q = q.Where("a.action_type IN ?", opts.Actions)
		}
		if opts.SessionID != "" {
			q = q.Where("m.session_id = ?", opts.SessionID)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base().Select(entryColumns).Order(orderForSort(opts.Sort)).Offset(opts.Offset)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	var rows []Entry
	if err := query.Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func orderForSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "confidence_desc":
		return "p.confidence DESC, p.id DESC"
	case "confidence_asc":
		return "p.confidence ASC, p.id DESC"
	case "latency_desc":
		return "p.latency_ms DESC, p.id DESC"
	case "created_asc":
		return "m.created_at ASC, p.id ASC"
	default:
		return "m.created_at DESC, p.id DESC"
	}
}
