package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/KhubaibAhamed/SentinelAI/internal/ai"
	"github.com/KhubaibAhamed/SentinelAI/internal/moderation"
	"github.com/KhubaibAhamed/SentinelAI/internal/scoring"
	"github.com/KhubaibAhamed/SentinelAI/internal/store"
	"github.com/KhubaibAhamed/SentinelAI/internal/trigger"
	"github.com/KhubaibAhamed/SentinelAI/internal/util"
)

const (
	modeOpenAI  = "openai"
	modeLexicon = "lexicon"
	modeCustom  = "custom"
)

// Config defines server dependencies.
type Config struct {
	DBPath         string
	SilentDB       bool
	AllowedOrigins []string
	AIConfig       ai.Config
	DisableAI      bool
	LexiconPath    string
	DebounceWindow time.Duration
	// MinInputLength follows trigger.Options.MinLength: zero selects the default guard.
	MinInputLength int
	MaxInputLength int
	// Classifier overrides the configured backend.
	Classifier ai.Classifier
	// Schedule overrides the debounce timer source of detector sessions.
	Schedule trigger.Scheduler
}

// Server wires HTTP handlers with classification, history and live sessions.
type Server struct {
	db             *store.Database
	classifier     ai.Classifier
	lexicon        *scoring.LexiconClassifier
	mode           string
	allowedOrigins []string
	debounce       time.Duration
	minLength      int
	maxLength      int
	schedule       trigger.Scheduler
	notifier       *DashboardNotifier
	metrics        *Metrics
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	server := &Server{
		db:             db,
		allowedOrigins: cfg.AllowedOrigins,
		debounce:       cfg.DebounceWindow,
		minLength:      cfg.MinInputLength,
		maxLength:      cfg.MaxInputLength,
		schedule:       cfg.Schedule,
		notifier:       NewDashboardNotifier(),
		metrics:        NewMetrics(),
	}
	if server.debounce <= 0 {
		server.debounce = trigger.DefaultDelay
	}
	if server.minLength == 0 {
		server.minLength = trigger.DefaultMinLength
	}
	if server.maxLength <= 0 {
		server.maxLength = 5000
	}

	switch {
	case cfg.Classifier != nil:
		server.classifier = cfg.Classifier
		server.mode = modeCustom
	case cfg.DisableAI:
		lexicon, err := scoring.NewLexiconClassifier(cfg.LexiconPath)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("lexicon classifier: %w", err)
		}
		logrus.Info("AI classifier disabled via configuration, using lexicon")
		server.classifier = lexicon
		server.lexicon = lexicon
		server.mode = modeLexicon
	default:
		client, err := ai.NewClient(cfg.AIConfig)
		if err != nil {
			_ = db.Close()
			if errors.Is(err, ai.ErrDisabled) {
				return nil, errors.New("ai classifier disabled: configure OPENAI_API_KEY or set DISABLE_AI=true")
			}
			return nil, fmt.Errorf("ai client: %w", err)
		}
		server.classifier = client
		server.mode = modeOpenAI
	}

	return server, nil
}

// Lexicon returns the offline classifier when it is the active backend.
func (s *Server) Lexicon() *scoring.LexiconClassifier {
	return s.lexicon
}

// Close releases the history database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Session-ID"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	{
		api.POST("/classify", s.handleClassify)
		api.POST("/decide", s.handleDecide)
		api.POST("/render", s.handleRender)
		api.GET("/detector/stream", s.handleDetectorStream)
		api.GET("/dashboard", s.handleDashboard)
		api.GET("/dashboard/stream", s.handleDashboardStream)
		api.GET("/results", s.handleResults)
		api.GET("/export.csv", s.handleExportCSV)
		api.GET("/export.json", s.handleExportJSON)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	categories := make([]string, 0, len(moderation.Categories))
	for _, category := range moderation.Categories {
		categories = append(categories, string(category))
	}
	c.JSON(http.StatusOK, gin.H{
		"categories":       categories,
		"block_threshold":  moderation.BlockThreshold,
		"flag_threshold":   moderation.FlagThreshold,
		"debounce_ms":      s.debounce.Milliseconds(),
		"min_input_length": trigger.ResolveMinLength(s.minLength),
		"max_input_length": s.maxLength,
		"model_version":    s.modelVersion(),
		"classifier":       s.mode,
	})
}

func (s *Server) handleClassify(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.validateText(req.Text); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	timer := util.StartTimer()
	result, err := s.classifier.Classify(c.Request.Context(), req.Text)
	if err != nil {
		s.metrics.observeClassification(sourceAPI, outcomeError, timer.Elapsed())
		logrus.WithError(err).WithField("protocol", ai.IsProtocolError(err)).Warn("classification failed")
		s.renderError(c, http.StatusBadGateway, err)
		return
	}
	s.metrics.observeClassification(sourceAPI, outcomeSuccess, timer.Elapsed())

	action := moderation.Decide(result.Scores)
	resp := ClassifyResponse{
		Result:   result,
		Action:   action,
		Segments: moderation.Render(req.Text, result.Spans),
	}
	if entry, ok := s.record(strings.TrimSpace(c.GetHeader("X-Session-ID")), req.Text, result, action); ok {
		resp.MessageID = entry.MessageID
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDecide(c *gin.Context) {
	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	scores := make(moderation.ScoreSet, len(req.Scores))
	for label, value := range req.Scores {
		category, ok := moderation.ParseCategory(label)
		if !ok {
			s.renderError(c, http.StatusBadRequest, fmt.Errorf("unknown category %q", label))
			return
		}
		if value < 0 || value > 1 {
			s.renderError(c, http.StatusBadRequest, fmt.Errorf("score for %s must be between 0 and 1", category))
			return
		}
		scores[category] = value
	}

	resp := DecideResponse{Action: moderation.Decide(scores)}
	if category, value, ok := scores.Top(); ok {
		resp.Max = value
		resp.Category = string(category)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRender(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, RenderResponse{Segments: moderation.Render(req.Text, req.Spans)})
}

func (s *Server) handleDashboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("recent"))
	summary, err := s.db.Summarize(time.Now(), limit)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, DashboardFromSummary(summary))
}

func (s *Server) handleDashboardStream(c *gin.Context) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("dashboard websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("dashboard websocket closed")
			} else {
				logrus.WithError(err).Warn("dashboard websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) handleResults(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = 100
	}

	rows, total, err := s.db.ListEntries(store.EntryQuery{
		Query:     strings.TrimSpace(c.Query("q")),
		Action:    strings.TrimSpace(c.Query("action")),
		SessionID: strings.TrimSpace(c.Query("session")),
		Sort:      strings.TrimSpace(c.Query("sort")),
		Offset:    page * pageSize,
		Limit:     pageSize,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]EntryDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, FromEntry(row))
	}
	c.JSON(http.StatusOK, EntriesResponse{Items: dtos, Total: total})
}

func (s *Server) handleExportCSV(c *gin.Context) {
	rows, _, err := s.db.ListEntries(store.EntryQuery{Action: strings.TrimSpace(c.Query("action"))})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=sentinel-export.csv")
	c.Header("Content-Type", "text/csv")

	writer := csv.NewWriter(c.Writer)
	headers := []string{"message_id", "created_at", "session_id", "text", "action", "reason", "confidence"}
	for _, category := range moderation.Categories {
		headers = append(headers, string(category))
	}
	headers = append(headers, "model_version", "latency_ms", "explanation")
	if err := writer.Write(headers); err != nil {
		return
	}
	for _, row := range rows {
		dto := FromEntry(row)
		line := []string{
			dto.MessageID,
			dto.CreatedAt.UTC().Format(time.RFC3339),
			dto.SessionID,
			dto.Text,
			dto.Action,
			dto.Reason,
			fmt.Sprintf("%.2f", dto.Confidence),
		}
		for _, category := range moderation.Categories {
			line = append(line, fmt.Sprintf("%.2f", dto.Scores[category]))
		}
		line = append(line, dto.ModelVersion, strconv.FormatInt(dto.LatencyMs, 10), dto.Explanation)
		if err := writer.Write(line); err != nil {
			return
		}
	}
	writer.Flush()
}

func (s *Server) handleExportJSON(c *gin.Context) {
	rows, _, err := s.db.ListEntries(store.EntryQuery{Action: strings.TrimSpace(c.Query("action"))})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]EntryDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, FromEntry(row))
	}
	c.Header("Content-Disposition", "attachment; filename=sentinel-export.json")
	c.JSON(http.StatusOK, dtos)
}

// record persists a completed classification and notifies dashboard subscribers. Storage
// failures are logged; they never fail the classification itself.
func (s *Server) record(sessionID, text string, result moderation.ClassificationResult, action moderation.Action) (store.Entry, bool) {
	s.metrics.observeAction(action)
	entry, err := s.db.Save(store.Record{
		SessionID: sessionID,
		Text:      text,
		Result:    result,
		Action:    action,
	})
	if err != nil {
		logrus.WithError(err).Warn("record classification")
		return store.Entry{}, false
	}
	total, err := s.db.CountMessages()
	if err != nil {
		logrus.WithError(err).Warn("count messages")
	}
	dto := FromEntry(entry)
	s.notifier.Broadcast(DashboardEvent{Type: "classification", Entry: &dto, Total: total})
	logrus.WithFields(logrus.Fields{
		"message_id": entry.MessageID,
		"session_id": sessionID,
		"action":     action,
		"reason":     entry.ReasonCode,
		"latency_ms": result.LatencyMs,
	}).Info("classification recorded")
	return entry, true
}

func (s *Server) validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("text is required")
	}
	if n := utf8.RuneCountInString(text); n > s.maxLength {
		return fmt.Errorf("text is %d characters, limit is %d", n, s.maxLength)
	}
	return nil
}

func (s *Server) modelVersion() string {
	if versioned, ok := s.classifier.(interface{ ModelVersion() string }); ok {
		return versioned.ModelVersion()
	}
	return ""
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				return true
			}
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
