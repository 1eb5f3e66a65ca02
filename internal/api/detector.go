package api

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/KhubaibAhamed/SentinelAI/internal/detector"
	"github.com/KhubaibAhamed/SentinelAI/internal/trigger"
)

// DetectorMessage is sent by the browser on every edit of the input box.
type DetectorMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *Server) handleDetectorStream(c *gin.Context) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}
	client := &wsClient{conn: conn}
	sessionID := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{"session_id": sessionID, "remote": conn.RemoteAddr().String()})

	send := func(event DetectorEvent) {
		event.Timestamp = time.Now().UTC()
		if err := client.writeJSON(event); err != nil {
			log.WithError(err).Debug("detector write failed")
		}
	}

	session, err := detector.NewSession(c.Request.Context(), detector.Options{
		Classifier: s.classifier,
		Delay:      s.debounce,
		MinLength:  s.minLength,
		Schedule:   s.schedule,
		OnChange: func(st detector.State) {
			state := StateFromSession(st)
			send(DetectorEvent{Type: "state", SessionID: sessionID, State: &state})
		},
		OnOutcome: func(o detector.Outcome) {
			s.observeOutcome(sessionID, o)
		},
		OnFire: func(string) {
			s.metrics.debounceFires.Inc()
		},
	})
	if err != nil {
		log.WithError(err).Error("create detector session")
		_ = conn.Close()
		return
	}
	s.metrics.sessions.Inc()
	defer func() {
		session.Close()
		s.metrics.sessions.Dec()
		_ = conn.Close()
	}()

	log.Info("detector websocket connected")
	send(DetectorEvent{
		Type:           "ready",
		SessionID:      sessionID,
		DebounceMs:     s.debounce.Milliseconds(),
		MinInputLength: trigger.ResolveMinLength(s.minLength),
		MaxInputLength: s.maxLength,
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Info("detector websocket closed")
			} else {
				log.WithError(err).Warn("detector websocket unexpected close")
			}
			return
		}

		var msg DetectorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			send(DetectorEvent{Type: "error", SessionID: sessionID, Message: "invalid message"})
			continue
		}
		switch msg.Type {
		case "edit":
			if n := utf8.RuneCountInString(msg.Text); n > s.maxLength {
				send(DetectorEvent{Type: "error", SessionID: sessionID, Message: fmt.Sprintf("text is %d characters, limit is %d", n, s.maxLength)})
				continue
			}
			session.Update(msg.Text)
		case "snapshot":
			state := StateFromSession(session.Snapshot())
			send(DetectorEvent{Type: "state", SessionID: sessionID, State: &state})
		default:
			send(DetectorEvent{Type: "error", SessionID: sessionID, Message: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}

// observeOutcome records metrics for every finished request and persists applied results.
func (s *Server) observeOutcome(sessionID string, o detector.Outcome) {
	switch {
	case o.Superseded:
		s.metrics.observeClassification(sourceDetector, outcomeSuperseded, o.Duration)
	case o.Err != nil:
		s.metrics.observeClassification(sourceDetector, outcomeError, o.Duration)
	default:
		s.metrics.observeClassification(sourceDetector, outcomeSuccess, o.Duration)
		s.record(sessionID, o.Text, o.Result, o.Action)
	}
}
