package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/KhubaibAhamed/SentinelAI/internal/ai"
	"github.com/KhubaibAhamed/SentinelAI/internal/trigger"
)

// Cfg holds all runtime configuration loaded from environment variables.
type Cfg struct {
	Port           string
	AllowedOrigins []string

	AI        ai.Config
	DisableAI bool

	LexiconPath  string
	LexiconWatch bool

	DebounceWindow time.Duration
	MinInputLength int
	MaxInputLength int

	DBPath   string
	SilentDB bool

	LogLevel  string
	LogFormat string
}

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://localhost:5173",
}

// Load reads .env (if present) then environment variables and returns Cfg.
func Load() *Cfg {
	// Best-effort: a missing .env is not an error
	_ = godotenv.Load()

	cfg := &Cfg{
		Port:           envString("PORT", "2000"),
		AllowedOrigins: envList("ALLOWED_ORIGINS", defaultOrigins),
		AI: ai.Config{
			APIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			Model:        strings.TrimSpace(os.Getenv("OPENAI_MODEL")),
			BaseURL:      strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			ModelVersion: strings.TrimSpace(os.Getenv("MODEL_VERSION")),
		},
		DisableAI:      envBool("DISABLE_AI"),
		LexiconPath:    strings.TrimSpace(os.Getenv("LEXICON_PATH")),
		LexiconWatch:   envBool("LEXICON_WATCH"),
		DebounceWindow: trigger.DefaultDelay,
		MinInputLength: trigger.DefaultMinLength,
		MaxInputLength: 5000,
		DBPath:         strings.TrimSpace(os.Getenv("MODERATION_DB_PATH")),
		SilentDB:       envBool("SILENT_DB"),
		LogLevel:       envString("LOG_LEVEL", "info"),
		LogFormat:      envString("LOG_FORMAT", "text"),
	}

	if temp := os.Getenv("OPENAI_TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			cfg.AI.Temperature = v
		}
	}
	if maxTokens := os.Getenv("OPENAI_MAX_TOKENS"); maxTokens != "" {
		if v, err := strconv.Atoi(maxTokens); err == nil {
			cfg.AI.MaxTokens = v
		}
	}
	if timeout := os.Getenv("OPENAI_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.AI.Timeout = d
		}
	}
	if window := strings.TrimSpace(os.Getenv("DEBOUNCE_WINDOW")); window != "" {
		if d, err := time.ParseDuration(window); err == nil && d > 0 {
			cfg.DebounceWindow = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("MIN_INPUT_LENGTH")); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val >= 0 {
			cfg.MinInputLength = val
			if val == 0 {
				cfg.MinInputLength = trigger.NoMinLength
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_INPUT_LENGTH")); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.MaxInputLength = val
		}
	}
	return cfg
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	return raw == "1" || strings.EqualFold(raw, "true")
}

func envList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
