package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/KhubaibAhamed/SentinelAI/internal/trigger"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGINS", "OPENAI_API_KEY", "DISABLE_AI", "DEBOUNCE_WINDOW",
		"MIN_INPUT_LENGTH", "MAX_INPUT_LENGTH", "MODERATION_DB_PATH", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	cfg := Load()

	if cfg.Port != "2000" {
		t.Fatalf("expected port 2000 got %s", cfg.Port)
	}
	if cfg.DebounceWindow != time.Second || cfg.MinInputLength != 5 || cfg.MaxInputLength != 5000 {
		t.Fatalf("unexpected input defaults %+v", cfg)
	}
	if cfg.DisableAI || cfg.DBPath != "" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, defaultOrigins) {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("OPENAI_API_KEY", " key ")
	t.Setenv("OPENAI_TEMPERATURE", "0.2")
	t.Setenv("OPENAI_MAX_TOKENS", "300")
	t.Setenv("OPENAI_TIMEOUT", "5s")
	t.Setenv("DISABLE_AI", "TRUE")
	t.Setenv("LEXICON_WATCH", "1")
	t.Setenv("DEBOUNCE_WINDOW", "250ms")
	t.Setenv("MIN_INPUT_LENGTH", "0")
	t.Setenv("MAX_INPUT_LENGTH", "200")
	cfg := Load()

	if cfg.Port != "8080" || cfg.AI.APIKey != "key" || cfg.AI.Temperature != 0.2 || cfg.AI.MaxTokens != 300 {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if cfg.AI.Timeout != 5*time.Second || !cfg.DisableAI || !cfg.LexiconWatch {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if cfg.DebounceWindow != 250*time.Millisecond || cfg.MinInputLength != trigger.NoMinLength || cfg.MaxInputLength != 200 {
		t.Fatalf("unexpected input overrides %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadIgnoresBadValues(t *testing.T) {
	t.Setenv("DEBOUNCE_WINDOW", "soon")
	t.Setenv("MIN_INPUT_LENGTH", "-3")
	t.Setenv("MAX_INPUT_LENGTH", "lots")
	t.Setenv("OPENAI_TEMPERATURE", "warm")
	cfg := Load()

	if cfg.DebounceWindow != time.Second || cfg.MinInputLength != 5 || cfg.MaxInputLength != 5000 || cfg.AI.Temperature != 0 {
		t.Fatalf("expected defaults on parse errors got %+v", cfg)
	}
}
