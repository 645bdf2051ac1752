package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.DBPath != "asterfall.db" || cfg.RNGSeed != 1337 {
		t.Errorf("db/seed defaults = %q/%d", cfg.DBPath, cfg.RNGSeed)
	}
	if cfg.LLMJSONBackend != "stub" || cfg.LLMTextBackend != "stub" {
		t.Errorf("backend defaults = %q/%q", cfg.LLMJSONBackend, cfg.LLMTextBackend)
	}
	if cfg.LLMTimeout != 20*time.Second || cfg.LLMMaxInputChars != 6000 {
		t.Errorf("llm defaults = %v/%d", cfg.LLMTimeout, cfg.LLMMaxInputChars)
	}
	if cfg.LLMMaxCallsPerDay != 500 || cfg.LLMMaxCallsPerUser != 60 {
		t.Errorf("budget defaults = %d/%d", cfg.LLMMaxCallsPerDay, cfg.LLMMaxCallsPerUser)
	}
	if cfg.TickInterval != 5*time.Minute || cfg.TickMaxNPCs != 4 || cfg.NPCMovesPerHour != 6 {
		t.Errorf("tick defaults = %v/%d/%d", cfg.TickInterval, cfg.TickMaxNPCs, cfg.NPCMovesPerHour)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("ASTERFALL_DB_PATH", "/tmp/x.db")
	t.Setenv("ASTERFALL_LLM_TEXT_BACKEND", "ollama")
	t.Setenv("ASTERFALL_TICK_INTERVAL", "30s")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.LLMTextBackend != "ollama" || cfg.TickInterval != 30*time.Second {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown backend", "ASTERFALL_LLM_JSON_BACKEND", "carrier-pigeon"},
		{"bad duration", "ASTERFALL_LLM_TIMEOUT", "soon"},
		{"zero tick npcs", "ASTERFALL_TICK_MAX_NPCS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Parse(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
