// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full set of runtime settings.
type Config struct {
	DBPath  string `env:"ASTERFALL_DB_PATH"  envDefault:"asterfall.db"`
	RNGSeed int64  `env:"ASTERFALL_RNG_SEED" envDefault:"1337"`

	LLMJSONBackend     string        `env:"ASTERFALL_LLM_JSON_BACKEND"               envDefault:"stub"`
	LLMTextBackend     string        `env:"ASTERFALL_LLM_TEXT_BACKEND"               envDefault:"stub"`
	LLMTimeout         time.Duration `env:"ASTERFALL_LLM_TIMEOUT"                    envDefault:"20s"`
	LLMMaxInputChars   int           `env:"ASTERFALL_LLM_MAX_INPUT_CHARS"            envDefault:"6000"`
	LLMMaxCallsPerDay  int           `env:"ASTERFALL_LLM_MAX_CALLS_PER_DAY"          envDefault:"500"`
	LLMMaxCallsPerUser int           `env:"ASTERFALL_LLM_MAX_CALLS_PER_USER_PER_DAY" envDefault:"60"`
	OpenRouterAPIKey   string        `env:"OPENROUTER_API_KEY"`
	OpenRouterModel    string        `env:"OPENROUTER_MODEL"    envDefault:"openai/gpt-4o-mini"`
	OpenRouterBaseURL  string        `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	OllamaBaseURL      string        `env:"OLLAMA_BASE_URL"     envDefault:"http://localhost:11434"`
	OllamaModel        string        `env:"OLLAMA_MODEL"        envDefault:"llama3.1"`
	GeminiAPIKey       string        `env:"GEMINI_API_KEY"`
	GeminiModel        string        `env:"GEMINI_MODEL"        envDefault:"gemini-1.5-flash"`

	HTTPAddr        string        `env:"ASTERFALL_HTTP_ADDR"          envDefault:":8080"`
	TickInterval    time.Duration `env:"ASTERFALL_TICK_INTERVAL"      envDefault:"5m"`
	TickMaxNPCs     int           `env:"ASTERFALL_TICK_MAX_NPCS"      envDefault:"4"`
	NPCMovesPerHour int           `env:"ASTERFALL_NPC_MOVES_PER_HOUR" envDefault:"6"`
	WorldDir        string        `env:"ASTERFALL_WORLD_DIR"`
	OTelEndpoint    string        `env:"ASTERFALL_OTEL_ENDPOINT"`
	LogLevel        string        `env:"ASTERFALL_LOG_LEVEL"  envDefault:"info"`
	LogFormat       string        `env:"ASTERFALL_LOG_FORMAT" envDefault:"text"`
}

// Backends accepted by the LLM backend settings.
var Backends = []string{"stub", "ollama", "openrouter", "gemini"}

// Load reads a .env file if one exists, then parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that have no safe fallback.
func (c Config) Validate() error {
	for name, backend := range map[string]string{
		"ASTERFALL_LLM_JSON_BACKEND": c.LLMJSONBackend,
		"ASTERFALL_LLM_TEXT_BACKEND": c.LLMTextBackend,
	} {
		if !knownBackend(backend) {
			return fmt.Errorf("%s: unknown backend %q (want one of %s)", name, backend, strings.Join(Backends, ", "))
		}
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("ASTERFALL_LLM_TIMEOUT must be positive")
	}
	if c.LLMMaxCallsPerDay < 0 || c.LLMMaxCallsPerUser < 0 {
		return fmt.Errorf("llm call limits must not be negative")
	}
	if c.TickMaxNPCs < 1 {
		return fmt.Errorf("ASTERFALL_TICK_MAX_NPCS must be at least 1")
	}
	if c.NPCMovesPerHour < 0 {
		return fmt.Errorf("ASTERFALL_NPC_MOVES_PER_HOUR must not be negative")
	}
	return nil
}

func knownBackend(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}

// Logger builds the process logger from the log settings.
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
