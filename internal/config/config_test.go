package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ARCHESTRA_DATABASE_URL", "DATABASE_URL", "OPENAI_API_KEY",
		"ANTHROPIC_API_KEY", "ARCHESTRA_HOST", "ARCHESTRA_PORT",
		"ARCHESTRA_LOG_LEVEL", "ARCHESTRA_LOG_FORMAT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadMissingDatabaseURL(t *testing.T) {
	clearEnv(t)
	_, err := Load("")
	if !errors.Is(err, ErrDatabaseURLNotSet) {
		t.Fatalf("Load() error = %v, want ErrDatabaseURLNotSet", err)
	}
	want := "Database URL is not set. Please set ARCHESTRA_DATABASE_URL or DATABASE_URL"
	if err.Error() != want {
		t.Fatalf("error message = %q, want %q", err.Error(), want)
	}
}

func TestLoadEnvPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://fallback/db")
	t.Setenv("ARCHESTRA_DATABASE_URL", "postgres://preferred/db")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.URL != "postgres://preferred/db" {
		t.Fatalf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.LLM.OpenAI.APIKey != "sk-test" {
		t.Fatalf("OpenAI.APIKey = %q", cfg.LLM.OpenAI.APIKey)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("default port = %d", cfg.Server.Port)
	}
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "archestra.yaml")
	data := []byte(`
server:
  port: 8123
database:
  url: postgres://from-file/db
llm:
  openai:
    model: gpt-4o-mini
observability:
  log_level: debug
  log_format: text
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ARCHESTRA_DATABASE_URL", "postgres://from-env/db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8123 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://from-env/db" {
		t.Fatalf("env should override file, got %q", cfg.Database.URL)
	}
	if cfg.LLM.OpenAI.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q", cfg.LLM.OpenAI.Model)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.Observability.LogLevel)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Database.URL = "postgres://x/y"
	cfg.Server.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
	cfg.Server.Port = 9000
	cfg.Observability.LogLevel = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestJSONSchema(t *testing.T) {
	data, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("JSONSchema() returned empty document")
	}
}
