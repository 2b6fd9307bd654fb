package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type testConfig struct {
	Name     string        `yaml:"name" env:"APP_NAME"`
	Port     int           `yaml:"port" env:"APP_PORT"`
	Debug    bool          `yaml:"debug" env:"APP_DEBUG"`
	Window   time.Duration `yaml:"window" env:"APP_WINDOW"`
	Hosts    []string      `yaml:"hosts" env:"APP_HOSTS"`
	Model    string        `yaml:"model" env:"APP_MODEL_PRIMARY,APP_MODEL"`
	Database struct {
		DSN string `yaml:"dsn" env:"DATABASE_URL"`
	} `yaml:"database"`
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTemp(t, `
name: test-app
port: 8080
debug: false
window: 90s
hosts: [a.com, b.com]
database:
  dsn: sqlite3://test.db
`)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.Name != "test-app" {
		t.Fatalf("expected 'test-app', got '%s'", cfg.Name)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected 8080, got %d", cfg.Port)
	}
	if cfg.Window != 90*time.Second {
		t.Fatalf("expected 90s, got %s", cfg.Window)
	}
	if len(cfg.Hosts) != 2 || cfg.Hosts[1] != "b.com" {
		t.Fatalf("unexpected hosts: %v", cfg.Hosts)
	}
	if cfg.Database.DSN != "sqlite3://test.db" {
		t.Fatalf("unexpected dsn: %s", cfg.Database.DSN)
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeTemp(t, `
name: default
port: 3000
`)

	t.Setenv("APP_NAME", "from-env")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_DEBUG", "true")
	t.Setenv("APP_WINDOW", "1m")
	t.Setenv("APP_HOSTS", "x.com, y.com,")
	t.Setenv("APP_MODEL", "fallback-model")
	t.Setenv("DATABASE_URL", "postgres://db")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.Name != "from-env" {
		t.Fatalf("expected 'from-env', got '%s'", cfg.Name)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected 9090, got %d", cfg.Port)
	}
	if !cfg.Debug {
		t.Fatal("expected debug to be true from env")
	}
	if cfg.Window != time.Minute {
		t.Fatalf("expected 1m, got %s", cfg.Window)
	}
	if strings.Join(cfg.Hosts, "|") != "x.com|y.com" {
		t.Fatalf("unexpected hosts: %v", cfg.Hosts)
	}
	if cfg.Model != "fallback-model" {
		t.Fatalf("expected second env name to apply, got %q", cfg.Model)
	}
	if cfg.Database.DSN != "postgres://db" {
		t.Fatalf("expected nested override, got %q", cfg.Database.DSN)
	}
}

func TestEnvOverride_FirstNameWins(t *testing.T) {
	t.Setenv("APP_MODEL_PRIMARY", "primary")
	t.Setenv("APP_MODEL", "secondary")

	var cfg testConfig
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "primary" {
		t.Fatalf("expected primary, got %q", cfg.Model)
	}
}

func TestEnvOverride_InvalidValue(t *testing.T) {
	t.Setenv("APP_WINDOW", "soon")
	var cfg testConfig
	if err := ApplyEnv(&cfg); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	t.Setenv("APP_PORT", "7070")
	cfg := testConfig{Name: "preset"}
	if err := LoadOrDefault("/nonexistent/config.yaml", &cfg); err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Name != "preset" {
		t.Fatalf("expected preset name to survive, got '%s'", cfg.Name)
	}
	if cfg.Port != 7070 {
		t.Fatalf("expected env override without a file, got %d", cfg.Port)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("EPIGRAM_TEST_DOTENV=loaded\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EPIGRAM_TEST_DOTENV", "")
	os.Unsetenv("EPIGRAM_TEST_DOTENV")

	if err := LoadDotEnv(path, "/nonexistent/.env"); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("EPIGRAM_TEST_DOTENV"); got != "loaded" {
		t.Fatalf("expected value from .env, got %q", got)
	}
}
