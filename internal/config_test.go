package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/taskboard/internal/minimap"
	"github.com/starford/taskboard/internal/search"
	"github.com/starford/taskboard/internal/taskservice"
	pkgconfig "github.com/starford/taskboard/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Minimap.Granularity() != minimap.Week {
		t.Errorf("granularity = %v, want week", cfg.Minimap.Granularity())
	}
}

func TestVaultConfig_TasksRootNormalised(t *testing.T) {
	tests := map[string]string{
		"":              "Tasks",
		"/Work/Tasks/":  "Work/Tasks",
		"Work//Tasks":   "Work/Tasks",
		"../Tasks":      "Tasks",
		"Tasks/../Todo": "Todo",
	}
	for in, want := range tests {
		cfg := VaultConfig{Path: "/vault", TasksRoot: in}
		if err := cfg.Validate(); err != nil {
			t.Errorf("TasksRoot %q: %v", in, err)
			continue
		}
		if cfg.TasksRoot != want {
			t.Errorf("TasksRoot %q normalised to %q, want %q", in, cfg.TasksRoot, want)
		}
	}
}

func TestVaultConfig_PathRequired(t *testing.T) {
	cfg := VaultConfig{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty vault path should fail")
	}
}

func TestMinimapConfig_Granularity(t *testing.T) {
	cfg := MinimapConfig{DefaultGranularity: "fortnight"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown granularity should fail")
	}
	cfg = MinimapConfig{DefaultGranularity: "Month", CacheSize: 10}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("month should pass: %v", err)
	}
	if cfg.Granularity() != minimap.Month {
		t.Errorf("granularity = %v, want month", cfg.Granularity())
	}
	cfg = MinimapConfig{DefaultGranularity: "day", CacheSize: -1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative cache size should fail")
	}
}

func TestSearchConfig_DefaultsToMemory(t *testing.T) {
	cfg := SearchConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Path != search.MemoryDSN {
		t.Errorf("path = %q, want %q", cfg.Path, search.MemoryDSN)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("TASKBOARD_TEST_TOKEN", "from-env")
	file := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
vault:
  path: /srv/vault
  tasks_root: Work/Tasks
auth:
  mode: token
  token: ${TASKBOARD_TEST_TOKEN}
minimap:
  default_granularity: day
`
	if err := os.WriteFile(file, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(file, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.App.HTTP.Port != 9090 {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Vault.TasksRoot != "Work/Tasks" || cfg.Auth.Token != "from-env" {
		t.Errorf("vault = %+v, auth = %+v", cfg.Vault, cfg.Auth)
	}
	if cfg.Minimap.CacheSize != taskservice.DefaultCacheSize {
		t.Errorf("cache size default lost: %d", cfg.Minimap.CacheSize)
	}
}
