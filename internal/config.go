package internal

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/taskboard/internal/minimap"
	"github.com/starford/taskboard/internal/search"
	"github.com/starford/taskboard/internal/taskservice"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vault   VaultConfig       `yaml:"vault"`
	Search  SearchConfig      `yaml:"search"`
	Auth    AuthConfig        `yaml:"auth"`
	Minimap MinimapConfig     `yaml:"minimap"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Vault.Validate(); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Minimap.Validate(); err != nil {
		return fmt.Errorf("minimap: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig locates the vault on disk and the task folder inside it.
type VaultConfig struct {
	Path      string `yaml:"path"`
	TasksRoot string `yaml:"tasks_root"`
}

// Validate validates the vault configuration. TasksRoot is normalised to a
// clean slash-separated relative path.
func (c *VaultConfig) Validate() error {
	if c.TasksRoot == "" {
		c.TasksRoot = "Tasks"
	}
	c.TasksRoot = strings.Trim(path.Clean("/"+c.TasksRoot), "/")
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.TasksRoot, validation.Required),
	)
}

// SearchConfig configures the SQLite search mirror. An empty path keeps the
// mirror in memory.
type SearchConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	if c.Path == "" {
		c.Path = search.MemoryDSN
	}
	return nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// MinimapConfig holds minimap defaults.
type MinimapConfig struct {
	DefaultGranularity string `yaml:"default_granularity"`
	CacheSize          int    `yaml:"cache_size"`
}

// Validate validates the minimap configuration.
func (c *MinimapConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultGranularity, validation.Required, validation.By(func(v any) error {
			_, err := minimap.ParseGranularity(v.(string))
			return err
		})),
		validation.Field(&c.CacheSize, validation.Min(0)),
	)
}

// Granularity returns the parsed default granularity, falling back to weeks.
func (c *MinimapConfig) Granularity() minimap.Granularity {
	g, err := minimap.ParseGranularity(c.DefaultGranularity)
	if err != nil {
		return minimap.Week
	}
	return g
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:      "./vault",
			TasksRoot: "Tasks",
		},
		Search: SearchConfig{
			Path: search.MemoryDSN,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Minimap: MinimapConfig{
			DefaultGranularity: "week",
			CacheSize:          taskservice.DefaultCacheSize,
		},
	}
}
