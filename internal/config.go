package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/noteintel/internal/search"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Embedding providers.
const (
	EmbeddingHash   = "hash"
	EmbeddingOllama = "ollama"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Vault     VaultConfig       `yaml:"vault"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Search    SearchConfig      `yaml:"search"`
	Embedding EmbeddingConfig   `yaml:"embedding"`
	Graph     GraphConfig       `yaml:"graph"`
	Suggest   SuggestConfig     `yaml:"suggest"`
}

type validatable interface {
	Validate() error
}

// Validate validates every section, stopping at the first error.
func (c *Config) Validate() error {
	for _, section := range []validatable{
		&c.App, &c.Vault, &c.SQLite, &c.Auth, &c.Search, &c.Embedding, &c.Graph, &c.Suggest,
	} {
		if err := section.Validate(); err != nil {
			return err
		}
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

// VaultConfig points at the Markdown vault the note store is built from.
type VaultConfig struct {
	Path string `yaml:"path"`
	// DefaultUser owns notes without a "user" frontmatter key.
	DefaultUser string `yaml:"default_user"`
	Watch       bool   `yaml:"watch"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
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
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// SearchConfig tunes hybrid search.
type SearchConfig struct {
	RRFK          float64 `yaml:"rrf_k"`
	MaxCandidates int     `yaml:"max_candidates"`
	DefaultAlpha  float64 `yaml:"default_alpha"`
	DefaultLimit  int     `yaml:"default_limit"`
	// History persists every executed search in SQLite.
	History bool `yaml:"history"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RRFK, validation.Required, validation.Min(1.0)),
		validation.Field(&c.MaxCandidates, validation.Required, validation.Min(1), validation.Max(1000)),
		validation.Field(&c.DefaultAlpha, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.DefaultLimit, validation.Required, validation.Min(1)),
	)
}

// EngineConfig converts the section into search engine tuning.
func (c *SearchConfig) EngineConfig() search.Config {
	return search.Config{
		RRFK:          c.RRFK,
		MaxCandidates: c.MaxCandidates,
		DefaultAlpha:  c.DefaultAlpha,
		DefaultLimit:  c.DefaultLimit,
	}
}

// EmbeddingConfig selects how note and query embeddings are computed.
type EmbeddingConfig struct {
	Provider string        `yaml:"provider"`
	Dim      int           `yaml:"dim"`
	URL      string        `yaml:"url"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = EmbeddingHash
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(EmbeddingHash, EmbeddingOllama)),
		validation.Field(&c.Dim, validation.When(c.Provider == EmbeddingHash, validation.Required, validation.Min(8))),
		validation.Field(&c.URL, validation.When(c.Provider == EmbeddingOllama, validation.Required)),
		validation.Field(&c.Model, validation.When(c.Provider == EmbeddingOllama, validation.Required)),
	)
}

// GraphConfig holds defaults for graph analyses and live graph events.
type GraphConfig struct {
	MinClusterSize int `yaml:"min_cluster_size"`
	TopN           int `yaml:"top_n"`
	// EventThrottle bounds how often graph.updated is published.
	EventThrottle time.Duration `yaml:"event_throttle"`
}

// Validate validates the graph configuration.
func (c *GraphConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinClusterSize, validation.Required, validation.Min(1)),
		validation.Field(&c.TopN, validation.Required, validation.Min(1)),
		validation.Field(&c.EventThrottle, validation.Min(time.Duration(0))),
	)
}

// SuggestConfig holds link suggestion defaults.
type SuggestConfig struct {
	MaxSuggestions int     `yaml:"max_suggestions"`
	MinSimilarity  float64 `yaml:"min_similarity"`
}

// Validate validates the suggestion configuration.
func (c *SuggestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSuggestions, validation.Required, validation.Min(1)),
		validation.Field(&c.MinSimilarity, validation.Min(0.0), validation.Max(1.0)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	sc := search.DefaultConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:  "./vault",
			Watch: true,
		},
		SQLite: SQLiteConfig{
			Path: "./noteintel.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Search: SearchConfig{
			RRFK:          sc.RRFK,
			MaxCandidates: sc.MaxCandidates,
			DefaultAlpha:  sc.DefaultAlpha,
			DefaultLimit:  sc.DefaultLimit,
			History:       true,
		},
		Embedding: EmbeddingConfig{
			Provider: EmbeddingHash,
			Dim:      256,
			Timeout:  30 * time.Second,
		},
		Graph: GraphConfig{
			MinClusterSize: 3,
			TopN:           10,
			EventThrottle:  2 * time.Second,
		},
		Suggest: SuggestConfig{
			MaxSuggestions: 5,
			MinSimilarity:  0.1,
		},
	}
}
