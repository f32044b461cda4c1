package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.AuthEnabled())
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, AuthModeDisabled, cfg.Mode)
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.AuthEnabled())
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is empty")
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	assert.Error(t, cfg.Validate())
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	assert.Error(t, cfg.Validate(), "full config validate should catch auth error")
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "./noteintel.db", cfg.SQLite.Path)

	ec := cfg.Search.EngineConfig()
	assert.Equal(t, 60, ec.RRFK)
	assert.Equal(t, 100, ec.MaxCandidates)
	assert.Equal(t, 10, ec.DefaultLimit)
}

func TestSearchConfig_AlphaOutOfRange(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Search.DefaultAlpha = 1.5
	assert.Error(t, cfg.Validate(), "alpha above 1 should fail validation")
}

func TestSearchConfig_ZeroAlphaPassesThrough(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Search.DefaultAlpha = 0
	require.NoError(t, cfg.Validate())
	assert.Zero(t, cfg.Search.EngineConfig().DefaultAlpha)
}

func TestEmbeddingConfig_OllamaRequiresURLAndModel(t *testing.T) {
	cfg := EmbeddingConfig{Provider: EmbeddingOllama}
	assert.Error(t, cfg.Validate(), "ollama without url should fail")

	cfg.URL = "http://localhost:11434"
	cfg.Model = "nomic-embed-text"
	assert.NoError(t, cfg.Validate())
}

func TestEmbeddingConfig_EmptyProviderDefaultsHash(t *testing.T) {
	cfg := EmbeddingConfig{Dim: 64}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, EmbeddingHash, cfg.Provider)
}

func TestSuggestConfig_SimilarityBounds(t *testing.T) {
	cfg := SuggestConfig{MaxSuggestions: 5, MinSimilarity: -0.1}
	assert.Error(t, cfg.Validate(), "negative min similarity should fail")
}

func TestGraphConfig_RequiresPositiveTopN(t *testing.T) {
	cfg := GraphConfig{MinClusterSize: 3}
	assert.Error(t, cfg.Validate(), "zero top_n should fail")
}
