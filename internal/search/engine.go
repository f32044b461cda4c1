// Package search implements hybrid note retrieval: vector similarity and
// keyword relevance fused with Reciprocal Rank Fusion (RRF).
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/noteintel/internal/apperr"
	"github.com/starford/noteintel/internal/metrics"
	"github.com/starford/noteintel/internal/models"
)

// VectorIndex embeds text and answers nearest-neighbour queries.
type VectorIndex interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Nearest(ctx context.Context, vec []float32, n int, filter *models.NoteFilter) ([]models.VectorHit, error)
}

// KeywordIndex answers full-text relevance queries.
type KeywordIndex interface {
	Search(ctx context.Context, query string, n int, filter *models.NoteFilter) ([]models.KeywordHit, error)
}

// HistoryRecorder persists executed searches.
type HistoryRecorder interface {
	RecordSearch(ctx context.Context, h models.SearchHistory) error
}

// Config tunes the engine. Non-positive RRFK, MaxCandidates and DefaultLimit
// fall back to DefaultConfig values. DefaultAlpha is used as given, so 0 means
// keyword-only ranking; only a value outside [0,1] falls back.
type Config struct {
	RRFK          float64 `yaml:"rrf_k"`
	MaxCandidates int     `yaml:"max_candidates"`
	DefaultAlpha  float64 `yaml:"default_alpha"`
	DefaultLimit  int     `yaml:"default_limit"`
}

// DefaultConfig returns the standard RRF constant, candidate cap, alpha and limit.
func DefaultConfig() Config {
	return Config{RRFK: 60, MaxCandidates: 100, DefaultAlpha: 0.7, DefaultLimit: 10}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RRFK <= 0 {
		c.RRFK = d.RRFK
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = d.MaxCandidates
	}
	if math.IsNaN(c.DefaultAlpha) || c.DefaultAlpha < 0 || c.DefaultAlpha > 1 {
		c.DefaultAlpha = d.DefaultAlpha
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = d.DefaultLimit
	}
	return c
}

// Engine runs single-mode and hybrid searches. It holds no per-query state
// and is safe for concurrent use.
type Engine struct {
	vector  VectorIndex
	keyword KeywordIndex
	history HistoryRecorder
	cfg     Config
	logger  *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithConfig overrides the engine tuning.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) { e.cfg = cfg.withDefaults() }
}

// WithHistory records every successful search.
func WithHistory(h HistoryRecorder) EngineOption {
	return func(e *Engine) { e.history = h }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine returns an Engine over the given indexes.
func NewEngine(v VectorIndex, k KeywordIndex, opts ...EngineOption) *Engine {
	e := &Engine{vector: v, keyword: k, cfg: DefaultConfig(), logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Option adjusts a single search call.
type Option func(*request)

type request struct {
	query   string
	alpha   float64
	limit   int
	filters models.SearchFilters
}

// WithAlpha sets the vector weight in [0,1]; 1-alpha goes to keyword relevance.
func WithAlpha(alpha float64) Option {
	return func(r *request) { r.alpha = alpha }
}

// WithLimit sets the maximum number of results.
func WithLimit(n int) Option {
	return func(r *request) { r.limit = n }
}

// WithFilters restricts results by tags, date range, score, type and user.
func WithFilters(f models.SearchFilters) Option {
	return func(r *request) { r.filters = f }
}

func (e *Engine) newRequest(op, query string, opts []Option) (request, error) {
	r := request{query: strings.TrimSpace(query), alpha: e.cfg.DefaultAlpha, limit: e.cfg.DefaultLimit}
	for _, o := range opts {
		o(&r)
	}
	switch {
	case r.query == "":
		return r, apperr.E(apperr.ErrInvalidQuery, op, "", errors.New("query is empty"))
	case math.IsNaN(r.alpha) || r.alpha < 0 || r.alpha > 1:
		return r, apperr.E(apperr.ErrInvalidQuery, op, "", fmt.Errorf("alpha %v outside [0,1]", r.alpha))
	case r.limit <= 0:
		return r, apperr.E(apperr.ErrInvalidQuery, op, "", fmt.Errorf("limit %d must be positive", r.limit))
	}
	return r, nil
}

// candidates is the per-branch fetch size: three times the limit, capped.
func (e *Engine) candidates(limit int) int {
	return min(limit*3, e.cfg.MaxCandidates)
}

// HybridSearch runs vector and keyword retrieval concurrently and fuses the
// two rankings with RRF. A failing branch degrades to an empty list; the
// call fails only when both branches fail.
func (e *Engine) HybridSearch(ctx context.Context, query string, opts ...Option) ([]models.SearchResult, error) {
	const op = "hybrid_search"
	req, err := e.newRequest(op, query, opts)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	n := e.candidates(req.limit)
	pre := req.filters.NoteFilter()

	var (
		vecResults, kwResults []models.SearchResult
		vecErr, kwErr         error
		g                     errgroup.Group
	)
	g.Go(func() error {
		vecResults, vecErr = e.vectorResults(ctx, req.query, n, &pre)
		return nil
	})
	g.Go(func() error {
		kwResults, kwErr = e.keywordResults(ctx, req.query, n, &pre)
		return nil
	})
	_ = g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, apperr.E(apperr.ErrSearchEngine, op, req.query, ctxErr)
	}
	if vecErr != nil && kwErr != nil {
		return nil, apperr.E(apperr.ErrSearchEngine, op, req.query, errors.Join(vecErr, kwErr))
	}
	if vecErr != nil {
		e.branchFailed("vector", req.query, vecErr)
	}
	if kwErr != nil {
		e.branchFailed("keyword", req.query, kwErr)
	}

	results := Fuse(vecResults, kwResults, req.alpha, e.cfg.RRFK)
	results = applyFilters(results, req.filters, req.limit)
	e.finish(ctx, "hybrid", req, results, start)
	return results, nil
}

// VectorSearch runs embedding similarity search alone.
func (e *Engine) VectorSearch(ctx context.Context, query string, opts ...Option) ([]models.SearchResult, error) {
	const op = "vector_search"
	req, err := e.newRequest(op, query, opts)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	pre := req.filters.NoteFilter()
	results, err := e.vectorResults(ctx, req.query, e.candidates(req.limit), &pre)
	if err != nil {
		return nil, apperr.E(apperr.ErrSearchIndex, op, req.query, err)
	}
	results = applyFilters(results, req.filters, req.limit)
	e.finish(ctx, "vector", req, results, start)
	return results, nil
}

// KeywordSearch runs full-text search alone.
func (e *Engine) KeywordSearch(ctx context.Context, query string, opts ...Option) ([]models.SearchResult, error) {
	const op = "keyword_search"
	req, err := e.newRequest(op, query, opts)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	pre := req.filters.NoteFilter()
	results, err := e.keywordResults(ctx, req.query, e.candidates(req.limit), &pre)
	if err != nil {
		return nil, apperr.E(apperr.ErrSearchIndex, op, req.query, err)
	}
	results = applyFilters(results, req.filters, req.limit)
	e.finish(ctx, "keyword", req, results, start)
	return results, nil
}

func (e *Engine) branchFailed(branch, query string, err error) {
	metrics.SearchBranchFailures.WithLabelValues(branch).Inc()
	e.logger.Warn("search: sub-search failed, continuing without it",
		slog.String("branch", branch),
		slog.String("query", query),
		slog.String("error", err.Error()))
}

func (e *Engine) finish(ctx context.Context, mode string, req request, results []models.SearchResult, start time.Time) {
	elapsed := time.Since(start)
	metrics.SearchDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	e.logger.Debug("search: done",
		slog.String("mode", mode),
		slog.String("query", req.query),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", elapsed))

	if e.history == nil {
		return
	}
	err := e.history.RecordSearch(ctx, models.SearchHistory{
		UserID:          req.filters.UserID,
		Query:           req.query,
		ResultsCount:    len(results),
		ExecutionTimeMS: float64(elapsed.Microseconds()) / 1000,
	})
	if err != nil {
		e.logger.Warn("search: record history failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) vectorResults(ctx context.Context, query string, n int, filter *models.NoteFilter) ([]models.SearchResult, error) {
	if e.vector == nil {
		return nil, errors.New("vector index not configured")
	}
	vec, err := e.vector.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := e.vector.Nearest(ctx, vec, n, filter)
	if err != nil {
		return nil, fmt.Errorf("nearest: %w", err)
	}
	out := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		score := clamp01(h.Score)
		out = append(out, models.SearchResult{
			NoteID:          h.NoteID,
			Title:           metaString(h.Metadata, "title"),
			Content:         metaString(h.Metadata, "content"),
			Score:           score,
			Source:          models.SourceVector,
			Metadata:        h.Metadata,
			CreatedAt:       metaTime(h.Metadata, "created_at"),
			RelevanceReason: fmt.Sprintf("semantic similarity %.3f", score),
		})
	}
	return out, nil
}

func (e *Engine) keywordResults(ctx context.Context, query string, n int, filter *models.NoteFilter) ([]models.SearchResult, error) {
	if e.keyword == nil {
		return nil, errors.New("keyword index not configured")
	}
	hits, err := e.keyword.Search(ctx, query, n, filter)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	out := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, models.SearchResult{
			NoteID:          h.NoteID,
			Title:           h.Title,
			Content:         h.Content,
			Score:           NormalizeBM25(h.BM25Score),
			Source:          models.SourceKeyword,
			Metadata:        h.Metadata,
			CreatedAt:       metaTime(h.Metadata, "created_at"),
			RelevanceReason: fmt.Sprintf("keyword match (bm25 %.2f)", h.BM25Score),
		})
	}
	return out, nil
}

// NormalizeBM25 maps a raw BM25 score onto [0,1].
func NormalizeBM25(score float64) float64 {
	return clamp01(score / 10)
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

func metaString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func metaTime(m map[string]any, key string) time.Time {
	switch v := m[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
