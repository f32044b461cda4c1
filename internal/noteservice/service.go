// Package noteservice is the application facade shared by the HTTP API, the
// MCP server and the CLI. It turns requests into calls on the search engine,
// graph builder, validator and suggestor.
package noteservice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/starford/noteintel/internal/apperr"
	"github.com/starford/noteintel/internal/graph"
	"github.com/starford/noteintel/internal/index"
	"github.com/starford/noteintel/internal/models"
	"github.com/starford/noteintel/internal/search"
	"github.com/starford/noteintel/internal/suggest"
	"github.com/starford/noteintel/internal/validator"
)

// Search modes.
const (
	ModeHybrid  = "hybrid"
	ModeVector  = "vector"
	ModeKeyword = "keyword"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	models.Note
	Outgoing  []string `json:"outgoing"`
	Backlinks []string `json:"backlinks"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Tags        models.Tags        `json:"tags"`
	ContentType models.ContentType `json:"content_type"`
	UserID      string             `json:"user_id"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// SearchRequest is one search call. Zero Alpha and Limit use engine defaults.
type SearchRequest struct {
	Query   string
	Mode    string
	Alpha   *float64
	Limit   int
	Filters models.SearchFilters
}

// Defaults holds the fallbacks applied when a caller leaves a knob unset.
type Defaults struct {
	MinClusterSize int
	TopN           int
	MaxSuggestions int
	MinSimilarity  float64
}

// RepairHook is called after every repair pass that removed links.
type RepairHook func(report *validator.RepairReport)

// Service coordinates the intelligence components over one note store.
type Service struct {
	db        *index.DB
	indexer   *index.Indexer
	engine    *search.Engine
	graph     *graph.Builder
	validator *validator.Validator
	suggestor *suggest.Suggestor
	defaults  Defaults
	onRepair  RepairHook
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithDefaults overrides the graph and suggestion defaults.
func WithDefaults(d Defaults) Option {
	return func(s *Service) { s.defaults = d }
}

// WithIndexer enables Sync.
func WithIndexer(ix *index.Indexer) Option {
	return func(s *Service) { s.indexer = ix }
}

// WithRepairHook registers a callback for completed repairs.
func WithRepairHook(h RepairHook) Option {
	return func(s *Service) { s.onRepair = h }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService wires the components around db, which serves as note store and
// keyword index.
func NewService(db *index.DB, engine *search.Engine, opts ...Option) *Service {
	s := &Service{
		db:     db,
		engine: engine,
		defaults: Defaults{
			MinClusterSize: graph.DefaultMinClusterSize,
			TopN:           graph.DefaultTopN,
			MaxSuggestions: suggest.DefaultMaxSuggestions,
			MinSimilarity:  suggest.DefaultMinSimilarity,
		},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.graph = graph.NewBuilder(db, s.logger)
	s.validator = validator.New(db, s.logger)
	s.suggestor = suggest.New(db, db, s.logger)
	return s
}

// Graph returns the underlying builder.
func (s *Service) Graph() *graph.Builder { return s.graph }

// Sync re-indexes the vault. It fails when no indexer is configured.
func (s *Service) Sync(ctx context.Context) (index.SyncStats, error) {
	if s.indexer == nil {
		return index.SyncStats{}, errors.New("noteservice: no indexer configured")
	}
	return s.indexer.Sync(ctx)
}

// ListNotes returns notes matching filter, ordered by id.
func (s *Service) ListNotes(ctx context.Context, filter models.NoteFilter) ([]NoteListItem, error) {
	notes, err := s.db.ListNotes(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]NoteListItem, len(notes))
	for i, n := range notes {
		items[i] = NoteListItem{
			ID:          n.ID,
			Title:       n.Title,
			Tags:        n.Tags,
			ContentType: n.ContentType,
			UserID:      n.UserID,
			UpdatedAt:   n.UpdatedAt,
		}
	}
	return items, nil
}

// GetNote returns a note with its outgoing targets and backlinks.
func (s *Service) GetNote(ctx context.Context, id string) (*NoteDetail, error) {
	n, err := s.db.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, apperr.E(apperr.ErrNotFound, "get_note", id, nil)
	}
	out, err := s.db.GetLinks(ctx, id, "")
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &NoteDetail{Note: *n, Outgoing: []string{}, Backlinks: nonNilSlice(bl)}
	seen := make(map[string]struct{}, len(out))
	for _, l := range out {
		if _, ok := seen[l.ToNoteID]; ok {
			continue
		}
		seen[l.ToNoteID] = struct{}{}
		d.Outgoing = append(d.Outgoing, l.ToNoteID)
	}
	return d, nil
}

// Search dispatches to the engine by mode; an empty mode means hybrid.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]models.SearchResult, error) {
	var opts []search.Option
	if req.Alpha != nil {
		opts = append(opts, search.WithAlpha(*req.Alpha))
	}
	if req.Limit != 0 {
		opts = append(opts, search.WithLimit(req.Limit))
	}
	opts = append(opts, search.WithFilters(req.Filters))

	var (
		results []models.SearchResult
		err     error
	)
	switch req.Mode {
	case "", ModeHybrid:
		results, err = s.engine.HybridSearch(ctx, req.Query, opts...)
	case ModeVector:
		results, err = s.engine.VectorSearch(ctx, req.Query, opts...)
	case ModeKeyword:
		results, err = s.engine.KeywordSearch(ctx, req.Query, opts...)
	default:
		return nil, apperr.E(apperr.ErrInvalidQuery, "search", req.Mode, nil)
	}
	if err != nil {
		return nil, err
	}
	return nonNilSlice(results), nil
}

// ExportGraph returns every node and edge for visualisation.
func (s *Service) ExportGraph(ctx context.Context) (*graph.Export, error) {
	return s.graph.Export(ctx)
}

func (s *Service) GraphMetrics(ctx context.Context) (graph.Metrics, error) {
	return s.graph.GraphMetrics(ctx)
}

// Clusters uses the configured minimum size when minSize is not positive.
func (s *Service) Clusters(ctx context.Context, minSize int) ([]graph.LinkCluster, error) {
	if minSize <= 0 {
		minSize = s.defaults.MinClusterSize
	}
	clusters, err := s.graph.FindClusters(ctx, minSize)
	return nonNilSlice(clusters), err
}

// CentralNotes uses the configured top N when topN is not positive.
func (s *Service) CentralNotes(ctx context.Context, topN int) ([]graph.CentralNote, error) {
	if topN <= 0 {
		topN = s.defaults.TopN
	}
	notes, err := s.graph.FindCentralNotes(ctx, topN)
	return nonNilSlice(notes), err
}

// ShortestPath returns nil, nil when no path exists.
func (s *Service) ShortestPath(ctx context.Context, from, to string) ([]string, error) {
	return s.graph.FindShortestPath(ctx, from, to)
}

// Bridges computes clusters and returns the bridge notes between two of them.
func (s *Service) Bridges(ctx context.Context, clusterA, clusterB string, minSize int) ([]graph.BridgeNote, error) {
	clusters, err := s.Clusters(ctx, minSize)
	if err != nil {
		return nil, err
	}
	bridges, err := s.graph.SuggestBridgeNotes(ctx, clusterA, clusterB, clusters)
	return nonNilSlice(bridges), err
}

// Ready reports the graph health check.
func (s *Service) Ready(ctx context.Context) map[string]any {
	return s.graph.HealthCheck(ctx)
}

func (s *Service) ValidateLinks(ctx context.Context) (*validator.LinkValidationResult, error) {
	return s.validator.ValidateAllLinks(ctx)
}

func (s *Service) ValidateNote(ctx context.Context, id string) (*validator.NoteLinkReport, error) {
	return s.validator.ValidateNoteLinks(ctx, id)
}

func (s *Service) MissingBidirectional(ctx context.Context) ([]validator.BidirectionalSuggestion, error) {
	out, err := s.validator.FindMissingBidirectionalLinks(ctx)
	return nonNilSlice(out), err
}

// RepairLinks runs a fresh validation and repairs what it found. A partial
// report is returned alongside any error.
func (s *Service) RepairLinks(ctx context.Context) (*validator.RepairReport, error) {
	result, err := s.validator.ValidateAllLinks(ctx)
	if err != nil {
		return nil, err
	}
	report, err := s.validator.RepairBrokenLinks(ctx, result)
	if report != nil && report.BrokenLinksRemoved+report.DuplicateLinksRemoved > 0 {
		s.logger.Info("noteservice: links repaired",
			slog.Int("broken", report.BrokenLinksRemoved),
			slog.Int("duplicates", report.DuplicateLinksRemoved))
		if s.onRepair != nil {
			s.onRepair(report)
		}
	}
	return report, err
}

// SuggestLinks applies configured defaults for non-positive arguments.
func (s *Service) SuggestLinks(ctx context.Context, id string, maxSuggestions int, minSimilarity *float64) ([]suggest.Suggestion, error) {
	if maxSuggestions <= 0 {
		maxSuggestions = s.defaults.MaxSuggestions
	}
	threshold := s.defaults.MinSimilarity
	if minSimilarity != nil {
		threshold = *minSimilarity
	}
	out, err := s.suggestor.SuggestLinksForNote(ctx, id, maxSuggestions, threshold)
	return nonNilSlice(out), err
}

func (s *Service) SuggestByKeywords(ctx context.Context, text, excludeID string, maxSuggestions int) ([]suggest.KeywordSuggestion, error) {
	if maxSuggestions <= 0 {
		maxSuggestions = s.defaults.MaxSuggestions
	}
	out, err := s.suggestor.SuggestByContentKeywords(ctx, text, excludeID, maxSuggestions)
	return nonNilSlice(out), err
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
