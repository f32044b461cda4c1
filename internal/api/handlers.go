package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/noteintel/internal/apperr"
	"github.com/starford/noteintel/internal/index"
	"github.com/starford/noteintel/internal/models"
	"github.com/starford/noteintel/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// noteID extracts the note id from the wildcard part of the URL.
// Supports encoded slashes (e.g. topics%2Fnote) and a trailing ".md".
func noteID(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	return index.NoteID(decoded)
}

func badRequest(format string, args ...any) error {
	return apperr.E(apperr.ErrInvalidQuery, "api", "", fmt.Errorf(format, args...))
}

func intParam(q url.Values, name string) (int, error) {
	s := q.Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, badRequest("%s must be an integer", name)
	}
	return n, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	s := q.Get(name)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, badRequest("%s must be a number", name)
	}
	return &f, nil
}

const dateOnly = "2006-01-02"

// timeParam parses an RFC3339 timestamp or a YYYY-MM-DD date. With endOfDay
// set, a bare date stands for the last instant of that day so an inclusive
// upper bound covers the whole day.
func timeParam(q url.Values, name string, endOfDay bool) (time.Time, error) {
	s := q.Get(name)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateOnly, s)
	if err != nil {
		return time.Time{}, badRequest("%s must be RFC3339 or YYYY-MM-DD", name)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

// contentTypeParam returns "" when the parameter is absent.
func contentTypeParam(q url.Values) (models.ContentType, error) {
	s := q.Get("content_type")
	if s == "" {
		return "", nil
	}
	ct, ok := models.LookupContentType(s)
	if !ok {
		return "", badRequest("content_type must be one of fleeting, permanent, link")
	}
	return ct, nil
}

// tagsParam accepts repeated ?tags=a&tags=b as well as ?tags=a,b.
func tagsParam(q url.Values) []string {
	var out []string
	for _, v := range q["tags"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes with optional filtering
//	@Tags			notes
//	@Produce		json
//	@Param			tag				query		string	false	"Filter by tag"
//	@Param			user_id			query		string	false	"Filter by owner"
//	@Param			content_type	query		string	false	"Filter by content type"
//	@Success		200				{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ct, err := contentTypeParam(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter := models.NoteFilter{
		UserID:      q.Get("user_id"),
		Tag:         q.Get("tag"),
		ContentType: ct,
	}
	items, err := h.svc.ListNotes(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("note id is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Search handles GET /api/search.
//
//	@Summary		Hybrid, vector or keyword search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q				query		string	true	"Search query"
//	@Param			mode			query		string	false	"Search mode"	Enums(hybrid, vector, keyword)
//	@Param			alpha			query		number	false	"Vector weight in [0,1]"
//	@Param			limit			query		int		false	"Max results"
//	@Param			tags			query		string	false	"Comma-separated tags, any must match"
//	@Param			content_type	query		string	false	"Content type"
//	@Param			user_id			query		string	false	"Owner"
//	@Param			min_score		query		number	false	"Minimum score"
//	@Param			from			query		string	false	"Created at or after"
//	@Param			to				query		string	false	"Created at or before"
//	@Success		200				{object}	SearchResponse
//	@Failure		400				{object}	errResponse
//	@Failure		502				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	results, err := h.svc.Search(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = noteservice.ModeHybrid
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Query:   req.Query,
		Mode:    mode,
		Results: results,
		Count:   len(results),
	})
}

func parseSearchRequest(q url.Values) (noteservice.SearchRequest, error) {
	req := noteservice.SearchRequest{
		Query: q.Get("q"),
		Mode:  q.Get("mode"),
	}
	if strings.TrimSpace(req.Query) == "" {
		return req, badRequest("query parameter 'q' is required")
	}

	var err error
	if req.Alpha, err = floatParam(q, "alpha"); err != nil {
		return req, err
	}
	if req.Limit, err = intParam(q, "limit"); err != nil {
		return req, err
	}
	minScore, err := floatParam(q, "min_score")
	if err != nil {
		return req, err
	}
	from, err := timeParam(q, "from", false)
	if err != nil {
		return req, err
	}
	to, err := timeParam(q, "to", true)
	if err != nil {
		return req, err
	}

	ct, err := contentTypeParam(q)
	if err != nil {
		return req, err
	}

	req.Filters = models.SearchFilters{
		Tags:        tagsParam(q),
		UserID:      q.Get("user_id"),
		ContentType: ct,
	}
	if minScore != nil {
		req.Filters.MinScore = *minScore
	}
	if !from.IsZero() || !to.IsZero() {
		req.Filters.DateRange = &models.DateRange{Start: from, End: to}
	}
	return req, nil
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the full link graph for visualisation
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	graph.Export
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	export, err := h.svc.ExportGraph(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

// GraphMetrics handles GET /api/graph/metrics.
func (h *Handler) GraphMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.GraphMetrics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Clusters handles GET /api/graph/clusters?min_size=N.
func (h *Handler) Clusters(w http.ResponseWriter, r *http.Request) {
	minSize, err := intParam(r.URL.Query(), "min_size")
	if err != nil {
		writeError(w, r, err)
		return
	}
	clusters, err := h.svc.Clusters(r.Context(), minSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clusters": clusters})
}

// CentralNotes handles GET /api/graph/central?top_n=N.
func (h *Handler) CentralNotes(w http.ResponseWriter, r *http.Request) {
	topN, err := intParam(r.URL.Query(), "top_n")
	if err != nil {
		writeError(w, r, err)
		return
	}
	notes, err := h.svc.CentralNotes(r.Context(), topN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

// ShortestPath handles GET /api/graph/path?from=A&to=B.
//
//	@Summary		Shortest link path between two notes
//	@Tags			graph
//	@Produce		json
//	@Param			from	query		string	true	"Source note id"
//	@Param			to		query		string	true	"Target note id"
//	@Success		200		{object}	PathResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/path [get]
func (h *Handler) ShortestPath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := index.NoteID(q.Get("from")), index.NoteID(q.Get("to"))
	if from == "" || to == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'from' and 'to' are required"))
		return
	}
	path, err := h.svc.ShortestPath(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := PathResponse{From: from, To: to, Path: path, Found: path != nil}
	if resp.Path == nil {
		resp.Path = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Bridges handles GET /api/graph/bridges?cluster_a=X&cluster_b=Y.
func (h *Handler) Bridges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b := q.Get("cluster_a"), q.Get("cluster_b")
	if a == "" || b == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'cluster_a' and 'cluster_b' are required"))
		return
	}
	minSize, err := intParam(q, "min_size")
	if err != nil {
		writeError(w, r, err)
		return
	}
	bridges, err := h.svc.Bridges(r.Context(), a, b, minSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bridges": bridges})
}

// ValidateLinks handles GET /api/links/validate.
//
//	@Summary		Validate every link in the note store
//	@Tags			links
//	@Produce		json
//	@Success		200	{object}	ValidationResponse
//	@Security		BearerAuth
//	@Router			/links/validate [get]
func (h *Handler) ValidateLinks(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ValidateLinks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidationResponse{LinkValidationResult: result, Healthy: result.IsHealthy()})
}

// ValidateNote handles GET /api/links/validate/*.
func (h *Handler) ValidateNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("note id is required"))
		return
	}
	report, err := h.svc.ValidateNote(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// MissingBidirectional handles GET /api/links/bidirectional.
func (h *Handler) MissingBidirectional(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.MissingBidirectional(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}

// RepairLinks handles POST /api/links/repair.
//
//	@Summary		Delete broken links and duplicate link rows
//	@Tags			links
//	@Produce		json
//	@Success		200	{object}	validator.RepairReport
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/repair [post]
func (h *Handler) RepairLinks(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.RepairLinks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// SuggestLinks handles GET /api/suggestions/*?max=N&min_similarity=S.
func (h *Handler) SuggestLinks(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("note id is required"))
		return
	}
	q := r.URL.Query()
	maxN, err := intParam(q, "max")
	if err != nil {
		writeError(w, r, err)
		return
	}
	minSim, err := floatParam(q, "min_similarity")
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.svc.SuggestLinks(r.Context(), id, maxN, minSim)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"note_id": id, "suggestions": out})
}

// SuggestByKeywords handles POST /api/suggestions/keywords.
//
//	@Summary		Suggest notes matching the keywords of a text
//	@Tags			suggestions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		KeywordSuggestRequest	true	"Text to match"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/suggestions/keywords [post]
func (h *Handler) SuggestByKeywords(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req KeywordSuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("body too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}
	out, err := h.svc.SuggestByKeywords(r.Context(), req.Text, index.NoteID(req.ExcludeNoteID), req.MaxSuggestions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}
