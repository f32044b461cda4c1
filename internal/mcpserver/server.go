// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes search, graph, validation and suggestion tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/noteintel/internal/index"
	"github.com/starford/noteintel/internal/models"
	"github.com/starford/noteintel/internal/noteservice"
)

const conventionsURI = "noteintel://vault-conventions"

// Server wraps the MCP server with note intelligence tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"noteintel",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("hybrid_search",
		mcp.WithDescription("Search notes by meaning and keywords. Vector and keyword rankings "+
			"are fused with Reciprocal Rank Fusion; mode selects a single branch instead."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("mode", mcp.Description("hybrid (default), vector or keyword")),
		mcp.WithNumber("alpha", mcp.Description("Vector weight in [0,1]; keyword weight is 1-alpha")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags; a result must carry at least one")),
		mcp.WithString("user_id", mcp.Description("Only notes owned by this user")),
		mcp.WithString("content_type", mcp.Description("fleeting, permanent or link")),
	), s.hybridSearch)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note with its outgoing links and backlinks."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id (vault path without .md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("find_central_notes",
		mcp.WithDescription("Rank notes by PageRank, betweenness and degree centrality."),
		mcp.WithNumber("top_n", mcp.Description("Number of notes to return")),
	), s.findCentralNotes)

	s.mcp.AddTool(mcp.NewTool("find_clusters",
		mcp.WithDescription("Find groups of connected notes, largest first."),
		mcp.WithNumber("min_size", mcp.Description("Minimum cluster size")),
	), s.findClusters)

	s.mcp.AddTool(mcp.NewTool("shortest_path",
		mcp.WithDescription("Find the shortest chain of links between two notes."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source note id")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target note id")),
	), s.shortestPath)

	s.mcp.AddTool(mcp.NewTool("graph_metrics",
		mcp.WithDescription("Summary statistics of the link graph."),
	), s.graphMetrics)

	s.mcp.AddTool(mcp.NewTool("validate_links",
		mcp.WithDescription("Report broken links, orphan notes, circular and duplicate links. "+
			"With note_id, report only the links around that note."),
		mcp.WithString("note_id", mcp.Description("Optional note id")),
	), s.validateLinks)

	s.mcp.AddTool(mcp.NewTool("suggest_links",
		mcp.WithDescription("Suggest notes that the given note could link to, by shared title terms, keywords and tags."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Source note id")),
		mcp.WithNumber("max_suggestions", mcp.Description("Maximum number of suggestions")),
		mcp.WithNumber("min_similarity", mcp.Description("Minimum similarity in [0,1]")),
	), s.suggestLinks)

	s.mcp.AddTool(mcp.NewTool("suggest_by_keywords",
		mcp.WithDescription("Suggest existing notes matching the keywords of a draft text."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Draft text")),
		mcp.WithString("exclude_note_id", mcp.Description("Note to leave out of the results")),
		mcp.WithNumber("max_suggestions", mcp.Description("Maximum number of suggestions")),
	), s.suggestByKeywords)

	s.mcp.AddResource(
		mcp.NewResource(conventionsURI, "Vault Conventions",
			mcp.WithResourceDescription("How notes, links and attributes are read from Markdown files."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readConventionsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// number returns a numeric argument and whether it was present.
func number(req mcp.CallToolRequest, name string) (float64, bool) {
	v, ok := req.GetArguments()[name].(float64)
	return v, ok
}

func (s *Server) hybridSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sr := noteservice.SearchRequest{
		Query: query,
		Mode:  req.GetString("mode", ""),
		Filters: models.SearchFilters{
			UserID: req.GetString("user_id", ""),
		},
	}
	if a, ok := number(req, "alpha"); ok {
		sr.Alpha = &a
	}
	if l, ok := number(req, "limit"); ok {
		sr.Limit = int(l)
	}
	for _, t := range strings.Split(req.GetString("tags", ""), ",") {
		if t = strings.TrimSpace(t); t != "" {
			sr.Filters.Tags = append(sr.Filters.Tags, t)
		}
	}
	if s := req.GetString("content_type", ""); s != "" {
		ct, ok := models.LookupContentType(s)
		if !ok {
			return mcp.NewToolResultError("content_type must be one of fleeting, permanent, link"), nil
		}
		sr.Filters.ContentType = ct
	}

	results, err := s.svc.Search(ctx, sr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, index.NoteID(id))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) findCentralNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topN, _ := number(req, "top_n")
	notes, err := s.svc.CentralNotes(ctx, int(topN))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(notes)
}

func (s *Server) findClusters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	minSize, _ := number(req, "min_size")
	clusters, err := s.svc.Clusters(ctx, int(minSize))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(clusters)
}

func (s *Server) shortestPath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := s.svc.ShortestPath(ctx, index.NoteID(from), index.NoteID(to))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if path == nil {
		return mcp.NewToolResultText("no path found"), nil
	}
	return mcp.NewToolResultText(strings.Join(path, " -> ")), nil
}

func (s *Server) graphMetrics(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, err := s.svc.GraphMetrics(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m)
}

func (s *Server) validateLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if id := req.GetString("note_id", ""); id != "" {
		report, err := s.svc.ValidateNote(ctx, index.NoteID(id))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(report)
	}
	result, err := s.svc.ValidateLinks(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) suggestLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	maxN, _ := number(req, "max_suggestions")
	var minSim *float64
	if v, ok := number(req, "min_similarity"); ok {
		minSim = &v
	}
	out, err := s.svc.SuggestLinks(ctx, index.NoteID(id), int(maxN), minSim)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (s *Server) suggestByKeywords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	maxN, _ := number(req, "max_suggestions")
	exclude := req.GetString("exclude_note_id", "")
	if exclude != "" {
		exclude = index.NoteID(exclude)
	}
	out, err := s.svc.SuggestByKeywords(ctx, text, exclude, int(maxN))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (s *Server) readConventionsResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      conventionsURI,
			MIMEType: "text/markdown",
			Text:     VaultConventions,
		},
	}, nil
}
