package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/noteintel/internal/index"
	"github.com/starford/noteintel/internal/noteservice"
	"github.com/starford/noteintel/internal/search"
	"github.com/starford/noteintel/internal/testutil"
	"github.com/starford/noteintel/internal/vector"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	vaultDir, vault := testutil.TestVault(t)
	notes := map[string]string{
		"hub.md":           "# Hub\nStart at [[topics/graphs]] or [[topics/search]].\n",
		"topics/graphs.md": "---\ntitle: Graphs\ntags: [math]\n---\nGraph clustering and centrality. See [[hub]].\n",
		"topics/search.md": "---\ntitle: Search\ntags: [ir]\n---\nRanking and retrieval. Also [[nowhere]].\n",
		"solo.md":          "# Solo\nGraph clustering notes without links.\n",
	}
	testutil.WriteNotes(t, vaultDir, notes)

	db := testutil.TestDB(t)
	embedder := vector.NewHashEmbedder(64)
	ix := index.NewIndexer(db, vault, index.WithEmbedder(embedder))
	_, err := ix.Sync(context.Background())
	require.NoError(t, err)
	engine := search.NewEngine(vector.NewIndex(embedder, db), db)
	return New(noteservice.NewService(db, engine), "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are invoked directly.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"hybrid_search":       srv.hybridSearch,
		"read_note":           srv.readNote,
		"find_central_notes":  srv.findCentralNotes,
		"find_clusters":       srv.findClusters,
		"shortest_path":       srv.shortestPath,
		"graph_metrics":       srv.graphMetrics,
		"validate_links":      srv.validateLinks,
		"suggest_links":       srv.suggestLinks,
		"suggest_by_keywords": srv.suggestByKeywords,
	}
	h, ok := handlers[name]
	require.True(t, ok, "unknown tool: %s", name)
	result, err := h(ctx, req)
	require.NoError(t, err, "tool %s", name)
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// decodeResult unmarshals a successful tool result's JSON text into v.
func decodeResult(t *testing.T, r *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, r.IsError, "tool error: %s", resultText(r))
	require.NoError(t, json.Unmarshal([]byte(resultText(r)), v))
}

func TestHybridSearch(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "hybrid_search", map[string]any{"query": "retrieval ranking", "limit": float64(2)})
	var results []map[string]any
	decodeResult(t, r, &results)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 2)
	assert.Equal(t, "topics/search", results[0]["note_id"])
}

func TestHybridSearch_InvalidInput(t *testing.T) {
	srv := testServer(t)

	assert.True(t, callTool(t, srv, "hybrid_search", map[string]any{}).IsError, "missing query")
	assert.True(t, callTool(t, srv, "hybrid_search", map[string]any{"query": "x", "alpha": float64(3)}).IsError, "alpha out of range")

	r := callTool(t, srv, "hybrid_search", map[string]any{"query": "graph", "content_type": "fleet"})
	assert.True(t, r.IsError)
	assert.Contains(t, resultText(r), "content_type must be one of fleeting, permanent, link")
}

func TestReadNote(t *testing.T) {
	srv := testServer(t)

	var note noteservice.NoteDetail
	decodeResult(t, callTool(t, srv, "read_note", map[string]any{"id": "topics/graphs.md"}), &note)
	assert.Equal(t, "topics/graphs", note.ID)
	assert.Equal(t, []string{"hub"}, note.Backlinks)

	assert.True(t, callTool(t, srv, "read_note", map[string]any{"id": "nope"}).IsError)
}

func TestShortestPath(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "shortest_path", map[string]any{"from": "topics/graphs", "to": "topics/search"})
	assert.Equal(t, "topics/graphs -> hub -> topics/search", resultText(r))

	r = callTool(t, srv, "shortest_path", map[string]any{"from": "hub", "to": "solo"})
	assert.Equal(t, "no path found", resultText(r))
}

func TestGraphTools(t *testing.T) {
	srv := testServer(t)

	var m map[string]any
	decodeResult(t, callTool(t, srv, "graph_metrics", nil), &m)
	assert.Equal(t, float64(4), m["nodes"])
	assert.Equal(t, float64(2), m["connected_components"])

	var clusters []map[string]any
	decodeResult(t, callTool(t, srv, "find_clusters", map[string]any{"min_size": float64(2)}), &clusters)
	require.Len(t, clusters, 1)
	assert.Equal(t, "hub", clusters[0]["representative_note"])

	var central []map[string]any
	decodeResult(t, callTool(t, srv, "find_central_notes", map[string]any{"top_n": float64(1)}), &central)
	require.Len(t, central, 1)
	assert.Equal(t, "hub", central[0]["note_id"])
}

func TestValidateLinks(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "validate_links", nil)
	assert.Contains(t, resultText(r), `"to_note_id": "nowhere"`)

	var report map[string]any
	decodeResult(t, callTool(t, srv, "validate_links", map[string]any{"note_id": "topics/search"}), &report)
	assert.Equal(t, float64(1), report["total_broken"])
}

func TestSuggestTools(t *testing.T) {
	srv := testServer(t)

	var out []map[string]any
	decodeResult(t, callTool(t, srv, "suggest_links", map[string]any{"note_id": "solo", "min_similarity": float64(0.01)}), &out)
	require.NotEmpty(t, out)
	assert.Equal(t, "topics/graphs", out[0]["note_id"])

	var kw []map[string]any
	decodeResult(t, callTool(t, srv, "suggest_by_keywords", map[string]any{"text": "centrality clustering", "exclude_note_id": "solo"}), &kw)
	require.Len(t, kw, 1)
	assert.Equal(t, "topics/graphs", kw[0]["note_id"])
}

func TestConventionsResource(t *testing.T) {
	srv := testServer(t)
	contents, err := srv.readConventionsResource(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, contents)
	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok, "unexpected resource contents: %+v", contents)
	assert.Contains(t, tc.Text, "[[target]]")
}
