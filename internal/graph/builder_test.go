package graph

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/noteintel/internal/apperr"
	"github.com/starford/noteintel/internal/testutil"
)

func newBuilder(s Store) *Builder {
	return NewBuilder(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBuildGraph_SkipsUnknownTargetsAndSelfLoops(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("a", "b", "lonely")
	s.Link("a", "b")
	s.Link("a", "b")
	s.Link("a", "a")
	s.Link("b", "ghost")

	b := newBuilder(s)
	gr, err := b.BuildGraph(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 3, gr.NodeCount())
	assert.Equal(t, 1, gr.EdgeCount())
	assert.Equal(t, [][2]string{{"a", "b"}}, gr.Edges())

	gr, err = b.BuildGraph(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, gr.Nodes())
}

func TestBuildGraph_EmptyStore(t *testing.T) {
	gr, err := newBuilder(testutil.NewMemStore()).BuildGraph(context.Background(), true)
	require.NoError(t, err)
	assert.Zero(t, gr.NodeCount())
	assert.Zero(t, gr.EdgeCount())
}

func TestBuildGraph_StoreFailure(t *testing.T) {
	s := testutil.NewMemStore()
	s.Err = errors.New("db gone")
	b := newBuilder(s)

	_, err := b.BuildGraph(context.Background(), true)
	require.ErrorIs(t, err, apperr.ErrLinkGraph)
	assert.False(t, b.Initialized())

	h := b.HealthCheck(context.Background())
	assert.Equal(t, "unhealthy", h["status"])
	assert.Equal(t, false, h["initialized"])
}

func TestInitialize_Idempotent(t *testing.T) {
	b := newBuilder(testutil.NewMemStore())
	require.NoError(t, b.Initialize(context.Background()))
	require.NoError(t, b.Initialize(context.Background()))
	assert.True(t, b.Initialized())
}

func TestFindShortestPath(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("A", "B", "C", "D", "X")
	s.Link("A", "B")
	s.Link("B", "C")
	s.Link("D", "C")
	b := newBuilder(s)
	ctx := context.Background()

	path, err := b.FindShortestPath(ctx, "A", "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, path)

	path, err = b.FindShortestPath(ctx, "A", "X")
	require.NoError(t, err)
	assert.Nil(t, path)

	path, err = b.FindShortestPath(ctx, "A", "missing")
	require.NoError(t, err)
	assert.Nil(t, path)

	// No directed path from C back to A: fall back to the undirected view.
	path, err = b.FindShortestPath(ctx, "C", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, path)

	path, err = b.FindShortestPath(ctx, "A", "D")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, path)
}

func TestFindShortestPath_CycleAndSeparateComponent(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("A", "B", "C", "D", "E")
	s.Link("A", "B")
	s.Link("B", "C")
	s.Link("C", "A")
	s.Link("D", "E")
	b := newBuilder(s)
	ctx := context.Background()

	path, err := b.FindShortestPath(ctx, "A", "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, path)

	path, err = b.FindShortestPath(ctx, "A", "D")
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestFindShortestPath_DeterministicTies(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("s", "m1", "m2", "t")
	s.Link("s", "m2")
	s.Link("s", "m1")
	s.Link("m2", "t")
	s.Link("m1", "t")

	path, err := newBuilder(s).FindShortestPath(context.Background(), "s", "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"s", "m1", "t"}, path)
}

func TestFindClusters_TriangleDensity(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("a", "b", "c", "d", "e", "solo")
	s.Link("a", "b")
	s.Link("b", "c")
	s.Link("c", "a")
	s.Link("d", "e")

	clusters, err := newBuilder(s).FindClusters(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	c := clusters[0]
	assert.Equal(t, "cluster_0", c.ClusterID)
	assert.Equal(t, []string{"a", "b", "c"}, c.Notes)
	assert.Equal(t, 3, c.Size)
	assert.InDelta(t, 1.0, c.Density, 1e-9)
	assert.Equal(t, "a", c.RepresentativeNote)
	assert.Equal(t, 2.0, c.CentralityScores["b"])
}

func TestFindClusters_OrderingAndRepresentative(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("p1", "p2", "p3", "q1", "q2", "q3", "q4")
	s.Link("p1", "p2")
	s.Link("p2", "p3")
	s.Link("q1", "q3")
	s.Link("q2", "q3")
	s.Link("q4", "q3")

	clusters, err := newBuilder(s).FindClusters(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, "q3", clusters[0].RepresentativeNote)
	assert.Equal(t, 4, clusters[0].Size)
	assert.InDelta(t, 0.5, clusters[0].Density, 1e-9)
	assert.Equal(t, "cluster_1", clusters[1].ClusterID)
	assert.Equal(t, "p2", clusters[1].RepresentativeNote)
}

func TestFindCentralNotes(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("hub", "a", "b", "c", "d")
	for _, id := range []string{"a", "b", "c", "d"} {
		s.Link(id, "hub")
	}
	s.Link("hub", "a")

	central, err := newBuilder(s).FindCentralNotes(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, central, 2)
	assert.Equal(t, "hub", central[0].NoteID)
	assert.Equal(t, 4, central[0].InDegree)
	assert.Equal(t, 1, central[0].OutDegree)
	assert.InDelta(t, 5.0/4.0, central[0].DegreeCentrality, 1e-9)
	assert.InDelta(t, central[0].PageRank+central[0].Betweenness+central[0].DegreeCentrality, central[0].CentralityScore, 1e-9)
	assert.GreaterOrEqual(t, central[0].CentralityScore, central[1].CentralityScore)
}

func TestFindCentralNotes_Empty(t *testing.T) {
	central, err := newBuilder(testutil.NewMemStore()).FindCentralNotes(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, central)
}

func TestGraphMetrics(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("a", "b", "c", "d")
	s.Link("a", "b")
	s.Link("b", "c")
	s.Link("c", "a")

	m, err := newBuilder(s).GraphMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, m.NodeCount)
	assert.Equal(t, 3, m.EdgeCount)
	assert.InDelta(t, 3.0/12.0, m.Density, 1e-9)
	assert.Equal(t, 2, m.ConnectedComponents)
	assert.InDelta(t, 0.75, m.AverageClustering, 1e-9)
	assert.InDelta(t, 1.5, m.AverageDegree, 1e-9)
	assert.InDelta(t, 0.75, m.AverageInDegree, 1e-9)
}

func TestGraphMetrics_Empty(t *testing.T) {
	m, err := newBuilder(testutil.NewMemStore()).GraphMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Metrics{}, m)
}

func TestSuggestBridgeNotes(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("a1", "a2", "b1", "b2", "bridge", "weak", "half")
	s.Link("bridge", "a1")
	s.Link("a2", "bridge")
	s.Link("bridge", "b1")
	s.Link("weak", "a1")
	s.Link("b2", "weak")
	s.Link("half", "a2")

	clusters := []LinkCluster{
		{ClusterID: "x", Notes: []string{"a1", "a2"}},
		{ClusterID: "y", Notes: []string{"b1", "b2"}},
	}
	b := newBuilder(s)

	bridges, err := b.SuggestBridgeNotes(context.Background(), "x", "y", clusters)
	require.NoError(t, err)
	require.Len(t, bridges, 2)
	assert.Equal(t, "bridge", bridges[0].NoteID)
	assert.Equal(t, 3, bridges[0].TotalConnections)
	assert.Equal(t, "weak", bridges[1].NoteID)

	bridges, err = b.SuggestBridgeNotes(context.Background(), "x", "nope", clusters)
	require.NoError(t, err)
	assert.Empty(t, bridges)
}

func TestHealthCheckAndExport(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("a", "b")
	s.Link("a", "b")
	b := newBuilder(s)

	h := b.HealthCheck(context.Background())
	assert.Equal(t, "healthy", h["status"])
	assert.Equal(t, 2, h["graph_nodes"])
	assert.Equal(t, 1, h["graph_edges"])

	exp, err := b.Export(context.Background())
	require.NoError(t, err)
	assert.Len(t, exp.Nodes, 2)
	assert.Equal(t, []ExportEdge{{Source: "a", Target: "b"}}, exp.Edges)
	assert.Equal(t, 1, exp.Nodes[0].Degree)
}
