package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/starford/noteintel/internal/apperr"
	"github.com/starford/noteintel/internal/metrics"
	"github.com/starford/noteintel/internal/models"
)

// Store is the note-store subset the builder reads.
type Store interface {
	ListNotes(ctx context.Context, filter models.NoteFilter) ([]models.Note, error)
	GetLinks(ctx context.Context, from, to string) ([]models.Link, error)
	CountNotes(ctx context.Context) (int, error)
}

const (
	DefaultMinClusterSize = 3
	DefaultTopN           = 10
	pageRankDamping       = 0.85
	pageRankTolerance     = 1e-6
)

// Builder rebuilds the graph from the store on every call. It keeps no
// graph between calls, so results always reflect the current store.
type Builder struct {
	store       Store
	logger      *slog.Logger
	initialized atomic.Bool
}

// NewBuilder returns a Builder over store.
func NewBuilder(store Store, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: store, logger: logger}
}

// Initialize checks that the store is reachable. It is idempotent and is
// called lazily by every other operation.
func (b *Builder) Initialize(ctx context.Context) error {
	if b.initialized.Load() {
		return nil
	}
	if _, err := b.store.CountNotes(ctx); err != nil {
		return apperr.E(apperr.ErrLinkGraph, "initialize", "", err)
	}
	if b.initialized.CompareAndSwap(false, true) {
		b.logger.Info("graph: builder initialized")
	}
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (b *Builder) Initialized() bool { return b.initialized.Load() }

// BuildGraph loads every note and link into a fresh Graph. With
// includeOrphans=false, notes without any edge are left out.
func (b *Builder) BuildGraph(ctx context.Context, includeOrphans bool) (*Graph, error) {
	const op = "build_graph"
	if err := b.Initialize(ctx); err != nil {
		return nil, err
	}
	start := time.Now()

	notes, err := b.store.ListNotes(ctx, models.NoteFilter{})
	if err != nil {
		return nil, apperr.E(apperr.ErrLinkGraph, op, "notes", err)
	}
	links, err := b.store.GetLinks(ctx, "", "")
	if err != nil {
		return nil, apperr.E(apperr.ErrLinkGraph, op, "links", err)
	}

	gr := newGraph(notes, links, includeOrphans)

	metrics.GraphBuildDuration.Observe(time.Since(start).Seconds())
	metrics.GraphNodes.Set(float64(gr.NodeCount()))
	metrics.GraphEdges.Set(float64(gr.EdgeCount()))
	b.logger.Debug("graph: built",
		slog.Int("nodes", gr.NodeCount()),
		slog.Int("edges", gr.EdgeCount()),
		slog.Duration("elapsed", time.Since(start)))
	return gr, nil
}

// LinkCluster is one weakly connected group of notes.
type LinkCluster struct {
	ClusterID          string             `json:"cluster_id"`
	Notes              []string           `json:"notes"`
	CentralityScores   map[string]float64 `json:"centrality_scores"`
	Size               int                `json:"size"`
	Density            float64            `json:"density"`
	RepresentativeNote string             `json:"representative_note"`
}

// FindClusters returns weakly connected components with at least
// minClusterSize members (DefaultMinClusterSize when <= 0), largest first.
// Density is measured on the undirected projection, so a complete
// component has density 1.0. Member centrality is the in-cluster degree.
func (b *Builder) FindClusters(ctx context.Context, minClusterSize int) ([]LinkCluster, error) {
	if minClusterSize <= 0 {
		minClusterSize = DefaultMinClusterSize
	}
	gr, err := b.BuildGraph(ctx, true)
	if err != nil {
		return nil, err
	}

	clusters := []LinkCluster{}
	for _, comp := range topo.ConnectedComponents(gr.undirected()) {
		if len(comp) < minClusterSize {
			continue
		}
		members := make([]string, len(comp))
		for i, n := range comp {
			members[i] = gr.idOf(n)
		}
		sort.Strings(members)
		clusters = append(clusters, gr.cluster(members))
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Size != clusters[j].Size {
			return clusters[i].Size > clusters[j].Size
		}
		return clusters[i].Notes[0] < clusters[j].Notes[0]
	})
	for i := range clusters {
		clusters[i].ClusterID = fmt.Sprintf("cluster_%d", i)
	}
	return clusters, nil
}

func (gr *Graph) cluster(members []string) LinkCluster {
	in := make(map[string]struct{}, len(members))
	for _, m := range members {
		in[m] = struct{}{}
	}

	scores := make(map[string]float64, len(members))
	undirectedEdges := 0
	rep, best := "", -1.0
	for _, m := range members {
		deg := 0
		for _, v := range gr.succ[m] {
			if _, ok := in[v]; ok {
				deg++
			}
		}
		for _, v := range gr.pred[m] {
			if _, ok := in[v]; ok {
				deg++
			}
		}
		for _, v := range gr.Neighbors(m) {
			if _, ok := in[v]; ok && m < v {
				undirectedEdges++
			}
		}
		scores[m] = float64(deg)
		if float64(deg) > best {
			rep, best = m, float64(deg)
		}
	}

	n := len(members)
	density := 0.0
	if n > 1 {
		density = 2 * float64(undirectedEdges) / float64(n*(n-1))
	}
	return LinkCluster{
		Notes:              members,
		CentralityScores:   scores,
		Size:               n,
		Density:            density,
		RepresentativeNote: rep,
	}
}

// CentralNote is a note ranked by combined structural importance.
type CentralNote struct {
	NoteID           string  `json:"note_id"`
	Title            string  `json:"title"`
	CentralityScore  float64 `json:"centrality_score"`
	PageRank         float64 `json:"pagerank"`
	Betweenness      float64 `json:"betweenness"`
	DegreeCentrality float64 `json:"degree_centrality"`
	InDegree         int     `json:"in_degree"`
	OutDegree        int     `json:"out_degree"`
}

// FindCentralNotes ranks notes by PageRank + normalised betweenness +
// degree centrality and returns the first topN (DefaultTopN when <= 0).
func (b *Builder) FindCentralNotes(ctx context.Context, topN int) ([]CentralNote, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	gr, err := b.BuildGraph(ctx, true)
	if err != nil {
		return nil, err
	}
	n := gr.NodeCount()
	if n == 0 {
		return []CentralNote{}, nil
	}

	pr := network.PageRankSparse(gr.g, pageRankDamping, pageRankTolerance)
	bc := network.Betweenness(gr.g)

	betweenScale, degreeScale := 0.0, 0.0
	if n > 2 {
		betweenScale = 1 / float64((n-1)*(n-2))
	}
	if n > 1 {
		degreeScale = 1 / float64(n-1)
	}

	out := make([]CentralNote, 0, n)
	for i, id := range gr.ids {
		nid := int64(i)
		in, outDeg := gr.InDegree(id), gr.OutDegree(id)
		c := CentralNote{
			NoteID:           id,
			Title:            gr.notes[id].Title,
			PageRank:         pr[nid],
			Betweenness:      bc[nid] * betweenScale,
			DegreeCentrality: float64(in+outDeg) * degreeScale,
			InDegree:         in,
			OutDegree:        outDeg,
		}
		c.CentralityScore = c.PageRank + c.Betweenness + c.DegreeCentrality
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CentralityScore != out[j].CentralityScore {
			return out[i].CentralityScore > out[j].CentralityScore
		}
		return out[i].NoteID < out[j].NoteID
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

// FindShortestPath returns the note ids on a shortest path from → to,
// following link direction first and falling back to the undirected view.
// It returns nil when either note is unknown or no path exists.
func (b *Builder) FindShortestPath(ctx context.Context, from, to string) ([]string, error) {
	gr, err := b.BuildGraph(ctx, true)
	if err != nil {
		return nil, err
	}
	if !gr.HasNode(from) || !gr.HasNode(to) {
		return nil, nil
	}
	if path := bfs(from, to, gr.Successors); path != nil {
		return path, nil
	}
	return bfs(from, to, gr.Neighbors), nil
}

// bfs walks neighbours in the order next returns them, so ties between
// equal-length paths resolve to the lexicographically smallest ids.
func bfs(from, to string, next func(string) []string) []string {
	if from == to {
		return []string{from}
	}
	parent := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, v := range next(cur) {
			if _, seen := parent[v]; seen {
				continue
			}
			parent[v] = cur
			if v == to {
				path := []string{to}
				for p := cur; p != ""; p = parent[p] {
					path = append(path, p)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			queue = append(queue, v)
		}
	}
	return nil
}

// Metrics summarises the whole graph.
type Metrics struct {
	NodeCount           int     `json:"nodes"`
	EdgeCount           int     `json:"edges"`
	Density             float64 `json:"density"`
	ConnectedComponents int     `json:"connected_components"`
	AverageClustering   float64 `json:"average_clustering"`
	AverageDegree       float64 `json:"average_degree"`
	AverageInDegree     float64 `json:"average_in_degree"`
	AverageOutDegree    float64 `json:"average_out_degree"`
}

// GraphMetrics computes size, density, component count and degree
// statistics. Every field is zero for an empty graph.
func (b *Builder) GraphMetrics(ctx context.Context) (Metrics, error) {
	gr, err := b.BuildGraph(ctx, true)
	if err != nil {
		return Metrics{}, err
	}
	n, e := gr.NodeCount(), gr.EdgeCount()
	if n == 0 {
		return Metrics{}, nil
	}

	m := Metrics{
		NodeCount:           n,
		EdgeCount:           e,
		ConnectedComponents: len(topo.ConnectedComponents(gr.undirected())),
		AverageClustering:   gr.averageClustering(),
		AverageDegree:       2 * float64(e) / float64(n),
		AverageInDegree:     float64(e) / float64(n),
		AverageOutDegree:    float64(e) / float64(n),
	}
	if n > 1 {
		m.Density = float64(e) / float64(n*(n-1))
	}
	return m, nil
}

// averageClustering is the mean local clustering coefficient over the
// undirected projection; nodes with fewer than two neighbours count as 0.
func (gr *Graph) averageClustering() float64 {
	if len(gr.ids) == 0 {
		return 0
	}
	var total float64
	for _, id := range gr.ids {
		nb := gr.Neighbors(id)
		k := len(nb)
		if k < 2 {
			continue
		}
		links := 0
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				if gr.HasEdgeBetween(nb[i], nb[j]) {
					links++
				}
			}
		}
		total += 2 * float64(links) / float64(k*(k-1))
	}
	return total / float64(len(gr.ids))
}

// BridgeNote links two clusters without belonging to either.
type BridgeNote struct {
	NoteID           string `json:"note_id"`
	Title            string `json:"title"`
	ConnectionsA     int    `json:"cluster1_connections"`
	ConnectionsB     int    `json:"cluster2_connections"`
	TotalConnections int    `json:"total_connections"`
}

// SuggestBridgeNotes returns notes outside clusterA and clusterB that have
// at least one edge (either direction) into each. Unknown cluster ids yield
// an empty list.
func (b *Builder) SuggestBridgeNotes(ctx context.Context, clusterA, clusterB string, clusters []LinkCluster) ([]BridgeNote, error) {
	var a, c *LinkCluster
	for i := range clusters {
		switch clusters[i].ClusterID {
		case clusterA:
			a = &clusters[i]
		case clusterB:
			c = &clusters[i]
		}
	}
	if a == nil || c == nil {
		return []BridgeNote{}, nil
	}

	gr, err := b.BuildGraph(ctx, true)
	if err != nil {
		return nil, err
	}
	inA, inB := memberSet(a.Notes), memberSet(c.Notes)

	out := []BridgeNote{}
	for _, id := range gr.ids {
		if _, ok := inA[id]; ok {
			continue
		}
		if _, ok := inB[id]; ok {
			continue
		}
		ca, cb := 0, 0
		for _, v := range gr.Neighbors(id) {
			if _, ok := inA[v]; ok {
				ca++
			}
			if _, ok := inB[v]; ok {
				cb++
			}
		}
		if ca == 0 || cb == 0 {
			continue
		}
		out = append(out, BridgeNote{
			NoteID:           id,
			Title:            gr.notes[id].Title,
			ConnectionsA:     ca,
			ConnectionsB:     cb,
			TotalConnections: ca + cb,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalConnections != out[j].TotalConnections {
			return out[i].TotalConnections > out[j].TotalConnections
		}
		return out[i].NoteID < out[j].NoteID
	})
	return out, nil
}

func memberSet(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// HealthCheck reports builder state and current graph size. It never
// returns an error; failures are reported in the map.
func (b *Builder) HealthCheck(ctx context.Context) map[string]any {
	gr, err := b.BuildGraph(ctx, true)
	if err != nil {
		return map[string]any{
			"status":      "unhealthy",
			"error":       err.Error(),
			"initialized": false,
		}
	}
	return map[string]any{
		"status":      "healthy",
		"initialized": b.Initialized(),
		"graph_nodes": gr.NodeCount(),
		"graph_edges": gr.EdgeCount(),
	}
}

// ExportNode and ExportEdge are the visualisation payload.
type ExportNode struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Degree int    `json:"degree"`
}

type ExportEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type Export struct {
	Nodes []ExportNode `json:"nodes"`
	Edges []ExportEdge `json:"edges"`
}

// Export returns the full graph, orphans included, for visualisation.
func (b *Builder) Export(ctx context.Context) (*Export, error) {
	gr, err := b.BuildGraph(ctx, true)
	if err != nil {
		return nil, err
	}
	out := &Export{
		Nodes: make([]ExportNode, 0, gr.NodeCount()),
		Edges: make([]ExportEdge, 0, gr.EdgeCount()),
	}
	for _, id := range gr.ids {
		out.Nodes = append(out.Nodes, ExportNode{
			ID:     id,
			Title:  gr.notes[id].Title,
			Degree: gr.InDegree(id) + gr.OutDegree(id),
		})
	}
	for _, e := range gr.Edges() {
		out.Edges = append(out.Edges, ExportEdge{Source: e[0], Target: e[1]})
	}
	return out, nil
}
