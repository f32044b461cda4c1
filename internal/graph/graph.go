// Package graph builds the directed note-link graph and runs structural
// analyses over it: clusters, centrality, shortest paths and bridge notes.
package graph

import (
	"sort"

	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/starford/noteintel/internal/models"
)

// Graph is an immutable snapshot of notes (nodes) and links (edges).
// Parallel links collapse into one edge; self loops and links to unknown
// notes are dropped.
type Graph struct {
	g     *simple.DirectedGraph
	ids   []string
	index map[string]int64
	notes map[string]models.Note
	succ  map[string][]string
	pred  map[string][]string
	edges int
}

func newGraph(notes []models.Note, links []models.Link, includeOrphans bool) *Graph {
	known := make(map[string]models.Note, len(notes))
	for _, n := range notes {
		known[n.ID] = n
	}

	type pair struct{ from, to string }
	seen := make(map[pair]struct{}, len(links))
	var pairs []pair
	linked := make(map[string]struct{})
	for _, l := range links {
		if l.FromNoteID == l.ToNoteID {
			continue
		}
		if _, ok := known[l.FromNoteID]; !ok {
			continue
		}
		if _, ok := known[l.ToNoteID]; !ok {
			continue
		}
		p := pair{l.FromNoteID, l.ToNoteID}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		pairs = append(pairs, p)
		linked[p.from] = struct{}{}
		linked[p.to] = struct{}{}
	}

	ids := make([]string, 0, len(known))
	for id := range known {
		if _, ok := linked[id]; ok || includeOrphans {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	gr := &Graph{
		g:     simple.NewDirectedGraph(),
		ids:   ids,
		index: make(map[string]int64, len(ids)),
		notes: make(map[string]models.Note, len(ids)),
		succ:  make(map[string][]string),
		pred:  make(map[string][]string),
		edges: len(pairs),
	}
	for i, id := range ids {
		gr.index[id] = int64(i)
		gr.notes[id] = known[id]
		gr.g.AddNode(simple.Node(i))
	}
	for _, p := range pairs {
		gr.g.SetEdge(gr.g.NewEdge(simple.Node(gr.index[p.from]), simple.Node(gr.index[p.to])))
		gr.succ[p.from] = append(gr.succ[p.from], p.to)
		gr.pred[p.to] = append(gr.pred[p.to], p.from)
	}
	for _, m := range []map[string][]string{gr.succ, gr.pred} {
		for _, v := range m {
			sort.Strings(v)
		}
	}
	return gr
}

// NodeCount returns the number of notes in the graph.
func (gr *Graph) NodeCount() int { return len(gr.ids) }

// EdgeCount returns the number of distinct directed edges.
func (gr *Graph) EdgeCount() int { return gr.edges }

// Nodes returns note ids in ascending order.
func (gr *Graph) Nodes() []string { return append([]string(nil), gr.ids...) }

// HasNode reports whether id is a node.
func (gr *Graph) HasNode(id string) bool {
	_, ok := gr.index[id]
	return ok
}

// Note returns the note behind a node.
func (gr *Graph) Note(id string) (models.Note, bool) {
	n, ok := gr.notes[id]
	return n, ok
}

// Successors returns the targets of id's outgoing edges in id order.
func (gr *Graph) Successors(id string) []string { return gr.succ[id] }

// Predecessors returns the sources of id's incoming edges in id order.
func (gr *Graph) Predecessors(id string) []string { return gr.pred[id] }

func (gr *Graph) InDegree(id string) int  { return len(gr.pred[id]) }
func (gr *Graph) OutDegree(id string) int { return len(gr.succ[id]) }

// Neighbors returns the undirected neighbourhood of id in id order.
func (gr *Graph) Neighbors(id string) []string {
	set := make(map[string]struct{}, len(gr.succ[id])+len(gr.pred[id]))
	for _, v := range gr.succ[id] {
		set[v] = struct{}{}
	}
	for _, v := range gr.pred[id] {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// HasEdgeBetween reports an edge between a and b in either direction.
func (gr *Graph) HasEdgeBetween(a, b string) bool {
	ia, okA := gr.index[a]
	ib, okB := gr.index[b]
	return okA && okB && gr.g.HasEdgeBetween(ia, ib)
}

// Edges returns every directed edge as (from, to), sorted.
func (gr *Graph) Edges() [][2]string {
	out := make([][2]string, 0, gr.edges)
	for _, from := range gr.ids {
		for _, to := range gr.succ[from] {
			out = append(out, [2]string{from, to})
		}
	}
	return out
}

func (gr *Graph) undirected() gonumgraph.Undirected {
	return gonumgraph.Undirect{G: gr.g}
}

func (gr *Graph) idOf(n gonumgraph.Node) string {
	return gr.ids[n.ID()]
}
