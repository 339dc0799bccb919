package waypoint

import (
	"slices"
)

// Edges returns exactly one directed edge per connected pair of the
// drone's waypoints, regardless of which endpoint stores the connection.
//
// Pairs are visited in ascending index order, so a pair is first seen
// from its lower endpoint when that endpoint stores the edge, giving an
// arrow from the smaller to the larger index. A pair stored only on its
// higher endpoint is a return link and points from the larger index back
// to the smaller one. Connections to indices that don't exist are
// skipped.
func (g *Graph) Edges(droneID string) []Edge {
	own := g.drone(droneID)
	slices.SortStableFunc(own, byIndex)

	byIdx := make(map[float64]*Waypoint, len(own))
	for _, w := range own {
		if _, dup := byIdx[w.Index]; !dup {
			byIdx[w.Index] = w
		}
	}

	type pair struct{ lo, hi float64 }
	seen := make(map[pair]bool)

	var edges []Edge
	for _, w := range own {
		for _, c := range w.Connections {
			other, ok := byIdx[c]
			if !ok || other == w || c == w.Index {
				continue
			}
			p := pair{min(w.Index, c), max(w.Index, c)}
			if seen[p] {
				continue
			}
			seen[p] = true

			edges = append(edges, Edge{
				From:   w.Index,
				To:     other.Index,
				FromID: w.ID,
				ToID:   other.ID,
				Return: w.Index > other.Index,
			})
		}
	}
	return edges
}

// ResolveConnections returns every index adjacent to w within its drone:
// the indices w stores plus the indices of waypoints that store w's
// index, deduplicated and ascending.
func (g *Graph) ResolveConnections(w Waypoint) []float64 {
	adj := slices.Clone(w.Connections)
	for _, o := range g.drone(w.DroneID) {
		if o.ID != w.ID && o.ConnectedTo(w.Index) {
			adj = append(adj, o.Index)
		}
	}
	slices.Sort(adj)
	adj = slices.Compact(adj)
	if adj == nil {
		adj = []float64{}
	}
	return adj
}
