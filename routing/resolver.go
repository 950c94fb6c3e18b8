package routing

import (
	"sort"

	"l2spf/switchctl"
	"l2spf/topology"

	"golang.org/x/xerrors"
)

// ErrNoPath is returned when two switches are not connected in the
// current graph.
var ErrNoPath = xerrors.New("routing: no path between switches")

// Path is an ordered switch sequence from ingress to egress inclusive.
// Length 1 means ingress and egress are the same switch.
type Path []switchctl.SwitchID

// Equal reports whether two paths visit the same switches in the same order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// ComputePaths returns every simple path of minimum cumulative weight between
// src and dst over the given snapshot, sorted lexicographically so the same
// graph always yields the same ordering. Unconnected endpoints fail with
// ErrNoPath.
func ComputePaths(g *topology.Graph, src, dst switchctl.SwitchID) ([]Path, error) {
	if src == dst {
		return []Path{{src}}, nil
	}
	if !g.HasNode(src) || !g.HasNode(dst) {
		return nil, xerrors.Errorf("%s -> %s: %w", src, dst, ErrNoPath)
	}

	// Dijkstra, keeping every equal-cost predecessor of each node so the
	// full set of minimum-cost paths can be reconstructed.
	dist := map[switchctl.SwitchID]int{src: 0}
	preds := make(map[switchctl.SwitchID][]switchctl.SwitchID)
	visited := make(map[switchctl.SwitchID]bool)

	for {
		u, ok := nextUnvisited(dist, visited)
		if !ok {
			break
		}
		visited[u] = true
		if u == dst {
			break
		}

		for v, w := range g.Adj[u] {
			if visited[v] {
				continue
			}
			alt := dist[u] + w
			dv, seen := dist[v]
			switch {
			case !seen || alt < dv:
				dist[v] = alt
				preds[v] = []switchctl.SwitchID{u}
			case alt == dv:
				preds[v] = append(preds[v], u)
			}
		}
	}

	if !visited[dst] {
		return nil, xerrors.Errorf("%s -> %s: %w", src, dst, ErrNoPath)
	}

	paths := collectPaths(src, dst, preds)
	sort.Slice(paths, func(i, j int) bool { return lessPath(paths[i], paths[j]) })
	return paths, nil
}

// nextUnvisited scans for the unvisited node with minimum distance.
func nextUnvisited(dist map[switchctl.SwitchID]int, visited map[switchctl.SwitchID]bool) (switchctl.SwitchID, bool) {
	var best switchctl.SwitchID
	found := false
	for node, d := range dist {
		if visited[node] {
			continue
		}
		if !found || d < dist[best] || (d == dist[best] && node < best) {
			best = node
			found = true
		}
	}
	return best, found
}

// collectPaths backtracks from dst through the predecessor sets, emitting one
// path per predecessor chain reaching src.
func collectPaths(src, dst switchctl.SwitchID, preds map[switchctl.SwitchID][]switchctl.SwitchID) []Path {
	var paths []Path
	stack := []switchctl.SwitchID{dst}

	var walk func(node switchctl.SwitchID)
	walk = func(node switchctl.SwitchID) {
		if node == src {
			path := make(Path, len(stack))
			for i, sw := range stack {
				path[len(stack)-1-i] = sw
			}
			paths = append(paths, path)
			return
		}
		for _, pred := range preds[node] {
			stack = append(stack, pred)
			walk(pred)
			stack = stack[:len(stack)-1]
		}
	}
	walk(dst)

	return paths
}

func lessPath(a, b Path) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
