package topology

import (
	"fmt"

	"l2spf/switchctl"
)

// WeightMatrix is the static per-link cost configuration: a node list plus a
// square matrix where entry (i,j) > 0 is the cost of the link between node i
// and node j. It only overrides costs; the live link set still comes from
// discovery.
type WeightMatrix struct {
	index   map[switchctl.SwitchID]int
	weights [][]int
}

// NewWeightMatrix validates the node list against the matrix shape.
func NewWeightMatrix(nodes []string, weights [][]int) (*WeightMatrix, error) {
	if len(weights) != len(nodes) {
		return nil, fmt.Errorf("weight matrix has %d rows for %d nodes", len(weights), len(nodes))
	}
	index := make(map[switchctl.SwitchID]int, len(nodes))
	for i, node := range nodes {
		if len(weights[i]) != len(nodes) {
			return nil, fmt.Errorf("weight matrix row %d has %d columns for %d nodes", i, len(weights[i]), len(nodes))
		}
		index[switchctl.SwitchID(node)] = i
	}
	return &WeightMatrix{index: index, weights: weights}, nil
}

// Weight returns the configured cost for the pair, if any.
func (m *WeightMatrix) Weight(a, b switchctl.SwitchID) (int, bool) {
	if m == nil {
		return 0, false
	}
	i, okA := m.index[a]
	j, okB := m.index[b]
	if !okA || !okB {
		return 0, false
	}
	if w := m.weights[i][j]; w > 0 {
		return w, true
	}
	return 0, false
}

// Nodes returns the configured node list.
func (m *WeightMatrix) Nodes() []switchctl.SwitchID {
	if m == nil {
		return nil
	}
	nodes := make([]switchctl.SwitchID, 0, len(m.index))
	for node := range m.index {
		nodes = append(nodes, node)
	}
	return nodes
}
