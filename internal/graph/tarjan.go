package graph

import "sort"

// tarjanFrame is one explicit work-stack entry, replacing a recursive
// strongconnect(v) call: the node under expansion and the index of the
// next edge of that node still to examine.
type tarjanFrame struct {
	node    int64
	edgeIdx int
}

// DetectCycles runs Tarjan's strongly-connected-components algorithm,
// iteratively (an explicit stack, no recursion, so there is no
// recursion-depth ceiling on large graphs), over the given adjacency
// snapshot. It emits every SCC of size >= 2; single-node components are
// not cycles and are dropped. SCCs and the node order within each are
// reported in the order they were discovered/popped, per the contract.
func DetectCycles(adjacency AdjacencySnapshot) [][]int64 {
	nodes := collectNodes(adjacency)

	index := make(map[int64]int, len(nodes))
	lowlink := make(map[int64]int, len(nodes))
	onStack := make(map[int64]bool, len(nodes))
	var stack []int64
	var sccs [][]int64
	nextIndex := 0

	for _, start := range nodes {
		if _, seen := index[start]; seen {
			continue
		}
		strongconnect(start, adjacency, index, lowlink, onStack, &stack, &nextIndex, &sccs)
	}

	result := make([][]int64, 0, len(sccs))
	for _, scc := range sccs {
		if len(scc) >= 2 {
			result = append(result, scc)
		}
	}
	return result
}

func strongconnect(
	root int64,
	adjacency AdjacencySnapshot,
	index, lowlink map[int64]int,
	onStack map[int64]bool,
	stack *[]int64,
	nextIndex *int,
	sccs *[][]int64,
) {
	work := []*tarjanFrame{{node: root}}
	index[root] = *nextIndex
	lowlink[root] = *nextIndex
	*nextIndex++
	*stack = append(*stack, root)
	onStack[root] = true

	for len(work) > 0 {
		frame := work[len(work)-1]
		v := frame.node
		neighbors := adjacency[v]

		if frame.edgeIdx < len(neighbors) {
			w := neighbors[frame.edgeIdx]
			frame.edgeIdx++

			if _, seen := index[w]; !seen {
				index[w] = *nextIndex
				lowlink[w] = *nextIndex
				*nextIndex++
				*stack = append(*stack, w)
				onStack[w] = true
				work = append(work, &tarjanFrame{node: w})
				continue
			}
			if onStack[w] {
				if index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
			continue
		}

		// All of v's edges examined; pop and propagate lowlink to parent.
		work = work[:len(work)-1]
		if len(work) > 0 {
			parent := work[len(work)-1].node
			if lowlink[v] < lowlink[parent] {
				lowlink[parent] = lowlink[v]
			}
		}

		if lowlink[v] == index[v] {
			var component []int64
			for {
				n := len(*stack) - 1
				w := (*stack)[n]
				*stack = (*stack)[:n]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			*sccs = append(*sccs, component)
		}
	}
}

// collectNodes returns every node that appears as a source or a target,
// in a stable order so repeated calls over the same snapshot traverse
// roots in the same sequence.
func collectNodes(adjacency AdjacencySnapshot) []int64 {
	seen := make(map[int64]bool)
	var nodes []int64
	for source, targets := range adjacency {
		if !seen[source] {
			seen[source] = true
			nodes = append(nodes, source)
		}
		for _, t := range targets {
			if !seen[t] {
				seen[t] = true
				nodes = append(nodes, t)
			}
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}
