package codebook

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCycle is returned when the codebook tree contains a parent cycle.
// No partial tree is safe to use, so Prepare fails outright.
var ErrCycle = errors.New("cycle detected in codebook tree")

// Prepare validates and flattens an unordered list of raw nodes into a
// depth-first, position-ordered list. For every node it assigns a corrected
// sequential position within its sibling group, the ancestor chain
// (nearest-last), direct child ids, the tree type, and the id/type of the
// phase it belongs to.
func Prepare(nodes []Node) ([]Node, error) {
	byID := make(map[int64]int, len(nodes))
	for i, n := range nodes {
		if _, ok := byID[n.ID]; ok {
			return nil, fmt.Errorf("duplicate node id %d", n.ID)
		}
		byID[n.ID] = i
	}

	// Group children under each parent, roots under key 0 with nil marker.
	children := make(map[int64][]int)
	var roots []int
	for i, n := range nodes {
		if n.ParentID == nil {
			roots = append(roots, i)
			continue
		}
		if _, ok := byID[*n.ParentID]; !ok {
			return nil, fmt.Errorf("node %d references unknown parent %d", n.ID, *n.ParentID)
		}
		children[*n.ParentID] = append(children[*n.ParentID], i)
	}

	sortByPosition := func(idx []int) {
		sort.SliceStable(idx, func(a, b int) bool {
			if nodes[idx[a]].Position != nodes[idx[b]].Position {
				return nodes[idx[a]].Position < nodes[idx[b]].Position
			}
			return nodes[idx[a]].ID < nodes[idx[b]].ID
		})
	}
	sortByPosition(roots)
	for _, idx := range children {
		sortByPosition(idx)
	}

	// Preallocated to full capacity so appends never reallocate: ParentPath
	// holds pointers into this slice.
	out := make([]Node, 0, len(nodes))
	visited := make(map[int64]bool, len(nodes))

	var walk func(idx int, parent *Node, path []*Node, position int) error
	walk = func(idx int, parent *Node, path []*Node, position int) error {
		n := nodes[idx]
		if visited[n.ID] {
			return fmt.Errorf("node %d revisited: %w", n.ID, ErrCycle)
		}
		visited[n.ID] = true

		parentType := Root
		if parent != nil {
			parentType = parent.Data.Type
		}
		if !IsValidParent(n.Data.Type, parentType) {
			return fmt.Errorf("node %d (%s): invalid parent type %s", n.ID, n.Data.Type, parentType)
		}

		n.Position = position
		n.TreeType = TreeTypeOf(n.Data.Type)
		n.ParentPath = append([]*Node(nil), path...)
		n.Children = nil
		for _, ci := range children[n.ID] {
			n.Children = append(n.Children, nodes[ci].ID)
		}

		if n.TreeType == TreePhase {
			n.PhaseID = n.ID
			n.PhaseType = phaseTypeOf(n.Data.Type)
		} else if parent != nil {
			n.PhaseID = parent.PhaseID
			n.PhaseType = parent.PhaseType
		}

		out = append(out, n)
		self := &out[len(out)-1]

		childPath := append(append([]*Node(nil), path...), self)
		for pos, ci := range children[n.ID] {
			if err := walk(ci, self, childPath, pos); err != nil {
				return err
			}
		}
		return nil
	}

	for pos, ri := range roots {
		if err := walk(ri, nil, nil, pos); err != nil {
			return nil, err
		}
	}

	// Nodes with a known parent that were never reached sit on a parent
	// cycle disconnected from any root.
	if len(out) != len(nodes) {
		return nil, fmt.Errorf("%d of %d nodes unreachable from root: %w", len(nodes)-len(out), len(nodes), ErrCycle)
	}

	return out, nil
}

// phaseTypeOf maps a phase node type to its phase type.
func phaseTypeOf(t NodeType) PhaseType {
	if traits[t].phases.survey {
		return PhaseSurvey
	}
	return PhaseAnnotation
}

// CreatesCycle reports whether re-parenting node checkID under newParentID
// would create a cycle. It walks up the proposed parent chain with a visited
// set; reaching checkID or an already-seen node means the move is unsafe.
func CreatesCycle(nodes []Node, checkID, newParentID int64) bool {
	parent := make(map[int64]*int64, len(nodes))
	for _, n := range nodes {
		parent[n.ID] = n.ParentID
	}

	seen := map[int64]bool{}
	cur := &newParentID
	for cur != nil {
		id := *cur
		if id == checkID {
			return true
		}
		if seen[id] {
			// Existing loop in the data; treat any move into it as unsafe.
			return true
		}
		seen[id] = true
		next, ok := parent[id]
		if !ok {
			return false
		}
		cur = next
	}
	return false
}
