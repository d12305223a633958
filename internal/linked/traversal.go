package linked

import (
	"github.com/lawnchairsociety/roomweaver/internal/requirement"
	"github.com/zyedidia/generic/heap"
)

type label struct {
	node *Node
	req  requirement.Requirement
	seq  int
}

// TraversalRequires returns the weakest requirement under which end can be
// reached from start. Requirements already met by fwd (when non-nil) are
// dropped along the way, so the result names only what is missing. The
// search is label-correcting: each node keeps the requirements of the paths
// found to it that no other path dominates. The result is Impossible when
// no path exists, otherwise the Or of the surviving labels at end.
func TraversalRequires(start *Node, fwd *requirement.Capabilities, internalOnly bool, end *Node) requirement.Requirement {
	best := map[*Node][]requirement.Requirement{
		start: {requirement.Possible{}},
	}

	pq := heap.New[label](func(a, b label) bool {
		ca, cb := a.req.Complexity(), b.req.Complexity()
		if ca != cb {
			return ca < cb
		}
		return a.seq < b.seq
	})
	pq.Push(label{node: start, req: requirement.Possible{}})

	seq := 0
	for pq.Size() > 0 {
		cur, ok := pq.Pop()
		if !ok {
			break
		}
		if !hasLabel(best[cur.node], cur.req) || cur.node == end {
			continue
		}

		for _, s := range cur.node.steps(internalOnly) {
			r := s.forward
			if fwd != nil {
				r = r.Conflicts(*fwd)
			}
			next := requirement.And(cur.req, r)
			if _, impossible := next.(requirement.Impossible); impossible {
				continue
			}

			labels, added := insertLabel(best[s.to], next)
			if !added {
				continue
			}
			best[s.to] = labels
			seq++
			pq.Push(label{node: s.to, req: next, seq: seq})
		}
	}

	return requirement.Or(best[end]...)
}

func hasLabel(labels []requirement.Requirement, r requirement.Requirement) bool {
	for _, l := range labels {
		if requirement.Equals(l, r) {
			return true
		}
	}
	return false
}

// insertLabel adds r unless an existing label is as good, dropping the
// labels r dominates
func insertLabel(labels []requirement.Requirement, r requirement.Requirement) ([]requirement.Requirement, bool) {
	for _, l := range labels {
		if requirement.Equals(l, r) || requirement.StrictlyBetterThan(l, r) {
			return labels, false
		}
	}
	out := make([]requirement.Requirement, 0, len(labels)+1)
	for _, l := range labels {
		if !requirement.StrictlyBetterThan(r, l) {
			out = append(out, l)
		}
	}
	return append(out, r), true
}
