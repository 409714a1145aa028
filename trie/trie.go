// Package trie implements the prefix tree over token-index sequences that
// constrains beam search to the lexicon. Nodes live in a single arena owned
// by the Trie and reference each other by integer id, so ids stay stable
// across smearing and can be stored in decoder hypotheses without dangling.
package trie

import (
	"fmt"

	"github.com/ieee0824/lexdecode-go/internal/mathutil"
)

// NodeID identifies a node within its owning Trie.
type NodeID int32

// NoNode is returned by Search when no node exists for a path.
const NoNode NodeID = -1

// SmearingMode selects how MaxScore is propagated through the tree.
type SmearingMode int

const (
	// SmearNone computes each node's MaxScore from its own labels only.
	// Decoding with LM lookahead assumes SmearMax or SmearLogAdd.
	SmearNone SmearingMode = iota
	// SmearMax takes the maximum label score over the whole subtree.
	SmearMax
	// SmearLogAdd takes the log-sum-exp of all label scores in the subtree.
	SmearLogAdd
)

// Node is a single trie node. Children are indexed by token index; an entry
// of NoNode means no child for that token. Labels and LabelScores are the
// (word id, unigram score) pairs of lexicon words whose token path ends here.
type Node struct {
	Idx         int     // token index of the edge leading into this node
	Children    []NodeID
	Labels      []int
	LabelScores []float64
	MaxScore    float64 // smeared subtree score summary
}

// NLabel returns the number of words ending at this node.
func (n *Node) NLabel() int {
	return len(n.Labels)
}

// HasChildren reports whether any token continues past this node.
func (n *Node) HasChildren() bool {
	for _, c := range n.Children {
		if c != NoNode {
			return true
		}
	}
	return false
}

// Trie is a fixed-branching-factor prefix tree. Build it with Insert, run
// Smear once, then treat it as read-only; concurrent readers are safe after
// that point.
type Trie struct {
	nodes       []Node
	maxChildren int
	root        NodeID
}

// New creates a trie whose nodes may have at most maxChildren children
// (the alphabet size). rootIdx is the token index recorded on the root node,
// conventionally the silence token.
func New(maxChildren, rootIdx int) *Trie {
	t := &Trie{maxChildren: maxChildren, root: 0}
	t.newNode(rootIdx)
	return t
}

func (t *Trie) newNode(idx int) NodeID {
	children := make([]NodeID, t.maxChildren)
	for i := range children {
		children[i] = NoNode
	}
	t.nodes = append(t.nodes, Node{Idx: idx, Children: children})
	return NodeID(len(t.nodes) - 1)
}

// Root returns the id of the entry node.
func (t *Trie) Root() NodeID {
	return t.root
}

// Node returns the node for id. The pointer stays valid only until the next
// Insert (the arena may be reallocated while building).
func (t *Trie) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// MaxChildren returns the alphabet size bound fixed at construction.
func (t *Trie) MaxChildren() int {
	return t.maxChildren
}

// NumNodes returns the total number of allocated nodes.
func (t *Trie) NumNodes() int {
	return len(t.nodes)
}

// Insert walks indices from the root, allocating nodes as needed, and
// attaches (word, score) to the terminal node. An index outside
// [0, maxChildren) is a construction-time error; decoding never has to
// validate token indices because the trie topology defines legality.
func (t *Trie) Insert(indices []int, word int, score float64) (NodeID, error) {
	cur := t.root
	for _, idx := range indices {
		if idx < 0 || idx >= t.maxChildren {
			return NoNode, fmt.Errorf("trie: token index %d out of range [0, %d)", idx, t.maxChildren)
		}
		next := t.nodes[cur].Children[idx]
		if next == NoNode {
			next = t.newNode(idx)
			t.nodes[cur].Children[idx] = next
		}
		cur = next
	}
	n := &t.nodes[cur]
	n.Labels = append(n.Labels, word)
	n.LabelScores = append(n.LabelScores, score)
	return cur, nil
}

// Search returns the node at the end of the exact path indices, or NoNode if
// the path does not exist. It never mutates the trie.
func (t *Trie) Search(indices []int) NodeID {
	cur := t.root
	for _, idx := range indices {
		if idx < 0 || idx >= t.maxChildren {
			return NoNode
		}
		cur = t.nodes[cur].Children[idx]
		if cur == NoNode {
			return NoNode
		}
	}
	return cur
}

// Smear recomputes every node's MaxScore bottom-up. Run it after all
// insertions and before decoding; re-running with the same mode is
// idempotent.
func (t *Trie) Smear(mode SmearingMode) {
	t.smearNode(t.root, mode)
}

func (t *Trie) smearNode(id NodeID, mode SmearingMode) float64 {
	n := &t.nodes[id]
	max := mathutil.LogZero
	for _, s := range n.LabelScores {
		if mode == SmearLogAdd {
			max = mathutil.LogAdd(max, s)
		} else if s > max {
			max = s
		}
	}
	for _, child := range n.Children {
		if child == NoNode {
			continue
		}
		cs := t.smearNode(child, mode)
		switch mode {
		case SmearMax:
			if cs > max {
				max = cs
			}
		case SmearLogAdd:
			max = mathutil.LogAdd(max, cs)
		}
	}
	n.MaxScore = max
	return max
}
