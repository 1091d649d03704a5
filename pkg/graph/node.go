package graph

import (
	"fmt"
	"strconv"
)

// NodeID is a stable arena handle. The zero value means "no node".
type NodeID uint64

// ZeroID is the zero-value NodeID.
const ZeroID NodeID = 0

// IsZero reports whether the ID is the zero value.
func (id NodeID) IsZero() bool { return id == ZeroID }

func (id NodeID) String() string {
	if id.IsZero() {
		return "none"
	}
	return "n" + strconv.FormatUint(uint64(id), 10)
}

// RenderHandle identifies the drawn line of an edge in the visual layer.
// The graph stores it and hands it back; it never looks inside.
type RenderHandle string

// Kind enumerates the node variants.
type Kind int

const (
	KindFunction   Kind = iota + 1 // function with signature and body
	KindVarDecl                    // variable declaration
	KindAssign                     // assignment
	KindReturn                     // return statement
	KindBinaryExpr                 // value-producing helper, never a statement
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindVarDecl:
		return "var"
	case KindAssign:
		return "assign"
	case KindReturn:
		return "return"
	case KindBinaryExpr:
		return "binary"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a variant tag back to its Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "function":
		return KindFunction, true
	case "var":
		return KindVarDecl, true
	case "assign":
		return KindAssign, true
	case "return":
		return KindReturn, true
	case "binary":
		return KindBinaryExpr, true
	}
	return 0, false
}

// IsStatement reports whether nodes of this kind may live in a function body.
func (k Kind) IsStatement() bool {
	switch k {
	case KindVarDecl, KindAssign, KindReturn:
		return true
	}
	return false
}

// Edge is a directed link recording that Target immediately follows Source.
type Edge struct {
	Source NodeID       `json:"source"`
	Target NodeID       `json:"target"`
	Handle RenderHandle `json:"handle,omitempty"`
}

// Node is a single element of the program graph.
//
// Relationships are stored as handles: owner is the function whose body holds
// the node, body is the ordered statement list of a function, and in/out are
// the symmetric edge lists.
type Node struct {
	ID   NodeID
	Kind Kind
	Data NodeData

	owner NodeID
	body  []NodeID
	in    []Edge
	out   []Edge
}

// Owner returns the function that currently holds n in its body.
func (n *Node) Owner() NodeID { return n.owner }

// Body returns a copy of a function's statement list.
func (n *Node) Body() []NodeID {
	if len(n.body) == 0 {
		return nil
	}
	return append([]NodeID(nil), n.body...)
}

// Incoming returns a copy of the edges ending at n.
func (n *Node) Incoming() []Edge { return append([]Edge(nil), n.in...) }

// Outgoing returns a copy of the edges starting at n.
func (n *Node) Outgoing() []Edge { return append([]Edge(nil), n.out...) }

// Next returns the target of n's outgoing edge, if any.
func (n *Node) Next() (NodeID, bool) {
	if len(n.out) == 0 {
		return ZeroID, false
	}
	return n.out[0].Target, true
}

// Prev returns the source of n's incoming edge, if any.
func (n *Node) Prev() (NodeID, bool) {
	if len(n.in) == 0 {
		return ZeroID, false
	}
	return n.in[0].Source, true
}

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	Kind() Kind
	nodeData() // marker method restricting implementations to this package
}
