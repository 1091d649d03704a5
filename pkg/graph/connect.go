package graph

import (
	"tlog.app/go/errors"
)

// Connect links src to dst with no render handle. See ConnectHandle.
func (g *Graph) Connect(src, dst NodeID) error {
	return g.ConnectHandle(src, dst, "")
}

// ConnectHandle makes dst follow src in src's function body and records h on
// the new edge.
//
// A function source replaces its whole body: the old chain is unlinked and
// every former member loses its owner. A statement source cuts its old
// successor loose, together with everything after it; that tail keeps its
// internal edges. If dst heads a loose chain, the chain comes along and joins
// the body behind dst.
//
// All checks run before any change, so a returned error leaves the graph as
// it was. Connecting a node to itself is a no-op.
func (g *Graph) ConnectHandle(src, dst NodeID, h RenderHandle) error {
	if src == dst {
		return nil
	}

	s := g.nodes[src]
	if s == nil {
		return errors.Wrap(ErrNodeNotFound, "source %v", src)
	}

	d := g.nodes[dst]
	if d == nil {
		return errors.Wrap(ErrNodeNotFound, "target %v", dst)
	}

	if s.Kind == KindBinaryExpr || !d.Kind.IsStatement() {
		return errors.Wrap(ErrInvalidEndpoint, "%v %v -> %v %v", s.Kind, src, d.Kind, dst)
	}

	if prev, ok := d.Prev(); ok && prev != src {
		return &ConnectError{Code: AlreadyConnected, Source: src, Target: dst}
	}

	fn := s
	if s.Kind != KindFunction {
		if s.owner.IsZero() {
			return &ConnectError{Code: UnassignedSource, Source: src, Target: dst}
		}
		fn = g.nodes[s.owner]
	}

	// Body prefix that stays in place.
	var kept []NodeID
	if s != fn {
		kept = fn.body[:indexIn(fn.body, src)+1]
	}

	// Nodes that will follow src once connected.
	moving := []NodeID{dst}
	if !(s == fn && d.owner == fn.ID) {
		moving = append(moving, g.Chain(dst)...)
	}

	if g.countReturns(kept)+g.countReturns(moving) > 1 {
		return &ConnectError{Code: DuplicateReturn, Source: src, Target: dst}
	}

	if s == fn {
		g.clearBody(fn)
	} else if _, ok := s.Next(); ok {
		g.truncateBody(fn, len(kept))
	}

	g.addEdge(s, d, h)

	fn.body = append(fn.body, dst)
	g.setOwner(d, fn.ID)

	for _, id := range g.Chain(dst) {
		fn.body = append(fn.body, id)
		g.setOwner(g.nodes[id], fn.ID)
	}

	g.commit()

	return nil
}

// Disconnect removes the outgoing edge of src. Any body members after src
// become a loose chain. It is a no-op when src has no successor.
func (g *Graph) Disconnect(src NodeID) {
	s := g.nodes[src]
	if s == nil {
		return
	}

	g.cutAfter(s)
	g.commit()
}

// Detach removes every edge touching id. A body member leaves its function,
// and the statements that followed it stay linked to each other as a loose
// chain. Detaching a function unlinks its body the same way.
func (g *Graph) Detach(id NodeID) {
	n := g.nodes[id]
	if n == nil {
		return
	}

	g.detach(n)
	g.commit()
}

// Delete detaches id and removes it from the arena. Deleting a missing node
// is a no-op.
func (g *Graph) Delete(id NodeID) {
	n := g.nodes[id]
	if n == nil {
		return
	}

	g.detach(n)

	delete(g.nodes, id)
	if i := indexIn(g.order, id); i >= 0 {
		g.order = append(g.order[:i:i], g.order[i+1:]...)
	}

	g.emit(Change{Kind: NodeRemoved, Node: id})
	g.commit()
}

func (g *Graph) detach(n *Node) {
	switch {
	case n.Kind == KindFunction:
		g.truncateBody(n, 0)
	case !n.owner.IsZero():
		fn := g.nodes[n.owner]
		g.truncateBody(fn, indexIn(fn.body, n.ID))
		g.cutAfter(n)
	default:
		for _, e := range n.Incoming() {
			g.removeEdge(e)
		}
		g.cutAfter(n)
	}
}

// cutAfter removes n's outgoing edge, releasing body members that follow it.
func (g *Graph) cutAfter(n *Node) {
	switch {
	case n.Kind == KindFunction:
		g.truncateBody(n, 0)
	case !n.owner.IsZero():
		fn := g.nodes[n.owner]
		g.truncateBody(fn, indexIn(fn.body, n.ID)+1)
	default:
		for _, e := range n.Outgoing() {
			g.removeEdge(e)
		}
	}
}

// truncateBody keeps fn.body[:i] and turns the rest into a loose chain. Only
// the edge leading into body[i] is removed.
func (g *Graph) truncateBody(fn *Node, i int) {
	if i < 0 || i >= len(fn.body) {
		return
	}

	tail := fn.body[i:]
	fn.body = append([]NodeID(nil), fn.body[:i]...)

	prev := fn
	if i > 0 {
		prev = g.nodes[fn.body[i-1]]
	}

	for _, e := range prev.Outgoing() {
		if e.Target == tail[0] {
			g.removeEdge(e)
		}
	}

	for _, id := range tail {
		g.setOwner(g.nodes[id], ZeroID)
	}
}

// clearBody unlinks every edge of fn's chain and releases its members.
func (g *Graph) clearBody(fn *Node) {
	body := fn.body
	fn.body = nil

	for _, e := range fn.Outgoing() {
		g.removeEdge(e)
	}

	for _, id := range body {
		n := g.nodes[id]
		for _, e := range n.Outgoing() {
			g.removeEdge(e)
		}
		g.setOwner(n, ZeroID)
	}
}

func (g *Graph) countReturns(ids []NodeID) int {
	count := 0
	for _, id := range ids {
		if g.nodes[id].Kind == KindReturn {
			count++
		}
	}
	return count
}

func (g *Graph) addEdge(src, dst *Node, h RenderHandle) {
	e := Edge{Source: src.ID, Target: dst.ID, Handle: h}
	src.out = append(src.out, e)
	dst.in = append(dst.in, e)

	g.emit(Change{Kind: EdgeAdded, Node: src.ID, Edge: e})
}

func (g *Graph) removeEdge(e Edge) {
	if src := g.nodes[e.Source]; src != nil {
		src.out = withoutEdge(src.out, e)
	}
	if dst := g.nodes[e.Target]; dst != nil {
		dst.in = withoutEdge(dst.in, e)
	}

	g.emit(Change{Kind: EdgeRemoved, Node: e.Source, Edge: e})
}

func (g *Graph) setOwner(n *Node, owner NodeID) {
	if n.owner == owner {
		return
	}

	n.owner = owner

	g.emit(Change{Kind: OwnerChanged, Node: n.ID, Owner: owner})
}

func withoutEdge(edges []Edge, e Edge) []Edge {
	out := edges[:0:0]
	for _, x := range edges {
		if x.Source == e.Source && x.Target == e.Target {
			continue
		}
		out = append(out, x)
	}
	return out
}
