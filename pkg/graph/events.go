package graph

import "fmt"

// ChangeKind enumerates the notifications a Graph delivers to subscribers.
type ChangeKind int

const (
	NodeAdded    ChangeKind = iota + 1
	NodeRemoved             // node left the arena
	NodeUpdated             // field values changed
	EdgeAdded               // Change.Edge carries the new edge
	EdgeRemoved             // Change.Edge carries the removed edge and its render handle
	OwnerChanged            // Change.Owner is the new owner, possibly ZeroID
)

func (k ChangeKind) String() string {
	switch k {
	case NodeAdded:
		return "node-added"
	case NodeRemoved:
		return "node-removed"
	case NodeUpdated:
		return "node-updated"
	case EdgeAdded:
		return "edge-added"
	case EdgeRemoved:
		return "edge-removed"
	case OwnerChanged:
		return "owner-changed"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change describes one effect of a mutation.
type Change struct {
	Kind  ChangeKind
	Node  NodeID
	Edge  Edge
	Owner NodeID
}

type listener struct {
	id int
	fn func(Change)
}

// Subscribe registers fn to receive every change. Changes are delivered after
// the mutation that caused them has completed, in the order they happened.
// The returned function removes the subscription.
func (g *Graph) Subscribe(fn func(Change)) (cancel func()) {
	g.nextSub++
	id := g.nextSub
	g.listeners = append(g.listeners, listener{id: id, fn: fn})

	return func() {
		for i, l := range g.listeners {
			if l.id == id {
				g.listeners = append(g.listeners[:i:i], g.listeners[i+1:]...)
				return
			}
		}
	}
}

func (g *Graph) emit(c Change) {
	g.pending = append(g.pending, c)
}

// commit ends a mutation: it bumps the version and flushes pending changes.
func (g *Graph) commit() {
	if len(g.pending) == 0 {
		return
	}

	g.version++

	changes := g.pending
	g.pending = nil

	listeners := append([]listener(nil), g.listeners...)
	for _, c := range changes {
		for _, l := range listeners {
			l.fn(c)
		}
	}
}
