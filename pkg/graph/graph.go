package graph

// Graph is the arena holding every node of a block program. It is the single
// source of truth for program structure; generators only read it.
//
// Graph is not safe for concurrent use. Mutations are expected to arrive one
// at a time from the interaction layer.
type Graph struct {
	nodes   map[NodeID]*Node
	order   []NodeID // creation order
	lastID  NodeID
	version uint64

	listeners []listener
	nextSub   int
	pending   []Change
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[NodeID]*Node),
	}
}

// Add allocates an unattached node holding data and returns its handle.
func (g *Graph) Add(data NodeData) NodeID {
	data = normalize(data)

	g.lastID++
	n := &Node{
		ID:   g.lastID,
		Kind: data.Kind(),
		Data: data,
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)

	g.emit(Change{Kind: NodeAdded, Node: n.ID})
	g.commit()

	return n.ID
}

// normalize drops an initializer with no text, so a declaration either has
// an initializer or it does not.
func normalize(data NodeData) NodeData {
	if d, ok := data.(VarDeclData); ok && d.Init == "" {
		d.HasInit = false
		return d
	}
	return data
}

// Get returns the node with the given ID, or nil. The returned node must be
// treated as read-only; use SetData or SetFields to edit it.
func (g *Graph) Get(id NodeID) *Node {
	return g.nodes[id]
}

// Has reports whether id names a live node.
func (g *Graph) Has(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns every node in creation order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// Functions returns the IDs of all function nodes in creation order.
func (g *Graph) Functions() []NodeID {
	var fns []NodeID
	for _, id := range g.order {
		if g.nodes[id].Kind == KindFunction {
			fns = append(fns, id)
		}
	}
	return fns
}

// Body returns the statement list of a function, or nil for anything else.
func (g *Graph) Body(fn NodeID) []NodeID {
	n := g.nodes[fn]
	if n == nil {
		return nil
	}
	return n.Body()
}

// Owner returns the function whose body holds id.
func (g *Graph) Owner(id NodeID) NodeID {
	n := g.nodes[id]
	if n == nil {
		return ZeroID
	}
	return n.owner
}

// Outgoing returns the edges leaving id.
func (g *Graph) Outgoing(id NodeID) []Edge {
	if n := g.nodes[id]; n != nil {
		return n.Outgoing()
	}
	return nil
}

// Incoming returns the edges ending at id.
func (g *Graph) Incoming(id NodeID) []Edge {
	if n := g.nodes[id]; n != nil {
		return n.Incoming()
	}
	return nil
}

// Chain walks outgoing edges starting at from and returns the visited nodes,
// excluding from itself. The walk stops at a repeated node.
func (g *Graph) Chain(from NodeID) []NodeID {
	var chain []NodeID
	seen := map[NodeID]bool{from: true}
	n := g.nodes[from]
	for n != nil {
		next, ok := n.Next()
		if !ok || seen[next] {
			break
		}
		seen[next] = true
		chain = append(chain, next)
		n = g.nodes[next]
	}
	return chain
}

// NodeCount returns the total number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// Version increases by one after every mutation that changed the graph.
func (g *Graph) Version() uint64 {
	return g.version
}

// indexIn returns the position of id in body, or -1.
func indexIn(body []NodeID, id NodeID) int {
	for i, b := range body {
		if b == id {
			return i
		}
	}
	return -1
}
