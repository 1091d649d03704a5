// Package graph defines the block program graph for Splice.
//
// The graph is an arena of nodes keyed by NodeID. Function nodes own an
// ordered body of statement nodes; consecutive body entries are linked by
// edges, and the first entry is linked from the function itself. Every
// mutation either restores all structural invariants or fails without
// touching the graph.
package graph
