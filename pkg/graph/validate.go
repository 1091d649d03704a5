package graph

import (
	"cmp"
	"fmt"
	"slices"
)

// ValidationSeverity indicates whether a validation finding describes a broken
// graph or something that is legal but probably unintended.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // structural invariant broken
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %v: %s", e.Severity, e.NodeID, e.Message)
}

// ValidationResult separates blocking errors from advisory warnings.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether no error-severity findings were produced.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Validate checks the structural invariants of g and reports suspicious but
// legal shapes as warnings. It never mutates the graph. Findings are ordered
// by node creation order.
func Validate(g *Graph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateEdges(g)...)
	errs = append(errs, validateCycles(g)...)
	errs = append(errs, validateBodies(g)...)
	errs = append(errs, validateOwners(g)...)
	errs = append(errs, validateReachability(g)...)

	// IDs are allocated in creation order.
	slices.SortStableFunc(errs, func(a, b ValidationError) int {
		return cmp.Compare(a.NodeID, b.NodeID)
	})

	return errs
}

// ValidateAll runs Validate and splits the findings by severity.
func ValidateAll(g *Graph) ValidationResult {
	var result ValidationResult
	for _, e := range Validate(g) {
		if e.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, e)
		} else {
			result.Errors = append(result.Errors, e)
		}
	}
	return result
}

// validateEdges checks edge degree, endpoint kinds and that both ends of every
// edge agree.
func validateEdges(g *Graph) []ValidationError {
	var errs []ValidationError

	for _, n := range g.Nodes() {
		if len(n.in) > 1 {
			errs = append(errs, errorf(n.ID, "has %d incoming edges", len(n.in)))
		}
		if len(n.out) > 1 {
			errs = append(errs, errorf(n.ID, "has %d outgoing edges", len(n.out)))
		}

		for _, e := range n.out {
			dst := g.nodes[e.Target]
			if dst == nil {
				errs = append(errs, errorf(n.ID, "edge target %v does not exist", e.Target))
				continue
			}
			if !hasEdge(dst.in, e) {
				errs = append(errs, errorf(n.ID, "edge to %v is missing from its target", e.Target))
			}
			if !dst.Kind.IsStatement() {
				errs = append(errs, errorf(n.ID, "edge targets %v node %v", dst.Kind, dst.ID))
			}
			if n.Kind == KindBinaryExpr {
				errs = append(errs, errorf(n.ID, "binary expression has an outgoing edge"))
			}
		}

		for _, e := range n.in {
			src := g.nodes[e.Source]
			if src == nil {
				errs = append(errs, errorf(n.ID, "edge source %v does not exist", e.Source))
				continue
			}
			if !hasEdge(src.out, e) {
				errs = append(errs, errorf(n.ID, "edge from %v is missing from its source", e.Source))
			}
		}
	}

	return errs
}

// validateCycles checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
func validateCycles(g *Graph) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, errorf(id, "is part of a cycle"))
			return true
		}

		color[id] = gray

		if n := g.nodes[id]; n != nil {
			for _, e := range n.out {
				if visit(e.Target) {
					return true
				}
			}
		}

		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white && visit(id) {
			// One cycle error is sufficient.
			break
		}
	}

	return errs
}

// validateBodies checks that each function body matches its edge chain and
// holds only statements, with at most one return.
func validateBodies(g *Graph) []ValidationError {
	var errs []ValidationError

	for _, id := range g.Functions() {
		fn := g.nodes[id]

		chain := g.Chain(id)
		if !sameIDs(chain, fn.body) {
			errs = append(errs, errorf(id, "body %v does not match edge chain %v", fn.body, chain))
		}

		returns := 0
		for _, sid := range fn.body {
			s := g.nodes[sid]
			if s == nil {
				errs = append(errs, errorf(id, "body member %v does not exist", sid))
				continue
			}
			if !s.Kind.IsStatement() {
				errs = append(errs, errorf(id, "body holds %v node %v", s.Kind, sid))
			}
			if s.owner != id {
				errs = append(errs, errorf(sid, "in body of %v but owned by %v", id, s.owner))
			}
			if s.Kind == KindReturn {
				returns++
			}
		}

		if returns > 1 {
			errs = append(errs, errorf(id, "body has %d return statements", returns))
		}
	}

	return errs
}

// validateOwners checks that ownership points back into a body, exactly once.
func validateOwners(g *Graph) []ValidationError {
	var errs []ValidationError

	for _, n := range g.Nodes() {
		if n.owner.IsZero() {
			continue
		}

		if n.Kind == KindFunction {
			errs = append(errs, errorf(n.ID, "function is owned by %v", n.owner))
			continue
		}

		fn := g.nodes[n.owner]
		if fn == nil || fn.Kind != KindFunction {
			errs = append(errs, errorf(n.ID, "owner %v is not a function", n.owner))
			continue
		}

		count := 0
		for _, sid := range fn.body {
			if sid == n.ID {
				count++
			}
		}
		if count != 1 {
			errs = append(errs, errorf(n.ID, "appears %d times in body of owner %v", count, n.owner))
		}
	}

	return errs
}

// validateReachability warns about statements that will never be generated
// or never run, and functions missing a return.
func validateReachability(g *Graph) []ValidationError {
	var errs []ValidationError

	for _, n := range g.Nodes() {
		if n.Kind.IsStatement() && n.owner.IsZero() {
			errs = append(errs, warnf(n.ID, "%s is not attached to any function", Label(n)))
		}
	}

	for _, id := range g.Functions() {
		fn := g.nodes[id]

		returned := false
		for _, sid := range fn.body {
			s := g.nodes[sid]
			if s == nil {
				continue
			}
			if returned {
				errs = append(errs, warnf(sid, "%s follows a return statement", Label(s)))
			}
			if s.Kind == KindReturn {
				returned = true
			}
		}

		if d, ok := fn.Data.(FunctionData); ok && !returned && d.ReturnType != "void" {
			errs = append(errs, warnf(id, "function %s has no return statement", d.Name))
		}
	}

	return errs
}

func errorf(id NodeID, format string, args ...any) ValidationError {
	return ValidationError{NodeID: id, Message: fmt.Sprintf(format, args...), Severity: SeverityError}
}

func warnf(id NodeID, format string, args ...any) ValidationError {
	return ValidationError{NodeID: id, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning}
}

func hasEdge(edges []Edge, e Edge) bool {
	for _, x := range edges {
		if x.Source == e.Source && x.Target == e.Target {
			return true
		}
	}
	return false
}

func sameIDs(a, b []NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
