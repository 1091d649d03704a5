// Package codegen renders a block program graph as C-like source text.
//
// Generation is a pure templating pass over the graph: statements are emitted
// in stored body order, user text is copied verbatim and nothing is validated.
// It never fails.
package codegen

import (
	"bytes"
	"fmt"

	"github.com/chazu/splice/pkg/graph"
)

// Option configures a Generator.
type Option func(*Generator)

// WithIndent prefixes every body statement with indent.
func WithIndent(indent string) Option {
	return func(g *Generator) { g.indent = indent }
}

// WithPreamble emits lines at the top of a program, followed by a blank line.
func WithPreamble(lines ...string) Option {
	return func(g *Generator) { g.preamble = append([]string(nil), lines...) }
}

// Generator renders functions and statements of one graph.
type Generator struct {
	graph    *graph.Graph
	indent   string
	preamble []string
}

// New creates a Generator reading g.
func New(g *graph.Graph, opts ...Option) *Generator {
	gen := &Generator{graph: g}
	for _, o := range opts {
		o(gen)
	}
	return gen
}

// GenerateProgram renders every function of g with default options.
func GenerateProgram(g *graph.Graph) string {
	return New(g).Program()
}

// Program renders the given functions, or every function in creation order
// when none are given, separated by blank lines. IDs that do not name a
// function are skipped.
func (g *Generator) Program(fns ...graph.NodeID) string {
	if len(fns) == 0 {
		fns = g.graph.Functions()
	}

	var buf bytes.Buffer

	for _, line := range g.preamble {
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	if len(g.preamble) != 0 {
		buf.WriteString("\n")
	}

	first := true
	for _, id := range fns {
		n := g.graph.Get(id)
		if n == nil || n.Kind != graph.KindFunction {
			continue
		}

		if !first {
			buf.WriteString("\n")
		}
		first = false

		g.writeFunction(&buf, n)
	}

	return buf.String()
}

// Function renders one function, or "" if id is not a function.
func (g *Generator) Function(id graph.NodeID) string {
	n := g.graph.Get(id)
	if n == nil || n.Kind != graph.KindFunction {
		return ""
	}

	var buf bytes.Buffer
	g.writeFunction(&buf, n)

	return buf.String()
}

// Statement renders one node. Binary expressions render as bare expressions
// with no terminator.
func (g *Generator) Statement(id graph.NodeID) string {
	n := g.graph.Get(id)
	if n == nil {
		return ""
	}

	if d, ok := n.Data.(graph.BinaryExprData); ok {
		return Expr(d)
	}

	var buf bytes.Buffer
	g.writeStatement(&buf, n)

	return buf.String()
}

// Expr renders a binary expression as "(left op right)".
func Expr(d graph.BinaryExprData) string {
	return fmt.Sprintf("(%s %s %s)", d.Left, d.Op.Symbol(), d.Right)
}

func (g *Generator) writeFunction(buf *bytes.Buffer, n *graph.Node) {
	d, _ := n.Data.(graph.FunctionData)

	fmt.Fprintf(buf, "%s %s(%s) {\n", d.ReturnType, d.Name, graph.FormatParams(d.Params))

	for _, id := range n.Body() {
		if s := g.graph.Get(id); s != nil {
			g.writeStatement(buf, s)
		}
	}

	buf.WriteString("}\n")
}

func (g *Generator) writeStatement(buf *bytes.Buffer, n *graph.Node) {
	switch d := n.Data.(type) {
	case graph.VarDeclData:
		if d.HasInit {
			g.writeLine(buf, "%s %s = %s;", d.Type, d.Name, d.Init)
		} else {
			g.writeLine(buf, "%s %s;", d.Type, d.Name)
		}
	case graph.AssignData:
		g.writeLine(buf, "%s = %s;", d.Target, d.Expr)
	case graph.ReturnData:
		if d.Void {
			g.writeLine(buf, "return;")
		} else {
			g.writeLine(buf, "return %s;", d.Expr)
		}
	case graph.BinaryExprData:
		g.writeLine(buf, "%s;", Expr(d))
	case graph.FunctionData:
		// functions never sit in a body
	}
}

func (g *Generator) writeLine(buf *bytes.Buffer, format string, args ...interface{}) {
	buf.WriteString(g.indent)
	fmt.Fprintf(buf, format, args...)
	buf.WriteString("\n")
}
