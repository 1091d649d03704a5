package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/splice/pkg/codegen"
	"github.com/chazu/splice/pkg/graph"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites Splice script source before zygomys sees it:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     Keywords then never collide with user variables of the same name.
//
//  2. Kebab-case to underscore: var-decl -> var_decl
//     zygomys reads a hyphen inside an identifier as subtraction.
//
//  3. ; line comments become // comments.
//
// String literals are copied untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		switch {
		case b[i] == '"':
			j := skipQuoted(b, i, '"', true)
			result = append(result, b[i:j]...)
			i = j
			continue

		case b[i] == '`':
			j := skipQuoted(b, i, '`', false)
			result = append(result, b[i:j]...)
			i = j
			continue

		case b[i] == ';':
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue

		case b[i] == ':' && i+1 < len(b) && b[i+1] == '=':
			result = append(result, b[i], b[i+1])
			i += 2
			continue

		case b[i] == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			result = append(result, '"')
			result = append(result, kwPrefix...)
			result = append(result, b[i+1:j]...)
			result = append(result, '"')
			i = j
			continue

		case b[i] == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			result = append(result, '_')
			i++
			continue
		}

		result = append(result, b[i])
		i++
	}
	return string(result)
}

// skipQuoted returns the index just past the literal opened at b[i].
func skipQuoted(b []byte, i int, quote byte, escapes bool) int {
	i++
	for i < len(b) && b[i] != quote {
		if escapes && b[i] == '\\' && i+1 < len(b) {
			i += 2
			continue
		}
		i++
	}
	if i < len(b) {
		i++
	}
	return i
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Node references
// ---------------------------------------------------------------------------

// sexpNodeRef wraps a graph.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id   graph.NodeID
	kind graph.Kind
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(node %v %v)", n.kind, n.id)
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	order      []string // keywords in source order
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}

		if _, dup := result.kw[name]; !dup {
			result.order = append(result.order, name)
		}

		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i += 2
		} else {
			// Keyword at end with no value: treat as flag with nil.
			result.kw[name] = zygo.SexpNull
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toText extracts text from a string, keyword, number or a binary
// expression reference. Expression references render as their source text.
func toText(g *graph.Graph, s zygo.Sexp) (string, error) {
	switch v := s.(type) {
	case *zygo.SexpStr:
		return strings.TrimPrefix(v.S, kwPrefix), nil
	case *zygo.SexpInt:
		return fmt.Sprintf("%d", v.Val), nil
	case *zygo.SexpFloat:
		return v.SexpString(nil), nil
	case *sexpNodeRef:
		n := g.Get(v.id)
		if n == nil {
			return "", fmt.Errorf("node %v was deleted", v.id)
		}
		d, ok := n.Data.(graph.BinaryExprData)
		if !ok {
			return "", fmt.Errorf("expected expression, got %v node", n.Kind)
		}
		return codegen.Expr(d), nil
	}
	return "", fmt.Errorf("expected string or expression, got %T (%s)", s, s.SexpString(nil))
}

// toBool accepts true/false, nil and the keywords :true / :false.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil // bare trailing keyword
		}
	case *zygo.SexpStr:
		switch strings.TrimPrefix(v.S, kwPrefix) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toNodeRef extracts a live node from a sexpNodeRef.
func toNodeRef(g *graph.Graph, s zygo.Sexp) (*graph.Node, error) {
	ref, ok := s.(*sexpNodeRef)
	if !ok {
		return nil, fmt.Errorf("expected node reference, got %T (%s)", s, s.SexpString(nil))
	}
	n := g.Get(ref.id)
	if n == nil {
		return nil, fmt.Errorf("node %v was deleted", ref.id)
	}
	return n, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toParams accepts "int a, int b" or a list of "type name" strings.
func toParams(g *graph.Graph, s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}

	items, err := sexpListToSlice(s)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		p, err := toText(g, item)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}

	return strings.Join(parts, ", "), nil
}

// fieldName maps a script keyword to a graph field name.
func fieldName(kw string) string {
	switch kw = strings.ReplaceAll(kw, "-", "_"); kw {
	case "returns":
		return "return_type"
	case "var":
		return "target"
	}
	return kw
}

// kwFields collects keyword arguments into graph fields.
func kwFields(g *graph.Graph, pa kwArgs) (graph.Fields, error) {
	fields := graph.Fields{}
	for _, kw := range pa.order {
		v := pa.kw[kw]
		key := fieldName(kw)

		var (
			text string
			err  error
		)
		switch key {
		case "params":
			text, err = toParams(g, v)
		case "void":
			var b bool
			b, err = toBool(v)
			text = fmt.Sprintf("%t", b)
		default:
			text, err = toText(g, v)
		}
		if err != nil {
			return nil, fmt.Errorf(":%s: %w", kw, err)
		}

		fields[key] = text
	}
	return fields, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

type builtin = zygo.ZlispUserFunction

// registerBuiltins installs all Splice script builtins into a zygomys
// environment. The builtins operate on g, populating it during evaluation.
//
// Names are registered in underscore form; preprocessSource maps the
// kebab-case spelling used in scripts onto them.
func registerBuiltins(env *zygo.Zlisp, g *graph.Graph) {
	create := func(kind graph.Kind, positional []string) builtin {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if len(pa.positional) > len(positional) {
				return zygo.SexpNull, fmt.Errorf("%s takes at most %d positional arguments, got %d",
					name, len(positional), len(pa.positional))
			}

			fields, err := kwFields(g, pa)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}

			for i, v := range pa.positional {
				text, err := toText(g, v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: %s: %w", name, positional[i], err)
				}
				fields[positional[i]] = text
			}

			if kind == graph.KindReturn && len(pa.positional) == 0 {
				if _, ok := fields["void"]; !ok {
					if _, ok := fields["expr"]; !ok {
						fields["void"] = "true"
					}
				}
			}

			id, err := g.Create(kind, fields)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}

			return &sexpNodeRef{id: id, kind: kind}, nil
		}
	}

	// (function-node "add" :returns "int" :params "int a, int b")
	env.AddFunction("function_node", create(graph.KindFunction, []string{"name"}))

	// (var-decl "int" "sum" :init "0")
	env.AddFunction("var_decl", create(graph.KindVarDecl, []string{"type", "name", "init"}))

	// (assignment "sum" (binary-expr "a" :add "b"))
	env.AddFunction("assignment", create(graph.KindAssign, []string{"target", "expr"}))

	// (return-stmt "sum") or (return-stmt) for a bare return
	env.AddFunction("return_stmt", create(graph.KindReturn, []string{"expr"}))

	// (binary-expr "a" "+" "b") or (binary-expr :left "a" :op :add :right "b")
	env.AddFunction("binary_expr", create(graph.KindBinaryExpr, []string{"left", "op", "right"}))

	// (expr-text (binary-expr ...)) -> "(a + b)"
	env.AddFunction("expr_text", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("expr-text requires exactly 1 argument, got %d", len(args))
		}
		text, err := toText(g, args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("expr-text: %w", err)
		}
		return &zygo.SexpStr{S: text}, nil
	})

	// (connect src dst) -> dst
	env.AddFunction("connect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("connect requires exactly 2 arguments, got %d", len(args))
		}
		if err := connectRefs(g, args[0], args[1]); err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: %w", err)
		}
		return args[1], nil
	})

	// (chain fn s1 s2 ...) connects each argument to the next -> fn
	env.AddFunction("chain", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("chain requires at least 2 arguments, got %d", len(args))
		}
		for i := 0; i+1 < len(args); i++ {
			if err := connectRefs(g, args[i], args[i+1]); err != nil {
				return zygo.SexpNull, fmt.Errorf("chain: link %d: %w", i+1, err)
			}
		}
		return args[0], nil
	})

	// (disconnect src)
	env.AddFunction("disconnect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		n, err := singleRef(g, name, args)
		if err != nil {
			return zygo.SexpNull, err
		}
		g.Disconnect(n.ID)
		return args[0], nil
	})

	// (delete-node ref)
	env.AddFunction("delete_node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("delete-node requires exactly 1 argument, got %d", len(args))
		}
		ref, ok := args[0].(*sexpNodeRef)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("delete-node: expected node reference, got %T", args[0])
		}
		g.Delete(ref.id)
		return zygo.SexpNull, nil
	})

	// (set-fields ref :name "x" :init "1")
	env.AddFunction("set_fields", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		n, err := singleRef(g, name, pa.positional)
		if err != nil {
			return zygo.SexpNull, err
		}

		fields, err := kwFields(g, pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-fields: %w", err)
		}

		if err := g.SetFields(n.ID, fields); err != nil {
			return zygo.SexpNull, fmt.Errorf("set-fields: %w", err)
		}
		return pa.positional[0], nil
	})

	// (generate) or (generate fn ...) -> source text
	env.AddFunction("generate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		var fns []graph.NodeID
		for _, a := range args {
			n, err := toNodeRef(g, a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("generate: %w", err)
			}
			fns = append(fns, n.ID)
		}
		return &zygo.SexpStr{S: codegen.New(g).Program(fns...)}, nil
	})
}

func singleRef(g *graph.Graph, name string, args []zygo.Sexp) (*graph.Node, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s requires exactly 1 node argument, got %d", name, len(args))
	}
	n, err := toNodeRef(g, args[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func connectRefs(g *graph.Graph, a, b zygo.Sexp) error {
	src, err := toNodeRef(g, a)
	if err != nil {
		return err
	}
	dst, err := toNodeRef(g, b)
	if err != nil {
		return err
	}
	return g.Connect(src.ID, dst.ID)
}
