package graph

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"tlog.app/go/errors"
)

// Fields is the flat string form of a node payload, as edited in the UI.
//
//	function: return_type, name, params ("int a, int b")
//	var:      type, name, init (empty means no initializer)
//	assign:   target, expr
//	return:   expr, void
//	binary:   left, op (name or symbol), right
type Fields map[string]string

var fieldNames = map[Kind][]string{
	KindFunction:   {"return_type", "name", "params"},
	KindVarDecl:    {"type", "name", "init"},
	KindAssign:     {"target", "expr"},
	KindReturn:     {"expr", "void"},
	KindBinaryExpr: {"left", "op", "right"},
}

// FieldNames lists the editable fields of a kind.
func FieldNames(k Kind) []string {
	return append([]string(nil), fieldNames[k]...)
}

// Defaults returns the payload a freshly placed block of kind k starts with.
func (g *Graph) Defaults(k Kind) (NodeData, error) {
	switch k {
	case KindFunction:
		return FunctionData{ReturnType: "int", Name: fmt.Sprintf("func%d", len(g.Functions()))}, nil
	case KindVarDecl:
		return VarDeclData{Type: "int", Name: fmt.Sprintf("var%d", len(g.nodes))}, nil
	case KindAssign:
		return AssignData{Target: "result", Expr: "0"}, nil
	case KindReturn:
		return ReturnData{Expr: "0"}, nil
	case KindBinaryExpr:
		return BinaryExprData{Left: "a", Op: OpAdd, Right: "b"}, nil
	default:
		return nil, errors.Wrap(ErrBadField, "kind %v", k)
	}
}

// Create adds a node of kind k starting from its defaults, with fields
// applied on top.
func (g *Graph) Create(k Kind, fields Fields) (NodeID, error) {
	data, err := g.Defaults(k)
	if err != nil {
		return ZeroID, err
	}

	data, err = ApplyFields(data, fields)
	if err != nil {
		return ZeroID, err
	}

	return g.Add(data), nil
}

// SetFields edits the payload of id. Unknown keys and unparsable values are
// errors and leave the node as it was.
func (g *Graph) SetFields(id NodeID, fields Fields) error {
	n := g.nodes[id]
	if n == nil {
		return errors.Wrap(ErrNodeNotFound, "%v", id)
	}

	data, err := ApplyFields(n.Data, fields)
	if err != nil {
		return errors.Wrap(err, "%v", id)
	}

	g.replaceData(n, data)

	return nil
}

// SetData replaces the payload of id. The payload kind must match the node.
func (g *Graph) SetData(id NodeID, data NodeData) error {
	n := g.nodes[id]
	if n == nil {
		return errors.Wrap(ErrNodeNotFound, "%v", id)
	}

	if data == nil || data.Kind() != n.Kind {
		return errors.Wrap(ErrKindMismatch, "%v is %v", id, n.Kind)
	}

	g.replaceData(n, data)

	return nil
}

func (g *Graph) replaceData(n *Node, data NodeData) {
	n.Data = normalize(data)

	g.emit(Change{Kind: NodeUpdated, Node: n.ID})
	g.commit()
}

// ApplyFields returns a copy of data with the given fields set.
func ApplyFields(data NodeData, fields Fields) (NodeData, error) {
	if err := checkFieldNames(data.Kind(), fields); err != nil {
		return nil, err
	}

	switch d := data.(type) {
	case FunctionData:
		set(fields, "return_type", &d.ReturnType)
		set(fields, "name", &d.Name)
		if v, ok := fields["params"]; ok {
			params, err := ParseParams(v)
			if err != nil {
				return nil, err
			}
			d.Params = params
		}
		return d, nil
	case VarDeclData:
		set(fields, "type", &d.Type)
		set(fields, "name", &d.Name)
		if v, ok := fields["init"]; ok {
			d.Init = v
			d.HasInit = v != ""
		}
		return d, nil
	case AssignData:
		set(fields, "target", &d.Target)
		set(fields, "expr", &d.Expr)
		return d, nil
	case ReturnData:
		set(fields, "expr", &d.Expr)
		if v, ok := fields["void"]; ok {
			void, err := strconv.ParseBool(v)
			if err != nil {
				return nil, errors.Wrap(ErrBadField, "void: %q", v)
			}
			d.Void = void
		}
		return d, nil
	case BinaryExprData:
		set(fields, "left", &d.Left)
		set(fields, "right", &d.Right)
		if v, ok := fields["op"]; ok {
			op, ok := ParseOperator(v)
			if !ok {
				return nil, errors.Wrap(ErrBadField, "op: %q", v)
			}
			d.Op = op
		}
		return d, nil
	default:
		return nil, errors.Wrap(ErrBadField, "unsupported payload %T", data)
	}
}

// FieldsOf flattens a payload back into Fields.
func FieldsOf(data NodeData) Fields {
	switch d := data.(type) {
	case FunctionData:
		return Fields{"return_type": d.ReturnType, "name": d.Name, "params": FormatParams(d.Params)}
	case VarDeclData:
		init := ""
		if d.HasInit {
			init = d.Init
		}
		return Fields{"type": d.Type, "name": d.Name, "init": init}
	case AssignData:
		return Fields{"target": d.Target, "expr": d.Expr}
	case ReturnData:
		return Fields{"expr": d.Expr, "void": strconv.FormatBool(d.Void)}
	case BinaryExprData:
		return Fields{"left": d.Left, "op": d.Op.String(), "right": d.Right}
	}
	return nil
}

// ParseParams reads a comma separated "type name" list. Commas nested in
// <>, () or [] belong to the type, so "std::map<int, int> m" is one parameter.
// The last word of each entry is the name; the rest is the type, verbatim.
func ParseParams(s string) ([]Param, error) {
	var params []Param
	seen := map[string]bool{}

	for _, part := range splitTopLevel(s) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		i := strings.LastIndexFunc(part, unicode.IsSpace)
		if i < 0 {
			return nil, errors.Wrap(ErrBadField, "params: %q is not \"type name\"", part)
		}

		name := part[i+1:]
		if seen[name] {
			return nil, errors.Wrap(ErrBadField, "params: duplicate name %q", name)
		}
		seen[name] = true

		params = append(params, Param{
			Type: strings.TrimSpace(part[:i]),
			Name: name,
		})
	}

	return params, nil
}

// splitTopLevel splits s on commas outside brackets.
func splitTopLevel(s string) []string {
	var parts []string

	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}

	return append(parts, s[start:])
}

// FormatParams renders params the way they appear in a signature.
func FormatParams(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Type + " " + p.Name
	}
	return strings.Join(parts, ", ")
}

func checkFieldNames(k Kind, fields Fields) error {
	allowed := fieldNames[k]

	var unknown []string
	for key := range fields {
		if !slices.Contains(allowed, key) {
			unknown = append(unknown, key)
		}
	}

	if len(unknown) == 0 {
		return nil
	}

	slices.Sort(unknown)

	return errors.Wrap(ErrBadField, "unknown %v fields %v", k, unknown)
}

func set(fields Fields, key string, dst *string) {
	if v, ok := fields[key]; ok {
		*dst = v
	}
}
