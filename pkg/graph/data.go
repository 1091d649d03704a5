package graph

import "fmt"

// ---------------------------------------------------------------------------
// Function
// ---------------------------------------------------------------------------

// Param is one "type name" entry of a function signature.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FunctionData is the signature of a function node. The body is held by the
// graph, not by the payload.
type FunctionData struct {
	ReturnType string  `json:"return_type"`
	Name       string  `json:"name"`
	Params     []Param `json:"params,omitempty"` // ordered, names unique
}

func (FunctionData) Kind() Kind { return KindFunction }
func (FunctionData) nodeData()  {}

// WithParam returns a copy of d with the parameter set. An existing parameter
// of the same name keeps its position and takes the new type.
func (d FunctionData) WithParam(name, typ string) FunctionData {
	params := make([]Param, 0, len(d.Params)+1)
	found := false
	for _, p := range d.Params {
		if p.Name == name {
			p.Type = typ
			found = true
		}
		params = append(params, p)
	}
	if !found {
		params = append(params, Param{Name: name, Type: typ})
	}
	d.Params = params
	return d
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// VarDeclData declares a variable, optionally with an initializer.
type VarDeclData struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Init    string `json:"init,omitempty"`
	HasInit bool   `json:"has_init"` // false renders a bare declaration
}

func (VarDeclData) Kind() Kind { return KindVarDecl }
func (VarDeclData) nodeData()  {}

// AssignData assigns an opaque expression to a named variable.
type AssignData struct {
	Target string `json:"target"`
	Expr   string `json:"expr"`
}

func (AssignData) Kind() Kind { return KindAssign }
func (AssignData) nodeData()  {}

// ReturnData returns from the enclosing function. Void selects the bare
// "return;" form; Expr is ignored when it is set.
type ReturnData struct {
	Expr string `json:"expr"`
	Void bool   `json:"void,omitempty"`
}

func (ReturnData) Kind() Kind { return KindReturn }
func (ReturnData) nodeData()  {}

// ---------------------------------------------------------------------------
// Binary expression
// ---------------------------------------------------------------------------

// Operator is the closed set of binary operators.
type Operator int

const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpGt
	OpLt
	OpGe
	OpLe
)

var operatorNames = [...]string{
	OpAdd: "add",
	OpSub: "sub",
	OpMul: "mul",
	OpDiv: "div",
	OpMod: "mod",
	OpEq:  "eq",
	OpNe:  "ne",
	OpGt:  "gt",
	OpLt:  "lt",
	OpGe:  "ge",
	OpLe:  "le",
}

var operatorSymbols = [...]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpMod: "%",
	OpEq:  "==",
	OpNe:  "!=",
	OpGt:  ">",
	OpLt:  "<",
	OpGe:  ">=",
	OpLe:  "<=",
}

// Operators lists every operator in declaration order.
func Operators() []Operator {
	ops := make([]Operator, len(operatorNames))
	for i := range ops {
		ops[i] = Operator(i)
	}
	return ops
}

// Valid reports whether op is one of the declared operators.
func (op Operator) Valid() bool { return op >= OpAdd && op <= OpLe }

func (op Operator) String() string {
	if !op.Valid() {
		return fmt.Sprintf("Operator(%d)", int(op))
	}
	return operatorNames[op]
}

// Symbol returns the source-text spelling of op.
func (op Operator) Symbol() string {
	if !op.Valid() {
		return "?"
	}
	return operatorSymbols[op]
}

// ParseOperator accepts either the operator name ("add") or its symbol ("+").
func ParseOperator(s string) (Operator, bool) {
	for i := range operatorNames {
		if operatorNames[i] == s || operatorSymbols[i] == s {
			return Operator(i), true
		}
	}
	return 0, false
}

// BinaryExprData combines two opaque operands with an operator. Its rendered
// text is used as another node's expression; it never sits in a body.
type BinaryExprData struct {
	Left  string   `json:"left"`
	Op    Operator `json:"op"`
	Right string   `json:"right"`
}

func (BinaryExprData) Kind() Kind { return KindBinaryExpr }
func (BinaryExprData) nodeData()  {}
