package graph

import "fmt"

// Label returns the short caption drawn on a block.
func Label(n *Node) string {
	if n == nil {
		return ""
	}

	switch d := n.Data.(type) {
	case FunctionData:
		return fmt.Sprintf("%s %s()", d.ReturnType, d.Name)
	case VarDeclData:
		if d.HasInit {
			return fmt.Sprintf("%s %s = %s", d.Type, d.Name, d.Init)
		}
		return fmt.Sprintf("%s %s", d.Type, d.Name)
	case AssignData:
		return fmt.Sprintf("%s = %s", d.Target, d.Expr)
	case ReturnData:
		if d.Void {
			return "return"
		}
		return "return " + d.Expr
	case BinaryExprData:
		return fmt.Sprintf("(%s %s %s)", d.Left, d.Op.Symbol(), d.Right)
	default:
		return n.Kind.String()
	}
}
