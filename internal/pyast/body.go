package pyast

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/blastshield/engine/internal/model"
)

// bodyCollector walks one function body once, producing the call sites,
// global-name accesses, exception summary, nested function defs, and flow
// statements that FunctionDef carries. A single pass avoids re-walking the
// CST once per concern.
type bodyCollector struct {
	w          *walker
	fn         *model.FunctionDef
	exceptions model.ExceptionSummary
	nested     []*model.FunctionDef
}

// collectBlock walks a "block" node's statements, returning the
// model.Statement list for data-flow analysis while recording call sites,
// global accesses, exception info, and nested defs as side effects.
func (b *bodyCollector) collectBlock(block *sitter.Node) []*model.Statement {
	var out []*model.Statement
	for i := 0; i < int(block.NamedChildCount()); i++ {
		if s := b.collectStatement(block.NamedChild(i)); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (b *bodyCollector) collectStatement(node *sitter.Node) *model.Statement {
	switch node.Type() {
	case "function_definition":
		b.nested = append(b.nested, b.w.walkFunction(node, nil, b.fn.QualifiedName))
		return nil

	case "decorated_definition":
		decorators := b.w.extractDecorators(node)
		inner := node.ChildByFieldName("definition")
		if inner != nil && inner.Type() == "function_definition" {
			b.nested = append(b.nested, b.w.walkFunction(inner, decorators, b.fn.QualifiedName))
		}
		return nil

	case "expression_statement":
		return b.collectExpressionStatement(node)

	case "return_statement":
		return b.collectReturn(node)

	case "if_statement":
		return b.collectIf(node)

	case "for_statement":
		return b.collectFor(node)

	case "while_statement":
		return b.collectWhile(node)

	case "with_statement":
		return b.collectWith(node)

	case "try_statement":
		return b.collectTry(node)

	case "raise_statement":
		b.recordRaise(node)
		return &model.Statement{Type: model.StatementRaise, Line: b.w.line(node), Uses: b.usesIn(node)}

	default:
		return nil
	}
}

func (b *bodyCollector) collectExpressionStatement(node *sitter.Node) *model.Statement {
	if node.NamedChildCount() != 1 {
		return nil
	}
	inner := node.NamedChild(0)
	switch inner.Type() {
	case "assignment":
		return b.collectAssignment(inner)
	case "augmented_assignment":
		left := inner.ChildByFieldName("left")
		right := inner.ChildByFieldName("right")
		def := ""
		if left != nil && left.Type() == "identifier" {
			def = b.w.text(left)
			b.recordAccess(def, true, b.w.line(inner))
		}
		uses := b.usesIn(right)
		b.collectCallsIn(inner)
		return &model.Statement{Type: model.StatementAssignment, Line: b.w.line(inner), Def: def, Uses: uses}
	case "call":
		target, args := b.collectCall(inner, false)
		return &model.Statement{Type: model.StatementCall, Line: b.w.line(inner), CallTarget: target, CallArgs: args}
	case "await":
		return b.collectAwaitStatement(inner)
	default:
		b.collectCallsIn(inner)
		return &model.Statement{Type: model.StatementExpression, Line: b.w.line(inner), Uses: b.usesIn(inner)}
	}
}

func (b *bodyCollector) collectAwaitStatement(await *sitter.Node) *model.Statement {
	inner := firstNamedChild(await)
	if inner != nil && inner.Type() == "call" {
		target, args := b.collectCall(inner, true)
		return &model.Statement{Type: model.StatementCall, Line: b.w.line(await), CallTarget: target, CallArgs: args}
	}
	b.collectCallsIn(await)
	return &model.Statement{Type: model.StatementExpression, Line: b.w.line(await), Uses: b.usesIn(await)}
}

func (b *bodyCollector) collectAssignment(assign *sitter.Node) *model.Statement {
	left := assign.ChildByFieldName("left")
	right := assign.ChildByFieldName("right")
	b.collectCallsIn(right)

	stmt := &model.Statement{Type: model.StatementAssignment, Line: b.w.line(assign), Uses: b.usesIn(right)}

	if left == nil {
		return stmt
	}
	switch left.Type() {
	case "identifier":
		name := b.w.text(left)
		stmt.Def = name
		b.recordAccess(name, true, b.w.line(assign))
	case "subscript":
		if base := firstNamedChild(left); base != nil {
			name := b.w.text(base)
			stmt.Uses = append(stmt.Uses, name)
			b.recordAccess(name, true, b.w.line(assign))
		}
	case "attribute":
		if base := left.ChildByFieldName("object"); base != nil {
			stmt.Uses = append(stmt.Uses, b.w.text(base))
		}
	}
	return stmt
}

func (b *bodyCollector) collectReturn(node *sitter.Node) *model.Statement {
	val := firstNamedChild(node)
	nilReturn := val == nil || val.Type() == "none"
	stmt := &model.Statement{
		Type:       model.StatementReturn,
		Line:       b.w.line(node),
		Uses:       b.usesIn(node),
		ReturnsNil: nilReturn,
	}
	if val != nil && val.Type() == "call" {
		// A returned call is also kept as a nested call statement so that
		// flattened statement lists see its target and arguments.
		target, args := b.collectCall(val, false)
		stmt.Nested = []*model.Statement{{Type: model.StatementCall, Line: b.w.line(val), CallTarget: target, CallArgs: args}}
	} else {
		b.collectCallsIn(node)
	}
	return stmt
}

func (b *bodyCollector) collectIf(node *sitter.Node) *model.Statement {
	cond := node.ChildByFieldName("condition")
	cons := node.ChildByFieldName("consequence")
	b.collectCallsIn(cond)

	stmt := &model.Statement{Type: model.StatementIf, Line: b.w.line(node), Uses: b.usesIn(cond)}
	if cons != nil {
		stmt.Nested = b.collectBlock(cons)
	}
	if alt := node.ChildByFieldName("alternative"); alt != nil {
		stmt.ElseBranch = b.collectAlternative(alt)
	}
	return stmt
}

func (b *bodyCollector) collectAlternative(alt *sitter.Node) []*model.Statement {
	switch alt.Type() {
	case "elif_clause":
		if s := b.collectIf(alt); s != nil {
			s.Type = model.StatementIf
			return []*model.Statement{s}
		}
		return nil
	case "else_clause":
		if body := alt.ChildByFieldName("body"); body != nil {
			return b.collectBlock(body)
		}
	}
	return nil
}

func (b *bodyCollector) collectFor(node *sitter.Node) *model.Statement {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	body := node.ChildByFieldName("body")
	b.collectCallsIn(right)

	stmt := &model.Statement{Type: model.StatementFor, Line: b.w.line(node), Uses: b.usesIn(right)}
	if left != nil && left.Type() == "identifier" {
		stmt.Def = b.w.text(left)
	}
	if body != nil {
		stmt.Nested = b.collectBlock(body)
	}
	return stmt
}

func (b *bodyCollector) collectWhile(node *sitter.Node) *model.Statement {
	cond := node.ChildByFieldName("condition")
	body := node.ChildByFieldName("body")
	b.collectCallsIn(cond)
	stmt := &model.Statement{Type: model.StatementWhile, Line: b.w.line(node), Uses: b.usesIn(cond)}
	if body != nil {
		stmt.Nested = b.collectBlock(body)
	}
	return stmt
}

func (b *bodyCollector) collectWith(node *sitter.Node) *model.Statement {
	stmt := &model.Statement{Type: model.StatementWith, Line: b.w.line(node)}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		if c.Type() != "with_clause" {
			continue
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			item := c.NamedChild(j)
			if item.Type() != "with_item" {
				continue
			}
			val := item.ChildByFieldName("value")
			b.collectCallsIn(val)
			stmt.Uses = append(stmt.Uses, b.usesIn(val)...)
		}
	}
	if body := node.ChildByFieldName("body"); body != nil {
		stmt.Nested = b.collectBlock(body)
	}
	return stmt
}

func (b *bodyCollector) collectTry(node *sitter.Node) *model.Statement {
	b.exceptions.HasTry = true
	stmt := &model.Statement{Type: model.StatementTry, Line: b.w.line(node)}
	if body := node.ChildByFieldName("body"); body != nil {
		stmt.Nested = b.collectBlock(body)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		clause := node.NamedChild(i)
		switch clause.Type() {
		case "except_clause":
			b.collectExceptClause(clause)
			if body := lastBlockChild(clause); body != nil {
				stmt.ElseBranch = append(stmt.ElseBranch, b.collectBlock(body)...)
			}
		case "finally_clause":
			if body := firstBlockChild(clause); body != nil {
				stmt.ElseBranch = append(stmt.ElseBranch, b.collectBlock(body)...)
			}
		}
	}
	return stmt
}

func (b *bodyCollector) collectExceptClause(clause *sitter.Node) {
	hasType := false
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		if c.Type() == "block" {
			continue
		}
		hasType = true
	}
	if hasType {
		b.exceptions.HasSpecificOn = true
	} else {
		b.exceptions.HasBareExcept = true
	}
	if containsRaise(clause) {
		b.exceptions.ReRaises = true
	}
}

func containsRaise(node *sitter.Node) bool {
	if node.Type() == "raise_statement" {
		return true
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if containsRaise(node.NamedChild(i)) {
			return true
		}
	}
	return false
}

func (b *bodyCollector) recordRaise(node *sitter.Node) {
	b.collectCallsIn(node)
}

func firstBlockChild(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if c := node.NamedChild(i); c.Type() == "block" {
			return c
		}
	}
	return nil
}

func lastBlockChild(node *sitter.Node) *sitter.Node {
	var last *sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if c := node.NamedChild(i); c.Type() == "block" {
			last = c
		}
	}
	return last
}

func firstNamedChild(node *sitter.Node) *sitter.Node {
	if node == nil || node.NamedChildCount() == 0 {
		return nil
	}
	return node.NamedChild(0)
}

// recordAccess appends one GlobalAccess entry. The call-graph builder
// filters these against known module-level assignment names to build the
// shared-state map; recording every bare-name write/read here, local or
// global, keeps this pass scope-agnostic and single-traversal.
func (b *bodyCollector) recordAccess(name string, write bool, line int) {
	b.fn.GlobalAccess = append(b.fn.GlobalAccess, model.GlobalAccess{Name: name, Write: write, Line: line})
}

// collectCallsIn recursively records every call expression within a
// subtree as a CallSite, without descending into nested function/class
// definitions (those get their own FunctionDef and their own call sites).
func (b *bodyCollector) collectCallsIn(node *sitter.Node) {
	if node == nil {
		return
	}
	if node.Type() == "function_definition" || node.Type() == "class_definition" {
		return
	}
	if node.Type() == "call" {
		b.collectCall(node, isAwaited(node))
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		b.collectCallsIn(node.NamedChild(i))
	}
}

func isAwaited(call *sitter.Node) bool {
	p := call.Parent()
	return p != nil && p.Type() == "await"
}

// collectCall records one CallSite and returns (callee text, argument
// variable names) for callers that also need the call's shape (e.g. a
// bare expression-statement call).
func (b *bodyCollector) collectCall(call *sitter.Node, awaited bool) (string, []string) {
	fnNode := call.ChildByFieldName("function")
	callee := ""
	receiver := ""
	if fnNode != nil {
		callee = b.w.text(fnNode)
		if fnNode.Type() == "attribute" {
			if obj := fnNode.ChildByFieldName("object"); obj != nil {
				receiver = b.w.text(obj)
			}
		}
	}

	var args []string
	argIsLiteralString := false
	if argsNode := call.ChildByFieldName("arguments"); argsNode != nil {
		if argsNode.NamedChildCount() == 1 && argsNode.NamedChild(0).Type() == "string" {
			argIsLiteralString = true
		}
		for i := 0; i < int(argsNode.NamedChildCount()); i++ {
			arg := argsNode.NamedChild(i)
			if arg.Type() == "identifier" {
				args = append(args, b.w.text(arg))
			}
		}
		// Recurse into argument subtrees for nested calls.
		for i := 0; i < int(argsNode.NamedChildCount()); i++ {
			b.collectCallsIn(argsNode.NamedChild(i))
		}
	}

	b.fn.CallSites = append(b.fn.CallSites, model.CallSite{
		Callee:             callee,
		Receiver:           receiver,
		Awaited:            awaited,
		Line:               b.w.line(call),
		ArgIsLiteralString: argIsLiteralString,
	})

	return callee, args
}

// usesIn collects every bare identifier read within a subtree, used for a
// Statement's Uses list (def-use chains for flowfacts).
func (b *bodyCollector) usesIn(node *sitter.Node) []string {
	if node == nil {
		return nil
	}
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "function_definition" || n.Type() == "class_definition" {
			return
		}
		if n.Type() == "identifier" {
			out = append(out, b.w.text(n))
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(node)
	return out
}
