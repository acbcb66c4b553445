package pyast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/blastshield/engine/internal/model"
)

// walker holds the per-file state needed while recursively converting a
// tree-sitter CST into this engine's ModuleAST. One walker instance is
// used per file; it is not safe for concurrent use, matching the
// per-worker *sitter.Parser discipline used elsewhere in this package.
type walker struct {
	src  []byte
	path string
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.src)
}

func (w *walker) line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func (w *walker) endLine(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}

// walkModule converts the tree-sitter root "module" node into a ModuleAST.
// module_id/path/language are filled in by the caller once known.
func (w *walker) walkModule(root *sitter.Node) *model.ModuleAST {
	ast := &model.ModuleAST{}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		w.walkTopLevel(child, ast)
	}
	return ast
}

func (w *walker) walkTopLevel(node *sitter.Node, ast *model.ModuleAST) {
	switch node.Type() {
	case "import_statement", "import_from_statement":
		ast.Imports = append(ast.Imports, w.walkImport(node))

	case "decorated_definition":
		decorators := w.extractDecorators(node)
		inner := node.ChildByFieldName("definition")
		if inner == nil {
			return
		}
		switch inner.Type() {
		case "function_definition":
			ast.Functions = append(ast.Functions, w.walkFunction(inner, decorators, ""))
		case "class_definition":
			ast.Classes = append(ast.Classes, w.walkClass(inner))
		}

	case "function_definition":
		ast.Functions = append(ast.Functions, w.walkFunction(node, nil, ""))

	case "class_definition":
		ast.Classes = append(ast.Classes, w.walkClass(node))

	case "expression_statement":
		if assign := soleAssignment(node); assign != nil {
			if ma, ok := w.moduleAssignment(assign); ok {
				ast.Assignments = append(ast.Assignments, ma)
			}
		}
	}
}

// soleAssignment returns the assignment node wrapped by an
// expression_statement, or nil if the statement is not a plain assignment.
func soleAssignment(exprStmt *sitter.Node) *sitter.Node {
	if exprStmt.NamedChildCount() != 1 {
		return nil
	}
	child := exprStmt.NamedChild(0)
	if child.Type() == "assignment" {
		return child
	}
	return nil
}

func (w *walker) moduleAssignment(assign *sitter.Node) (model.ModuleAssignment, bool) {
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return model.ModuleAssignment{}, false
	}
	right := assign.ChildByFieldName("right")
	return model.ModuleAssignment{
		Name:      w.text(left),
		Container: inferContainer(right),
		Line:      w.line(assign),
	}, true
}

func inferContainer(right *sitter.Node) model.ContainerKind {
	if right == nil {
		return model.ContainerUnknown
	}
	switch right.Type() {
	case "list", "list_comprehension", "tuple":
		return model.ContainerSequence
	case "dictionary", "dictionary_comprehension":
		return model.ContainerMapping
	case "set", "set_comprehension":
		return model.ContainerSet
	case "integer", "float", "string", "true", "false", "none":
		return model.ContainerScalar
	default:
		return model.ContainerUnknown
	}
}

func (w *walker) extractDecorators(decorated *sitter.Node) []string {
	var out []string
	for i := 0; i < int(decorated.ChildCount()); i++ {
		child := decorated.Child(i)
		if child.Type() != "decorator" {
			continue
		}
		text := strings.TrimPrefix(w.text(child), "@")
		if idx := strings.Index(text, "("); idx != -1 {
			text = text[:idx]
		}
		out = append(out, strings.TrimSpace(text))
	}
	return out
}

func (w *walker) walkImport(node *sitter.Node) model.ImportStmt {
	stmt := model.ImportStmt{
		Line:       w.line(node),
		Names:      map[string]string{},
		FromImport: node.Type() == "import_from_statement",
	}
	if stmt.FromImport {
		if mod := node.ChildByFieldName("module_name"); mod != nil {
			stmt.TargetModule = w.text(mod)
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "dotted_name", "identifier":
			name := w.text(child)
			if !stmt.FromImport {
				// "import a.b.c" — the target module is this dotted name
				// itself; later "import a.b as x" is handled as
				// aliased_import below.
				stmt.TargetModule = name
			}
			stmt.Names[name] = name
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode == nil {
				continue
			}
			name := w.text(nameNode)
			alias := name
			if aliasNode != nil {
				alias = w.text(aliasNode)
			}
			if !stmt.FromImport {
				stmt.TargetModule = name
			}
			stmt.Names[alias] = name
		case "wildcard_import":
			stmt.Names["*"] = "*"
		}
	}
	return stmt
}

func (w *walker) walkClass(node *sitter.Node) *model.ClassDef {
	cls := &model.ClassDef{
		StartLine: w.line(node),
		EndLine:   w.endLine(node),
	}
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		cls.Name = w.text(nameNode)
	}
	if bases := node.ChildByFieldName("superclasses"); bases != nil {
		for i := 0; i < int(bases.NamedChildCount()); i++ {
			cls.Bases = append(cls.Bases, w.text(bases.NamedChild(i)))
		}
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		return cls
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		switch stmt.Type() {
		case "function_definition":
			cls.Methods = append(cls.Methods, w.walkFunction(stmt, nil, cls.Name))
		case "decorated_definition":
			decorators := w.extractDecorators(stmt)
			inner := stmt.ChildByFieldName("definition")
			if inner != nil && inner.Type() == "function_definition" {
				cls.Methods = append(cls.Methods, w.walkFunction(inner, decorators, cls.Name))
			}
		}
	}
	return cls
}

// walkFunction converts a function_definition node into a FunctionDef.
// scopePrefix is the enclosing class or function name for building a
// dotted (not yet module-qualified) name; the pipeline/callgraph stage
// prefixes this with the owning module id to get "module::func".
func (w *walker) walkFunction(node *sitter.Node, decorators []string, scopePrefix string) *model.FunctionDef {
	name := ""
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		name = w.text(nameNode)
	}
	qualified := name
	if scopePrefix != "" {
		qualified = scopePrefix + "." + name
	}

	fn := &model.FunctionDef{
		Name:          name,
		QualifiedName: qualified,
		StartLine:     w.line(node),
		EndLine:       w.endLine(node),
		Decorators:    decorators,
		IsAsync:       isAsyncDef(node),
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		fn.Params = w.walkParams(params)
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		fn.ReturnAnn = w.text(ret)
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return fn
	}

	b := &bodyCollector{w: w, fn: fn}
	fn.Statements = b.collectBlock(body)
	fn.Exceptions = b.exceptions
	fn.Nested = b.nested

	return fn
}

func isAsyncDef(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.Type() == "async" {
			return true
		}
		if c.Type() == "def" {
			break
		}
	}
	return false
}

func (w *walker) walkParams(params *sitter.Node) []model.Param {
	var out []model.Param
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier":
			out = append(out, model.Param{Name: w.text(p)})
		case "typed_parameter":
			n := p.ChildByFieldName("name")
			// typed_parameter's name field is sometimes unset in this
			// grammar version; fall back to the first identifier child.
			nm := ""
			if n != nil {
				nm = w.text(n)
			} else if first := p.NamedChild(0); first != nil {
				nm = w.text(first)
			}
			ann := ""
			if t := p.ChildByFieldName("type"); t != nil {
				ann = w.text(t)
			}
			out = append(out, model.Param{Name: nm, Annotation: ann})
		case "default_parameter":
			nameNode := p.ChildByFieldName("name")
			valNode := p.ChildByFieldName("value")
			param := model.Param{HasDefault: true}
			if nameNode != nil {
				param.Name = w.text(nameNode)
			}
			if valNode != nil {
				v := w.text(valNode)
				param.Default = &v
			}
			out = append(out, param)
		case "typed_default_parameter":
			nameNode := p.ChildByFieldName("name")
			typeNode := p.ChildByFieldName("type")
			valNode := p.ChildByFieldName("value")
			param := model.Param{HasDefault: true}
			if nameNode != nil {
				param.Name = w.text(nameNode)
			}
			if typeNode != nil {
				param.Annotation = w.text(typeNode)
			}
			if valNode != nil {
				v := w.text(valNode)
				param.Default = &v
			}
			out = append(out, param)
		case "list_splat_pattern", "dictionary_splat_pattern":
			out = append(out, model.Param{Name: w.text(p)})
		}
	}
	return out
}
