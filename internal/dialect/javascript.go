// # internal/dialect/javascript.go
package dialect

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"clbr/internal/core/errors"
	"clbr/internal/entity"
)

// jsScanner delegates structure discovery to a tree-sitter grammar
// instead of a line pattern set. JavaScript and TypeScript share the
// visitor; the grammar differs.
type jsScanner struct {
	name string
	lang *sitter.Language
}

func newJavaScriptScanner() Scanner {
	return &jsScanner{
		name: "javascript",
		lang: sitter.NewLanguage(tree_sitter_javascript.Language()),
	}
}

func newTypeScriptScanner() Scanner {
	return &jsScanner{
		name: "typescript",
		lang: sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
	}
}

func (s *jsScanner) Dialect() string { return s.name }

func (s *jsScanner) Scan(module, file, src string) (entity.Map, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(s.lang)

	source := []byte(src)
	tree := parser.Parse(source, nil)
	if tree == nil {
		err := errors.New(errors.CodeScanStalled, "syntax tree construction failed")
		return nil, errors.AddContext(err, errors.CtxPath, file)
	}
	defer tree.Close()

	v := &jsVisitor{
		module: module,
		file:   file,
		source: source,
		dict:   make(entity.Map),
		counts: make(map[string]int),
	}
	v.walk(tree.RootNode())
	return v.dict, nil
}

type jsFrame struct {
	scope   entity.Scope
	endLine int
}

// jsVisitor builds the entity map from a syntax tree. Scopes are popped
// by end-line containment: any frame ending before the node being
// visited is no longer enclosing.
type jsVisitor struct {
	module string
	file   string
	source []byte
	dict   entity.Map
	counts map[string]int
	stack  []jsFrame
}

func (v *jsVisitor) walk(node *sitter.Node) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "function_declaration", "generator_function_declaration":
		v.addFunction(v.fieldText(node, "name"), node, node)

	case "method_definition":
		v.addFunction(v.fieldText(node, "name"), node, node)

	case "class_declaration", "abstract_class_declaration":
		v.addClass(v.fieldText(node, "name"), node, entity.PlainClass, v.classHeritage(node))

	case "interface_declaration":
		v.addClass(v.fieldText(node, "name"), node, entity.Interface, v.classHeritage(node))

	case "internal_module":
		v.addClass(v.fieldText(node, "name"), node, entity.Namespace, nil)

	case "variable_declarator":
		v.handleDeclarator(node)

	case "pair":
		if value := node.ChildByFieldName("value"); value != nil && isFunctionNode(value.Kind()) {
			v.addFunction(v.fieldText(node, "key"), node, value)
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		v.walk(node.Child(i))
	}
}

func (v *jsVisitor) handleDeclarator(node *sitter.Node) {
	name := v.fieldText(node, "name")
	if name == "" {
		return
	}
	if value := node.ChildByFieldName("value"); value != nil && isFunctionNode(value.Kind()) {
		v.addFunction(name, node, value)
		return
	}

	lineno := startLine(node)
	v.prune(lineno)
	attr := entity.NewAttribute(v.module, name, v.file, lineno)
	attr.SetEndLine(endLine(node))
	attr.SetVis(entity.ConventionVisibility(name))
	if top := v.top(lineno); top != nil {
		switch scope := top.(type) {
		case *entity.Function:
			scope.AddAttribute(attr)
		default:
			scope.AddGlobal(attr)
		}
		return
	}
	g := v.dict.Globals()
	if g == nil {
		c := entity.NewContainer(v.module, "Globals", v.file, lineno)
		v.dict[entity.GlobalsKey] = &c
		g = &c
	}
	g.AddGlobal(attr)
}

// addFunction records a function named by node with the body/signature
// of impl (the two differ for function-valued variables and pairs).
func (v *jsVisitor) addFunction(name string, node, impl *sitter.Node) {
	if name == "" {
		return
	}
	lineno := startLine(node)
	v.prune(lineno)

	sig := v.fieldText(impl, "parameters")
	sig = strings.TrimSuffix(strings.TrimPrefix(sig, "("), ")")
	f := entity.NewFunction(v.module, name, v.file, lineno, sig, ",")
	f.SetEndLine(endLine(impl))
	f.SetVis(entity.ConventionVisibility(name))
	if ret := v.fieldText(impl, "return_type"); ret != "" {
		f.Annotation = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ret), ":"))
	}

	if top := v.top(lineno); top != nil {
		top.AddMethod(name, f)
	} else {
		v.addTopLevel(name, f)
	}
	v.stack = append(v.stack, jsFrame{scope: f, endLine: f.EndLine()})
}

func (v *jsVisitor) addClass(name string, node *sitter.Node, kind entity.ClassKind, supers []entity.SuperRef) {
	if name == "" {
		return
	}
	lineno := startLine(node)
	v.prune(lineno)

	for i := range supers {
		if ref, ok := v.dict[supers[i].Name].(*entity.Class); ok {
			supers[i].Class = ref
		}
	}
	cls := entity.NewClass(v.module, name, v.file, lineno, supers)
	cls.Kind = kind
	cls.SetEndLine(endLine(node))
	cls.SetVis(entity.ConventionVisibility(name))

	if top := v.top(lineno); top != nil {
		top.AddClass(name, cls)
	} else {
		v.addTopLevel(name, cls)
	}
	v.stack = append(v.stack, jsFrame{scope: cls, endLine: cls.EndLine()})
}

func (v *jsVisitor) classHeritage(node *sitter.Node) []entity.SuperRef {
	var supers []entity.SuperRef
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		kind := child.Kind()
		if kind != "class_heritage" && kind != "extends_clause" && kind != "extends_type_clause" {
			continue
		}
		raw := v.text(child)
		raw = strings.ReplaceAll(raw, "extends", ",")
		raw = strings.ReplaceAll(raw, "implements", ",")
		for _, part := range strings.Split(raw, ",") {
			if name := strings.TrimSpace(part); name != "" {
				supers = append(supers, entity.SuperRef{Name: name})
			}
		}
	}
	return supers
}

func (v *jsVisitor) addTopLevel(name string, e entity.Entity) {
	if n, ok := v.counts[name]; ok {
		v.counts[name] = n + 1
		name = fmt.Sprintf("%s_%d", name, n+1)
	} else {
		v.counts[name] = 0
	}
	v.dict[name] = e
}

func (v *jsVisitor) prune(lineno int) {
	for len(v.stack) > 0 && v.stack[len(v.stack)-1].endLine < lineno {
		v.stack = v.stack[:len(v.stack)-1]
	}
}

func (v *jsVisitor) top(lineno int) entity.Scope {
	v.prune(lineno)
	if len(v.stack) == 0 {
		return nil
	}
	return v.stack[len(v.stack)-1].scope
}

func (v *jsVisitor) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(v.source[node.StartByte():node.EndByte()])
}

func (v *jsVisitor) fieldText(node *sitter.Node, field string) string {
	return v.text(node.ChildByFieldName(field))
}

func isFunctionNode(kind string) bool {
	switch kind {
	case "function", "function_expression", "generator_function", "arrow_function":
		return true
	}
	return false
}

func startLine(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

func endLine(node *sitter.Node) int {
	return int(node.EndPosition().Row) + 1
}
