// # internal/dialect/idl.go
package dialect

import (
	"regexp"
	"strings"

	"clbr/internal/entity"
	"clbr/internal/scan"
)

var idlRules = []string{
	"String",
	"Comment",
	"Method",
	"Interface",
	"Module",
	"Attribute",
	"Begin",
	"End",
}

var idlPattern = regexp.MustCompile(`(?ms)` +
	`(?P<String>"[^"\\` + "\n" + `]*(?:\\.[^"\\` + "\n" + `]*)*")` +

	`|(?P<Comment>^[ \t]*//.*?$` +
	`|^[ \t]*/\*.*?\*/)` +

	`|(?P<Method>^(?P<MethodIndent>[ \t]*)(?:oneway[ \t]+)?(?:[a-zA-Z0-9_:]+|void)[ \t]*` +
	`(?P<MethodName>[a-zA-Z_][a-zA-Z0-9_]*)[ \t]*\((?P<MethodSignature>[^)]*?)\);[ \t]*)` +

	`|(?P<Interface>^(?P<InterfaceIndent>[ \t]*)(?:abstract[ \t]+)?interface[ \t]+` +
	`(?P<InterfaceName>[a-zA-Z_][a-zA-Z0-9_]*)[ \t]*(?P<InterfaceSupers>:[^{]+?)?[ \t]*\{)` +

	`|(?P<Module>^(?P<ModuleIndent>[ \t]*)module[ \t]+(?P<ModuleName>[a-zA-Z_][a-zA-Z0-9_]*)[ \t]*\{)` +

	`|(?P<Attribute>^(?P<AttributeIndent>[ \t]*)(?P<AttributeReadonly>readonly[ \t]+)?attribute[ \t]+` +
	`(?P<AttributeType>(?:[a-zA-Z0-9_:]+[ \t]+)+)(?P<AttributeNames>[^;]*);)` +

	`|(?P<Begin>[ \t]*\{)` +

	`|(?P<End>[ \t]*\}[ \t]*;)`)

var (
	idlCommentSub = regexp.MustCompile(`//[^\n]*\n|//[^\n]*$`)
	idlWsNorm     = regexp.MustCompile(`[ \t]{2,}`)
)

// idlScanner scans interface-definition source where nesting is a brace
// counter: interface/module headers consume their opening brace, `};`
// closes a block.
type idlScanner struct {
	indent int
}

func newIDLScanner() Scanner {
	return &idlScanner{}
}

func (s *idlScanner) Dialect() string { return "idl" }

func (s *idlScanner) Scan(module, file, src string) (entity.Map, error) {
	return scan.Run(module, file, src, s)
}

func (s *idlScanner) Tokens(src string) []scan.Token {
	return scan.Tokenize(idlPattern, idlRules, src)
}

func (s *idlScanner) Handle(d *scan.Driver, tok scan.Token) error {
	switch tok.Kind {
	case "String", "Comment":

	case "Method":
		s.handleMethod(d, tok)

	case "Interface":
		name := tok.Group("InterfaceName")
		var supers []entity.SuperRef
		if raw := tok.Group("InterfaceSupers"); raw != "" {
			super := strings.TrimSpace(idlCommentSub.ReplaceAllString(strings.TrimSpace(raw[1:]), ""))
			if super != "" {
				supers = append(supers, entity.SuperRef{Name: super})
			}
		}
		s.openScope(d, tok, name, entity.Interface, supers)

	case "Module":
		s.openScope(d, tok, tok.Group("ModuleName"), entity.Namespace, nil)

	case "Attribute":
		s.handleAttribute(d, tok)

	case "Begin":
		s.indent++

	case "End":
		s.indent--

	default:
		return unexpectedToken(d.File, tok)
	}
	return nil
}

func (s *idlScanner) handleMethod(d *scan.Driver, tok scan.Token) {
	thisindent := s.indent
	name := tok.Group("MethodName")
	sig := strings.ReplaceAll(tok.Group("MethodSignature"), "\\\n", "")
	sig = idlCommentSub.ReplaceAllString(sig, "")
	sig = idlWsNorm.ReplaceAllString(sig, " ")
	lineno := d.LineAt(tok.Start)

	d.CloseScopes(thisindent, lineno-1)

	var f *entity.Function
	if parent, _, ok := d.Top(); ok {
		if cls, isClass := parent.(*entity.Class); isClass {
			f = entity.NewFunction("", name, d.File, lineno, sig, ",")
			f.SetVis(entity.Public)
			cls.AddMethod(name, f)
		}
	} else {
		f = entity.NewFunction(d.Module, name, d.File, lineno, sig, ",")
		f.SetVis(entity.Public)
		d.AddTopLevel(name, f)
		d.CloseGlobalEntry(lineno - 1)
		d.SetGlobalEntry(f)
	}
	d.CloseCurrentFunc(lineno - 1)
	if f != nil {
		d.SetCurrent(f)
		d.Push(f, thisindent)
	}
}

func (s *idlScanner) openScope(d *scan.Driver, tok scan.Token, name string, kind entity.ClassKind, supers []entity.SuperRef) {
	thisindent := s.indent
	s.indent++
	lineno := d.LineAt(tok.Start)
	d.CloseScopes(thisindent, lineno-1)

	cur := entity.NewClass(d.Module, name, d.File, lineno, supers)
	cur.Kind = kind
	cur.SetVis(entity.Public)

	if parent, _, ok := d.Top(); ok {
		parent.AddClass(name, cur)
	} else {
		d.AddTopLevel(name, cur)
		d.CloseGlobalEntry(lineno - 1)
		d.SetGlobalEntry(cur)
	}
	d.CloseCurrentFunc(lineno - 1)
	d.SetCurrent(cur)
	d.Push(cur, thisindent)
}

func (s *idlScanner) handleAttribute(d *scan.Driver, tok scan.Token) {
	lineno := d.LineAt(tok.Start)
	for i := 0; ; i++ {
		ent, depth, ok := d.At(i)
		if !ok {
			return
		}
		if _, isFunc := ent.(*entity.Function); isFunc || depth >= s.indent {
			continue
		}
		readonly := tok.Group("AttributeReadonly") != ""
		for _, raw := range strings.Split(tok.Group("AttributeNames"), ",") {
			name := strings.TrimSpace(raw)
			if name == "" {
				continue
			}
			attr := entity.NewAttribute(d.Module, name, d.File, lineno)
			if readonly {
				attr.SetVis(entity.Private)
			} else {
				attr.SetVis(entity.Public)
			}
			ent.AddAttribute(attr)
		}
		return
	}
}
