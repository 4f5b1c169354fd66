// # internal/dialect/ruby.go
package dialect

import (
	"regexp"
	"strings"

	"clbr/internal/entity"
	"clbr/internal/scan"
)

var rubyRules = []string{
	"String",
	"HeredocQuoted",
	"Heredoc",
	"CodingLine",
	"Comment",
	"Method",
	"Class",
	"ClassIgnored",
	"Module",
	"AccessControl",
	"Attribute",
	"Attr",
	"Begin",
	"BeginEnd",
	"End",
}

var rubyPattern = regexp.MustCompile(`(?ms)` +
	`(?P<String>` +
	`=begin.*?=end` +
	`|"[^"\\` + "\n" + `]*(?:\\.[^"\\` + "\n" + `]*)*"` +
	`|'[^'\\` + "\n" + `]*(?:\\.[^'\\` + "\n" + `]*)*')` +

	// heredoc bodies are skipped by the handler, which scans for the
	// terminator line itself
	`|(?P<HeredocQuoted><<[-~]?["'](?P<HereMarker2>[^"'` + "\n" + `]+)["'])` +
	`|(?P<Heredoc><<[-~]?(?P<HereMarker>[A-Za-z_][A-Za-z0-9_]*))` +

	`|(?P<CodingLine>^#\s*[*_-]*\s*coding[:=]\s*(?P<Coding>[-\w_.]+)\s*[*_-]*$)` +

	`|(?P<Comment>^[ \t]*#+.*?$)` +

	`|(?P<Method>^(?P<MethodIndent>[ \t]*)def[ \t]+` +
	`(?:(?P<MethodName2>[a-zA-Z0-9_]+(?:\.|::)[a-zA-Z_][a-zA-Z0-9_?!=]*)` +
	`|(?P<MethodName>[a-zA-Z_][a-zA-Z0-9_?!=]*)` +
	`|(?P<MethodName3>[^( \t]{1,3}))[ \t]*` +
	`(?:\((?P<MethodSignature>(?:[^)]|\)[ \t]*,?)*?)\))?[ \t]*)` +

	`|(?P<Class>^(?P<ClassIndent>[ \t]*)class` +
	`(?:[ \t]+(?P<ClassName>[A-Z][a-zA-Z0-9_]*)[ \t]*(?P<ClassSupers><[ \t]*[A-Z][a-zA-Z0-9_:]*)?` +
	`|[ \t]*<<[ \t]*(?P<ClassName2>[a-zA-Z_][a-zA-Z0-9_:]*))[ \t]*)` +

	`|(?P<ClassIgnored>\([ \t]*class.*?end[ \t]*\))` +

	`|(?P<Module>^(?P<ModuleIndent>[ \t]*)module[ \t]+(?P<ModuleName>[A-Z][a-zA-Z0-9_:]*)[ \t]*)` +

	`|(?P<AccessControl>^(?P<AccessControlIndent>[ \t]*)` +
	`(?:(?P<AccessControlType>private|public|protected)[^_]` +
	`|(?P<AccessControlType2>private_class_method|public_class_method))` +
	`\(?[ \t]*(?P<AccessControlList>(?::[a-zA-Z0-9_]+,\s*)*(?::[a-zA-Z0-9_]+)+)?[ \t]*\)?)` +

	`|(?P<Attribute>^(?P<AttributeIndent>[ \t]*)(?P<AttributeName>@@?[a-zA-Z0-9_]*)[ \t]*=)` +

	`|(?P<Attr>^(?P<AttrIndent>[ \t]*)attr(?P<AttrType>_accessor|_reader|_writer)?` +
	`\(?[ \t]*(?P<AttrList>(?::[a-zA-Z0-9_]+,\s*)*(?::[a-zA-Z0-9_]+|true|false)+)[ \t]*\)?)` +

	`|(?P<Begin>^[ \t]*(?:def|if|unless|case|while|until|for|begin)\b[^_]` +
	`|[ \t]*do[ \t]*(?:\|.*?\|)?[ \t]*$)` +

	`|(?P<BeginEnd>\bif\b[^_].*?$|\bif\b[^_].*?end[ \t]*$)` +

	`|(?P<End>[ \t]*(?:end[ \t]*$|end\b[^_]))`)

var rubyCommentSub = regexp.MustCompile(`#[^\n]*\n|#[^\n]*$`)

// rubyScanner scans block-structured source where nesting is a raw
// begin/end keyword counter instead of indentation. Classes and modules
// may be reopened; a reopened body merges into the earlier entity.
type rubyScanner struct {
	indent int
	// pending access control modes, deepest last
	access []accessFrame
}

type accessFrame struct {
	mode  string
	depth int
}

func newRubyScanner() Scanner {
	return &rubyScanner{}
}

func (s *rubyScanner) Dialect() string { return "ruby" }

func (s *rubyScanner) Scan(module, file, src string) (entity.Map, error) {
	return scan.Run(module, file, src, s)
}

func (s *rubyScanner) Tokens(src string) []scan.Token {
	return scan.Tokenize(rubyPattern, rubyRules, src)
}

func (s *rubyScanner) Handle(d *scan.Driver, tok scan.Token) error {
	switch tok.Kind {
	case "String", "Comment", "ClassIgnored", "BeginEnd":
		// consumed so their contents cannot match rules

	case "Heredoc", "HeredocQuoted":
		marker := tok.Group("HereMarker")
		if marker == "" {
			marker = tok.Group("HereMarker2")
		}
		d.Skip(heredocEnd(d.Src(), tok.End, marker))

	case "Method":
		s.handleMethod(d, tok)

	case "Class":
		name := tok.Group("ClassName")
		if name == "" {
			name = tok.Group("ClassName2")
		}
		var supers []entity.SuperRef
		if raw := tok.Group("ClassSupers"); raw != "" {
			super := strings.TrimSpace(rubyCommentSub.ReplaceAllString(strings.TrimSpace(raw[1:]), ""))
			if super != "" {
				supers = append(supers, entity.SuperRef{Name: super})
			}
		}
		s.openScope(d, tok, name, entity.PlainClass, supers)

	case "Module":
		s.openScope(d, tok, tok.Group("ModuleName"), entity.Namespace, nil)

	case "AccessControl":
		s.handleAccessControl(d, tok)

	case "Attribute":
		lineno := d.LineAt(tok.Start)
		if parent := s.attributeParent(d); parent != nil {
			attr := entity.NewAttribute(d.Module, tok.Group("AttributeName"), d.File, lineno)
			attr.SetVis(entity.Private)
			parent.AddAttribute(attr)
		}

	case "Attr":
		s.handleAttr(d, tok)

	case "Begin":
		s.indent++

	case "End":
		s.indent--
		if s.indent < 0 {
			if _, depth, ok := d.Top(); ok {
				s.indent = depth
			} else {
				s.indent = 0
			}
		}

	case "CodingLine":
		lineno := d.LineAt(tok.Start)
		d.SetCoding(lineno, tok.Group("Coding"))

	default:
		return unexpectedToken(d.File, tok)
	}
	return nil
}

func (s *rubyScanner) handleMethod(d *scan.Driver, tok scan.Token) {
	thisindent := s.indent
	s.indent++

	name := tok.Group("MethodName")
	if name == "" {
		name = tok.Group("MethodName2")
	}
	if name == "" {
		name = tok.Group("MethodName3")
	}
	name = strings.TrimPrefix(strings.TrimPrefix(name, "self."), "self::")
	sig := rubyCommentSub.ReplaceAllString(strings.ReplaceAll(tok.Group("MethodSignature"), "\\\n", ""), "")
	lineno := d.LineAt(tok.Start)

	d.CloseScopes(thisindent, lineno-1)
	s.popAccess(thisindent)

	var f entity.Entity
	if parent, _, ok := d.Top(); ok {
		if cls, isClass := parent.(*entity.Class); isClass {
			fn := entity.NewFunction("", name, d.File, lineno, sig, ",")
			fn.SetVis(entity.Public)
			cls.AddMethod(name, fn)
			f = fn
		} else {
			// nested def: the enclosing function absorbs it
			f = parent
		}
		if len(s.access) > 0 {
			switch s.access[len(s.access)-1].mode {
			case "private":
				f.SetVis(entity.Private)
			case "protected":
				f.SetVis(entity.Protected)
			case "public":
				f.SetVis(entity.Public)
			}
		}
	} else {
		fn := entity.NewFunction(d.Module, name, d.File, lineno, sig, ",")
		fn.SetVis(entity.Public)
		d.AddTopLevel(name, fn)
		f = fn
	}
	if d.Depth() == 0 {
		d.CloseGlobalEntry(lineno - 1)
		d.SetGlobalEntry(f)
	}
	d.CloseCurrentFunc(lineno - 1)
	d.SetCurrent(f)
	if scope, ok := f.(entity.Scope); ok {
		d.Push(scope, thisindent)
	}
}

// openScope handles class and module headers, including reopening: a
// body for a name already known at the same scope merges into the
// existing entity instead of creating a duplicate.
func (s *rubyScanner) openScope(d *scan.Driver, tok scan.Token, name string, kind entity.ClassKind, supers []entity.SuperRef) {
	thisindent := s.indent
	s.indent++
	lineno := d.LineAt(tok.Start)
	d.CloseScopes(thisindent, lineno-1)

	fresh := entity.NewClass(d.Module, name, d.File, lineno, supers)
	fresh.Kind = kind
	fresh.SetVis(entity.Public)

	var cur entity.Scope = fresh
	if parent, _, ok := d.Top(); ok {
		if existing := parent.Class(name); existing != nil {
			cur = existing
		} else if parent.Ident() == name || name == "self" {
			cur = parent
		} else {
			parent.AddClass(name, fresh)
		}
	} else {
		if existing, ok := d.Dict[name].(*entity.Class); ok {
			cur = existing
		} else {
			d.Dict[name] = fresh
		}
		d.CloseGlobalEntry(lineno - 1)
		d.SetGlobalEntry(cur)
	}
	d.SetCurrent(cur)
	d.Push(cur, thisindent)

	s.popAccess(thisindent)
	s.access = append(s.access, accessFrame{mode: "public", depth: thisindent})
}

func (s *rubyScanner) handleAccessControl(d *scan.Driver, tok scan.Token) {
	mode := tok.Group("AccessControlType")
	if mode == "" {
		mode = strings.SplitN(tok.Group("AccessControlType2"), "_", 2)[0]
	}
	mode = strings.ToLower(mode)

	list := tok.Group("AccessControlList")
	if list == "" {
		// bare access keyword: switch the mode of the innermost block
		// opened above the current nesting level
		for i := len(s.access) - 1; i >= 0; i-- {
			if s.access[i].depth < s.indent {
				s.access[i].mode = mode
				break
			}
		}
		return
	}

	// name-list form retags only the listed, already-seen methods
	parent := s.attributeParent(d)
	if parent == nil {
		return
	}
	for _, raw := range strings.Split(list, ",") {
		name := strings.TrimPrefix(strings.TrimSpace(raw), ":")
		meth := parent.Method(name)
		if meth == nil {
			continue
		}
		switch mode {
		case "private":
			meth.SetVis(entity.Private)
		case "protected":
			meth.SetVis(entity.Protected)
		case "public":
			meth.SetVis(entity.Public)
		}
	}
}

func (s *rubyScanner) handleAttr(d *scan.Driver, tok scan.Token) {
	lineno := d.LineAt(tok.Start)
	parent := s.attributeParent(d)
	if parent == nil {
		return
	}

	lookup := func(name string) *entity.Attribute {
		if a := parent.Attribute("@" + name); a != nil {
			return a
		}
		if a := parent.Attribute("@@" + name); a != nil {
			return a
		}
		a := entity.NewAttribute(d.Module, "@"+name, d.File, lineno)
		a.SetVis(entity.Private)
		return a
	}

	names := strings.Split(tok.Group("AttrList"), ",")
	if tok.Group("AttrType") == "" {
		// attr :name [, writable]
		if len(names) == 0 {
			return
		}
		attr := lookup(strings.TrimPrefix(strings.TrimSpace(names[0]), ":"))
		if len(names) == 1 || strings.TrimSpace(names[1]) == "false" {
			attr.SetVis(entity.Protected)
		} else if strings.TrimSpace(names[1]) == "true" {
			attr.SetVis(entity.Public)
		}
		parent.AddAttribute(attr)
		return
	}

	access := tok.Group("AttrType")
	for _, raw := range names {
		attr := lookup(strings.TrimPrefix(strings.TrimSpace(raw), ":"))
		switch access {
		case "_accessor":
			attr.SetVis(entity.Public)
		case "_reader", "_writer":
			// a second half of an accessor pair widens visibility
			if attr.IsPrivate() {
				attr.SetVis(entity.Protected)
			} else if attr.IsProtected() {
				attr.SetVis(entity.Public)
			}
		}
		parent.AddAttribute(attr)
	}
}

// attributeParent finds the nearest open class/module shallower than
// the current nesting level, skipping function scopes.
func (s *rubyScanner) attributeParent(d *scan.Driver) entity.Scope {
	for i := 0; ; i++ {
		ent, depth, ok := d.At(i)
		if !ok {
			return nil
		}
		if _, isFunc := ent.(*entity.Function); isFunc || depth >= s.indent {
			continue
		}
		return ent
	}
}

func (s *rubyScanner) popAccess(depth int) {
	for len(s.access) > 0 && s.access[len(s.access)-1].depth >= depth {
		s.access = s.access[:len(s.access)-1]
	}
}

// heredocEnd returns the offset just past the line that terminates a
// heredoc started before from. An unterminated heredoc swallows the
// rest of the file, matching the tolerant best-effort contract.
func heredocEnd(src string, from int, marker string) int {
	rest := src[from:]
	offset := from
	for len(rest) > 0 {
		lineEnd := strings.IndexByte(rest, '\n')
		var line string
		if lineEnd < 0 {
			line = rest
			lineEnd = len(rest) - 1
		} else {
			line = rest[:lineEnd]
		}
		if strings.TrimSpace(line) == marker {
			return offset + lineEnd + 1
		}
		offset += lineEnd + 1
		rest = rest[lineEnd+1:]
	}
	return len(src)
}
