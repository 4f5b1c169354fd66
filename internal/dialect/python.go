// # internal/dialect/python.go
package dialect

import (
	"regexp"
	"strings"

	"clbr/internal/entity"
	"clbr/internal/scan"
)

// TabWidth is the number of columns a tab advances when computing
// indentation depth.
const TabWidth = 4

var pythonRules = []string{
	"String",
	"Publics",
	"MethodModifier",
	"Method",
	"Class",
	"Attribute",
	"Variable",
	"ConditionalDefine",
	"Import",
	"ImportFrom",
	"CodingLine",
}

var pythonPattern = regexp.MustCompile(`(?ms)` +
	`(?P<String>` +
	`"""(?:.*?)"""` +
	`|'''(?:.*?)'''` +
	`|"[^"\\` + "\n" + `]*(?:\\.[^"\\` + "\n" + `]*)*"` +
	`|'[^'\\` + "\n" + `]*(?:\\.[^'\\` + "\n" + `]*)*')` +

	`|(?P<Publics>^[ \t]*__all__[ \t]*=[ \t]*\[(?P<Identifiers>[^\]]*?)\])` +

	`|(?P<MethodModifier>^(?P<MethodModifierIndent>[ \t]*)(?P<MethodModifierType>@classmethod|@staticmethod))` +

	`|(?P<Method>^(?P<MethodIndent>[ \t]*)(?:async[ \t]+)?def[ \t]+(?P<MethodName>\w+)` +
	`(?:[ \t]*\[(?:plain|html)\])?` +
	`[ \t]*\((?P<MethodSignature>(?:[^)]|\)[ \t]*,?)*?)\)[ \t]*` +
	`(?P<MethodReturnAnnotation>(?:->[ \t]*[^:]+)?)[ \t]*:)` +

	`|(?P<Class>^(?P<ClassIndent>[ \t]*)class[ \t]+(?P<ClassName>\w+)[ \t]*(?P<ClassSupers>\([^)]*\))?[ \t]*:)` +

	`|(?P<Attribute>^(?P<AttributeIndent>[ \t]*)self[ \t]*\.[ \t]*(?P<AttributeName>\w+)[ \t]*=)` +

	`|(?P<Variable>^(?P<VariableIndent>[ \t]*)(?P<VariableName>\w+)[ \t]*=)` +

	`|(?P<ConditionalDefine>^(?P<ConditionalDefineIndent>[ \t]*)(?:(?:if|elif)[ \t]+[^:` + "\n" + `]*|else[ \t]*):)` +

	`|(?P<Import>^[ \t]*(?:import|from[ \t]+\.[ \t]+import)[ \t]+(?P<ImportList>(?:[^#;\\` + "\n" + `]*(?:\\` + "\n" + `)*)*))` +

	`|(?P<ImportFrom>^[ \t]*from[ \t]+(?P<ImportFromPath>\.*\w+(?:[ \t]*\.[ \t]*\w+)*)[ \t]+import[ \t]+` +
	`(?P<ImportFromList>\(\s*.*?\s*\)|(?:[^#;\\` + "\n" + `]*(?:\\` + "\n" + `)*)*))` +

	`|(?P<CodingLine>^#\s*[*_-]*\s*coding[:=]\s*(?P<Coding>[-\w_.]+)\s*[*_-]*$)`)

var (
	pyCommentSub = regexp.MustCompile(`#[^\n]*\n|#[^\n]*$`)
	pyDefFollows = regexp.MustCompile(`^\s*(?:async[ \t]+)?def`)
)

// pythonScanner scans whitespace-indented source. Nesting depth is the
// indentation column; an if/elif/else guard directly before a function
// definition contributes a depth correction so conditionally defined
// functions keep their logical nesting level.
type pythonScanner struct {
	conditionals []int // indents of open conditional defines
	deltas       []int
	deltaIndent  int
	deltaKnown   bool

	modifier       entity.Modifier
	modifierIndent int
}

func newPythonScanner() Scanner {
	return &pythonScanner{modifierIndent: -1}
}

func (s *pythonScanner) Dialect() string { return "python" }

func (s *pythonScanner) Scan(module, file, src string) (entity.Map, error) {
	dict, err := scan.Run(module, file, src, s)
	if err != nil {
		return nil, err
	}
	applyPublics(dict)
	return dict, nil
}

// applyPublics resolves the explicit public-names marker: listed
// top-level names become public, everything else private. The marker is
// consumed and does not survive into the result.
func applyPublics(dict entity.Map) {
	pubs, ok := dict[entity.PublicsKey].(*entity.Publics)
	if !ok {
		return
	}
	for key, ent := range dict {
		if key == entity.PublicsKey || strings.HasPrefix(key, "@@") {
			continue
		}
		if pubs.Lists(key) {
			ent.SetVis(entity.Public)
		} else {
			ent.SetVis(entity.Private)
		}
	}
	delete(dict, entity.PublicsKey)
}

func (s *pythonScanner) Tokens(src string) []scan.Token {
	return scan.Tokenize(pythonPattern, pythonRules, src)
}

func (s *pythonScanner) Handle(d *scan.Driver, tok scan.Token) error {
	switch tok.Kind {
	case "String":
		// skipped, only consumed so contents cannot match rules

	case "MethodModifier":
		s.modifierIndent = indentWidth(tok.Group("MethodModifierIndent"))
		switch tok.Group("MethodModifierType") {
		case "@staticmethod":
			s.modifier = entity.Static
		case "@classmethod":
			s.modifier = entity.ClassBound
		}

	case "Method":
		s.handleMethod(d, tok)

	case "Class":
		s.handleClass(d, tok)

	case "Attribute":
		lineno := d.LineAt(tok.Start)
		attr := entity.NewAttribute(d.Module, tok.Group("AttributeName"), d.File, lineno)
		attr.SetVis(entity.ConventionVisibility(attr.Name))
		// attributes belong to the nearest class or module scope, not
		// to an intervening function
		for i := 0; ; i++ {
			ent, _, ok := d.At(i)
			if !ok {
				break
			}
			if _, isFunc := ent.(*entity.Function); !isFunc {
				ent.AddAttribute(attr)
				break
			}
		}

	case "Variable":
		s.handleVariable(d, tok)

	case "Publics":
		lineno := d.LineAt(tok.Start)
		d.Dict[entity.PublicsKey] = entity.NewPublics(d.Module, d.File, lineno, tok.Group("Identifiers"))

	case "Import":
		lineno := d.LineAt(tok.Start)
		list := strings.ReplaceAll(joinLines(tok.Group("ImportList")), `\`, "")
		imports := d.ModuleImports()
		for _, name := range splitList(list) {
			imports.Add(name, nil, lineno)
		}

	case "ImportFrom":
		lineno := d.LineAt(tok.Start)
		mod := tok.Group("ImportFromPath")
		raw := tok.Group("ImportFromList")
		raw = strings.NewReplacer("(", "", ")", "", `\`, "").Replace(raw)
		var parts []string
		for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
			parts = append(parts, strings.TrimSpace(strings.SplitN(line, "#", 2)[0]))
		}
		d.ModuleImports().Add(mod, splitList(strings.Join(parts, "")), lineno)

	case "ConditionalDefine":
		if !pyDefFollows.MatchString(d.Src()[tok.End:]) {
			break
		}
		thisindent := indentWidth(tok.Group("ConditionalDefineIndent"))
		for len(s.conditionals) > 0 && s.conditionals[len(s.conditionals)-1] >= thisindent {
			s.conditionals = s.conditionals[:len(s.conditionals)-1]
			if len(s.deltas) > 0 {
				s.deltas = s.deltas[:len(s.deltas)-1]
			}
		}
		s.conditionals = append(s.conditionals, thisindent)
		s.deltaKnown = false

	case "CodingLine":
		lineno := d.LineAt(tok.Start)
		d.SetCoding(lineno, tok.Group("Coding"))

	default:
		return unexpectedToken(d.File, tok)
	}
	return nil
}

func (s *pythonScanner) handleMethod(d *scan.Driver, tok scan.Token) {
	thisindent := indentWidth(tok.Group("MethodIndent"))
	name := tok.Group("MethodName")
	sig := pyCommentSub.ReplaceAllString(strings.ReplaceAll(tok.Group("MethodSignature"), "\\\n", ""), "")
	ret := pyCommentSub.ReplaceAllString(strings.ReplaceAll(tok.Group("MethodReturnAnnotation"), "\\\n", ""), "")
	lineno := d.LineAt(tok.Start)

	modifier := entity.General
	if s.modifierIndent == thisindent {
		modifier = s.modifier
	}

	// depth correction for conditionally defined functions
	if len(s.conditionals) > 0 {
		if thisindent > s.conditionals[len(s.conditionals)-1] {
			if !s.deltaKnown {
				s.deltas = append(s.deltas, thisindent-s.conditionals[len(s.conditionals)-1])
				s.deltaIndent = 0
				for _, delta := range s.deltas {
					s.deltaIndent += delta
				}
				s.deltaKnown = true
			}
			thisindent -= s.deltaIndent
		} else {
			for len(s.conditionals) > 0 && s.conditionals[len(s.conditionals)-1] >= thisindent {
				s.conditionals = s.conditionals[:len(s.conditionals)-1]
				if len(s.deltas) > 0 {
					s.deltas = s.deltas[:len(s.deltas)-1]
				}
			}
			s.deltaKnown = false
		}
	}

	d.CloseScopes(thisindent, lineno-1)

	f := entity.NewFunction(d.Module, name, d.File, lineno, sig, ",")
	f.Annotation = strings.TrimSpace(ret)
	f.Modifier = modifier
	f.SetVis(entity.ConventionVisibility(name))
	if parent, _, ok := d.Top(); ok {
		// method of a class, or a function nested in a function
		parent.AddMethod(name, f)
	} else {
		d.AddTopLevel(name, f)
		d.CloseGlobalEntry(lineno - 1)
		d.SetGlobalEntry(f)
	}
	d.CloseCurrentFunc(lineno - 1)
	d.SetCurrent(f)
	d.Push(f, thisindent)

	s.modifier = entity.General
	s.modifierIndent = -1
}

func (s *pythonScanner) handleClass(d *scan.Driver, tok scan.Token) {
	thisindent := indentWidth(tok.Group("ClassIndent"))
	lineno := d.LineAt(tok.Start)
	d.CloseScopes(thisindent, lineno-1)

	name := tok.Group("ClassName")
	var supers []entity.SuperRef
	if raw := tok.Group("ClassSupers"); raw != "" {
		raw = pyCommentSub.ReplaceAllString(strings.TrimSpace(raw[1:len(raw)-1]), "")
		for _, n := range strings.Split(raw, ",") {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			ref := entity.SuperRef{Name: n}
			// link opportunistically when the superclass was already
			// seen in this module; dotted names are resolved later
			// against the module cache
			if known, ok := d.Dict[n].(*entity.Class); ok {
				ref.Class = known
			}
			supers = append(supers, ref)
		}
	}

	cur := entity.NewClass(d.Module, name, d.File, lineno, supers)
	cur.SetVis(entity.ConventionVisibility(name))
	if parent, _, ok := d.Top(); ok {
		parent.AddClass(name, cur)
	} else {
		d.AddTopLevel(name, cur)
		d.CloseGlobalEntry(lineno - 1)
		d.SetGlobalEntry(cur)
	}
	d.Push(cur, thisindent)
}

func (s *pythonScanner) handleVariable(d *scan.Driver, tok scan.Token) {
	thisindent := indentWidth(tok.Group("VariableIndent"))
	name := tok.Group("VariableName")
	lineno := d.LineAt(tok.Start)

	attr := entity.NewAttribute(d.Module, name, d.File, lineno)
	attr.SetVis(entity.ConventionVisibility(name))

	if thisindent == 0 {
		d.ModuleGlobals(lineno).AddGlobal(attr)
		d.CloseGlobalEntry(lineno - 1)
		d.SetGlobalEntry(nil)
		return
	}
	// class-level variable: attach to the first enclosing scope that is
	// shallower than the assignment and is a class
	for i := 0; ; i++ {
		ent, depth, ok := d.At(i)
		if !ok {
			break
		}
		if depth >= thisindent {
			continue
		}
		if cls, isClass := ent.(*entity.Class); isClass {
			cls.AddGlobal(attr)
		}
		break
	}
}

// indentWidth expands tabs and returns the indentation depth in columns.
func indentWidth(ws string) int {
	width := 0
	for _, r := range ws {
		if r == '\t' {
			width = (width/TabWidth + 1) * TabWidth
		} else {
			width++
		}
	}
	return width
}

func joinLines(s string) string {
	return strings.Join(strings.Split(s, "\n"), "")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
