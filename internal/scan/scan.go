// # internal/scan/scan.go

// Package scan implements the shared pattern-scanning machinery used by
// the token-based dialects: leftmost rule matching over the remaining
// source, line accounting, and the nesting stack that opens and closes
// entity scopes by depth comparison.
package scan

import (
	"fmt"
	"regexp"
	"strings"

	"clbr/internal/core/errors"
	"clbr/internal/entity"
)

// Token is one construct matched by a dialect's rule set. Groups holds
// the named captures that participated in the match.
type Token struct {
	Kind   string
	Start  int
	End    int
	Groups map[string]string
}

func (t Token) Group(name string) string {
	return t.Groups[name]
}

// Handler is the dialect half of a scan: it tokenizes the source and
// interprets each token against the driver's nesting state.
type Handler interface {
	Tokens(src string) []Token
	Handle(d *Driver, tok Token) error
}

// Tokenize applies the dialect's master pattern repeatedly and labels
// every match with the top-level rule group that matched. The rule names
// must be given in pattern order so alternation priority is kept.
func Tokenize(re *regexp.Regexp, ruleNames []string, src string) []Token {
	groupIndex := make(map[string]int)
	for i, name := range re.SubexpNames() {
		if name != "" {
			groupIndex[name] = i
		}
	}

	matches := re.FindAllStringSubmatchIndex(src, -1)
	tokens := make([]Token, 0, len(matches))
	for _, loc := range matches {
		tok := Token{Start: loc[0], End: loc[1], Groups: make(map[string]string)}
		for name, idx := range groupIndex {
			if loc[2*idx] >= 0 {
				tok.Groups[name] = src[loc[2*idx]:loc[2*idx+1]]
			}
		}
		for _, rule := range ruleNames {
			if _, ok := tok.Groups[rule]; ok {
				tok.Kind = rule
				break
			}
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

type frame struct {
	ent   entity.Scope
	depth int
}

// Driver holds the state shared by all token-based dialects while one
// file is scanned.
type Driver struct {
	Module string
	File   string
	Dict   entity.Map

	src        string
	offset     int
	lineno     int
	lastPos    int
	stack      []frame
	counts     map[string]int
	lastGlobal entity.Entity
	current    entity.Entity
}

// Run scans src with the given handler and returns the top-level entity
// map. Unmatched regions are skipped silently; a token that fails to
// advance the scan offset aborts with a SCAN_STALLED error.
func Run(module, file, src string, h Handler) (entity.Map, error) {
	d := &Driver{
		Module: module,
		File:   file,
		Dict:   make(entity.Map),
		src:    src,
		lineno: 1,
		counts: make(map[string]int),
	}

	for _, tok := range h.Tokens(src) {
		if tok.Start < d.offset {
			// consumed by an explicit skip (heredocs etc.)
			continue
		}
		if tok.End <= tok.Start {
			err := errors.New(errors.CodeScanStalled, "scan offset did not advance")
			return nil, errors.AddContext(err, errors.CtxPath, file)
		}
		d.offset = tok.End
		if err := h.Handle(d, tok); err != nil {
			return nil, err
		}
	}

	d.finish()
	return d.Dict, nil
}

// LineAt advances the running line counter to the line the byte offset
// start falls on and returns it.
func (d *Driver) LineAt(start int) int {
	d.lineno += strings.Count(d.src[d.lastPos:start], "\n")
	d.lastPos = start
	return d.lineno
}

// Line returns the current line without advancing.
func (d *Driver) Line() int { return d.lineno }

// Offset returns the current scan offset.
func (d *Driver) Offset() int { return d.offset }

// Skip moves the scan offset forward, discarding every token before it.
func (d *Driver) Skip(to int) {
	if to > d.offset {
		d.offset = to
	}
}

// Src exposes the source text for handlers that need to peek ahead.
func (d *Driver) Src() string { return d.src }

// Push opens a new scope at the given depth.
func (d *Driver) Push(e entity.Scope, depth int) {
	d.stack = append(d.stack, frame{ent: e, depth: depth})
}

// Top returns the innermost open scope.
func (d *Driver) Top() (entity.Scope, int, bool) {
	if len(d.stack) == 0 {
		return nil, 0, false
	}
	f := d.stack[len(d.stack)-1]
	return f.ent, f.depth, true
}

// Depth returns the number of open scopes.
func (d *Driver) Depth() int { return len(d.stack) }

// At returns the i-th scope from the top (0 = innermost).
func (d *Driver) At(i int) (entity.Scope, int, bool) {
	idx := len(d.stack) - 1 - i
	if idx < 0 {
		return nil, 0, false
	}
	f := d.stack[idx]
	return f.ent, f.depth, true
}

// CloseScopes closes every open scope whose depth is >= depth, deepest
// first, fixing each entity's end line.
func (d *Driver) CloseScopes(depth, endLine int) {
	for len(d.stack) > 0 && d.stack[len(d.stack)-1].depth >= depth {
		top := d.stack[len(d.stack)-1]
		if top.ent != nil && top.ent.EndLine() == entity.OpenEnd {
			top.ent.SetEndLine(endLine)
		}
		d.stack = d.stack[:len(d.stack)-1]
	}
}

// AddTopLevel registers a top-level entity, disambiguating duplicate
// names as name_1, name_2, ...
func (d *Driver) AddTopLevel(name string, e entity.Entity) string {
	if n, ok := d.counts[name]; ok {
		d.counts[name] = n + 1
		name = fmt.Sprintf("%s_%d", name, n+1)
	} else {
		d.counts[name] = 0
	}
	d.Dict[name] = e
	return name
}

// CloseGlobalEntry fixes the end line of the previous top-level entity
// when a new one begins.
func (d *Driver) CloseGlobalEntry(endLine int) {
	if d.lastGlobal != nil && d.lastGlobal.EndLine() == entity.OpenEnd {
		d.lastGlobal.SetEndLine(endLine)
	}
}

// SetGlobalEntry remembers the entity a later top-level construct will
// close.
func (d *Driver) SetGlobalEntry(e entity.Entity) {
	d.lastGlobal = e
}

// CloseCurrentFunc fixes the end line of the most recently opened
// function entity, if one is still open.
func (d *Driver) CloseCurrentFunc(endLine int) {
	if f, ok := d.current.(*entity.Function); ok && f.EndLine() == entity.OpenEnd {
		f.SetEndLine(endLine)
	}
}

// SetCurrent remembers the most recently created entity.
func (d *Driver) SetCurrent(e entity.Entity) {
	d.current = e
}

// ModuleGlobals returns the module-level variables container, creating
// it on first use.
func (d *Driver) ModuleGlobals(lineno int) *entity.Container {
	if g := d.Dict.Globals(); g != nil {
		return g
	}
	g := entity.NewContainer(d.Module, "Globals", d.File, lineno)
	d.Dict[entity.GlobalsKey] = &g
	return &g
}

// ModuleImports returns the module's import record, creating it on
// first use.
func (d *Driver) ModuleImports() *entity.Imports {
	if i := d.Dict.ImportsRecord(); i != nil {
		return i
	}
	i := entity.NewImports(d.Module, d.File)
	d.Dict[entity.ImportsKey] = i
	return i
}

// SetCoding records the encoding declaration once per module.
func (d *Driver) SetCoding(lineno int, coding string) {
	if d.Dict.CodingRecord() == nil {
		d.Dict[entity.CodingKey] = entity.NewCoding(d.Module, d.File, lineno, coding)
	}
}

// finish closes everything still open using the last source line and
// resolves the open sentinel on every remaining entity.
func (d *Driver) finish() {
	last := d.lastLine()
	for len(d.stack) > 0 {
		top := d.stack[len(d.stack)-1]
		if top.ent != nil && top.ent.EndLine() == entity.OpenEnd {
			top.ent.SetEndLine(last)
		}
		d.stack = d.stack[:len(d.stack)-1]
	}
	d.CloseGlobalEntry(last)
	for _, e := range d.Dict {
		normalize(e, last)
	}
}

func (d *Driver) lastLine() int {
	n := strings.Count(d.src, "\n")
	if n == 0 || !strings.HasSuffix(d.src, "\n") {
		n++
	}
	return n
}

// normalize fixes any entity still carrying the open sentinel: leaves
// collapse to their own start line, containers extend over their
// deepest child.
func normalize(e entity.Entity, last int) {
	s, ok := e.(entity.Scope)
	if !ok {
		if e.EndLine() == entity.OpenEnd {
			e.SetEndLine(e.StartLine())
		}
		return
	}
	methods, attributes, classes, globals := s.Children()
	end := s.StartLine()
	for _, m := range methods {
		normalize(m, last)
		end = maxLine(end, m.EndLine())
	}
	for _, c := range classes {
		normalize(c, last)
		end = maxLine(end, c.EndLine())
	}
	for _, a := range attributes {
		normalize(a, last)
		end = maxLine(end, a.EndLine())
	}
	for _, g := range globals {
		normalize(g, last)
		end = maxLine(end, g.EndLine())
	}
	if s.EndLine() == entity.OpenEnd {
		s.SetEndLine(end)
	}
}

func maxLine(a, b int) int {
	if b > a {
		return b
	}
	return a
}
