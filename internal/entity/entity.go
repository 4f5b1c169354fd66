// # internal/entity/entity.go
package entity

import "strings"

// Visibility of an entity, derived per dialect from naming conventions,
// access control blocks or an explicit public-names list.
type Visibility int

const (
	Private Visibility = iota
	Protected
	Public
)

func (v Visibility) String() string {
	switch v {
	case Private:
		return "private"
	case Protected:
		return "protected"
	case Public:
		return "public"
	}
	return "unknown"
}

// Modifier describes how a function is bound.
type Modifier int

const (
	General Modifier = iota // plain function / instance method
	Static
	ClassBound
)

// OpenEnd marks an entity whose scope has not been closed yet.
const OpenEnd = -1

// Well-known keys of the module-level pseudo entries.
const (
	GlobalsKey = "@@Globals@@"
	ImportsKey = "@@Import@@"
	CodingKey  = "@@Coding@@"
	PublicsKey = "__all__"
)

// Entity is implemented by everything a scan can put into a result map.
type Entity interface {
	Ident() string
	Path() string
	StartLine() int
	EndLine() int
	SetEndLine(line int)
	Vis() Visibility
	SetVis(v Visibility)
}

// Map is the name -> entity mapping returned for one scanned module.
type Map map[string]Entity

// Globals returns the module-level variables container, if any.
func (m Map) Globals() *Container {
	c, _ := m[GlobalsKey].(*Container)
	return c
}

// ImportsRecord returns the module's import record, if any.
func (m Map) ImportsRecord() *Imports {
	i, _ := m[ImportsKey].(*Imports)
	return i
}

// CodingRecord returns the module's encoding declaration, if any.
func (m Map) CodingRecord() *Coding {
	c, _ := m[CodingKey].(*Coding)
	return c
}

// Base carries the fields shared by all entities.
type Base struct {
	Module     string
	Name       string
	File       string
	Lineno     int
	EndLineno  int
	Visibility Visibility
}

func NewBase(module, name, file string, lineno int) Base {
	return Base{
		Module:    module,
		Name:      name,
		File:      file,
		Lineno:    lineno,
		EndLineno: OpenEnd,
	}
}

func (b *Base) Ident() string       { return b.Name }
func (b *Base) Path() string        { return b.File }
func (b *Base) StartLine() int      { return b.Lineno }
func (b *Base) EndLine() int        { return b.EndLineno }
func (b *Base) SetEndLine(line int) { b.EndLineno = line }
func (b *Base) Vis() Visibility     { return b.Visibility }
func (b *Base) SetVis(v Visibility) { b.Visibility = v }
func (b *Base) IsPrivate() bool     { return b.Visibility == Private }
func (b *Base) IsProtected() bool   { return b.Visibility == Protected }
func (b *Base) IsPublic() bool      { return b.Visibility == Public }

// ConventionVisibility maps a name's lexical shape to a visibility:
// a double underscore prefix is private, a single underscore protected,
// everything else public.
func ConventionVisibility(name string) Visibility {
	switch {
	case strings.HasPrefix(name, "__"):
		return Private
	case strings.HasPrefix(name, "_"):
		return Protected
	default:
		return Public
	}
}

// Scope is implemented by entities that can own children: modules,
// classes and functions (nested definitions).
type Scope interface {
	Entity
	AddMethod(name string, f *Function)
	Method(name string) *Function
	AddClass(name string, c *Class)
	Class(name string) *Class
	AddAttribute(a *Attribute)
	Attribute(name string) *Attribute
	AddGlobal(a *Attribute)
	Children() (methods map[string]*Function, attributes map[string]*Attribute, classes map[string]*Class, globals map[string]*Attribute)
}

// Container implements the four child mappings shared by module, class
// and function entities.
type Container struct {
	Base
	Methods    map[string]*Function
	Attributes map[string]*Attribute
	Classes    map[string]*Class
	Globals    map[string]*Attribute
}

func NewContainer(module, name, file string, lineno int) Container {
	return Container{
		Base:       NewBase(module, name, file, lineno),
		Methods:    make(map[string]*Function),
		Attributes: make(map[string]*Attribute),
		Classes:    make(map[string]*Class),
		Globals:    make(map[string]*Attribute),
	}
}

func (c *Container) AddMethod(name string, f *Function) {
	c.Methods[name] = f
}

func (c *Container) Method(name string) *Function {
	return c.Methods[name]
}

func (c *Container) AddClass(name string, cls *Class) {
	c.Classes[name] = cls
}

func (c *Container) Class(name string) *Class {
	return c.Classes[name]
}

// AddAttribute registers an attribute. A repeated assignment to the same
// name records the extra line on the existing attribute instead of
// creating a duplicate entity.
func (c *Container) AddAttribute(a *Attribute) {
	if existing, ok := c.Attributes[a.Name]; ok {
		existing.AddAssignment(a.Lineno)
		return
	}
	c.Attributes[a.Name] = a
}

func (c *Container) Attribute(name string) *Attribute {
	return c.Attributes[name]
}

// AddGlobal registers a module- or class-level variable with the same
// reassignment folding as AddAttribute.
func (c *Container) AddGlobal(a *Attribute) {
	if existing, ok := c.Globals[a.Name]; ok {
		existing.AddAssignment(a.Lineno)
		return
	}
	c.Globals[a.Name] = a
}

func (c *Container) Children() (map[string]*Function, map[string]*Attribute, map[string]*Class, map[string]*Attribute) {
	return c.Methods, c.Attributes, c.Classes, c.Globals
}

// SuperRef is a reference to a superclass. Name is always set; Class is
// filled opportunistically when the referenced class is already known
// and may stay nil if it never is.
type SuperRef struct {
	Name  string
	Class *Class
}

// ClassKind distinguishes presentation of class-like scopes.
type ClassKind int

const (
	PlainClass ClassKind = iota
	Interface
	Namespace // block-structured module/namespace construct
)

// Class represents a class, interface or namespace definition.
type Class struct {
	Container
	Kind   ClassKind
	Supers []SuperRef
}

func NewClass(module, name, file string, lineno int, supers []SuperRef) *Class {
	return &Class{
		Container: NewContainer(module, name, file, lineno),
		Supers:    supers,
	}
}

// Function represents a free function, a method or a nested function.
type Function struct {
	Container
	Parameters []string
	Annotation string
	Modifier   Modifier
}

// NewFunction splits the raw signature on the separator and trims each
// parameter fragment.
func NewFunction(module, name, file string, lineno int, signature, separator string) *Function {
	f := &Function{Container: NewContainer(module, name, file, lineno)}
	if separator == "" {
		separator = ","
	}
	for _, p := range strings.Split(signature, separator) {
		f.Parameters = append(f.Parameters, strings.TrimSpace(p))
	}
	return f
}

// Attribute is a named value binding. Linenos lists every line the name
// was assigned on within its scope, in order of discovery.
type Attribute struct {
	Base
	Linenos []int
}

func NewAttribute(module, name, file string, lineno int) *Attribute {
	return &Attribute{
		Base:    NewBase(module, name, file, lineno),
		Linenos: []int{lineno},
	}
}

func (a *Attribute) AddAssignment(lineno int) {
	for _, l := range a.Linenos {
		if l == lineno {
			return
		}
	}
	a.Linenos = append(a.Linenos, lineno)
}

// Coding records a detected source encoding declaration, at most one per
// module.
type Coding struct {
	Base
	Coding string
}

func NewCoding(module, file string, lineno int, coding string) *Coding {
	c := &Coding{Base: NewBase(module, "Coding", file, lineno), Coding: coding}
	c.EndLineno = lineno
	return c
}

// Publics is the explicit public-names marker of a module. It overrides
// convention-based visibility for every top-level entity and is removed
// from the result after being applied.
type Publics struct {
	Base
	Identifiers []string
}

func NewPublics(module, file string, lineno int, idents string) *Publics {
	p := &Publics{Base: NewBase(module, PublicsKey, file, lineno)}
	for _, raw := range strings.Split(idents, ",") {
		name := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'`))
		if name != "" {
			p.Identifiers = append(p.Identifiers, name)
		}
	}
	return p
}

func (p *Publics) Lists(name string) bool {
	for _, id := range p.Identifiers {
		if id == name {
			return true
		}
	}
	return false
}

// Imports collects every import of a module, keyed by imported module
// name.
type Imports struct {
	Base
	Imported map[string]*ImportedModule
}

func NewImports(module, file string) *Imports {
	return &Imports{
		Base:     NewBase(module, "import", file, 0),
		Imported: make(map[string]*ImportedModule),
	}
}

// Add merges an import of moduleName with the given symbol names at
// lineno into the record.
func (i *Imports) Add(moduleName string, names []string, lineno int) {
	im, ok := i.Imported[moduleName]
	if !ok {
		im = &ImportedModule{
			Base:          NewBase(i.Module, "import", i.File, lineno),
			ImportedName:  moduleName,
			ImportedNames: make(map[string][]int),
		}
		i.Imported[moduleName] = im
	}
	im.addImport(lineno, names)
	if i.Lineno == 0 || lineno < i.Lineno {
		i.Lineno = lineno
	}
}

func (i *Imports) Get(moduleName string) *ImportedModule {
	return i.Imported[moduleName]
}

// ImportedModule holds the import lines of one imported module and the
// lines each imported symbol was named on.
type ImportedModule struct {
	Base
	ImportedName  string
	Linenos       []int
	ImportedNames map[string][]int
}

func (im *ImportedModule) addImport(lineno int, names []string) {
	seen := false
	for _, l := range im.Linenos {
		if l == lineno {
			seen = true
			break
		}
	}
	if !seen {
		im.Linenos = append(im.Linenos, lineno)
	}
	for _, name := range names {
		im.ImportedNames[name] = append(im.ImportedNames[name], lineno)
	}
}
