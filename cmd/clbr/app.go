// # cmd/clbr/app.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"clbr/internal/browse"
	"clbr/internal/config"
	"clbr/internal/dialect"
	"clbr/internal/entity"
	"clbr/internal/observability"
	"clbr/internal/store"
	"clbr/internal/util"
	"clbr/internal/watch"
)

type App struct {
	Config   *config.Config
	Registry *dialect.Registry
	Browser  *browse.Browser

	store      *store.Store
	limiter    *util.Limiter
	watcher    *watch.Watcher
	teaProgram *tea.Program
	outlines   []*Outline
}

func NewApp(cfg *config.Config) (*App, error) {
	overrides := make(map[string]dialect.Override, len(cfg.Dialects))
	for name, d := range cfg.Dialects {
		overrides[name] = dialect.Override{Enabled: d.Enabled, Extensions: d.Extensions}
	}
	registry, err := dialect.NewRegistry(overrides)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		Registry: registry,
		Browser:  browse.New(registry, cfg.SearchPaths, slog.Default()),
		limiter:  util.NewLimiter(cfg.Limits.ScansPerSecond, cfg.Limits.Burst),
	}

	if cfg.Store.Path != "" {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		app.store = st
	}
	return app, nil
}

func (a *App) Close(ctx context.Context) error {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

func (a *App) Health(ctx context.Context) observability.HealthStatus {
	return observability.HealthStatus{
		Status:        "up",
		CachedModules: a.Browser.CachedModules(),
	}
}

// Browse reads one command line argument, a module name or a file path,
// and builds its outline. Results are persisted when a store is
// configured.
func (a *App) Browse(ctx context.Context, arg string) *Outline {
	var (
		dict   entity.Map
		module string
	)
	if isFileArg(arg) {
		module = strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
		m, err := a.Browser.ReadFile(ctx, arg)
		if err != nil {
			slog.Warn("file read failed", "path", arg, "error", err)
			m = entity.Map{}
		}
		dict = m
	} else {
		module = arg
		dict = a.Browser.ReadModule(ctx, module)
	}

	outline := NewOutline(module, dict)
	if spec, ok := a.Registry.ForFile(outline.File); ok {
		outline.Dialect = spec.Name
	}
	a.persist(ctx, outline, dict)
	a.outlines = mergeOutlines(a.outlines, []*Outline{outline})
	return outline
}

func (a *App) persist(ctx context.Context, outline *Outline, dict entity.Map) {
	if a.store == nil || outline.File == "" {
		return
	}
	if _, err := a.store.SaveScan(ctx, outline.Module, outline.Dialect, outline.File, dict); err != nil {
		slog.Warn("scan not persisted", "module", outline.Module, "error", err)
	}
}

// isFileArg treats anything with a path separator or an existing file
// as a path; bare names go through module resolution.
func isFileArg(arg string) bool {
	if strings.ContainsRune(arg, os.PathSeparator) || strings.ContainsRune(arg, '/') {
		return true
	}
	info, err := os.Stat(arg)
	return err == nil && !info.IsDir()
}

func (a *App) StartWatcher(ctx context.Context) error {
	var extensions []string
	for _, name := range a.Registry.Order() {
		if spec, ok := a.Registry.Spec(name); ok {
			extensions = append(extensions, spec.Extensions...)
		}
	}

	w, err := watch.NewWatcher(a.Config.Watch.Debounce, a.Config.Watch.Exclude, extensions, func(paths []string) {
		a.onChanged(ctx, paths)
	})
	if err != nil {
		return err
	}
	if err := w.Watch(a.Config.Watch.Paths); err != nil {
		_ = w.Close()
		return err
	}
	a.watcher = w
	slog.Info("watching", "paths", a.Config.Watch.Paths, "debounce", a.Config.Watch.Debounce)
	return nil
}

func (a *App) onChanged(ctx context.Context, paths []string) {
	var outlines []*Outline
	for _, path := range paths {
		a.Browser.InvalidatePath(path)

		if _, err := os.Stat(path); os.IsNotExist(err) {
			if a.store != nil {
				if err := a.store.DeleteFile(ctx, path); err != nil {
					slog.Warn("stale store rows not removed", "path", path, "error", err)
				}
			}
			continue
		}

		if !a.limiter.Allow(1) {
			slog.Debug("rescan suppressed by rate limit", "path", path)
			continue
		}
		dict, err := a.Browser.ReadFile(ctx, path)
		if err != nil {
			slog.Warn("rescan failed", "path", path, "error", err)
			continue
		}
		module := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		outline := NewOutline(module, dict)
		if spec, ok := a.Registry.ForFile(path); ok {
			outline.Dialect = spec.Name
		}
		a.persist(ctx, outline, dict)
		outlines = append(outlines, outline)
	}

	if a.teaProgram != nil && len(outlines) > 0 {
		a.teaProgram.Send(updateMsg{outlines: outlines})
	}
}

// Outline is the presentation form of a structure map: entries sorted
// by line, nesting preserved.
type Outline struct {
	Module   string         `json:"module"`
	Dialect  string         `json:"dialect,omitempty"`
	File     string         `json:"file,omitempty"`
	Entities []OutlineEntry `json:"entities"`
}

type OutlineEntry struct {
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Visibility string         `json:"visibility"`
	StartLine  int            `json:"start_line"`
	EndLine    int            `json:"end_line"`
	Signature  string         `json:"signature,omitempty"`
	Children   []OutlineEntry `json:"children,omitempty"`
}

func NewOutline(module string, dict entity.Map) *Outline {
	o := &Outline{Module: module}
	for name, ent := range dict {
		if o.File == "" {
			o.File = ent.Path()
		}
		o.Entities = append(o.Entities, newOutlineEntry(name, ent))
	}
	sortEntries(o.Entities)
	return o
}

func newOutlineEntry(name string, ent entity.Entity) OutlineEntry {
	e := OutlineEntry{
		Name:       name,
		Kind:       kindOf(ent),
		Visibility: ent.Vis().String(),
		StartLine:  ent.StartLine(),
		EndLine:    ent.EndLine(),
	}
	switch v := ent.(type) {
	case *entity.Class:
		var supers []string
		for _, s := range v.Supers {
			supers = append(supers, s.Name)
		}
		e.Signature = strings.Join(supers, ", ")
		e.Children = childEntries(v)
	case *entity.Function:
		e.Signature = strings.Join(v.Parameters, ", ")
		e.Children = childEntries(v)
	case *entity.Container:
		e.Children = childEntries(v)
	case *entity.Coding:
		e.Signature = v.Coding
	case *entity.Publics:
		e.Signature = strings.Join(v.Identifiers, ", ")
	case *entity.Imports:
		names := make([]string, 0, len(v.Imported))
		for name := range v.Imported {
			names = append(names, name)
		}
		sort.Strings(names)
		e.Signature = strings.Join(names, ", ")
	}
	return e
}

func childEntries(scope entity.Scope) []OutlineEntry {
	methods, attributes, classes, globals := scope.Children()
	var out []OutlineEntry
	for name, m := range methods {
		out = append(out, newOutlineEntry(name, m))
	}
	for name, a := range attributes {
		out = append(out, newOutlineEntry(name, a))
	}
	for name, c := range classes {
		out = append(out, newOutlineEntry(name, c))
	}
	for name, g := range globals {
		out = append(out, newOutlineEntry(name, g))
	}
	sortEntries(out)
	return out
}

func sortEntries(entries []OutlineEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StartLine != entries[j].StartLine {
			return entries[i].StartLine < entries[j].StartLine
		}
		return entries[i].Name < entries[j].Name
	})
	for i := range entries {
		sortEntries(entries[i].Children)
	}
}

func kindOf(ent entity.Entity) string {
	switch v := ent.(type) {
	case *entity.Class:
		switch v.Kind {
		case entity.Interface:
			return "interface"
		case entity.Namespace:
			return "namespace"
		default:
			return "class"
		}
	case *entity.Function:
		switch v.Modifier {
		case entity.Static:
			return "static method"
		case entity.ClassBound:
			return "class method"
		default:
			return "function"
		}
	case *entity.Attribute:
		return "attribute"
	case *entity.Container:
		return "globals"
	case *entity.Imports:
		return "imports"
	case *entity.Publics:
		return "publics"
	case *entity.Coding:
		return "coding"
	}
	return "entity"
}

// Print writes the outline as indented text or JSON.
func (a *App) Print(w io.Writer, outline *Outline, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outline)
	}

	header := outline.Module
	if outline.Dialect != "" {
		header += " (" + outline.Dialect + ")"
	}
	if outline.File != "" {
		header += " " + outline.File
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	return printEntries(w, outline.Entities, 1)
}

func printEntries(w io.Writer, entries []OutlineEntry, depth int) error {
	indent := strings.Repeat("  ", depth)
	for _, e := range entries {
		line := fmt.Sprintf("%s%s %s", indent, e.Kind, e.Name)
		if e.Signature != "" {
			line += "(" + e.Signature + ")"
		}
		line += fmt.Sprintf("  [%s, %d-%d]", e.Visibility, e.StartLine, e.EndLine)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if err := printEntries(w, e.Children, depth+1); err != nil {
			return err
		}
	}
	return nil
}
