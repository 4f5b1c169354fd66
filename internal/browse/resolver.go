// # internal/browse/resolver.go
package browse

import (
	"os"
	"path/filepath"
	"strings"

	"clbr/internal/core/errors"
	"clbr/internal/dialect"
)

// Resolved is the outcome of locating a module on the search paths.
// Paths carries the search paths nested resolution should use; for a
// package directory it has the directory prepended so the package's own
// modules win.
type Resolved struct {
	File  string
	Spec  dialect.Spec
	Paths []string
}

// Resolver maps module names to source files using the dialect
// registry's extension table.
type Resolver struct {
	registry *dialect.Registry
}

func NewResolver(registry *dialect.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Find locates a module by name. Plain files are preferred over package
// directories within each search path; dotted names are also tried as
// nested paths.
func (r *Resolver) Find(module string, paths []string) (Resolved, error) {
	candidates := []string{module}
	if strings.Contains(module, ".") {
		candidates = append(candidates, filepath.FromSlash(strings.ReplaceAll(module, ".", "/")))
	}

	for _, p := range paths {
		for _, name := range candidates {
			if res, ok := r.findFile(p, name, paths); ok {
				return res, nil
			}
			if res, ok := r.findPackage(p, name, paths); ok {
				return res, nil
			}
		}
	}

	err := errors.New(errors.CodeNotFound, "no source file for module")
	return Resolved{}, errors.AddContext(err, errors.CtxModule, module)
}

// ForPath picks the dialect for an explicit file path.
func (r *Resolver) ForPath(file string) (dialect.Spec, error) {
	if spec, ok := r.registry.ForFile(file); ok {
		return spec, nil
	}
	err := errors.New(errors.CodeNotFound, "no dialect claims this file")
	return dialect.Spec{}, errors.AddContext(err, errors.CtxPath, file)
}

func (r *Resolver) findFile(dir, name string, paths []string) (Resolved, bool) {
	for _, dialectName := range r.registry.Order() {
		spec, _ := r.registry.Spec(dialectName)
		for _, ext := range spec.Extensions {
			candidate := filepath.Join(dir, name+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return Resolved{File: candidate, Spec: spec, Paths: paths}, true
			}
		}
	}
	return Resolved{}, false
}

func (r *Resolver) findPackage(dir, name string, paths []string) (Resolved, bool) {
	pkgDir := filepath.Join(dir, name)
	if info, err := os.Stat(pkgDir); err != nil || !info.IsDir() {
		return Resolved{}, false
	}
	for _, dialectName := range r.registry.Order() {
		spec, _ := r.registry.Spec(dialectName)
		if spec.PackageInit == "" {
			continue
		}
		for _, ext := range spec.Extensions {
			candidate := filepath.Join(pkgDir, spec.PackageInit+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				nested := append([]string{pkgDir}, paths...)
				return Resolved{File: candidate, Spec: spec, Paths: nested}, true
			}
		}
	}
	return Resolved{}, false
}
