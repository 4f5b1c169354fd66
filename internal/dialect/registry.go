// # internal/dialect/registry.go
package dialect

import (
	"path"
	"sort"
	"strings"

	"clbr/internal/core/errors"
)

// Spec describes one dialect: the file extensions it claims, the name
// of the file a package directory resolves to, and a constructor for a
// fresh scanner.
type Spec struct {
	Name        string
	Extensions  []string
	PackageInit string
	Enabled     bool
	New         func() Scanner
}

// Override adjusts a dialect from configuration. Nil fields keep the
// built-in value.
type Override struct {
	Enabled    *bool
	Extensions []string
}

// Defaults returns the built-in dialect table.
func Defaults() map[string]Spec {
	return map[string]Spec{
		"python": {
			Name:        "python",
			Extensions:  []string{".py", ".pyw", ".ptl"},
			PackageInit: "__init__",
			Enabled:     true,
			New:         newPythonScanner,
		},
		"ruby": {
			Name:       "ruby",
			Extensions: []string{".rb"},
			Enabled:    true,
			New:        newRubyScanner,
		},
		"idl": {
			Name:       "idl",
			Extensions: []string{".idl"},
			Enabled:    true,
			New:        newIDLScanner,
		},
		"javascript": {
			Name:       "javascript",
			Extensions: []string{".js", ".cjs", ".mjs"},
			Enabled:    true,
			New:        newJavaScriptScanner,
		},
		"typescript": {
			Name:       "typescript",
			Extensions: []string{".ts"},
			Enabled:    true,
			New:        newTypeScriptScanner,
		},
	}
}

// Registry resolves files to dialects. Lookup order is deterministic
// with python first, matching the resolution order of module names that
// carry no extension hint.
type Registry struct {
	specs map[string]Spec
	order []string
}

// NewRegistry builds a registry from the defaults plus overrides.
func NewRegistry(overrides map[string]Override) (*Registry, error) {
	specs := cloneSpecs(Defaults())
	for name, ov := range overrides {
		spec, ok := specs[name]
		if !ok {
			err := errors.New(errors.CodeValidation, "unknown dialect override")
			return nil, errors.AddContext(err, errors.CtxDialect, name)
		}
		if ov.Enabled != nil {
			spec.Enabled = *ov.Enabled
		}
		if len(ov.Extensions) > 0 {
			spec.Extensions = normalizeExtensions(ov.Extensions)
		}
		specs[name] = spec
	}
	if err := validateSpecs(specs); err != nil {
		return nil, err
	}
	return &Registry{specs: specs, order: lookupOrder(specs)}, nil
}

// Spec returns the dialect entry by name.
func (r *Registry) Spec(name string) (Spec, bool) {
	spec, ok := r.specs[name]
	return spec, ok
}

// Order lists the enabled dialect names in lookup order.
func (r *Registry) Order() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ForFile picks the dialect owning the file's extension. Files without
// a known extension fall back to python, the dialect of extensionless
// scripts.
func (r *Registry) ForFile(file string) (Spec, bool) {
	ext := strings.ToLower(path.Ext(file))
	for _, name := range r.order {
		spec := r.specs[name]
		for _, e := range spec.Extensions {
			if e == ext {
				return spec, true
			}
		}
	}
	if ext == "" {
		if spec, ok := r.specs["python"]; ok && spec.Enabled {
			return spec, true
		}
	}
	return Spec{}, false
}

func cloneSpecs(in map[string]Spec) map[string]Spec {
	out := make(map[string]Spec, len(in))
	for name, spec := range in {
		spec.Extensions = append([]string(nil), spec.Extensions...)
		out[name] = spec
	}
	return out
}

func validateSpecs(specs map[string]Spec) error {
	owner := make(map[string]string)
	for _, name := range lookupOrder(specs) {
		for _, ext := range specs[name].Extensions {
			if existing, ok := owner[ext]; ok && existing != name {
				err := errors.New(errors.CodeValidation, "extension claimed by two dialects")
				return errors.AddContext(err, errors.CtxDialect, existing+","+name)
			}
			owner[ext] = name
		}
	}
	return nil
}

// lookupOrder puts python first and the rest alphabetically, disabled
// dialects excluded.
func lookupOrder(specs map[string]Spec) []string {
	var rest []string
	for name, spec := range specs {
		if !spec.Enabled || name == "python" {
			continue
		}
		rest = append(rest, name)
	}
	sort.Strings(rest)
	order := make([]string, 0, len(rest)+1)
	if spec, ok := specs["python"]; ok && spec.Enabled {
		order = append(order, "python")
	}
	return append(order, rest...)
}

func normalizeExtensions(values []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(values))
	for _, value := range values {
		raw := strings.TrimSpace(strings.ToLower(value))
		if raw == "" {
			continue
		}
		if !strings.HasPrefix(raw, ".") {
			raw = "." + raw
		}
		if seen[raw] {
			continue
		}
		seen[raw] = true
		out = append(out, raw)
	}
	sort.Strings(out)
	return out
}
