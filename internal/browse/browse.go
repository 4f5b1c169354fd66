// # internal/browse/browse.go

// Package browse turns module names into structure maps: it resolves a
// name to a source file, picks the dialect scanner for it, memoizes the
// result and links superclass references across modules.
package browse

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"clbr/internal/core/errors"
	"clbr/internal/dialect"
	"clbr/internal/entity"
	"clbr/internal/observability"
)

type Browser struct {
	registry *dialect.Registry
	resolver *Resolver
	paths    []string
	cache    *cache
	log      *slog.Logger
}

func New(registry *dialect.Registry, paths []string, log *slog.Logger) *Browser {
	if log == nil {
		log = slog.Default()
	}
	return &Browser{
		registry: registry,
		resolver: NewResolver(registry),
		paths:    append([]string(nil), paths...),
		cache:    newCache(),
		log:      log,
	}
}

// ReadModule scans the named module and everything its superclass
// references pull in. It never fails: an unresolvable or unreadable
// module yields an empty map and a log entry. The module's own cache
// entry is dropped afterwards so the next top-level read picks up
// edits, while modules read along the way stay memoized.
func (b *Browser) ReadModule(ctx context.Context, module string) entity.Map {
	ctx, span := observability.Tracer.Start(ctx, "Browser.ReadModule",
		trace.WithAttributes(attribute.String("module", module)))
	defer span.End()
	defer b.cache.Delete(module)

	dict, err := b.readModule(ctx, module, b.paths)
	if err != nil {
		b.log.Warn("module read failed", "module", module, "error", err)
		return entity.Map{}
	}
	return dict
}

// ReadFile scans one explicit source file, bypassing name resolution.
// The module name is the file's base name without extension.
func (b *Browser) ReadFile(ctx context.Context, file string) (entity.Map, error) {
	spec, err := b.resolver.ForPath(file)
	if err != nil {
		return nil, err
	}
	module := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	dict, err := b.scan(ctx, module, file, spec)
	if err != nil {
		return nil, err
	}
	b.linkSupers(ctx, dict, append([]string{filepath.Dir(file)}, b.paths...))
	b.cache.Delete(module)
	return dict, nil
}

// InvalidatePath drops cached results backed by the given file.
func (b *Browser) InvalidatePath(file string) {
	b.cache.DeleteByFile(file)
}

func (b *Browser) CachedModules() int {
	return b.cache.Len()
}

func (b *Browser) ClearCache() {
	b.cache.Clear()
}

// readModule is the memoized inner read used both for top-level
// requests and for modules pulled in by superclass links.
func (b *Browser) readModule(ctx context.Context, module string, paths []string) (entity.Map, error) {
	if dict, ok := b.cache.Get(module); ok {
		observability.CacheHitsTotal.Inc()
		return dict, nil
	}
	observability.CacheMissesTotal.Inc()

	res, err := b.resolver.Find(module, paths)
	if err != nil {
		observability.ResolveFailuresTotal.Inc()
		return nil, err
	}

	// A cyclic superclass reference back into this module finds the
	// placeholder instead of recursing forever.
	b.cache.Put(module, res.File, entity.Map{})

	dict, err := b.scan(ctx, module, res.File, res.Spec)
	if err != nil {
		b.cache.Delete(module)
		return nil, err
	}
	b.cache.Put(module, res.File, dict)

	// Link with the resolved search paths so names local to a package
	// directory stay resolvable.
	b.linkSupers(ctx, dict, res.Paths)
	return dict, nil
}

func (b *Browser) scan(ctx context.Context, module, file string, spec dialect.Spec) (entity.Map, error) {
	src, err := ReadSource(file)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	dict, err := spec.New().Scan(module, file, src)
	observability.ScanDuration.WithLabelValues(spec.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxDialect, spec.Name)
	}
	observability.EntitiesExtracted.WithLabelValues(spec.Name).Add(float64(len(dict)))

	b.log.Debug("module scanned",
		"module", module,
		"file", file,
		"dialect", spec.Name,
		"entities", len(dict),
		"elapsed", time.Since(start))
	return dict, nil
}
