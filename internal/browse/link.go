// # internal/browse/link.go
package browse

import (
	"context"
	"strings"

	"clbr/internal/entity"
)

// linkSupers resolves superclass references left as bare names by the
// scan. Names found in the same module are bound directly; dotted names
// trigger a memoized read of the referenced module. A name that still
// resolves nowhere keeps a nil Class, which is a valid outcome.
func (b *Browser) linkSupers(ctx context.Context, dict entity.Map, paths []string) {
	for _, ent := range dict {
		if cls, ok := ent.(*entity.Class); ok {
			b.linkClass(ctx, cls, dict, paths)
		}
	}
}

func (b *Browser) linkClass(ctx context.Context, cls *entity.Class, dict entity.Map, paths []string) {
	for i := range cls.Supers {
		if cls.Supers[i].Class != nil {
			continue
		}
		name := cls.Supers[i].Name
		if ref, ok := dict[name].(*entity.Class); ok {
			cls.Supers[i].Class = ref
			continue
		}
		dot := strings.LastIndex(name, ".")
		if dot < 0 {
			continue
		}
		sub, err := b.readModule(ctx, name[:dot], paths)
		if err != nil {
			continue
		}
		if ref, ok := sub[name[dot+1:]].(*entity.Class); ok {
			cls.Supers[i].Class = ref
		}
	}
	for _, nested := range cls.Classes {
		b.linkClass(ctx, nested, dict, paths)
	}
	for _, m := range cls.Methods {
		b.linkFunction(ctx, m, dict, paths)
	}
}

func (b *Browser) linkFunction(ctx context.Context, f *entity.Function, dict entity.Map, paths []string) {
	for _, nested := range f.Classes {
		b.linkClass(ctx, nested, dict, paths)
	}
	for _, m := range f.Methods {
		b.linkFunction(ctx, m, dict, paths)
	}
}
