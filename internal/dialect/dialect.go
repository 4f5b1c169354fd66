// # internal/dialect/dialect.go

// Package dialect implements the per-language grammars of the scanner:
// three token-based rule sets sharing the scan driver (python, ruby,
// idl) and a delegate backed by a full tree-sitter grammar (javascript,
// typescript).
package dialect

import (
	"fmt"

	"clbr/internal/core/errors"
	"clbr/internal/entity"
	"clbr/internal/scan"
)

// Scanner produces the entity map for one source file.
type Scanner interface {
	Dialect() string
	Scan(module, file, src string) (entity.Map, error)
}

func unexpectedToken(file string, tok scan.Token) error {
	err := errors.New(errors.CodeInternal, fmt.Sprintf("rule set produced unexpected token %q", tok.Kind))
	return errors.AddContext(err, errors.CtxPath, file)
}
