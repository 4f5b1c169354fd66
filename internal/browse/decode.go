// # internal/browse/decode.go
package browse

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"clbr/internal/core/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadSource loads a source file as text: UTF-8 with an optional BOM,
// line endings normalized to \n, a trailing newline guaranteed.
func ReadSource(file string) (string, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		werr := errors.Wrap(err, errors.CodeNotFound, "source file unreadable")
		return "", errors.AddContext(werr, errors.CtxPath, file)
	}

	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		err := errors.New(errors.CodeDecodeFailure, "source is not valid UTF-8 text")
		return "", errors.AddContext(err, errors.CtxPath, file)
	}

	src := strings.ReplaceAll(string(raw), "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	if !strings.HasSuffix(src, "\n") {
		src += "\n"
	}
	return src, nil
}
