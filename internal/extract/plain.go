package extract

import (
	"bytes"
	"unicode/utf8"
)

// extractPlain returns content as a string, replacing invalid UTF-8 with the replacement character.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		content = bytes.ToValidUTF8(content, []byte("�"))
	}
	return string(content), nil
}
