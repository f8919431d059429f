package util

import (
	"errors"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFileNameLen caps stored recording names, in bytes.
const MaxFileNameLen = 128

var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName turns a client-supplied recording name into a single
// path segment. Separators become underscores, control characters are
// dropped and long names are cut while keeping the extension.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune('_')
		case r == utf8.RuneError || unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	s := strings.TrimSpace(b.String())
	if s == "" || s == "." {
		return "", ErrInvalidFileName
	}
	return truncateName(s, MaxFileNameLen), nil
}

func truncateName(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	ext := path.Ext(s)
	if len(ext) >= limit/2 {
		ext = ""
	}
	base := s[:len(s)-len(ext)]
	keep := limit - len(ext)
	// Back off to a rune boundary.
	for keep > 0 && !utf8.RuneStart(base[keep]) {
		keep--
	}
	return base[:keep] + ext
}
