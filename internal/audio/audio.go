// Package audio decides which uploads are accepted as call recordings.
package audio

import (
	"errors"
	"mime"
	"path/filepath"
	"strings"
)

var ErrUnsupported = errors.New("unsupported audio file")

var allowedDeclaredTypes = map[string]struct{}{
	"audio/mpeg":  {},
	"audio/mp3":   {},
	"audio/wav":   {},
	"audio/ogg":   {},
	"audio/webm":  {},
	"audio/m4a":   {},
	"audio/x-m4a": {},
}

var allowedExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".ogg":  {},
	".webm": {},
	".m4a":  {},
}

// Containers that mimetype reports under a non-audio top-level type but
// which commonly carry audio-only recordings.
var audioContainers = map[string]struct{}{
	"video/webm":      {},
	"video/mp4":       {},
	"application/ogg": {},
}

// Validate checks the client-declared type and file name. Either a known
// audio MIME type or a known extension is enough.
func Validate(fileName, declaredType string) error {
	if base, _, err := mime.ParseMediaType(declaredType); err == nil {
		if _, ok := allowedDeclaredTypes[strings.ToLower(base)]; ok {
			return nil
		}
	}
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(fileName))]; ok {
		return nil
	}
	return ErrUnsupported
}

// CheckSniffed checks the type detected from the file contents.
func CheckSniffed(detected string) error {
	base, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return ErrUnsupported
	}
	base = strings.ToLower(base)
	if strings.HasPrefix(base, "audio/") {
		return nil
	}
	if _, ok := audioContainers[base]; ok {
		return nil
	}
	return ErrUnsupported
}
