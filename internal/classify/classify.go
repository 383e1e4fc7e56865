// Package classify decides the media category of a filesystem entry from
// its extension's MIME type.
package classify

import (
	"mime"
	"path/filepath"
	"strings"
)

// Kind is the media category of a file.
type Kind string

// Media categories.
const (
	// KindImage is a file with an image/* MIME type.
	KindImage Kind = "image"
	// KindText is a file with a text/* MIME type.
	KindText Kind = "text"
	// KindUnsupported is anything else, including unknown extensions.
	KindUnsupported Kind = "unsupported"
)

// Classify returns the media category for path. It is a pure function of
// the file extension: unknown or missing MIME types degrade to
// KindUnsupported, never an error.
func Classify(path string) Kind {
	ext := filepath.Ext(path)
	if ext == "" {
		return KindUnsupported
	}

	mediaType := mime.TypeByExtension(strings.ToLower(ext))
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return KindImage
	case strings.HasPrefix(mediaType, "text/"):
		return KindText
	default:
		return KindUnsupported
	}
}
