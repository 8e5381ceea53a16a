package asset

import (
	"net/url"
	"strings"
)

// publicPrefixes are path prefixes remote stores put in front of the
// deletable object path in public URLs.
var publicPrefixes = []string{
	"storage/v1/object/public/",
	"object/public/",
	"public/",
}

// ExtractStoragePath derives the deletable object path from an opaque remote
// locator. It accepts both full URLs and bare path forms; query strings,
// fragments and known public-URL prefixes are stripped. The empty string is
// returned only for inputs with no usable path at all.
func ExtractStoragePath(locator string) string {
	trimmed := strings.TrimSpace(locator)
	if trimmed == "" {
		return ""
	}

	path := trimmed
	if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
		path = parsed.Path
	} else {
		// Bare paths may still carry a query suffix.
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if i := strings.IndexByte(path, '#'); i >= 0 {
			path = path[:i]
		}
	}

	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	path = strings.TrimLeft(path, "/")

	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			path = path[len(prefix):]
			break
		}
	}
	return path
}
