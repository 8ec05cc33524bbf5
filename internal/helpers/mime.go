package helpers

import "strings"

// Covers the asset image formats the bundler recognizes plus the bundle and
// source-map responses the dev server itself produces. This is used instead
// of Go's built-in "mime.TypeByExtension" because that function consults the
// OS registry and is broken on Windows: https://github.com/golang/go/issues/32350.
var builtinTypesLower = map[string]string{
	".avif": "image/avif",
	".bmp":  "image/bmp",
	".gif":  "image/gif",
	".icns": "image/x-icns",
	".ico":  "image/x-icon",
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".js":   "text/javascript; charset=utf-8",
	".json": "application/json",
	".map":  "application/json",
	".png":  "image/png",
	".webp": "image/webp",
}

func MimeTypeByExtension(ext string) string {
	contentType := builtinTypesLower[ext]
	if contentType == "" {
		contentType = builtinTypesLower[strings.ToLower(ext)]
	}
	return contentType
}
