package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// extContentTypes maps known extensions to MIME types, the fallback when
// content sniffing fails or is inconclusive.
var extContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".ico":  "image/x-icon",
}

const defaultContentType = "application/octet-stream"

// DetectContentType determines the MIME type of a file. It sniffs the first
// 512 bytes, falling back to the extension table, and to
// application/octet-stream for anything unknown.
func DetectContentType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ContentTypeByExtension(path)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ContentTypeByExtension(path)
	}

	mt := mimetype.Detect(head[:n])
	if mt.Is(defaultContentType) || strings.HasPrefix(mt.String(), "text/plain") {
		// Inconclusive sniff; trust the extension if we know it.
		return ContentTypeByExtension(path)
	}
	return mt.String()
}

// ContentTypeByExtension maps a file's extension to a MIME type, defaulting
// to application/octet-stream.
func ContentTypeByExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := extContentTypes[ext]; ok {
		return ct
	}
	return defaultContentType
}
