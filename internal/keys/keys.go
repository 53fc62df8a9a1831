// Package keys derives destination object keys from source file names.
package keys

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Generator derives unique object keys of the form
// {sanitized-base}_{UTC timestamp}{ext}, optionally under a folder prefix.
// Two calls within the same second for the same base name collide; the
// timestamp deliberately stays at second resolution.
type Generator struct {
	now func() time.Time
}

// NewGenerator creates a generator backed by the system clock.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// NewGeneratorWithClock creates a generator with an injected clock.
func NewGeneratorWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Generate derives the destination key for sourcePath. A non-empty prefix is
// prepended as a folder, with any trailing slashes normalized to exactly one.
func (g *Generator) Generate(sourcePath, prefix string) string {
	ext := filepath.Ext(sourcePath)
	base := strings.TrimSuffix(filepath.Base(sourcePath), ext)

	timestamp := g.now().UTC().Format("20060102_150405")
	key := fmt.Sprintf("%s_%s%s", Sanitize(base), timestamp, ext)

	if prefix != "" {
		key = strings.TrimRight(prefix, "/") + "/" + key
	}
	return key
}

// Sanitize keeps only alphanumerics, hyphens, and underscores from a base
// name. Everything else (spaces, dots, path oddities) is dropped.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
