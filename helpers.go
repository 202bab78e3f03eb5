package blogsync

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	reWhitespace  = regexp.MustCompile(`\s+`)
	reUnsafeChars = regexp.MustCompile(`[/\\%<>:"|?*#\x00-\x1F]`)
	reDashes      = regexp.MustCompile(`-{2,}`)
)

// SanitizeFilename makes name safe to use as the last segment of a storage
// key: whitespace becomes dashes, separators, percent signs and other
// unsafe characters are removed, and runs of dashes collapse. The
// extension is kept.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	base = cleanSegment(base)
	ext = cleanSegment(strings.TrimPrefix(ext, "."))
	if base == "" {
		base = "image"
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}

func cleanSegment(s string) string {
	s = reWhitespace.ReplaceAllString(s, "-")
	s = reUnsafeChars.ReplaceAllString(s, "")
	s = reDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// UploadKeyFor derives the storage key for filename under slug.
func UploadKeyFor(namespace, slug, filename string) UploadKey {
	parts := []string{
		strings.Trim(namespace, "/"),
		strings.Trim(slug, "/"),
		SanitizeFilename(filename),
	}
	return UploadKey(strings.Join(parts, "/"))
}

// PublicURL joins base with key, escaping each key segment on its own so
// an already-escaped sequence is never escaped twice.
func PublicURL(base string, key UploadKey) string {
	segments := strings.Split(string(key), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(segments, "/")
}

// filenameFromURL returns the unescaped last path segment of a URL.
func filenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return path.Base(raw)
	}
	name := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "/" || name == "." {
		return ""
	}
	return name
}

// replaceExt swaps the extension of name for ext (including the dot).
func replaceExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
