package markdown

import (
	"regexp"
	"sort"
	"strings"
)

var (
	// ![alt](locator)
	reImageRef = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	// <img ... src="locator"> or src='locator'
	reImageTag = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)
)

// RefKind tells where in a document a reference was found.
type RefKind string

const (
	KindBody             RefKind = "body"
	KindFrontmatterImage RefKind = "frontmatterImage"
)

// ImageRef is a locator as written in a document.
type ImageRef struct {
	Locator string
	Kind    RefKind
}

// ExtractImages returns the distinct image locators referenced in body,
// markdown images first and then HTML img tags, each in order of first
// appearance.
func ExtractImages(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(loc string) {
		if _, ok := seen[loc]; ok {
			return
		}
		seen[loc] = struct{}{}
		out = append(out, loc)
	}
	for _, m := range reImageRef.FindAllStringSubmatch(body, -1) {
		add(m[2])
	}
	for _, m := range reImageTag.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// References returns the body image references followed by the cover
// image from front matter, when it is a non-empty string.
func (d *Document) References() []ImageRef {
	locs := ExtractImages(d.body)
	refs := make([]ImageRef, 0, len(locs)+1)
	for _, loc := range locs {
		refs = append(refs, ImageRef{Locator: loc, Kind: KindBody})
	}
	if cover, ok := d.FrontMatterString(CoverImageKey); ok && strings.TrimSpace(cover) != "" {
		refs = append(refs, ImageRef{Locator: cover, Kind: KindFrontmatterImage})
	}
	return refs
}

// RewriteImages replaces every markdown image and img src occurrence of a
// locator in replacements with its new URL. Alt text and the rest of the
// tag are kept as written. It returns the new body and the number of
// occurrences replaced.
func RewriteImages(body string, replacements map[string]string) (string, int) {
	locators := make([]string, 0, len(replacements))
	for loc := range replacements {
		locators = append(locators, loc)
	}
	sort.Strings(locators)

	count := 0
	for _, loc := range locators {
		url := replacements[loc]
		if url == loc {
			continue
		}
		quoted := regexp.QuoteMeta(loc)

		reMD := regexp.MustCompile(`!\[([^\]]*)\]\(` + quoted + `\)`)
		body = reMD.ReplaceAllStringFunc(body, func(m string) string {
			sub := reMD.FindStringSubmatch(m)
			count++
			return "![" + sub[1] + "](" + url + ")"
		})

		reTag := regexp.MustCompile(`(<img[^>]+src=["'])` + quoted + `(["'][^>]*>)`)
		body = reTag.ReplaceAllStringFunc(body, func(m string) string {
			sub := reTag.FindStringSubmatch(m)
			count++
			return sub[1] + url + sub[2]
		})
	}
	return body, count
}
