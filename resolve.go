package blogsync

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ClassifyLocator returns SourceRemote for http(s) URLs and SourceLocal for
// everything else.
func ClassifyLocator(locator string) SourceClass {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return SourceRemote
	}
	return SourceLocal
}

// Resolution is where a locator points.
type Resolution struct {
	Locator string
	Class   SourceClass
	Path    string // local filesystem path
	URL     string // remote URL
	Found   bool   // local file exists; always true for remote
}

// Target returns the path or URL that was resolved.
func (r Resolution) Target() string {
	if r.Class == SourceRemote {
		return r.URL
	}
	return r.Path
}

// Resolver maps locators written in one document to concrete sources.
type Resolver struct {
	DocumentPath      string
	PublicDir         string
	ProjectRoot       string
	PublicBaseURL     string
	AllowedRemoteHost string
	AllowAllRemote    bool
}

// NewResolver returns a Resolver for the document at docPath.
func NewResolver(cfg Config, docPath string) *Resolver {
	return &Resolver{
		DocumentPath:      docPath,
		PublicDir:         cfg.PublicDir,
		ProjectRoot:       cfg.ProjectRoot,
		PublicBaseURL:     cfg.PublicBaseURL,
		AllowedRemoteHost: cfg.AllowedRemoteHost,
		AllowAllRemote:    cfg.AllowAllRemote,
	}
}

// Resolve classifies locator and maps it to a path or URL. A local file
// that does not exist yields Found=false rather than an error.
func (r *Resolver) Resolve(locator string) Resolution {
	res := Resolution{Locator: locator, Class: ClassifyLocator(locator)}
	if res.Class == SourceRemote {
		res.URL = locator
		res.Found = true
		return res
	}

	docDir := filepath.Dir(r.DocumentPath)
	switch {
	case strings.HasPrefix(locator, "./"), strings.HasPrefix(locator, "../"):
		res.Path = filepath.Join(docDir, filepath.FromSlash(locator))
	case strings.HasPrefix(locator, "/"):
		rel := filepath.FromSlash(strings.TrimPrefix(locator, "/"))
		public := filepath.Join(r.PublicDir, rel)
		if fileExists(public) {
			res.Path = public
		} else {
			res.Path = filepath.Join(r.ProjectRoot, rel)
		}
	default:
		res.Path = filepath.Join(docDir, filepath.FromSlash(locator))
	}
	res.Found = fileExists(res.Path)
	return res
}

// Eligible reports whether a remote resolution should be processed, with a
// reason when it should not. Local resolutions are always eligible.
func (r *Resolver) Eligible(res Resolution) (bool, string) {
	if res.Class != SourceRemote {
		return true, ""
	}
	u, err := url.Parse(res.URL)
	if err != nil || u.Host == "" {
		return false, "unparseable URL"
	}
	if r.PublicBaseURL != "" {
		if base, err := url.Parse(r.PublicBaseURL); err == nil && sameOrigin(u, base) {
			return false, "already on public storage"
		}
	}
	if r.AllowAllRemote {
		return true, ""
	}
	if hostAllowed(u.Hostname(), r.AllowedRemoteHost) {
		return true, ""
	}
	return false, "host " + u.Hostname() + " not allow-listed"
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}

func hostAllowed(host, allowed string) bool {
	host = strings.ToLower(host)
	allowed = strings.ToLower(strings.TrimSpace(allowed))
	if allowed == "" {
		return false
	}
	return host == allowed || strings.HasSuffix(host, "."+allowed)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
