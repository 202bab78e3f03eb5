package blogsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Fetcher loads the bytes behind a Resolution. Remote bodies are capped at
// maxBytes.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	cache    *PayloadCache
}

// NewFetcher returns a Fetcher. cache may be nil.
func NewFetcher(client *http.Client, maxBytes int64, cache *PayloadCache) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, maxBytes: maxBytes, cache: cache}
}

// Fetch reads a local file or downloads a remote URL.
func (f *Fetcher) Fetch(ctx context.Context, res Resolution) (AssetPayload, error) {
	source := res.Target()
	if f.cache != nil {
		if p, ok := f.cache.Get(source); ok {
			return p, nil
		}
	}

	var (
		p   AssetPayload
		err error
	)
	if res.Class == SourceRemote {
		p, err = f.fetchRemote(ctx, res.URL)
	} else {
		p, err = f.readLocal(res.Path)
	}
	if err != nil {
		return AssetPayload{}, err
	}
	if f.cache != nil {
		f.cache.Put(source, p)
	}
	return p, nil
}

func (f *Fetcher) readLocal(path string) (AssetPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AssetPayload{}, fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return AssetPayload{
		Data:        data,
		ContentType: localContentType(name, data),
		Filename:    name,
		Source:      path,
	}, nil
}

// localContentType types a local file by extension unless its magic bytes
// identify a different image type.
func localContentType(name string, data []byte) string {
	byExt := DetectContentType("", name, data)
	sniffed, _, _ := mime.ParseMediaType(mimetype.Detect(data).String())
	if strings.HasPrefix(sniffed, "image/") && sniffed != byExt {
		return sniffed
	}
	return byExt
}

func (f *Fetcher) fetchRemote(ctx context.Context, rawURL string) (AssetPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return AssetPayload{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return AssetPayload{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return AssetPayload{}, fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return AssetPayload{}, &TooLargeError{Source: rawURL, Limit: f.maxBytes}
	}
	data, err := readAllWithLimit(resp.Body, f.maxBytes)
	if err != nil {
		if errors.Is(err, errLimit) {
			return AssetPayload{}, &TooLargeError{Source: rawURL, Limit: f.maxBytes}
		}
		return AssetPayload{}, fmt.Errorf("read %s: %w", rawURL, err)
	}

	name := filenameFromURL(rawURL)
	declared := resp.Header.Get("Content-Type")
	ct := DetectContentType(declared, name, data)
	if name == "" {
		name = "image"
	}
	if filepath.Ext(name) == "" {
		if exts, _ := mime.ExtensionsByType(ct); len(exts) > 0 {
			name += preferredExt(ct, exts)
		}
	}
	return AssetPayload{Data: data, ContentType: ct, Filename: name, Source: rawURL}, nil
}

var errLimit = errors.New("body exceeds limit")

func readAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(&io.LimitedReader{R: r, N: limit + 1})
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errLimit
	}
	return data, nil
}

func preferredExt(ct string, exts []string) string {
	switch ct {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	}
	return exts[0]
}

// DetectContentType picks a media type with a fixed precedence: a declared
// type wins, then the filename extension, then content sniffing.
func DetectContentType(declared, filename string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "" && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		mt, _, _ := mime.ParseMediaType(byExt)
		return mt
	}
	if len(data) > 0 {
		mt, _, _ := mime.ParseMediaType(mimetype.Detect(data).String())
		return mt
	}
	return "application/octet-stream"
}
