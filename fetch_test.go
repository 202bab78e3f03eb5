package blogsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	writeFile(t, path, []byte("jpegbytes"))

	p, err := NewFetcher(nil, 0, nil).Fetch(context.Background(), Resolution{Class: SourceLocal, Path: path, Found: true})
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", p.Filename)
	assert.Equal(t, "image/jpeg", p.ContentType)
	assert.Equal(t, path, p.Source)
}

func TestFetchLocalMislabelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shot.png")
	writeFile(t, path, noisyJPEG(t, 1024))

	p, err := NewFetcher(nil, 0, nil).Fetch(context.Background(), Resolution{Class: SourceLocal, Path: path, Found: true})
	require.NoError(t, err)
	assert.Equal(t, "shot.png", p.Filename)
	assert.Equal(t, "image/jpeg", p.ContentType)
}

func TestFetchRemote(t *testing.T) {
	png := translucentPNG(t, 4, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/noext":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(png)
		case "/big.jpg":
			w.Header().Set("Content-Length", "5000")
			w.Write(make([]byte, 5000))
		case "/error.jpg":
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	cache := NewPayloadCache(0)
	f := NewFetcher(srv.Client(), 1000, cache)
	ctx := context.Background()

	p, err := f.Fetch(ctx, Resolution{Class: SourceRemote, URL: srv.URL + "/noext"})
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.ContentType)
	assert.Equal(t, "noext.png", p.Filename)
	assert.Equal(t, 1, cache.Len())

	_, err = f.Fetch(ctx, Resolution{Class: SourceRemote, URL: srv.URL + "/big.jpg"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge))
	var tl *TooLargeError
	require.ErrorAs(t, err, &tl)
	assert.Equal(t, int64(1000), tl.Limit)

	_, err = f.Fetch(ctx, Resolution{Class: SourceRemote, URL: srv.URL + "/error.jpg"})
	assert.Error(t, err)
	assert.Equal(t, 1, cache.Len())
}

func TestDetectContentType(t *testing.T) {
	png := translucentPNG(t, 2, 2)
	assert.Equal(t, "image/webp", DetectContentType("image/webp; q=1", "x.png", png))
	assert.Equal(t, "image/jpeg", DetectContentType("", "x.JPG", nil))
	assert.Equal(t, "image/png", DetectContentType("application/octet-stream", "blob", png))
	assert.Equal(t, "application/octet-stream", DetectContentType("", "blob", nil))
}

func TestPayloadCacheBudget(t *testing.T) {
	c := NewPayloadCache(10)
	c.Put("a", AssetPayload{Data: make([]byte, 6)})
	c.Put("b", AssetPayload{Data: make([]byte, 6)})
	_, okA := c.Get("a")
	_, okB := c.Get("b")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.Equal(t, 1, c.Len())
}
