package blogsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/blogsync/markdown"
	"github.com/eringen/blogsync/objstore"
)

type syncFixture struct {
	root    string
	content string
	cfg     Config
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	root := t.TempDir()
	cfg := testConfig()
	cfg.ContentDir = filepath.Join(root, "content")
	cfg.PublicDir = filepath.Join(root, "public")
	cfg.ProjectRoot = root
	return &syncFixture{root: root, content: cfg.ContentDir, cfg: cfg}
}

func (f *syncFixture) doc(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(f.content, name)
	writeFile(t, path, []byte(text))
	return path
}

func readString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSyncDedupAcrossDocuments(t *testing.T) {
	f := newSyncFixture(t)
	writeFile(t, filepath.Join(f.content, "img", "x.png"), translucentPNG(t, 16, 16))
	one := f.doc(t, "one.mdx", "---\nslug: post\ntitle: One\n---\nIntro ![first](./img/x.png) end.\n")
	two := f.doc(t, "two.mdx", "---\nslug: post\n---\n<img src=\"./img/x.png\" alt=\"again\" />\n")

	store := objstore.NewMemory()
	sum, err := NewSyncer(f.cfg, WithObjectStore(store)).Run(context.Background())
	require.NoError(t, err)

	const want = "https://cdn.example/blog/post/x.jpg"
	assert.Equal(t, 1, store.Puts("blog/post/x.jpg"))
	assert.Equal(t, 1, store.TotalPuts())
	assert.Equal(t, "---\nslug: post\ntitle: One\n---\nIntro ![first]("+want+") end.\n", readString(t, one))
	assert.Equal(t, "---\nslug: post\n---\n<img src=\""+want+"\" alt=\"again\" />\n", readString(t, two))

	assert.Equal(t, 2, sum.Documents)
	assert.Equal(t, 2, sum.UpdatedDocuments)
	assert.Equal(t, 1, sum.Uploaded)
	assert.Equal(t, 1, sum.Reused)
	assert.Equal(t, 2, sum.Converted)
	assert.Zero(t, sum.Failed)
}

func TestSyncNumericSlug(t *testing.T) {
	f := newSyncFixture(t)
	writeFile(t, filepath.Join(f.content, "a.jpg"), noisyJPEG(t, 1024))
	path := f.doc(t, "year.mdx", "---\nslug: 2024\n---\n![a](./a.jpg)\n")

	store := objstore.NewMemory()
	sum, err := NewSyncer(f.cfg, WithObjectStore(store)).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, sum.SkippedNoSlug)
	assert.Equal(t, 1, sum.Uploaded)
	assert.Equal(t, 1, store.Puts("blog/2024/a.jpg"))
	assert.Equal(t, "---\nslug: 2024\n---\n![a](https://cdn.example/blog/2024/a.jpg)\n", readString(t, path))
}

func TestSyncDryRunLeavesFilesUnchanged(t *testing.T) {
	f := newSyncFixture(t)
	writeFile(t, filepath.Join(f.content, "a.png"), translucentPNG(t, 8, 8))
	writeFile(t, filepath.Join(f.cfg.PublicDir, "cover.jpg"), noisyJPEG(t, 1024))
	paths := []string{
		f.doc(t, "a.mdx", "---\nslug: a\nimage: /cover.jpg\n---\n![a](./a.png) ![b](a.png)\n"),
		f.doc(t, "b.mdx", "---\ntitle: no slug\n---\n![a](./a.png)\n"),
		f.doc(t, "c.md", "no front matter ![x](./missing.png)\r\n"),
	}
	before := make(map[string]string)
	for _, p := range paths {
		before[p] = readString(t, p)
	}

	cfg := f.cfg
	cfg.DryRun = true
	sum, err := NewSyncer(cfg).Run(context.Background())
	require.NoError(t, err)

	for _, p := range paths {
		assert.Equal(t, before[p], readString(t, p), p)
	}
	assert.True(t, sum.DryRun)
	assert.Equal(t, 3, sum.Documents)
	assert.Equal(t, 2, sum.SkippedNoSlug)
	assert.Equal(t, 1, sum.UpdatedDocuments)
	assert.Zero(t, sum.Uploaded)
}

func TestSyncDocumentRewritesCover(t *testing.T) {
	f := newSyncFixture(t)
	writeFile(t, filepath.Join(f.cfg.PublicDir, "images", "cover.jpg"), noisyJPEG(t, 1024))
	path := f.doc(t, "post.mdx", "---\ntitle: \"Post\"\nimage: '/images/cover.jpg'\nslug: post\n---\n\nBody text.\n")

	store := objstore.NewMemory()
	_, err := NewSyncer(f.cfg, WithObjectStore(store)).Run(context.Background())
	require.NoError(t, err)

	got := readString(t, path)
	assert.Equal(t, "---\ntitle: \"Post\"\nimage: 'https://cdn.example/blog/post/cover.jpg'\nslug: post\n---\n\nBody text.\n", got)
	_, ok := store.Get("blog/post/cover.jpg")
	assert.True(t, ok)
}

func TestSyncIsolatesReferenceFailures(t *testing.T) {
	f := newSyncFixture(t)
	writeFile(t, filepath.Join(f.content, "good.jpg"), noisyJPEG(t, 1024))
	writeFile(t, filepath.Join(f.content, "bad.jpg"), noisyJPEG(t, 1024))
	path := f.doc(t, "post.mdx", "---\nslug: post\n---\n![bad](./bad.jpg)\n![good](./good.jpg)\n![gone](./gone.jpg)\n")

	store := objstore.NewMemory()
	store.FailKeys["blog/post/bad.jpg"] = true
	store.Err = errors.New("storage unavailable")

	sum, err := NewSyncer(f.cfg, WithObjectStore(store)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "---\nslug: post\n---\n![bad](./bad.jpg)\n![good](https://cdn.example/blog/post/good.jpg)\n![gone](./gone.jpg)\n", readString(t, path))
	assert.Equal(t, 3, sum.References)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Uploaded)
	assert.Equal(t, 1, sum.UpdatedDocuments)
}

func TestSyncRemoteReferences(t *testing.T) {
	png := translucentPNG(t, 12, 12)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/assets/hero.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(png)
		case "/assets/huge.jpg":
			w.Write(make([]byte, 4096))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := newSyncFixture(t)
	hero := srv.URL + "/assets/hero.png"
	body := "![h](" + hero + ")\n![big](" + srv.URL + "/assets/huge.jpg)\n![x](" + srv.URL + "/assets/missing.png)\n![y](https://images.unsplash.com/y.png)\n![z](https://cdn.example/blog/post/z.jpg)\n"
	path := f.doc(t, "post.mdx", "---\nslug: post\nimage: "+hero+"\n---\n"+body)

	cfg := f.cfg
	cfg.ProcessRemote = true
	cfg.AllowedRemoteHost = "127.0.0.1"
	cfg.MaxRemoteBytes = 1024

	store := objstore.NewMemory()
	sum, err := NewSyncer(cfg, WithObjectStore(store), WithHTTPClient(srv.Client())).Run(context.Background())
	require.NoError(t, err)

	const want = "https://cdn.example/blog/post/hero.jpg"
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := markdown.ParseDocument(path, data)
	require.NoError(t, err)

	cover, _ := doc.FrontMatterString("image")
	assert.Equal(t, want, cover)
	assert.Contains(t, doc.Body(), "![h]("+want+")")
	assert.Contains(t, doc.Body(), "/assets/huge.jpg)")
	assert.Contains(t, doc.Body(), "https://images.unsplash.com/y.png")
	assert.Contains(t, doc.Body(), "https://cdn.example/blog/post/z.jpg")

	assert.Equal(t, 1, store.Puts("blog/post/hero.jpg"))
	assert.Equal(t, 2, sum.Failed)  // oversize and 404
	assert.Equal(t, 2, sum.Skipped) // foreign host and already migrated
	assert.EqualValues(t, 3, hits.Load()) // hero fetched once for body and cover
}

func TestSyncRespectsSourceSelection(t *testing.T) {
	f := newSyncFixture(t)
	writeFile(t, filepath.Join(f.content, "a.jpg"), noisyJPEG(t, 1024))
	path := f.doc(t, "post.mdx", "---\nslug: post\n---\n![a](./a.jpg)\n")
	before := readString(t, path)

	cfg := f.cfg
	cfg.ProcessLocal, cfg.ProcessRemote = SelectSources(false, false, true)
	store := objstore.NewMemory()
	sum, err := NewSyncer(cfg, WithObjectStore(store)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, before, readString(t, path))
	assert.Zero(t, store.TotalPuts())
	assert.Equal(t, 1, sum.Skipped)
}

func TestSyncRecordsLedger(t *testing.T) {
	f := newSyncFixture(t)
	writeFile(t, filepath.Join(f.content, "a.jpg"), noisyJPEG(t, 1024))
	f.doc(t, "post.mdx", "---\nslug: post\n---\n![a](./a.jpg)\n")

	ledger := setupTestLedger(t)
	store := objstore.NewMemory()
	sum, err := NewSyncer(f.cfg, WithObjectStore(store), WithLedger(ledger)).Run(context.Background())
	require.NoError(t, err)

	runs, err := ledger.ListRuns(context.Background(), RunKindSync, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sum.RunID, runs[0].ID)
	assert.NotNil(t, runs[0].FinishedAt)

	uploads, err := ledger.ListUploads(context.Background(), "post")
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, UploadKey("blog/post/a.jpg"), uploads[0].Key)
	assert.True(t, strings.HasPrefix(uploads[0].URL, "https://cdn.example/"))
}

func TestSyncMissingContentDir(t *testing.T) {
	cfg := testConfig()
	cfg.ContentDir = filepath.Join(t.TempDir(), "nope")
	_, err := NewSyncer(cfg).Run(context.Background())
	assert.Error(t, err)
}
