package blogsync

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLocator(t *testing.T) {
	assert.Equal(t, SourceRemote, ClassifyLocator("https://a.example/x.png"))
	assert.Equal(t, SourceRemote, ClassifyLocator("http://a.example/x.png"))
	assert.Equal(t, SourceLocal, ClassifyLocator("./x.png"))
	assert.Equal(t, SourceLocal, ClassifyLocator("../x.png"))
	assert.Equal(t, SourceLocal, ClassifyLocator("/images/x.png"))
	assert.Equal(t, SourceLocal, ClassifyLocator("x.png"))
	assert.Equal(t, SourceLocal, ClassifyLocator("ftp://a.example/x.png"))
}

func TestResolveLocal(t *testing.T) {
	root := t.TempDir()
	content := filepath.Join(root, "content")
	public := filepath.Join(root, "public")
	doc := filepath.Join(content, "post.mdx")

	writeFile(t, filepath.Join(content, "img", "a.png"), []byte("a"))
	writeFile(t, filepath.Join(root, "b.png"), []byte("b"))
	writeFile(t, filepath.Join(public, "images", "c.png"), []byte("c"))
	writeFile(t, filepath.Join(root, "images", "c.png"), []byte("shadowed"))
	writeFile(t, filepath.Join(content, "d.png"), []byte("d"))

	r := &Resolver{DocumentPath: doc, PublicDir: public, ProjectRoot: root}

	tests := []struct {
		locator   string
		wantPath  string
		wantFound bool
	}{
		{"./img/a.png", filepath.Join(content, "img", "a.png"), true},
		{"../b.png", filepath.Join(root, "b.png"), true},
		{"/images/c.png", filepath.Join(public, "images", "c.png"), true},
		{"/b.png", filepath.Join(root, "b.png"), true},
		{"d.png", filepath.Join(content, "d.png"), true},
		{"./missing.png", filepath.Join(content, "missing.png"), false},
		{"/nowhere.png", filepath.Join(root, "nowhere.png"), false},
	}
	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			res := r.Resolve(tt.locator)
			assert.Equal(t, SourceLocal, res.Class)
			assert.Equal(t, tt.wantPath, res.Path)
			assert.Equal(t, tt.wantFound, res.Found)
			ok, _ := r.Eligible(res)
			assert.True(t, ok)
		})
	}
}

func TestEligibleRemote(t *testing.T) {
	r := &Resolver{
		PublicBaseURL:     "https://cdn.example",
		AllowedRemoteHost: DefaultAllowedRemoteHost,
	}
	tests := []struct {
		url  string
		want bool
	}{
		{"https://cdn.prod.website-files.com/abc/x.png", true},
		{"https://assets.cdn.prod.website-files.com/x.png", true},
		{"https://evilcdn.prod.website-files.com.attacker.io/x.png", false},
		{"https://images.unsplash.com/x.png", false},
		{"https://cdn.example/blog/post/x.jpg", false},
		{"https://cdn.example:443/blog/post/x.jpg", false},
		{"http://cdn.example/blog/post/x.jpg", false},
		{"https://other.example/?u=https://cdn.example/x.jpg", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			ok, reason := r.Eligible(r.Resolve(tt.url))
			assert.Equal(t, tt.want, ok, reason)
		})
	}
}

func TestEligibleAllowAll(t *testing.T) {
	r := &Resolver{PublicBaseURL: "https://cdn.example", AllowAllRemote: true, AllowedRemoteHost: DefaultAllowedRemoteHost}

	ok, _ := r.Eligible(r.Resolve("https://images.unsplash.com/x.png"))
	assert.True(t, ok)

	ok, reason := r.Eligible(r.Resolve("https://cdn.example/blog/x.jpg"))
	assert.False(t, ok)
	assert.Equal(t, "already on public storage", reason)
}
