package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractImages(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"none", "just text", nil},
		{"markdown", "![a](./a.png) text ![b](/img/b.jpg)", []string{"./a.png", "/img/b.jpg"}},
		{"html", `<img src="./c.png" alt="c"/> <img alt='d' src='https://x.test/d.jpg'>`, []string{"./c.png", "https://x.test/d.jpg"}},
		{"dedup", "![a](./a.png) ![again](./a.png) <img src=\"./a.png\">", []string{"./a.png"}},
		{"markdown before html", `<img src="./h.png"> ![m](./m.png)`, []string{"./m.png", "./h.png"}},
		{"link is not image", "[link](./a.png)", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractImages(tt.input), tt.name)
	}
}

func TestExtractImagesIdempotent(t *testing.T) {
	body := "![a](./x.png)\n<img src=\"../y.gif\">\n![b](https://cdn.test/z.jpg)"
	assert.Equal(t, ExtractImages(body), ExtractImages(body))
}

func TestReferencesIncludesCoverImage(t *testing.T) {
	doc, err := ParseDocument("post.mdx", []byte("---\nslug: post\nimage: ./cover.png\n---\n![a](./a.png)\n"))
	require.NoError(t, err)
	assert.Equal(t, []ImageRef{
		{Locator: "./a.png", Kind: KindBody},
		{Locator: "./cover.png", Kind: KindFrontmatterImage},
	}, doc.References())
}

func TestReferencesSkipsEmptyCover(t *testing.T) {
	doc, err := ParseDocument("post.mdx", []byte("---\nslug: post\nimage: \"  \"\n---\nno images\n"))
	require.NoError(t, err)
	assert.Empty(t, doc.References())
}

func TestRewriteImagesExact(t *testing.T) {
	const url = "https://cdn.example/blog/slug/x.jpg"
	got, n := RewriteImages("![a](./x.png) and ![a](./x.png)", map[string]string{"./x.png": url})
	assert.Equal(t, "![a]("+url+") and ![a]("+url+")", got)
	assert.Equal(t, 2, n)
}

func TestRewriteImagesHTMLKeepsAttributes(t *testing.T) {
	body := `<p><img class="wide" src="./a.png" alt="A" /></p>`
	got, n := RewriteImages(body, map[string]string{"./a.png": "https://cdn.test/a.jpg"})
	assert.Equal(t, `<p><img class="wide" src="https://cdn.test/a.jpg" alt="A" /></p>`, got)
	assert.Equal(t, 1, n)
}

func TestRewriteImagesEscapesLocator(t *testing.T) {
	body := "![a](./a+b(1).png) ![b](./aab(1).png)"
	got, _ := RewriteImages(body, map[string]string{"./a+b(1).png": "https://cdn.test/ab.png"})
	assert.Contains(t, got, "![b](./aab(1).png)")
}

func TestRewriteImagesLeavesPlainLinks(t *testing.T) {
	got, n := RewriteImages("[see](./x.png) ![x](./x.png)", map[string]string{"./x.png": "https://cdn.test/x.jpg"})
	assert.Equal(t, "[see](./x.png) ![x](https://cdn.test/x.jpg)", got)
	assert.Equal(t, 1, n)
}

func TestRewriteImagesNoMatch(t *testing.T) {
	body := "nothing here"
	got, n := RewriteImages(body, map[string]string{"./x.png": "https://cdn.test/x.jpg"})
	assert.Equal(t, body, got)
	assert.Zero(t, n)
}
