package blogsync

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"My Photo  1.png", "My-Photo-1.png"},
		{"a%20b.jpg", "a20b.jpg"},
		{"../../etc/passwd.png", "passwd.png"},
		{`dir\sub\file name.JPG`, "file-name.JPG"},
		{"a -- b.webp", "a-b.webp"},
		{"what?#.gif", "what.gif"},
		{"   ", "image"},
		{".png", "image.png"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestUploadKeyFor(t *testing.T) {
	assert.Equal(t, UploadKey("blog/my-post/cover-image.jpg"), UploadKeyFor("blog", "my-post", "cover image.jpg"))
	assert.Equal(t, UploadKey("blog/my-post/x.jpg"), UploadKeyFor("/blog/", "my-post", "x.jpg"))
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example/blog/post/x.jpg", PublicURL("https://cdn.example/", "blog/post/x.jpg"))
	assert.Equal(t, "https://cdn.example/blog/caf%C3%A9/a+b.jpg", PublicURL("https://cdn.example", "blog/café/a+b.jpg"))
}

func TestFilenameFromURL(t *testing.T) {
	assert.Equal(t, "hero image.png", filenameFromURL("https://cdn.prod.website-files.com/abc/hero%20image.png?w=100"))
	assert.Equal(t, "", filenameFromURL("https://example.com/"))
}

// noisyImage returns a w x h image of random pixels, which compresses badly.
func noisyImage(rng *rand.Rand, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

// noisyJPEG grows a noisy square image until its quality-95 encoding is at
// least minBytes long.
func noisyJPEG(t *testing.T, minBytes int) []byte {
	t.Helper()
	return noisyJPEGAt(t, minBytes, 95)
}

// noisyJPEGAt is noisyJPEG encoded at the given quality.
func noisyJPEGAt(t *testing.T, minBytes, quality int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	for side := 64; side <= 2048; side += 8 {
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, noisyImage(rng, side, side), &jpeg.Options{Quality: quality}))
		if buf.Len() >= minBytes {
			return buf.Bytes()
		}
	}
	t.Fatalf("could not build a %d byte jpeg", minBytes)
	return nil
}

// translucentPNG returns a small PNG with partially transparent pixels.
func translucentPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 5), B: 200, A: uint8(128 + x%128)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
