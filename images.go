package blogsync

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"mime"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ImageFormat is the encoding the optimizer recognizes.
type ImageFormat int

const (
	FormatOther ImageFormat = iota
	FormatJPEG
	FormatPNG
)

// ClassifyImage decides the format of a payload. A declared content type
// wins over the filename extension; an empty or generic declared type
// falls through to the extension.
func ClassifyImage(contentType, filename string) ImageFormat {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
		switch strings.ToLower(mt) {
		case "image/jpeg", "image/jpg", "image/pjpeg":
			return FormatJPEG
		case "image/png":
			return FormatPNG
		default:
			return FormatOther
		}
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".png":
		return FormatPNG
	}
	return FormatOther
}

// OptimizeInput is one payload handed to Optimize.
type OptimizeInput struct {
	Data        []byte
	ContentType string
	Filename    string
	Enabled     bool // size-gated JPEG recompression
	Quality     int  // recompression quality, clamped to [1,100]; 0 means 70
	DryRun      bool
}

// OptimizeOptions are the fixed knobs of the optimizer.
type OptimizeOptions struct {
	ConvertQuality int   // PNG to JPEG quality
	Threshold      int64 // minimum size for recompression
}

// Optimize transcodes PNG to JPEG unconditionally and, when enabled,
// recompresses JPEGs at or above the size threshold. It never resizes.
func Optimize(in OptimizeInput, opts OptimizeOptions) (OptimizationResult, error) {
	if opts.ConvertQuality == 0 {
		opts.ConvertQuality = DefaultConvertQuality
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultCompressThreshold
	}

	res := OptimizationResult{
		Data:        in.Data,
		ContentType: in.ContentType,
		Filename:    in.Filename,
		BeforeBytes: len(in.Data),
		AfterBytes:  len(in.Data),
	}
	var actual string
	if cfg, name, err := image.DecodeConfig(bytes.NewReader(in.Data)); err == nil {
		res.Width, res.Height = cfg.Width, cfg.Height
		actual = name
	}
	if in.DryRun {
		return res, nil
	}

	format := ClassifyImage(in.ContentType, in.Filename)
	// A PNG labelled as JPEG, or the reverse, is handled as what it holds.
	switch {
	case format == FormatPNG && actual == "jpeg":
		format = FormatJPEG
		res.ContentType = "image/jpeg"
	case format == FormatJPEG && actual == "png":
		format = FormatPNG
		res.ContentType = "image/png"
	}
	if format == FormatPNG {
		src, err := png.Decode(bytes.NewReader(in.Data))
		if err != nil {
			return res, fmt.Errorf("decode png %s: %w", in.Filename, err)
		}
		out, err := encodeJPEG(flattenAlpha(src), opts.ConvertQuality)
		if err != nil {
			return res, err
		}
		res.Data = out
		res.ContentType = "image/jpeg"
		res.Filename = replaceExt(in.Filename, ".jpg")
		res.Converted = true
		format = FormatJPEG
	}

	if in.Enabled && format == FormatJPEG && int64(len(res.Data)) >= opts.Threshold {
		src, err := jpeg.Decode(bytes.NewReader(res.Data))
		if err != nil {
			return res, fmt.Errorf("decode jpeg %s: %w", res.Filename, err)
		}
		out, err := encodeJPEG(src, NormalizeQuality(in.Quality))
		if err != nil {
			return res, err
		}
		res.Data = out
		res.ContentType = "image/jpeg"
		res.Filename = normalizeJPEGExt(res.Filename)
		res.Optimized = true
	}

	res.AfterBytes = len(res.Data)
	return res, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// flattenAlpha composites src onto a white background, since JPEG has no
// alpha channel.
func flattenAlpha(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)
	return dst
}

func normalizeJPEGExt(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".jpeg") {
		return replaceExt(name, ".jpg")
	}
	return name
}
