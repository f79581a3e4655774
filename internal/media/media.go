// Package media downsizes and re-encodes captured photos before they are
// persisted or queued, so only bounded-size assets reach the store.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const ContentTypeJPEG = "image/jpeg"

var (
	ErrDecode         = errors.New("decoding image")
	ErrInvalidOptions = errors.New("invalid compression options")
)

// Options bound the output size. Quality is in (0, 1].
type Options struct {
	MaxWidth  int     `yaml:"max_width" validate:"gt=0"`
	MaxHeight int     `yaml:"max_height" validate:"gt=0"`
	Quality   float64 `yaml:"quality" validate:"gt=0,lte=1"`
}

var DefaultOptions = Options{MaxWidth: 1200, MaxHeight: 1200, Quality: 0.7}

var thumbnailOptions = Options{MaxWidth: 256, MaxHeight: 256, Quality: 0.6}

// Image is an encoded asset ready to store or upload.
type Image struct {
	Data        []byte
	Width       int
	Height      int
	ContentType string
}

func (o Options) Validate() error {
	if o.MaxWidth <= 0 || o.MaxHeight <= 0 {
		return fmt.Errorf("%w: bounds must be positive, got %dx%d", ErrInvalidOptions, o.MaxWidth, o.MaxHeight)
	}
	if o.Quality <= 0 || o.Quality > 1 {
		return fmt.Errorf("%w: quality must be in (0, 1], got %v", ErrInvalidOptions, o.Quality)
	}
	return nil
}

func (o Options) jpegQuality() int {
	return min(100, max(1, int(math.Round(o.Quality*100))))
}

// Compress decodes data, scales it down to fit within the bounds while
// keeping its aspect ratio, and re-encodes it as JPEG. Images already inside
// the bounds are re-encoded at their original size.
func Compress(data []byte, opts Options) (Image, error) {
	if err := opts.Validate(); err != nil {
		return Image{}, err
	}
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := src.Bounds()
	if b.Dx() > opts.MaxWidth || b.Dy() > opts.MaxHeight {
		src = imaging.Fit(src, opts.MaxWidth, opts.MaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(opts.jpegQuality())); err != nil {
		return Image{}, fmt.Errorf("encoding image: %w", err)
	}

	out := src.Bounds()
	return Image{
		Data:        buf.Bytes(),
		Width:       out.Dx(),
		Height:      out.Dy(),
		ContentType: ContentTypeJPEG,
	}, nil
}

// Thumbnail produces a small preview for list views.
func Thumbnail(data []byte) (Image, error) {
	return Compress(data, thumbnailOptions)
}

// FitDimensions returns the size Compress produces for a width x height
// source under opts.
func FitDimensions(width, height int, opts Options) (int, int) {
	if width <= opts.MaxWidth && height <= opts.MaxHeight {
		return width, height
	}
	scale := math.Min(float64(opts.MaxWidth)/float64(width), float64(opts.MaxHeight)/float64(height))
	w := max(1, int(math.Round(float64(width)*scale)))
	h := max(1, int(math.Round(float64(height)*scale)))
	return w, h
}
