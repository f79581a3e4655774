package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestImage(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 120, G: 90, B: 60, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func decodedSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestCompress_LargeImageFitsBounds(t *testing.T) {
	src := encodeTestImage(t, 3000, 2000, imaging.JPEG)

	out, err := Compress(src, Options{MaxWidth: 1200, MaxHeight: 1200, Quality: 0.7})
	require.NoError(t, err)

	w, h := decodedSize(t, out.Data)
	assert.LessOrEqual(t, max(w, h), 1200)
	assert.Equal(t, 1200, w)
	assert.Equal(t, 800, h)
	assert.Equal(t, w, out.Width)
	assert.Equal(t, h, out.Height)
	assert.Equal(t, ContentTypeJPEG, out.ContentType)
	assert.NotEqual(t, src, out.Data)
}

func TestCompress_PortraitKeepsAspectRatio(t *testing.T) {
	src := encodeTestImage(t, 1000, 4000, imaging.PNG)

	out, err := Compress(src, Options{MaxWidth: 1200, MaxHeight: 1200, Quality: 0.8})
	require.NoError(t, err)
	assert.Equal(t, 300, out.Width)
	assert.Equal(t, 1200, out.Height)
}

func TestCompress_SmallImageNotUpscaled(t *testing.T) {
	src := encodeTestImage(t, 640, 480, imaging.PNG)

	out, err := Compress(src, DefaultOptions)
	require.NoError(t, err)
	w, h := decodedSize(t, out.Data)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}

func TestCompress_Deterministic(t *testing.T) {
	src := encodeTestImage(t, 1600, 900, imaging.JPEG)

	a, err := Compress(src, DefaultOptions)
	require.NoError(t, err)
	b, err := Compress(src, DefaultOptions)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestCompress_DecodeError(t *testing.T) {
	_, err := Compress([]byte("not an image"), DefaultOptions)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestCompress_InvalidOptions(t *testing.T) {
	src := encodeTestImage(t, 10, 10, imaging.PNG)
	for _, opts := range []Options{
		{MaxWidth: 0, MaxHeight: 100, Quality: 0.5},
		{MaxWidth: 100, MaxHeight: 100, Quality: 0},
		{MaxWidth: 100, MaxHeight: 100, Quality: 1.5},
	} {
		_, err := Compress(src, opts)
		assert.ErrorIs(t, err, ErrInvalidOptions)
	}
}

func TestThumbnail(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(2000, 1000, color.White)))

	out, err := Thumbnail(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 256, out.Width)
	assert.Equal(t, 128, out.Height)
}

func TestFitDimensions(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{3000, 2000, 1200, 800},
		{2000, 3000, 800, 1200},
		{800, 600, 800, 600},
		{1200, 1200, 1200, 1200},
	}
	for _, tt := range tests {
		w, h := FitDimensions(tt.w, tt.h, DefaultOptions)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}

func TestJPEGQuality(t *testing.T) {
	assert.Equal(t, 70, Options{Quality: 0.7}.jpegQuality())
	assert.Equal(t, 100, Options{Quality: 1}.jpegQuality())
	assert.Equal(t, 1, Options{Quality: 0.001}.jpegQuality())
}
