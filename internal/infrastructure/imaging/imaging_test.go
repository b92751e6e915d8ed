package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDecode(t *testing.T) {
	src := solid(20, 10, color.RGBA{R: 200, A: 255})

	t.Run("png", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, src))
		img, f, err := Decode(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, FormatPNG, f)
		assert.Equal(t, 20, img.Bounds().Dx())
	})

	t.Run("jpeg", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, src, nil))
		_, f, err := Decode(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, FormatJPEG, f)
	})

	t.Run("gif", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, gif.Encode(&buf, src, nil))
		_, f, err := Decode(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, FormatGIF, f)
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := Decode([]byte("not an image"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func TestResize(t *testing.T) {
	out := Resize(solid(400, 300, color.White), 100)
	assert.Equal(t, image.Rect(0, 0, 100, 75), out.Bounds())

	thin := Resize(solid(1000, 1, color.White), 10)
	assert.Equal(t, 1, thin.Bounds().Dy())
}

func TestSquare(t *testing.T) {
	// left and right thirds red, middle third blue: the crop keeps the middle
	src := solid(300, 100, color.RGBA{R: 255, A: 255})
	for y := 0; y < 100; y++ {
		for x := 100; x < 200; x++ {
			src.Set(x, y, color.RGBA{B: 255, A: 255})
		}
	}
	out := Square(src, 50)
	assert.Equal(t, image.Rect(0, 0, 50, 50), out.Bounds())

	r, _, b, _ := out.At(25, 25).RGBA()
	assert.Zero(t, r>>8)
	assert.Equal(t, uint32(255), b>>8)
}

func TestEncode(t *testing.T) {
	src := solid(8, 8, color.RGBA{G: 255, A: 255})

	data, f, ct, err := Encode(src, FormatJPEG, 80)
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, f)
	assert.Equal(t, "image/jpeg", ct)
	_, got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, got)

	for _, in := range []Format{FormatPNG, FormatGIF, FormatWEBP} {
		_, f, ct, err := Encode(src, in, 80)
		require.NoError(t, err)
		assert.Equal(t, FormatPNG, f, in)
		assert.Equal(t, "image/png", ct)
	}
}
