package thumbnail

import (
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, name string, w, h int, c color.NRGBA) string {
	t.Helper()
	img := imaging.New(w, h, c)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestGenerate_FitsWithinMaxSize(t *testing.T) {
	path := writeImage(t, "wide.jpg", 800, 400, color.NRGBA{R: 200, A: 255})

	res, err := Generate(path, 100)
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", res.MIMEType)
	assert.Equal(t, 100, res.Width)
	assert.Equal(t, 50, res.Height)
	assert.Equal(t, 800, res.SrcWidth)
	assert.Equal(t, 400, res.SrcHeight)

	decoded, format, err := image.Decode(strings.NewReader(string(res.Data)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, decoded.Bounds().Dx())
}

func TestGenerate_SmallImageNotEnlarged(t *testing.T) {
	path := writeImage(t, "small.png", 20, 10, color.NRGBA{G: 255, A: 255})

	res, err := Generate(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Width)
	assert.Equal(t, 10, res.Height)
}

func TestGenerate_TransparentStaysPNG(t *testing.T) {
	path := writeImage(t, "clear.png", 40, 40, color.NRGBA{B: 255, A: 10})

	res, err := Generate(path, 20)
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.MIMEType)
	assert.True(t, strings.HasPrefix(res.DataURL(), "data:image/png;base64,"))
}

func TestGenerate_NotAnImage(t *testing.T) {
	_, err := Generate(filepath.Join(t.TempDir(), "missing.png"), 10)
	assert.Error(t, err)
}
