package thumbnail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// DefaultMaxSize is the longest side of results screen thumbnails
const DefaultMaxSize = 480

// Result contains the thumbnail and the source dimensions
type Result struct {
	Data      []byte
	MIMEType  string
	Width     int
	Height    int
	SrcWidth  int
	SrcHeight int
}

// Base64 returns the thumbnail for embedding in JSON events
func (r *Result) Base64() string {
	return base64.StdEncoding.EncodeToString(r.Data)
}

// DataURL returns the thumbnail as a data: URL
func (r *Result) DataURL() string {
	return "data:" + r.MIMEType + ";base64," + r.Base64()
}

// Generate creates a thumbnail for the image at path. EXIF orientation is
// applied so the thumbnail matches what a browser shows.
func Generate(path string, maxSize int) (*Result, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	thumb := imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)

	var buf bytes.Buffer
	mimeType := "image/jpeg"
	if hasTransparency(thumb) {
		// Keep PNG format if there's transparency
		mimeType = "image/png"
		err = png.Encode(&buf, thumb)
	} else {
		// Use JPEG for photos
		err = imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80))
	}
	if err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	tb := thumb.Bounds()
	return &Result{
		Data:      buf.Bytes(),
		MIMEType:  mimeType,
		Width:     tb.Dx(),
		Height:    tb.Dy(),
		SrcWidth:  bounds.Dx(),
		SrcHeight: bounds.Dy(),
	}, nil
}

// hasTransparency checks if an image has any transparent pixels
func hasTransparency(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] < 0xff {
			return true
		}
	}
	return false
}
