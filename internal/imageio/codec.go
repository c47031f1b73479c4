// Package imageio decodes uploads and produces the JPEG data URI returned to
// clients.
package imageio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultJPEGQuality = 75
	DataURIPrefix      = "data:image/jpeg;base64,"
)

var ErrDecode = errors.New("cannot identify image file")

// Decode reads any registered format. Pixel data is left in its stored
// orientation so box coordinates match the uploaded bytes.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrDecode)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func DataURI(jpegBytes []byte) string {
	return DataURIPrefix + base64.StdEncoding.EncodeToString(jpegBytes)
}

// JPEGDataURI encodes img and wraps it as a data URI.
func JPEGDataURI(img image.Image, quality int) (string, error) {
	b, err := EncodeJPEG(img, quality)
	if err != nil {
		return "", err
	}
	return DataURI(b), nil
}
