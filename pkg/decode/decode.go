// Package decode turns fetched image bytes into decoded images.
package decode

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/Sternrassler/photo-feed-client/pkg/feederr"
	_ "golang.org/x/image/webp"
)

// ErrEmpty is returned for a zero length payload.
var ErrEmpty = errors.New("empty image payload")

// Image is a decoded image plus the metadata the grid needs to lay it out.
type Image struct {
	URL    string
	Format string
	Width  int
	Height int

	// Bytes is the size of the encoded payload.
	Bytes int

	// Pixels is nil when the decoder only read the header.
	Pixels image.Image
}

// Decoder decodes image bytes fetched from url.
type Decoder interface {
	Decode(url string, data []byte) (*Image, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(url string, data []byte) (*Image, error)

// Decode calls f.
func (f DecoderFunc) Decode(url string, data []byte) (*Image, error) {
	return f(url, data)
}

// StdDecoder decodes jpeg, png, gif and webp using the image package registry.
type StdDecoder struct {
	// HeaderOnly reads dimensions and format without decoding pixels.
	HeaderOnly bool
}

// Decode implements Decoder. Failures are feederr errors of class decode.
func (d StdDecoder) Decode(url string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, feederr.Decode(url, ErrEmpty)
	}

	if d.HeaderOnly {
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, feederr.Decode(url, err)
		}
		return &Image{
			URL:    url,
			Format: format,
			Width:  cfg.Width,
			Height: cfg.Height,
			Bytes:  len(data),
		}, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, feederr.Decode(url, err)
	}
	bounds := img.Bounds()
	return &Image{
		URL:    url,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Bytes:  len(data),
		Pixels: img,
	}, nil
}
