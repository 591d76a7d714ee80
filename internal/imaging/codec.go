package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

var (
	// ErrDecode is wrapped by every decoding failure.
	ErrDecode = errors.New("decode error")

	// ErrEncode is wrapped by every encoding failure.
	ErrEncode = errors.New("encode error")
)

// Engine selects the resampling backend.
type Engine string

const (
	EngineImaging Engine = "imaging"
	EngineBild    Engine = "bild"
)

// DefaultJPEGQuality matches the quality used by disintegration/imaging.
const DefaultJPEGQuality = 95

// Options configures a Codec. The zero value is usable: it selects the
// imaging engine, the Lanczos filter, quality 95 and a white background.
type Options struct {
	Engine      Engine
	Filter      string
	JPEGQuality int
	Background  color.Color
	AutoOrient  bool
}

// Codec decodes, downsizes and re-encodes images.
//
// A Codec holds no mutable state and is safe for concurrent use.
type Codec struct {
	engine     Engine
	filter     filterPair
	quality    int
	background color.Color
	autoOrient bool
}

// NewCodec validates opts and returns a ready Codec.
func NewCodec(opts Options) (*Codec, error) {
	engine := opts.Engine
	if engine == "" {
		engine = EngineImaging
	}
	if engine != EngineImaging && engine != EngineBild {
		return nil, fmt.Errorf("unknown engine: %s", engine)
	}

	filter, err := lookupFilter(opts.Filter)
	if err != nil {
		return nil, err
	}

	quality := opts.JPEGQuality
	if quality == 0 {
		quality = DefaultJPEGQuality
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality %d outside 1-100", quality)
	}

	bg := opts.Background
	if bg == nil {
		bg = color.White
	}

	return &Codec{
		engine:     engine,
		filter:     filter,
		quality:    quality,
		background: bg,
		autoOrient: opts.AutoOrient,
	}, nil
}

// Resize decodes data, fits it into a maxWidth x maxHeight box and encodes the
// result in the format implied by name. Images already inside the box are
// re-encoded unscaled.
func (c *Codec) Resize(data []byte, name string, maxWidth, maxHeight int) ([]byte, error) {
	img, err := c.Decode(data)
	if err != nil {
		return nil, err
	}
	return c.Encode(c.Fit(img, maxWidth, maxHeight), name)
}

// Decode parses an encoded image.
func (c *Codec) Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(c.autoOrient))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %w", ErrDecode, err)
	}
	return img, nil
}

// Fit scales img down so that it fits within maxWidth x maxHeight, keeping its
// aspect ratio. Images that already fit are returned unchanged.
func (c *Codec) Fit(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	w, h := FitSize(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)
	if w == bounds.Dx() && h == bounds.Dy() {
		return img
	}

	if c.engine == EngineBild {
		return transform.Resize(img, w, h, c.filter.bild)
	}
	return imaging.Resize(img, w, h, c.filter.imaging)
}

// FitSize returns the dimensions of a srcWidth x srcHeight image scaled down to
// fit within maxWidth x maxHeight. Sizes that already fit are returned as is,
// and neither result dimension drops below one pixel.
func FitSize(srcWidth, srcHeight, maxWidth, maxHeight int) (int, int) {
	if srcWidth <= 0 || srcHeight <= 0 || maxWidth <= 0 || maxHeight <= 0 {
		return srcWidth, srcHeight
	}
	if srcWidth <= maxWidth && srcHeight <= maxHeight {
		return srcWidth, srcHeight
	}

	srcAspect := float64(srcWidth) / float64(srcHeight)
	maxAspect := float64(maxWidth) / float64(maxHeight)

	var w, h int
	if srcAspect > maxAspect {
		w = maxWidth
		h = int(float64(w)/srcAspect + 0.5)
	} else {
		h = maxHeight
		w = int(float64(h)*srcAspect + 0.5)
	}
	return max(w, 1), max(h, 1)
}

// Encode serialises img in the format implied by name's extension.
func (c *Codec) Encode(img image.Image, name string) ([]byte, error) {
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEncode, name, err)
	}

	if format == imaging.JPEG && !isOpaque(img) {
		img = c.flatten(img)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(c.quality)); err != nil {
		return nil, fmt.Errorf("%w: failed to encode image: %w", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// flatten composites img over the codec background colour.
func (c *Codec) flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	bg := imaging.New(bounds.Dx(), bounds.Dy(), c.background)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
