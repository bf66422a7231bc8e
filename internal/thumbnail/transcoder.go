package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const (
	// MaxThumbnailDimension caps Spec.MaxDimension.
	MaxThumbnailDimension = 4096
	// DefaultMaxSourcePixels is used when Spec.MaxSourcePixels is unset.
	DefaultMaxSourcePixels int64 = 4096 * 4096
)

// Spec is the fixed output geometry and quality of every thumbnail.
type Spec struct {
	// MaxDimension bounds both output width and height.
	MaxDimension int
	// JPEGQuality is the baseline JPEG quality, 1-100.
	JPEGQuality int
	// MaxSourcePixels rejects inputs whose header declares more pixels,
	// before any raster is allocated. Zero means DefaultMaxSourcePixels.
	MaxSourcePixels int64
}

// DefaultSpec matches the 170px-high display the relay feeds.
func DefaultSpec() Spec {
	return Spec{MaxDimension: 170, JPEGQuality: 85, MaxSourcePixels: DefaultMaxSourcePixels}
}

// Validate reports whether s can produce a non-empty JPEG.
func (s Spec) Validate() error {
	if s.MaxDimension <= 0 || s.MaxDimension > MaxThumbnailDimension {
		return fmt.Errorf("thumbnail max dimension must be within [1,%d], got %d", MaxThumbnailDimension, s.MaxDimension)
	}
	if s.JPEGQuality < 1 || s.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be within [1,100], got %d", s.JPEGQuality)
	}
	if s.MaxSourcePixels < 0 {
		return fmt.Errorf("max source pixels must not be negative, got %d", s.MaxSourcePixels)
	}
	return nil
}

func (s Spec) sourcePixelLimit() int64 {
	if s.MaxSourcePixels <= 0 {
		return DefaultMaxSourcePixels
	}
	return s.MaxSourcePixels
}

// Result is an encoded thumbnail together with conversion diagnostics.
type Result struct {
	Data         []byte
	SourceFormat Format
	SourceBytes  int
	SourceWidth  int
	SourceHeight int
	Width        int
	Height       int
}

// Reduction is the percentage by which the output is smaller than the input.
// It is negative when the output grew.
func (r *Result) Reduction() float64 {
	if r.SourceBytes == 0 {
		return 0
	}
	return (1 - float64(len(r.Data))/float64(r.SourceBytes)) * 100
}

// Convert sniffs payload and transcodes it. Unknown or too-small payloads
// are rejected before any decoding is attempted.
func Convert(payload []byte, spec Spec) (*Result, error) {
	format, err := Sniff(payload)
	if err != nil {
		return nil, err
	}
	res, err := Transcode(payload, spec)
	if err != nil {
		return nil, err
	}
	res.SourceFormat = format
	return res, nil
}

// Transcode decodes payload, resizes it to fit a MaxDimension square with
// Lanczos resampling, drops any alpha channel and encodes the result as JPEG.
// The output is always re-encoded, even when the input already fits.
func Transcode(payload []byte, spec Spec) (*Result, error) {
	if spec.MaxDimension > MaxThumbnailDimension {
		return nil, newError(KindEncodeFailed, "resize",
			fmt.Sprintf("max dimension %d exceeds %d", spec.MaxDimension, MaxThumbnailDimension), nil)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil, newError(KindDecodeFailed, "decode", "failed to load image", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > spec.sourcePixelLimit() {
		return nil, newError(KindDecodeFailed, "decode",
			fmt.Sprintf("image declares %dx%d pixels, limit is %d", cfg.Width, cfg.Height, spec.sourcePixelLimit()), nil)
	}

	img, err := imaging.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, newError(KindDecodeFailed, "decode", "failed to load image", err)
	}

	bounds := img.Bounds()
	res := &Result{
		SourceFormat: Classify(payload),
		SourceBytes:  len(payload),
		SourceWidth:  bounds.Dx(),
		SourceHeight: bounds.Dy(),
	}
	if res.SourceWidth == 0 || res.SourceHeight == 0 {
		return nil, newError(KindDecodeFailed, "decode",
			fmt.Sprintf("image has no pixels: %dx%d", res.SourceWidth, res.SourceHeight), nil)
	}

	w, h := FitDimensions(res.SourceWidth, res.SourceHeight, spec.MaxDimension)
	if w == 0 || h == 0 {
		return nil, newError(KindEncodeFailed, "resize",
			fmt.Sprintf("empty target raster for max dimension %d", spec.MaxDimension), nil)
	}
	if spec.JPEGQuality < 1 || spec.JPEGQuality > 100 {
		return nil, newError(KindEncodeFailed, "encode",
			fmt.Sprintf("jpeg quality out of range: %d", spec.JPEGQuality), nil)
	}

	thumb := imaging.Resize(img, w, h, imaging.Lanczos)
	dropAlpha(thumb)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(spec.JPEGQuality)); err != nil {
		return nil, newError(KindEncodeFailed, "encode", "failed to encode JPEG", err)
	}

	res.Data = buf.Bytes()
	res.Width = thumb.Bounds().Dx()
	res.Height = thumb.Bounds().Dy()
	return res, nil
}

// FitDimensions scales w x h proportionally so that both sides fit within
// bound x bound. Sides never round below one pixel. A non-positive bound
// yields 0x0.
func FitDimensions(w, h, bound int) (int, int) {
	if bound <= 0 || w <= 0 || h <= 0 {
		return 0, 0
	}
	ratio := math.Min(float64(bound)/float64(w), float64(bound)/float64(h))
	nw := int(math.Round(float64(w) * ratio))
	nh := int(math.Round(float64(h) * ratio))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// dropAlpha makes every pixel opaque without compositing, keeping the
// stored color channels untouched.
func dropAlpha(img *image.NRGBA) {
	for y := 0; y < img.Rect.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Rect.Dx()*4]
		for i := 3; i < len(row); i += 4 {
			row[i] = 0xFF
		}
	}
}
