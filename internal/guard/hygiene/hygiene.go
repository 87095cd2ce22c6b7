// Package hygiene validates and normalizes uploaded images before any model
// sees them. All checks are cheap and local: undecodable bytes or absurd
// dimensions must never cost a model invocation.
package hygiene

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/af-corp/foodguard-gateway/internal/types"
)

// TargetEdge is the square edge length images are resized to before scoring.
const TargetEdge = 224

// Image is the normalized form of an upload: decoded, EXIF-free, resized to
// TargetEdge x TargetEdge RGBA. Identical input bytes always produce an
// identical Image, which keeps scoring deterministic and cacheable.
type Image struct {
	Pixels *image.RGBA

	// Original properties, for signals and logging.
	Width  int
	Height int
	Format string
	SHA256 string
}

// Normalize decodes, validates, and resizes raw upload bytes.
// Failures to decode and pixel-ceiling violations return ErrUnsupportedFormat;
// the byte-size ceiling is the caller's concern and is checked before decode.
func Normalize(data []byte, maxPixels int64) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode header: %v", types.ErrUnsupportedFormat, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds pixel ceiling %d",
			types.ErrUnsupportedFormat, cfg.Width, cfg.Height, maxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", types.ErrUnsupportedFormat, err)
	}

	// Redrawing into a fresh RGBA drops any EXIF/metadata and fixes the
	// color model. Catmull-Rom is a fixed kernel, so the resize is
	// bit-reproducible for identical input.
	dst := image.NewRGBA(image.Rect(0, 0, TargetEdge, TargetEdge))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	sum := sha256.Sum256(data)
	return &Image{
		Pixels: dst,
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
		SHA256: hex.EncodeToString(sum[:]),
	}, nil
}

// EncodePNG serializes the normalized pixels for transport to an inference
// sidecar. PNG is lossless and the encoder is deterministic, so the wire
// bytes are stable per input.
func (i *Image) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, i.Pixels); err != nil {
		return nil, fmt.Errorf("encode normalized image: %w", err)
	}
	return buf.Bytes(), nil
}
