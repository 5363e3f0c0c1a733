package imagemeta

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const (
	// DefaultCompressTarget is the payload size uploads are squeezed towards.
	DefaultCompressTarget = 450 * 1024

	compressAccuracy  = 0.9
	compressMinQ      = 10
	compressMaxQ      = 92
	compressScaleStep = 0.75
	compressMinSide   = 64
)

// Compressed is the outcome of Compress.
type Compressed struct {
	Data      []byte
	MediaType string
	Width     int
	Height    int
}

// Compress re-encodes a raster image as JPEG so that it fits target bytes.
// Images already under target, and animated GIFs, are returned unchanged.
// The search stops as soon as a payload lands within 90% of target.
func (e *Enricher) Compress(ctx context.Context, data []byte, mediaType string, target int64) (Compressed, error) {
	if target <= 0 {
		target = DefaultCompressTarget
	}

	img, format, err := e.decode(ctx, BytesSource(data))
	if err != nil {
		return Compressed{}, err
	}
	b := img.Bounds()
	original := Compressed{Data: data, MediaType: mediaType, Width: b.Dx(), Height: b.Dy()}
	if int64(len(data)) <= target || format == "gif" {
		return original, nil
	}

	current := img
	for {
		if err := ctx.Err(); err != nil {
			return Compressed{}, err
		}

		out, err := searchQuality(current, target)
		if err != nil {
			return Compressed{}, err
		}
		cb := current.Bounds()
		if out != nil {
			return Compressed{Data: out, MediaType: "image/jpeg", Width: cb.Dx(), Height: cb.Dy()}, nil
		}

		w := int(float64(cb.Dx()) * compressScaleStep)
		h := int(float64(cb.Dy()) * compressScaleStep)
		if w < compressMinSide || h < compressMinSide {
			return Compressed{}, fmt.Errorf("%w: cannot compress below %d bytes", ErrDecode, target)
		}
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), current, cb, draw.Src, nil)
		current = scaled
	}
}

// searchQuality binary-searches JPEG quality for the largest encoding that
// fits target. It returns nil when even the lowest quality is too large.
func searchQuality(img image.Image, target int64) ([]byte, error) {
	lo, hi := compressMinQ, compressMaxQ
	var best []byte
	for lo <= hi {
		q := (lo + hi) / 2
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, err
		}
		size := int64(buf.Len())
		if size > target {
			hi = q - 1
			continue
		}
		best = buf.Bytes()
		if float64(size) >= float64(target)*compressAccuracy {
			break
		}
		lo = q + 1
	}
	return best, nil
}
