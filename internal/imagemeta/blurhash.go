package imagemeta

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/buckket/go-blurhash"
	"golang.org/x/image/draw"
)

const (
	// DefaultComponentsX and DefaultComponentsY match the placeholder size the
	// front end decodes.
	DefaultComponentsX = 4
	DefaultComponentsY = 3

	blurHashMaxSide = 64
)

// GenerateBlurHash downsamples the image into a 64px box and encodes a
// compact placeholder string.
func (e *Enricher) GenerateBlurHash(ctx context.Context, src Source, componentsX, componentsY int) (string, error) {
	img, _, err := e.decode(ctx, src)
	if err != nil {
		return "", err
	}
	return encodeBlurHash(img, componentsX, componentsY)
}

func encodeBlurHash(img image.Image, componentsX, componentsY int) (string, error) {
	if componentsX <= 0 {
		componentsX = DefaultComponentsX
	}
	if componentsY <= 0 {
		componentsY = DefaultComponentsY
	}

	small := downsample(img, blurHashMaxSide)
	hash, err := blurhash.Encode(componentsX, componentsY, small)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return hash, nil
}

// downsample scales img so that it fits a maxSide x maxSide box.
func downsample(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	scale := math.Min(float64(maxSide)/float64(b.Dx()), float64(maxSide)/float64(b.Dy()))
	w := max(1, int(math.Floor(float64(b.Dx())*scale)))
	h := max(1, int(math.Floor(float64(b.Dy())*scale)))

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
