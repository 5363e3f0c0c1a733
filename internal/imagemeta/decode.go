package imagemeta

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"mue/internal/models"
)

// ImageDimensions decodes only the image header and returns its pixel size.
func (e *Enricher) ImageDimensions(ctx context.Context, src Source) (models.Dimensions, error) {
	rc, err := e.open(ctx, src)
	if err != nil {
		return models.Dimensions{}, err
	}
	defer rc.Close()

	cfg, _, err := image.DecodeConfig(rc)
	if err != nil {
		return models.Dimensions{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return models.Dimensions{}, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return models.Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

func (e *Enricher) decode(ctx context.Context, src Source) (image.Image, string, error) {
	rc, err := e.open(ctx, src)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	img, format, err := image.Decode(rc)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrDecode)
	}
	return img, format, nil
}
