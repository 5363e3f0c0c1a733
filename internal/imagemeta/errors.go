package imagemeta

import "errors"

// ErrDecode means the source could not be read as an image.
var ErrDecode = errors.New("decode error")
