package imaging

import (
	"image"

	"github.com/racelens/organizer/internal/apperr"
)

// HEICDecoder decodes HEIC/HEIF payloads into a standard image.Image. HEIC
// support depends on system libraries (libheif) that are not always present,
// so decoding is routed through this interface rather than a registered
// image.Decode format: spec.md scopes HEIC support to "best effort via an
// external collaborator" and explicitly does not require it to work
// out of the box.
type HEICDecoder interface {
	Decode(data []byte) (image.Image, error)
}

// unsupportedHEICDecoder is the default HEICDecoder: it always fails. Callers
// that need real HEIC support should construct Loader with a decoder backed
// by a cgo HEIF library and assign it to the Loader's HEIC field after
// NewLoader.
type unsupportedHEICDecoder struct{}

func (unsupportedHEICDecoder) Decode([]byte) (image.Image, error) {
	return nil, apperr.New(apperr.CategoryDecode, "imaging.heic", apperr.ErrUnsupportedFormat)
}
