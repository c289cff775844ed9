package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/racelens/organizer/internal/apperr"
	"github.com/racelens/organizer/internal/logging"
)

// Photo is a decoded, orientation-normalized image plus the bookkeeping the
// rest of the pipeline needs: its content hash (the Analysis Cache key) and
// the size of the original file. The vision payload is produced separately by
// EncodeForVision.
type Photo struct {
	Path        string
	Image       image.Image
	ContentHash string // hex sha256 of the original file bytes (spec.md §4.1), not the re-encoded payload
	SourceSize  int64
}

// Loader reads photos off disk, normalizes EXIF pixel orientation, and
// prepares them for hashing and vision submission. Its HEIC decoder is
// pluggable; the decoder NewLoader installs rejects HEIC/HEIF files. A zero
// Loader has no HEIC decoder set and must not be used on HEIC/HEIF paths.
type Loader struct {
	HEIC        HEICDecoder
	MaxImageMB  float64
	MaxImageDim int
}

// NewLoader builds a Loader with the given limits (spec.md §6's MAX_IMAGE_MB
// / MAX_IMAGE_DIM) and the default (unsupported) HEIC decoder.
func NewLoader(maxImageMB float64, maxImageDim int) *Loader {
	return &Loader{HEIC: unsupportedHEICDecoder{}, MaxImageMB: maxImageMB, MaxImageDim: maxImageDim}
}

// Load reads path, normalizes its EXIF orientation (see normalizeOrientation,
// adapted from the teacher's NormalizeImageOrientation), and returns a Photo
// keyed by the content hash of the original file bytes — the cache key must
// survive a re-encode producing different bytes for the same photo.
func (l *Loader) Load(path string) (*Photo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.CategoryDecode, "imaging.load", err)
	}

	var normalized []byte
	if IsHEIC(path) {
		img, decErr := l.HEIC.Decode(raw)
		if decErr != nil {
			return nil, apperr.Wrap(apperr.CategoryDecode, "imaging.load.heic", decErr)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
			return nil, apperr.Wrap(apperr.CategoryDecode, "imaging.load.heic_encode", err)
		}
		normalized = buf.Bytes()
	} else {
		normalized, err = normalizeOrientation(raw)
		if err != nil {
			return nil, apperr.Wrap(apperr.CategoryDecode, "imaging.load.orientation", err)
		}
	}

	img, _, err := image.Decode(bytes.NewReader(normalized))
	if err != nil {
		return nil, apperr.Wrap(apperr.CategoryDecode, "imaging.load.decode", err)
	}

	sum := sha256.Sum256(raw)

	return &Photo{
		Path:        path,
		Image:       img,
		ContentHash: hex.EncodeToString(sum[:]),
		SourceSize:  int64(len(raw)),
	}, nil
}

// normalizeOrientation applies the EXIF orientation tag (274) to pixel data
// and re-encodes as EXIF-free JPEG. Adapted directly from the teacher's
// NormalizeImageOrientation/applyOrientation in internal/rpc/utils.go: EXIF
// orientation takes priority over any conflicting XMP/TIFF value, orientation
// 1 or absent metadata is a no-op, and failures fall back to the original
// bytes rather than aborting the run.
func normalizeOrientation(raw []byte) ([]byte, error) {
	exifData, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return raw, nil
	}

	tag, err := exifData.Get(exif.Orientation)
	if err != nil {
		return raw, nil
	}
	orientation, err := tag.Int(0)
	if err != nil || orientation == 1 {
		return raw, nil
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		logging.Warnf("imaging: failed to decode for orientation normalization: %v", err)
		return raw, nil
	}

	transformed := applyOrientation(img, orientation)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, transformed, &jpeg.Options{Quality: 95}); err != nil {
		logging.Warnf("imaging: failed to re-encode after orientation normalization: %v", err)
		return raw, nil
	}
	return buf.Bytes(), nil
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Rotate270(imaging.FlipH(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Rotate90(imaging.FlipH(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// EncodeForVision downscales img (if it exceeds MaxImageDim on its longest
// side, or its JPEG encoding would exceed MaxImageMB) and returns base64 JPEG
// bytes suitable for the vision backend's multipart/base64 payload, mirroring
// the teacher's convertImageToBase64 in internal/rpc/images.go.
func (l *Loader) EncodeForVision(img image.Image) (string, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if l.MaxImageDim > 0 && (w > l.MaxImageDim || h > l.MaxImageDim) {
		img = imaging.Fit(img, l.MaxImageDim, l.MaxImageDim, imaging.Lanczos)
	}

	quality := 85
	var buf bytes.Buffer
	for attempt := 0; attempt < 5; attempt++ {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", apperr.Wrap(apperr.CategoryDecode, "imaging.encode_for_vision", err)
		}
		if l.MaxImageMB <= 0 || float64(buf.Len()) <= l.MaxImageMB*1024*1024 {
			break
		}
		if quality <= 50 {
			bounds := img.Bounds()
			img = imaging.Resize(img, bounds.Dx()*3/4, 0, imaging.Lanczos)
			quality = 85
			continue
		}
		quality -= 10
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CropRegion crops img to rect, expanding by at least 15% of the region's
// longest side as padding (clamped to img's bounds), matching the teacher's
// extractBoxImage crop-with-padding behavior.
func CropRegion(img image.Image, rect image.Rectangle, padding int) image.Image {
	bounds := img.Bounds()
	width, height := rect.Dx(), rect.Dy()
	maxDim := width
	if height > maxDim {
		maxDim = height
	}
	if padding < int(float64(maxDim)*0.15) {
		padding = int(float64(maxDim) * 0.15)
	}

	xMin := max(bounds.Min.X, rect.Min.X-padding)
	yMin := max(bounds.Min.Y, rect.Min.Y-padding)
	xMax := min(bounds.Max.X, rect.Max.X+padding)
	yMax := min(bounds.Max.Y, rect.Max.Y+padding)

	return imaging.Crop(img, image.Rect(xMin, yMin, xMax, yMax))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// FormatContentHash returns the prefixed display form of a hash:
// "sha256:<hex>". The Analysis Cache itself is keyed by the bare hex hash.
func FormatContentHash(hexHash string) string {
	return fmt.Sprintf("sha256:%s", hexHash)
}
