// Package imaging handles reading candidate photos off disk, normalizing
// their pixel orientation, hashing their content, and downscaling them for
// submission to the vision backend.
//
// Adapted from the teacher's internal/rpc/utils.go (EXIF orientation
// normalization) and internal/rpc/images.go (JPEG re-encode / crop idiom).
package imaging

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/racelens/organizer/internal/apperr"
)

// SupportedExtensions lists the file extensions this package will attempt to
// decode, lowercase and including the leading dot. HEIC/HEIF are included
// here but route through HEICDecoder rather than image.Decode.
var SupportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".heic": true,
	".heif": true,
}

// Enumerate walks root and returns the absolute paths of every supported
// image file found, sorted lexicographically so repeated runs over the same
// source tree process files in the same order (spec.md §5's determinism
// requirement). If recursive is false, only root's immediate children are
// considered.
func Enumerate(root string, recursive bool) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, apperr.Wrap(apperr.CategoryDecode, "imaging.enumerate", err)
	}
	root = absRoot

	var found []string

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if SupportedExtensions[ext] {
			found = append(found, path)
		}
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, apperr.Wrap(apperr.CategoryDecode, "imaging.enumerate", err)
	}

	// An empty source directory is a boundary case, not a config error
	// (spec.md §8): the caller runs to completion with an empty manifest and
	// exit 0, rather than aborting.
	sort.Strings(found)
	return found, nil
}

// IsHEIC reports whether path's extension is one of the HEIC/HEIF family.
func IsHEIC(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".heic" || ext == ".heif"
}
