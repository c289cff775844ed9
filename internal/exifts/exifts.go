// Package exifts extracts the capture timestamp a photo was taken at.
// Capture timestamp, not filesystem mtime, drives the auto-cluster timestamp
// rules (spec.md §4.7): mtime is rewritten by every copy, sync, and backup
// tool, while EXIF DateTimeOriginal survives file transfer.
package exifts

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/sys/unix"

	"github.com/racelens/organizer/internal/apperr"
	"github.com/racelens/organizer/internal/logging"
)

// xattrName is the extended attribute this package checks as a fallback when
// a photo carries no EXIF DateTimeOriginal, for photos re-encoded by tools
// that stamp a custom attribute instead of EXIF (e.g. prior racelens runs).
const xattrName = "user.racelens.captured_at"

const exifDateLayout = "2006:01:02 15:04:05"

// Extract returns path's capture timestamp. It tries, in order:
//  1. the EXIF DateTimeOriginal tag (with SubSecTimeOriginal, if present)
//  2. the xattrName extended attribute, written by a prior racelens run
//
// It never falls back to filesystem mtime. If neither source is present,
// it returns an error under CategoryDecode naming both missing sources, and
// the caller should treat the photo as having no reliable timestamp (routed
// to visual-only clustering, per spec.md §4.7 rule 3).
func Extract(path string) (time.Time, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.CategoryDecode, "exifts.extract", err)
	}

	if ts, ok := fromEXIF(raw); ok {
		return ts, nil
	}

	if ts, ok := fromXattr(path); ok {
		return ts, nil
	}

	return time.Time{}, apperr.New(apperr.CategoryDecode, "exifts.extract",
		fmt.Errorf("%s: no capture timestamp available (no EXIF DateTimeOriginal, no %s xattr)", path, xattrName))
}

// fromEXIF reads the DateTimeOriginal (falling back to DateTime) tag, adding
// sub-second precision from SubSecTimeOriginal when present.
func fromEXIF(raw []byte) (time.Time, bool) {
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return time.Time{}, false
	}

	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		tag, err = x.Get(exif.DateTime)
		if err != nil {
			return time.Time{}, false
		}
	}

	raw0, err := tag.StringVal()
	if err != nil {
		return time.Time{}, false
	}

	ts, err := time.ParseInLocation(exifDateLayout, raw0, time.Local)
	if err != nil {
		logging.Warnf("exifts: failed to parse EXIF datetime %q: %v", raw0, err)
		return time.Time{}, false
	}

	if subTag, err := x.Get(exif.SubSecTimeOriginal); err == nil {
		if subStr, err := subTag.StringVal(); err == nil {
			if nanos, ok := parseSubSecNanos(subStr); ok {
				ts = ts.Add(nanos)
			}
		}
	}

	return ts, true
}

// parseSubSecNanos converts a SubSecTime string (e.g. "123" meaning .123s)
// into a time.Duration offset.
func parseSubSecNanos(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	padded := (s + "000000000")[:9]
	n, err := strconv.ParseInt(padded, 10, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(n), true
}

// fromXattr reads the xattrName extended attribute as an RFC3339 timestamp.
// Extended attributes are a Linux-only facility; on platforms where the
// underlying syscall is unavailable this simply reports false, same as "not
// present".
func fromXattr(path string) (time.Time, bool) {
	buf := make([]byte, 64)
	n, err := unix.Getxattr(path, xattrName, buf)
	if err != nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, string(buf[:n]))
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Stamp writes ts to path's xattrName extended attribute, so a subsequent
// run (or a re-encoded copy that lost its EXIF block) can still recover the
// capture timestamp.
func Stamp(path string, ts time.Time) error {
	data := []byte(ts.UTC().Format(time.RFC3339Nano))
	if err := unix.Setxattr(path, xattrName, data, 0); err != nil {
		return apperr.Wrap(apperr.CategoryPlacementIO, "exifts.stamp", err)
	}
	return nil
}
