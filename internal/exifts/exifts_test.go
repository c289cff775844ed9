package exifts

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubSecNanos(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"5", 500 * time.Millisecond, true},
		{"123", 123 * time.Millisecond, true},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseSubSecNanos(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if ok {
			assert.Equal(t, tc.want, got, tc.in)
		}
	}
}

func TestExtract_NoEXIFNoXattrFails(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/plain.jpg"
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o644))

	_, err := Extract(path)
	assert.Error(t, err)
}

func TestStamp_RoundTripsThroughExtract(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/stamped.jpg"
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o644))

	want := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	if err := Stamp(path, want); err != nil {
		t.Skipf("extended attributes unsupported on this filesystem: %v", err)
	}

	got, err := Extract(path)
	require.NoError(t, err)
	assert.True(t, want.Equal(got), "expected %s, got %s", want, got)
}
