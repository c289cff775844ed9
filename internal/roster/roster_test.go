package roster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDescriber struct {
	description string
	err         error
}

func (f fakeDescriber) DescribeOneFace(imageBase64, filename string) (string, error) {
	return f.description, f.err
}

func TestAdd_RegistersNewSubject(t *testing.T) {
	dir := t.TempDir()
	refPath := filepath.Join(dir, "alice.jpg")
	require.NoError(t, os.WriteFile(refPath, []byte("fake"), 0o644))

	r, err := Load(filepath.Join(dir, "roster.yaml"))
	require.NoError(t, err)

	err = r.Add(fakeDescriber{description: "tall, brown hair"}, "Alice", refPath, "team lead", "base64")
	require.NoError(t, err)

	entry, ok := r.Get("Alice")
	require.True(t, ok)
	assert.Equal(t, "tall, brown hair", entry.Description)
}

func TestAdd_DuplicateNameFails(t *testing.T) {
	dir := t.TempDir()
	refPath := filepath.Join(dir, "alice.jpg")
	require.NoError(t, os.WriteFile(refPath, []byte("fake"), 0o644))

	r, err := Load(filepath.Join(dir, "roster.yaml"))
	require.NoError(t, err)
	require.NoError(t, r.Add(fakeDescriber{description: "x"}, "Alice", refPath, "", "b64"))

	err = r.Add(fakeDescriber{description: "y"}, "Alice", refPath, "", "b64")
	assert.Error(t, err)
}

func TestAdd_MissingReferencePathFails(t *testing.T) {
	dir := t.TempDir()
	r, err := Load(filepath.Join(dir, "roster.yaml"))
	require.NoError(t, err)

	err = r.Add(fakeDescriber{description: "x"}, "Bob", filepath.Join(dir, "missing.jpg"), "", "b64")
	assert.Error(t, err)
}

func TestRemove_UnknownNameFails(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "roster.yaml"))
	require.NoError(t, err)

	err = r.Remove("Ghost")
	assert.Error(t, err)
}

func TestSaveAndReload_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	refPath := filepath.Join(dir, "alice.jpg")
	require.NoError(t, os.WriteFile(refPath, []byte("fake"), 0o644))
	path := filepath.Join(dir, "roster.yaml")

	r, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, r.Add(fakeDescriber{description: "tall, brown hair"}, "Alice", refPath, "", "b64"))
	require.NoError(t, r.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	entry, ok := reloaded.Get("Alice")
	require.True(t, ok)
	assert.Equal(t, "tall, brown hair", entry.Description)
}

func TestValidate_ReportsMissingReferencePaths(t *testing.T) {
	dir := t.TempDir()
	refPath := filepath.Join(dir, "alice.jpg")
	require.NoError(t, os.WriteFile(refPath, []byte("fake"), 0o644))

	r, err := Load(filepath.Join(dir, "roster.yaml"))
	require.NoError(t, err)
	require.NoError(t, r.Add(fakeDescriber{description: "x"}, "Alice", refPath, "", "b64"))
	require.NoError(t, os.Remove(refPath))

	missing := r.Validate()
	assert.Equal(t, []string{"Alice"}, missing)
}
