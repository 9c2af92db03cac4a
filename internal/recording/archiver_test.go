package recording

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArchiver(t *testing.T) (*Archiver, string) {
	t.Helper()
	artifacts := t.TempDir()
	a, err := NewArchiver(artifacts, filepath.Join(t.TempDir(), "recordings"))
	require.NoError(t, err)
	a.now = func() time.Time { return time.Unix(1700000000, 0) }
	return a, artifacts
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"checkout-1", "checkout-1"},
		{"../etc", ".._etc"},
		{"a/b c", "a_b_c"},
		{"..", "__"},
		{"", "_"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeName(tt.in), "SafeName(%q)", tt.in)
	}
	assert.Equal(t, filepath.Join("shots", "a_b"), SessionDir("shots", "a/b"))
}

func TestArchiveRoundTrip(t *testing.T) {
	a, artifacts := newTestArchiver(t)

	dir := SessionDir(artifacts, "s1")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "screenshot_1.png"), []byte("png-1"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "screenshot_2.png"), []byte("png-2"), 0644))

	path, err := a.Archive("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1-1700000000.tar.gz", filepath.Base(path))

	listed, err := a.List("s1")
	require.NoError(t, err)
	assert.Equal(t, []string{path}, listed)

	out := t.TempDir()
	require.NoError(t, Extract(path, out))

	data, err := os.ReadFile(filepath.Join(out, "screenshot_1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-1", string(data))

	data, err = os.ReadFile(filepath.Join(out, "nested", "screenshot_2.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-2", string(data))
}

func TestArchiveWithoutArtifacts(t *testing.T) {
	a, _ := newTestArchiver(t)

	path, err := a.Archive("never-took-a-screenshot")
	require.NoError(t, err)
	assert.Empty(t, path)

	listed, err := a.List("never-took-a-screenshot")
	require.NoError(t, err)
	assert.Empty(t, listed)
}
