package images

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, "http://localhost:8080/images/")
	require.NoError(t, err)

	data := []byte{0x89, 0x50, 0x4e, 0x47}
	url, err := store.Save(data, "image/png")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/images/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	name := strings.TrimPrefix(url, "http://localhost:8080/images/")
	written, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, data, written)
}

func TestStoreExtensions(t *testing.T) {
	tests := []struct {
		mediaType string
		wantExt   string
	}{
		{"image/png", ".png"},
		{"image/jpeg", ".jpg"},
		{"image/webp", ".webp"},
		{"image/gif", ".gif"},
		{"image/tiff", ".png"},
		{"", ".png"},
	}

	store, err := NewStore(t.TempDir(), "http://example.com/images")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.mediaType, func(t *testing.T) {
			url, err := store.Save([]byte("data"), tt.mediaType)
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(url, tt.wantExt),
				"url %q should end with %q", url, tt.wantExt)
		})
	}
}

func TestStoreUniqueNames(t *testing.T) {
	store, err := NewStore(t.TempDir(), "http://example.com/images")
	require.NoError(t, err)

	first, err := store.Save([]byte("a"), "image/png")
	require.NoError(t, err)
	second, err := store.Save([]byte("b"), "image/png")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "images")
	store, err := NewStore(dir, "http://example.com")
	require.NoError(t, err)

	info, err := os.Stat(store.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
