// Package images persists generated images under a local directory and
// hands out stable public URLs for them.
package images

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store writes image bytes to disk and returns the public URL a client can
// fetch them from. File names are random UUIDs so callers cannot guess or
// collide with each other's images.
type Store struct {
	dir           string
	publicBaseURL string
}

// NewStore creates an image store rooted at dir. The directory is created
// if it does not exist.
func NewStore(dir, publicBaseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &Store{
		dir:           dir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// extensions maps media types to file extensions. Unknown media types fall
// back to .png, which is what providers emit in practice.
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Save writes data to a new file and returns its public URL
func (s *Store) Save(data []byte, mediaType string) (string, error) {
	ext, ok := extensions[mediaType]
	if !ok {
		ext = ".png"
	}

	name := uuid.New().String() + ext
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	return s.publicBaseURL + "/" + name, nil
}

// Dir returns the directory images are stored in
func (s *Store) Dir() string {
	return s.dir
}
