package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/libsync/internal/models"
	"github.com/dhowden/tag"
)

// TagReader reads title, artist, album artist and album from audio files using dhowden/tag.
type TagReader struct{}

// NewTagReader creates a new TagReader
func NewTagReader() *TagReader {
	return &TagReader{}
}

// ReadTags reads metadata from the file at path. A missing title falls back to the file name without extension.
func (r *TagReader) ReadTags(ctx context.Context, path string) (models.Tags, error) {
	if err := ctx.Err(); err != nil {
		return models.Tags{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return models.Tags{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	m, err := tag.ReadFrom(file)
	if err != nil {
		return models.Tags{}, fmt.Errorf("failed to read tags from %s: %w", filepath.Base(path), err)
	}

	tags := models.Tags{
		Title:       strings.TrimSpace(m.Title()),
		Artist:      strings.TrimSpace(m.Artist()),
		AlbumArtist: strings.TrimSpace(m.AlbumArtist()),
		Album:       strings.TrimSpace(m.Album()),
	}
	if tags.Title == "" {
		tags.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return tags, nil
}
