package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
	"github.com/gosimple/unidecode"
)

// UnknownAlbum names the directory for tracks without an album tag.
const UnknownAlbum = "Unknown Album"

// FilerOptions configures a [Filer].
type FilerOptions struct {
	// Asciify transliterates artist and album directory names, e.g. "Sigur Rós" to "Sigur Ros".
	Asciify bool
	Logger  *log.Logger
}

// Filer copies tracks into the library.
type Filer struct {
	root    string
	asciify bool
	logger  *log.Logger
}

// NewFiler creates a filer rooted at root.
func NewFiler(root string, opts FilerOptions) *Filer {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Filer{root: root, asciify: opts.Asciify, logger: logger}
}

// Root returns the library root.
func (f *Filer) Root() string { return f.root }

// Destination returns the path the track would be filed to.
func (f *Filer) Destination(track *models.Track) string {
	album := track.Album
	if album == "" {
		album = UnknownAlbum
	}
	return filepath.Join(f.root, f.segment(track.Artist), f.segment(album), filepath.Base(track.SourcePath))
}

// File copies the track's source into root/artist/album/ and records the destination on the track.
//
// Directories are created as needed. Permissions and modification time are preserved. Filing a track
// whose destination already holds the same file (same size and modification time) copies nothing and
// returns the same path. Every failure wraps [shared.ErrFilingFailed].
func (f *Filer) File(ctx context.Context, track *models.Track) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if track.SourcePath == "" {
		return "", fmt.Errorf("%w: track %q has no source file", shared.ErrFilingFailed, track.Title)
	}
	if track.Artist == "" {
		return "", fmt.Errorf("%w: track %q has no artist", shared.ErrFilingFailed, track.Title)
	}

	src, err := os.Stat(track.SourcePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrFilingFailed, err)
	}
	if !src.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", shared.ErrFilingFailed, track.SourcePath)
	}

	dst := f.Destination(track)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrFilingFailed, err)
	}

	switch existing, err := os.Stat(dst); {
	case err == nil && os.SameFile(src, existing):
		f.logger.Debug("source already in library", "path", dst)
	case err == nil && sameContent(src, existing):
		f.logger.Debug("already filed", "path", dst)
	case err == nil || errors.Is(err, fs.ErrNotExist):
		if err := copyFile(track.SourcePath, dst, src); err != nil {
			return "", fmt.Errorf("%w: copy %s: %v", shared.ErrFilingFailed, track.SourcePath, err)
		}
		f.logger.Info("filed", "track", track.Title, "path", dst)
	default:
		return "", fmt.Errorf("%w: %v", shared.ErrFilingFailed, err)
	}

	if err := track.AssignLibraryPath(dst); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrFilingFailed, err)
	}
	return dst, nil
}

func (f *Filer) segment(s string) string {
	if f.asciify {
		s = strings.TrimSpace(unidecode.Unidecode(s))
	}
	switch s {
	case "", ".", "..":
		return "_"
	}
	return s
}

func sameContent(a, b fs.FileInfo) bool {
	return a.Size() == b.Size() && a.ModTime().Equal(b.ModTime())
}

// copyFile writes src to a temporary file beside dst, applies the source mode and times, and renames it into place.
func copyFile(src, dst string, info fs.FileInfo) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".libsync-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, source); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Chtimes(tmp.Name(), info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
