package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/desertthunder/libsync/internal/shared"
)

// AudioExtensions lists the file extensions picked up from the import directory.
var AudioExtensions = []string{".mp3", ".flac", ".m4a", ".mp4", ".aac", ".ogg", ".opus", ".wav", ".dsf"}

// VerifyWritable checks that dir exists and that a file can be created in it.
func VerifyWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrNotWritable, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", shared.ErrNotWritable, dir)
	}

	f, err := os.CreateTemp(dir, ".libsync-write-check-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrNotWritable, dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// IsAudio reports whether path has one of [AudioExtensions].
func IsAudio(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range AudioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ScanDir lists the audio files directly inside dir, sorted by name. Hidden files are skipped.
func ScanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read import directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") || !IsAudio(name) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// Purge deletes the given source files. Files that are already gone are ignored.
func Purge(paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
