package media

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
)

// LibraryFile is a playable file in the local library directory.
type LibraryFile struct {
	Name string // file name without extension
	Path string
	Size int64
}

// Library lists media files directly under one directory.
type Library struct {
	dir string
}

func NewLibrary(dir string) *Library { return &Library{dir: dir} }

func (l *Library) Dir() string { return l.dir }

// List returns the media files in the library sorted by name. A missing
// directory is an empty library.
func (l *Library) List() ([]LibraryFile, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read library dir")
	}
	var out []LibraryFile
	for _, e := range entries {
		if e.IsDir() || !IsMediaFile(e.Name()) {
			continue
		}
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		out = append(out, LibraryFile{
			Name: strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Path: filepath.Join(l.dir, e.Name()),
			Size: size,
		})
	}
	slices.SortFunc(out, func(a, b LibraryFile) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}

// Find looks up name, with or without its extension, case-insensitively.
func (l *Library) Find(name string) (LibraryFile, bool) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return LibraryFile{}, false
	}
	files, err := l.List()
	if err != nil {
		return LibraryFile{}, false
	}
	for _, f := range files {
		if strings.EqualFold(f.Name, name) || strings.EqualFold(filepath.Base(f.Path), name) {
			return f, true
		}
	}
	return LibraryFile{}, false
}

// Suggest returns up to limit library names containing prefix.
func (l *Library) Suggest(prefix string, limit int) []string {
	files, err := l.List()
	if err != nil {
		return nil
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	var out []string
	for _, f := range files {
		if len(out) >= limit {
			break
		}
		if prefix == "" || strings.Contains(strings.ToLower(f.Name), prefix) {
			out = append(out, f.Name)
		}
	}
	return out
}
