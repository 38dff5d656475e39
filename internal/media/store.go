package media

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ErrNotFound is returned when a media file does not exist in the store.
var ErrNotFound = errors.New("media file not found")

// Upload is one file submitted by a client.
type Upload struct {
	Filename string
	Content  io.Reader
}

// FileInfo describes a stored media file.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store is a flat directory of uploaded photo and audio files. Files are
// referenced by name only; the store keeps no metadata of its own.
type Store struct {
	fs  afero.Fs
	dir string
	now func() time.Time
	mu  sync.RWMutex

	// shared by writers and readers of referenced files, exclusive for
	// garbage collection
	gcMu sync.RWMutex
}

// NewStore creates the media directory if needed.
func NewStore(fs afero.Fs, dir string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create media directory %s", dir)
	}
	return &Store{fs: fs, dir: dir, now: time.Now}, nil
}

// Share keeps garbage collection out until release is called. Hold it while
// writing files that are not referenced yet or reading referenced ones.
func (s *Store) Share() (release func()) {
	s.gcMu.RLock()
	return s.gcMu.RUnlock
}

// Exclusive waits for every Share holder and blocks new ones until release
// is called.
func (s *Store) Exclusive() (release func()) {
	s.gcMu.Lock()
	return s.gcMu.Unlock
}

// Fs exposes the underlying filesystem (read access for exporters).
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Dir returns the media directory path.
func (s *Store) Dir() string {
	return s.dir
}

// SanitizeName strips any directory part and replaces characters that could
// break a filename list or escape the media directory.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.NewReplacer(",", "_", "/", "_", "\x00", "_").Replace(name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

// GenerateName builds {prefix}_{HHMMSS}-{8 hex}_{sanitized name}.
func (s *Store) GenerateName(prefix, original string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s-%s_%s", prefix, s.now().Format("150405"), token, SanitizeName(original))
}

// Save writes one upload and returns the generated filename.
func (s *Store) Save(prefix string, up Upload) (string, error) {
	name := s.GenerateName(prefix, up.Filename)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fs.OpenFile(s.path(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create media file %s", name)
	}
	if _, err := io.Copy(f, up.Content); err != nil {
		f.Close()
		_ = s.fs.Remove(s.path(name))
		return "", errors.Wrapf(err, "failed to write media file %s", name)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(s.path(name))
		return "", errors.Wrapf(err, "failed to close media file %s", name)
	}
	return name, nil
}

// SaveAll writes every upload in order. On failure the files already written
// by this call are removed again.
func (s *Store) SaveAll(prefix string, uploads []Upload) ([]string, error) {
	names := make([]string, 0, len(uploads))
	for _, up := range uploads {
		name, err := s.Save(prefix, up)
		if err != nil {
			s.RemoveAll(names)
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// Open returns a reader for a stored file.
func (s *Store) Open(name string) (afero.File, error) {
	if SanitizeName(name) != name {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.fs.Open(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to open media file %s", name)
	}
	return f, nil
}

// Remove deletes one file. Missing files are not an error.
func (s *Store) Remove(name string) error {
	if SanitizeName(name) != name {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove media file %s", name)
	}
	return nil
}

// RemoveAll deletes the given files and returns how many were removed.
func (s *Store) RemoveAll(names []string) int {
	removed := 0
	for _, name := range names {
		if err := s.Remove(name); err == nil {
			removed++
		}
	}
	return removed
}

// List returns every file in the media directory sorted by name.
func (s *Store) List() ([]FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read media directory")
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, FileInfo{Name: e.Name(), Size: e.Size(), ModTime: e.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Usage returns the total byte size and file count of the media directory.
func (s *Store) Usage() (int64, int, error) {
	files, err := s.List()
	if err != nil {
		return 0, 0, err
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total, len(files), nil
}

// Wipe removes the whole media directory and recreates it empty.
func (s *Store) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.RemoveAll(s.dir); err != nil {
		return errors.Wrap(err, "failed to remove media directory")
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to recreate media directory")
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}
