// Package media names and stores generated media files. Filenames are a
// pure function of (word, kind), so re-running generation for a word
// overwrites the same files instead of accumulating new ones.
package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact kinds. Each (word, kind) pair maps to exactly one filename.
const (
	KindWord     = "word"
	KindSentence = "sentence"
	KindImage    = "image"
)

const hashPrefixLen = 12

// Filename returns the deterministic media filename for a word and
// artifact kind: gen_<sha256(word:kind) truncated>.<ext>.
func Filename(word, kind string) string {
	sum := sha256.Sum256([]byte(word + ":" + kind))
	ext := "mp3"
	if kind == KindImage {
		ext = "jpg"
	}
	return fmt.Sprintf("gen_%s.%s", hex.EncodeToString(sum[:])[:hashPrefixLen], ext)
}

// Store keeps media files in a single directory on disk.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir. The directory is created lazily
// on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Write stores data under name. The write goes to a temp file first and
// is renamed into place, so a concurrent reader never observes a partial
// file.
func (s *Store) Write(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// Exists reports whether name is present in the store.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

// Path returns the absolute location of name inside the store.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}
