// Package storage keeps one file per song under {root}/{artist}/{song}.
//
// The raw store doubles as the crawl cache: a file's existence means the song
// was already fetched, whatever its content.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var replacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"\x00", "_",
)

// MakeValid turns an identifier into a single safe path component.
func MakeValid(name string) string {
	name = replacer.Replace(strings.TrimSpace(name))
	switch name {
	case "", ".", "..":
		return "_" + name
	}
	return name
}

type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) ArtistDir(artistID string) string {
	return filepath.Join(s.root, MakeValid(artistID))
}

func (s *Store) Path(artistID, songID string) string {
	return filepath.Join(s.ArtistDir(artistID), MakeValid(songID))
}

// Exists reports whether a file is stored for the pair.
func (s *Store) Exists(artistID, songID string) (bool, error) {
	_, err := os.Stat(s.Path(artistID, songID))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", s.Path(artistID, songID), err)
}

// Save writes content atomically, creating the root and the artist directory
// as needed. An existing file is replaced.
func (s *Store) Save(artistID, songID, content string) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create storage root %s: %w", s.root, err)
	}
	dir := s.ArtistDir(artistID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artist dir %s: %w", dir, err)
	}

	path := s.Path(artistID, songID)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temporary file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func (s *Store) Read(artistID, songID string) (string, error) {
	data, err := os.ReadFile(s.Path(artistID, songID))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.Path(artistID, songID), err)
	}
	return string(data), nil
}

// ReadEntry reads a file found by Walk, using its on-disk name as is.
func (s *Store) ReadEntry(e Entry) (string, error) {
	data, err := os.ReadFile(e.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", e.Path, err)
	}
	return string(data), nil
}

// Entry is one stored song found by Walk.
type Entry struct {
	ArtistID string
	SongID   string
	Path     string
}

// Walk lists stored songs, artists then songs in name order. Stray files at the
// root and subdirectories inside an artist directory are ignored, as are
// in-flight temporary files. A missing root yields no entries.
func (s *Store) Walk() ([]Entry, error) {
	artists, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", s.root, err)
	}

	var entries []Entry
	for _, artist := range artists {
		if !artist.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, artist.Name())
		songs, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		for _, song := range songs {
			if song.IsDir() || strings.HasPrefix(song.Name(), ".") {
				continue
			}
			entries = append(entries, Entry{
				ArtistID: artist.Name(),
				SongID:   song.Name(),
				Path:     filepath.Join(dir, song.Name()),
			})
		}
	}
	return entries, nil
}
