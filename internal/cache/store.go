package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// Key derives the content address for a track. URL variants that resolve
// to the same platform and track identifier share one key.
func Key(platform, trackID string) string {
	sum := sha256.Sum256([]byte(platform + ":" + trackID))
	return hex.EncodeToString(sum[:])
}

// Metadata is the sidecar record written next to each cached file.
type Metadata struct {
	Key       string    `json:"key"`
	Platform  string    `json:"platform"`
	TrackID   string    `json:"track_id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats describes current cache usage.
type Stats struct {
	Entries    int   `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
}

// Store is the persistence layer beneath Cache.
type Store interface {
	Exists(key string) (Metadata, bool, error)
	Path(key string) string
	Publish(key, srcPath string, meta Metadata) (Metadata, error)
	Remove(key string) error
	List() ([]Metadata, error)
	Stats() (Stats, error)
}

// FSStore keeps entries as flat files in a single directory: the audio
// payload at <key>.mp3 and a JSON sidecar at <key>.json.
type FSStore struct {
	root string
	now  func() time.Time
}

// NewFSStore creates the cache directory if needed.
func NewFSStore(root string) (*FSStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("cache: empty cache directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create cache directory: %w", err)
	}
	return &FSStore{root: root, now: time.Now}, nil
}

// Path returns where the payload for key lives (whether or not it exists).
func (s *FSStore) Path(key string) string {
	return filepath.Join(s.root, key+".mp3")
}

func (s *FSStore) sidecarPath(key string) string {
	return filepath.Join(s.root, key+".json")
}

func (s *FSStore) lockPath(key string) string {
	return filepath.Join(s.root, key+".lock")
}

// Exists reports whether a complete entry is present. A payload without a
// sidecar (or the reverse) counts as absent; partial writes never surface.
func (s *FSStore) Exists(key string) (Metadata, bool, error) {
	meta, err := s.readSidecar(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Metadata{}, false, nil
		}
		return Metadata{}, false, err
	}
	if _, err := os.Stat(s.Path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Metadata{}, false, nil
		}
		return Metadata{}, false, fmt.Errorf("cache: stat payload: %w", err)
	}
	return meta, true, nil
}

func (s *FSStore) readSidecar(key string) (Metadata, error) {
	data, err := os.ReadFile(s.sidecarPath(key))
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("cache: decode sidecar for %s: %w", key, err)
	}
	return meta, nil
}

// Publish moves srcPath into the cache under key. The payload is copied to
// a temp file in the cache directory and renamed into place, then the
// sidecar is written the same way, so readers only ever see complete
// entries. A per-key file lock serializes publishers across processes.
func (s *FSStore) Publish(key, srcPath string, meta Metadata) (Metadata, error) {
	lock := flock.New(s.lockPath(key))
	if err := lock.Lock(); err != nil {
		return Metadata{}, fmt.Errorf("cache: acquire publish lock: %w", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	// Another publisher may have finished while we waited on the lock.
	if existing, ok, err := s.Exists(key); err == nil && ok {
		return existing, nil
	}

	info, err := os.Stat(srcPath)
	if err != nil {
		return Metadata{}, fmt.Errorf("cache: inspect source file: %w", err)
	}

	meta.Key = key
	meta.SizeBytes = info.Size()
	meta.CreatedAt = s.now().UTC()

	if err := s.writeAtomic(s.Path(key), func(w io.Writer) error {
		src, err := os.Open(srcPath)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	}); err != nil {
		return Metadata{}, fmt.Errorf("cache: publish payload: %w", err)
	}

	encoded, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Metadata{}, fmt.Errorf("cache: encode sidecar: %w", err)
	}
	if err := s.writeAtomic(s.sidecarPath(key), func(w io.Writer) error {
		_, err := w.Write(encoded)
		return err
	}); err != nil {
		_ = os.Remove(s.Path(key))
		return Metadata{}, fmt.Errorf("cache: publish sidecar: %w", err)
	}
	return meta, nil
}

func (s *FSStore) writeAtomic(dest string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(s.root, ".publish-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dest)
}

// Remove deletes the entry for key. Missing entries are not an error.
func (s *FSStore) Remove(key string) error {
	for _, path := range []string{s.Path(key), s.sidecarPath(key), s.lockPath(key)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("cache: remove %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// List returns metadata for every complete entry, newest first.
func (s *FSStore) List() ([]Metadata, error) {
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("cache: read cache directory: %w", err)
	}
	var entries []Metadata
	for _, de := range dirents {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		meta, ok, err := s.Exists(key)
		if err != nil || !ok {
			continue
		}
		entries = append(entries, meta)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// Stats sums entry counts and payload sizes.
func (s *FSStore) Stats() (Stats, error) {
	entries, err := s.List()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Entries: len(entries)}
	for _, meta := range entries {
		stats.TotalBytes += meta.SizeBytes
	}
	return stats, nil
}
