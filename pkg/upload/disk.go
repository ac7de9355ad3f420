package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// tempDir is the directory under the store root that holds temp uploads.
// Blob keys may not start with it.
const tempDir = ".uploads"

// DiskStore stores blobs and temp uploads on the local filesystem.
type DiskStore struct {
	dir     string
	baseURL string
	maxSize int64

	mu    sync.RWMutex
	files map[string]*diskMeta
}

type diskMeta struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewDiskStore creates a DiskStore rooted at dir. Blob URLs are baseURL
// followed by the key. maxSize limits temp uploads (0 = no limit).
func NewDiskStore(dir, baseURL string, maxSize int64) (*DiskStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, tempDir), 0755); err != nil {
		return nil, err
	}
	return &DiskStore{
		dir:     dir,
		baseURL: baseURL,
		maxSize: maxSize,
		files:   make(map[string]*diskMeta),
	}, nil
}

func (s *DiskStore) blobPath(key string) (string, string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", "", err
	}
	if clean == tempDir || strings.HasPrefix(clean, tempDir+"/") {
		return "", "", ErrNotFound
	}
	return clean, filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

// Upload writes body under key. The write goes through a temporary file
// and a rename, so readers never see a partial blob.
func (s *DiskStore) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	clean, path, err := s.blobPath(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".blob-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	if err := os.Rename(f.Name(), path); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return s.URL(clean), nil
}

// Open reads the blob stored under key.
func (s *DiskStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	_, path, err := s.blobPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// URL returns the public URL of key.
func (s *DiskStore) URL(key string) string {
	return joinURL(s.baseURL, key)
}

// KeyFromURL reverses URL, reporting false for URLs of other stores.
func (s *DiskStore) KeyFromURL(u string) (string, bool) {
	prefix := strings.TrimRight(s.baseURL, "/") + "/"
	key, ok := strings.CutPrefix(u, prefix)
	return key, ok && key != ""
}

// FileServer serves blobs by key. Temp uploads are never served.
func (s *DiskStore) FileServer() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, path, err := s.blobPath(r.URL.Path)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		f, err := os.Open(path)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(path, ".tsx") {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}

// Save stores a temp upload and returns its ID.
func (s *DiskStore) Save(filename, contentType string, size int64, r io.Reader) (string, error) {
	if s.maxSize > 0 && size > s.maxSize {
		return "", ErrTooLarge
	}

	tempID := uuid.NewString()
	path := s.tempPath(tempID)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader := r
	if s.maxSize > 0 {
		reader = io.LimitReader(r, s.maxSize+1)
	}
	written, err := io.Copy(f, reader)
	if err != nil {
		os.Remove(path)
		return "", err
	}
	if s.maxSize > 0 && written > s.maxSize {
		os.Remove(path)
		return "", ErrTooLarge
	}

	meta := &diskMeta{
		Filename:    filename,
		ContentType: contentType,
		Size:        written,
		CreatedAt:   time.Now(),
	}
	s.mu.Lock()
	s.files[tempID] = meta
	s.mu.Unlock()

	// The sidecar lets a restarted server claim uploads made before it.
	if err := s.saveMeta(tempID, meta); err != nil {
		return "", err
	}
	return tempID, nil
}

// Claim retrieves a temp upload; closing the File deletes it.
func (s *DiskStore) Claim(tempID string) (*File, error) {
	if _, err := uuid.Parse(tempID); err != nil {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	meta, ok := s.files[tempID]
	if ok {
		delete(s.files, tempID)
	}
	s.mu.Unlock()

	if !ok {
		var err error
		meta, err = s.loadMeta(tempID)
		if err != nil {
			return nil, ErrNotFound
		}
	}

	path := s.tempPath(tempID)
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrNotFound
	}
	return &File{
		ID:          tempID,
		Filename:    meta.Filename,
		ContentType: meta.ContentType,
		Size:        meta.Size,
		Reader:      &deleteOnClose{File: f, paths: []string{path, s.metaPath(tempID)}},
	}, nil
}

// Cleanup removes temp uploads older than maxAge.
func (s *DiskStore) Cleanup(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	for tempID, meta := range s.files {
		if meta.CreatedAt.Before(cutoff) {
			delete(s.files, tempID)
		}
	}
	s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.dir, tempDir))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || entry.IsDir() {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(s.dir, tempDir, entry.Name()))
		}
	}
	return nil
}

func (s *DiskStore) tempPath(tempID string) string {
	return filepath.Join(s.dir, tempDir, tempID)
}

func (s *DiskStore) metaPath(tempID string) string {
	return s.tempPath(tempID) + ".meta"
}

func (s *DiskStore) saveMeta(tempID string, meta *diskMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath(tempID), data, 0644)
}

func (s *DiskStore) loadMeta(tempID string) (*diskMeta, error) {
	data, err := os.ReadFile(s.metaPath(tempID))
	if err != nil {
		return nil, err
	}
	var meta diskMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

type deleteOnClose struct {
	*os.File
	paths []string
}

func (r *deleteOnClose) Close() error {
	err := r.File.Close()
	for _, p := range r.paths {
		os.Remove(p)
	}
	return err
}
