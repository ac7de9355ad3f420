package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound is returned when a temp file or blob doesn't exist.
var ErrNotFound = errors.New("upload: file not found")

// ErrTooLarge is returned when a file exceeds the size limit.
var ErrTooLarge = errors.New("upload: file too large")

// ErrTypeNotAllowed is returned when a file's detected type is rejected.
var ErrTypeNotAllowed = errors.New("upload: file type not allowed")

// TempStore holds uploads until a submission claims them.
type TempStore interface {
	// Save stores the uploaded file and returns a temp ID.
	Save(filename string, contentType string, size int64, r io.Reader) (tempID string, err error)

	// Claim retrieves a temp file. Closing the returned File deletes it.
	Claim(tempID string) (*File, error)

	// Cleanup removes temp files older than maxAge.
	Cleanup(maxAge time.Duration) error
}

// Blobs is durable, URL-addressable storage.
type Blobs interface {
	// Upload writes body under key and returns its public URL.
	Upload(ctx context.Context, key, contentType string, body io.Reader) (url string, err error)

	// Open reads the blob stored under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// URL returns the public URL of key without checking it exists.
	URL(key string) string
}

// Store is a backend offering both kinds of storage.
type Store interface {
	TempStore
	Blobs
}

// File is a claimed temp upload.
type File struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64

	// Reader provides the contents. Close the File when done.
	Reader io.ReadCloser
}

// Close closes the reader, which deletes the temp file.
func (f *File) Close() error {
	if f.Reader != nil {
		return f.Reader.Close()
	}
	return nil
}

// ImageTypes are the MIME types accepted for preview images.
var ImageTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// Config holds configuration for the upload handler.
type Config struct {
	// MaxFileSize is the maximum allowed file size in bytes.
	// Default: 5MB.
	MaxFileSize int64

	// AllowedTypes is a list of allowed MIME types, matched against the
	// sniffed type. If empty, all types are allowed.
	AllowedTypes []string
}

// DefaultConfig accepts images up to 5MB.
func DefaultConfig() *Config {
	return &Config{
		MaxFileSize:  5 << 20,
		AllowedTypes: ImageTypes,
	}
}

// Handler returns an http.Handler that accepts a multipart form with a
// "file" field and responds with {"temp_id": "...", "content_type": "..."}.
func Handler(store TempStore, config *Config) http.Handler {
	if config == nil {
		config = DefaultConfig()
	}
	maxSize := config.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultConfig().MaxFileSize
	}
	allowed := make(map[string]bool, len(config.AllowedTypes))
	for _, t := range config.AllowedTypes {
		allowed[normalizeType(t)] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Multipart framing needs a little headroom over the file itself.
		r.Body = http.MaxBytesReader(w, r.Body, maxSize+64<<10)
		if err := r.ParseMultipartForm(maxSize); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "No file provided", http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxSize {
			http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}

		sniff := make([]byte, 512)
		n, _ := io.ReadFull(file, sniff)
		sniff = sniff[:n]
		detected := normalizeType(http.DetectContentType(sniff))
		if len(allowed) > 0 && !allowed[detected] {
			http.Error(w, "Unsupported file type", http.StatusUnsupportedMediaType)
			return
		}

		body := io.MultiReader(bytes.NewReader(sniff), file)
		tempID, err := store.Save(header.Filename, detected, header.Size, body)
		if err != nil {
			if errors.Is(err, ErrTooLarge) {
				http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "Upload failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"temp_id":      tempID,
			"content_type": detected,
		})
	})
}

func normalizeType(t string) string {
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		mediaType = t
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// Extension returns the file extension for an image content type, with
// the leading dot, or "" when unknown.
func Extension(contentType string) string {
	switch normalizeType(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}
