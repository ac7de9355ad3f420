package upload_test

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/uireg/pkg/upload"
)

type fakeObject struct {
	data        []byte
	contentType string
	meta        map[string]string
	modified    time.Time
}

// fakeS3 serves the handful of path-style S3 calls S3Store makes.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]*fakeObject
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: make(map[string]*fakeObject)}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.bucket {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case key == "" && r.Method == http.MethodGet:
		f.list(w, r.URL.Query().Get("prefix"))
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		meta := make(map[string]string)
		for name, values := range r.Header {
			if m, ok := strings.CutPrefix(strings.ToLower(name), "x-amz-meta-"); ok {
				meta[m] = values[0]
			}
		}
		f.objects[key] = &fakeObject{
			data:        data,
			contentType: r.Header.Get("Content-Type"),
			meta:        meta,
			modified:    time.Now(),
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", obj.contentType)
		for k, v := range obj.meta {
			w.Header().Set("X-Amz-Meta-"+k, v)
		}
		w.Write(obj.data)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type listContents struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	Size         int    `xml:"Size"`
}

type listResult struct {
	XMLName     xml.Name       `xml:"ListBucketResult"`
	Name        string         `xml:"Name"`
	Prefix      string         `xml:"Prefix"`
	KeyCount    int            `xml:"KeyCount"`
	MaxKeys     int            `xml:"MaxKeys"`
	IsTruncated bool           `xml:"IsTruncated"`
	Contents    []listContents `xml:"Contents"`
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	res := listResult{Name: f.bucket, Prefix: prefix, KeyCount: len(keys), MaxKeys: 1000}
	for _, k := range keys {
		obj := f.objects[k]
		res.Contents = append(res.Contents, listContents{
			Key:          k,
			LastModified: obj.modified.UTC().Format("2006-01-02T15:04:05.000Z"),
			Size:         len(obj.data),
		})
	}
	w.Header().Set("Content-Type", "application/xml")
	xml.NewEncoder(w).Encode(res)
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>`+code+`</Message></Error>`)
}

func (f *fakeS3) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeS3) age(prefix string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, obj := range f.objects {
		if strings.HasPrefix(k, prefix) {
			obj.modified = obj.modified.Add(-d)
		}
	}
}

func newS3Store(t *testing.T) (*upload.S3Store, *fakeS3, *httptest.Server) {
	t.Helper()
	fake := newFakeS3("registry")
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	opts := upload.S3Options{
		Bucket:    "registry",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		Prefix:    "blobs",
		PathStyle: true,
		MaxSize:   1 << 20,
	}
	return upload.NewS3Store(upload.NewS3Client(opts), opts), fake, srv
}

func TestS3Store_UploadOpen(t *testing.T) {
	store, fake, srv := newS3Store(t)
	ctx := context.Background()

	url, err := store.Upload(ctx, "u1/button-code.tsx", "text/plain", strings.NewReader("export const A = 1"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if want := srv.URL + "/registry/blobs/u1/button-code.tsx"; url != want {
		t.Errorf("url = %q, want %q", url, want)
	}
	if !fake.has("blobs/u1/button-code.tsx") {
		t.Error("object not stored under prefixed key")
	}

	key, ok := store.KeyFromURL(url)
	if !ok || key != "u1/button-code.tsx" {
		t.Errorf("KeyFromURL = %q, %v", key, ok)
	}

	rc, err := store.Open(ctx, "u1/button-code.tsx")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "export const A = 1" {
		t.Errorf("content = %q", data)
	}

	if _, err := store.Open(ctx, "u1/missing.tsx"); !errors.Is(err, upload.ErrNotFound) {
		t.Errorf("Open missing err = %v, want ErrNotFound", err)
	}
	if _, err := store.Upload(ctx, "../x", "text/plain", strings.NewReader("")); !errors.Is(err, upload.ErrKeyEscapesRoot) {
		t.Errorf("Upload bad key err = %v", err)
	}
}

func TestS3Store_TempLifecycle(t *testing.T) {
	store, fake, _ := newS3Store(t)

	tempID, err := store.Save("shot.png", "image/png", int64(len(pngHeader)), bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	file, err := store.Claim(tempID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if file.Filename != "shot.png" || file.ContentType != "image/png" {
		t.Errorf("claimed %q %q", file.Filename, file.ContentType)
	}
	if file.Size != int64(len(pngHeader)) {
		t.Errorf("Size = %d", file.Size)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if fake.has("blobs/.uploads/"+tempID) {
		t.Error("temp object survived Close")
	}
	if _, err := store.Claim(tempID); !errors.Is(err, upload.ErrNotFound) {
		t.Errorf("second Claim err = %v", err)
	}
}

func TestS3Store_TooLarge(t *testing.T) {
	store, _, _ := newS3Store(t)
	big := make([]byte, 2<<20)
	if _, err := store.Save("big.png", "image/png", int64(len(big)), bytes.NewReader(big)); !errors.Is(err, upload.ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
	if _, err := store.Save("big.png", "image/png", 1, bytes.NewReader(big)); !errors.Is(err, upload.ErrTooLarge) {
		t.Errorf("understated size err = %v, want ErrTooLarge", err)
	}
}

func TestS3Store_Cleanup(t *testing.T) {
	store, fake, _ := newS3Store(t)
	ctx := context.Background()

	old, err := store.Save("old.png", "image/png", 1, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Upload(ctx, "u1/keep.tsx", "text/plain", strings.NewReader("x")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	fake.age("", 2*time.Hour)
	fresh, err := store.Save("new.png", "image/png", 1, strings.NewReader("y"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Cleanup(time.Hour); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if fake.has("blobs/.uploads/"+old) {
		t.Error("expired temp upload survived Cleanup")
	}
	if !fake.has("blobs/.uploads/"+fresh) {
		t.Error("fresh temp upload removed")
	}
	if !fake.has("blobs/u1/keep.tsx") {
		t.Error("Cleanup removed a blob")
	}
}

func TestS3Store_URLForms(t *testing.T) {
	tests := []struct {
		name string
		opts upload.S3Options
		want string
	}{
		{
			name: "public base",
			opts: upload.S3Options{Bucket: "b", PublicBaseURL: "https://cdn.example.com/", Prefix: "/p/"},
			want: "https://cdn.example.com/p/k.tsx",
		},
		{
			name: "virtual host endpoint",
			opts: upload.S3Options{Bucket: "b", Endpoint: "https://s3.example.com"},
			want: "https://b.s3.example.com/k.tsx",
		},
		{
			name: "aws default",
			opts: upload.S3Options{Bucket: "b", Region: "eu-west-1"},
			want: "https://b.s3.eu-west-1.amazonaws.com/k.tsx",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := upload.NewS3Store(nil, tt.opts)
			if got := store.URL("k.tsx"); got != tt.want {
				t.Errorf("URL = %q, want %q", got, tt.want)
			}
		})
	}
}
