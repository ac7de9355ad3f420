package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/uireg/internal/errors"
	"github.com/vango-dev/uireg/internal/registry"
	"github.com/vango-dev/uireg/internal/search"
	"github.com/vango-dev/uireg/internal/store"
	"github.com/vango-dev/uireg/internal/submission"
	"github.com/vango-dev/uireg/pkg/middleware"
	"github.com/vango-dev/uireg/pkg/upload"
)

const (
	buttonCode = "import { clsx } from \"clsx\"\n\nexport function Button() {\n  return <button className={clsx(\"btn\")} />\n}\n"
	buttonDemo = "import { Button } from \"./Button\"\n\nexport default function Demo() {\n  return <Button />\n}\n"
)

type testServer struct {
	*httptest.Server
	store   *store.Store
	manager *submission.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := store.Open(ctx, filepath.Join(dir, "registry.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	files, err := upload.NewDiskStore(filepath.Join(dir, "files"), "/files", 1<<20)
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}

	config := submission.DefaultConfig()
	config.SlugDebounce = 20 * time.Millisecond
	config.PublicURL = "http://registry.test"
	manager := submission.NewManager(submission.Services{
		Slugs:   db,
		Blobs:   files,
		Records: db,
		Images:  files,
	}, config, nil, nil)

	reg := prometheus.NewRegistry()
	srv := New(Deps{
		Users:       db,
		Slugs:       db,
		Submissions: manager,
		Palette:     search.NewPalette(db, search.DefaultSections()),
		Registry:    registry.New(db, config.PublicURL, registry.WithBlobs(files)),
		Uploads:     files,
		Files:       files.FileServer(),
		Gatherer:    reg,
		Metrics:     middleware.NewMetrics(middleware.WithRegistry(reg)),
	})

	ts := &testServer{Server: httptest.NewServer(srv), store: db, manager: manager}
	t.Cleanup(func() {
		ts.Close()
		manager.Shutdown(context.Background())
		db.Close()
	})
	return ts
}

type user struct{ id, username string }

var ada = &user{"u1", "ada"}

func (ts *testServer) do(t *testing.T, u *user, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if u != nil {
		req.Header.Set(HeaderUserID, u.id)
		req.Header.Set(HeaderUsername, u.username)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v", v, err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s = %d, want %d: %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

func (ts *testServer) create(t *testing.T, u *user) submission.Snapshot {
	t.Helper()
	resp := ts.do(t, u, http.MethodPost, "/api/submissions", nil)
	expectStatus(t, resp, http.StatusCreated)
	return decode[submission.Snapshot](t, resp)
}

// dial opens the snapshot stream of a session.
func (ts *testServer) dial(t *testing.T, u *user, id string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set(HeaderUserID, u.id)
	header.Set(HeaderUsername, u.username)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/submissions/" + id + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, cond func(submission.Snapshot) bool) submission.Snapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var snap submission.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read snapshot: %v", err)
		}
		if cond(snap) {
			return snap
		}
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, nil, http.MethodGet, "/healthz", nil)
	expectStatus(t, resp, http.StatusOK)
}

func TestSubmitEndToEnd(t *testing.T) {
	ts := newTestServer(t)
	snap := ts.create(t, ada)
	id := snap.ID
	if snap.State != submission.EnteringCode {
		t.Fatalf("initial state = %s", snap.State)
	}
	conn := ts.dial(t, ada, id)

	resp := ts.do(t, ada, http.MethodGet, "/api/submissions/"+id+"/preview", nil)
	expectStatus(t, resp, http.StatusConflict)

	resp = ts.do(t, ada, http.MethodPut, "/api/submissions/"+id+"/code", sourceRequest{Source: buttonCode})
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, ada, http.MethodPut, "/api/submissions/"+id+"/demo", sourceRequest{Source: buttonDemo})
	expectStatus(t, resp, http.StatusOK)
	snap = decode[submission.Snapshot](t, resp)
	if snap.State != submission.ResolvingImports {
		t.Fatalf("state after demo = %s", snap.State)
	}

	resp = ts.do(t, ada, http.MethodPost, "/api/submissions/"+id+"/removals", removalRequest{All: true})
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, ada, http.MethodPut, "/api/submissions/"+id+"/details", submission.Details{
		Name:        "Button",
		Description: "A button",
		Tags:        []string{"Forms", "Buttons"},
		Public:      true,
		License:     "MIT",
	})
	expectStatus(t, resp, http.StatusOK)

	snap = readUntil(t, conn, func(s submission.Snapshot) bool {
		return s.Slug.Checked && !s.Slug.Checking
	})
	if snap.Slug.Value != "button" || !snap.Slug.Available {
		t.Fatalf("slug = %+v", snap.Slug)
	}

	resp = ts.do(t, ada, http.MethodGet, "/api/submissions/"+id+"/preview", nil)
	expectStatus(t, resp, http.StatusOK)
	sandpack := decode[map[string]any](t, resp)
	if sandpack["template"] != "react-ts" {
		t.Errorf("template = %v", sandpack["template"])
	}

	resp = ts.do(t, ada, http.MethodPost, "/api/submissions/"+id+"/submit", nil)
	expectStatus(t, resp, http.StatusCreated)
	snap = decode[submission.Snapshot](t, resp)
	if snap.State != submission.Succeeded || snap.ViewPath != "/ada/button" {
		t.Fatalf("after submit: state=%s view=%q", snap.State, snap.ViewPath)
	}
	if snap.Record.InstallURL != "http://registry.test/api/r/ada/button" {
		t.Errorf("install URL = %q", snap.Record.InstallURL)
	}

	resp = ts.do(t, nil, http.MethodGet, "/api/components/ada/button", nil)
	expectStatus(t, resp, http.StatusOK)
	info := decode[registry.PageInfo](t, resp)
	if len(info.Dependencies) != 1 || info.Dependencies[0].Name != "clsx" {
		t.Errorf("dependencies = %+v", info.Dependencies)
	}
	if info.License == nil || info.License.SPDX != "MIT" {
		t.Errorf("license = %+v", info.License)
	}

	resp = ts.do(t, nil, http.MethodGet, "/api/r/ada/button", nil)
	expectStatus(t, resp, http.StatusOK)
	item := decode[registry.Item](t, resp)
	if len(item.Files) != 1 || item.Files[0].Content != buttonCode {
		t.Fatalf("files = %+v", item.Files)
	}

	resp = ts.do(t, nil, http.MethodGet, snap.Record.CodeURL, nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if string(body) != buttonCode {
		t.Errorf("served code = %q", body)
	}

	resp = ts.do(t, nil, http.MethodGet, "/api/search?q=button", nil)
	expectStatus(t, resp, http.StatusOK)
	found := decode[search.Response](t, resp)
	if len(found.Components) != 1 || found.Components[0].Slug != "button" {
		t.Errorf("search = %+v", found.Components)
	}

	resp = ts.do(t, ada, http.MethodGet, "/api/slugs/available?slug=button", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[map[string]any](t, resp); got["available"] != false {
		t.Errorf("availability after submit = %v", got)
	}

	resp = ts.do(t, ada, http.MethodPut, "/api/submissions/"+id+"/code", sourceRequest{Source: buttonCode})
	expectStatus(t, resp, http.StatusConflict)

	resp = ts.do(t, ada, http.MethodPost, "/api/submissions/"+id+"/reset", nil)
	expectStatus(t, resp, http.StatusOK)
	if snap := decode[submission.Snapshot](t, resp); snap.State != submission.EnteringCode {
		t.Errorf("after reset = %s", snap.State)
	}
}

func TestSubmitValidationReturnsSnapshot(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, ada).ID

	resp := ts.do(t, ada, http.MethodPost, "/api/submissions/"+id+"/submit", nil)
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	failure := decode[submitFailure](t, resp)
	if failure.Error.Code != "E300" || failure.Snapshot.State != submission.EnteringCode {
		t.Errorf("failure = %+v", failure)
	}
}

func TestAuthAndOwnership(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, nil, http.MethodPost, "/api/submissions", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	if p := decode[errors.Payload](t, resp); p.Code != "E345" {
		t.Errorf("code = %q", p.Code)
	}

	id := ts.create(t, ada).ID
	bob := &user{"u2", "bob"}
	resp = ts.do(t, bob, http.MethodGet, "/api/submissions/"+id, nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = ts.do(t, bob, http.MethodDelete, "/api/submissions/"+id, nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = ts.do(t, ada, http.MethodDelete, "/api/submissions/"+id, nil)
	expectStatus(t, resp, http.StatusNoContent)

	resp = ts.do(t, ada, http.MethodGet, "/api/submissions/"+id, nil)
	expectStatus(t, resp, http.StatusNotFound)

	if u, err := ts.store.UserByUsername(context.Background(), "bob"); err != nil || u.ID != "u2" {
		t.Errorf("identity did not upsert bob: %v %+v", err, u)
	}
}

func TestBadRequests(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, ada).ID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown field", http.MethodPut, "/code", map[string]string{"code": "x"}, http.StatusBadRequest, "E309"},
		{"empty body", http.MethodPut, "/slug", nil, http.StatusBadRequest, "E309"},
		{"removal without statement", http.MethodPost, "/removals", removalRequest{}, http.StatusUnprocessableEntity, "E300"},
		{"unknown specifier", http.MethodPut, "/internal", internalRequest{Specifier: "@/x", Slug: "a/b"}, http.StatusUnprocessableEntity, "E306"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, ada, tt.method, "/api/submissions/"+id+tt.path, tt.body)
			expectStatus(t, resp, tt.status)
			if p := decode[errors.Payload](t, resp); p.Code != tt.code {
				t.Errorf("code = %q, want %q", p.Code, tt.code)
			}
		})
	}

	resp := ts.do(t, ada, http.MethodGet, "/api/slugs/available?slug=Not+Valid", nil)
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	resp = ts.do(t, nil, http.MethodGet, "/api/components/nobody/nothing", nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = ts.do(t, nil, http.MethodGet, "/api/r/nobody/nothing", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestStreamClosesWithSession(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, ada).ID
	conn := ts.dial(t, ada, id)

	first := readUntil(t, conn, func(submission.Snapshot) bool { return true })
	if first.ID != id {
		t.Fatalf("first snapshot id = %q", first.ID)
	}

	resp := ts.do(t, ada, http.MethodDelete, "/api/submissions/"+id, nil)
	expectStatus(t, resp, http.StatusNoContent)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("read after close = %v, want going away", err)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, nil, http.MethodGet, "/healthz", nil)

	resp := ts.do(t, nil, http.MethodGet, "/metrics", nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `uireg_http_requests_total{route="/healthz",status="200"} 1`) {
		t.Errorf("metrics missing healthz counter:\n%s", body)
	}
}
