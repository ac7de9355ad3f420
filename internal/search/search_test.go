package search

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/uireg/internal/errors"
)

func TestParseValue(t *testing.T) {
	r := Result{UserID: "u1", Slug: "button", Username: "alice"}
	userID, slug, ok := ParseValue(r.Value())
	if !ok || userID != "u1" || slug != "button" {
		t.Errorf("ParseValue(%q) = %q, %q, %v", r.Value(), userID, slug, ok)
	}
	if r.Path() != "/alice/button" {
		t.Errorf("Path() = %q", r.Path())
	}

	for _, v := range []string{"", "section-Buttons", "component-", "component-u1", "component-/x", "component-u1/a/b"} {
		if _, _, ok := ParseValue(v); ok {
			t.Errorf("ParseValue(%q) ok", v)
		}
	}
}

func TestFilterSections(t *testing.T) {
	sections := DefaultSections()
	if len(sections) == 0 {
		t.Fatal("no default sections")
	}

	got := FilterSections(sections, "BUTT")
	if len(got) != 1 || len(got[0].Items) != 1 || got[0].Items[0].Title != "Buttons" {
		t.Errorf("FilterSections(BUTT) = %+v", got)
	}
	if len(FilterSections(sections, "zzz")) != 0 {
		t.Error("FilterSections(zzz) should be empty")
	}
	if diff := cmp.Diff(sections, FilterSections(sections, "  ")); diff != "" {
		t.Errorf("blank query should keep all sections:\n%s", diff)
	}
}

func TestLoadSections(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "nav.yaml")
	os.WriteFile(good, []byte("sections:\n  - title: Docs\n    items:\n      - title: Intro\n        href: /docs\n"), 0644)

	got, err := LoadSections(good)
	if err != nil {
		t.Fatalf("LoadSections() error = %v", err)
	}
	want := []Section{{Title: "Docs", Items: []Item{{Title: "Intro", Href: "/docs"}}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadSections mismatch (-want +got):\n%s", diff)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("sections:\n  - title: Docs\n    items:\n      - title: Intro\n"), 0644)
	if _, err := LoadSections(bad); !errors.HasCode(err, "E105") {
		t.Errorf("LoadSections(bad) error = %v, want E105", err)
	}
	if _, err := LoadSections(filepath.Join(dir, "missing.yaml")); !errors.HasCode(err, "E105") {
		t.Errorf("LoadSections(missing) error = %v, want E105", err)
	}
}

func remoteServer(t *testing.T, body string, status int) (*httptest.Server, *string) {
	t.Helper()
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rpc/search_components" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("apikey") != "secret" {
			http.Error(w, "no key", http.StatusUnauthorized)
			return
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &gotBody
}

func TestRemoteClientSearch(t *testing.T) {
	srv, gotBody := remoteServer(t, `[
		{"id": 7, "component_slug": "button", "name": "Button", "user_id": "u1",
		 "description": "A button", "preview_url": null, "code": "https://x/button.tsx",
		 "user_data": {"id": "u1", "username": "alice"}, "fts": "ignored"}
	]`, http.StatusOK)

	c := NewRemoteClient(srv.URL, "secret", nil)
	got, err := c.Search(context.Background(), " button ")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []Result{{
		ID: "7", Slug: "button", Name: "Button", Description: "A button",
		UserID: "u1", Username: "alice", CodeURL: "https://x/button.tsx",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Search mismatch (-want +got):\n%s", diff)
	}
	if *gotBody != `{"search_query":"button"}` {
		t.Errorf("request body = %s", *gotBody)
	}
}

func TestRemoteClientEmptyQuery(t *testing.T) {
	c := NewRemoteClient("http://127.0.0.1:1", "", nil)
	got, err := c.Search(context.Background(), "")
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("Search(\"\") = %v, %v, want empty slice", got, err)
	}
}

func TestRemoteClientShapeMismatch(t *testing.T) {
	tests := map[string]string{
		"not an array":       `{"error": "nope"}`,
		"missing slug":       `[{"id": "1", "name": "B", "user_id": "u", "user_data": {"username": "a"}}]`,
		"wrong type":         `[{"id": "1", "component_slug": 3, "name": "B", "user_id": "u", "user_data": {"username": "a"}}]`,
		"missing user_data":  `[{"id": "1", "component_slug": "b", "name": "B", "user_id": "u"}]`,
		"user without name":  `[{"id": "1", "component_slug": "b", "name": "B", "user_id": "u", "user_data": {}}]`,
		"bad optional field": `[{"id": "1", "component_slug": "b", "name": "B", "user_id": "u", "preview_url": 1, "user_data": {"username": "a"}}]`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			srv, _ := remoteServer(t, body, http.StatusOK)
			_, err := NewRemoteClient(srv.URL, "secret", nil).Search(context.Background(), "b")
			if !errors.HasCode(err, "E210") {
				t.Errorf("Search() error = %v, want E210", err)
			}
		})
	}
}

func TestRemoteClientHTTPError(t *testing.T) {
	srv, _ := remoteServer(t, `oops`, http.StatusInternalServerError)
	_, err := NewRemoteClient(srv.URL, "secret", nil).Search(context.Background(), "b")
	if !errors.HasCode(err, "E203") {
		t.Errorf("Search() error = %v, want E203", err)
	}
}

func TestPaletteCachesResults(t *testing.T) {
	calls := 0
	s := SearcherFunc(func(ctx context.Context, q string) ([]Result, error) {
		calls++
		return []Result{{ID: "1", Slug: "button", Name: "Button", UserID: "u1", Username: "alice"}}, nil
	})
	var hits, misses int
	p := NewPalette(s, DefaultSections(), WithLookupObserver(func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	}))

	first := p.Query(context.Background(), "Button")
	second := p.Query(context.Background(), "button")
	if calls != 1 || hits != 1 || misses != 1 {
		t.Errorf("calls=%d hits=%d misses=%d, want 1/1/1", calls, hits, misses)
	}
	if diff := cmp.Diff(first.Components, second.Components); diff != "" {
		t.Errorf("cached results differ:\n%s", diff)
	}
	if len(first.Sections) != 1 {
		t.Errorf("sections = %+v", first.Sections)
	}

	r, ok := p.Find(context.Background(), "button", "component-u1/button")
	if !ok || r.Name != "Button" {
		t.Errorf("Find() = %+v, %v", r, ok)
	}
}

func TestPaletteDegradesOnSearchError(t *testing.T) {
	s := SearcherFunc(func(ctx context.Context, q string) ([]Result, error) {
		return nil, stderrors.New("down")
	})
	p := NewPalette(s, DefaultSections(), WithCacheTTL(0))

	resp := p.Query(context.Background(), "card")
	if resp.Error == "" {
		t.Error("expected Error to be set")
	}
	if len(resp.Sections) == 0 {
		t.Error("sections should still be returned")
	}
	if resp.Components == nil || len(resp.Components) != 0 {
		t.Errorf("Components = %v, want empty slice", resp.Components)
	}
}

func TestPaletteEmptyQuerySkipsSearch(t *testing.T) {
	s := SearcherFunc(func(ctx context.Context, q string) ([]Result, error) {
		t.Fatal("searcher called for empty query")
		return nil, nil
	})
	resp := NewPalette(s, DefaultSections(), WithLimit(5)).Query(context.Background(), "")
	if len(resp.Components) != 0 || len(resp.Sections) != len(DefaultSections()) {
		t.Errorf("resp = %+v", resp)
	}
}
