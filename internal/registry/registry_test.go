package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/uireg/internal/errors"
	"github.com/vango-dev/uireg/internal/store"
	"github.com/vango-dev/uireg/pkg/upload"
)

type fakeStore struct {
	components map[string]store.Component
	users      map[string]store.User
	refCalls   int
}

func newFakeStore(comps ...store.Component) *fakeStore {
	f := &fakeStore{
		components: make(map[string]store.Component),
		users:      make(map[string]store.User),
	}
	for _, c := range comps {
		f.components[c.Ref()] = c
	}
	return f
}

func (f *fakeStore) ComponentBySlug(_ context.Context, username, slug string) (*store.Component, error) {
	c, ok := f.components[username+"/"+slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (f *fakeStore) ComponentsByRefs(_ context.Context, refs []string) ([]store.Component, error) {
	f.refCalls++
	var out []store.Component
	for _, ref := range refs {
		if c, ok := f.components[ref]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) UserByUsername(_ context.Context, username string) (*store.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func component(username, slug string, deps ...string) store.Component {
	return store.Component{
		ID:       username + "-" + slug,
		Username: username,
		NewComponent: store.NewComponent{
			Name:                 slug,
			Slug:                 slug,
			RegistryDependencies: deps,
		},
	}
}

func refs(comps []store.Component) []string {
	out := make([]string, len(comps))
	for i, c := range comps {
		out[i] = c.Ref()
	}
	return out
}

func TestComponentNotFound(t *testing.T) {
	r := New(newFakeStore(), "https://ui.example.com")
	_, err := r.Component(context.Background(), "ada", "missing")
	if !errors.HasCode(err, "E346") {
		t.Fatalf("err = %v, want E346", err)
	}
}

func TestInstallOrder(t *testing.T) {
	tests := []struct {
		name  string
		comps []store.Component
		root  string
		want  []string
	}{
		{
			name:  "no dependencies",
			comps: []store.Component{component("ada", "button")},
			root:  "ada/button",
			want:  []string{},
		},
		{
			name: "chain",
			comps: []store.Component{
				component("ada", "dialog", "ada/button"),
				component("ada", "button", "bob/icon"),
				component("bob", "icon"),
			},
			root: "ada/dialog",
			want: []string{"bob/icon", "ada/button"},
		},
		{
			name: "diamond",
			comps: []store.Component{
				component("ada", "form", "ada/input", "ada/select"),
				component("ada", "input", "ada/label"),
				component("ada", "select", "ada/label"),
				component("ada", "label"),
			},
			root: "ada/form",
			want: []string{"ada/label", "ada/input", "ada/select"},
		},
		{
			name: "cycle",
			comps: []store.Component{
				component("ada", "a", "ada/b"),
				component("ada", "b", "ada/a"),
			},
			root: "ada/a",
			want: []string{"ada/b"},
		},
		{
			name: "missing reference",
			comps: []store.Component{
				component("ada", "card", "gone/away", "ada/text"),
				component("ada", "text"),
			},
			root: "ada/card",
			want: []string{"ada/text"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeStore(tt.comps...)
			r := New(fs, "")
			root := fs.components[tt.root]
			got, err := r.InstallOrder(context.Background(), &root)
			if err != nil {
				t.Fatalf("InstallOrder: %v", err)
			}
			if diff := cmp.Diff(tt.want, refs(got)); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInstallOrderBatchesLevels(t *testing.T) {
	fs := newFakeStore(
		component("ada", "form", "ada/input", "ada/select"),
		component("ada", "input", "ada/label"),
		component("ada", "select", "ada/label"),
		component("ada", "label"),
	)
	root := fs.components["ada/form"]
	if _, err := New(fs, "").InstallOrder(context.Background(), &root); err != nil {
		t.Fatal(err)
	}
	if fs.refCalls != 2 {
		t.Errorf("ComponentsByRefs called %d times, want 2", fs.refCalls)
	}
}

func TestFormatDependencies(t *testing.T) {
	tests := []struct {
		deps map[string]string
		want string
	}{
		{nil, "{}"},
		{map[string]string{"clsx": "^2.1.0"}, "{\n\"clsx\": \"^2.1.0\"\n}"},
		{
			map[string]string{"react-dom": "^18.2.0", "clsx": "^2.1.0"},
			"{\n\"clsx\": \"^2.1.0\",\n\"react-dom\": \"^18.2.0\"\n}",
		},
	}
	for _, tt := range tests {
		if got := FormatDependencies(tt.deps); got != tt.want {
			t.Errorf("FormatDependencies(%v) = %q, want %q", tt.deps, got, tt.want)
		}
	}
}

func TestPackageSpecs(t *testing.T) {
	got := PackageSpecs(map[string]string{
		"framer-motion": "latest",
		"clsx":          "^2.1.0",
		"lucide-react":  "",
	})
	want := []string{"clsx@^2.1.0", "framer-motion", "lucide-react"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PackageSpecs mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupLicense(t *testing.T) {
	if LookupLicense("") != nil {
		t.Error("empty license should be nil")
	}
	if got := LookupLicense("mit"); got.Name != "MIT License" || got.SPDX != "MIT" {
		t.Errorf("LookupLicense(mit) = %+v", got)
	}
	if got := LookupLicense("LicenseRef-Custom"); got.Name != "LicenseRef-Custom" {
		t.Errorf("unknown license = %+v", got)
	}
}

func TestInfo(t *testing.T) {
	button := component("ada", "button", "bob/icon", "gone/away")
	button.Dependencies = map[string]string{"clsx": "^2.1.0", "@radix-ui/react-slot": "^1.0.2"}
	button.License = "MIT"
	icon := component("bob", "icon")
	icon.Name = "Icon"

	fs := newFakeStore(button, icon)
	fs.users["ada"] = store.User{Username: "ada", Name: "Ada L", ImageURL: "https://img/ada.png"}
	r := New(fs, "https://ui.example.com/")

	info, err := r.Info(context.Background(), &button)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}

	if info.Author != (Author{Username: "ada", Name: "Ada L", ImageURL: "https://img/ada.png"}) {
		t.Errorf("Author = %+v", info.Author)
	}
	wantDeps := []Dependency{
		{
			Name:    "@radix-ui/react-slot",
			Version: "^1.0.2",
			NPMURL:  "https://www.npmjs.com/package/@radix-ui/react-slot",
			Copy:    `"@radix-ui/react-slot": "^1.0.2"`,
		},
		{
			Name:    "clsx",
			Version: "^2.1.0",
			NPMURL:  "https://www.npmjs.com/package/clsx",
			Copy:    `"clsx": "^2.1.0"`,
		},
	}
	if diff := cmp.Diff(wantDeps, info.Dependencies); diff != "" {
		t.Errorf("Dependencies mismatch (-want +got):\n%s", diff)
	}
	wantReg := []RegistryDependency{{
		Ref:        "bob/icon",
		Name:       "Icon",
		Username:   "bob",
		Slug:       "icon",
		InstallURL: "https://ui.example.com/api/r/bob/icon",
		ViewPath:   "/bob/icon",
	}}
	if diff := cmp.Diff(wantReg, info.RegistryDependencies); diff != "" {
		t.Errorf("RegistryDependencies mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"gone/away"}, info.Unresolved); diff != "" {
		t.Errorf("Unresolved mismatch (-want +got):\n%s", diff)
	}
	if info.InstallURL != "https://ui.example.com/api/r/ada/button" {
		t.Errorf("InstallURL = %q", info.InstallURL)
	}
	if info.License == nil || info.License.SPDX != "MIT" {
		t.Errorf("License = %+v", info.License)
	}
}

func TestInfoAuthorFallsBackToUsername(t *testing.T) {
	c := component("ghost", "thing")
	info, err := New(newFakeStore(c), "").Info(context.Background(), &c)
	if err != nil {
		t.Fatal(err)
	}
	if info.Author.Name != "ghost" {
		t.Errorf("Author.Name = %q, want username", info.Author.Name)
	}
}

const buttonSource = "export function Button() { return <button /> }\n"

func TestItemFromBlobStore(t *testing.T) {
	ctx := context.Background()
	disk, err := upload.NewDiskStore(t.TempDir(), "https://ui.example.com/files", 0)
	if err != nil {
		t.Fatal(err)
	}
	codeURL, err := disk.Upload(ctx, "u1/button-code.tsx", "text/plain", strings.NewReader(buttonSource))
	if err != nil {
		t.Fatal(err)
	}

	c := component("ada", "button", "bob/icon")
	c.CodeURL = codeURL
	c.Dependencies = map[string]string{"clsx": "^2.1.0"}

	r := New(newFakeStore(c), "https://ui.example.com", WithBlobs(disk))
	item, err := r.Item(ctx, &c)
	if err != nil {
		t.Fatalf("Item: %v", err)
	}

	want := &Item{
		Name:                 "button",
		Type:                 "registry:ui",
		Dependencies:         []string{"clsx@^2.1.0"},
		RegistryDependencies: []string{"https://ui.example.com/api/r/bob/icon"},
		Files: []File{{
			Path:     "button.tsx",
			Content:  buttonSource,
			Type:     "registry:ui",
			Checksum: checksum([]byte(buttonSource)),
		}},
	}
	if diff := cmp.Diff(want, item); diff != "" {
		t.Errorf("Item mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(item.Files[0].Checksum, "sha256:") || len(item.Files[0].Checksum) != len("sha256:")+16 {
		t.Errorf("Checksum = %q", item.Files[0].Checksum)
	}
}

func TestItemFromRemoteURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/button.tsx" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(buttonSource))
	}))
	defer srv.Close()

	c := component("ada", "button")
	c.CodeURL = srv.URL + "/button.tsx"
	r := New(newFakeStore(c), "", WithHTTPClient(srv.Client()))

	item, err := r.Item(context.Background(), &c)
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if item.Files[0].Content != buttonSource {
		t.Errorf("Content = %q", item.Files[0].Content)
	}

	c.CodeURL = srv.URL + "/missing.tsx"
	if _, err := r.Item(context.Background(), &c); !errors.HasCode(err, "E206") {
		t.Errorf("missing file err = %v, want E206", err)
	}

	c.CodeURL = ""
	if _, err := r.Item(context.Background(), &c); !errors.HasCode(err, "E206") {
		t.Errorf("empty URL err = %v, want E206", err)
	}
}
