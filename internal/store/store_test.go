package store

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, id, username string) *User {
	t.Helper()
	u, err := s.UpsertUser(context.Background(), User{ID: id, Username: username, Name: username})
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	return u
}

func newButton(userID string) NewComponent {
	return NewComponent{
		UserID:               userID,
		Name:                 "Fancy Button",
		Slug:                 "button",
		ComponentNames:       []string{"Button"},
		DemoComponentName:    "ButtonDemo",
		CodeURL:              "http://files/button-code.tsx",
		DemoCodeURL:          "http://files/button-demo.tsx",
		Description:          "A shiny clickable button",
		Dependencies:         map[string]string{"clsx": "^2.0.0"},
		DemoDependencies:     map[string]string{},
		InternalDependencies: map[string]string{"@/components/Card": "bob/card"},
		RegistryDependencies: []string{"bob/card"},
		Public:               true,
	}
}

func TestMigrations(t *testing.T) {
	s := openTest(t)
	v, dirty, err := s.SchemaVersion()
	if err != nil || dirty || v != 1 {
		t.Errorf("SchemaVersion() = %d, %v, %v, want 1, false, nil", v, dirty, err)
	}
	if err := s.Migrate(); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
	if err := s.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate() after down error = %v", err)
	}
}

func TestUsers(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	seedUser(t, s, "u1", "alice")
	u, err := s.UpsertUser(ctx, User{ID: "u1", Username: "alice2"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "alice2" || u.Name != "alice" {
		t.Errorf("UpsertUser() = %+v, want renamed user keeping its name", u)
	}

	if _, err := s.UserByUsername(ctx, "alice2"); err != nil {
		t.Errorf("UserByUsername() error = %v", err)
	}
	if _, err := s.UserByUsername(ctx, "nobody"); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("UserByUsername(nobody) error = %v, want ErrNotFound", err)
	}
}

func TestInsertAndLoadComponent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "alice")

	ok, err := s.SlugAvailable(ctx, "u1", "button")
	if err != nil || !ok {
		t.Fatalf("SlugAvailable() = %v, %v", ok, err)
	}

	c, err := s.InsertComponent(ctx, newButton("u1"))
	if err != nil {
		t.Fatalf("InsertComponent() error = %v", err)
	}
	if c.ID == "" || c.Username != "alice" || c.Registry != "ui" || c.Ref() != "alice/button" {
		t.Errorf("InsertComponent() = %+v", c)
	}

	ok, _ = s.SlugAvailable(ctx, "u1", "button")
	if ok {
		t.Error("slug should be taken after insert")
	}
	ok, _ = s.SlugAvailable(ctx, "u2", "button")
	if !ok {
		t.Error("slugs are scoped per user")
	}

	if _, err := s.InsertComponent(ctx, newButton("u1")); !stderrors.Is(err, ErrSlugTaken) {
		t.Errorf("duplicate insert error = %v, want ErrSlugTaken", err)
	}

	got, err := s.ComponentBySlug(ctx, "alice", "button")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(c, got, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("ComponentBySlug mismatch (-insert +load):\n%s", diff)
	}

	if _, err := s.ComponentBySlug(ctx, "alice", "missing"); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("missing component error = %v", err)
	}
}

func TestTagsAndSearch(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "alice")

	c, err := s.InsertComponent(ctx, newButton("u1"))
	if err != nil {
		t.Fatal(err)
	}
	hidden := newButton("u1")
	hidden.Slug = "secret-button"
	hidden.Public = false
	if _, err := s.InsertComponent(ctx, hidden); err != nil {
		t.Fatal(err)
	}

	if err := s.AddTags(ctx, c.ID, []string{"Forms", "forms", " Interactive ", "!!"}); err != nil {
		t.Fatalf("AddTags() error = %v", err)
	}
	tags, err := s.ListTags(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 2 || tags[0].Slug != "forms" || tags[1].Slug != "interactive" {
		t.Errorf("ListTags() = %+v", tags)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"button", 1},
		{"shin", 1},
		{"interactive", 1},
		{"fancy button", 1},
		{"card", 0},
		{`"); DROP TABLE components; --`, 0},
		{"", 0},
	}
	for _, tt := range tests {
		got, err := s.Search(ctx, tt.query)
		if err != nil {
			t.Errorf("Search(%q) error = %v", tt.query, err)
			continue
		}
		if len(got) != tt.want {
			t.Errorf("Search(%q) = %d results, want %d", tt.query, len(got), tt.want)
		}
	}

	got, _ := s.Search(ctx, "button")
	if len(got) == 1 && (got[0].Username != "alice" || got[0].Value() != "component-u1/button") {
		t.Errorf("Search result = %+v", got[0])
	}
}

func TestComponentsByRefs(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "alice")
	seedUser(t, s, "u2", "bob")

	if _, err := s.InsertComponent(ctx, newButton("u1")); err != nil {
		t.Fatal(err)
	}
	card := newButton("u2")
	card.Slug = "card"
	if _, err := s.InsertComponent(ctx, card); err != nil {
		t.Fatal(err)
	}

	got, err := s.ComponentsByRefs(ctx, []string{"bob/card", "nobody/x", "bad", "alice/button", "bob/card"})
	if err != nil {
		t.Fatal(err)
	}
	var refs []string
	for _, c := range got {
		refs = append(refs, c.Ref())
	}
	if diff := cmp.Diff([]string{"bob/card", "alice/button"}, refs); diff != "" {
		t.Errorf("ComponentsByRefs mismatch (-want +got):\n%s", diff)
	}
}
