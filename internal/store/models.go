package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrSlugTaken is returned when a user already has a component with the slug.
var ErrSlugTaken = errors.New("store: slug taken")

// User is a registry author.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewComponent is a component record ready to insert.
type NewComponent struct {
	UserID               string            `json:"userId"`
	Name                 string            `json:"name"`
	Slug                 string            `json:"slug"`
	ComponentNames       []string          `json:"componentNames"`
	DemoComponentName    string            `json:"demoComponentName"`
	CodeURL              string            `json:"codeUrl"`
	DemoCodeURL          string            `json:"demoCodeUrl"`
	Description          string            `json:"description,omitempty"`
	InstallURL           string            `json:"installUrl,omitempty"`
	Dependencies         map[string]string `json:"dependencies"`
	DemoDependencies     map[string]string `json:"demoDependencies"`
	InternalDependencies map[string]string `json:"internalDependencies"`
	RegistryDependencies []string          `json:"registryDependencies"`
	Public               bool              `json:"isPublic"`
	PreviewURL           string            `json:"previewUrl,omitempty"`
	License              string            `json:"license,omitempty"`
	WebsiteURL           string            `json:"websiteUrl,omitempty"`
	Registry             string            `json:"registry"`
}

// Component is a persisted component.
type Component struct {
	ID string `json:"id"`
	NewComponent
	Username  string    `json:"username"`
	Tags      []Tag     `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ref is the "username/slug" reference of the component.
func (c *Component) Ref() string {
	return c.Username + "/" + c.Slug
}

// Tag is a component label.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}
