package search

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/uireg/internal/errors"
)

//go:embed sections.yaml
var defaultSections []byte

// Section is a titled group of navigation entries.
type Section struct {
	Title string `yaml:"title" json:"title"`
	Icon  string `yaml:"icon,omitempty" json:"icon,omitempty"`
	Items []Item `yaml:"items" json:"items"`
}

// Item is one navigation entry.
type Item struct {
	Title string `yaml:"title" json:"title"`
	Href  string `yaml:"href" json:"href"`
}

// Value is the palette value of the item.
func (i Item) Value() string {
	return "section-" + i.Title
}

// DefaultSections returns the built-in navigation.
func DefaultSections() []Section {
	sections, err := ParseSections(defaultSections)
	if err != nil {
		panic(fmt.Sprintf("search: built-in sections: %v", err))
	}
	return sections
}

// LoadSections reads navigation sections from a YAML file. An empty path
// yields the built-in sections.
func LoadSections(path string) ([]Section, error) {
	if path == "" {
		return DefaultSections(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E105").WithDetail(path).Wrap(err)
	}
	sections, err := ParseSections(data)
	if err != nil {
		return nil, errors.New("E105").WithDetail(path).Wrap(err)
	}
	return sections, nil
}

// ParseSections decodes YAML sections and checks that every item has a
// title and an href.
func ParseSections(data []byte) ([]Section, error) {
	var doc struct {
		Sections []Section `yaml:"sections"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	for _, s := range doc.Sections {
		if s.Title == "" {
			return nil, fmt.Errorf("section without title")
		}
		for _, it := range s.Items {
			if it.Title == "" || it.Href == "" {
				return nil, fmt.Errorf("section %q: item needs title and href", s.Title)
			}
		}
	}
	return doc.Sections, nil
}

// FilterSections keeps the items whose title contains query, ignoring
// case, and drops sections left empty. An empty query keeps everything.
func FilterSections(sections []Section, query string) []Section {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return sections
	}
	var out []Section
	for _, s := range sections {
		var items []Item
		for _, it := range s.Items {
			if strings.Contains(strings.ToLower(it.Title), q) {
				items = append(items, it)
			}
		}
		if len(items) > 0 {
			s.Items = items
			out = append(out, s)
		}
	}
	return out
}
