package preview

import (
	"encoding/json"

	"github.com/vango-dev/uireg/internal/deps"
)

// Template is the sandbox template used for every preview.
const Template = "react-ts"

// DefaultExternalResources are loaded into every sandbox.
var DefaultExternalResources = []string{"https://cdn.tailwindcss.com"}

// SandpackConfig is the provider configuration handed to the browser-side
// sandbox.
type SandpackConfig struct {
	Template    string          `json:"template"`
	Files       Files           `json:"files"`
	CustomSetup CustomSetup     `json:"customSetup"`
	Options     SandpackOptions `json:"options"`
}

// CustomSetup carries the npm dependencies of the sandbox.
type CustomSetup struct {
	Dependencies deps.Manifest `json:"dependencies"`
	Entry        string        `json:"entry,omitempty"`
}

// SandpackOptions carries sandbox options.
type SandpackOptions struct {
	ExternalResources []string `json:"externalResources"`
}

// Sandpack renders b as a sandbox configuration.
func Sandpack(b *Bundle, externalResources []string) SandpackConfig {
	if externalResources == nil {
		externalResources = DefaultExternalResources
	}
	return SandpackConfig{
		Template:    Template,
		Files:       b.Files,
		CustomSetup: CustomSetup{Dependencies: b.Dependencies},
		Options:     SandpackOptions{ExternalResources: externalResources},
	}
}

// MarshalSandpack returns the JSON form of Sandpack(b, externalResources).
func MarshalSandpack(b *Bundle, externalResources []string) ([]byte, error) {
	return json.Marshal(Sandpack(b, externalResources))
}
