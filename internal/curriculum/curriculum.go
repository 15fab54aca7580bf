// Package curriculum holds the ordered catalog of build projects.
package curriculum

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed projects.yaml
var defaultCatalog []byte

// ErrUnknownProject is returned for a project ID not in the catalog.
var ErrUnknownProject = errors.New("unknown project")

// Check is a command that must exit 0 before a project counts as shipped.
type Check struct {
	Name    string `yaml:"name" json:"name"`
	Command string `yaml:"command" json:"command"`
}

// Project is one step of the build path.
type Project struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Build        string   `yaml:"build" json:"build"`
	Why          string   `yaml:"why" json:"why"`
	ShipsAs      string   `yaml:"ships_as" json:"ships_as"`
	Time         string   `yaml:"time" json:"time"`
	Skills       []string `yaml:"skills" json:"skills"`
	Requirements []string `yaml:"requirements" json:"requirements"`
	Checks       []Check  `yaml:"checks" json:"checks"`
}

// Catalog is the ordered list of projects.
type Catalog struct {
	Projects []Project `yaml:"projects"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Projects) == 0 {
		return nil, fmt.Errorf("parse catalog: no projects")
	}
	seen := make(map[string]bool, len(c.Projects))
	for i, p := range c.Projects {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("parse catalog: project %d needs an id and a name", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("parse catalog: duplicate project %s", p.ID)
		}
		seen[p.ID] = true
		for _, ch := range p.Checks {
			if ch.Name == "" || ch.Command == "" {
				return nil, fmt.Errorf("parse catalog: project %s has a check without name or command", p.ID)
			}
		}
	}
	return &c, nil
}

// First returns the opening project.
func (c *Catalog) First() Project {
	return c.Projects[0]
}

// Get looks up a project by ID.
func (c *Catalog) Get(id string) (Project, error) {
	for _, p := range c.Projects {
		if p.ID == id {
			return p, nil
		}
	}
	return Project{}, fmt.Errorf("%w: %s", ErrUnknownProject, id)
}

// Next returns the project after id. ok is false when id is the last one.
func (c *Catalog) Next(id string) (next Project, ok bool, err error) {
	for i, p := range c.Projects {
		if p.ID != id {
			continue
		}
		if i+1 < len(c.Projects) {
			return c.Projects[i+1], true, nil
		}
		return Project{}, false, nil
	}
	return Project{}, false, fmt.Errorf("%w: %s", ErrUnknownProject, id)
}

// Position returns the 1-based index of id, or 0 when unknown.
func (c *Catalog) Position(id string) int {
	for i, p := range c.Projects {
		if p.ID == id {
			return i + 1
		}
	}
	return 0
}
