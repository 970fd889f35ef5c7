// Package template defines regulatory report templates: the ordered set of
// sections, the agent that owns each one, and the dependency order between
// them. Dependency order is data, not logic; a template that declares a
// cycle is a configuration error and fails at load time.
package template

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SectionSpec describes one labeled chapter of the report.
type SectionSpec struct {
	ID              string   `yaml:"id"`
	Number          int      `yaml:"number"`
	Name            string   `yaml:"name"`
	Agent           string   `yaml:"agent"`
	Purpose         string   `yaml:"purpose,omitempty"`
	RequiredContent []string `yaml:"requiredContent,omitempty"`
	WordLimit       int      `yaml:"wordLimit,omitempty"`
	DependsOn       []string `yaml:"dependsOn,omitempty"`
}

// Template is one regulatory report layout. Sections appear in generation
// order; dependencies may only point at other sections of the template.
type Template struct {
	ID              string        `yaml:"id"`
	Name            string        `yaml:"name"`
	Jurisdiction    string        `yaml:"jurisdiction"`
	RegulatoryBasis string        `yaml:"regulatoryBasis"`
	Sections        []SectionSpec `yaml:"sections"`
}

// Load reads a template from a YAML file and validates it.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("template: read %s: %w", path, err)
	}
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("template: parse %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("template: %s: %w", path, err)
	}
	return &t, nil
}

// Section returns the definition for a section ID.
func (t *Template) Section(id string) (SectionSpec, bool) {
	for _, s := range t.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return SectionSpec{}, false
}

// SectionIDs returns section IDs in template order.
func (t *Template) SectionIDs() []string {
	ids := make([]string, len(t.Sections))
	for i, s := range t.Sections {
		ids[i] = s.ID
	}
	return ids
}

// Validate checks structural soundness: non-empty IDs and agents, unique
// IDs, dependencies that reference known sections, and an acyclic
// dependency order (Kahn's algorithm).
func (t *Template) Validate() error {
	if len(t.Sections) == 0 {
		return fmt.Errorf("template %q has no sections", t.ID)
	}

	known := make(map[string]bool, len(t.Sections))
	for _, s := range t.Sections {
		if s.ID == "" {
			return fmt.Errorf("section %q has an empty id", s.Name)
		}
		if s.Agent == "" {
			return fmt.Errorf("section %s has no assigned agent", s.ID)
		}
		if known[s.ID] {
			return fmt.Errorf("duplicate section id %s", s.ID)
		}
		known[s.ID] = true
	}

	indegree := make(map[string]int, len(t.Sections))
	dependents := make(map[string][]string, len(t.Sections))
	for _, s := range t.Sections {
		for _, dep := range s.DependsOn {
			if dep == s.ID {
				return fmt.Errorf("section %s depends on itself", s.ID)
			}
			if !known[dep] {
				return fmt.Errorf("section %s depends on unknown section %s", s.ID, dep)
			}
			indegree[s.ID]++
			dependents[dep] = append(dependents[dep], s.ID)
		}
	}

	// Kahn: repeatedly remove zero-indegree sections; leftovers are a cycle.
	var queue []string
	for _, s := range t.Sections {
		if indegree[s.ID] == 0 {
			queue = append(queue, s.ID)
		}
	}
	removed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		removed++
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if removed != len(t.Sections) {
		var cyclic []string
		for id, d := range indegree {
			if d > 0 {
				cyclic = append(cyclic, id)
			}
		}
		return fmt.Errorf("dependency cycle among sections %v", cyclic)
	}

	return nil
}
