package compose

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Project is the subset of a compose file the toolkit inspects.
type Project struct {
	Services map[string]Service `yaml:"services"`
}

type Service struct {
	Image       string         `yaml:"image"`
	Command     any            `yaml:"command"`
	Healthcheck map[string]any `yaml:"healthcheck"`
	DependsOn   any            `yaml:"depends_on"`
}

// LoadProject parses the compose file at path. Anchors and merge keys, as
// used by the stock Airflow compose file, are resolved by the decoder.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var project Project
	if err := yaml.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse compose file %s: %w", path, err)
	}
	return &project, nil
}

// HasService reports whether name is declared.
func (p *Project) HasService(name string) bool {
	_, ok := p.Services[name]
	return ok
}

// ServiceNames returns the declared services in sorted order.
func (p *Project) ServiceNames() []string {
	names := make([]string, 0, len(p.Services))
	for name := range p.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
