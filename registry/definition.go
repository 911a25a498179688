package registry

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// AnyStage is the source wildcard for events valid from every stage.
const AnyStage = "*"

// Catalogue is the declarative event table. PreStart hooks run ahead of each
// event's own pre-start hooks.
type Catalogue struct {
	RoleGroups map[string][]string `json:"role_groups,omitempty" yaml:"role_groups,omitempty"`
	PreStart   []string            `json:"pre_start,omitempty" yaml:"pre_start,omitempty"`
	Events     []Definition        `json:"events" yaml:"events"`
}

// Definition declares one event. Data only; behavior lives in hooks referenced by name.
type Definition struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	From        []string          `json:"from,omitempty" yaml:"from,omitempty"`
	Creates     bool              `json:"creates,omitempty" yaml:"creates,omitempty"`
	To          string            `json:"to,omitempty" yaml:"to,omitempty"`
	Resolve     string            `json:"resolve,omitempty" yaml:"resolve,omitempty"`
	Guards      []string          `json:"guards,omitempty" yaml:"guards,omitempty"`
	PreStart    []string          `json:"pre_start,omitempty" yaml:"pre_start,omitempty"`
	Validate    []string          `json:"validate,omitempty" yaml:"validate,omitempty"`
	Commit      []string          `json:"commit,omitempty" yaml:"commit,omitempty"`
	Committed   []string          `json:"committed,omitempty" yaml:"committed,omitempty"`
	MinAccess   string            `json:"min_access,omitempty" yaml:"min_access,omitempty"`
	Grants      map[string]string `json:"grants,omitempty" yaml:"grants,omitempty"`
}

// ParseCatalogue decodes a YAML (or JSON) catalogue and validates its shape.
func ParseCatalogue(data []byte) (Catalogue, error) {
	var cat Catalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return cat, err
	}
	return cat, cat.Validate()
}

// Validate checks structural rules that do not need the hook registry.
func (c Catalogue) Validate() error {
	if len(c.Events) == 0 {
		return fmt.Errorf("catalogue requires at least one event")
	}
	seen := make(map[string]struct{}, len(c.Events))
	for idx, def := range c.Events {
		id := strings.TrimSpace(def.ID)
		if id == "" {
			return fmt.Errorf("event %d: id required", idx)
		}
		if _, exists := seen[id]; exists {
			return fmt.Errorf("event %s: duplicate id", id)
		}
		seen[id] = struct{}{}
		if err := def.check(); err != nil {
			return fmt.Errorf("event %s: %w", id, err)
		}
	}
	for name, roles := range c.RoleGroups {
		if len(roles) == 0 {
			return fmt.Errorf("role group %s is empty", name)
		}
	}
	return nil
}

// check validates a single definition.
func (d Definition) check() error {
	if d.Creates && len(d.From) > 0 {
		return fmt.Errorf("creating events cannot declare source stages")
	}
	if !d.Creates && len(d.From) == 0 {
		return fmt.Errorf("source stages required")
	}
	if d.Creates && strings.TrimSpace(d.To) == "" {
		return fmt.Errorf("creating events require a fixed target")
	}
	if strings.TrimSpace(d.To) != "" && strings.TrimSpace(d.Resolve) != "" {
		return fmt.Errorf("fixed target and resolver are mutually exclusive")
	}
	for _, from := range d.From {
		if strings.TrimSpace(from) == AnyStage && len(d.From) > 1 {
			return fmt.Errorf("%q cannot be combined with explicit stages", AnyStage)
		}
	}
	return nil
}

// AnySource reports whether the definition applies from every stage.
func (d Definition) AnySource() bool {
	return len(d.From) == 1 && strings.TrimSpace(d.From[0]) == AnyStage
}
