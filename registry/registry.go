// Package registry compiles declarative event definitions into runtime events.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-casework"
	"github.com/goliatone/go-casework/permission"
)

// Event is a compiled, immutable event definition.
type Event struct {
	ID          string
	Name        string
	Description string
	AnySource   bool
	Creates     bool
	From        []casework.Stage
	To          casework.Stage
	Resolve     *Named[casework.TargetResolver]
	Guards      []Named[casework.Guard]
	PreStart    []Named[casework.PreStartHook]
	Validate    []Named[casework.ValidateHook]
	Commit      []Named[casework.CommitHook]
	Committed   []Named[casework.CommittedHook]
	MinAccess   permission.Access

	from map[casework.Stage]struct{}
}

// AllowsFrom reports whether the event may run on a case in stage.
func (e *Event) AllowsFrom(stage casework.Stage) bool {
	if e == nil {
		return false
	}
	if e.Creates {
		return stage == casework.StageNone
	}
	if e.AnySource {
		return stage.Valid()
	}
	_, ok := e.from[stage]
	return ok
}

// FixedTarget reports whether the event declares a fixed target stage.
func (e *Event) FixedTarget() bool {
	return e != nil && e.To != casework.StageNone
}

// Registry is the read-only set of compiled events.
type Registry struct {
	events map[string]*Event
	order  []string
}

// Compile resolves every hook reference and builds the registry and permission table.
func Compile(cat Catalogue, hooks *Hooks) (*Registry, *permission.Table, error) {
	if err := cat.Validate(); err != nil {
		return nil, nil, err
	}
	if hooks == nil {
		hooks = NewHooks()
	}
	groups, err := compileRoleGroups(cat.RoleGroups)
	if err != nil {
		return nil, nil, err
	}

	reg := &Registry{
		events: make(map[string]*Event, len(cat.Events)),
		order:  make([]string, 0, len(cat.Events)),
	}
	perms := permission.NewBuilder()
	for _, def := range cat.Events {
		evt, err := compileEvent(def, cat.PreStart, hooks)
		if err != nil {
			return nil, nil, fmt.Errorf("event %s: %w", def.ID, err)
		}
		if err := compileGrants(perms, evt.ID, def.Grants, groups); err != nil {
			return nil, nil, fmt.Errorf("event %s: %w", def.ID, err)
		}
		reg.events[evt.ID] = evt
		reg.order = append(reg.order, evt.ID)
	}
	return reg, perms.Build(), nil
}

func compileEvent(def Definition, shared []string, hooks *Hooks) (*Event, error) {
	evt := &Event{
		ID:          strings.TrimSpace(def.ID),
		Name:        strings.TrimSpace(def.Name),
		Description: strings.TrimSpace(def.Description),
		AnySource:   def.AnySource(),
		Creates:     def.Creates,
		MinAccess:   permission.ReadWriteCreate,
		from:        make(map[casework.Stage]struct{}, len(def.From)),
	}
	if evt.Name == "" {
		evt.Name = evt.ID
	}
	if !evt.AnySource {
		for _, raw := range def.From {
			stage, err := casework.ParseStage(raw)
			if err != nil {
				return nil, err
			}
			if _, dup := evt.from[stage]; dup {
				return nil, fmt.Errorf("duplicate source stage %s", stage)
			}
			evt.from[stage] = struct{}{}
			evt.From = append(evt.From, stage)
		}
	}
	if to := strings.TrimSpace(def.To); to != "" {
		stage, err := casework.ParseStage(to)
		if err != nil {
			return nil, err
		}
		evt.To = stage
	}
	if ref := strings.TrimSpace(def.Resolve); ref != "" {
		fn, ok := hooks.resolvers[ref]
		if !ok {
			return nil, fmt.Errorf("unresolved target resolver %q", ref)
		}
		evt.Resolve = &Named[casework.TargetResolver]{Name: ref, Fn: fn}
	}
	if minAccess := strings.TrimSpace(def.MinAccess); minAccess != "" {
		access, err := permission.ParseAccess(minAccess)
		if err != nil {
			return nil, err
		}
		if !access.CanExecute() {
			return nil, fmt.Errorf("minimum access %s cannot execute events", access)
		}
		evt.MinAccess = access
	}

	var err error
	if evt.Guards, err = lookupAll(hooks.guards, "guard", def.Guards); err != nil {
		return nil, err
	}
	preStart := append(append([]string(nil), shared...), def.PreStart...)
	if evt.PreStart, err = lookupAll(hooks.preStart, "pre-start hook", preStart); err != nil {
		return nil, err
	}
	if evt.Validate, err = lookupAll(hooks.validators, "validator", def.Validate); err != nil {
		return nil, err
	}
	if evt.Commit, err = lookupAll(hooks.commits, "commit hook", def.Commit); err != nil {
		return nil, err
	}
	if evt.Committed, err = lookupAll(hooks.committed, "committed hook", def.Committed); err != nil {
		return nil, err
	}
	return evt, nil
}

func compileRoleGroups(raw map[string][]string) (map[string][]casework.Role, error) {
	groups := make(map[string][]casework.Role, len(raw))
	for name, members := range raw {
		roles := make([]casework.Role, 0, len(members))
		for _, m := range members {
			role, err := casework.ParseRole(m)
			if err != nil {
				return nil, fmt.Errorf("role group %s: %w", name, err)
			}
			roles = append(roles, role)
		}
		groups[strings.TrimSpace(name)] = roles
	}
	return groups, nil
}

func compileGrants(perms *permission.Builder, event string, grants map[string]string, groups map[string][]casework.Role) error {
	keys := make([]string, 0, len(grants))
	for k := range grants {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		access, err := permission.ParseAccess(grants[key])
		if err != nil {
			return fmt.Errorf("grant %s: %w", key, err)
		}
		if roles, ok := groups[strings.TrimSpace(key)]; ok {
			if err := perms.GrantAll(event, access, roles...); err != nil {
				return err
			}
			continue
		}
		role, err := casework.ParseRole(key)
		if err != nil {
			return fmt.Errorf("grant %s: %w", key, err)
		}
		if err := perms.Grant(event, role, access); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the compiled event for id.
func (r *Registry) Lookup(id string) (*Event, bool) {
	if r == nil {
		return nil, false
	}
	evt, ok := r.events[strings.TrimSpace(id)]
	return evt, ok
}

// IDs returns event ids in declaration order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// From lists events that may run from stage, in declaration order.
func (r *Registry) From(stage casework.Stage) []*Event {
	if r == nil {
		return nil
	}
	out := make([]*Event, 0)
	for _, id := range r.order {
		if evt := r.events[id]; evt.AllowsFrom(stage) {
			out = append(out, evt)
		}
	}
	return out
}
