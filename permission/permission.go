// Package permission maps (event, role) pairs to access levels.
package permission

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-casework"
)

// Access is the level of access a role holds on an event.
type Access int

const (
	None Access = iota
	HistoryOnly
	ReadOnly
	ReadWriteCreate
	ReadWriteCreateDelete
)

var accessNames = map[Access]string{
	None:                  "None",
	HistoryOnly:           "HistoryOnly",
	ReadOnly:              "R",
	ReadWriteCreate:       "CRU",
	ReadWriteCreateDelete: "CRUD",
}

func (a Access) String() string {
	if name, ok := accessNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Access(%d)", int(a))
}

// ParseAccess accepts the short forms used in grant tables (R, CRU, CRUD, history).
func ParseAccess(value string) (Access, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "NONE":
		return None, nil
	case "R", "READ", "READONLY":
		return ReadOnly, nil
	case "CRU", "RU", "READWRITECREATE":
		return ReadWriteCreate, nil
	case "CRUD", "READWRITECREATEDELETE":
		return ReadWriteCreateDelete, nil
	case "H", "HISTORY", "HISTORYONLY":
		return HistoryOnly, nil
	default:
		return None, fmt.Errorf("unknown access level %q", value)
	}
}

// UnmarshalText lets grant tables decode access levels by name.
func (a *Access) UnmarshalText(text []byte) error {
	parsed, err := ParseAccess(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Access) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Satisfies reports whether a meets the required minimum. HistoryOnly never
// satisfies an executable requirement.
func (a Access) Satisfies(required Access) bool {
	if a == HistoryOnly {
		return required == HistoryOnly
	}
	return a >= required
}

// CanExecute reports whether a allows invoking an event.
func (a Access) CanExecute() bool {
	return a >= ReadWriteCreate
}

// CanViewHistory reports whether a allows reading past executions.
func (a Access) CanViewHistory() bool {
	return a != None
}

// Grant is a single row of the permission table.
type Grant struct {
	Event  string        `json:"event" yaml:"event"`
	Role   casework.Role `json:"role" yaml:"role"`
	Access Access        `json:"access" yaml:"access"`
}

// Table is an immutable (event, role) lookup.
type Table struct {
	grants map[string]map[casework.Role]Access
}

// Builder accumulates grants before freezing them into a Table.
type Builder struct {
	mu     sync.Mutex
	grants map[string]map[casework.Role]Access
	built  bool
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{grants: make(map[string]map[casework.Role]Access)}
}

// Grant records access for role on event. The highest grant wins on repeats,
// except that an explicit HistoryOnly never upgrades an executable grant.
func (b *Builder) Grant(event string, role casework.Role, access Access) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return fmt.Errorf("grant requires an event id")
	}
	if strings.TrimSpace(string(role)) == "" {
		return fmt.Errorf("grant for %s requires a role", event)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return fmt.Errorf("permission table already built")
	}
	roles, ok := b.grants[event]
	if !ok {
		roles = make(map[casework.Role]Access)
		b.grants[event] = roles
	}
	if current, exists := roles[role]; exists && current >= access {
		return nil
	}
	roles[role] = access
	return nil
}

// GrantAll records the same access for several roles.
func (b *Builder) GrantAll(event string, access Access, roles ...casework.Role) error {
	for _, role := range roles {
		if err := b.Grant(event, role, access); err != nil {
			return err
		}
	}
	return nil
}

// Build freezes the builder. Further grants fail.
func (b *Builder) Build() *Table {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.built = true
	out := make(map[string]map[casework.Role]Access, len(b.grants))
	for event, roles := range b.grants {
		cp := make(map[casework.Role]Access, len(roles))
		for role, access := range roles {
			cp[role] = access
		}
		out[event] = cp
	}
	return &Table{grants: out}
}

// NewTable builds a table from grant rows.
func NewTable(grants ...Grant) (*Table, error) {
	b := NewBuilder()
	for _, g := range grants {
		if err := b.Grant(g.Event, g.Role, g.Access); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// For returns the access role holds on event. Unknown pairs are None.
func (t *Table) For(event string, role casework.Role) Access {
	if t == nil {
		return None
	}
	roles, ok := t.grants[strings.TrimSpace(event)]
	if !ok {
		return None
	}
	return roles[role]
}

// Events lists the events role holds at least min access on.
func (t *Table) Events(role casework.Role, required Access) []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0)
	for event, roles := range t.grants {
		if access, ok := roles[role]; ok && access.Satisfies(required) {
			out = append(out, event)
		}
	}
	sort.Strings(out)
	return out
}

// Grants returns the rows for an event.
func (t *Table) Grants(event string) []Grant {
	if t == nil {
		return nil
	}
	roles := t.grants[event]
	out := make([]Grant, 0, len(roles))
	for role, access := range roles {
		out = append(out, Grant{Event: event, Role: role, Access: access})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}
