package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/goliatone/go-casework"
)

// Named pairs a hook with the reference it was registered under.
type Named[F any] struct {
	Name string
	Fn   F
}

// Hooks stores named hook functions referenced from event definitions.
type Hooks struct {
	preStart   map[string]casework.PreStartHook
	guards     map[string]casework.Guard
	validators map[string]casework.ValidateHook
	commits    map[string]casework.CommitHook
	resolvers  map[string]casework.TargetResolver
	committed  map[string]casework.CommittedHook
	namespacer func(string, string) string
}

// NewHooks creates an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{
		preStart:   make(map[string]casework.PreStartHook),
		guards:     make(map[string]casework.Guard),
		validators: make(map[string]casework.ValidateHook),
		commits:    make(map[string]casework.CommitHook),
		resolvers:  make(map[string]casework.TargetResolver),
		committed:  make(map[string]casework.CommittedHook),
		namespacer: defaultNamespace,
	}
}

// SetNamespacer customizes how hook references are namespaced.
func (h *Hooks) SetNamespacer(fn func(string, string) string) {
	if fn != nil {
		h.namespacer = fn
	}
}

func (h *Hooks) RegisterPreStart(name string, fn casework.PreStartHook) error {
	return register(h, h.preStart, "pre-start hook", name, fn)
}

func (h *Hooks) RegisterGuard(name string, fn casework.Guard) error {
	return register(h, h.guards, "guard", name, fn)
}

func (h *Hooks) RegisterValidator(name string, fn casework.ValidateHook) error {
	return register(h, h.validators, "validator", name, fn)
}

func (h *Hooks) RegisterCommit(name string, fn casework.CommitHook) error {
	return register(h, h.commits, "commit hook", name, fn)
}

func (h *Hooks) RegisterResolver(name string, fn casework.TargetResolver) error {
	return register(h, h.resolvers, "target resolver", name, fn)
}

func (h *Hooks) RegisterCommitted(name string, fn casework.CommittedHook) error {
	return register(h, h.committed, "committed hook", name, fn)
}

// Names lists every registered reference, sorted.
func (h *Hooks) Names() []string {
	if h == nil {
		return nil
	}
	var out []string
	out = appendKeys(out, h.preStart)
	out = appendKeys(out, h.guards)
	out = appendKeys(out, h.validators)
	out = appendKeys(out, h.commits)
	out = appendKeys(out, h.resolvers)
	out = appendKeys(out, h.committed)
	sort.Strings(out)
	return out
}

func register[F any](h *Hooks, into map[string]F, kind, name string, fn F) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%s name required", kind)
	}
	if v := reflect.ValueOf(fn); !v.IsValid() || (v.Kind() == reflect.Func && v.IsNil()) {
		return fmt.Errorf("%s %s is nil", kind, name)
	}
	key := name
	if h.namespacer != nil {
		key = h.namespacer("", name)
	}
	if _, exists := into[key]; exists {
		return fmt.Errorf("%s %s already registered", kind, key)
	}
	into[key] = fn
	return nil
}

func lookupAll[F any](from map[string]F, kind string, refs []string) ([]Named[F], error) {
	if len(refs) == 0 {
		return nil, nil
	}
	out := make([]Named[F], 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		fn, ok := from[ref]
		if !ok {
			return nil, fmt.Errorf("unresolved %s %q", kind, ref)
		}
		out = append(out, Named[F]{Name: ref, Fn: fn})
	}
	return out, nil
}

func appendKeys[F any](out []string, m map[string]F) []string {
	for k := range m {
		out = append(out, k)
	}
	return out
}

func defaultNamespace(namespace, name string) string {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return name
	}
	return namespace + "::" + name
}
