// Package events declares the case event catalogue and the hooks it references.
package events

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/goliatone/go-casework"
	"github.com/goliatone/go-casework/config"
	"github.com/goliatone/go-casework/notify"
	"github.com/goliatone/go-casework/permission"
	"github.com/goliatone/go-casework/registry"
)

//go:embed catalogue.yaml
var catalogueYAML []byte

// Notifier receives the notification triggers raised after commit.
type Notifier interface {
	Notify(ctx context.Context, req notify.Request) error
}

// Deps are the collaborators the hooks use.
type Deps struct {
	Policy   config.Policy
	Notifier Notifier
	Renderer notify.DocumentRenderer
	Logger   casework.Logger
}

func (d Deps) normalize() Deps {
	if d.Policy == (config.Policy{}) {
		d.Policy = config.DefaultPolicy()
	}
	d.Logger = casework.NormalizeLogger(d.Logger)
	return d
}

// Catalogue returns the embedded event table.
func Catalogue() (registry.Catalogue, error) {
	return registry.ParseCatalogue(catalogueYAML)
}

// Hooks returns a hook registry holding every hook the catalogue references.
func Hooks(deps Deps) (*registry.Hooks, error) {
	h := registry.NewHooks()
	if err := register(h, newHookSet(deps.normalize())); err != nil {
		return nil, err
	}
	return h, nil
}

// New compiles the embedded catalogue against the hooks built from deps.
func New(deps Deps) (*registry.Registry, *permission.Table, error) {
	cat, err := Catalogue()
	if err != nil {
		return nil, nil, fmt.Errorf("parse catalogue: %w", err)
	}
	hooks, err := Hooks(deps)
	if err != nil {
		return nil, nil, fmt.Errorf("register hooks: %w", err)
	}
	return registry.Compile(cat, hooks)
}
