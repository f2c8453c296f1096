// ABOUTME: Ordered plugin pipeline run around every conversation turn.
// ABOUTME: Plugins are validated once at registration; a failing plugin is logged and skipped (fail-open).

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/2389/chat-relay/internal/contextstore"
)

// ErrPluginInvalid indicates a plugin failed registration validation.
var ErrPluginInvalid = errors.New("invalid plugin")

// Hook is a named extension point in turn processing.
type Hook string

// Hooks. Abort runs only for a turn that failed after pre-process, so a
// plugin can release what it claimed for that event.
const (
	PreProcess  Hook = "pre-process"
	PostProcess Hook = "post-process"
	Abort       Hook = "abort"
)

// Valid reports whether h is a recognized hook.
func (h Hook) Valid() bool {
	return h == PreProcess || h == PostProcess || h == Abort
}

// Plugin transforms or vetoes the bag at the hooks it declares.
type Plugin interface {
	Name() string
	Hooks() []Hook
	Execute(ctx context.Context, hook Hook, bag Bag) (Bag, error)
}

// ExecFunc is the function form of Plugin.Execute.
type ExecFunc func(ctx context.Context, hook Hook, bag Bag) (Bag, error)

// Definition adapts a name, hook list and function into a Plugin.
type Definition struct {
	PluginName  string
	PluginHooks []Hook
	Exec        ExecFunc
}

// Name implements Plugin.
func (d Definition) Name() string { return d.PluginName }

// Hooks implements Plugin.
func (d Definition) Hooks() []Hook { return d.PluginHooks }

// Execute implements Plugin.
func (d Definition) Execute(ctx context.Context, hook Hook, bag Bag) (Bag, error) {
	return d.Exec(ctx, hook, bag)
}

type registered struct {
	plugin Plugin
	hooks  map[Hook]bool
}

// Pipeline holds registered plugins in registration order.
type Pipeline struct {
	mu      sync.RWMutex
	plugins []registered
	names   map[string]bool
	store   contextstore.Store
	logger  *slog.Logger
}

// New creates an empty Pipeline. Each plugin sees store through a namespace
// named after the plugin. A nil store gives plugins an inert namespace.
func New(store contextstore.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		names:  make(map[string]bool),
		store:  store,
		logger: logger.With("component", "pipeline"),
	}
}

// Register validates and appends p. An invalid plugin is logged and never
// runs; the returned error wraps ErrPluginInvalid and is not meant to be fatal.
func (p *Pipeline) Register(pl Plugin) error {
	hooks, err := p.validate(pl)
	if err != nil {
		name := ""
		if pl != nil {
			name = pl.Name()
		}
		p.logger.Warn("plugin rejected", "plugin", name, "error", err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.names[pl.Name()] {
		err := fmt.Errorf("%w: plugin %q already registered", ErrPluginInvalid, pl.Name())
		p.logger.Warn("plugin rejected", "plugin", pl.Name(), "error", err)
		return err
	}

	p.names[pl.Name()] = true
	p.plugins = append(p.plugins, registered{plugin: pl, hooks: hooks})
	p.logger.Info("plugin registered", "plugin", pl.Name(), "hooks", pl.Hooks())
	return nil
}

func (p *Pipeline) validate(pl Plugin) (map[Hook]bool, error) {
	if pl == nil {
		return nil, fmt.Errorf("%w: nil plugin", ErrPluginInvalid)
	}
	if d, ok := pl.(Definition); ok && d.Exec == nil {
		return nil, fmt.Errorf("%w: plugin %q has no execute function", ErrPluginInvalid, d.PluginName)
	}
	if pl.Name() == "" {
		return nil, fmt.Errorf("%w: name is required", ErrPluginInvalid)
	}

	declared := pl.Hooks()
	if len(declared) == 0 {
		return nil, fmt.Errorf("%w: plugin %q declares no hooks", ErrPluginInvalid, pl.Name())
	}
	hooks := make(map[Hook]bool, len(declared))
	for _, h := range declared {
		if !h.Valid() {
			return nil, fmt.Errorf("%w: plugin %q declares unknown hook %q", ErrPluginInvalid, pl.Name(), h)
		}
		if hooks[h] {
			return nil, fmt.Errorf("%w: plugin %q declares hook %q twice", ErrPluginInvalid, pl.Name(), h)
		}
		hooks[h] = true
	}
	return hooks, nil
}

// Names returns registered plugin names in registration order.
func (p *Pipeline) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.plugins))
	for i, r := range p.plugins {
		names[i] = r.plugin.Name()
	}
	return names
}

// Run passes bag through every plugin interested in hook, in registration
// order. When a plugin errors or panics its changes are discarded and the
// bag as it stood before that attempt is carried forward. A veto stops the
// remaining plugins for this hook, as does a cancelled context.
func (p *Pipeline) Run(ctx context.Context, hook Hook, bag Bag) Bag {
	p.mu.RLock()
	plugins := make([]registered, len(p.plugins))
	copy(plugins, p.plugins)
	p.mu.RUnlock()

	callerNS := bag.Context
	for _, r := range plugins {
		if !r.hooks[hook] {
			continue
		}
		if bag.Veto != nil {
			break
		}
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline interrupted", "hook", hook, "plugin", r.plugin.Name(), "error", err)
			break
		}

		attempt := bag.Clone()
		attempt.Context = contextstore.Scope(p.store, r.plugin.Name())

		out, err := p.execute(ctx, r.plugin, hook, attempt)
		if err != nil {
			p.logger.Error("plugin failed",
				"plugin", r.plugin.Name(),
				"hook", hook,
				"error", err,
			)
			continue
		}
		bag = out
		if bag.Veto != nil && bag.Veto.Plugin == "" {
			bag.Veto.Plugin = r.plugin.Name()
		}
	}
	bag.Context = callerNS
	return bag
}

// execute runs one plugin, converting a panic into an error.
func (p *Pipeline) execute(ctx context.Context, pl Plugin, hook Hook, bag Bag) (out Bag, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Debug("plugin panic stack", "plugin", pl.Name(), "stack", string(debug.Stack()))
			err = fmt.Errorf("plugin panicked: %v", rec)
		}
	}()
	return pl.Execute(ctx, hook, bag)
}
