package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/coda-editor/extend/internal/log"
	"github.com/coda-editor/extend/internal/plugin/luart"
	"github.com/coda-editor/extend/internal/plugin/security"
)

// HostBinder wires the host API surface into a freshly constructed plugin
// runtime, gated by the plugin's permission checker.
type HostBinder interface {
	Bind(rt *luart.Runtime, checker *security.Checker)
}

// Instance is a live activated plugin. Instances exist only inside the
// engine's active registry and are destroyed on deactivation.
type Instance struct {
	plugin      *Plugin
	runtime     *luart.Runtime
	checker     *security.Checker
	activatedAt time.Time
}

// Plugin returns the owning plugin record.
func (i *Instance) Plugin() *Plugin {
	return i.plugin
}

// ActivatedAt returns the time the instance finished activation.
func (i *Instance) ActivatedAt() time.Time {
	return i.activatedAt
}

// EventType is the kind of engine lifecycle event.
type EventType int

const (
	// EventActivated is emitted when a plugin reaches the Active state.
	EventActivated EventType = iota
	// EventDeactivated is emitted when a plugin returns to Inactive.
	EventDeactivated
	// EventActivationFailed is emitted when activation reverts on error.
	EventActivationFailed
)

// String returns a string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventActivated:
		return "activated"
	case EventDeactivated:
		return "deactivated"
	case EventActivationFailed:
		return "activation-failed"
	default:
		return "unknown"
	}
}

// Event is an engine lifecycle notification.
type Event struct {
	Type     EventType
	PluginID string
	Err      error
}

// EventHandler observes engine events. Handlers must not call back into the
// engine; panics are recovered.
type EventHandler func(Event)

// Engine owns plugin activation. Operations on the same plugin identifier
// are serialized; unrelated identifiers proceed concurrently. The engine is
// the sole mutator of the active-instance registry.
type Engine struct {
	mu sync.RWMutex

	locks    *keyedMutex
	registry *Registry
	binder   HostBinder
	logger   log.Logger

	hostVersion *semver.Version
	env         Environment
	limits      security.ResourceLimits

	states   map[string]State
	active   map[string]*Instance
	order    []string
	handlers []EventHandler
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBinder sets the host API binder applied to each new instance.
func WithBinder(b HostBinder) EngineOption {
	return func(e *Engine) {
		e.binder = b
	}
}

// WithLogger sets the engine logger.
func WithLogger(l log.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithLimits sets the resource limits applied to plugin runtimes.
func WithLimits(limits security.ResourceLimits) EngineOption {
	return func(e *Engine) {
		e.limits = limits
	}
}

// WithEnvironment sets the runtime environment tag passed to plugins.
func WithEnvironment(env Environment) EngineOption {
	return func(e *Engine) {
		e.env = env
	}
}

// NewEngine creates an activation engine over the installed-plugin registry.
func NewEngine(registry *Registry, hostVersion *semver.Version, opts ...EngineOption) *Engine {
	e := &Engine{
		locks:       newKeyedMutex(),
		registry:    registry,
		logger:      log.Nop{},
		hostVersion: hostVersion,
		env:         EnvProduction,
		limits:      security.DefaultResourceLimits(),
		states:      make(map[string]State),
		active:      make(map[string]*Instance),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Activate loads and initializes the plugin's entry point in a fresh
// sandboxed runtime. No-op when the plugin is already active. On any
// initialization failure the state reverts to Inactive and no instance is
// registered.
func (e *Engine) Activate(ctx context.Context, id string) error {
	e.locks.Lock(id)
	defer e.locks.Unlock(id)

	p, ok := e.registry.Get(id)
	if !ok {
		return fmt.Errorf("plugin %q: %w", id, ErrNotFound)
	}

	if e.State(id) == StateActive {
		return nil
	}

	if !p.Manifest.CompatibleWith(e.hostVersion) {
		return fmt.Errorf("plugin %q needs host >= %s, have %s: %w",
			id, p.Manifest.MinimumAppVersion, e.hostVersion, ErrIncompatibleVersion)
	}

	e.setState(id, StateActivating)

	rt := luart.New(luart.WithHookTimeout(e.limits.HookTimeout))
	checker := security.NewChecker(id, p.Manifest.Permissions)
	if e.binder != nil {
		e.binder.Bind(rt, checker)
	}

	fail := func(err error) error {
		rt.Close()
		e.setState(id, StateInactive)
		wrapped := fmt.Errorf("plugin %q: %w: %v", id, ErrLoad, err)
		e.emit(Event{Type: EventActivationFailed, PluginID: id, Err: wrapped})
		return wrapped
	}

	if err := rt.LoadFile(ctx, p.EntryPath()); err != nil {
		return fail(err)
	}

	// The activate hook is optional; plugins that only contribute static
	// assets (themes, snippets) may not define one.
	if rt.HasGlobalFunction("activate") {
		pctx := Context{
			APIVersion:  APIVersion,
			AppVersion:  e.hostVersion.String(),
			Environment: e.env,
		}
		if _, err := rt.CallGlobal(ctx, "activate", pctx.asMap()); err != nil {
			return fail(err)
		}
	}

	inst := &Instance{
		plugin:      p,
		runtime:     rt,
		checker:     checker,
		activatedAt: time.Now(),
	}

	e.mu.Lock()
	e.active[id] = inst
	e.order = append(e.order, id)
	e.states[id] = StateActive
	e.mu.Unlock()

	e.logger.Info("plugin activated", "plugin", id, "version", p.Manifest.Version)
	e.emit(Event{Type: EventActivated, PluginID: id})
	return nil
}

// Deactivate runs the plugin's cleanup hook and releases its instance.
// No-op when the plugin is not active; idempotent and safe during shutdown.
func (e *Engine) Deactivate(ctx context.Context, id string) {
	e.locks.Lock(id)
	defer e.locks.Unlock(id)
	e.deactivateLocked(ctx, id)
}

// deactivateLocked is Deactivate without lock acquisition, for callers that
// already hold the id lock (Installer.Uninstall).
func (e *Engine) deactivateLocked(ctx context.Context, id string) {
	e.mu.RLock()
	inst := e.active[id]
	e.mu.RUnlock()

	if inst == nil {
		return
	}

	e.setState(id, StateDeactivating)

	// Cleanup failures are logged, never propagated; the host cannot abort
	// a teardown sequence.
	if inst.runtime.HasGlobalFunction("deactivate") {
		if _, err := inst.runtime.CallGlobal(ctx, "deactivate"); err != nil {
			e.logger.Warn("plugin cleanup hook failed", "plugin", id, "err", err)
		}
	}

	inst.runtime.Close()

	e.mu.Lock()
	delete(e.active, id)
	e.removeFromOrder(id)
	delete(e.states, id)
	e.mu.Unlock()

	e.logger.Info("plugin deactivated", "plugin", id)
	e.emit(Event{Type: EventDeactivated, PluginID: id})
}

// ExecuteCommand invokes the named global function in the plugin's runtime,
// bounded by the call timeout. If the plugin is not active the call returns
// empty results and no error; a deactivated plugin must not be invokable and
// the host shell probes this path defensively.
func (e *Engine) ExecuteCommand(ctx context.Context, id, command string, args ...any) ([]any, error) {
	e.locks.Lock(id)
	defer e.locks.Unlock(id)

	e.mu.RLock()
	inst := e.active[id]
	e.mu.RUnlock()

	if inst == nil {
		return nil, nil
	}

	if !inst.runtime.HasGlobalFunction(command) {
		return nil, fmt.Errorf("plugin %q has no command %q", id, command)
	}

	if e.limits.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.limits.CallTimeout)
		defer cancel()
	}
	return inst.runtime.CallGlobal(ctx, command, args...)
}

// State returns the lifecycle state for id. Unknown identifiers are Inactive.
func (e *Engine) State(id string) State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.states[id]
}

// IsActive reports whether id has a live instance.
func (e *Engine) IsActive(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.active[id]
	return ok
}

// ActiveIDs returns identifiers of active plugins in activation order.
func (e *Engine) ActiveIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, len(e.order))
	copy(ids, e.order)
	return ids
}

// Instance returns the live instance for id, if any.
func (e *Engine) Instance(id string) (*Instance, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	inst, ok := e.active[id]
	return inst, ok
}

// Shutdown deactivates all plugins in reverse activation order.
func (e *Engine) Shutdown(ctx context.Context) {
	ids := e.ActiveIDs()
	for i := len(ids) - 1; i >= 0; i-- {
		e.Deactivate(ctx, ids[i])
	}
}

// Subscribe registers an event handler and returns an unsubscribe function.
func (e *Engine) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	e.mu.Lock()
	e.handlers = append(e.handlers, handler)
	index := len(e.handlers) - 1
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if index < len(e.handlers) {
			e.handlers[index] = nil
		}
	}
}

func (e *Engine) setState(id string, s State) {
	e.mu.Lock()
	if s == StateInactive {
		delete(e.states, id)
	} else {
		e.states[id] = s
	}
	e.mu.Unlock()
}

// emit calls handlers outside any engine lock, recovering panics.
func (e *Engine) emit(event Event) {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() { recover() }()
			handler(event)
		}()
	}
}

// removeFromOrder removes id from the activation order. Caller holds mu.
func (e *Engine) removeFromOrder(id string) {
	for i, existing := range e.order {
		if existing == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			return
		}
	}
}
