// Package luart provides the sandboxed Lua runtime each plugin instance
// executes in.
package luart

import (
	"context"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultHookTimeout bounds each execution on a runtime unless overridden.
const DefaultHookTimeout = 5 * time.Second

// Runtime wraps a gopher-lua state with sandboxing and bounded execution.
//
// gopher-lua's LState is not goroutine-safe. The mutex serializes all
// operations on the state; callers additionally serialize per plugin
// identifier at the engine level.
type Runtime struct {
	mu sync.Mutex

	L       *lua.LState
	sandbox *Sandbox
	bridge  *Bridge

	hookTimeout time.Duration
	closed      bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithHookTimeout bounds each execution. Hung plugin code is aborted when
// the deadline passes.
func WithHookTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		r.hookTimeout = d
	}
}

// New creates a sandboxed Lua runtime. Only the safe subset of the Lua
// standard library is opened; everything else is withheld.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		hookTimeout: DefaultHookTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	r.L = L
	r.sandbox = NewSandbox(L)
	r.sandbox.Install()
	r.bridge = NewBridge(L)

	return r
}

// openSafeLibraries opens only safe Lua standard libraries.
// io, os and debug stay closed; plugins reach the outside world through the
// host API only. The package library is opened for require/preload support,
// then locked down by the sandbox.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenPackage(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// Bridge returns the Go-Lua value bridge.
func (r *Runtime) Bridge() *Bridge {
	return r.bridge
}

// LoadFile compiles and runs a Lua file under the execution deadline.
func (r *Runtime) LoadFile(ctx context.Context, path string) error {
	return r.run(ctx, func() error { return r.L.DoFile(path) })
}

// LoadString compiles and runs Lua source under the execution deadline.
func (r *Runtime) LoadString(ctx context.Context, code string) error {
	return r.run(ctx, func() error { return r.L.DoString(code) })
}

// HasGlobalFunction reports whether the named global is a callable function.
func (r *Runtime) HasGlobalFunction(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	return r.L.GetGlobal(name).Type() == lua.LTFunction
}

// CallGlobal invokes a global function with the given Go arguments and
// returns its results converted back to Go values. Missing optional globals
// are the caller's concern; calling a non-function fails with ErrNotFunction.
func (r *Runtime) CallGlobal(ctx context.Context, name string, args ...any) ([]any, error) {
	var results []any
	err := r.run(ctx, func() error {
		fn := r.L.GetGlobal(name)
		if fn.Type() != lua.LTFunction {
			return fmt.Errorf("%w: %s (got %s)", ErrNotFunction, name, fn.Type())
		}

		top := r.L.GetTop()
		r.L.Push(fn)
		for _, arg := range args {
			r.L.Push(r.bridge.ToLua(arg))
		}
		if err := r.L.PCall(len(args), lua.MultRet, nil); err != nil {
			r.L.SetTop(top)
			return err
		}

		nret := r.L.GetTop() - top
		results = make([]any, 0, nret)
		for i := top + 1; i <= r.L.GetTop(); i++ {
			results = append(results, r.bridge.ToGo(r.L.Get(i)))
		}
		r.L.SetTop(top)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SetGlobal sets a global variable from a Go value.
func (r *Runtime) SetGlobal(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.L.SetGlobal(name, r.bridge.ToLua(value))
}

// GetGlobal returns a global variable as a Go value.
func (r *Runtime) GetGlobal(name string) any {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	return r.bridge.ToGo(r.L.GetGlobal(name))
}

// RegisterModule preloads a module of Go functions, importable from plugin
// code via require(name).
func (r *Runtime) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.sandbox.AllowModule(name)
	r.L.PreloadModule(name, func(L *lua.LState) int {
		mod := L.SetFuncs(L.NewTable(), funcs)
		L.Push(mod)
		return 1
	})
}

// Close releases the Lua state. Idempotent.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.L.Close()
}

// run executes fn on the Lua state under lock, with panic recovery and a
// context deadline. The deadline is enforced through the LState context, so
// a busy loop in plugin code is aborted rather than wedging the caller.
func (r *Runtime) run(ctx context.Context, fn func() error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrStateClosed
	}

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithTimeout(ctx, r.hookTimeout)
	defer cancel()

	r.L.SetContext(runCtx)
	defer r.L.RemoveContext()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("lua panic: %v", rec)
		}
	}()
	return fn()
}
