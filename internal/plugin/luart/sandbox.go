package luart

import (
	lua "github.com/yuin/gopher-lua"
)

// Sandbox restricts a Lua state to safe operations. Plugins never see io,
// os, debug, or disk-backed module loading; privileged operations go through
// the host API, which performs permission checks on the Go side.
type Sandbox struct {
	L *lua.LState

	// Modules importable via require beyond the safe built-ins.
	allowedModules map[string]bool
}

// safeModules are the built-in Lua modules plugins may require directly.
var safeModules = map[string]bool{
	"string": true,
	"table":  true,
	"math":   true,
}

// NewSandbox creates a sandbox for the Lua state.
func NewSandbox(L *lua.LState) *Sandbox {
	return &Sandbox{
		L:              L,
		allowedModules: make(map[string]bool),
	}
}

// Install applies the sandbox restrictions to the state.
func (s *Sandbox) Install() {
	// Remove functions that load arbitrary code.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.installSafeRequire()
}

// AllowModule whitelists a preloaded module name for require().
func (s *Sandbox) AllowModule(name string) {
	s.allowedModules[name] = true
}

// installSafeRequire replaces require with a whitelist-based version.
// package.path and package.cpath are cleared so nothing can be loaded from
// disk; only preloaded host modules and safe built-ins resolve.
func (s *Sandbox) installSafeRequire() {
	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))
	}

	originalRequire := s.L.GetGlobal("require")

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		modName := L.CheckString(1)

		if !safeModules[modName] && !s.allowedModules[modName] {
			L.RaiseError("module %q is not available", modName)
			return 0 // unreachable; RaiseError does not return
		}

		L.Push(originalRequire)
		L.Push(lua.LString(modName))
		L.Call(1, 1)
		return 1
	}))
}
