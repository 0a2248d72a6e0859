package luart

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
)

func TestLoadStringAndCallGlobal(t *testing.T) {
	r := New()
	defer r.Close()

	code := `
		function add(a, b)
			return a + b
		end
	`
	if err := r.LoadString(context.Background(), code); err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}

	results, err := r.CallGlobal(context.Background(), "add", 2, 3)
	if err != nil {
		t.Fatalf("CallGlobal() error = %v", err)
	}
	if len(results) != 1 || results[0] != int64(5) {
		t.Errorf("add(2, 3) = %v, want [5]", results)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "init.lua")
	if err := os.WriteFile(path, []byte(`greeting = "hello"`), 0644); err != nil {
		t.Fatal(err)
	}

	r := New()
	defer r.Close()

	if err := r.LoadFile(context.Background(), path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := r.GetGlobal("greeting"); got != "hello" {
		t.Errorf("greeting = %v, want hello", got)
	}
}

func TestCallGlobalNotFunction(t *testing.T) {
	r := New()
	defer r.Close()

	if err := r.LoadString(context.Background(), `thing = 42`); err != nil {
		t.Fatal(err)
	}

	_, err := r.CallGlobal(context.Background(), "thing")
	if !errors.Is(err, ErrNotFunction) {
		t.Errorf("CallGlobal on non-function error = %v, want ErrNotFunction", err)
	}
}

func TestHookTimeoutAbortsBusyLoop(t *testing.T) {
	r := New(WithHookTimeout(100 * time.Millisecond))
	defer r.Close()

	err := r.LoadString(context.Background(), `while true do end`)
	if err == nil {
		t.Fatal("busy loop was not aborted")
	}
}

func TestSandboxDeniesUnsafeModules(t *testing.T) {
	r := New()
	defer r.Close()

	for _, mod := range []string{"io", "os", "debug", "socket"} {
		err := r.LoadString(context.Background(), `require("`+mod+`")`)
		if err == nil {
			t.Errorf("require(%q) should be denied", mod)
		}
	}
}

func TestSandboxAllowsSafeModules(t *testing.T) {
	r := New()
	defer r.Close()

	code := `
		local s = require("string")
		upper = s.upper("abc")
	`
	if err := r.LoadString(context.Background(), code); err != nil {
		t.Fatalf("require safe module error = %v", err)
	}
	if got := r.GetGlobal("upper"); got != "ABC" {
		t.Errorf("upper = %v, want ABC", got)
	}
}

func TestSandboxRemovesCodeLoading(t *testing.T) {
	r := New()
	defer r.Close()

	if err := r.LoadString(context.Background(), `ok = (load == nil and dofile == nil and loadfile == nil)`); err != nil {
		t.Fatal(err)
	}
	if got := r.GetGlobal("ok"); got != true {
		t.Error("code loading globals still present")
	}
}

func TestRegisterModule(t *testing.T) {
	r := New()
	defer r.Close()

	r.RegisterModule("host", map[string]lua.LGFunction{
		"version": func(L *lua.LState) int {
			L.Push(lua.LString("1.0.0"))
			return 1
		},
	})

	code := `
		local host = require("host")
		v = host.version()
	`
	if err := r.LoadString(context.Background(), code); err != nil {
		t.Fatalf("require registered module error = %v", err)
	}
	if got := r.GetGlobal("v"); got != "1.0.0" {
		t.Errorf("v = %v, want 1.0.0", got)
	}
}

func TestClosedRuntime(t *testing.T) {
	r := New()
	r.Close()
	r.Close() // idempotent

	if err := r.LoadString(context.Background(), `x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("LoadString after Close error = %v, want ErrStateClosed", err)
	}
	if r.HasGlobalFunction("x") {
		t.Error("closed runtime should report no globals")
	}
}

func TestBridgeRoundTrip(t *testing.T) {
	r := New()
	defer r.Close()

	r.SetGlobal("cfg", map[string]any{
		"name":    "fmt",
		"enabled": true,
		"count":   int64(3),
		"items":   []any{"a", "b"},
	})

	code := `
		name = cfg.name
		enabled = cfg.enabled
		count = cfg.count
		first = cfg.items[1]
	`
	if err := r.LoadString(context.Background(), code); err != nil {
		t.Fatal(err)
	}

	if got := r.GetGlobal("name"); got != "fmt" {
		t.Errorf("name = %v", got)
	}
	if got := r.GetGlobal("enabled"); got != true {
		t.Errorf("enabled = %v", got)
	}
	if got := r.GetGlobal("count"); got != int64(3) {
		t.Errorf("count = %v", got)
	}
	if got := r.GetGlobal("first"); got != "a" {
		t.Errorf("first = %v", got)
	}
}

func TestBridgeLuaTableToGo(t *testing.T) {
	r := New()
	defer r.Close()

	code := `
		function describe()
			return { id = "p1", tags = { "x", "y" } }
		end
	`
	if err := r.LoadString(context.Background(), code); err != nil {
		t.Fatal(err)
	}

	results, err := r.CallGlobal(context.Background(), "describe")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %v", results)
	}

	m, ok := results[0].(map[string]any)
	if !ok {
		t.Fatalf("result type = %T, want map", results[0])
	}
	if m["id"] != "p1" {
		t.Errorf("id = %v", m["id"])
	}
	tags, ok := m["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "x" {
		t.Errorf("tags = %v", m["tags"])
	}
}
