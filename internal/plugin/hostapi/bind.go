package hostapi

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/coda-editor/extend/internal/plugin/luart"
	"github.com/coda-editor/extend/internal/plugin/security"
)

// ModuleName is the module plugin code imports to reach the host:
//
//	local coda = require("coda")
const ModuleName = "coda"

// Bind registers the host API module into a plugin runtime. Every function
// goes through Dispatch, so the permission gate applies uniformly whether
// the plugin calls from Lua or the shell dispatches a typed request.
func (s *Surface) Bind(rt *luart.Runtime, checker *security.Checker) {
	rt.RegisterModule(ModuleName, map[string]lua.LGFunction{
		"read_file":     s.luaReadFile(checker),
		"write_file":    s.luaWriteFile(checker),
		"exec":          s.luaExec(checker),
		"fetch":         s.luaFetch(checker),
		"clipboard_get": s.luaClipboardGet(checker),
		"clipboard_set": s.luaClipboardSet(checker),
		"notify":        s.luaNotify(checker),
		"complete":      s.luaComplete(checker),
	})
}

// luaCtx returns the context the runtime is executing under.
func luaCtx(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// pushErr pushes the Lua error convention: nil plus a message.
func pushErr(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}

func (s *Surface) luaReadFile(checker *security.Checker) lua.LGFunction {
	return func(L *lua.LState) int {
		path := L.CheckString(1)

		result, err := s.Dispatch(luaCtx(L), checker, ReadFile{Path: path})
		if err != nil {
			return pushErr(L, err)
		}
		L.Push(lua.LString(result.([]byte)))
		return 1
	}
}

func (s *Surface) luaWriteFile(checker *security.Checker) lua.LGFunction {
	return func(L *lua.LState) int {
		path := L.CheckString(1)
		data := L.CheckString(2)

		if _, err := s.Dispatch(luaCtx(L), checker, WriteFile{Path: path, Data: []byte(data)}); err != nil {
			return pushErr(L, err)
		}
		L.Push(lua.LTrue)
		return 1
	}
}

func (s *Surface) luaExec(checker *security.Checker) lua.LGFunction {
	return func(L *lua.LState) int {
		command := L.CheckString(1)

		var args []string
		if L.GetTop() >= 2 {
			tbl := L.CheckTable(2)
			tbl.ForEach(func(_, v lua.LValue) {
				args = append(args, v.String())
			})
		}
		dir := L.OptString(3, "")

		result, err := s.Dispatch(luaCtx(L), checker, ExecCommand{Command: command, Args: args, Dir: dir})
		if err != nil {
			return pushErr(L, err)
		}

		exec := result.(ExecResult)
		out := L.NewTable()
		L.SetField(out, "stdout", lua.LString(exec.Stdout))
		L.SetField(out, "stderr", lua.LString(exec.Stderr))
		L.SetField(out, "exit_code", lua.LNumber(exec.ExitCode))
		L.Push(out)
		return 1
	}
}

func (s *Surface) luaFetch(checker *security.Checker) lua.LGFunction {
	return func(L *lua.LState) int {
		url := L.CheckString(1)

		req := HTTPRequest{URL: url}
		if L.GetTop() >= 2 {
			opts := L.CheckTable(2)
			if method, ok := L.GetField(opts, "method").(lua.LString); ok {
				req.Method = string(method)
			}
			if body, ok := L.GetField(opts, "body").(lua.LString); ok {
				req.Body = []byte(body)
			}
			if headers, ok := L.GetField(opts, "headers").(*lua.LTable); ok {
				req.Header = make(map[string]string)
				headers.ForEach(func(k, v lua.LValue) {
					req.Header[k.String()] = v.String()
				})
			}
		}

		result, err := s.Dispatch(luaCtx(L), checker, req)
		if err != nil {
			return pushErr(L, err)
		}

		resp := result.(HTTPResult)
		out := L.NewTable()
		L.SetField(out, "status", lua.LNumber(resp.Status))
		L.SetField(out, "body", lua.LString(resp.Body))
		L.Push(out)
		return 1
	}
}

func (s *Surface) luaClipboardGet(checker *security.Checker) lua.LGFunction {
	return func(L *lua.LState) int {
		result, err := s.Dispatch(luaCtx(L), checker, ClipboardRead{})
		if err != nil {
			return pushErr(L, err)
		}
		L.Push(lua.LString(result.(string)))
		return 1
	}
}

func (s *Surface) luaClipboardSet(checker *security.Checker) lua.LGFunction {
	return func(L *lua.LState) int {
		text := L.CheckString(1)

		if _, err := s.Dispatch(luaCtx(L), checker, ClipboardWrite{Text: text}); err != nil {
			return pushErr(L, err)
		}
		L.Push(lua.LTrue)
		return 1
	}
}

func (s *Surface) luaNotify(checker *security.Checker) lua.LGFunction {
	return func(L *lua.LState) int {
		level := L.CheckString(1)
		message := L.CheckString(2)

		if _, err := s.Dispatch(luaCtx(L), checker, Notify{Level: level, Message: message}); err != nil {
			return pushErr(L, err)
		}
		L.Push(lua.LTrue)
		return 1
	}
}

func (s *Surface) luaComplete(checker *security.Checker) lua.LGFunction {
	return func(L *lua.LState) int {
		prompt := L.CheckString(1)

		result, err := s.Dispatch(luaCtx(L), checker, Complete{Prompt: prompt})
		if err != nil {
			return pushErr(L, err)
		}
		L.Push(lua.LString(result.(string)))
		return 1
	}
}
