// Package hostapi is the bounded operation surface the host exposes to
// plugin code. Every call is permission-checked against the invoking
// plugin's manifest before it is delegated to an editor subsystem.
package hostapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/coda-editor/extend/internal/log"
	"github.com/coda-editor/extend/internal/plugin/security"
)

// ErrMissingPermission is returned when a plugin invokes an operation it
// did not declare a permission for. Calls never degrade silently.
var ErrMissingPermission = errors.New("missing permission")

// maxResponseBytes caps network response bodies handed to plugin code.
const maxResponseBytes = 4 * 1024 * 1024

// Workspace provides root-scoped file access.
type Workspace interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
}

// Runner executes terminal commands on behalf of plugins.
type Runner interface {
	Run(ctx context.Context, command string, args []string, dir string) (ExecResult, error)
}

// Clipboard provides system clipboard access. atotto/clipboard satisfies
// this through SystemClipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// Notifier delivers user-visible notifications.
type Notifier interface {
	Notify(ctx context.Context, plugin, level, message string) error
}

// Completer produces AI completions through the host's provider.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Backends are the editor subsystems the surface delegates to. A nil
// backend makes the corresponding operations fail with a plain error.
type Backends struct {
	Workspace Workspace
	Runner    Runner
	HTTP      *http.Client
	Clipboard Clipboard
	Notifier  Notifier
	AI        Completer
}

// Surface dispatches host API requests. One surface serves all plugins;
// the per-plugin permission checker arrives with each call.
type Surface struct {
	backends Backends
	logger   log.Logger
}

// NewSurface creates a host API surface over the given backends.
func NewSurface(backends Backends, logger log.Logger) *Surface {
	if logger == nil {
		logger = log.Nop{}
	}
	return &Surface{backends: backends, logger: logger}
}

// Dispatch validates permissions and executes one request on behalf of the
// plugin the checker belongs to.
func (s *Surface) Dispatch(ctx context.Context, checker *security.Checker, req Request) (any, error) {
	needed := req.Permissions()
	if !checker.Has(needed...) {
		s.logger.Warn("host API call denied",
			"plugin", checker.Plugin(), "op", req.Op(), "needs", fmt.Sprint(needed))
		return nil, fmt.Errorf("plugin %q: operation %s needs %v: %w",
			checker.Plugin(), req.Op(), needed, ErrMissingPermission)
	}

	switch r := req.(type) {
	case ReadFile:
		if s.backends.Workspace == nil {
			return nil, errNoBackend(r)
		}
		return s.backends.Workspace.ReadFile(ctx, r.Path)

	case WriteFile:
		if s.backends.Workspace == nil {
			return nil, errNoBackend(r)
		}
		return nil, s.backends.Workspace.WriteFile(ctx, r.Path, r.Data)

	case ExecCommand:
		if s.backends.Runner == nil {
			return nil, errNoBackend(r)
		}
		return s.backends.Runner.Run(ctx, r.Command, r.Args, r.Dir)

	case HTTPRequest:
		if s.backends.HTTP == nil {
			return nil, errNoBackend(r)
		}
		return s.doHTTP(ctx, r)

	case ClipboardRead:
		if s.backends.Clipboard == nil {
			return nil, errNoBackend(r)
		}
		return s.backends.Clipboard.ReadAll()

	case ClipboardWrite:
		if s.backends.Clipboard == nil {
			return nil, errNoBackend(r)
		}
		return nil, s.backends.Clipboard.WriteAll(r.Text)

	case Notify:
		if s.backends.Notifier == nil {
			return nil, errNoBackend(r)
		}
		return nil, s.backends.Notifier.Notify(ctx, checker.Plugin(), r.Level, r.Message)

	case Complete:
		if s.backends.AI == nil {
			return nil, errNoBackend(r)
		}
		return s.backends.AI.Complete(ctx, r.Prompt)

	default:
		return nil, fmt.Errorf("unknown host API request %T", req)
	}
}

func (s *Surface) doHTTP(ctx context.Context, r HTTPRequest) (HTTPResult, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return HTTPResult{}, err
	}
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}

	resp, err := s.backends.HTTP.Do(req)
	if err != nil {
		return HTTPResult{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return HTTPResult{}, err
	}
	return HTTPResult{Status: resp.StatusCode, Body: data}, nil
}

func errNoBackend(req Request) error {
	return fmt.Errorf("operation %s has no backend on this host", req.Op())
}
