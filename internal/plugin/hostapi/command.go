package hostapi

import "github.com/coda-editor/extend/internal/plugin/security"

// Request is one operation in the closed host API command schema. Each
// request type carries a typed payload and names the permissions it needs;
// the surface validates both before delegating. The schema is a tagged
// union on purpose: an open key-value argument map cannot be validated
// statically.
type Request interface {
	// Op returns the stable operation name.
	Op() string

	// Permissions returns every permission the operation requires. All of
	// them must be declared by the calling plugin.
	Permissions() []security.Permission
}

// ReadFile reads a workspace file.
type ReadFile struct {
	Path string
}

func (ReadFile) Op() string { return "workspace.readFile" }

func (ReadFile) Permissions() []security.Permission {
	return []security.Permission{security.PermFileRead}
}

// WriteFile writes a workspace file, creating it if absent.
type WriteFile struct {
	Path string
	Data []byte
}

func (WriteFile) Op() string { return "workspace.writeFile" }

func (WriteFile) Permissions() []security.Permission {
	return []security.Permission{security.PermFileWrite}
}

// ExecCommand runs a command in the integrated terminal.
type ExecCommand struct {
	Command string
	Args    []string
	Dir     string
}

func (ExecCommand) Op() string { return "terminal.exec" }

func (ExecCommand) Permissions() []security.Permission {
	return []security.Permission{security.PermTerminal, security.PermProcess}
}

// ExecResult is the outcome of an ExecCommand.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// HTTPRequest performs an outbound network request.
type HTTPRequest struct {
	Method string
	URL    string
	Header map[string]string
	Body   []byte
}

func (HTTPRequest) Op() string { return "network.request" }

func (HTTPRequest) Permissions() []security.Permission {
	return []security.Permission{security.PermNetwork}
}

// HTTPResult is the outcome of an HTTPRequest.
type HTTPResult struct {
	Status int
	Body   []byte
}

// ClipboardRead reads the system clipboard.
type ClipboardRead struct{}

func (ClipboardRead) Op() string { return "clipboard.read" }

func (ClipboardRead) Permissions() []security.Permission {
	return []security.Permission{security.PermClipboard}
}

// ClipboardWrite writes the system clipboard.
type ClipboardWrite struct {
	Text string
}

func (ClipboardWrite) Op() string { return "clipboard.write" }

func (ClipboardWrite) Permissions() []security.Permission {
	return []security.Permission{security.PermClipboard}
}

// Notify shows a user notification.
type Notify struct {
	Level   string
	Message string
}

func (Notify) Op() string { return "ui.notify" }

func (Notify) Permissions() []security.Permission {
	return []security.Permission{security.PermNotifications}
}

// Complete requests an AI completion, routed through the host's own
// provider. Network permission gates it: the provider call leaves the
// machine even though the plugin never sees the endpoint.
type Complete struct {
	Prompt string
}

func (Complete) Op() string { return "ai.complete" }

func (Complete) Permissions() []security.Permission {
	return []security.Permission{security.PermNetwork}
}
