package plugin

// APIVersion is the host API revision handed to plugin code.
const APIVersion = "1"

// Environment tags the runtime environment a plugin runs under.
type Environment string

const (
	// EnvDevelopment marks a development host.
	EnvDevelopment Environment = "development"

	// EnvProduction marks a production host.
	EnvProduction Environment = "production"
)

// Context is passed once to a plugin's activate hook. Immutable after
// construction.
type Context struct {
	// APIVersion is the host API revision.
	APIVersion string

	// AppVersion is the running host application version.
	AppVersion string

	// Environment is the runtime environment tag.
	Environment Environment
}

// asMap renders the context for the Lua side.
func (c Context) asMap() map[string]any {
	return map[string]any{
		"apiVersion":  c.APIVersion,
		"appVersion":  c.AppVersion,
		"environment": string(c.Environment),
	}
}
