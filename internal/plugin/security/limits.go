package security

import "time"

// ResourceLimits bounds a plugin's runtime resource usage. Execution is
// bounded by deadlines: the Lua VM exposes no instruction or memory hook,
// so a runaway plugin is cut off by time, not by counting.
type ResourceLimits struct {
	// HookTimeout bounds each lifecycle hook invocation.
	HookTimeout time.Duration

	// CallTimeout bounds each command dispatch into plugin code.
	CallTimeout time.Duration

	// MaxOutputBytes caps captured output from terminal executions.
	MaxOutputBytes int64
}

// DefaultResourceLimits returns the limits applied to ordinary plugins.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		HookTimeout:    5 * time.Second,
		CallTimeout:    5 * time.Second,
		MaxOutputBytes: 1 * 1024 * 1024,
	}
}

// StrictResourceLimits returns tighter limits for unsigned plugins running
// in a development environment.
func StrictResourceLimits() ResourceLimits {
	return ResourceLimits{
		HookTimeout:    2 * time.Second,
		CallTimeout:    2 * time.Second,
		MaxOutputBytes: 256 * 1024,
	}
}
