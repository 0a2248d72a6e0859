// Package security provides the capability and permission model for the
// plugin system.
package security

import (
	"fmt"
	"sort"
)

// Capability is a declared category of functionality a plugin provides.
// Capabilities describe what a plugin contributes to the editor, not what
// privileged operations it may invoke (see Permission).
type Capability string

// The closed set of capabilities a manifest may declare.
const (
	// CapCommands - the plugin contributes editor commands.
	CapCommands Capability = "commands"

	// CapUI - the plugin contributes UI elements (panels, status items).
	CapUI Capability = "ui"

	// CapLanguageSupport - the plugin contributes language intelligence.
	CapLanguageSupport Capability = "languageSupport"

	// CapTheme - the plugin contributes a color theme.
	CapTheme Capability = "theme"

	// CapSnippets - the plugin contributes code snippets.
	CapSnippets Capability = "snippets"

	// CapLinter - the plugin contributes a linter.
	CapLinter Capability = "linter"

	// CapFormatter - the plugin contributes a formatter.
	CapFormatter Capability = "formatter"

	// CapDebugger - the plugin contributes a debug adapter.
	CapDebugger Capability = "debugger"

	// CapTerminal - the plugin interacts with the integrated terminal.
	CapTerminal Capability = "terminal"

	// CapFileSystem - the plugin works with workspace files.
	CapFileSystem Capability = "fileSystem"

	// CapNetwork - the plugin talks to remote services.
	CapNetwork Capability = "network"

	// CapAI - the plugin uses the host's AI providers.
	CapAI Capability = "ai"
)

var validCapabilities = map[Capability]bool{
	CapCommands:        true,
	CapUI:              true,
	CapLanguageSupport: true,
	CapTheme:           true,
	CapSnippets:        true,
	CapLinter:          true,
	CapFormatter:       true,
	CapDebugger:        true,
	CapTerminal:        true,
	CapFileSystem:      true,
	CapNetwork:         true,
	CapAI:              true,
}

// ValidCapability returns true if c is a member of the closed capability set.
func ValidCapability(c Capability) bool {
	return validCapabilities[c]
}

// ValidateCapabilities checks each capability against the closed set.
// Returns an error naming the first unknown value.
func ValidateCapabilities(caps []Capability) error {
	for _, c := range caps {
		if !validCapabilities[c] {
			return fmt.Errorf("unknown capability %q", c)
		}
	}
	return nil
}

// AllCapabilities returns the closed capability set, sorted.
func AllCapabilities() []Capability {
	caps := make([]Capability, 0, len(validCapabilities))
	for c := range validCapabilities {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// String returns the capability identifier.
func (c Capability) String() string {
	return string(c)
}
