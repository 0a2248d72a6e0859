package security

import (
	"fmt"
	"sort"
	"sync"
)

// Permission is a privileged operation a plugin may request access to.
// Permissions are checked at the host API boundary before every delegated
// call; an undeclared permission is a hard failure, never a silent degrade.
type Permission string

// The closed set of permissions a manifest may request.
const (
	// PermFileRead allows reading workspace files.
	PermFileRead Permission = "fileRead"

	// PermFileWrite allows writing workspace files.
	PermFileWrite Permission = "fileWrite"

	// PermNetwork allows outbound network requests.
	PermNetwork Permission = "network"

	// PermTerminal allows executing terminal commands.
	PermTerminal Permission = "terminal"

	// PermProcess allows spawning child processes.
	PermProcess Permission = "process"

	// PermClipboard allows clipboard access.
	PermClipboard Permission = "clipboard"

	// PermNotifications allows showing user notifications.
	PermNotifications Permission = "notifications"
)

var validPermissions = map[Permission]bool{
	PermFileRead:      true,
	PermFileWrite:     true,
	PermNetwork:       true,
	PermTerminal:      true,
	PermProcess:       true,
	PermClipboard:     true,
	PermNotifications: true,
}

// ValidPermission returns true if p is a member of the closed permission set.
func ValidPermission(p Permission) bool {
	return validPermissions[p]
}

// ValidatePermissions checks each permission against the closed set.
// Returns an error naming the first unknown value.
func ValidatePermissions(perms []Permission) error {
	for _, p := range perms {
		if !validPermissions[p] {
			return fmt.Errorf("unknown permission %q", p)
		}
	}
	return nil
}

// AllPermissions returns the closed permission set, sorted.
func AllPermissions() []Permission {
	perms := make([]Permission, 0, len(validPermissions))
	for p := range validPermissions {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// String returns the permission identifier.
func (p Permission) String() string {
	return string(p)
}

// RiskLevel indicates how dangerous a permission is. Used by the shell to
// decide whether installation needs explicit user approval.
type RiskLevel int

const (
	// RiskLow indicates minimal security risk.
	RiskLow RiskLevel = iota

	// RiskMedium indicates moderate security risk.
	RiskMedium

	// RiskHigh indicates significant security risk.
	RiskHigh
)

// Risk returns the risk level of a permission.
func Risk(p Permission) RiskLevel {
	switch p {
	case PermTerminal, PermProcess:
		return RiskHigh
	case PermFileWrite, PermNetwork:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Checker validates a single plugin's granted permissions. Grants come from
// the plugin's manifest at activation time; the checker itself never widens
// them. Safe for concurrent use.
type Checker struct {
	mu     sync.RWMutex
	plugin string
	perms  map[Permission]bool
}

// NewChecker creates a checker for the named plugin with the given grants.
// Unknown permission values are ignored; the manifest store has already
// rejected them at parse time.
func NewChecker(plugin string, perms []Permission) *Checker {
	c := &Checker{
		plugin: plugin,
		perms:  make(map[Permission]bool, len(perms)),
	}
	for _, p := range perms {
		if validPermissions[p] {
			c.perms[p] = true
		}
	}
	return c
}

// Plugin returns the plugin identifier this checker guards.
func (c *Checker) Plugin() string {
	return c.plugin
}

// Has returns true if every listed permission is granted.
func (c *Checker) Has(perms ...Permission) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range perms {
		if !c.perms[p] {
			return false
		}
	}
	return true
}

// Granted returns all granted permissions, sorted.
func (c *Checker) Granted() []Permission {
	c.mu.RLock()
	defer c.mu.RUnlock()

	perms := make([]Permission, 0, len(c.perms))
	for p := range c.perms {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// Revoke removes a permission grant at runtime. Used when the user withdraws
// approval for an already-active plugin.
func (c *Checker) Revoke(p Permission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.perms, p)
}
