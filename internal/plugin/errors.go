package plugin

import "errors"

// Error kinds surfaced by the plugin system. Callers match with errors.Is;
// wrapped detail carries the plugin identifier and cause.
var (
	// ErrParse is returned when a manifest is malformed, missing a required
	// field, or declares a value outside the closed enumerations.
	ErrParse = errors.New("manifest parse error")

	// ErrInstall is returned when a bundle cannot be fetched, extracted,
	// verified, or registered.
	ErrInstall = errors.New("plugin install error")

	// ErrNotFound is returned for operations on an unknown plugin id.
	ErrNotFound = errors.New("plugin not found")

	// ErrLoad is returned when a plugin's entry point fails to load or its
	// activation hook fails.
	ErrLoad = errors.New("plugin load error")

	// ErrIncompatibleVersion is returned when a manifest requires a newer
	// host application than the one running.
	ErrIncompatibleVersion = errors.New("plugin requires newer host version")

	// ErrAlreadyInstalled is returned when installing a bundle whose id is
	// already registered.
	ErrAlreadyInstalled = errors.New("plugin already installed")

	// ErrBadSignature is returned when bundle signature verification fails.
	ErrBadSignature = errors.New("plugin signature verification failed")
)
