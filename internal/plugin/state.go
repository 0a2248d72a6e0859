package plugin

// State is the lifecycle state of a plugin identifier.
// The cycle is Inactive -> Activating -> Active -> Deactivating -> Inactive.
type State int

const (
	// StateInactive - no live instance exists for the identifier.
	StateInactive State = iota

	// StateActivating - an instance is being constructed and initialized.
	StateActivating

	// StateActive - the instance is initialized and registered.
	StateActive

	// StateDeactivating - the instance is running its cleanup hook.
	StateDeactivating
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateDeactivating:
		return "deactivating"
	default:
		return "unknown"
	}
}
