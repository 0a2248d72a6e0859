package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/Masterminds/semver/v3"

	"github.com/coda-editor/extend/internal/plugin/security"
)

// ManifestFile is the fixed descriptor path inside every plugin bundle.
const ManifestFile = "extension.json"

// DefaultMain is the entry point used when a manifest omits one.
const DefaultMain = "init.lua"

// Manifest describes a plugin's identity, capabilities, and requirements.
// Loaded from the bundle descriptor at discovery or install time and
// immutable afterwards.
type Manifest struct {
	// Identity
	ID          string `json:"id"`          // Unique identifier (e.g., "com.example.fmt")
	Name        string `json:"name"`        // Human-readable name
	Version     string `json:"version"`     // Semver (e.g., "1.2.0")
	Author      string `json:"author"`      // Author name or org
	Description string `json:"description"` // Short description
	Icon        string `json:"icon,omitempty"`
	Homepage    string `json:"homepage,omitempty"`

	// Declared surface
	Capabilities []security.Capability `json:"capabilities"`
	Permissions  []security.Permission `json:"permissions"`

	// Entry point, relative to the bundle root
	Main string `json:"main"`

	// Requirements
	Dependencies      []string `json:"dependencies,omitempty"`
	MinimumAppVersion string   `json:"minimumAppVersion,omitempty"`
}

// Field validation errors, wrapped under ErrParse.
var (
	errMissingID      = errors.New("id is required")
	errInvalidID      = errors.New("id must be lowercase dotted segments")
	errMissingName    = errors.New("name is required")
	errMissingVersion = errors.New("version is required")
	errInvalidVersion = errors.New("version must be valid semver")
	errInvalidMain    = errors.New("main must be a .lua file inside the bundle")
	errInvalidMinApp  = errors.New("minimumAppVersion must be valid semver")
)

// idPattern validates plugin identifiers: lowercase alphanumeric segments
// joined by dots or hyphens ("com.example.fmt", "vim-surround").
var idPattern = regexp.MustCompile(`^[a-z0-9]+([.-][a-z0-9]+)*$`)

// ParseManifest parses and validates a manifest descriptor. Parsing is
// all-or-nothing: any malformed field yields ErrParse and no manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &m, nil
}

// LoadManifest loads the descriptor from a bundle directory.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrParse, ManifestFile, err)
	}
	return ParseManifest(data)
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = DefaultMain
	}
}

// Validate checks every field against the manifest contract.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return errMissingID
	}
	if !idPattern.MatchString(m.ID) {
		return fmt.Errorf("%w: %q", errInvalidID, m.ID)
	}
	if m.Name == "" {
		return errMissingName
	}

	if m.Version == "" {
		return errMissingVersion
	}
	if _, err := semver.StrictNewVersion(m.Version); err != nil {
		return fmt.Errorf("%w: %q", errInvalidVersion, m.Version)
	}

	if filepath.Ext(m.Main) != ".lua" || !filepath.IsLocal(m.Main) {
		return fmt.Errorf("%w: %q", errInvalidMain, m.Main)
	}

	if err := security.ValidateCapabilities(m.Capabilities); err != nil {
		return err
	}
	if err := security.ValidatePermissions(m.Permissions); err != nil {
		return err
	}

	for _, dep := range m.Dependencies {
		if !idPattern.MatchString(dep) {
			return fmt.Errorf("invalid dependency id %q", dep)
		}
	}

	if m.MinimumAppVersion != "" {
		if _, err := semver.StrictNewVersion(m.MinimumAppVersion); err != nil {
			return fmt.Errorf("%w: %q", errInvalidMinApp, m.MinimumAppVersion)
		}
	}

	return nil
}

// CompatibleWith reports whether the manifest's minimum host requirement is
// satisfied by the given host version.
func (m *Manifest) CompatibleWith(host *semver.Version) bool {
	if m.MinimumAppVersion == "" {
		return true
	}
	minimum, err := semver.StrictNewVersion(m.MinimumAppVersion)
	if err != nil {
		return false
	}
	return !host.LessThan(minimum)
}

// HasCapability reports whether the plugin declares the capability.
func (m *Manifest) HasCapability(c security.Capability) bool {
	for _, declared := range m.Capabilities {
		if declared == c {
			return true
		}
	}
	return false
}

// HasPermission reports whether the plugin requests the permission.
func (m *Manifest) HasPermission(p security.Permission) bool {
	for _, requested := range m.Permissions {
		if requested == p {
			return true
		}
	}
	return false
}

// String returns a short identity string.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s v%s", m.ID, m.Version)
}
