package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"

	"github.com/coda-editor/extend/internal/plugin/security"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`{
		"id": "com.example.fmt",
		"name": "Example Formatter",
		"version": "1.2.0",
		"author": "Example Org",
		"description": "Formats things",
		"capabilities": ["formatter", "commands"],
		"permissions": ["fileRead", "fileWrite"],
		"main": "init.lua",
		"dependencies": ["com.example.base"],
		"minimumAppVersion": "0.5.0"
	}`)

	m, err := ParseManifest(data)
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}

	if m.ID != "com.example.fmt" {
		t.Errorf("ID = %q, want %q", m.ID, "com.example.fmt")
	}
	if m.Version != "1.2.0" {
		t.Errorf("Version = %q, want %q", m.Version, "1.2.0")
	}
	if !m.HasCapability(security.CapFormatter) {
		t.Error("HasCapability(formatter) = false, want true")
	}
	if m.HasCapability(security.CapNetwork) {
		t.Error("HasCapability(network) = true, want false")
	}
	if !m.HasPermission(security.PermFileWrite) {
		t.Error("HasPermission(fileWrite) = false, want true")
	}
	if m.HasPermission(security.PermTerminal) {
		t.Error("HasPermission(terminal) = true, want false")
	}
	if got := m.String(); got != "com.example.fmt v1.2.0" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseManifestDefaults(t *testing.T) {
	m, err := ParseManifest([]byte(`{"id": "minimal", "name": "Minimal", "version": "0.1.0"}`))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if m.Main != DefaultMain {
		t.Errorf("Main = %q, want %q", m.Main, DefaultMain)
	}
}

func TestParseManifestInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `{"id": `},
		{"missing id", `{"name": "X", "version": "1.0.0"}`},
		{"uppercase id", `{"id": "Com.Example", "name": "X", "version": "1.0.0"}`},
		{"empty id segment", `{"id": "com..example", "name": "X", "version": "1.0.0"}`},
		{"missing name", `{"id": "x", "version": "1.0.0"}`},
		{"missing version", `{"id": "x", "name": "X"}`},
		{"loose version", `{"id": "x", "name": "X", "version": "1.0"}`},
		{"not semver", `{"id": "x", "name": "X", "version": "latest"}`},
		{"main not lua", `{"id": "x", "name": "X", "version": "1.0.0", "main": "init.js"}`},
		{"main escapes bundle", `{"id": "x", "name": "X", "version": "1.0.0", "main": "../init.lua"}`},
		{"main absolute", `{"id": "x", "name": "X", "version": "1.0.0", "main": "/etc/init.lua"}`},
		{"unknown capability", `{"id": "x", "name": "X", "version": "1.0.0", "capabilities": ["root"]}`},
		{"unknown permission", `{"id": "x", "name": "X", "version": "1.0.0", "permissions": ["everything"]}`},
		{"invalid dependency id", `{"id": "x", "name": "X", "version": "1.0.0", "dependencies": ["Bad Dep"]}`},
		{"invalid minimumAppVersion", `{"id": "x", "name": "X", "version": "1.0.0", "minimumAppVersion": "two"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest([]byte(tt.data))
			if !errors.Is(err, ErrParse) {
				t.Errorf("ParseManifest() error = %v, want ErrParse", err)
			}
			if m != nil {
				t.Error("ParseManifest() returned a manifest on invalid input")
			}
		})
	}
}

func TestManifestRoundTrip(t *testing.T) {
	original := &Manifest{
		ID:                "com.example.theme",
		Name:              "Example Theme",
		Version:           "2.0.1",
		Author:            "Example Org",
		Capabilities:      []security.Capability{security.CapTheme},
		Permissions:       []security.Permission{security.PermNotifications},
		Main:              "theme.lua",
		MinimumAppVersion: "1.0.0",
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	parsed, err := ParseManifest(data)
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}

	if parsed.ID != original.ID || parsed.Version != original.Version || parsed.Main != original.Main {
		t.Errorf("round trip changed identity: got %+v", parsed)
	}
	if len(parsed.Permissions) != 1 || parsed.Permissions[0] != security.PermNotifications {
		t.Errorf("round trip changed permissions: %v", parsed.Permissions)
	}
}

func TestManifestCompatibleWith(t *testing.T) {
	host := semver.MustParse("1.4.0")

	tests := []struct {
		name    string
		minimum string
		want    bool
	}{
		{"no requirement", "", true},
		{"older requirement", "1.0.0", true},
		{"exact match", "1.4.0", true},
		{"newer requirement", "2.0.0", false},
		{"unparseable requirement", "soon", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manifest{MinimumAppVersion: tt.minimum}
			if got := m.CompatibleWith(host); got != tt.want {
				t.Errorf("CompatibleWith(%s) = %v, want %v", host, got, tt.want)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	descriptor := `{"id": "on.disk", "name": "On Disk", "version": "0.1.0"}`
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(descriptor), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if m.ID != "on.disk" {
		t.Errorf("ID = %q, want %q", m.ID, "on.disk")
	}
}

func TestLoadManifestMissing(t *testing.T) {
	_, err := LoadManifest(t.TempDir())
	if !errors.Is(err, ErrParse) {
		t.Errorf("LoadManifest() error = %v, want ErrParse", err)
	}
}
