package security

import "testing"

func TestValidateCapabilities(t *testing.T) {
	tests := []struct {
		name    string
		caps    []Capability
		wantErr bool
	}{
		{"empty", nil, false},
		{"all known", AllCapabilities(), false},
		{"formatter only", []Capability{CapFormatter}, false},
		{"unknown value", []Capability{CapLinter, "telemetry"}, true},
		{"wrong case", []Capability{"Formatter"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCapabilities(tt.caps)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCapabilities(%v) error = %v, wantErr %v", tt.caps, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePermissions(t *testing.T) {
	tests := []struct {
		name    string
		perms   []Permission
		wantErr bool
	}{
		{"empty", nil, false},
		{"all known", AllPermissions(), false},
		{"unknown value", []Permission{PermNetwork, "root"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePermissions(tt.perms)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePermissions(%v) error = %v, wantErr %v", tt.perms, err, tt.wantErr)
			}
		})
	}
}

func TestCheckerHas(t *testing.T) {
	c := NewChecker("com.example.fmt", []Permission{PermFileRead, PermFileWrite})

	if !c.Has(PermFileRead) {
		t.Error("fileRead should be granted")
	}
	if !c.Has(PermFileRead, PermFileWrite) {
		t.Error("both granted permissions should pass together")
	}
	if c.Has(PermTerminal) {
		t.Error("terminal was never granted")
	}
	if c.Has(PermFileRead, PermProcess) {
		t.Error("mixed granted/ungranted must fail")
	}
}

func TestCheckerIgnoresUnknownGrants(t *testing.T) {
	c := NewChecker("p", []Permission{"bogus", PermClipboard})

	if c.Has("bogus") {
		t.Error("unknown permission must never be granted")
	}
	if !c.Has(PermClipboard) {
		t.Error("valid grant lost")
	}
}

func TestCheckerRevoke(t *testing.T) {
	c := NewChecker("p", []Permission{PermNotifications})
	c.Revoke(PermNotifications)

	if c.Has(PermNotifications) {
		t.Error("revoked permission still granted")
	}
}

func TestRiskLevels(t *testing.T) {
	if Risk(PermProcess) != RiskHigh || Risk(PermTerminal) != RiskHigh {
		t.Error("process/terminal should be high risk")
	}
	if Risk(PermFileWrite) != RiskMedium {
		t.Error("fileWrite should be medium risk")
	}
	if Risk(PermFileRead) != RiskLow {
		t.Error("fileRead should be low risk")
	}
}
