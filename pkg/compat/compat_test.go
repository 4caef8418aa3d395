package compat

import (
	"testing"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		version    string
		want       bool
	}{
		{"default accepts 2.x", "", "2.4.1", true},
		{"default rejects 3.x", "", "3.0.0", false},
		{"default rejects 1.x", "", "1.9.9", false},
		{"major only", "2", "2.0.0", true},
		{"major only mismatch", "2", "3.1.0", false},
		{"range", ">=2.1.0 <2.5.0", "2.4.9", true},
		{"range upper bound", ">=2.1.0 <2.5.0", "2.5.0", false},
		{"tilde", "~2.3.0", "2.3.7", true},
		{"leading v", "^2.0.0", "v2.2.0", true},
		{"empty version", "^2.0.0", "", false},
		{"garbage version", "^2.0.0", "latest", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChecker(tt.constraint)
			if err != nil {
				t.Fatalf("compat:compat_test - NewChecker(%q): %v", tt.constraint, err)
			}
			r := c.Check(tt.version)
			if r.Compatible != tt.want {
				t.Errorf("compat:compat_test - Check(%q) against %q = %v, want %v (%s)", tt.version, c.Constraint(), r.Compatible, tt.want, r.Reason)
			}
			if !r.Compatible && r.Reason == "" {
				t.Errorf("compat:compat_test - incompatible report must carry a reason")
			}
		})
	}
}

func TestNewChecker_Invalid(t *testing.T) {
	if _, err := NewChecker(">>nope"); err == nil {
		t.Error("compat:compat_test - expected error for invalid constraint")
	}
}

func TestIsMajorOnly(t *testing.T) {
	if !IsMajorOnly("2") || IsMajorOnly("2.0") || IsMajorOnly("^2") {
		t.Error("compat:compat_test - IsMajorOnly misclassified")
	}
}
