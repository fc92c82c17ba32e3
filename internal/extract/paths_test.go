package extract

import "testing"

func TestTemplatePath_Deterministic(t *testing.T) {
	first := TemplatePath("owner1", "Default", "app", "2.0")
	second := TemplatePath("owner1", "Default", "app", "2.0")

	if first != second {
		t.Errorf("expected identical paths, got %q and %q", first, second)
	}
	if first != "owner1/Default/app_v2.0" {
		t.Errorf("expected owner1/Default/app_v2.0, got %q", first)
	}
}

func TestTemplatePath_SanitizesIllegalCharacters(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		expected string
	}{
		{"app:with*bad?chars", "1.0", "owner1/Default/appwithbadchars_v1.0"},
		{`app\slash/name`, "1.0", "owner1/Default/appslashname_v1.0"},
		{"app<>|\"", "1.0", "owner1/Default/app_v1.0"},
	}

	for _, tt := range tests {
		got := TemplatePath("owner1", "Default", tt.name, tt.version)
		if got != tt.expected {
			t.Errorf("TemplatePath(%q) = %q, want %q", tt.name, got, tt.expected)
		}
		// Sanitization must be deterministic
		if again := TemplatePath("owner1", "Default", tt.name, tt.version); again != got {
			t.Errorf("resolution not idempotent: %q then %q", got, again)
		}
	}
}

func TestWorkPath(t *testing.T) {
	got := WorkPath("owner1", "Default", "app")
	if got != "owner1/Default/app" {
		t.Errorf("expected owner1/Default/app, got %q", got)
	}
}

func TestQualifyPath_BareName(t *testing.T) {
	got := QualifyPath("owner1", "Default", "app_v2.0")
	if got != "owner1/Default/app_v2.0" {
		t.Errorf("expected owner1/Default/app_v2.0, got %q", got)
	}
}

func TestQualifyPath_Idempotent(t *testing.T) {
	qualified := QualifyPath("owner1", "Default", "app_v2.0")
	again := QualifyPath("owner1", "Default", qualified)
	if again != qualified {
		t.Errorf("qualification not idempotent: %q then %q", qualified, again)
	}
}

func TestQualifyPath_BareNameMatchingOwner(t *testing.T) {
	// A single segment is always a bare directory name, even when it is
	// spelled exactly like the owner
	got := QualifyPath("owner1", "Default", "owner1")
	if got != "owner1/Default/owner1" {
		t.Errorf("expected owner1/Default/owner1, got %q", got)
	}
}

func TestQualifyPath_AlreadyQualifiedPassesThrough(t *testing.T) {
	got := QualifyPath("owner1", "Custom", "owner1/Default/app_v2.0")
	if got != "owner1/Default/app_v2.0" {
		t.Errorf("expected pass-through, got %q", got)
	}
}
