package atcmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReasonMapDescribe(t *testing.T) {
	m := DefaultReasonMap()

	tests := []struct {
		name string
		code string
		want string
	}{
		{"裸码", "2", "invalid parameter"},
		{"带前导零", "07", "duty cycle restricted"},
		{"双位码", "11", "storage access error"},
		{"未知码", "63", "device error 63"},
		{"空码", "", "device error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Describe(tt.code); got != tt.want {
				t.Errorf("Describe(%q) = %q, expected %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestReasonMapDescribeNil(t *testing.T) {
	var m *ReasonMap
	if got := m.Describe("07"); got != "device error 07" {
		t.Fatalf("nil map Describe = %q", got)
	}
}

func TestLoadReasonMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reasons.yaml")
	content := "map:\n  \"7\": \"regional duty cycle window closed\"\n  \"42\": \"antenna fault\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	loaded, err := LoadReasonMap(path)
	if err != nil {
		t.Fatalf("LoadReasonMap: %v", err)
	}

	m := DefaultReasonMap()
	m.Merge(loaded)

	if got := m.Describe("07"); got != "regional duty cycle window closed" {
		t.Fatalf("merged Describe(07) = %q", got)
	}
	if got := m.Describe("42"); got != "antenna fault" {
		t.Fatalf("merged Describe(42) = %q", got)
	}
	if got := m.Describe("2"); got != "invalid parameter" {
		t.Fatalf("default entry lost after merge: %q", got)
	}
}

func TestLoadReasonMapMissingFile(t *testing.T) {
	if _, err := LoadReasonMap(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
