package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sneller-labs/memhighway/highway"
)

func TestLoadDefaultsWithNoPath(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if s != highway.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", s)
	}
}

func TestLoadYAMLDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "highway.yaml")
	doc := "defaultCapacity: 4096\nmaxLanes: 2\nbackendKind: mapped\ndisposalPolicy: track-ghosts\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.DefaultCapacity != 4096 || s.MaxLanes != 2 || s.BackendKind != highway.Mapped || s.DisposalPolicy != highway.TrackGhosts {
		t.Fatalf("unexpected settings: %+v", s)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "highway.yaml")
	if err := os.WriteFile(path, []byte("maxLanes: 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HIGHWAY_MAX_LANES", "9")
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.MaxLanes != 9 {
		t.Fatalf("expected env override to win, got MaxLanes=%d", s.MaxLanes)
	}
}
