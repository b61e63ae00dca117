package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindMatchingFilesFiltersDatasets(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.json", "b.YAML", "c.yml", "notes.txt", "d.dat"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}

	files, err := findMatchingFiles(filepath.Join(dir, "*"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Expected 3 datasets, got %d: %v", len(files), files)
	}

	if _, err := findMatchingFiles("[invalid"); err == nil {
		t.Fatalf("Expected error for malformed pattern")
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"geojson", "kml", "csv", "svg"} {
		if !validFormat(f) {
			t.Errorf("Expected %s to be valid", f)
		}
	}
	if validFormat("json") {
		t.Errorf("Expected json to be rejected")
	}
}

func TestFormatFileList(t *testing.T) {
	if got := formatFileList(nil); got != "  (none)" {
		t.Fatalf("Expected none marker, got %q", got)
	}
	got := formatFileList([]string{"/tmp/runs/a.json", "b.yaml"})
	if !strings.Contains(got, "  1. a.json\n") || !strings.Contains(got, "  2. b.yaml\n") {
		t.Fatalf("Unexpected file list: %q", got)
	}
}
