package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileLimited(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings")
	if err := os.WriteFile(path, []byte("ALLOW 80 1.2.3.4"), 0644); err != nil {
		t.Fatal(err)
	}

	content, err := ReadFileLimited(path, 16)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(content) != "ALLOW 80 1.2.3.4" {
		t.Errorf("Unexpected content %q", content)
	}

	if _, err := ReadFileLimited(path, 15); err == nil || !strings.Contains(err.Error(), "larger than 15 bytes") {
		t.Errorf("Expected size error, got %v", err)
	}

	if _, err := ReadFileLimited(filepath.Join(dir, "missing"), 16); !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}
