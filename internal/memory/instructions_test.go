package memory

import (
	"path/filepath"
	"testing"
)

func TestReadInstructions_WriteInstructions(t *testing.T) {
	t.Parallel()
	agentDir := filepath.Join(t.TempDir(), "agents", "alice")

	content, err := ReadInstructions(agentDir)
	if err != nil {
		t.Fatalf("ReadInstructions missing: %v", err)
	}
	if content != "" {
		t.Fatalf("ReadInstructions missing: got %q", content)
	}

	if err := WriteInstructions(agentDir, "Prefer small pull requests."); err != nil {
		t.Fatalf("WriteInstructions: %v", err)
	}
	content, err = ReadInstructions(agentDir)
	if err != nil {
		t.Fatalf("ReadInstructions: %v", err)
	}
	if content != "Prefer small pull requests." {
		t.Fatalf("ReadInstructions: got %q", content)
	}
}
