package memory

import (
	"os"
)

// ReadInstructions returns the agent's instructions.md, appended to its system
// prompt. Returns empty string if missing.
func ReadInstructions(agentDir string) (string, error) {
	data, err := os.ReadFile(InstructionsPath(agentDir))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// WriteInstructions writes the agent's instructions. Creates agentDir if needed.
func WriteInstructions(agentDir, content string) error {
	if err := os.MkdirAll(agentDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(InstructionsPath(agentDir), []byte(content), 0o644)
}
