package memory

import (
	"path/filepath"
	"strings"
)

// SafeAgentName returns a filesystem-safe version of the agent name.
func SafeAgentName(agentName string) string {
	return strings.ReplaceAll(strings.TrimSpace(agentName), " ", "_")
}

// AgentsDir returns <home>/agents/.
func AgentsDir(home string) string {
	return filepath.Join(home, "agents")
}

// AgentDir returns the path to an agent's directory: <home>/agents/<safe_agent_name>/.
func AgentDir(home, agentName string) string {
	return filepath.Join(AgentsDir(home), SafeAgentName(agentName))
}

// InstructionsPath returns the path to an agent's extra instructions: <agentDir>/instructions.md.
func InstructionsPath(agentDir string) string {
	return filepath.Join(agentDir, "instructions.md")
}

// JournalPath returns the path to an agent's journal: <agentDir>/journal.md.
func JournalPath(agentDir string) string {
	return filepath.Join(agentDir, "journal.md")
}

// NotesDir returns the path to an agent's notes directory: <agentDir>/notes/.
func NotesDir(agentDir string) string {
	return filepath.Join(agentDir, "notes")
}

// AgentConfigPath returns the path to an agent's config: <agentDir>/config.yaml.
func AgentConfigPath(agentDir string) string {
	return filepath.Join(agentDir, "config.yaml")
}
