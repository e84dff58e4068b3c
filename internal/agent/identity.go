package agent

import (
	"github.com/ankittk/devcrew/pkg/models"
	"github.com/google/uuid"
)

// idNamespace scopes agent ids so the same name always maps to the same id.
var idNamespace = uuid.MustParse("7b0c6f0e-3f7a-5a43-9a7e-2f1d5d0c8e11")

// IDFor returns the stable agent id for name.
func IDFor(name string) string {
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// Identity is the immutable description of an agent, built once from config.
type Identity struct {
	ID             string
	Name           string
	Role           models.Role
	Model          string
	Personality    string
	JobDescription string
	Goal           string
	SystemPrompt   string
	SlackUsername  string
	GitHubUsername string
}

// NewIdentity returns an Identity for name with its derived ID.
func NewIdentity(name string, role models.Role) Identity {
	return Identity{ID: IDFor(name), Name: name, Role: role}
}
