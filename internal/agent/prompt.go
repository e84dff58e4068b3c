package agent

import (
	"fmt"
	"strings"

	"github.com/ankittk/devcrew/pkg/models"
)

func (a *Agent) systemPrompt() string {
	sp := a.id.SystemPrompt
	if sp == "" {
		sp = fmt.Sprintf("You are %s, the %s on a software development team.", a.id.Name, roleTitle(a.id.Role))
	}
	if a.opts.Instructions != "" {
		sp += "\n\n" + strings.TrimSpace(a.opts.Instructions)
	}
	return sp
}

func (a *Agent) userPrompt(summary string, typ models.RequestType, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a %s agent.\n\n", a.id.Name, a.id.Role)
	if a.id.Personality != "" {
		fmt.Fprintf(&b, "Personality: %s\n", a.id.Personality)
	}
	if a.id.JobDescription != "" {
		fmt.Fprintf(&b, "Job description: %s\n", a.id.JobDescription)
	}
	if a.id.Goal != "" {
		fmt.Fprintf(&b, "Goal: %s\n", a.id.Goal)
	}
	fmt.Fprintf(&b, "\nRecent context:\n%s\n\n", summary)
	b.WriteString("Reply in character and within your role. Be concise and concrete.\n\n")
	fmt.Fprintf(&b, "Message type: %s\n", typ)
	fmt.Fprintf(&b, "Message: %s\n", text)
	return b.String()
}

func roleTitle(r models.Role) string {
	switch r {
	case models.RoleArchitect:
		return "software architect"
	case models.RoleQA:
		return "QA engineer"
	case models.RoleDevOps:
		return "DevOps engineer"
	case models.RoleProductManager:
		return "product manager"
	case "":
		return "engineer"
	}
	return string(r) + " engineer"
}
