package gate

import "fmt"

// DefaultTools is the toolset handed to gates that do not declare one.
var DefaultTools = []string{"Task", "Read", "Glob", "Grep", "Bash", "Edit"}

var agentNames = map[string]string{
	"test":      "test-runner",
	"security":  "security-auditor",
	"build":     "build-fixer",
	"review":    "code-reviewer",
	"mentor":    "mentor-advisor",
	"ux":        "ux-reviewer",
	"architect": "architect-advisor",
	"devops":    "devops-advisor",
}

// AgentName returns the provider-side agent that evaluates gate.
func AgentName(gate string) string {
	if name, ok := agentNames[gate]; ok {
		return name
	}
	return gate + "-runner"
}

// DefaultPrompt is used for gates without a configured prompt.
func DefaultPrompt(gate string, weight float64) string {
	return fmt.Sprintf(
		"Use the %s agent to evaluate this codebase. Return only valid JSON: "+
			`{"score": <0-%g>, "findings": [{"severity", "title", "file", "line", "description", "recommendation", "autoFixable"}], "fixed_count": <n>, "files_modified": [<paths>]}`,
		AgentName(gate), weight)
}
