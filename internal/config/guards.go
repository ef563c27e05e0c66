package config

import "fmt"

// Operations accepted in safety.forbidden.
const (
	ForbidForcePush  = "force_push"
	ForbidPushToMain = "push_to_main"
	ForbidAutoMerge  = "auto_merge"
)

// hardResetTool is denied regardless of safety.forbidden.
const hardResetTool = "Bash(git reset --hard:*)"

// DisallowedTools turns safety.forbidden and git.protected_branches into
// provider tool deny patterns. push_to_main covers every protected branch,
// not only main.
func (c *Config) DisallowedTools() []string {
	tools := []string{hardResetTool}
	for _, op := range c.Safety.Forbidden {
		switch op {
		case ForbidForcePush:
			tools = append(tools,
				"Bash(git push --force:*)",
				"Bash(git push --force-with-lease:*)",
				"Bash(git push -f:*)",
			)
		case ForbidPushToMain:
			for _, b := range c.Git.ProtectedBranches {
				tools = append(tools,
					fmt.Sprintf("Bash(git push origin %s:*)", b),
					fmt.Sprintf("Bash(git push -u origin %s:*)", b),
					fmt.Sprintf("Bash(git push origin HEAD:%s:*)", b),
				)
			}
		case ForbidAutoMerge:
			tools = append(tools, "Bash(gh pr merge:*)")
		}
	}
	return tools
}
