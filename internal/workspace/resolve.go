package workspace

import "github.com/matheus3301/outreach/internal/config"

const DefaultName = "main"

// Resolve determines the active workspace name using precedence:
// 1. flagOverride (--workspace flag)
// 2. config.toml default_workspace
// 3. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	g, err := config.LoadGlobal(ConfigPath())
	if err == nil && g.DefaultWorkspace != "" {
		return g.DefaultWorkspace
	}
	return DefaultName
}
