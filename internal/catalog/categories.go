// Package catalog holds the process-static tool/category tables shared by
// the category server, the supervisor, and the stdio proxy, plus the
// concrete built-in tools each category hosts.
package catalog

// Category names, taken verbatim from the category set the gateway ships
// with. Each has exactly one entry in portTable below.
const (
	CategoryFilesystem         = "filesystem"
	CategoryTerminal           = "terminal"
	CategoryProcess            = "process"
	CategoryIntrospection      = "introspection"
	CategoryPrompt             = "prompt"
	CategoryReasoner           = "reasoner"
	CategorySequentialThinking = "sequential_thinking"
	CategoryClaudeAgent        = "claude_agent"
	CategoryCandleAgent        = "candle_agent"
	CategoryCitescrape         = "citescrape"
	CategoryGit                = "git"
	CategoryGithub             = "github"
	CategoryConfig             = "config"
	CategoryDatabase           = "database"
)

// portTable is the deterministic category→port assignment (spec §3,
// CategoryAssignment): fixed at build time, total over BuiltinCategories,
// so the stdio proxy and supervisor agree on ports without discovery.
// The ports form one contiguous block, 30440-30453.
var portTable = map[string]uint16{
	CategoryFilesystem:         30440,
	CategoryTerminal:           30441,
	CategoryProcess:            30442,
	CategoryIntrospection:      30443,
	CategoryPrompt:             30444,
	CategoryReasoner:           30445,
	CategorySequentialThinking: 30446,
	CategoryClaudeAgent:        30447,
	CategoryCandleAgent:        30448,
	CategoryCitescrape:         30449,
	CategoryGit:                30450,
	CategoryGithub:             30451,
	CategoryConfig:             30452,
	CategoryDatabase:           30453,
}

// BuiltinCategories lists every category the gateway knows about, in a
// stable order (used for --list-categories and for iterating the
// supervisor's fleet deterministically).
var BuiltinCategories = []string{
	CategoryFilesystem,
	CategoryTerminal,
	CategoryProcess,
	CategoryIntrospection,
	CategoryPrompt,
	CategoryReasoner,
	CategorySequentialThinking,
	CategoryClaudeAgent,
	CategoryCandleAgent,
	CategoryCitescrape,
	CategoryGit,
	CategoryGithub,
	CategoryConfig,
	CategoryDatabase,
}

// Port returns the fixed port for category, and whether it is known.
func Port(category string) (uint16, bool) {
	p, ok := portTable[category]
	return p, ok
}

// Binary returns the PATH-resolvable binary name for category, following
// the kodegen-<category> naming convention.
func Binary(category string) string {
	return "kodegen-" + category
}
