package research

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools"

	"github.com/mikeboe/research-crew/pkg/clients"
	"github.com/mikeboe/research-crew/pkg/config"
)

// Role keys. Each stage is bound to one role.
const (
	RoleStrategist  = "plan"
	RoleResearcher  = "research"
	RoleSynthesizer = "synthesize"
)

// Role is a persona plus the completion settings and tools it works with.
// Roles are built once and shared read-only between runs.
type Role struct {
	Key             string
	Name            string
	Goal            string
	Persona         string
	Options         clients.Options
	Tools           []tools.Tool
	AllowDelegation bool
	CacheEnabled    bool
}

// SystemPrompt introduces the role to the completion backend.
func (r Role) SystemPrompt() string {
	return fmt.Sprintf("You are %s. %s\nYour personal goal is: %s", r.Name, r.Persona, r.Goal)
}

// Tool returns the role's tool with the given name.
func (r Role) Tool(name string) (tools.Tool, bool) {
	for _, t := range r.Tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// DefaultRoles returns the strategist, researcher and synthesizer. The
// researcher is the only role with tools and caching, and the only one
// without completion options since it never calls the backend.
func DefaultRoles(opts clients.Options, search tools.Tool) map[string]Role {
	researcherTools := []tools.Tool{}
	if search != nil {
		researcherTools = append(researcherTools, search)
	}

	return map[string]Role{
		RoleStrategist: {
			Key:  RoleStrategist,
			Name: "Chief Research Strategist",
			Goal: "Create a comprehensive, step-by-step research plan to answer a complex user goal.",
			Persona: "You are a master strategist, an expert in breaking down complex problems. " +
				"You analyze a user's high-level goal and produce a perfect, " +
				"logical, and efficient research plan for your team to execute. " +
				"Your plan is the blueprint for success.",
			Options: opts,
		},
		RoleResearcher: {
			Key:  RoleResearcher,
			Name: "Expert Web Researcher",
			Goal: "Execute individual research tasks by finding the best information on the web.",
			Persona: "You are a world-class researcher. You are given a specific research query " +
				"and your job is to use your 'Advanced Web Search' tool to find the most " +
				"relevant, high-quality, and factual information. You are meticulous and " +
				"only return facts.",
			Tools:        researcherTools,
			CacheEnabled: true,
		},
		RoleSynthesizer: {
			Key:  RoleSynthesizer,
			Name: "Lead Report Synthesizer",
			Goal: "Write a final, comprehensive, and well-structured report based on the research findings.",
			Persona: "You are an expert editor and writer. You are given a collection of research snippets, " +
				"facts, and sources. Your job is to synthesize this information into a " +
				"flawless, professional, and easy-to-read report. You MUST only use the " +
				"information provided and you MUST cite your sources.",
			Options: opts,
		},
	}
}

// ApplyRoleOverrides replaces non-empty texts of the named roles. Unknown keys
// are an error so that typos in the roles file do not go unnoticed.
func ApplyRoleOverrides(roles map[string]Role, overrides map[string]config.RoleOverride) (map[string]Role, error) {
	out := make(map[string]Role, len(roles))
	for k, r := range roles {
		out[k] = r
	}
	for key, o := range overrides {
		r, ok := out[key]
		if !ok {
			return nil, fmt.Errorf("unknown role %q in overrides", key)
		}
		if s := strings.TrimSpace(o.Name); s != "" {
			r.Name = s
		}
		if s := strings.TrimSpace(o.Goal); s != "" {
			r.Goal = s
		}
		if s := strings.TrimSpace(o.Persona); s != "" {
			r.Persona = s
		}
		out[key] = r
	}
	return out, nil
}
