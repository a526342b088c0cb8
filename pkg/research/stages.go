package research

import (
	"fmt"
	"strings"
)

// Stage names, in execution order.
const (
	StagePlan       = "plan"
	StageResearch   = "research"
	StageSynthesize = "synthesize"
)

// Stage is one step of a run. Description may reference {goal}.
type Stage struct {
	Name           string
	Role           string
	DependsOn      string
	Description    string
	ExpectedOutput string
}

// Prompt renders the task text for goal with the dependency output as context.
func (s Stage) Prompt(goal, context string) string {
	var b strings.Builder
	b.WriteString(strings.ReplaceAll(s.Description, "{goal}", goal))
	if s.ExpectedOutput != "" {
		b.WriteString("\n\nThis is the expected criteria for your final answer: ")
		b.WriteString(s.ExpectedOutput)
	}
	if context != "" {
		b.WriteString("\n\nThis is the context you're working with:\n")
		b.WriteString(context)
	}
	return b.String()
}

// DefaultStages returns Plan, Research and Synthesize. Only Plan and
// Synthesize call the completion backend; Research is deterministic.
func DefaultStages() []Stage {
	return []Stage{
		{
			Name: StagePlan,
			Role: RoleStrategist,
			Description: "1. Analyze the user's high-level research goal: '{goal}'.\n" +
				"2. Create a step-by-step research plan. This plan should be a " +
				"list of 3-5 specific, targeted search queries for the researcher to execute.\n" +
				"3. Your final output MUST be JUST the list of queries, " +
				"one query per line. Do not add any other text.",
			ExpectedOutput: "A newline-separated list of 3-5 specific search queries.",
		},
		{
			// No prompt: the engine runs the search tool once per planned
			// query and collates the results itself.
			Name:      StageResearch,
			Role:      RoleResearcher,
			DependsOn: StagePlan,
		},
		{
			Name:      StageSynthesize,
			Role:      RoleSynthesizer,
			DependsOn: StageResearch,
			Description: "1. Take the collated research findings from the researcher.\n" +
				"2. Analyze the user's original goal: '{goal}'.\n" +
				"3. Write a comprehensive, professional report that fully answers the user's goal.\n" +
				"4. The report must be well-structured, with an introduction, " +
				"bulleted key findings, and a conclusion.\n" +
				"5. **CRITICAL:** You MUST only use the information in the findings and you MUST cite " +
				"your sources. Format citations like [Source: http://example.com].",
			ExpectedOutput: "A comprehensive, well-structured report with citations.",
		},
	}
}

// validateStages checks that names are unique and every dependency names an
// earlier stage.
func validateStages(stages []Stage) error {
	if len(stages) == 0 {
		return fmt.Errorf("no stages configured")
	}
	seen := make(map[string]bool, len(stages))
	for _, s := range stages {
		if s.Name == "" {
			return fmt.Errorf("stage without a name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate stage %q", s.Name)
		}
		if s.DependsOn != "" && !seen[s.DependsOn] {
			return fmt.Errorf("stage %q depends on %q, which does not run before it", s.Name, s.DependsOn)
		}
		seen[s.Name] = true
	}
	return nil
}
