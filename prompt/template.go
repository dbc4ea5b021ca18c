// Package prompt renders agent prompt templates against assembled run
// context. Substitution is a simple single-pass replacement over a fixed,
// small placeholder vocabulary; templates are validated up front and
// rejected with a structured problem list instead of silently producing a
// malformed prompt.
package prompt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Placeholder tokens recognized in task templates.
const (
	TokenUserInput    = "USER_INPUT"
	TokenAgentName    = "AGENT_NAME"
	TokenRoleTitle    = "ROLE_TITLE"
	TokenRoleCategory = "ROLE_CATEGORY"
	TokenStepNumber   = "STEP_NUMBER"
	TokenTotalSteps   = "TOTAL_STEPS"
)

var (
	placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)
	braceRunRe    = regexp.MustCompile(`\{[^{}]*\}`)
	tokenRe       = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	agentRespRe   = regexp.MustCompile(`^AGENT_([0-9]+)_RESPONSE$`)
	agentLooseRe  = regexp.MustCompile(`^AGENT_(.*)_RESPONSE$`)
)

var simpleTokens = map[string]bool{
	TokenUserInput:    true,
	TokenAgentName:    true,
	TokenRoleTitle:    true,
	TokenRoleCategory: true,
	TokenStepNumber:   true,
	TokenTotalSteps:   true,
}

// ProblemCode classifies a template validation problem.
type ProblemCode string

const (
	ProblemMissingUserInput   ProblemCode = "MISSING_USER_INPUT"
	ProblemUnbalancedBraces   ProblemCode = "UNBALANCED_BRACES"
	ProblemBadAgentID         ProblemCode = "BAD_AGENT_ID"
	ProblemUnknownPlaceholder ProblemCode = "UNKNOWN_PLACEHOLDER"
)

// Problem is one template validation finding.
type Problem struct {
	Code    ProblemCode `json:"code"`
	Message string      `json:"message"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.Code, p.Message)
}

// Validate checks a task template against the placeholder grammar and
// returns all problems found. An empty slice means the template is
// well-formed and substitution over it is total.
func Validate(template string) []Problem {
	var problems []Problem

	if !bracesBalanced(template) {
		problems = append(problems, Problem{
			Code:    ProblemUnbalancedBraces,
			Message: "template contains unbalanced braces",
		})
	}

	hasUserInput := false
	for _, run := range braceRunRe.FindAllString(template, -1) {
		token := run[1 : len(run)-1]
		if !tokenRe.MatchString(token) {
			problems = append(problems, Problem{
				Code:    ProblemUnknownPlaceholder,
				Message: fmt.Sprintf("malformed placeholder %s", run),
			})
			continue
		}
		if token == TokenUserInput {
			hasUserInput = true
		}
		if simpleTokens[token] || agentRespRe.MatchString(token) {
			continue
		}
		if lm := agentLooseRe.FindStringSubmatch(token); lm != nil {
			problems = append(problems, Problem{
				Code:    ProblemBadAgentID,
				Message: fmt.Sprintf("agent response placeholder {%s} has non-numeric id %q", token, lm[1]),
			})
			continue
		}
		problems = append(problems, Problem{
			Code:    ProblemUnknownPlaceholder,
			Message: fmt.Sprintf("unknown placeholder {%s}", token),
		})
	}

	if !hasUserInput {
		problems = append(problems, Problem{
			Code:    ProblemMissingUserInput,
			Message: "template does not contain the {USER_INPUT} placeholder",
		})
	}

	return problems
}

// AgentRefs returns the distinct agent ids referenced by
// {AGENT_<id>_RESPONSE} placeholders, in order of first appearance.
func AgentRefs(template string) []int {
	seen := make(map[int]bool)
	var ids []int
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		rm := agentRespRe.FindStringSubmatch(m[1])
		if rm == nil {
			continue
		}
		id, err := strconv.Atoi(rm[1])
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// bracesBalanced reports whether every '{' is closed before the next one
// opens and no '}' appears unopened. Placeholders do not nest.
func bracesBalanced(s string) bool {
	open := false
	for _, r := range s {
		switch r {
		case '{':
			if open {
				return false
			}
			open = true
		case '}':
			if !open {
				return false
			}
			open = false
		}
	}
	return !open
}

// substitute replaces every placeholder in template using the given
// resolver. The resolver is total for validated templates.
func substitute(template string, resolve func(token string) string) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		token := strings.Trim(match, "{}")
		return resolve(token)
	})
}
