package prompt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/relabs-ai/agentchain/llm/tokenizer"
	"github.com/relabs-ai/agentchain/types"
)

// NoResponsePlaceholder is substituted for an upstream agent response that
// is not available. The ordering invariant makes this unreachable for
// well-formed pipelines; it exists so a defect upstream degrades to a
// visible marker instead of a failure.
const NoResponsePlaceholder = "(no response available)"

// Rendered is a fully instantiated prompt.
type Rendered struct {
	// Text is the final prompt with all placeholders substituted.
	Text string
	// EstimatedTokens is an advisory cost estimate; it is never enforced.
	EstimatedTokens int
	// Format is the output format the instructions section demands.
	Format types.OutputFormat
}

// Instantiator renders agent task templates against assembled context.
type Instantiator struct {
	counter     tokenizer.Tokenizer
	historyTail int
	logger      *zap.Logger
}

// NewInstantiator creates an Instantiator. A nil counter falls back to the
// character-based estimator.
func NewInstantiator(counter tokenizer.Tokenizer, logger *zap.Logger) *Instantiator {
	if counter == nil {
		counter = tokenizer.NewEstimator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instantiator{
		counter:     counter,
		historyTail: 5,
		logger:      logger.With(zap.String("component", "prompt_instantiator")),
	}
}

// WithHistoryTail sets how many trailing history entries the context
// section summarizes.
func (i *Instantiator) WithHistoryTail(n int) *Instantiator {
	if n >= 0 {
		i.historyTail = n
	}
	return i
}

// Render instantiates one agent's prompt. It rejects invalid templates
// with a TEMPLATE_INVALID error carrying every problem found; it never
// silently produces a prompt with unresolved placeholders.
func (i *Instantiator) Render(agent types.AgentSpec, pctx *Context) (*Rendered, error) {
	if problems := Validate(agent.Task.Template); len(problems) > 0 {
		msgs := make([]string, len(problems))
		for n, p := range problems {
			msgs[n] = p.String()
		}
		return nil, types.NewError(types.ErrTemplateInvalid,
			fmt.Sprintf("template for agent %d rejected: %s", agent.ID, strings.Join(msgs, "; "))).
			WithAgent(agent.ID)
	}

	var b strings.Builder
	i.writeRoleSection(&b, agent)
	i.writeContextSection(&b, agent, pctx)
	i.writeTaskSection(&b, agent, pctx)
	i.writeInstructionsSection(&b, agent)

	text := strings.TrimRight(b.String(), "\n") + "\n"

	est, err := i.counter.CountTokens(text)
	if err != nil {
		i.logger.Warn("token counting failed, using character estimate", zap.Error(err))
		est = len(text) / 4
	}

	i.logger.Debug("prompt rendered",
		zap.Int("agent_id", agent.ID),
		zap.Int("estimated_tokens", est),
	)

	return &Rendered{Text: text, EstimatedTokens: est, Format: agent.Task.OutputFormat}, nil
}

func (i *Instantiator) writeRoleSection(b *strings.Builder, agent types.AgentSpec) {
	b.WriteString("## Role\n")
	fmt.Fprintf(b, "You are %s", agent.Name)
	if agent.Role.Title != "" {
		fmt.Fprintf(b, ", %s", agent.Role.Title)
	}
	b.WriteString(".")
	if agent.Role.Category != "" {
		fmt.Fprintf(b, " Your work falls under: %s.", agent.Role.Category)
	}
	b.WriteString("\n\n")
}

func (i *Instantiator) writeContextSection(b *strings.Builder, agent types.AgentSpec, pctx *Context) {
	b.WriteString("## Context\n")

	wantsUserInput := false
	var upstream []int
	for _, src := range agent.ContextSources {
		switch src.Kind {
		case types.SourceUserInput:
			wantsUserInput = true
		case types.SourceAgentOutput:
			upstream = append(upstream, src.AgentID)
		}
	}
	sort.Ints(upstream)

	if wantsUserInput {
		fmt.Fprintf(b, "### User Request\n%s\n\n", pctx.UserInput)
	}
	for _, id := range upstream {
		name := pctx.AgentNames[id]
		if name == "" {
			name = fmt.Sprintf("Agent %d", id)
		}
		resp, ok := pctx.Response(id)
		if !ok {
			resp = NoResponsePlaceholder
		}
		fmt.Fprintf(b, "### Output of %s (agent %d)\n%s\n\n", name, id, resp)
	}

	if i.historyTail > 0 && len(pctx.History) > 0 {
		b.WriteString("### Progress So Far\n")
		tail := pctx.History
		if len(tail) > i.historyTail {
			tail = tail[len(tail)-i.historyTail:]
		}
		for _, h := range tail {
			fmt.Fprintf(b, "- %s: %s\n", h.AgentName, h.Status)
		}
		b.WriteString("\n")
	}
}

func (i *Instantiator) writeTaskSection(b *strings.Builder, agent types.AgentSpec, pctx *Context) {
	b.WriteString("## Task\n")
	b.WriteString(i.substituteAll(agent, pctx))
	b.WriteString("\n\n")
}

func (i *Instantiator) substituteAll(agent types.AgentSpec, pctx *Context) string {
	return substitute(agent.Task.Template, func(token string) string {
		switch token {
		case TokenUserInput:
			return pctx.UserInput
		case TokenAgentName:
			return agent.Name
		case TokenRoleTitle:
			return agent.Role.Title
		case TokenRoleCategory:
			return agent.Role.Category
		case TokenStepNumber:
			return strconv.Itoa(pctx.StepNumber)
		case TokenTotalSteps:
			return strconv.Itoa(pctx.TotalSteps)
		}
		if m := agentRespRe.FindStringSubmatch(token); m != nil {
			id, _ := strconv.Atoi(m[1])
			if resp, ok := pctx.Response(id); ok {
				return resp
			}
			return NoResponsePlaceholder
		}
		// Unreachable for validated templates.
		return ""
	})
}

var categoryGuidance = map[string]string{
	"analysis": "Ground every claim in the provided context; call out assumptions explicitly.",
	"planning": "Produce concrete, ordered steps with clear owners and dependencies.",
	"writing":  "Write for the end reader; keep terminology consistent with upstream outputs.",
	"review":   "Point at specific passages; distinguish defects from suggestions.",
}

var formatGuidance = map[types.OutputFormat]string{
	types.FormatJSON:     "Respond with valid JSON only. No prose, no code fences, no trailing commentary.",
	types.FormatMarkdown: "Respond in Markdown. Use headers and lists to structure the answer.",
	types.FormatText:     "Respond in plain text organized into short paragraphs.",
}

func (i *Instantiator) writeInstructionsSection(b *strings.Builder, agent types.AgentSpec) {
	b.WriteString("## Instructions\n")
	if inst := strings.TrimSpace(agent.Task.Instructions); inst != "" {
		b.WriteString(inst)
		b.WriteString("\n")
	}
	if g, ok := categoryGuidance[strings.ToLower(agent.Role.Category)]; ok {
		b.WriteString(g)
		b.WriteString("\n")
	}
	format := agent.Task.OutputFormat
	g, ok := formatGuidance[format]
	if !ok {
		g = formatGuidance[types.FormatText]
	}
	b.WriteString(g)
	b.WriteString("\n")
}
