package planner

import (
	"context"
	"fmt"
	"strings"

	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/pkg/llm"
)

const (
	// MaxVariants caps how many expanded queries a single question fans
	// out into, the raw query included.
	MaxVariants = 3

	rewritePrompt = `Rewrite the following user question as a standalone search query. Resolve pronouns and references using the conversation so far. Reply with the rewritten query only, no explanation.

Conversation:
%s

Question: %s`

	expandPrompt = `Generate up to %d alternative phrasings of the following search query, one per line. Keep the same intent, vary terminology. Reply with the phrasings only.

Query: %s`
)

// Plan is the retrieval input produced from a raw question.
type Plan struct {
	// Query is the (possibly rewritten) primary search query.
	Query string
	// Variants holds every query to retrieve for, primary first.
	Variants []string
	// Rewritten reports whether the primary query differs from the raw question.
	Rewritten bool
}

// Planner prepares search queries ahead of retrieval. Every stage is best
// effort: a failed model call degrades to the raw question rather than
// failing the turn.
type Planner struct {
	provider llm.Provider
	logger   logger.ILogger
}

func New(provider llm.Provider, log logger.ILogger) *Planner {
	return &Planner{
		provider: provider,
		logger:   log,
	}
}

// Build produces the retrieval plan. history is the prior conversation
// rendered as alternating lines; it is only consulted when rewrite is on.
func (p *Planner) Build(ctx context.Context, question string, history []llm.Message, rewrite, expand bool) Plan {
	plan := Plan{
		Query:    question,
		Variants: []string{question},
	}

	if rewrite && p.provider != nil {
		if rewritten, ok := p.rewrite(ctx, question, history); ok {
			plan.Query = rewritten
			plan.Variants = []string{rewritten}
			plan.Rewritten = rewritten != question
		}
	}

	if expand && p.provider != nil {
		plan.Variants = p.expand(ctx, plan.Query, plan.Variants)
	}

	return plan
}

func (p *Planner) rewrite(ctx context.Context, question string, history []llm.Message) (string, bool) {
	if len(history) == 0 {
		// Nothing to resolve against
		return question, true
	}

	var sb strings.Builder
	for _, msg := range history {
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}

	prompt := fmt.Sprintf(rewritePrompt, sb.String(), question)
	out, err := p.provider.Generate(ctx, prompt, llm.WithTemperature(0.0))
	if err != nil {
		p.logger.Warn("Planner", "Query rewrite failed, using raw question", map[string]interface{}{"error": err.Error()})
		return question, true
	}

	rewritten := sanitizeLine(out)
	if rewritten == "" {
		return question, true
	}
	return rewritten, true
}

func (p *Planner) expand(ctx context.Context, query string, variants []string) []string {
	prompt := fmt.Sprintf(expandPrompt, MaxVariants-1, query)
	out, err := p.provider.Generate(ctx, prompt, llm.WithTemperature(0.7))
	if err != nil {
		p.logger.Warn("Planner", "Query expansion failed, using primary query only", map[string]interface{}{"error": err.Error()})
		return variants
	}

	seen := map[string]bool{}
	for _, v := range variants {
		seen[strings.ToLower(v)] = true
	}

	for _, line := range strings.Split(out, "\n") {
		if len(variants) >= MaxVariants {
			break
		}
		variant := sanitizeLine(line)
		if variant == "" || seen[strings.ToLower(variant)] {
			continue
		}
		seen[strings.ToLower(variant)] = true
		variants = append(variants, variant)
	}
	return variants
}

// sanitizeLine strips list markers and quotes a model tends to wrap
// generated queries in.
func sanitizeLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-*0123456789.) ")
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
