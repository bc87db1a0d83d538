package prompt

import (
	"fmt"
	"strings"

	"doc-qa-be/pkg/llm"
	"doc-qa-be/pkg/store"
)

// DefaultBudget bounds the assembled prompt in characters. Characters
// rather than tokens keeps the limit provider-agnostic; it is a coarse
// ceiling, not a token estimate.
const DefaultBudget = 12000

const systemHeader = `You are a document question-answering assistant. Answer strictly from the numbered context passages below. Cite the passages you used with bracketed markers like [1] or [2]. If the context does not contain the answer, say you do not know. Do not invent citations.`

const noContextHeader = `You are a document question-answering assistant. No relevant context passages were found for this question. Say that you could not find relevant information in the available documents, and answer only from general knowledge if clearly marked as such.`

// Assembler builds the chat history sent to the generation model while
// keeping the total size under a character budget. Overflow resolution
// order: oldest history turns first, then lowest-scoring passages. The
// question itself is never dropped.
type Assembler struct {
	budget int
}

func NewAssembler(budget int) *Assembler {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Assembler{budget: budget}
}

func (a *Assembler) Budget() int {
	return a.budget
}

// Build assembles the prompt. The returned passages are the ones that
// actually made it into the context, in marker order: marker [n] refers
// to returned passage n-1.
func (a *Assembler) Build(question string, passages []store.Passage, history []store.Turn) ([]llm.Message, []store.Passage) {
	kept := make([]store.Passage, len(passages))
	copy(kept, passages)
	keptHistory := make([]store.Turn, len(history))
	copy(keptHistory, history)

	for {
		size := a.size(question, kept, keptHistory)
		if size <= a.budget {
			break
		}
		if len(keptHistory) > 0 {
			keptHistory = keptHistory[1:]
			continue
		}
		if len(kept) > 0 {
			// Passages arrive best first, so the tail is cheapest to lose
			kept = kept[:len(kept)-1]
			continue
		}
		break
	}

	messages := []llm.Message{
		{Role: "system", Content: renderSystem(kept)},
	}
	for _, turn := range keptHistory {
		messages = append(messages,
			llm.Message{Role: "user", Content: turn.Question},
			llm.Message{Role: "assistant", Content: turn.Answer},
		)
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})

	return messages, kept
}

func (a *Assembler) size(question string, passages []store.Passage, history []store.Turn) int {
	size := len(renderSystem(passages)) + len(question)
	for _, turn := range history {
		size += len(turn.Question) + len(turn.Answer)
	}
	return size
}

func renderSystem(passages []store.Passage) string {
	if len(passages) == 0 {
		return noContextHeader
	}

	var sb strings.Builder
	sb.WriteString(systemHeader)
	sb.WriteString("\n\nContext passages:\n")
	for i, p := range passages {
		sb.WriteString(fmt.Sprintf("\n[%d] (%s", i+1, p.Filename))
		if p.PageNumber != nil {
			sb.WriteString(fmt.Sprintf(", page %d", *p.PageNumber))
		}
		sb.WriteString(")\n")
		sb.WriteString(p.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
