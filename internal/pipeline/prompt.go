package pipeline

import (
	"fmt"
	"strings"

	"github.com/okrdocs/docqa/internal/repository"
	"github.com/okrdocs/docqa/internal/reranker"
)

// defaultSystemPrompt keeps answers grounded in the supplied passages.
const defaultSystemPrompt = `You are a document question-answering assistant. Answer using only the provided source passages. If the passages do not contain the answer, say that the information is not available. When the question continues an earlier exchange, use the prior conversation as context.`

// buildPrompt constructs the generation prompt: prior turns for the session
// in chronological order, the selected passages (each truncated to
// maxExcerptChars), then the question. The structure is deterministic for a
// given selection and history.
func buildPrompt(question string, selection []reranker.ScoredCandidate, history []*repository.Turn, maxExcerptChars int) string {
	var sb strings.Builder

	if len(history) > 0 {
		sb.WriteString("## Conversation History\n")
		sb.WriteString("(Previous exchanges in this session for context)\n\n")
		for i, turn := range history {
			sb.WriteString(fmt.Sprintf("Question %d: %s\n", i+1, turn.Question))
			sb.WriteString(fmt.Sprintf("Answer %d: %s\n", i+1, turn.Answer))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Context Documents\n\n")
	for i, c := range selection {
		sb.WriteString(fmt.Sprintf("[Doc %d] (Source: %s)\n", i+1, c.SourceID))
		sb.WriteString(truncate(c.Content, maxExcerptChars))
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Question\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	// Direct answer prompt (no chain-of-thought to keep responses concise)
	sb.WriteString("## Answer (be brief and direct)\n")

	return sb.String()
}

// truncate cuts s to at most n bytes. Passages are plain extracted text;
// a mid-rune cut at worst mangles one trailing character.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
