package llm

import (
	"context"
	"fmt"
	"strings"
)

// Truncation budgets per spec §9 "Dynamic oracle outputs": fixed byte
// budgets applied to LLM inputs before prompting.
const (
	labelTruncateBytes    = 3000
	followupTruncateBytes = 2000

	// SummaryTruncateBytes bounds the per-file joined-chunk text the session
	// engine builds before handing it to SynthesizeFollowup, which applies
	// its own tighter per-file truncation on top.
	SummaryTruncateBytes = 6000
)

// TruncateBytes truncates s to at most n bytes without splitting a rune.
// Exported for callers (internal/session) building FileSummary text.
func TruncateBytes(s string, n int) string { return truncateBytes(s, n) }

// genericFollowupFallback is used when follow-up question synthesis fails.
const genericFollowupFallback = "Can you recall any more specific detail about the file — its topic, date, or where it came from?"

// ExpandQuery asks the LLM to enrich a short user query into one descriptive
// paragraph. On failure it falls back to the original query, per spec §4.2.1.
func ExpandQuery(ctx context.Context, client LLM, opts GenerateOptions, query string) string {
	prompt := fmt.Sprintf(
		"Rewrite the following short search query as one enriched paragraph that "+
			"elaborates on what the document being searched for might contain. "+
			"Output only the paragraph, no preamble, no quotes.\n\nQuery: %s", query)

	out, err := client.Generate(ctx, prompt, opts)
	if err != nil {
		return query
	}
	expanded := trimQuoted(out)
	if expanded == "" {
		return query
	}
	return expanded
}

// LabelCluster asks the LLM for a short descriptive phrase for one cluster's
// concatenated chunk text. On failure it falls back to "Cluster <id>", per
// spec §4.2.2.
func LabelCluster(ctx context.Context, client LLM, opts GenerateOptions, clusterID int, clusterText string) string {
	text := truncateBytes(clusterText, labelTruncateBytes)
	prompt := fmt.Sprintf(
		"Here is the concatenated text of several document excerpts that were "+
			"grouped together by topic:\n\n%s\n\n"+
			"Produce one short descriptive phrase (3-6 words) that names what these "+
			"excerpts have in common. Output only the phrase, no preamble, no quotes.", text)

	out, err := client.Generate(ctx, prompt, opts)
	if err != nil {
		return fmt.Sprintf("Cluster %d", clusterID)
	}
	label := trimQuoted(out)
	if label == "" {
		return fmt.Sprintf("Cluster %d", clusterID)
	}
	return label
}

// FileSummary pairs a file name with its joined, truncated chunk text for
// follow-up question synthesis.
type FileSummary struct {
	File string
	Text string
}

// ConversationTurn is one prior question/answer pair, for prompt context.
type ConversationTurn struct {
	Question string
	Answer   string
}

// SynthesizeFollowup asks the LLM to produce exactly one yes/no or
// multiple-choice question that would help disambiguate among the given
// files, given prior Q/A history. On failure it falls back to a fixed
// generic question, per spec §4.2.3.
func SynthesizeFollowup(ctx context.Context, client LLM, opts GenerateOptions, files []FileSummary, history []ConversationTurn, questionNumber int) string {
	var sb strings.Builder

	sb.WriteString("The user is trying to recall which of the following files they mean. ")
	sb.WriteString("Each file's content is summarized below (truncated).\n\n")
	for _, f := range files {
		sb.WriteString(fmt.Sprintf("File: %s\n%s\n\n", f.File, truncateBytes(f.Text, followupTruncateBytes)))
	}

	if len(history) > 0 {
		sb.WriteString("Prior questions and answers in this session:\n")
		for _, h := range history {
			sb.WriteString(fmt.Sprintf("Q: %s\nA: %s\n", h.Question, h.Answer))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf(
		"This will be follow-up question #%d. Write exactly one yes/no or "+
			"multiple-choice question that would best narrow down which file the "+
			"user means. Output only the question, no preamble, no quotes.",
		questionNumber))

	out, err := client.Generate(ctx, sb.String(), opts)
	if err != nil {
		return genericFollowupFallback
	}
	question := trimQuoted(out)
	if question == "" {
		return genericFollowupFallback
	}
	return question
}

// truncateBytes truncates s to at most n bytes, never splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// trimQuoted trims whitespace, surrounding quotes, and markdown code fences
// from an LLM response. Grounded on the teacher's LLMReranker response
// cleanup (internal/reranker/llm_reranker.go), generalized from JSON-fence
// stripping to the plain-text fallback/quote trimming spec §9 requires of
// every oracle output.
func trimQuoted(s string) string {
	s = strings.TrimSpace(s)

	if idx := strings.Index(s, "```"); idx != -1 {
		start := idx + 3
		if end := strings.Index(s[start:], "```"); end != -1 {
			s = s[start : start+end]
		}
	}
	s = strings.TrimSpace(s)

	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}

	return s
}
