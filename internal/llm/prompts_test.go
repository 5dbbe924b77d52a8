package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeLLM struct {
	out string
	err error
}

func (f fakeLLM) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return f.out, f.err
}

func TestExpandQuery_UsesLLMOutput(t *testing.T) {
	client := fakeLLM{out: `"a paragraph about widgets"`}

	got := ExpandQuery(context.Background(), client, GenerateOptions{}, "widgets")
	if got != "a paragraph about widgets" {
		t.Errorf("expected trimmed quoted output, got %q", got)
	}
}

func TestExpandQuery_FallsBackToOriginalQueryOnError(t *testing.T) {
	client := fakeLLM{err: errors.New("oracle unavailable")}

	got := ExpandQuery(context.Background(), client, GenerateOptions{}, "widgets")
	if got != "widgets" {
		t.Errorf("expected fallback to original query, got %q", got)
	}
}

func TestExpandQuery_FallsBackOnEmptyOutput(t *testing.T) {
	client := fakeLLM{out: "   "}

	got := ExpandQuery(context.Background(), client, GenerateOptions{}, "widgets")
	if got != "widgets" {
		t.Errorf("expected fallback to original query for blank output, got %q", got)
	}
}

func TestLabelCluster_UsesLLMOutput(t *testing.T) {
	client := fakeLLM{out: "'Quarterly Budget Reports'"}

	got := LabelCluster(context.Background(), client, GenerateOptions{}, 2, "some chunk text")
	if got != "Quarterly Budget Reports" {
		t.Errorf("expected trimmed quoted label, got %q", got)
	}
}

func TestLabelCluster_FallsBackToClusterNumber(t *testing.T) {
	client := fakeLLM{err: errors.New("timeout")}

	got := LabelCluster(context.Background(), client, GenerateOptions{}, 3, "some chunk text")
	if got != "Cluster 3" {
		t.Errorf("expected fallback label, got %q", got)
	}
}

func TestLabelCluster_TruncatesInputText(t *testing.T) {
	var captured string
	client := capturingLLM{fn: func(prompt string) { captured = prompt }}

	longText := strings.Repeat("word ", 10000)
	LabelCluster(context.Background(), client, GenerateOptions{}, 1, longText)

	if len(captured) > labelTruncateBytes+500 {
		t.Errorf("expected prompt built from truncated text, got length %d", len(captured))
	}
}

type capturingLLM struct {
	fn func(prompt string)
}

func (c capturingLLM) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	c.fn(prompt)
	return "Label", nil
}

func TestSynthesizeFollowup_UsesLLMOutput(t *testing.T) {
	client := fakeLLM{out: "Does the file mention a budget?"}

	files := []FileSummary{{File: "a.md", Text: "content a"}, {File: "b.md", Text: "content b"}}
	got := SynthesizeFollowup(context.Background(), client, GenerateOptions{}, files, nil, 1)
	if got != "Does the file mention a budget?" {
		t.Errorf("unexpected question: %q", got)
	}
}

func TestSynthesizeFollowup_FallsBackOnError(t *testing.T) {
	client := fakeLLM{err: errors.New("oracle down")}

	files := []FileSummary{{File: "a.md", Text: "content a"}}
	got := SynthesizeFollowup(context.Background(), client, GenerateOptions{}, files, nil, 1)
	if got != genericFollowupFallback {
		t.Errorf("expected generic fallback, got %q", got)
	}
}

func TestSynthesizeFollowup_IncludesHistory(t *testing.T) {
	var captured string
	client := capturingLLM{fn: func(prompt string) { captured = prompt }}

	files := []FileSummary{{File: "a.md", Text: "content a"}}
	history := []ConversationTurn{{Question: "Is it recent?", Answer: "Yes"}}
	SynthesizeFollowup(context.Background(), client, GenerateOptions{}, files, history, 2)

	if !strings.Contains(captured, "Is it recent?") || !strings.Contains(captured, "Yes") {
		t.Errorf("expected prior Q/A in prompt, got: %s", captured)
	}
	if !strings.Contains(captured, "follow-up question #2") {
		t.Errorf("expected question number in prompt, got: %s", captured)
	}
}

func TestTruncateBytes(t *testing.T) {
	if got := TruncateBytes("hello", 100); got != "hello" {
		t.Errorf("expected unchanged short string, got %q", got)
	}
	if got := TruncateBytes("hello world", 5); got != "hello" {
		t.Errorf("expected 5-byte truncation, got %q", got)
	}
}

func TestTruncateBytes_DoesNotSplitMultibyteRune(t *testing.T) {
	s := "cafés" // 'é' is 2 bytes in UTF-8
	got := TruncateBytes(s, 4)
	for _, r := range got {
		if r == '�' {
			t.Fatalf("truncation split a multi-byte rune: %q", got)
		}
	}
}

func TestTrimQuoted(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"double quoted", `"hello"`, "hello"},
		{"single quoted", "'hello'", "hello"},
		{"whitespace padded", "  hello  ", "hello"},
		{"code fence", "```\nhello\n```", "hello"},
		{"nested quote and fence", "```\n\"hello\"\n```", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trimQuoted(tt.input); got != tt.want {
				t.Errorf("trimQuoted(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
