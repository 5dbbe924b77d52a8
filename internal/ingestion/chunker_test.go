package ingestion

import (
	"strings"
	"testing"
)

func TestNewChunker_Defaults(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{})

	if chunker.config.TargetWords != 256 {
		t.Errorf("expected default TargetWords 256, got %d", chunker.config.TargetWords)
	}
	if chunker.config.MaxWords != 512 {
		t.Errorf("expected default MaxWords 512, got %d", chunker.config.MaxWords)
	}
}

func TestChunker_EmptyContent(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{})

	if chunks := chunker.Chunk(""); chunks != nil {
		t.Errorf("expected nil for empty content, got %v", chunks)
	}
	if chunks := chunker.Chunk("   "); chunks != nil {
		t.Errorf("expected nil for whitespace content, got %v", chunks)
	}
}

func TestChunker_Semantic(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{TargetWords: 50, MaxWords: 100, Overlap: 10})

	content := `# Introduction

This is the introduction paragraph with some content.

## Getting Started

Here is how you get started with the project.

### Installation

Run the following command to install.
`

	chunks := chunker.Chunk(content)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d has wrong index %d", i, chunk.Index)
		}
		if chunk.Content == "" {
			t.Errorf("chunk %d has empty content", i)
		}
	}
}

func TestChunker_PreservesCodeBlocks(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{TargetWords: 20, MaxWords: 100})

	content := `# Code Example

Here is some code:

` + "```go\nfunc main() {\n    fmt.Println(\"Hello\")\n}\n```" + `

And some more text after the code.
`

	chunks := chunker.Chunk(content)

	foundCode := false
	for _, chunk := range chunks {
		if strings.Contains(chunk.Content, "func main()") {
			foundCode = true
		}
	}
	if !foundCode {
		t.Error("code block was not preserved in any chunk")
	}
}

func TestChunker_SplitsOversizedParagraph(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{TargetWords: 10, MaxWords: 15})

	words := make([]string, 40)
	for i := range words {
		words[i] = "word."
	}
	content := strings.Join(words, " ")

	chunks := chunker.Chunk(content)
	if len(chunks) < 2 {
		t.Fatalf("expected an oversized paragraph to split into multiple chunks, got %d", len(chunks))
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"empty", "", 0},
		{"single sentence", "This is a sentence.", 1},
		{"multiple sentences", "First sentence. Second sentence. Third sentence.", 3},
		{"with exclamation", "Hello! How are you? I am fine.", 3},
		{"no ending punctuation", "This has no ending punctuation", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sentences := splitSentences(tt.input)
			if len(sentences) != tt.expected {
				t.Errorf("expected %d sentences, got %d: %v", tt.expected, len(sentences), sentences)
			}
		})
	}
}

func TestIsAbbreviation(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"Dr.", true},
		{"Mr.", true},
		{"e.g.", true},
		{"etc.", true},
		{"Hello.", false},
		{"sentence.", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := isAbbreviation(tt.input); result != tt.expected {
				t.Errorf("isAbbreviation(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIsListBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"dash list", "- item 1\n- item 2", true},
		{"asterisk list", "* item 1\n* item 2", true},
		{"plus list", "+ item 1\n+ item 2", true},
		{"numbered list", "1. First\n2. Second", true},
		{"paragraph", "This is a regular paragraph.", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := isListBlock(tt.input); result != tt.expected {
				t.Errorf("isListBlock(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}
