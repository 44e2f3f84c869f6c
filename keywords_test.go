package tracker

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		domain   string
		expected string
	}{
		{
			name:     "platform suffix stripped and capped at four tokens",
			title:    "Building REST APIs with Node.js and Express - YouTube",
			domain:   "youtube.com",
			expected: "building rest apis node",
		},
		{
			name:     "notification count stripped",
			title:    "(3) Async Rust Explained - YouTube",
			domain:   "youtube.com",
			expected: "async rust",
		},
		{
			name:     "pipe separator",
			title:    "Writing a Lexer in Go | Medium",
			domain:   "medium.com",
			expected: "writing lexer",
		},
		{
			name:     "no platform suffix",
			title:    "PostgreSQL Connection Pooling Deep Dive",
			domain:   "example.com",
			expected: "postgresql connection pooling deep",
		},
		{
			name:     "accents transliterated",
			title:    "Café Systèmes Distribués",
			domain:   "example.fr",
			expected: "cafe systemes distribues",
		},
		{
			name:     "single meaningful token is too weak",
			title:    "Home - Facebook",
			domain:   "facebook.com",
			expected: "",
		},
		{
			name:     "stop words and short tokens only",
			title:    "The Best of It",
			domain:   "example.com",
			expected: "",
		},
		{
			name:     "numeric tokens dropped",
			title:    "2024 12345 Kubernetes Operators",
			domain:   "example.com",
			expected: "kubernetes operators",
		},
		{
			name:     "empty title",
			title:    "",
			domain:   "example.com",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractKeywords(tt.title, tt.domain)
			if got != tt.expected {
				t.Errorf("ExtractKeywords(%q) = %q, want %q", tt.title, got, tt.expected)
			}
		})
	}
}

func TestCleanQuery(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"how to learn golang channels", "learn golang channels"},
		{"what is docker tutorial", "docker"},
		{"how do i center a div", "center a div"},
		{"rust guide", "rust"},
		{"memory arenas in python", "memory arenas"},
		{"plain query", "plain query"},
		{"MIXED Case Query", "mixed case query"},
		{"", ""},
	}

	for _, tt := range tests {
		got := CleanQuery(tt.raw)
		if got != tt.expected {
			t.Errorf("CleanQuery(%q) = %q, want %q", tt.raw, got, tt.expected)
		}
	}
}

// stubGenerator is a canned TextGenerator for tests. It records the prompts
// it receives.
type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func TestExtractWithAssist(t *testing.T) {
	ctx := context.Background()
	title := "ESP32 WiFi Setup Guide - YouTube"

	t.Run("AI response used verbatim", func(t *testing.T) {
		tr := New(Config{FetchTitles: false}, &stubGenerator{response: "esp32 wifi embedded"}, nil, nil)
		got := tr.extractWithAssist(ctx, title, "youtube.com", "https://youtu.be/xyz")
		if got != "esp32 wifi embedded" {
			t.Errorf("got %q, want AI response", got)
		}
	})

	t.Run("NONE means no keywords", func(t *testing.T) {
		tr := New(Config{FetchTitles: false}, &stubGenerator{response: "NONE"}, nil, nil)
		if got := tr.extractWithAssist(ctx, title, "youtube.com", "https://youtu.be/xyz"); got != "" {
			t.Errorf("got %q, want empty for NONE response", got)
		}
	})

	t.Run("near-empty response means no keywords", func(t *testing.T) {
		tr := New(Config{FetchTitles: false}, &stubGenerator{response: "  a "}, nil, nil)
		if got := tr.extractWithAssist(ctx, title, "youtube.com", "https://youtu.be/xyz"); got != "" {
			t.Errorf("got %q, want empty for near-empty response", got)
		}
	})

	t.Run("provider error falls back to rules", func(t *testing.T) {
		tr := New(Config{FetchTitles: false}, &stubGenerator{err: errors.New("connection refused")}, nil, nil)
		got := tr.extractWithAssist(ctx, title, "youtube.com", "https://youtu.be/xyz")
		if got != "esp32 wifi setup guide" {
			t.Errorf("got %q, want rule-based fallback", got)
		}
	})

	t.Run("nil generator falls back to rules", func(t *testing.T) {
		tr := New(Config{FetchTitles: false}, nil, nil, nil)
		got := tr.extractWithAssist(ctx, title, "youtube.com", "https://youtu.be/xyz")
		if got != "esp32 wifi setup guide" {
			t.Errorf("got %q, want rule-based fallback", got)
		}
	})

	t.Run("long response truncated", func(t *testing.T) {
		long := strings.Repeat("keyword ", 40)
		tr := New(Config{FetchTitles: false}, &stubGenerator{response: long}, nil, nil)
		got := tr.extractWithAssist(ctx, title, "youtube.com", "https://youtu.be/xyz")
		if len([]rune(got)) > 100 {
			t.Errorf("response not truncated, got %d runes", len([]rune(got)))
		}
	})

	t.Run("empty title never calls the generator", func(t *testing.T) {
		gen := &stubGenerator{response: "should not be used"}
		tr := New(Config{FetchTitles: false}, gen, nil, nil)
		if got := tr.extractWithAssist(ctx, "", "example.com", "https://example.com"); got != "" {
			t.Errorf("got %q, want empty", got)
		}
		if len(gen.prompts) != 0 {
			t.Errorf("generator called %d times for empty title", len(gen.prompts))
		}
	})
}

func TestOptimizeQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("AI rewrite used", func(t *testing.T) {
		tr := New(Config{FetchTitles: false}, &stubGenerator{response: "esp32 wifi driver"}, nil, nil)
		if got := tr.optimizeQuery(ctx, "esp32 wifi setup guide"); got != "esp32 wifi driver" {
			t.Errorf("got %q, want AI rewrite", got)
		}
	})

	t.Run("error keeps original keywords", func(t *testing.T) {
		tr := New(Config{FetchTitles: false}, &stubGenerator{err: errors.New("timeout")}, nil, nil)
		if got := tr.optimizeQuery(ctx, "esp32 wifi setup guide"); got != "esp32 wifi setup guide" {
			t.Errorf("got %q, want original keywords", got)
		}
	})

	t.Run("empty response keeps original keywords", func(t *testing.T) {
		tr := New(Config{FetchTitles: false}, &stubGenerator{response: "  "}, nil, nil)
		if got := tr.optimizeQuery(ctx, "esp32 wifi setup guide"); got != "esp32 wifi setup guide" {
			t.Errorf("got %q, want original keywords", got)
		}
	})

	t.Run("empty keywords skip the generator", func(t *testing.T) {
		gen := &stubGenerator{response: "should not be used"}
		tr := New(Config{FetchTitles: false}, gen, nil, nil)
		if got := tr.optimizeQuery(ctx, ""); got != "" {
			t.Errorf("got %q, want empty", got)
		}
		if len(gen.prompts) != 0 {
			t.Errorf("generator called %d times for empty keywords", len(gen.prompts))
		}
	})
}
