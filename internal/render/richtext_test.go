package render

import (
	"strings"
	"testing"
)

func TestToTelegramHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "this is **bold** text", "this is <b>bold</b> text"},
		{"italic", "an __italic__ word", "an <i>italic</i> word"},
		{"heading_md", "## Заголовок\nтіло", "<b>Заголовок</b>\nтіло"},
		{"heading_html", "<h2>Title</h2>body", "<b>Title</b>\nbody"},
		{"list", "<ul><li>one</li><li>two</li></ul>", "• one\n• two"},
		{"paragraphs", "<p>a</p><p>b</p>", "a\n\nb"},
		{"doc_tags", "<!DOCTYPE html><html><body>hi</body></html>", "hi"},
		{"inline_code", "use `x < y` here", "use <code>x &lt; y</code> here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToTelegramHTML(tt.in); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToTelegramHTMLFencedCode(t *testing.T) {
	in := "before\n```go\nfmt.Println(\"<hi>\")\n```\nafter"
	got := ToTelegramHTML(in)
	if !strings.Contains(got, "<pre>fmt.Println(&#34;&lt;hi&gt;&#34;)</pre>") {
		t.Fatalf("fenced block not normalized: %q", got)
	}
	if strings.Contains(got, "```") {
		t.Fatalf("fence markers left behind: %q", got)
	}
}

func TestStripLanguageToken(t *testing.T) {
	text, code := StripLanguageToken("__SET_LANGUAGE:en__Sure, switching.")
	if text != "Sure, switching." || code != "en" {
		t.Fatalf("got %q, %q", text, code)
	}

	text, code = StripLanguageToken("no token here")
	if text != "no token here" || code != "" {
		t.Fatalf("got %q, %q", text, code)
	}

	// Token can sit anywhere in the fragment; last one wins.
	text, code = StripLanguageToken("a __SET_LANGUAGE:uk__ b __SET_LANGUAGE:pl__ c")
	if code != "pl" || strings.Contains(text, "SET_LANGUAGE") {
		t.Fatalf("got %q, %q", text, code)
	}
}

func TestSplitMessagePrefersParagraphs(t *testing.T) {
	text := strings.Repeat("a", 60) + "\n\n" + strings.Repeat("b", 60)
	parts := SplitMessage(text, 80)
	if len(parts) != 2 {
		t.Fatalf("parts = %d: %q", len(parts), parts)
	}
	if parts[0] != strings.Repeat("a", 60) || parts[1] != strings.Repeat("b", 60) {
		t.Fatalf("unexpected split: %q", parts)
	}
}

func TestSplitMessageSentenceAndWord(t *testing.T) {
	text := "First sentence. Second sentence that is a bit longer here"
	parts := SplitMessage(text, 20)
	if parts[0] != "First sentence." {
		t.Fatalf("expected sentence split, got %q", parts[0])
	}
	for _, p := range parts {
		if len([]rune(p)) > 20 {
			t.Fatalf("part over limit: %q", p)
		}
	}
}

func TestSplitMessageHardCut(t *testing.T) {
	text := strings.Repeat("я", 100) // no boundaries at all
	parts := SplitMessage(text, 40)
	if len(parts) != 3 {
		t.Fatalf("parts = %d", len(parts))
	}
	for _, p := range parts {
		if len([]rune(p)) > 40 {
			t.Fatalf("part over limit: %d", len([]rune(p)))
		}
	}
	if strings.Join(parts, "") != text {
		t.Fatal("hard cut lost content")
	}
}

func TestSplitMessageUnderLimit(t *testing.T) {
	parts := SplitMessage("short", 4000)
	if len(parts) != 1 || parts[0] != "short" {
		t.Fatalf("unexpected parts: %q", parts)
	}
}
