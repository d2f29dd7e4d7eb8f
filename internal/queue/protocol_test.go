package queue

import "testing"

func TestCarrierRoundTrip(t *testing.T) {
	caption := CarrierCaption(417)
	if caption != "task_id:417" {
		t.Fatalf("unexpected caption: %q", caption)
	}
	id, ok := ParseCarrier(caption)
	if !ok || id != 417 {
		t.Fatalf("ParseCarrier(%q) = %d, %v", caption, id, ok)
	}
}

func TestParseCarrierMalformed(t *testing.T) {
	cases := []string{
		"",
		"task_id:",
		"task_id:abc",
		"task_id: 12",
		"task_id:12 extra",
		"prefix task_id:12",
		"TASK_ID:12",
	}
	for _, caption := range cases {
		if _, ok := ParseCarrier(caption); ok {
			t.Fatalf("expected %q to be rejected", caption)
		}
	}
}

func TestURLClassification(t *testing.T) {
	tests := []struct {
		url    string
		direct bool
		helper bool
	}{
		{"https://x.com/a/status/1", true, false},
		{"https://twitter.com/a/status/1", true, false},
		{"https://www.youtube.com/watch?v=abc", true, false},
		{"https://tiktok.com/@a/video/1", false, true},
		{"https://www.instagram.com/reel/abc/", false, true},
		{"https://pin.it/abc", false, true},
		{"https://example.com/page", false, false},
		{"tiktok.com/@a/video/1", false, false}, // no scheme, not a link
	}
	for _, tt := range tests {
		if got := IsDirectURL(tt.url); got != tt.direct {
			t.Errorf("IsDirectURL(%q) = %v, want %v", tt.url, got, tt.direct)
		}
		if got := IsHelperURL(tt.url); got != tt.helper {
			t.Errorf("IsHelperURL(%q) = %v, want %v", tt.url, got, tt.helper)
		}
	}
}

func TestBotForURL(t *testing.T) {
	bot, ok := BotForURL("https://vm.tiktok.com/ZM123/")
	if !ok || bot != "SaveAsBot" {
		t.Fatalf("BotForURL tiktok = %q, %v", bot, ok)
	}
	bot, ok = BotForURL("https://pin.it/abc")
	if !ok || bot != "SavePinsBot" {
		t.Fatalf("BotForURL pinterest = %q, %v", bot, ok)
	}
	if _, ok := BotForURL("https://example.com"); ok {
		t.Fatal("unexpected route for unknown host")
	}
}

func TestExtractURL(t *testing.T) {
	got := ExtractURL("глянь https://tiktok.com/@a/video/1 будь ласка")
	if got != "https://tiktok.com/@a/video/1" {
		t.Fatalf("ExtractURL = %q", got)
	}
	if ExtractURL("без посилань") != "" {
		t.Fatal("expected empty result")
	}
}
