package bot

import (
	"testing"
	"time"
)

func TestTriggerStrip(t *testing.T) {
	m := newTriggerMatcher("assist_main_bot")

	tests := []struct {
		in      string
		want    string
		matched bool
	}{
		{"бот скільки буде 2+2", "скільки буде 2+2", true},
		{"Бот, скільки буде 2+2", "скільки буде 2+2", true},
		{"gpt explain this", "explain this", true},
		{"@assist_main_bot hi", "hi", true},
		{"bot: переклади", "переклади", true},
		{"боти вже не ті", "боти вже не ті", false},
		{"робот питання", "робот питання", false},
		{"просто текст", "просто текст", false},
	}
	for _, tt := range tests {
		got, matched := m.Strip(tt.in)
		if matched != tt.matched {
			t.Errorf("Strip(%q) matched = %v, want %v", tt.in, matched, tt.matched)
		}
		if got != tt.want {
			t.Errorf("Strip(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTriggerStripKeepsCase(t *testing.T) {
	m := newTriggerMatcher("")
	got, matched := m.Strip("Бот Напиши Вірш")
	if !matched {
		t.Fatal("expected a trigger match")
	}
	if got != "Напиши Вірш" {
		t.Errorf("got %q, want original casing preserved", got)
	}
}

func TestReminderPhrase(t *testing.T) {
	tests := []struct {
		in     string
		phrase string
		ok     bool
	}{
		{"нагадай через 20 хв випити чай", "через 20 хв випити чай", true},
		{"Нагадай мені завтра о 9:00 зустріч", "завтра о 9:00 зустріч", true},
		{"remind me tomorrow at 9:00 standup", "tomorrow at 9:00 standup", true},
		{"нагадай", "", false},
		{"нагадайте колись", "", false},
		{"звичайне повідомлення", "", false},
	}
	for _, tt := range tests {
		phrase, ok := reminderPhrase(tt.in)
		if ok != tt.ok || phrase != tt.phrase {
			t.Errorf("reminderPhrase(%q) = (%q, %v), want (%q, %v)", tt.in, phrase, ok, tt.phrase, tt.ok)
		}
	}
}

func TestAlbumCache(t *testing.T) {
	c := newAlbumCache()

	if _, ok := c.Get("g1"); ok {
		t.Fatal("empty cache returned a caption")
	}

	c.Put("g1", "опиши ці фото")
	got, ok := c.Get("g1")
	if !ok || got != "опиши ці фото" {
		t.Fatalf("Get = (%q, %v)", got, ok)
	}

	// Expired entries are not returned.
	c.ttl = time.Nanosecond
	c.Put("g2", "x")
	time.Sleep(time.Millisecond)
	if _, ok := c.Get("g2"); ok {
		t.Fatal("expired entry returned")
	}
}
