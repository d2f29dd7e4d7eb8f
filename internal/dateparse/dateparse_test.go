package dateparse

import (
	"context"
	"testing"
	"time"

	"github.com/example/assistbot/internal/ai"
	"github.com/example/assistbot/pkg/models"
)

type scriptedProvider struct {
	reply string
}

func (p *scriptedProvider) GenerateStream(ctx context.Context, _ []models.MessageTurn, _ models.Settings) (<-chan ai.Chunk, error) {
	ch := make(chan ai.Chunk, 1)
	ch <- ai.Chunk{Text: p.reply}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) Transcribe(context.Context, string, string) string { return "" }

func (p *scriptedProvider) AnalyzeImage(context.Context, string, string, []models.MessageTurn, models.Settings) (<-chan ai.Chunk, error) {
	return nil, nil
}

func (p *scriptedProvider) ValidateKey(context.Context, string) bool { return true }

func fixedParser(provider ai.Provider, now time.Time) *LLMParser {
	p := New(provider)
	p.now = func() time.Time { return now }
	return p
}

func TestParseRelativePhrase(t *testing.T) {
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	p := fixedParser(nil, now)

	tests := []struct {
		phrase string
		want   time.Time
	}{
		{"через 10 хвилин", now.Add(10 * time.Minute)},
		{"через 2 години", now.Add(2 * time.Hour)},
		{"через 30 сек", now.Add(30 * time.Second)},
		{"через 5 min", now.Add(5 * time.Minute)},
	}
	for _, tt := range tests {
		got, err := p.Parse(context.Background(), tt.phrase, "UTC")
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.phrase, err)
		}
		if !got.Equal(tt.want) {
			t.Fatalf("Parse(%q) = %v, want %v", tt.phrase, got, tt.want)
		}
	}
}

func TestParseClockPrefersFuture(t *testing.T) {
	kyiv, err := time.LoadLocation("Europe/Kyiv")
	if err != nil {
		t.Fatal(err)
	}
	// 14:00 local time.
	now := time.Date(2030, 6, 1, 11, 0, 0, 0, time.UTC)
	p := fixedParser(nil, now)

	// 15:00 is still ahead today.
	got, err := p.Parse(context.Background(), "о 15:00", "Europe/Kyiv")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2030, 6, 1, 15, 0, 0, 0, kyiv).UTC()
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// 9:00 already passed; prefer-future rolls to tomorrow.
	got, err = p.Parse(context.Background(), "9:00", "Europe/Kyiv")
	if err != nil {
		t.Fatal(err)
	}
	want = time.Date(2030, 6, 2, 9, 0, 0, 0, kyiv).UTC()
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseTomorrowClock(t *testing.T) {
	now := time.Date(2030, 6, 1, 8, 0, 0, 0, time.UTC)
	p := fixedParser(nil, now)

	got, err := p.Parse(context.Background(), "завтра о 7:30", "UTC")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2030, 6, 2, 7, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseFallsBackToModel(t *testing.T) {
	now := time.Date(2030, 6, 1, 8, 0, 0, 0, time.UTC)
	p := fixedParser(&scriptedProvider{reply: "2030-01-01T09:00:00Z"}, now)

	got, err := p.Parse(context.Background(), "субота 15:00", "Europe/Kyiv")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("got %v", got)
	}
}

func TestParseModelChatter(t *testing.T) {
	now := time.Date(2030, 6, 1, 8, 0, 0, 0, time.UTC)
	p := fixedParser(&scriptedProvider{reply: "The instant is 2030-07-04T10:00:00Z."}, now)

	got, err := p.Parse(context.Background(), "на день незалежності США о 13:00", "Europe/Kyiv")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2030, 7, 4, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("got %v", got)
	}
}

func TestParseUnusableReply(t *testing.T) {
	p := fixedParser(&scriptedProvider{reply: "no idea"}, time.Now())
	if _, err := p.Parse(context.Background(), "колись потім", "UTC"); err == nil {
		t.Fatal("expected error for unparseable phrase")
	}
}
