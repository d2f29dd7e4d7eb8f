// Package dateparse resolves natural-language reminder phrases
// ("субота 15:00", "завтра о 9", "через 20 хвилин") to UTC instants.
// Phrases are interpreted in the user's timezone with a prefer-future
// policy. Simple relative and clock phrases resolve locally; anything
// else goes to the LLM, which is asked for a bare ISO-8601 UTC
// instant.
package dateparse

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/example/assistbot/internal/ai"
	"github.com/example/assistbot/pkg/models"
)

// Parser resolves a phrase to a UTC instant.
type Parser interface {
	Parse(ctx context.Context, phrase, timezone string) (time.Time, error)
}

// LLMParser is the default implementation: a deterministic fast path
// for trivial phrases, the user's provider for everything else.
type LLMParser struct {
	provider ai.Provider
	now      func() time.Time
}

// New creates a parser backed by the given provider.
func New(provider ai.Provider) *LLMParser {
	return &LLMParser{provider: provider, now: time.Now}
}

var (
	relativeRe = regexp.MustCompile(`(?i)^через\s+(\d+)\s*(хв|хвилин\w*|год|годин\w*|сек|секунд\w*|min|minute\w*|hour\w*|sec\w*|h|m|s)\.?$`)
	clockRe    = regexp.MustCompile(`^(?:(завтра|сьогодні|tomorrow|today)\s+)?(?:о|в|у|at)?\s*(\d{1,2})[:.](\d{2})$`)
	isoRe      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(?::\d{2})?(?:Z|[+-]\d{2}:\d{2})`)
)

// Parse resolves phrase in the given IANA zone and returns a UTC
// instant strictly in the future.
func (p *LLMParser) Parse(ctx context.Context, phrase, timezone string) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	phrase = strings.TrimSpace(phrase)
	now := p.now().In(loc)

	if t, ok := parseRelative(phrase, now); ok {
		return t.UTC(), nil
	}
	if t, ok := parseClock(phrase, now, loc); ok {
		return t.UTC(), nil
	}
	return p.parseWithModel(ctx, phrase, timezone, now)
}

func parseRelative(phrase string, now time.Time) (time.Time, bool) {
	m := relativeRe.FindStringSubmatch(phrase)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	unit := strings.ToLower(m[2])
	switch {
	case strings.HasPrefix(unit, "год"), strings.HasPrefix(unit, "hour"), unit == "h":
		return now.Add(time.Duration(n) * time.Hour), true
	case strings.HasPrefix(unit, "сек"), strings.HasPrefix(unit, "sec"), unit == "s":
		return now.Add(time.Duration(n) * time.Second), true
	default:
		return now.Add(time.Duration(n) * time.Minute), true
	}
}

func parseClock(phrase string, now time.Time, loc *time.Location) (time.Time, bool) {
	m := clockRe.FindStringSubmatch(strings.ToLower(phrase))
	if m == nil {
		return time.Time{}, false
	}
	hour, _ := strconv.Atoi(m[2])
	minute, _ := strconv.Atoi(m[3])
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	switch m[1] {
	case "завтра", "tomorrow":
		t = t.AddDate(0, 0, 1)
	default:
		// Prefer future: a clock time already past today means
		// tomorrow.
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
	}
	return t, true
}

func (p *LLMParser) parseWithModel(ctx context.Context, phrase, timezone string, now time.Time) (time.Time, error) {
	if p.provider == nil {
		return time.Time{}, fmt.Errorf("could not parse %q", phrase)
	}

	prompt := fmt.Sprintf(
		"Current local time: %s (timezone %s).\n"+
			"Resolve the reminder phrase below to a single instant. Interpret it in that timezone "+
			"and prefer the nearest future occurrence.\n"+
			"Phrase: %q\n"+
			"Reply with ONLY the instant as ISO-8601 UTC, e.g. 2030-01-01T09:00:00Z.",
		now.Format("Monday, 2006-01-02 15:04"), timezone, phrase)

	messages := []models.MessageTurn{
		{Role: models.RoleSystem, Content: "You convert natural-language dates to ISO-8601 UTC instants. Output only the instant."},
		{Role: models.RoleUser, Content: prompt},
	}

	stream, err := p.provider.GenerateStream(ctx, messages, models.DefaultSettings())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date phrase: %w", err)
	}
	var sb strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			return time.Time{}, fmt.Errorf("failed to parse date phrase: %w", chunk.Err)
		}
		sb.WriteString(chunk.Text)
	}

	raw := isoRe.FindString(sb.String())
	if raw == "" {
		return time.Time{}, fmt.Errorf("could not parse %q", phrase)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// Some models omit seconds; tolerate the short form.
		t, err = time.Parse("2006-01-02T15:04Z07:00", raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("model returned unusable instant %q", raw)
		}
	}
	return t.UTC(), nil
}
