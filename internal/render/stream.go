package render

import (
	"context"
	"log"
	"strings"

	"github.com/example/assistbot/internal/ai"
)

const (
	// Placeholder shown while the model warms up.
	placeholder = "⏳"
	// Cursor appended to intermediate edits for the typing illusion.
	cursor = " ▌"
	// Pagination threshold: past this the placeholder freezes and the
	// final body is delivered as multiple replies.
	messageLimit = 4000
	// Minimum growth between intermediate edits.
	editStep = 80

	truncationHint = "… (продовження нижче)"
)

// Sender is the outbound surface the renderer needs from the platform
// adapter. Errors from Edit are the platform's business (rate limits,
// unchanged text) and are swallowed by the renderer.
type Sender interface {
	SendReply(ctx context.Context, chatID int64, replyTo int, text string, htmlMode bool) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string, htmlMode bool) error
	Delete(ctx context.Context, chatID int64, messageID int) error
}

// Renderer incrementally edits a single chat message as model tokens
// arrive, bounded by the platform cap and a fixed edit cadence.
type Renderer struct {
	sender Sender
}

// New creates a renderer over the given sender.
func New(sender Sender) *Renderer {
	return &Renderer{sender: sender}
}

// Consume drains the stream into the chat. It returns the full
// aggregated text (language tokens stripped, no truncation) for the
// caller to append as the assistant turn, the last captured language
// code (or ""), and the stream error if one terminated generation.
func (r *Renderer) Consume(ctx context.Context, chatID int64, replyTo int, stream <-chan ai.Chunk) (string, string, error) {
	msgID, err := r.sender.SendReply(ctx, chatID, replyTo, placeholder, false)
	if err != nil {
		return "", "", err
	}

	var full strings.Builder
	language := ""
	lastRendered := 0
	overflow := false

	for chunk := range stream {
		if chunk.Err != nil {
			// Terminate: one final user-visible edit, no retries here.
			_ = r.sender.Edit(ctx, chatID, msgID, FormatError(chunk.Err), false)
			return full.String(), language, chunk.Err
		}

		text, code := StripLanguageToken(chunk.Text)
		if code != "" {
			language = code
		}
		full.WriteString(text)

		if overflow {
			continue
		}

		// A token split across fragments could slip through the
		// per-fragment strip; re-check the aggregate before showing it.
		visible, code := StripLanguageToken(full.String())
		if code != "" {
			language = code
		}

		if runeLen(visible) > messageLimit {
			// Freeze the placeholder and buffer the rest.
			frozen := SplitMessage(visible, messageLimit-runeLen(truncationHint)-1)[0]
			if err := r.sender.Edit(ctx, chatID, msgID, frozen+"\n"+truncationHint, false); err != nil {
				log.Printf("renderer: freeze edit failed: %v", err)
			}
			overflow = true
			continue
		}

		if runeLen(visible)-lastRendered >= editStep {
			// Rate limits and "message is not modified" are expected;
			// keep buffering either way.
			if err := r.sender.Edit(ctx, chatID, msgID, visible+cursor, false); err == nil {
				lastRendered = runeLen(visible)
			}
		}
	}

	final, code := StripLanguageToken(full.String())
	if code != "" {
		language = code
	}

	if final == "" {
		_ = r.sender.Delete(ctx, chatID, msgID)
		return final, language, nil
	}

	if !overflow && runeLen(final) <= messageLimit {
		r.editFinal(ctx, chatID, msgID, final)
		return final, language, nil
	}

	// Overflow delivery: drop the placeholder, send the body in parts.
	_ = r.sender.Delete(ctx, chatID, msgID)
	for i, part := range SplitMessage(final, messageLimit) {
		reply := replyTo
		if i > 0 {
			reply = 0
		}
		r.sendPart(ctx, chatID, reply, part)
	}
	return final, language, nil
}

// editFinal applies the rich-text pass; if the platform rejects the
// markup, retry once with markup disabled.
func (r *Renderer) editFinal(ctx context.Context, chatID int64, msgID int, text string) {
	if err := r.sender.Edit(ctx, chatID, msgID, ToTelegramHTML(text), true); err != nil {
		log.Printf("renderer: html edit rejected, retrying plain: %v", err)
		_ = r.sender.Edit(ctx, chatID, msgID, text, false)
	}
}

func (r *Renderer) sendPart(ctx context.Context, chatID int64, replyTo int, part string) {
	if _, err := r.sender.SendReply(ctx, chatID, replyTo, ToTelegramHTML(part), true); err != nil {
		log.Printf("renderer: html send rejected, retrying plain: %v", err)
		if _, err := r.sender.SendReply(ctx, chatID, replyTo, part, false); err != nil {
			log.Printf("renderer: failed to deliver part: %v", err)
		}
	}
}

func runeLen(s string) int { return len([]rune(s)) }
