package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Model output arrives as loose Markdown, HTML fragments, or a mix of
// both. ToTelegramHTML normalizes it to the minimal HTML subset the
// Bot API accepts (b, i, code, pre, a). Anything structural that
// Telegram rejects is rewritten or removed.

var (
	docTagRe     = regexp.MustCompile(`(?i)</?\s*(html|head|body)[^>]*>|<!doctype[^>]*>`)
	headingTagRe = regexp.MustCompile(`(?is)<h[1-6][^>]*>(.*?)</h[1-6]>`)
	openPRe      = regexp.MustCompile(`(?i)<p[^>]*>`)
	closePRe     = regexp.MustCompile(`(?i)</p>`)
	listOpenRe   = regexp.MustCompile(`(?i)</?\s*(ul|ol)[^>]*>`)
	liOpenRe     = regexp.MustCompile(`(?i)<li[^>]*>`)
	liCloseRe    = regexp.MustCompile(`(?i)</li>`)
	brRe         = regexp.MustCompile(`(?i)<br\s*/?>`)
	boldMdRe     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicMdRe   = regexp.MustCompile(`__(.+?)__`)
	headingMdRe  = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+)$`)
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")
	fencedRe     = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\n?(.*?)```")
	multiBlankRe = regexp.MustCompile(`\n{3,}`)
)

// ToTelegramHTML converts markdown/HTML-flavored model output into
// Telegram-safe HTML.
func ToTelegramHTML(text string) string {
	out := text

	// Document-structure tags have no Telegram equivalent.
	out = docTagRe.ReplaceAllString(out, "")

	// Code blocks first, so later rewrites don't touch their insides.
	out = fencedRe.ReplaceAllStringFunc(out, func(match string) string {
		inner := fencedRe.FindStringSubmatch(match)[1]
		return "<pre>" + html.EscapeString(strings.TrimRight(inner, "\n")) + "</pre>"
	})
	out = inlineCodeRe.ReplaceAllStringFunc(out, func(match string) string {
		inner := inlineCodeRe.FindStringSubmatch(match)[1]
		return "<code>" + html.EscapeString(inner) + "</code>"
	})

	// HTML structure → flat text with Telegram tags.
	out = headingTagRe.ReplaceAllString(out, "<b>$1</b>\n")
	out = openPRe.ReplaceAllString(out, "\n\n")
	out = closePRe.ReplaceAllString(out, "")
	out = listOpenRe.ReplaceAllString(out, "\n")
	out = liOpenRe.ReplaceAllString(out, "• ")
	out = liCloseRe.ReplaceAllString(out, "\n")
	out = brRe.ReplaceAllString(out, "\n")

	// Markdown emphasis and headings.
	out = boldMdRe.ReplaceAllString(out, "<b>$1</b>")
	out = italicMdRe.ReplaceAllString(out, "<i>$1</i>")
	out = headingMdRe.ReplaceAllString(out, "<b>$1</b>")

	// Markdown list markers render fine as-is; just tidy blank runs.
	out = multiBlankRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// languageTokenRe matches the inline language-switch control signal.
var languageTokenRe = regexp.MustCompile(`__SET_LANGUAGE:(\w+)__`)

// StripLanguageToken removes every language-switch token from text and
// returns the last captured code ("" when none).
func StripLanguageToken(text string) (string, string) {
	code := ""
	for _, m := range languageTokenRe.FindAllStringSubmatch(text, -1) {
		code = m[1]
	}
	if code == "" {
		return text, ""
	}
	return languageTokenRe.ReplaceAllString(text, ""), code
}

// FormatError renders a terminal stream failure for the user.
func FormatError(err error) string {
	return fmt.Sprintf("❌ %v", err)
}
