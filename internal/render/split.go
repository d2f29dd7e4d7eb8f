package render

import "strings"

// Split boundaries in preference order. A hard cut at the limit is the
// last resort when no boundary exists inside the window.
var boundaries = []string{"\n\n", "\n", ". ", " "}

// SplitMessage cuts text into chunks of at most max runes, preferring
// paragraph, then line, then sentence, then word boundaries.
func SplitMessage(text string, max int) []string {
	if max <= 0 {
		return []string{text}
	}

	var parts []string
	remaining := text
	for len([]rune(remaining)) > max {
		window := string([]rune(remaining)[:max])
		cut := -1
		keepSep := 0
		for _, sep := range boundaries {
			if idx := strings.LastIndex(window, sep); idx > 0 {
				cut = idx
				if sep == ". " {
					keepSep = 1 // keep the period with the sentence
				}
				break
			}
		}
		if cut < 0 {
			cut = len(window)
			parts = append(parts, window)
			remaining = string([]rune(remaining)[max:])
			continue
		}
		parts = append(parts, strings.TrimSpace(window[:cut+keepSep]))
		remaining = strings.TrimLeft(remaining[cut+keepSep:], " \n")
	}
	if strings.TrimSpace(remaining) != "" {
		parts = append(parts, strings.TrimSpace(remaining))
	}
	return parts
}
