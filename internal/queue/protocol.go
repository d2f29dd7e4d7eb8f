// Package queue holds the pieces of the download-queue protocol shared
// by the Main Bot and the Helper Client: the carrier-message caption
// format, the URL allow-lists, and the URL to third-party bot routing
// table.
package queue

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CarrierPrefix tags media handed from the Helper Client back to the
// Main Bot. The full caption is "task_id:<decimal-id>", plain text,
// no whitespace.
const CarrierPrefix = "task_id:"

var carrierRe = regexp.MustCompile(`^task_id:(\d+)$`)

// CarrierCaption formats the caption for a task's carrier messages.
func CarrierCaption(taskID int64) string {
	return fmt.Sprintf("%s%d", CarrierPrefix, taskID)
}

// ParseCarrier extracts the task id from a carrier caption. Malformed
// captions return ok=false and are ignored by the Main Bot.
func ParseCarrier(caption string) (int64, bool) {
	m := carrierRe.FindStringSubmatch(strings.TrimSpace(caption))
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Sites the Main Bot extracts itself (C8) vs sites that need the
// Helper Client's user session (C7).
var (
	directHosts = []string{"x.com", "twitter.com", "youtube.com", "youtu.be", "reddit.com"}
	helperHosts = []string{"instagram.com", "tiktok.com", "vm.tiktok.com", "pinterest.com", "pin.it"}
)

// helperBots routes a URL to the third-party downloader bot the Helper
// should talk to. First match wins.
var helperBots = []struct {
	host string
	bot  string
}{
	{"instagram.com", "SaveAsBot"},
	{"tiktok.com", "SaveAsBot"},
	{"vm.tiktok.com", "SaveAsBot"},
	{"pinterest.com", "SavePinsBot"},
	{"pin.it", "SavePinsBot"},
}

var urlRe = regexp.MustCompile(`https?://[^\s]+`)

// ExtractURL returns the first http(s) URL in the text, or "".
func ExtractURL(text string) string {
	return urlRe.FindString(text)
}

// IsDirectURL reports whether the Main Bot can fetch the URL itself.
func IsDirectURL(url string) bool {
	return matchesHost(url, directHosts)
}

// IsHelperURL reports whether the URL must go through the Helper queue.
func IsHelperURL(url string) bool {
	return matchesHost(url, helperHosts)
}

// BotForURL returns the third-party bot username for a helper URL.
func BotForURL(url string) (string, bool) {
	lower := strings.ToLower(url)
	for _, route := range helperBots {
		if strings.Contains(lower, route.host) {
			return route.bot, true
		}
	}
	return "", false
}

func matchesHost(url string, hosts []string) bool {
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	for _, host := range hosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}
