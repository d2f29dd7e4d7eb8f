// Package helper implements the second process: a user-session client
// that drains the download queue, obtains media through third-party
// downloader bots, and hands results to the Main Bot as carrier
// messages captioned task_id:<id>.
package helper

import "context"

// ChatMessage is one message observed in a third-party bot's chat.
// Handle is an opaque session-specific reference used to re-send the
// media elsewhere.
type ChatMessage struct {
	ID       int
	Text     string
	HasMedia bool
	Handle   interface{}
}

// Session is the narrow surface the worker needs from the Telegram
// user account. The production implementation lives in tdclient.go;
// tests substitute a scripted one.
type Session interface {
	// EnsurePeer resolves a bot username to a peer and unblocks it if
	// it was blocked earlier.
	EnsurePeer(ctx context.Context, username string) (interface{}, error)

	// SendText sends a message to the peer and returns the sent
	// message id.
	SendText(ctx context.Context, peer interface{}, text string) (int, error)

	// History returns up to limit most recent messages of the peer's
	// chat, newest first.
	History(ctx context.Context, peer interface{}, limit int) ([]ChatMessage, error)

	// CopyMediaTo re-sends a media message to the named bot with the
	// given caption.
	CopyMediaTo(ctx context.Context, botUsername string, msg ChatMessage, caption string) error
}
