package helper

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
)

// TDSession is a Session backed by an authorized MTProto user account.
// The session file must already contain valid credentials; authorization
// itself is out of scope for the worker.
type TDSession struct {
	api   *tg.Client
	peers map[string]*tg.InputPeerUser
}

// RunClient connects using the stored session file and hands a ready
// TDSession to fn. It returns an error if the session is missing or
// not authorized.
func RunClient(ctx context.Context, apiID int, apiHash, sessionPath string, fn func(ctx context.Context, s *TDSession) error) error {
	client := telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionPath},
	})

	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to check auth status: %w", err)
		}
		if !status.Authorized {
			return fmt.Errorf("session %s is not authorized: log in with an interactive MTProto client first", sessionPath)
		}

		s := &TDSession{
			api:   client.API(),
			peers: make(map[string]*tg.InputPeerUser),
		}
		return fn(ctx, s)
	})
}

func randomID() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("failed to generate random id: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

func (s *TDSession) resolve(ctx context.Context, username string) (*tg.InputPeerUser, error) {
	if peer, ok := s.peers[username]; ok {
		return peer, nil
	}

	res, err := s.api.ContactsResolveUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve @%s: %w", username, err)
	}

	for _, u := range res.Users {
		user, ok := u.(*tg.User)
		if !ok {
			continue
		}
		peer := &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}
		s.peers[username] = peer
		return peer, nil
	}
	return nil, fmt.Errorf("@%s resolved to no user", username)
}

// EnsurePeer resolves the bot username and unblocks it so that sending
// is not rejected by an earlier block. Unblock failures are ignored:
// the peer is usually not blocked at all.
func (s *TDSession) EnsurePeer(ctx context.Context, username string) (interface{}, error) {
	peer, err := s.resolve(ctx, username)
	if err != nil {
		return nil, err
	}
	_, _ = s.api.ContactsUnblock(ctx, &tg.ContactsUnblockRequest{ID: peer})
	return peer, nil
}

func (s *TDSession) SendText(ctx context.Context, peer interface{}, text string) (int, error) {
	input, ok := peer.(*tg.InputPeerUser)
	if !ok {
		return 0, fmt.Errorf("unexpected peer type %T", peer)
	}

	rid, err := randomID()
	if err != nil {
		return 0, err
	}
	updates, err := s.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     input,
		Message:  text,
		RandomID: rid,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sentMessageID(updates), nil
}

// sentMessageID digs the assigned message id out of the send response.
func sentMessageID(updates tg.UpdatesClass) int {
	switch u := updates.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID
	case *tg.Updates:
		return messageIDFromUpdates(u.Updates)
	case *tg.UpdatesCombined:
		return messageIDFromUpdates(u.Updates)
	}
	return 0
}

func messageIDFromUpdates(updates []tg.UpdateClass) int {
	for _, upd := range updates {
		if m, ok := upd.(*tg.UpdateMessageID); ok {
			return m.ID
		}
	}
	return 0
}

func (s *TDSession) History(ctx context.Context, peer interface{}, limit int) ([]ChatMessage, error) {
	input, ok := peer.(*tg.InputPeerUser)
	if !ok {
		return nil, fmt.Errorf("unexpected peer type %T", peer)
	}

	res, err := s.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  input,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var raw []tg.MessageClass
	switch h := res.(type) {
	case *tg.MessagesMessages:
		raw = h.Messages
	case *tg.MessagesMessagesSlice:
		raw = h.Messages
	case *tg.MessagesChannelMessages:
		raw = h.Messages
	default:
		return nil, fmt.Errorf("unexpected history type %T", res)
	}

	out := make([]ChatMessage, 0, len(raw))
	for _, mc := range raw {
		m, ok := mc.(*tg.Message)
		if !ok {
			continue
		}
		out = append(out, ChatMessage{
			ID:       m.ID,
			Text:     m.Message,
			HasMedia: inputMedia(m.Media) != nil,
			Handle:   m,
		})
	}
	return out, nil
}

func (s *TDSession) CopyMediaTo(ctx context.Context, botUsername string, msg ChatMessage, caption string) error {
	peer, err := s.resolve(ctx, botUsername)
	if err != nil {
		return err
	}

	m, ok := msg.Handle.(*tg.Message)
	if !ok {
		return fmt.Errorf("unexpected message handle type %T", msg.Handle)
	}
	media := inputMedia(m.Media)
	if media == nil {
		return fmt.Errorf("message %d carries no copyable media", msg.ID)
	}

	rid, err := randomID()
	if err != nil {
		return err
	}
	_, err = s.api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
		Peer:     peer,
		Media:    media,
		Message:  caption,
		RandomID: rid,
	})
	if err != nil {
		return fmt.Errorf("failed to forward media: %w", err)
	}
	return nil
}

// inputMedia converts received media into a re-sendable reference.
// Only documents (video, audio, files) and photos are supported.
func inputMedia(media tg.MessageMediaClass) tg.InputMediaClass {
	switch m := media.(type) {
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return nil
		}
		return &tg.InputMediaDocument{
			ID: &tg.InputDocument{
				ID:            doc.ID,
				AccessHash:    doc.AccessHash,
				FileReference: doc.FileReference,
			},
		}
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return nil
		}
		return &tg.InputMediaPhoto{
			ID: &tg.InputPhoto{
				ID:            photo.ID,
				AccessHash:    photo.AccessHash,
				FileReference: photo.FileReference,
			},
		}
	}
	return nil
}
