package campaign

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/gotd/td/tg"
)

// dialogsPageSize: размер страницы messages.getDialogs.
const dialogsPageSize = 100

// maxDialogPages ограничивает обход диалогов при некорректных смещениях.
const maxDialogPages = 50

// Content: загруженный пост-источник, который рассылается по целям.
type Content struct {
	Link      Link
	Source    Peer
	MessageID int
	Text      string
	Entities  []tg.MessageEntityClass
	Markup    tg.ReplyMarkupClass
	HasMedia  bool
}

// Platform: операции Telegram, которые нужны циклу рассылки.
// Forward и SendText возвращают ID нового сообщения или 0, если его не удалось узнать.
type Platform interface {
	Dialogs(ctx context.Context) ([]Peer, error)
	ResolveUsername(ctx context.Context, username string) (Peer, error)
	Message(ctx context.Context, src Peer, id int) (*Content, error)
	Forward(ctx context.Context, c *Content, dst Target, dropAuthor bool) (int, error)
	SendText(ctx context.Context, c *Content, dst Target) (int, error)
}

// TGPlatform реализует Platform поверх tg.Client сессии.
type TGPlatform struct {
	api *tg.Client
}

func NewTGPlatform(api *tg.Client) *TGPlatform {
	return &TGPlatform{api: api}
}

// Dialogs постранично обходит список диалогов аккаунта.
func (p *TGPlatform) Dialogs(ctx context.Context) ([]Peer, error) {
	var out []Peer
	seen := make(map[int64]bool)
	req := &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      dialogsPageSize,
	}

	for page := 0; page < maxDialogPages; page++ {
		res, err := p.api.MessagesGetDialogs(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("get dialogs: %w", err)
		}
		mod, ok := res.AsModified()
		if !ok {
			break
		}

		chats := make(map[int64]Peer)
		for _, c := range mod.GetChats() {
			if peer, ok := peerFromChat(c); ok {
				chats[peer.ID] = peer
			}
		}
		users := make(map[int64]Peer)
		for _, u := range mod.GetUsers() {
			if peer, ok := peerFromUser(u); ok {
				users[peer.ID] = peer
			}
		}

		dialogs := mod.GetDialogs()
		var last *tg.Dialog
		for _, d := range dialogs {
			dlg, ok := d.(*tg.Dialog)
			if !ok {
				continue
			}
			last = dlg
			var (
				peer  Peer
				found bool
			)
			switch pp := dlg.Peer.(type) {
			case *tg.PeerChat:
				peer, found = chats[pp.ChatID]
			case *tg.PeerChannel:
				peer, found = chats[pp.ChannelID]
			case *tg.PeerUser:
				peer, found = users[pp.UserID]
			}
			if !found || seen[peer.MarkedID()] {
				continue
			}
			seen[peer.MarkedID()] = true
			out = append(out, peer)
		}

		if _, complete := res.(*tg.MessagesDialogs); complete || len(dialogs) < dialogsPageSize || last == nil {
			break
		}
		req.OffsetID = last.TopMessage
		req.OffsetDate = messageDate(mod.GetMessages(), last.TopMessage)
		req.OffsetPeer = offsetPeer(last.Peer, chats, users)
	}
	return out, nil
}

func messageDate(msgs []tg.MessageClass, id int) int {
	for _, m := range msgs {
		switch msg := m.(type) {
		case *tg.Message:
			if msg.ID == id {
				return msg.Date
			}
		case *tg.MessageService:
			if msg.ID == id {
				return msg.Date
			}
		}
	}
	return 0
}

func offsetPeer(peer tg.PeerClass, chats, users map[int64]Peer) tg.InputPeerClass {
	switch pp := peer.(type) {
	case *tg.PeerChat:
		if p, ok := chats[pp.ChatID]; ok {
			return p.InputPeer()
		}
	case *tg.PeerChannel:
		if p, ok := chats[pp.ChannelID]; ok {
			return p.InputPeer()
		}
	case *tg.PeerUser:
		if p, ok := users[pp.UserID]; ok {
			return p.InputPeer()
		}
	}
	return &tg.InputPeerEmpty{}
}

// ResolveUsername находит публичный чат по username.
func (p *TGPlatform) ResolveUsername(ctx context.Context, username string) (Peer, error) {
	resolved, err := p.api.ContactsResolveUsername(ctx, username)
	if err != nil {
		return Peer{}, err
	}
	switch pp := resolved.Peer.(type) {
	case *tg.PeerChannel:
		for _, c := range resolved.Chats {
			if peer, ok := peerFromChat(c); ok && peer.ID == pp.ChannelID {
				return peer, nil
			}
		}
	case *tg.PeerChat:
		for _, c := range resolved.Chats {
			if peer, ok := peerFromChat(c); ok && peer.ID == pp.ChatID {
				return peer, nil
			}
		}
	case *tg.PeerUser:
		for _, u := range resolved.Users {
			if peer, ok := peerFromUser(u); ok && peer.ID == pp.UserID {
				return peer, nil
			}
		}
	}
	return Peer{}, fmt.Errorf("@%s: %w", username, ErrSourceUnreachable)
}

// Message загружает одно сообщение чата.
func (p *TGPlatform) Message(ctx context.Context, src Peer, id int) (*Content, error) {
	ids := []tg.InputMessageClass{&tg.InputMessageID{ID: id}}
	var (
		res tg.MessagesMessagesClass
		err error
	)
	if src.Kind == PeerUser || src.Basic {
		res, err = p.api.MessagesGetMessages(ctx, ids)
	} else {
		res, err = p.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: &tg.InputChannel{ChannelID: src.ID, AccessHash: src.AccessHash},
			ID:      ids,
		})
	}
	if err != nil {
		return nil, err
	}
	mod, ok := res.AsModified()
	if !ok {
		return nil, ErrMessageMissing
	}
	for _, m := range mod.GetMessages() {
		msg, ok := m.(*tg.Message)
		if !ok || msg.ID != id {
			continue
		}
		c := &Content{Source: src, MessageID: msg.ID, Text: msg.Message}
		if ents, ok := msg.GetEntities(); ok {
			c.Entities = ents
		}
		if markup, ok := msg.GetReplyMarkup(); ok {
			c.Markup = markup
		}
		if media, ok := msg.GetMedia(); ok {
			// Превью ссылки не считается вложением: такой пост отправляется текстом.
			if _, preview := media.(*tg.MessageMediaWebPage); !preview {
				c.HasMedia = true
			}
		}
		return c, nil
	}
	return nil, ErrMessageMissing
}

// Forward пересылает пост. dropAuthor скрывает источник, сохраняя вложения и кнопки.
func (p *TGPlatform) Forward(ctx context.Context, c *Content, dst Target, dropAuthor bool) (int, error) {
	randomID := rand.Int63()
	req := &tg.MessagesForwardMessagesRequest{
		FromPeer:   c.Source.InputPeer(),
		ID:         []int{c.MessageID},
		RandomID:   []int64{randomID},
		ToPeer:     dst.Peer.InputPeer(),
		DropAuthor: dropAuthor,
	}
	if dst.IsTopic() {
		req.SetTopMsgID(dst.TopicID)
	}
	upd, err := p.api.MessagesForwardMessages(ctx, req)
	if err != nil {
		return 0, err
	}
	return sentMessageID(upd, randomID), nil
}

// SendText отправляет текст поста как новое сообщение с сохранением разметки.
func (p *TGPlatform) SendText(ctx context.Context, c *Content, dst Target) (int, error) {
	randomID := rand.Int63()
	req := &tg.MessagesSendMessageRequest{
		Peer:     dst.Peer.InputPeer(),
		Message:  c.Text,
		RandomID: randomID,
	}
	if len(c.Entities) > 0 {
		req.SetEntities(c.Entities)
	}
	if c.Markup != nil {
		req.SetReplyMarkup(c.Markup)
	}
	if dst.IsTopic() {
		req.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: dst.TopicID})
	}
	upd, err := p.api.MessagesSendMessage(ctx, req)
	if err != nil {
		return 0, err
	}
	return sentMessageID(upd, randomID), nil
}

// sentMessageID достаёт ID отправленного сообщения из ответа.
// Приоритет у updateMessageID с нашим random_id.
func sentMessageID(u tg.UpdatesClass, randomID int64) int {
	var updates []tg.UpdateClass
	switch v := u.(type) {
	case *tg.UpdateShortSentMessage:
		return v.ID
	case *tg.UpdateShort:
		updates = []tg.UpdateClass{v.Update}
	case *tg.Updates:
		updates = v.Updates
	case *tg.UpdatesCombined:
		updates = v.Updates
	}

	fallback := 0
	for _, upd := range updates {
		switch x := upd.(type) {
		case *tg.UpdateMessageID:
			if x.RandomID == randomID {
				return x.ID
			}
		case *tg.UpdateNewChannelMessage:
			if fallback == 0 && x.Message != nil {
				fallback = x.Message.GetID()
			}
		case *tg.UpdateNewMessage:
			if fallback == 0 && x.Message != nil {
				fallback = x.Message.GetID()
			}
		}
	}
	return fallback
}
