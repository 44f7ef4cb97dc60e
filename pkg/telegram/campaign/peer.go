package campaign

import (
	"strconv"
	"strings"

	"github.com/gotd/td/tg"
)

// PeerKind: тип чата, полученный один раз при перечислении диалогов.
type PeerKind int

const (
	PeerUser PeerKind = iota
	PeerGroup
	PeerChannel
)

func (k PeerKind) String() string {
	switch k {
	case PeerGroup:
		return "group"
	case PeerChannel:
		return "channel"
	default:
		return "user"
	}
}

// Peer: чат, пользователь или канал, доступный сессии.
// Basic отмечает обычную (не супер-) группу, у которой нет access hash.
type Peer struct {
	Kind       PeerKind `json:"kind"`
	ID         int64    `json:"id"`
	AccessHash int64    `json:"access_hash"`
	Title      string   `json:"title"`
	Username   string   `json:"username,omitempty"`
	Basic      bool     `json:"basic,omitempty"`
}

// IsGroup сообщает, подходит ли чат как место рассылки.
func (p Peer) IsGroup() bool { return p.Kind == PeerGroup }

// MarkedID возвращает ID в формате Bot API: -100<id> для каналов, -<id> для обычных групп.
func (p Peer) MarkedID() int64 {
	switch {
	case p.Kind == PeerUser:
		return p.ID
	case p.Basic:
		return -p.ID
	default:
		id, _ := strconv.ParseInt(internalPrefix+strconv.FormatInt(p.ID, 10), 10, 64)
		return id
	}
}

// Matches сравнивает чат с сохранённым ID, который может быть как «голым», так и маркированным.
func (p Peer) Matches(id int64) bool {
	return id == p.ID || id == p.MarkedID()
}

// DisplayName: название чата для журнала.
func (p Peer) DisplayName() string {
	if t := strings.TrimSpace(p.Title); t != "" {
		return t
	}
	if p.Username != "" {
		return "@" + p.Username
	}
	return strconv.FormatInt(p.ID, 10)
}

// InputPeer строит ссылку на чат для вызовов API.
func (p Peer) InputPeer() tg.InputPeerClass {
	switch {
	case p.Kind == PeerUser:
		return &tg.InputPeerUser{UserID: p.ID, AccessHash: p.AccessHash}
	case p.Basic:
		return &tg.InputPeerChat{ChatID: p.ID}
	default:
		return &tg.InputPeerChannel{ChannelID: p.ID, AccessHash: p.AccessHash}
	}
}

// Target: место доставки: группа целиком или конкретная тема форума.
// Unresolved заполняется для темы, группу которой найти не удалось: такая цель
// не отправляется, а попадает в журнал как неудачная попытка с этой причиной.
type Target struct {
	Peer       Peer
	TopicID    int
	Link       string
	Unresolved string
}

// IsTopic сообщает, что доставка идёт в тему форума.
func (t Target) IsTopic() bool { return t.TopicID != 0 || t.Unresolved != "" }

// Deliverable сообщает, что в цель можно отправлять.
func (t Target) Deliverable() bool { return t.Unresolved == "" }

// ID возвращает маркированный ID цели или 0, если чат неизвестен.
func (t Target) ID() int64 {
	if t.Peer.ID == 0 {
		return 0
	}
	return t.Peer.MarkedID()
}

// ContainerLink возвращает ссылку на место доставки для журнала.
func (t Target) ContainerLink() string {
	if t.IsTopic() && t.Link != "" {
		return t.Link
	}
	return ContainerLink(t.Peer)
}

func countDeliverable(targets []Target) int {
	n := 0
	for _, t := range targets {
		if t.Deliverable() {
			n++
		}
	}
	return n
}

// peerFromChat переводит чат из ответа API в Peer. Недоступные чаты отбрасываются.
func peerFromChat(c tg.ChatClass) (Peer, bool) {
	switch ch := c.(type) {
	case *tg.Chat:
		if ch.Deactivated || ch.Left {
			return Peer{}, false
		}
		return Peer{Kind: PeerGroup, ID: ch.ID, Title: ch.Title, Basic: true}, true
	case *tg.Channel:
		kind := PeerChannel
		if ch.Megagroup || ch.Gigagroup {
			kind = PeerGroup
		}
		return Peer{Kind: kind, ID: ch.ID, AccessHash: ch.AccessHash, Title: ch.Title, Username: ch.Username}, true
	}
	return Peer{}, false
}

func peerFromUser(u tg.UserClass) (Peer, bool) {
	usr, ok := u.(*tg.User)
	if !ok {
		return Peer{}, false
	}
	title := strings.TrimSpace(usr.FirstName + " " + usr.LastName)
	return Peer{Kind: PeerUser, ID: usr.ID, AccessHash: usr.AccessHash, Title: title, Username: usr.Username}, true
}
