package campaign

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"adsender_go/models"
)

// internalPrefix: маркер, которым нормализуются внутренние ID каналов из ссылок /c/.
const internalPrefix = "-100"

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Link: разобранная ссылка на пост (или на тему форума).
// Для публичных ссылок заполнен Username, для внутренних заполнен PeerID с маркером -100.
type Link struct {
	Raw      string
	Username string
	PeerID   int64
	ItemID   int
}

// Internal сообщает, что ссылка ведёт на контейнер по внутреннему ID.
func (l Link) Internal() bool { return l.Username == "" }

// ChannelID возвращает ID канала без маркера, как его использует MTProto.
func (l Link) ChannelID() int64 {
	s := strings.TrimPrefix(strconv.FormatInt(l.PeerID, 10), internalPrefix)
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

// SameContainer сообщает, ведут ли обе ссылки в один и тот же чат.
func (l Link) SameContainer(o Link) bool {
	if l.Internal() != o.Internal() {
		return false
	}
	if l.Internal() {
		return l.PeerID == o.PeerID
	}
	return strings.EqualFold(l.Username, o.Username)
}

func (l Link) String() string { return l.Raw }

// ParseLink разбирает ссылку вида https://t.me/<name>/<id>, https://t.me/c/<internal>/<id>
// или https://t.me/s?domain=<name>&post=<id>. Хост не проверяется.
func ParseLink(raw string) (Link, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Link{}, ErrLinkUnparsable
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return Link{}, fmt.Errorf("%w: %s", ErrLinkUnparsable, raw)
	}
	link := Link{Raw: strings.TrimSpace(raw)}

	if domain, post := u.Query().Get("domain"), u.Query().Get("post"); domain != "" && post != "" {
		id, err := strconv.Atoi(post)
		if err != nil || id <= 0 || !usernamePattern.MatchString(domain) {
			return Link{}, fmt.Errorf("%w: %s", ErrLinkUnparsable, raw)
		}
		link.Username, link.ItemID = domain, id
		return link, nil
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "c":
		internal, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || internal <= 0 {
			return Link{}, fmt.Errorf("%w: %s", ErrLinkUnparsable, raw)
		}
		peerID, err := strconv.ParseInt(internalPrefix+parts[1], 10, 64)
		if err != nil {
			return Link{}, fmt.Errorf("%w: %s", ErrLinkUnparsable, raw)
		}
		id, err := strconv.Atoi(parts[2])
		if err != nil || id <= 0 {
			return Link{}, fmt.Errorf("%w: %s", ErrLinkUnparsable, raw)
		}
		link.PeerID, link.ItemID = peerID, id
		return link, nil
	case len(parts) == 2 && parts[0] != "c":
		id, err := strconv.Atoi(parts[1])
		if err != nil || id <= 0 || !usernamePattern.MatchString(parts[0]) {
			return Link{}, fmt.Errorf("%w: %s", ErrLinkUnparsable, raw)
		}
		link.Username, link.ItemID = parts[0], id
		return link, nil
	}
	return Link{}, fmt.Errorf("%w: %s", ErrLinkUnparsable, raw)
}

// PostLink строит ссылку на сообщение в чате.
func PostLink(p Peer, msgID int) string {
	base := ContainerLink(p)
	if base == models.Placeholder {
		return base
	}
	return fmt.Sprintf("%s/%d", base, msgID)
}

// TopicPostLink строит ссылку на сообщение внутри темы форума: .../<topic>/<msg>.
func TopicPostLink(p Peer, topicID, msgID int) string {
	base := ContainerLink(p)
	if base == models.Placeholder {
		return base
	}
	return fmt.Sprintf("%s/%d/%d", base, topicID, msgID)
}

// ContainerLink возвращает ссылку на сам чат без конкретного сообщения.
// Для обычных (не супер-) групп без username публичной ссылки нет.
func ContainerLink(p Peer) string {
	if p.Username != "" {
		return "https://t.me/" + p.Username
	}
	if p.ID != 0 && !p.Basic && p.Kind != PeerUser {
		return fmt.Sprintf("https://t.me/c/%d", p.ID)
	}
	return models.Placeholder
}
