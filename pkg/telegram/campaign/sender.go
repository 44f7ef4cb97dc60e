package campaign

import (
	"context"

	"adsender_go/models"
)

// Tier: параметры запуска, зависящие от подписки аккаунта.
type Tier struct {
	Premium     bool
	Attribution models.Attribution
	TopicLinks  []string
	Delay       models.DelayRange
	// Downgraded: аккаунт без подписки запросил пересылку с источником или темы.
	Downgraded bool
}

// ResolveTier применяет ограничения бесплатного тарифа к запрошенным настройкам.
func ResolveTier(premium bool, attr models.Attribution, topics []string, configured *models.DelayRange) Tier {
	if premium {
		delay := models.PremiumDelay
		if configured != nil && configured.Validate() == nil {
			delay = *configured
		}
		return Tier{Premium: true, Attribution: attr, TopicLinks: topics, Delay: delay}
	}
	return Tier{
		Attribution: models.AttributionHidden,
		Delay:       models.FreeDelay,
		Downgraded:  attr == models.AttributionTagged || len(topics) > 0,
	}
}

// Sender выполняет одну попытку доставки и возвращает её итог.
type Sender struct {
	platform Platform
}

func NewSender(p Platform) *Sender {
	return &Sender{platform: p}
}

// Send доставляет пост в цель. С источником выполняется обычная пересылка; без источника
// текстовые посты отправляются заново, а посты с вложениями пересылаются со скрытым автором.
func (s *Sender) Send(ctx context.Context, c *Content, dst Target, attr models.Attribution) Result {
	var (
		id  int
		err error
	)
	switch {
	case attr == models.AttributionTagged:
		id, err = s.platform.Forward(ctx, c, dst, false)
	case c.HasMedia:
		id, err = s.platform.Forward(ctx, c, dst, true)
	default:
		id, err = s.platform.SendText(ctx, c, dst)
	}
	if err != nil {
		return Classify(err)
	}
	return Result{Kind: ResultSuccess, MessageID: id, Link: OutcomeLink(dst, id)}
}

// OutcomeLink: ссылка на отправленное сообщение, либо на сам чат, если ID неизвестен.
func OutcomeLink(dst Target, msgID int) string {
	switch {
	case msgID == 0:
		return dst.ContainerLink()
	case dst.IsTopic():
		return TopicPostLink(dst.Peer, dst.TopicID, msgID)
	default:
		return PostLink(dst.Peer, msgID)
	}
}
