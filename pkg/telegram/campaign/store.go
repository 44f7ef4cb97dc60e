package campaign

import (
	"context"

	"adsender_go/models"
)

// AuditStore: запись журнала попыток и счётчиков.
type AuditStore interface {
	AppendSendEvent(ctx context.Context, ev models.SendEvent) error
	BumpCounters(ctx context.Context, accountID int64, template bool) error
	GetCounters(ctx context.Context, accountID int64) (models.Counters, error)
}

// Store: всё, что цикл рассылки читает и пишет в БД.
type Store interface {
	AuditStore
	SetCampaignRunning(ctx context.Context, campaignID int64, running bool) error
	GetSettings(ctx context.Context, accountID int64) (models.AccountSettings, error)
	IsPremiumActive(ctx context.Context, accountID int64) (bool, error)
}
