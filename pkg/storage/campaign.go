package storage

import (
	"context"
	"database/sql"
	"errors"

	"adsender_go/models"

	"github.com/lib/pq"
)

const campaignColumns = `id, account_id, session_id, links, interval_sec, group_mode, selected_groups,
	attribution, topic_links, is_running, created_at`

func scanCampaign(row rowScanner) (models.Campaign, error) {
	var (
		c           models.Campaign
		mode, attr  string
		links       pq.StringArray
		topicLinks  pq.StringArray
		selectedIDs pq.Int64Array
	)
	err := row.Scan(
		&c.ID, &c.AccountID, &c.SessionID, &links, &c.IntervalSec, &mode, &selectedIDs,
		&attr, &topicLinks, &c.IsRunning, &c.CreatedAt,
	)
	if err != nil {
		return c, err
	}
	c.Links = []string(links)
	c.SelectedGroups = []int64(selectedIDs)
	c.TopicLinks = []string(topicLinks)
	c.GroupMode = models.GroupMode(mode)
	c.Attribution, err = models.ParseAttribution(attr)
	if err != nil {
		c.Attribution = models.AttributionHidden
	}
	return c, nil
}

// InsertCampaign сохраняет новый снимок кампании. Старые строки остаются как история.
func (db *DB) InsertCampaign(ctx context.Context, c models.Campaign) (*models.Campaign, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Attribution == "" {
		c.Attribution = models.AttributionHidden
	}
	query := `
		INSERT INTO campaigns (account_id, session_id, links, interval_sec, group_mode, selected_groups, attribution, topic_links)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := db.Conn.QueryRowContext(ctx, query,
		c.AccountID,
		c.SessionID,
		pq.Array(c.Links),
		c.IntervalSec,
		string(c.GroupMode),
		pq.Array(c.SelectedGroups),
		string(c.Attribution),
		pq.Array(c.TopicLinks),
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetLatestCampaign возвращает актуальный снимок для сессии.
// Если для сессии кампаний нет, возвращается последняя кампания аккаунта как есть,
// с session_id той сессии, которой она принадлежит.
func (db *DB) GetLatestCampaign(ctx context.Context, accountID, sessionID int64) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns
		WHERE account_id = $1 AND session_id = $2
		ORDER BY id DESC LIMIT 1`
	c, err := scanCampaign(db.Conn.QueryRowContext(ctx, query, accountID, sessionID))
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	query = `SELECT ` + campaignColumns + ` FROM campaigns
		WHERE account_id = $1
		ORDER BY id DESC LIMIT 1`
	c, err = scanCampaign(db.Conn.QueryRowContext(ctx, query, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SetCampaignRunning обновляет флаг, по которому кампании восстанавливаются после рестарта.
func (db *DB) SetCampaignRunning(ctx context.Context, campaignID int64, running bool) error {
	_, err := db.Conn.ExecContext(ctx, "UPDATE campaigns SET is_running = $1 WHERE id = $2", running, campaignID)
	return err
}

// ListRunningCampaigns возвращает последние снимки, помеченные как запущенные.
func (db *DB) ListRunningCampaigns(ctx context.Context) ([]models.Campaign, error) {
	query := `SELECT DISTINCT ON (account_id, session_id) ` + campaignColumns + `
		FROM campaigns
		WHERE is_running = true
		ORDER BY account_id, session_id, id DESC`
	rows, err := db.Conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
