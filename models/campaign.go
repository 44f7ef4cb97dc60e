package models

import (
	"errors"
	"fmt"
	"time"
)

// GroupMode определяет, как выбираются группы для рассылки.
type GroupMode string

const (
	GroupModeAll    GroupMode = "all"
	GroupModeSubset GroupMode = "subset"
)

// Attribution: режим пересылки: с указанием источника или как новый пост.
type Attribution string

const (
	AttributionHidden Attribution = "hidden"
	AttributionTagged Attribution = "tagged"
)

// Границы интервала между циклами рассылки.
const (
	MinIntervalSec = 5
	MaxIntervalSec = 7 * 24 * 60 * 60
)

var (
	ErrNoLinks         = errors.New("campaign has no content links")
	ErrIntervalRange   = fmt.Errorf("interval must be between %d seconds and 7 days", MinIntervalSec)
	ErrUnknownMode     = errors.New("unknown group mode")
	ErrEmptySubset     = errors.New("subset mode requires at least one selected group")
	ErrUnknownAttrMode = errors.New("unknown attribution mode")
)

// Campaign: снимок настроек рассылки для одной сессии.
// Строки только добавляются: актуальной считается последняя запись.
type Campaign struct {
	ID             int64       `json:"id"`
	AccountID      int64       `json:"account_id"`
	SessionID      int64       `json:"session_id"`
	Links          []string    `json:"links"`
	IntervalSec    int         `json:"interval_sec"`
	GroupMode      GroupMode   `json:"group_mode"`
	SelectedGroups []int64     `json:"selected_groups"`
	Attribution    Attribution `json:"attribution"`
	TopicLinks     []string    `json:"topic_links"`
	IsRunning      bool        `json:"is_running"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Interval возвращает интервал между циклами.
func (c Campaign) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// Validate проверяет кампанию перед сохранением.
func (c Campaign) Validate() error {
	if len(c.Links) == 0 {
		return ErrNoLinks
	}
	if c.IntervalSec < MinIntervalSec || c.IntervalSec > MaxIntervalSec {
		return ErrIntervalRange
	}
	switch c.GroupMode {
	case GroupModeAll:
	case GroupModeSubset:
		if len(c.SelectedGroups) == 0 {
			return ErrEmptySubset
		}
	default:
		return ErrUnknownMode
	}
	return nil
}

// ParseAttribution принимает также старые значения "with"/"hide" из настроек бота.
func ParseAttribution(s string) (Attribution, error) {
	switch s {
	case "tagged", "with":
		return AttributionTagged, nil
	case "hidden", "hide", "":
		return AttributionHidden, nil
	}
	return "", ErrUnknownAttrMode
}
