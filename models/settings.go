package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MinutesPerDay: количество минут в сутках.
const MinutesPerDay = 24 * 60

// AutoModeWindow: суточное окно, в котором разрешена рассылка.
type AutoModeWindow struct {
	Enabled     bool `json:"enabled"`
	StartMinute int  `json:"start_minute"`
	EndMinute   int  `json:"end_minute"`
}

// Validate проверяет, что границы лежат в [0,1440).
// Выключенное окно корректно при любых значениях.
func (w AutoModeWindow) Validate() error {
	if !w.Enabled {
		return nil
	}
	if w.StartMinute < 0 || w.StartMinute >= MinutesPerDay || w.EndMinute < 0 || w.EndMinute >= MinutesPerDay {
		return fmt.Errorf("window bounds must be within [0,%d)", MinutesPerDay)
	}
	return nil
}

// String выводит окно в формате "3:30 am - 2:00 pm".
func (w AutoModeWindow) String() string {
	if !w.Enabled {
		return "off"
	}
	return FormatMinutes(w.StartMinute) + " - " + FormatMinutes(w.EndMinute)
}

// DurationMinutes возвращает длительность окна с учётом перехода через полночь.
func (w AutoModeWindow) DurationMinutes() int {
	if w.EndMinute > w.StartMinute {
		return w.EndMinute - w.StartMinute
	}
	return MinutesPerDay - w.StartMinute + w.EndMinute
}

var errTimeRange = errors.New(`could not understand the time range, use a format like "3:30 am - 2:00 pm"`)

// ParseAutoModeWindow разбирает текст вида "3:30 am - 2:00 pm" или "23:00 - 02:00".
// Слово "off" выключает окно.
func ParseAutoModeWindow(text string) (AutoModeWindow, error) {
	txt := strings.ToLower(strings.TrimSpace(text))
	if txt == "off" {
		return AutoModeWindow{Enabled: false}, nil
	}
	txt = strings.ReplaceAll(txt, "–", "-")
	left, right, ok := strings.Cut(txt, "-")
	if !ok {
		return AutoModeWindow{}, errTimeRange
	}
	start, err := parseClock(left)
	if err != nil {
		return AutoModeWindow{}, err
	}
	end, err := parseClock(right)
	if err != nil {
		return AutoModeWindow{}, err
	}
	return AutoModeWindow{Enabled: true, StartMinute: start, EndMinute: end}, nil
}

// parseClock переводит "3:30 pm", "12 am" или "14:05" в минуту суток.
func parseClock(side string) (int, error) {
	s := strings.TrimSpace(side)
	suffix := ""
	if strings.HasSuffix(s, "am") || strings.HasSuffix(s, "pm") {
		suffix = s[len(s)-2:]
		s = strings.TrimSpace(s[:len(s)-2])
	}
	hhStr, mmStr, found := strings.Cut(s, ":")
	if !found {
		mmStr = "0"
	}
	hh, err := strconv.Atoi(hhStr)
	if err != nil {
		return 0, errTimeRange
	}
	mm, err := strconv.Atoi(mmStr)
	if err != nil || mm < 0 || mm > 59 {
		return 0, errTimeRange
	}
	switch suffix {
	case "am", "pm":
		if hh < 1 || hh > 12 {
			return 0, errTimeRange
		}
		hh %= 12
		if suffix == "pm" {
			hh += 12
		}
	default:
		if hh < 0 || hh > 23 {
			return 0, errTimeRange
		}
	}
	return hh*60 + mm, nil
}

// FormatMinutes выводит минуту суток в 12-часовом формате.
func FormatMinutes(mins int) string {
	mins = ((mins % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	h := mins / 60
	m := mins % 60
	suffix := "am"
	if h >= 12 {
		suffix = "pm"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, suffix)
}

// DelayRange: диапазон случайной паузы между целями, в секундах.
type DelayRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Допустимая полоса пауз, которую может настроить премиум-аккаунт.
const (
	DelayBandMin = 5
	DelayBandMax = 90
)

var (
	// FreeDelay применяется к аккаунтам без подписки.
	FreeDelay = DelayRange{Min: 10, Max: 45}
	// PremiumDelay используется для подписчиков без собственной настройки.
	PremiumDelay = DelayRange{Min: DelayBandMin, Max: DelayBandMax}
)

var ErrDelayRange = fmt.Errorf("range must be between %d and %d seconds, e.g. 5-10", DelayBandMin, DelayBandMax)

// Validate проверяет, что диапазон лежит внутри допустимой полосы.
func (r DelayRange) Validate() error {
	if r.Min < DelayBandMin || r.Max > DelayBandMax || r.Min > r.Max {
		return ErrDelayRange
	}
	return nil
}

func (r DelayRange) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

var delayRangePattern = regexp.MustCompile(`^(\d+)\s*[-–]\s*(\d+)$`)

// ParseDelayRange разбирает "5-10" или одиночное число "7".
// Результат сразу проверяется на попадание в полосу.
func ParseDelayRange(text string) (DelayRange, error) {
	txt := strings.TrimSpace(text)
	var r DelayRange
	if m := delayRangePattern.FindStringSubmatch(txt); m != nil {
		r.Min, _ = strconv.Atoi(m[1])
		r.Max, _ = strconv.Atoi(m[2])
	} else {
		n, err := strconv.Atoi(txt)
		if err != nil {
			return DelayRange{}, errors.New("send the range like 5-10 (min-max seconds)")
		}
		r.Min, r.Max = n, n
	}
	if err := r.Validate(); err != nil {
		return DelayRange{}, err
	}
	return r, nil
}

// AccountSettings: типизированные настройки аккаунта, которые
// цикл рассылки читает на каждом проходе.
type AccountSettings struct {
	AccountID   int64          `json:"account_id"`
	AutoMode    AutoModeWindow `json:"auto_mode"`
	Attribution Attribution    `json:"attribution"`
	TopicLinks  []string       `json:"topic_links"`
	TargetDelay *DelayRange    `json:"target_delay"`
}

// DefaultSettings: настройки аккаунта, у которого ещё нет записи.
func DefaultSettings(accountID int64) AccountSettings {
	return AccountSettings{AccountID: accountID, Attribution: AttributionHidden}
}

// Sanitize заменяет некорректные значения на значения по умолчанию
// и возвращает список отброшенных полей.
func (s AccountSettings) Sanitize() (AccountSettings, []string) {
	var dropped []string
	if err := s.AutoMode.Validate(); err != nil {
		s.AutoMode = AutoModeWindow{}
		dropped = append(dropped, "auto_mode")
	}
	attr, err := ParseAttribution(string(s.Attribution))
	if err != nil {
		attr = AttributionHidden
		dropped = append(dropped, "attribution")
	}
	s.Attribution = attr
	if s.TargetDelay != nil && s.TargetDelay.Validate() != nil {
		s.TargetDelay = nil
		dropped = append(dropped, "target_delay")
	}
	return s, dropped
}
