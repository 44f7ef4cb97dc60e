package campaign

import (
	"time"

	"adsender_go/models"
)

// MisconfiguredBackoff: пауза перед повторной проверкой окна с совпадающими границами.
const MisconfiguredBackoff = 60 * time.Second

// MinuteOfDay возвращает минуту суток для времени t в его часовом поясе.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Allowed сообщает, разрешена ли рассылка в минуту суток minute.
func Allowed(w models.AutoModeWindow, minute int) bool {
	if !w.Enabled {
		return true
	}
	switch {
	case w.StartMinute == w.EndMinute:
		return false
	case w.StartMinute < w.EndMinute:
		return minute >= w.StartMinute && minute < w.EndMinute
	default:
		return minute >= w.StartMinute || minute < w.EndMinute
	}
}

// MinutesUntilOpen: сколько минут осталось до начала окна. 0, если рассылка уже разрешена.
func MinutesUntilOpen(w models.AutoModeWindow, minute int) int {
	if Allowed(w, minute) {
		return 0
	}
	if minute < w.StartMinute {
		return w.StartMinute - minute
	}
	return models.MinutesPerDay - minute + w.StartMinute
}

// WaitDuration возвращает, сколько ждать до открытия окна.
// Для окна с равными границами всегда возвращается MisconfiguredBackoff.
func WaitDuration(w models.AutoModeWindow, now time.Time) time.Duration {
	if !w.Enabled {
		return 0
	}
	if w.StartMinute == w.EndMinute {
		return MisconfiguredBackoff
	}
	mins := MinutesUntilOpen(w, MinuteOfDay(now))
	if mins == 0 {
		return 0
	}
	elapsed := time.Duration(now.Second())*time.Second + time.Duration(now.Nanosecond())
	return time.Duration(mins)*time.Minute - elapsed
}

// SleepDuration: длительность паузы между циклами с учётом окна.
// Если окно сейчас закрыто, ждём его открытия вместо обычного интервала.
func SleepDuration(w models.AutoModeWindow, now time.Time, interval time.Duration) time.Duration {
	if wait := WaitDuration(w, now); wait > 0 {
		return wait
	}
	return interval
}
