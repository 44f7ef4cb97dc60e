package common

import (
	"context"
	"math/rand"
	"time"
)

// Sleep ждёт указанное время и прерывается при отмене контекста.
// Возвращает ошибку контекста, чтобы вызвать обработку прерывания выше по стеку.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RandomDelay возвращает случайную паузу в диапазоне [min,max] секунд включительно.
func RandomDelay(r *rand.Rand, delayRange [2]int) time.Duration {
	lo, hi := delayRange[0], delayRange[1]
	if hi < lo {
		lo, hi = hi, lo
	}
	n := lo
	if hi > lo {
		if r != nil {
			n += r.Intn(hi - lo + 1)
		} else {
			n += rand.Intn(hi - lo + 1)
		}
	}
	return time.Duration(n) * time.Second
}
