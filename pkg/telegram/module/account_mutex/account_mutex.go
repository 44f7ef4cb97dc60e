package account_mutex

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Keyed: набор мьютексов по ключу. Операции с одним ключом выполняются
// последовательно, разные ключи друг друга не блокируют.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

func (k *Keyed) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	return lock
}

// Lock ждёт освобождения ключа.
func (k *Keyed) Lock(key string) {
	k.get(key).Lock()
	log.Debug().Str("key", key).Msg("[MUTEX] ключ заблокирован")
}

// TryLock захватывает ключ без ожидания. Если ключ занят, возвращается ошибка.
func (k *Keyed) TryLock(key string) error {
	if !k.get(key).TryLock() {
		log.Debug().Str("key", key).Msg("[MUTEX] ключ занят")
		return fmt.Errorf("ключ %s уже используется", key)
	}
	return nil
}

// Unlock освобождает ключ.
func (k *Keyed) Unlock(key string) {
	k.mu.Lock()
	lock := k.locks[key]
	k.mu.Unlock()
	if lock != nil {
		lock.Unlock()
		log.Debug().Str("key", key).Msg("[MUTEX] ключ разблокирован")
	}
}
