package campaign

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"adsender_go/internal/crash"
	dispatch "adsender_go/pkg/telegram/campaign"
	"adsender_go/pkg/telegram/module/account_mutex"

	"github.com/rs/zerolog/log"
)

// Key: одна запущенная кампания: аккаунт оператора и его сессия.
type Key struct {
	AccountID int64 `json:"account_id"`
	SessionID int64 `json:"session_id"`
}

func (k Key) String() string { return fmt.Sprintf("%d:%d", k.AccountID, k.SessionID) }

// Job: тело задачи. Возвращается при отмене ctx или фатальной ошибке.
type Job func(ctx context.Context) error

type task struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// Registry хранит не более одной задачи на ключ.
type Registry struct {
	locks *account_mutex.Keyed

	mu    sync.Mutex
	tasks map[Key]*task

	// OnExit вызывается после завершения задачи (в её горутине).
	OnExit func(key Key, err error)
}

func NewRegistry() *Registry {
	return &Registry{locks: account_mutex.New(), tasks: make(map[Key]*task)}
}

// Start запускает задачу. Уже работающая задача с тем же ключом сначала
// останавливается, и новая стартует только после её завершения.
func (r *Registry) Start(key Key, job Job) {
	r.locks.Lock(key.String())
	defer r.locks.Unlock(key.String())

	if r.stopLocked(key, dispatch.ErrStopped) {
		log.Info().Str("key", key.String()).Msg("[REGISTRY] предыдущая задача остановлена перед перезапуском")
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}
	r.mu.Lock()
	r.tasks[key] = t
	r.mu.Unlock()

	go r.run(ctx, key, t, job)
	log.Info().Str("key", key.String()).Msg("[REGISTRY] задача запущена")
}

func (r *Registry) run(ctx context.Context, key Key, t *task, job Job) {
	defer close(t.done)
	err := safeRun(ctx, key, job)

	r.mu.Lock()
	if r.tasks[key] == t {
		delete(r.tasks, key)
	}
	r.mu.Unlock()
	t.cancel(nil)

	if err != nil {
		log.Warn().Err(err).Str("key", key.String()).Msg("[REGISTRY] задача завершилась с ошибкой")
	} else {
		log.Info().Str("key", key.String()).Msg("[REGISTRY] задача завершена")
	}
	if r.OnExit != nil {
		r.OnExit(key, err)
	}
}

func safeRun(ctx context.Context, key Key, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			crash.CapturePanic(rec, map[string]string{"key": key.String()})
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return job(ctx)
}

// Stop отменяет задачу и ждёт её завершения. Возвращает false, если задачи не было.
func (r *Registry) Stop(key Key) bool {
	r.locks.Lock(key.String())
	defer r.locks.Unlock(key.String())
	return r.stopLocked(key, dispatch.ErrStopped)
}

func (r *Registry) stopLocked(key Key, cause error) bool {
	r.mu.Lock()
	t, ok := r.tasks[key]
	r.mu.Unlock()
	if !ok {
		return false
	}
	t.cancel(cause)
	<-t.done
	return true
}

// IsRunning сообщает, есть ли задача с ключом.
func (r *Registry) IsRunning(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[key]
	return ok
}

// Keys возвращает ключи работающих задач в стабильном порядке.
func (r *Registry) Keys() []Key {
	r.mu.Lock()
	keys := make([]Key, 0, len(r.tasks))
	for k := range r.tasks {
		keys = append(keys, k)
	}
	r.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].AccountID != keys[j].AccountID {
			return keys[i].AccountID < keys[j].AccountID
		}
		return keys[i].SessionID < keys[j].SessionID
	})
	return keys
}

// Count: число работающих задач.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// StopAll отменяет все задачи с указанной причиной и ждёт их завершения.
func (r *Registry) StopAll(cause error) {
	r.mu.Lock()
	tasks := make([]*task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	r.mu.Unlock()

	for _, t := range tasks {
		t.cancel(cause)
	}
	for _, t := range tasks {
		<-t.done
	}
	log.Info().Int("count", len(tasks)).Msg("[REGISTRY] все задачи остановлены")
}
