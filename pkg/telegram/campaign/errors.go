package campaign

import "errors"

var (
	// ErrLinkUnparsable: ссылка на пост не соответствует ни одному формату.
	ErrLinkUnparsable = errors.New("unrecognized post link")
	// ErrSourceUnreachable: канал-источник первой ссылки недоступен; запуск прерывается.
	ErrSourceUnreachable = errors.New("source unreachable")
	// ErrNoTargets: не найдено ни одной группы или темы для рассылки.
	ErrNoTargets = errors.New("no targets to send to")
	// ErrShutdown: причина отмены при остановке процесса.
	ErrShutdown = errors.New("process shutdown")
	// ErrStopped: причина отмены по команде оператора или при перезапуске кампании.
	ErrStopped = errors.New("campaign stopped")
	// ErrMessageMissing: пост-источник удалён или недоступен.
	ErrMessageMissing = errors.New("source message not found")
)
