package economy

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository хранит записи экономики целиком: операция либо сохраняет всю
// запись, либо ничего.
type Repository interface {
	// Get возвращает запись в сохранённом виде.
	// Возвращает ErrEconomyNotFound, если записи нет.
	Get(ctx context.Context, userID string) (RawRecord, error)

	// Create сохраняет новую запись.
	// Возвращает ErrEconomyAlreadyExists, если запись уже есть.
	Create(ctx context.Context, rec *Record) error

	// Save перезаписывает запись, если сохранённая версия совпадает с
	// rec.Version, и увеличивает rec.Version.
	// Возвращает ErrStaleRecord при конфликте версий и
	// ErrEconomyNotFound, если записи нет.
	Save(ctx context.Context, rec *Record) error
}

// UnlockFunc снимает блокировку пользователя.
type UnlockFunc func()

// Locker сериализует операции одного пользователя.
type Locker interface {
	// Lock ждёт блокировку пользователя до отмены ctx.
	// Возвращает ErrLockNotAcquired, если блокировку получить не удалось.
	Lock(ctx context.Context, userID string) (UnlockFunc, error)
}
