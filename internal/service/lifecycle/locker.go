package lifecycle

import (
	"context"
	"sync"
)

// Locker сериализует операции над одной заявкой.
type Locker interface {
	// Lock блокирует key до вызова возвращённой функции или отмены ctx.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex — in-process блокировка по ключу. Записи удаляются, когда ключ никому не нужен.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

// NewKeyedMutex создаёт пустой KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.ch
				k.release(key, entry)
			})
		}, nil
	case <-ctx.Done():
		k.release(key, entry)
		return nil, ctx.Err()
	}
}

func (k *KeyedMutex) release(key string, entry *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
}

// size возвращает число активных ключей (для тестов).
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

var _ Locker = (*KeyedMutex)(nil)
