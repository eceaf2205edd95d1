package services

import "sync"

// keyLocks сериализует изменения одного лота или одной закупки внутри процесса.
// Между экземплярами порядок обеспечивают условные обновления хранилища.
// Порядок захвата: сначала лот, затем закупка.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*sync.Mutex)}
}

// lock захватывает блокировку ключа и возвращает функцию её освобождения.
func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func lotKey(lotID string) string       { return "lot:" + lotID }
func tenderKey(tenderID string) string { return "tender:" + tenderID }
