package local

import (
	"sync"
	"time"
)

// IDAllocator выдает временные отрицательные идентификаторы для сущностей,
// созданных offline. Значение: -(now_millis + counter++), при этом каждый
// следующий ID строго меньше предыдущего, даже если часы идут назад.
type IDAllocator struct {
	now     func() time.Time // источник времени, подменяется в тестах
	counter int64            // монотонно возрастающий счетчик
	last    int64            // последний выданный ID
	mu      sync.Mutex       // мьютекс для потокобезопасности
}

// NewIDAllocator creates an allocator driven by the wall clock.
func NewIDAllocator() *IDAllocator {
	return NewIDAllocatorWithClock(time.Now)
}

// NewIDAllocatorWithClock creates an allocator with an injected clock.
// Используется для тестирования.
func NewIDAllocatorWithClock(now func() time.Time) *IDAllocator {
	return &IDAllocator{now: now}
}

// Next returns a new temporary ID.
func (a *IDAllocator) Next() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := -(a.now().UnixMilli() + a.counter)
	a.counter++

	if a.last != 0 && id >= a.last {
		id = a.last - 1
	}
	if id >= 0 {
		id = -1
	}
	a.last = id
	return id
}

// Observe makes sure future IDs stay below id.
// Вызывается при загрузке уже существующих локальных записей.
func (a *IDAllocator) Observe(id int64) {
	if id >= 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.last == 0 || id < a.last {
		a.last = id
	}
}

// Last returns the most recently issued (or observed) ID, 0 if none.
func (a *IDAllocator) Last() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.last
}
