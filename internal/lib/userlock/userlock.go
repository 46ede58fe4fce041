// Package userlock реализует набор мьютексов по идентификатору пользователя.
// Все операции, которые читают и затем изменяют поля подписки одного
// пользователя, обязаны выполняться под его замком: два одновременных
// запроса пробного периода не должны оба увидеть is_trial_used = false.
// Координация между разными пользователями не требуется.
package userlock

import "sync"

// Set хранит по одному мьютексу на идентификатор.
type Set struct {
	mu sync.Map // int64 -> *sync.Mutex
}

// New создает новый набор замков.
func New() *Set {
	return &Set{}
}

// Lock захватывает замок пользователя и возвращает функцию освобождения.
//
//	unlock := locks.Lock(userID)
//	defer unlock()
func (s *Set) Lock(userID int64) func() {
	v, _ := s.mu.LoadOrStore(userID, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
