package guard

import (
	"errors"
	"sync/atomic"
)

var ErrReentrantCall = errors.New("reentrant call")

// Lock is a held/free flag. The zero value is free.
type Lock struct {
	held atomic.Bool
}

// Enter takes the lock or fails with ErrReentrantCall. Callers defer the
// returned release.
func (l *Lock) Enter() (func(), error) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	return func() { l.held.Store(false) }, nil
}

// Held reports whether an operation is in progress.
func (l *Lock) Held() bool {
	return l.held.Load()
}
