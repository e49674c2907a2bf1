package quadtree

import "sync"

// Lock is the synchronization handle attached to the tree and to each of its
// nodes. Handles are created by the installed LockProvider and released with
// Free when the owning node is discarded.
type Lock interface {
	Lock()
	Unlock()

	// Free releases any resource held by the handle. The handle must not be
	// used afterwards.
	Free()
}

// LockProvider creates the lock handles used by a tree. Installing a provider
// with Tree.SetSynchronization makes the tree safe for concurrent use.
type LockProvider interface {
	NewLock() Lock
}

// MutexProvider is a LockProvider backed by sync.Mutex.
type MutexProvider struct{}

func (MutexProvider) NewLock() Lock {
	return &mutexLock{}
}

type mutexLock struct {
	sync.Mutex
}

func (l *mutexLock) Free() {}

// noopProvider is the default provider. Every handle it creates does nothing,
// which degrades the tree to single-threaded use with no locking overhead.
type noopProvider struct{}

func (noopProvider) NewLock() Lock {
	return noopLock{}
}

type noopLock struct{}

func (noopLock) Lock()   {}
func (noopLock) Unlock() {}
func (noopLock) Free()   {}
