package stripe

import (
	"sync"
)

// LockManager manages per-invoice locks so concurrent webhook deliveries for
// the same invoice do not interleave, while deliveries for different invoices
// proceed in parallel.
type LockManager struct {
	locks sync.Map // map[string]*sync.Mutex
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{}
}

// LockInvoice acquires the lock for the given invoice ID.
// Returns a function that must be called to release the lock.
func (lm *LockManager) LockInvoice(invoiceID string) func() {
	lockInterface, _ := lm.locks.LoadOrStore(invoiceID, &sync.Mutex{})
	lock, ok := lockInterface.(*sync.Mutex)
	if !ok {
		// This should never happen if we only store *sync.Mutex values
		panic("unexpected type in lock manager")
	}

	lock.Lock()

	return func() {
		lock.Unlock()
	}
}

// CleanupLocks removes locks that are not currently held. It can be called
// periodically to keep the map from growing with one entry per invoice ever
// seen.
func (lm *LockManager) CleanupLocks() {
	lm.locks.Range(func(key, value any) bool {
		lock, ok := value.(*sync.Mutex)
		if !ok {
			return true
		}
		if lock.TryLock() {
			lock.Unlock()
			lm.locks.Delete(key)
		}
		return true
	})
}
