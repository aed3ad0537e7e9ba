package lock

import (
	"sync"

	"github.com/tuannm99/pagedb/internal/tx"
)

// pageLock is the per-page readers-writer lock with upgrade. It is a single
// monitor: one mutex, one condition variable, and predicates spelled out
// directly. Invariants: writer != nil implies readers == 0; at most one
// upgrader is in flight (the deadlock detector aborts a second one before
// it ever reaches upgrade).
type pageLock struct {
	mu        sync.Mutex
	cond      *sync.Cond
	readers   int
	writer    *tx.TransactionID
	upgrading *tx.TransactionID
}

func newPageLock() *pageLock {
	l := &pageLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// acquireShared blocks until there is no exclusive holder.
func (l *pageLock) acquireShared(tid *tx.TransactionID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.writer != nil {
		l.cond.Wait()
	}
	l.readers++
}

// acquireExclusive blocks until there are no holders at all.
func (l *pageLock) acquireExclusive(tid *tx.TransactionID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.writer != nil || l.readers > 0 {
		l.cond.Wait()
	}
	l.writer = tid
}

// upgrade transitions tid from shared to exclusive. The caller must hold a
// shared lock. Blocks until tid is the sole reader, then swaps the shared
// hold for the exclusive one atomically under the monitor.
func (l *pageLock) upgrade(tid *tx.TransactionID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.upgrading = tid
	for l.readers > 1 || l.writer != nil {
		l.cond.Wait()
	}
	l.readers--
	l.writer = tid
	l.upgrading = nil
	l.cond.Broadcast()
}

func (l *pageLock) releaseShared() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readers--
	l.cond.Broadcast()
}

func (l *pageLock) releaseExclusive() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = nil
	l.cond.Broadcast()
}
