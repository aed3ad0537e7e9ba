package lock

import (
	"sort"
	"sync"

	"github.com/tuannm99/pagedb/internal/storage"
	"github.com/tuannm99/pagedb/internal/tx"
)

// Grant is one entry of a transaction's lock view: a page and the mode
// currently held on it.
type Grant struct {
	PID  storage.PageID
	Perm storage.Permission
}

// Manager owns per-page locks, the per-transaction lock records, and the
// wait-for graph. Lock-table and record mutations go through the manager
// mutex; the wait-for graph is guarded by its own mutex. The blocking
// itself happens inside the page locks, never under either.
type Manager struct {
	mu      sync.Mutex
	locks   map[storage.PageID]*pageLock
	records map[*tx.TransactionID]map[storage.PageID]storage.Permission
	graph   *waitForGraph
}

func NewManager() *Manager {
	return &Manager{
		locks:   make(map[storage.PageID]*pageLock),
		records: make(map[*tx.TransactionID]map[storage.PageID]storage.Permission),
		graph:   newWaitForGraph(),
	}
}

// Acquire takes pid in the requested mode on behalf of tid. It is
// reentrant: a request at the held mode or weaker returns immediately.
// Holding shared and requesting exclusive performs an upgrade. Before any
// blocking wait the detector is consulted; ErrTransactionAborted means
// granting the request would have closed a wait-for cycle.
func (m *Manager) Acquire(tid *tx.TransactionID, pid storage.PageID, perm storage.Permission) error {
	m.mu.Lock()
	cur, held := m.records[tid][pid]
	if held && (cur == storage.PermExclusive || perm == storage.PermShared) {
		m.mu.Unlock()
		return nil
	}
	pl, ok := m.locks[pid]
	if !ok {
		pl = newPageLock()
		m.locks[pid] = pl
	}
	m.mu.Unlock()

	if err := m.graph.Check(tid, pid, perm); err != nil {
		return err
	}

	switch {
	case held: // shared held, exclusive requested
		pl.upgrade(tid)
	case perm == storage.PermShared:
		pl.acquireShared(tid)
	default:
		pl.acquireExclusive(tid)
	}
	m.graph.Grant(tid, pid, perm)

	m.mu.Lock()
	set := m.records[tid]
	if set == nil {
		set = make(map[storage.PageID]storage.Permission)
		m.records[tid] = set
	}
	set[pid] = perm
	m.mu.Unlock()
	return nil
}

// Holds reports whether tid currently holds any lock on pid.
func (m *Manager) Holds(tid *tx.TransactionID, pid storage.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.records[tid][pid]
	return held
}

// Release drops tid's lock on pid according to the recorded mode. No-op if
// tid holds nothing on pid.
func (m *Manager) Release(tid *tx.TransactionID, pid storage.PageID) {
	m.mu.Lock()
	perm, held := m.records[tid][pid]
	if !held {
		m.mu.Unlock()
		return
	}
	pl := m.locks[pid]
	delete(m.records[tid], pid)
	if len(m.records[tid]) == 0 {
		delete(m.records, tid)
	}
	m.mu.Unlock()

	if perm == storage.PermShared {
		pl.releaseShared()
	} else {
		pl.releaseExclusive()
	}
	m.graph.Release(tid, pid)
}

// ReleaseAll drops every lock tid holds, in page order.
func (m *Manager) ReleaseAll(tid *tx.TransactionID) {
	for _, g := range m.Held(tid) {
		m.Release(tid, g.PID)
	}
}

// Held returns tid's current lock view sorted by page ID, for
// deterministic iteration at commit and abort.
func (m *Manager) Held(tid *tx.TransactionID) []Grant {
	m.mu.Lock()
	grants := make([]Grant, 0, len(m.records[tid]))
	for pid, perm := range m.records[tid] {
		grants = append(grants, Grant{PID: pid, Perm: perm})
	}
	m.mu.Unlock()

	sort.Slice(grants, func(i, j int) bool {
		return grants[i].PID.Less(grants[j].PID)
	})
	return grants
}
