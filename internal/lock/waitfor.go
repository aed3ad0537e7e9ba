package lock

import (
	"errors"
	"sync"

	"github.com/tuannm99/pagedb/internal/storage"
	"github.com/tuannm99/pagedb/internal/tx"
)

// ErrTransactionAborted is returned when granting a lock request would
// close a wait-for cycle. The requester is the victim; it must call
// TransactionComplete with commit=false to roll back.
var ErrTransactionAborted = errors.New("lock: transaction aborted by deadlock detector")

type waitEdge struct {
	pid  storage.PageID
	perm storage.Permission
}

// waitForGraph is the deadlock detector's state: at most one wait per
// transaction, plus the current holders of every page. Check, Grant, and
// Release are mutually exclusive; the graph mutex covers all three.
type waitForGraph struct {
	mu      sync.Mutex
	waitsOn map[*tx.TransactionID]waitEdge
	holders map[storage.PageID]map[*tx.TransactionID]storage.Permission
}

func newWaitForGraph() *waitForGraph {
	return &waitForGraph{
		waitsOn: make(map[*tx.TransactionID]waitEdge),
		holders: make(map[storage.PageID]map[*tx.TransactionID]storage.Permission),
	}
}

// Check tentatively records "tid waits on pid for perm" and searches for a
// cycle leading back to tid. On a cycle the tentative edge is removed and
// ErrTransactionAborted returned. Otherwise the edge stays in place until
// Grant removes it; keeping it lets concurrent checks see requests that
// have passed Check but not yet been granted.
func (g *waitForGraph) Check(tid *tx.TransactionID, pid storage.PageID, perm storage.Permission) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.waitsOn[tid] = waitEdge{pid: pid, perm: perm}
	visited := map[*tx.TransactionID]bool{tid: true}
	if g.wouldDeadlock(tid, tid, visited) {
		delete(g.waitsOn, tid)
		return ErrTransactionAborted
	}
	return nil
}

// wouldDeadlock walks holder edges from cur's wait, looking for start.
// Two shared holds are compatible and form no edge; a holder that is the
// waiting transaction itself (the upgrade case) is skipped.
func (g *waitForGraph) wouldDeadlock(start, cur *tx.TransactionID, visited map[*tx.TransactionID]bool) bool {
	edge, waiting := g.waitsOn[cur]
	if !waiting {
		return false
	}
	for holder, held := range g.holders[edge.pid] {
		if holder == cur {
			continue
		}
		if held == storage.PermShared && edge.perm == storage.PermShared {
			continue
		}
		if holder == start {
			return true
		}
		if visited[holder] {
			continue
		}
		visited[holder] = true
		if g.wouldDeadlock(start, holder, visited) {
			return true
		}
	}
	return false
}

// Grant removes tid's wait edge and records it as a holder of pid. An
// upgrade overwrites the shared entry with the exclusive one.
func (g *waitForGraph) Grant(tid *tx.TransactionID, pid storage.PageID, perm storage.Permission) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.waitsOn, tid)
	set := g.holders[pid]
	if set == nil {
		set = make(map[*tx.TransactionID]storage.Permission)
		g.holders[pid] = set
	}
	set[tid] = perm
}

// Release drops tid from pid's holder set.
func (g *waitForGraph) Release(tid *tx.TransactionID, pid storage.PageID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.holders[pid]
	if !ok {
		return
	}
	delete(set, tid)
	if len(set) == 0 {
		delete(g.holders, pid)
	}
}
