package bufferpool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tuannm99/pagedb/internal/lock"
	"github.com/tuannm99/pagedb/internal/storage"
	"github.com/tuannm99/pagedb/internal/tuple"
	"github.com/tuannm99/pagedb/internal/tx"
)

// DefaultCapacity is the page budget used when the caller passes a
// non-positive capacity.
const DefaultCapacity = 50

var ErrNoRecordID = errors.New("bufferpool: tuple has no record id")

// Pool mediates every page access by transactions. It owns the bounded
// page cache, drives the dirty-aware eviction policy, and fronts the lock
// manager: GetPage acquires the page lock before the cache is consulted,
// which is how strict two-phase locking is enforced for every caller.
//
// The discipline is NO-STEAL + FORCE: dirty pages never reach disk before
// their transaction commits, and commit writes them all back before it
// returns.
type Pool struct {
	mu       sync.Mutex // guards the miss path: evict + read + insert is atomic
	capacity int
	cache    *pageCache
	catalog  Catalog
	locks    *lock.Manager
	log      *zap.Logger
	metrics  *poolMetrics
}

// NewPool creates a pool caching up to capacity pages. logger may be nil;
// reg may be nil to keep metrics unexported.
func NewPool(catalog Catalog, capacity int, logger *zap.Logger, reg prometheus.Registerer) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		capacity: capacity,
		cache:    newPageCache(capacity),
		catalog:  catalog,
		locks:    lock.NewManager(),
		log:      logger,
		metrics:  newPoolMetrics(reg),
	}
}

// GetPage returns the page with the requested permission, blocking until
// the lock is granted. On a miss the page is fetched from its heap file,
// evicting the least recently used clean page if the cache is full; if
// every cached page is dirty the fetch fails with ErrAllPagesDirty.
// GetPage never marks pages dirty: dirtiness follows modification, not
// exclusive intent.
func (p *Pool) GetPage(tid *tx.TransactionID, pid storage.PageID, perm storage.Permission) (storage.Page, error) {
	if err := p.locks.Acquire(tid, pid, perm); err != nil {
		if errors.Is(err, lock.ErrTransactionAborted) {
			p.metrics.deadlocks.Inc()
			p.log.Warn("deadlock detected, aborting requester",
				zap.Stringer("tid", tid),
				zap.Stringer("pid", pid),
				zap.Stringer("perm", perm))
		}
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if pg, ok := p.cache.Get(pid); ok {
		p.metrics.hits.Inc()
		return pg, nil
	}
	p.metrics.misses.Inc()

	if p.cache.Len() >= p.capacity {
		if err := p.evictLocked(); err != nil {
			return nil, err
		}
	}

	file, err := p.catalog.DbFile(pid.TableID)
	if err != nil {
		return nil, err
	}
	pg, err := file.ReadPage(pid)
	if err != nil {
		return nil, fmt.Errorf("bufferpool: read %v: %w", pid, err)
	}
	if err := p.cache.Put(pid, pg); err != nil {
		return nil, err
	}
	p.metrics.cached.Set(float64(p.cache.Len()))
	return pg, nil
}

// evictLocked removes the eviction victim from the cache. The victim is
// clean, so no write-back is needed. Caller holds p.mu.
func (p *Pool) evictLocked() error {
	victim, err := p.cache.Victim()
	if err != nil {
		return err
	}
	p.cache.Remove(victim)
	p.metrics.evictions.Inc()
	p.metrics.cached.Set(float64(p.cache.Len()))
	p.log.Debug("evicted page", zap.Stringer("pid", victim))
	return nil
}

// InsertTuple adds t to the given table. The heap file requests its pages
// through GetPage, so the write lock on the receiving page is in place
// before the page is touched. Every page the file reports modified is
// (re)inserted into the cache and marked dirty by tid.
func (p *Pool) InsertTuple(tid *tx.TransactionID, tableID int, t *tuple.Tuple) error {
	file, err := p.catalog.DbFile(tableID)
	if err != nil {
		return err
	}
	pages, err := file.InsertTuple(tid, t)
	if err != nil {
		return err
	}
	return p.adoptDirty(tid, pages)
}

// DeleteTuple removes t from the table its record ID names.
func (p *Pool) DeleteTuple(tid *tx.TransactionID, t *tuple.Tuple) error {
	if t.RID == nil {
		return ErrNoRecordID
	}
	file, err := p.catalog.DbFile(t.RID.PID.TableID)
	if err != nil {
		return err
	}
	pages, err := file.DeleteTuple(tid, t)
	if err != nil {
		return err
	}
	return p.adoptDirty(tid, pages)
}

// adoptDirty marks the modified pages dirty by tid and makes the cached
// versions current, evicting to make room for pages not already cached.
func (p *Pool) adoptDirty(tid *tx.TransactionID, pages []storage.Page) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pg := range pages {
		pg.MarkDirty(true, tid)
		pid := pg.ID()
		if _, cached := p.cache.Peek(pid); !cached && p.cache.Len() >= p.capacity {
			if err := p.evictLocked(); err != nil {
				return err
			}
		}
		if err := p.cache.Put(pid, pg); err != nil {
			return err
		}
	}
	p.metrics.cached.Set(float64(p.cache.Len()))
	return nil
}

// TransactionComplete ends tid. On commit every page it wrote is flushed
// to its heap file (FORCE); on abort every exclusively held page is
// dropped from the cache so the next reader re-fetches the pre-image.
// Both paths release all of tid's locks.
//
// A flush failure aborts the commit early with the locks still held; the
// caller is expected to come back with commit=false.
func (p *Pool) TransactionComplete(tid *tx.TransactionID, commit bool) error {
	held := p.locks.Held(tid)

	p.mu.Lock()
	for _, g := range held {
		if g.Perm != storage.PermExclusive {
			continue
		}
		if commit {
			if err := p.flushPageLocked(g.PID); err != nil {
				p.mu.Unlock()
				return err
			}
		} else {
			p.cache.Remove(g.PID)
		}
	}
	p.metrics.cached.Set(float64(p.cache.Len()))
	p.mu.Unlock()

	p.locks.ReleaseAll(tid)
	p.log.Debug("transaction complete",
		zap.Stringer("tid", tid),
		zap.Bool("commit", commit),
		zap.Int("locks_released", len(held)))
	return nil
}

// HoldsLock reports whether tid holds a lock on pid.
func (p *Pool) HoldsLock(tid *tx.TransactionID, pid storage.PageID) bool {
	return p.locks.Holds(tid, pid)
}

// ReleasePage drops tid's lock on pid without flushing or discarding
// anything. Releasing mid-transaction breaks strict two-phase locking;
// callers outside recovery-style paths should never need this.
func (p *Pool) ReleasePage(tid *tx.TransactionID, pid storage.PageID) {
	p.locks.Release(tid, pid)
}

// FlushAllPages writes every dirty cached page to its heap file.
func (p *Pool) FlushAllPages() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pid := range p.cache.PageIDs() {
		if err := p.flushPageLocked(pid); err != nil {
			return err
		}
	}
	return nil
}

// FlushPages writes every page dirtied by tid to its heap file.
func (p *Pool) FlushPages(tid *tx.TransactionID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pid := range p.cache.PageIDs() {
		pg, ok := p.cache.Peek(pid)
		if !ok || pg.DirtiedBy() != tid {
			continue
		}
		if err := p.flushPageLocked(pid); err != nil {
			return err
		}
	}
	return nil
}

// DiscardPage removes pid from the cache without flushing. The next
// GetPage re-fetches the on-disk image.
func (p *Pool) DiscardPage(pid storage.PageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Remove(pid)
	p.metrics.cached.Set(float64(p.cache.Len()))
}

// CachedPages returns the number of pages currently cached.
func (p *Pool) CachedPages() int {
	return p.cache.Len()
}

// flushPageLocked writes pid back if cached and dirty, then clears the
// dirty flag. Caller holds p.mu.
func (p *Pool) flushPageLocked(pid storage.PageID) error {
	pg, ok := p.cache.Peek(pid)
	if !ok || pg.DirtiedBy() == nil {
		return nil
	}
	file, err := p.catalog.DbFile(pid.TableID)
	if err != nil {
		return err
	}
	if err := file.WritePage(pg); err != nil {
		return fmt.Errorf("bufferpool: flush %v: %w", pid, err)
	}
	pg.MarkDirty(false, nil)
	p.metrics.flushes.Inc()
	return nil
}
