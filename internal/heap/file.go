package heap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tuannm99/pagedb/internal/storage"
	"github.com/tuannm99/pagedb/internal/tuple"
	"github.com/tuannm99/pagedb/internal/tx"
)

var (
	ErrNoRecordID = errors.New("heap: tuple has no record id")
	ErrWrongTable = errors.New("heap: tuple belongs to a different table")
	ErrNotBound   = errors.New("heap: file is not bound to a buffer pool")
)

// PageFetcher is the slice of the buffer pool the heap file needs: every
// page access during insert, delete, and scan goes through it so page
// locks are taken on the caller's behalf.
type PageFetcher interface {
	GetPage(tid *tx.TransactionID, pid storage.PageID, perm storage.Permission) (storage.Page, error)
}

// File is a heap file: a headerless concatenation of fixed-size pages
// holding unordered tuples. Page n lives at byte offset n*PageSize.
type File struct {
	mu      sync.Mutex // serializes appends and size reads
	file    *os.File
	tableID int
	pool    PageFetcher
}

// Open opens or creates the heap file at path.
func Open(path string, tableID int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, storage.FileMode0644)
	if err != nil {
		return nil, fmt.Errorf("heap: open %s: %w", path, err)
	}
	return &File{file: f, tableID: tableID}, nil
}

// Bind attaches the buffer pool the file fetches pages through. Must be
// called before InsertTuple, DeleteTuple, or Scan.
func (f *File) Bind(pool PageFetcher) {
	f.pool = pool
}

func (f *File) TableID() int { return f.tableID }

// NumPages returns ceil(file length / page size).
func (f *File) NumPages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.numPagesLocked()
}

func (f *File) numPagesLocked() int {
	info, err := f.file.Stat()
	if err != nil {
		return 0
	}
	ps := int64(storage.PageSize())
	return int((info.Size() + ps - 1) / ps)
}

// ReadPage reads one page image from disk. A read past the current end of
// file, or a short read, yields a zero-filled remainder so fresh pages
// come back uninitialized and are formatted lazily.
func (f *File) ReadPage(pid storage.PageID) (storage.Page, error) {
	if pid.TableID != f.tableID {
		return nil, ErrWrongTable
	}
	buf := make([]byte, storage.PageSize())
	off := int64(pid.PageNo) * int64(storage.PageSize())
	n, err := f.file.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("heap: read %v: %w", pid, err)
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return NewPage(pid, buf)
}

// WritePage writes the page image back to its slot in the file.
func (f *File) WritePage(p storage.Page) error {
	pid := p.ID()
	if pid.TableID != f.tableID {
		return ErrWrongTable
	}
	off := int64(pid.PageNo) * int64(storage.PageSize())
	if _, err := f.file.WriteAt(p.Data(), off); err != nil {
		return fmt.Errorf("heap: write %v: %w", pid, err)
	}
	return nil
}

// InsertTuple places t on some page with room, appending a fresh page when
// every existing page is full. Pages are visited in ascending page number
// under a shared lock; only the page that actually receives the tuple is
// re-fetched with an exclusive lock. Returns the pages it modified.
func (f *File) InsertTuple(tid *tx.TransactionID, t *tuple.Tuple) ([]storage.Page, error) {
	if f.pool == nil {
		return nil, ErrNotBound
	}

	for {
		n := f.NumPages()
		for pageNo := 0; pageNo < n; pageNo++ {
			pid := storage.PageID{TableID: f.tableID, PageNo: pageNo}

			p, err := f.pool.GetPage(tid, pid, storage.PermShared)
			if err != nil {
				return nil, err
			}
			hp, err := asHeapPage(p)
			if err != nil {
				return nil, err
			}
			if !hp.HasSpaceFor(len(t.Data)) {
				continue
			}

			// Upgrade to exclusive; nobody can have filled the page in
			// between because writers need the exclusive lock we are
			// about to take while we already hold shared. Re-fetch the
			// page object: a clean page may have been evicted and
			// re-read since the shared fetch.
			p, err = f.pool.GetPage(tid, pid, storage.PermExclusive)
			if err != nil {
				return nil, err
			}
			hp, err = asHeapPage(p)
			if err != nil {
				return nil, err
			}
			slot, err := hp.InsertTuple(t.Data)
			if err != nil {
				return nil, err
			}
			t.RID = &tuple.RecordID{PID: pid, Slot: slot}
			return []storage.Page{hp}, nil
		}

		pid, err := f.appendPage()
		if err != nil {
			return nil, err
		}
		p, err := f.pool.GetPage(tid, pid, storage.PermExclusive)
		if err != nil {
			return nil, err
		}
		hp, err := asHeapPage(p)
		if err != nil {
			return nil, err
		}
		slot, err := hp.InsertTuple(t.Data)
		if err == ErrNoSpace {
			// Another inserter claimed the fresh page first; rescan.
			continue
		}
		if err != nil {
			return nil, err
		}
		t.RID = &tuple.RecordID{PID: pid, Slot: slot}
		return []storage.Page{hp}, nil
	}
}

// appendPage grows the file by one zero-initialized page and returns its ID.
func (f *File) appendPage() (storage.PageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pageNo := f.numPagesLocked()
	zero := make([]byte, storage.PageSize())
	off := int64(pageNo) * int64(storage.PageSize())
	if _, err := f.file.WriteAt(zero, off); err != nil {
		return storage.PageID{}, fmt.Errorf("heap: append page %d: %w", pageNo, err)
	}
	return storage.PageID{TableID: f.tableID, PageNo: pageNo}, nil
}

// DeleteTuple removes the tuple at t.RID under an exclusive page lock and
// returns the modified page.
func (f *File) DeleteTuple(tid *tx.TransactionID, t *tuple.Tuple) ([]storage.Page, error) {
	if f.pool == nil {
		return nil, ErrNotBound
	}
	if t.RID == nil {
		return nil, ErrNoRecordID
	}
	if t.RID.PID.TableID != f.tableID {
		return nil, ErrWrongTable
	}

	p, err := f.pool.GetPage(tid, t.RID.PID, storage.PermExclusive)
	if err != nil {
		return nil, err
	}
	hp, err := asHeapPage(p)
	if err != nil {
		return nil, err
	}
	if err := hp.DeleteTuple(t.RID.Slot); err != nil {
		return nil, err
	}
	return []storage.Page{hp}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.file.Close()
}

func asHeapPage(p storage.Page) (*Page, error) {
	hp, ok := p.(*Page)
	if !ok {
		return nil, fmt.Errorf("heap: page %v is not a heap page", p.ID())
	}
	return hp, nil
}
