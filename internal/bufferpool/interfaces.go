package bufferpool

import (
	"github.com/tuannm99/pagedb/internal/storage"
	"github.com/tuannm99/pagedb/internal/tuple"
	"github.com/tuannm99/pagedb/internal/tx"
)

// DbFile is the page-addressable backing store the pool consumes. Insert
// and delete report back every page they modified; both fetch their pages
// through the pool so page locks are held before any byte is touched.
type DbFile interface {
	ReadPage(pid storage.PageID) (storage.Page, error)
	WritePage(p storage.Page) error
	InsertTuple(tid *tx.TransactionID, t *tuple.Tuple) ([]storage.Page, error)
	DeleteTuple(tid *tx.TransactionID, t *tuple.Tuple) ([]storage.Page, error)
	NumPages() int
	TableID() int
}

// Catalog resolves a table ID to its backing file.
type Catalog interface {
	DbFile(tableID int) (DbFile, error)
}
