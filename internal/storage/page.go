package storage

import "github.com/tuannm99/pagedb/internal/tx"

// Permission is the lock mode a transaction requests on a page.
type Permission int

const (
	PermShared Permission = iota
	PermExclusive
)

func (p Permission) String() string {
	if p == PermExclusive {
		return "EXCLUSIVE"
	}
	return "SHARED"
}

// Page is one fixed-size page image owned by the buffer pool while cached.
// Reads of Data are safe under any held lock mode; writes require an
// exclusive lock on the page's ID.
type Page interface {
	// ID returns the page's identity.
	ID() PageID

	// Data returns the backing byte image, exactly PageSize() long.
	// Mutations through the returned slice are visible to the page.
	Data() []byte

	// DirtiedBy returns the transaction that dirtied the page, or nil
	// if the page is clean.
	DirtiedBy() *tx.TransactionID

	// MarkDirty records that tid modified the page, or clears the dirty
	// state when dirty is false.
	MarkDirty(dirty bool, tid *tx.TransactionID)
}
