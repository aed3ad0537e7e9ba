package heap

import (
	"github.com/tuannm99/pagedb/internal/storage"
	"github.com/tuannm99/pagedb/internal/tuple"
	"github.com/tuannm99/pagedb/internal/tx"
)

// Scan iterates every live tuple in the file in (page, slot) order,
// fetching each page through the buffer pool under a shared lock. It
// skips deleted slots so each logical row is visited exactly once.
func (f *File) Scan(tid *tx.TransactionID, fn func(t *tuple.Tuple) error) error {
	if f.pool == nil {
		return ErrNotBound
	}

	n := f.NumPages()
	for pageNo := 0; pageNo < n; pageNo++ {
		pid := storage.PageID{TableID: f.tableID, PageNo: pageNo}

		p, err := f.pool.GetPage(tid, pid, storage.PermShared)
		if err != nil {
			return err
		}
		hp, err := asHeapPage(p)
		if err != nil {
			return err
		}

		for slot := 0; slot < hp.NumSlots(); slot++ {
			live, err := hp.IsLiveSlot(slot)
			if err != nil {
				return err
			}
			if !live {
				continue
			}

			data, err := hp.ReadTuple(slot)
			if err != nil {
				return err
			}
			t := &tuple.Tuple{
				Data: data,
				RID:  &tuple.RecordID{PID: pid, Slot: slot},
			}
			if err := fn(t); err != nil {
				return err
			}
		}
	}
	return nil
}
