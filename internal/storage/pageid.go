package storage

import "fmt"

// PageID names one page of one table: (table, page number). It is a plain
// value type so it can key maps directly.
type PageID struct {
	TableID int
	PageNo  int
}

// Less orders page IDs by (TableID, PageNo). Commit and release paths
// iterate locked pages in this order so runs are deterministic.
func (p PageID) Less(other PageID) bool {
	if p.TableID != other.TableID {
		return p.TableID < other.TableID
	}
	return p.PageNo < other.PageNo
}

func (p PageID) String() string {
	return fmt.Sprintf("page(%d,%d)", p.TableID, p.PageNo)
}
