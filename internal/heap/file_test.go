package heap

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/pagedb/internal/storage"
	"github.com/tuannm99/pagedb/internal/tuple"
	"github.com/tuannm99/pagedb/internal/tx"
)

// fakePool hands pages straight back from the file with no locking; it
// stands in for the buffer pool so file logic can be tested in isolation.
type fakePool struct {
	file  *File
	pages map[storage.PageID]storage.Page
}

func newFakePool(f *File) *fakePool {
	return &fakePool{file: f, pages: make(map[storage.PageID]storage.Page)}
}

func (fp *fakePool) GetPage(_ *tx.TransactionID, pid storage.PageID, _ storage.Permission) (storage.Page, error) {
	if p, ok := fp.pages[pid]; ok {
		return p, nil
	}
	p, err := fp.file.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	fp.pages[pid] = p
	return p, nil
}

func newTestFile(t *testing.T, tableID int) *File {
	t.Helper()
	f, err := Open(filepath.Join(t.TempDir(), "table.dat"), tableID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	f.Bind(newFakePool(f))
	return f
}

func TestFile_EmptyHasNoPages(t *testing.T) {
	f := newTestFile(t, 1)
	require.Equal(t, 0, f.NumPages())
}

func TestFile_WriteReadRoundTrip(t *testing.T) {
	f := newTestFile(t, 1)

	pid := storage.PageID{TableID: 1, PageNo: 0}
	p, err := NewPage(pid, make([]byte, storage.PageSize()))
	require.NoError(t, err)
	_, err = p.InsertTuple([]byte("persist me"))
	require.NoError(t, err)

	require.NoError(t, f.WritePage(p))
	require.Equal(t, 1, f.NumPages())

	// A fresh read must be byte-equal to what was written.
	back, err := f.ReadPage(pid)
	require.NoError(t, err)
	require.True(t, bytes.Equal(p.Data(), back.Data()))
}

func TestFile_ReadPastEndIsZeroFilled(t *testing.T) {
	f := newTestFile(t, 1)

	p, err := f.ReadPage(storage.PageID{TableID: 1, PageNo: 9})
	require.NoError(t, err)
	hp := p.(*Page)
	require.Equal(t, 0, hp.NumSlots())
}

func TestFile_WrongTableRejected(t *testing.T) {
	f := newTestFile(t, 1)

	_, err := f.ReadPage(storage.PageID{TableID: 2, PageNo: 0})
	require.ErrorIs(t, err, ErrWrongTable)
}

func TestFile_InsertAppendsFirstPage(t *testing.T) {
	f := newTestFile(t, 1)
	t1 := tx.NewTransactionID()

	tp := tuple.New([]byte("row-one"))
	pages, err := f.InsertTuple(t1, tp)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, 1, f.NumPages())

	require.NotNil(t, tp.RID)
	require.Equal(t, storage.PageID{TableID: 1, PageNo: 0}, tp.RID.PID)
	require.Equal(t, 0, tp.RID.Slot)
}

func TestFile_InsertSpillsToFreshPage(t *testing.T) {
	storage.SetPageSize(128)
	defer storage.ResetPageSize()

	f := newTestFile(t, 1)
	t1 := tx.NewTransactionID()

	// Insert until page 0 cannot hold another row; the next insert must
	// land on an appended page.
	row := make([]byte, 40)
	lastPageNo := 0
	for i := 0; i < 8; i++ {
		tp := tuple.New(row)
		_, err := f.InsertTuple(t1, tp)
		require.NoError(t, err)
		lastPageNo = tp.RID.PID.PageNo
	}
	require.Greater(t, lastPageNo, 0)
	require.Greater(t, f.NumPages(), 1)
}

func TestFile_DeleteTuple(t *testing.T) {
	f := newTestFile(t, 1)
	t1 := tx.NewTransactionID()

	tp := tuple.New([]byte("to-delete"))
	_, err := f.InsertTuple(t1, tp)
	require.NoError(t, err)

	pages, err := f.DeleteTuple(t1, tp)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	hp := pages[0].(*Page)
	live, err := hp.IsLiveSlot(tp.RID.Slot)
	require.NoError(t, err)
	require.False(t, live)
}

func TestFile_DeleteNeedsRecordID(t *testing.T) {
	f := newTestFile(t, 1)
	_, err := f.DeleteTuple(tx.NewTransactionID(), tuple.New([]byte("x")))
	require.ErrorIs(t, err, ErrNoRecordID)
}

func TestFile_ScanVisitsLiveRows(t *testing.T) {
	f := newTestFile(t, 1)
	t1 := tx.NewTransactionID()

	var inserted []*tuple.Tuple
	for i := 0; i < 5; i++ {
		tp := tuple.New([]byte(fmt.Sprintf("row-%d", i)))
		_, err := f.InsertTuple(t1, tp)
		require.NoError(t, err)
		inserted = append(inserted, tp)
	}
	_, err := f.DeleteTuple(t1, inserted[2])
	require.NoError(t, err)

	var got []string
	require.NoError(t, f.Scan(t1, func(tp *tuple.Tuple) error {
		got = append(got, string(tp.Data))
		return nil
	}))
	require.Equal(t, []string{"row-0", "row-1", "row-3", "row-4"}, got)
}

func TestFile_UnboundRejectsMutations(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "unbound.dat"), 1)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.InsertTuple(tx.NewTransactionID(), tuple.New([]byte("x")))
	require.ErrorIs(t, err, ErrNotBound)
}
