package heap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/pagedb/internal/storage"
	"github.com/tuannm99/pagedb/internal/tx"
)

func newBlankPage(t *testing.T, pageNo int) *Page {
	t.Helper()
	p, err := NewPage(storage.PageID{TableID: 1, PageNo: pageNo}, make([]byte, storage.PageSize()))
	require.NoError(t, err)
	return p
}

func TestPage_FormatOnZeroImage(t *testing.T) {
	p := newBlankPage(t, 3)

	require.Equal(t, 0, p.NumSlots())
	require.Equal(t, storage.PageSize()-HeaderSize, p.FreeSpace())
	require.Equal(t, storage.PageID{TableID: 1, PageNo: 3}, p.ID())
}

func TestPage_WrongBufferSize(t *testing.T) {
	_, err := NewPage(storage.PageID{TableID: 1, PageNo: 0}, make([]byte, 100))
	require.ErrorIs(t, err, storage.ErrWrongSize)
}

func TestPage_InsertReadDelete(t *testing.T) {
	p := newBlankPage(t, 0)

	slot, err := p.InsertTuple([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 0, slot)

	slot2, err := p.InsertTuple([]byte("world!"))
	require.NoError(t, err)
	require.Equal(t, 1, slot2)

	got, err := p.ReadTuple(slot)
	require.NoError(t, err)
	require.True(t, bytes.Equal([]byte("hello"), got))

	require.NoError(t, p.DeleteTuple(slot))
	live, err := p.IsLiveSlot(slot)
	require.NoError(t, err)
	require.False(t, live)

	_, err = p.ReadTuple(slot)
	require.ErrorIs(t, err, ErrBadSlot)

	// Double delete is an error.
	require.ErrorIs(t, p.DeleteTuple(slot), ErrBadSlot)

	// The other tuple is untouched.
	got, err = p.ReadTuple(slot2)
	require.NoError(t, err)
	require.True(t, bytes.Equal([]byte("world!"), got))
}

func TestPage_DeletedSlotReuse(t *testing.T) {
	p := newBlankPage(t, 0)

	slot, err := p.InsertTuple([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, p.DeleteTuple(slot))

	// Fill the rest of the free space so only the deleted slot fits.
	for p.FreeSpace() >= SlotSize+1 {
		_, err := p.InsertTuple([]byte{0xff})
		require.NoError(t, err)
	}

	reused, err := p.InsertTuple([]byte("tiny"))
	require.NoError(t, err)
	require.Equal(t, slot, reused)

	got, err := p.ReadTuple(reused)
	require.NoError(t, err)
	require.True(t, bytes.Equal([]byte("tiny"), got))
}

func TestPage_NoSpace(t *testing.T) {
	storage.SetPageSize(128)
	defer storage.ResetPageSize()

	p := newBlankPage(t, 0)
	big := make([]byte, 128)
	_, err := p.InsertTuple(big)
	require.ErrorIs(t, err, ErrNoSpace)
	require.False(t, p.HasSpaceFor(len(big)))
	require.True(t, p.HasSpaceFor(32))
}

func TestPage_DirtyTracking(t *testing.T) {
	p := newBlankPage(t, 0)
	require.Nil(t, p.DirtiedBy())

	t1 := tx.NewTransactionID()
	p.MarkDirty(true, t1)
	require.Same(t, t1, p.DirtiedBy())

	p.MarkDirty(false, nil)
	require.Nil(t, p.DirtiedBy())
}

func TestPage_BadSlotIndexes(t *testing.T) {
	p := newBlankPage(t, 0)
	_, err := p.ReadTuple(0)
	require.ErrorIs(t, err, ErrBadSlot)
	_, err = p.ReadTuple(-1)
	require.ErrorIs(t, err, ErrBadSlot)
	require.ErrorIs(t, p.DeleteTuple(5), ErrBadSlot)
}
