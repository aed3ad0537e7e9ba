package heap

import (
	"encoding/binary"
	"errors"

	"github.com/tuannm99/pagedb/internal/storage"
	"github.com/tuannm99/pagedb/internal/tx"
)

// Header offsets
const (
	offFlags  = 0
	offPageNo = 2
	offLower  = 6
	offUpper  = 8

	HeaderSize = 10
	SlotSize   = 6
)

// Slot flags
const (
	SlotFlagNormal  uint16 = 0
	SlotFlagDeleted uint16 = 1 << 0
)

var (
	ErrNoSpace = errors.New("heap: not enough free space")
	ErrBadSlot = errors.New("heap: invalid slot")
)

type slot struct {
	Offset uint16
	Length uint16
	Flags  uint16
}

// +------------------+ 0
// | header           |
// | slots[]          | <-- lower
// +------------------+
// |   free space     |
// +------------------+ <-- upper
// |  tuple data      |
// |  (grows down)    |
// +------------------+ page size
//
// Page is one slotted heap page. The byte image is the unit of disk I/O;
// the dirty state lives outside the image and never hits disk.
type Page struct {
	pid     storage.PageID
	buf     []byte
	dirtier *tx.TransactionID
}

// NewPage wraps a page-sized buffer. An all-zero image is treated as
// uninitialized and formatted in place.
func NewPage(pid storage.PageID, buf []byte) (*Page, error) {
	if len(buf) != storage.PageSize() {
		return nil, storage.ErrWrongSize
	}
	p := &Page{pid: pid, buf: buf}
	if p.lower() == 0 && p.upper() == 0 {
		p.format()
	}
	return p, nil
}

func (p *Page) format() {
	for i := range p.buf {
		p.buf[i] = 0
	}
	binary.LittleEndian.PutUint32(p.buf[offPageNo:], uint32(p.pid.PageNo))
	p.setLower(HeaderSize)
	p.setUpper(uint16(len(p.buf)))
}

// ---- storage.Page ----

func (p *Page) ID() storage.PageID { return p.pid }

func (p *Page) Data() []byte { return p.buf }

func (p *Page) DirtiedBy() *tx.TransactionID { return p.dirtier }

func (p *Page) MarkDirty(dirty bool, tid *tx.TransactionID) {
	if dirty {
		p.dirtier = tid
	} else {
		p.dirtier = nil
	}
}

// ---- low-level header getters/setters ----

func (p *Page) lower() uint16 {
	return binary.LittleEndian.Uint16(p.buf[offLower:])
}

func (p *Page) setLower(v uint16) {
	binary.LittleEndian.PutUint16(p.buf[offLower:], v)
}

func (p *Page) upper() uint16 {
	return binary.LittleEndian.Uint16(p.buf[offUpper:])
}

func (p *Page) setUpper(v uint16) {
	binary.LittleEndian.PutUint16(p.buf[offUpper:], v)
}

// ---- slots ----

func (p *Page) slotOff(idx int) int {
	return HeaderSize + idx*SlotSize
}

func (p *Page) getSlot(i int) (slot, error) {
	if i < 0 || i >= p.NumSlots() {
		return slot{}, ErrBadSlot
	}
	o := p.slotOff(i)
	return slot{
		Offset: binary.LittleEndian.Uint16(p.buf[o:]),
		Length: binary.LittleEndian.Uint16(p.buf[o+2:]),
		Flags:  binary.LittleEndian.Uint16(p.buf[o+4:]),
	}, nil
}

func (p *Page) putSlot(i int, s slot) {
	o := p.slotOff(i)
	binary.LittleEndian.PutUint16(p.buf[o:], s.Offset)
	binary.LittleEndian.PutUint16(p.buf[o+2:], s.Length)
	binary.LittleEndian.PutUint16(p.buf[o+4:], s.Flags)
}

// ---- public helpers ----

func (p *Page) FreeSpace() int {
	return int(p.upper() - p.lower())
}

// HasSpaceFor reports whether a tuple of n bytes fits, either in fresh
// free space or in a reusable deleted slot.
func (p *Page) HasSpaceFor(n int) bool {
	if p.FreeSpace() >= SlotSize+n {
		return true
	}
	for i := 0; i < p.NumSlots(); i++ {
		s, _ := p.getSlot(i)
		if s.Flags&SlotFlagDeleted != 0 && int(s.Length) >= n {
			return true
		}
	}
	return false
}

func (p *Page) NumSlots() int {
	return int(p.lower()-HeaderSize) / SlotSize
}

// IsLiveSlot reports whether slot i holds a visible tuple.
func (p *Page) IsLiveSlot(i int) (bool, error) {
	s, err := p.getSlot(i)
	if err != nil {
		return false, err
	}
	return s.Flags&SlotFlagDeleted == 0, nil
}

// InsertTuple stores data in the page and returns the slot index.
// A deleted slot whose old extent fits is reused before new space is
// claimed. Returns ErrNoSpace when neither works.
func (p *Page) InsertTuple(data []byte) (int, error) {
	n := len(data)

	if p.FreeSpace() >= SlotSize+n {
		idx := p.NumSlots()
		newUpper := int(p.upper()) - n
		copy(p.buf[newUpper:], data)
		p.setUpper(uint16(newUpper))
		p.setLower(p.lower() + SlotSize)
		p.putSlot(idx, slot{Offset: uint16(newUpper), Length: uint16(n), Flags: SlotFlagNormal})
		return idx, nil
	}

	for i := 0; i < p.NumSlots(); i++ {
		s, _ := p.getSlot(i)
		if s.Flags&SlotFlagDeleted != 0 && int(s.Length) >= n {
			copy(p.buf[s.Offset:], data)
			p.putSlot(i, slot{Offset: s.Offset, Length: uint16(n), Flags: SlotFlagNormal})
			return i, nil
		}
	}

	return -1, ErrNoSpace
}

// ReadTuple returns a copy of the tuple stored in slot i.
func (p *Page) ReadTuple(i int) ([]byte, error) {
	s, err := p.getSlot(i)
	if err != nil {
		return nil, err
	}
	if s.Flags&SlotFlagDeleted != 0 {
		return nil, ErrBadSlot
	}
	end := int(s.Offset) + int(s.Length)
	if end > len(p.buf) {
		return nil, storage.ErrPageCorrupted
	}
	out := make([]byte, s.Length)
	copy(out, p.buf[s.Offset:end])
	return out, nil
}

// DeleteTuple marks slot i deleted. The data extent is kept for reuse;
// pages are never compacted in place.
func (p *Page) DeleteTuple(i int) error {
	s, err := p.getSlot(i)
	if err != nil {
		return err
	}
	if s.Flags&SlotFlagDeleted != 0 {
		return ErrBadSlot
	}
	s.Flags |= SlotFlagDeleted
	p.putSlot(i, s)
	return nil
}
