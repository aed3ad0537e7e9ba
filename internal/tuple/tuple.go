package tuple

import (
	"fmt"

	"github.com/tuannm99/pagedb/internal/storage"
)

// RecordID locates a stored tuple: the page it lives on and its slot index.
type RecordID struct {
	PID  storage.PageID
	Slot int
}

func (r RecordID) String() string {
	return fmt.Sprintf("rid(%v,%d)", r.PID, r.Slot)
}

// Tuple is an opaque record payload. Encoding of the payload is the
// caller's business; the heap layer stores and returns the raw bytes.
// RID is nil until the tuple has been inserted into a heap file.
type Tuple struct {
	Data []byte
	RID  *RecordID
}

// New wraps a payload in a Tuple with no record ID.
func New(data []byte) *Tuple {
	return &Tuple{Data: data}
}
