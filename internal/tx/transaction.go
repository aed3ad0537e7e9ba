package tx

import (
	"fmt"

	"github.com/google/uuid"
)

// TransactionID identifies a single transaction. Identity is pointer
// identity: every caller of a transaction passes the same *TransactionID,
// and two distinct pointers are two distinct transactions even if the
// embedded UUIDs were ever to collide.
type TransactionID struct {
	id uuid.UUID
}

// NewTransactionID creates a fresh transaction identifier.
func NewTransactionID() *TransactionID {
	return &TransactionID{id: uuid.New()}
}

func (t *TransactionID) String() string {
	return fmt.Sprintf("tx-%s", t.id.String()[:8])
}
