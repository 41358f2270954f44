// Package diag provides read access to the diagnostic tables a distributed
// data store writes query traces into. The store writes traces out-of-band,
// so a read may observe a partially written trace; callers in internal/trace
// own the retry-until-complete protocol.
package diag

import (
	"context"
	"errors"
)

var ErrExecutorClosed = errors.New("diag executor is closed")

// Consistency is the replication-acknowledgment policy for a read against
// the store. Single-node backends accept the level for contract parity and
// ignore it.
type Consistency string

const (
	ConsistencyOne    Consistency = "ONE"
	ConsistencyQuorum Consistency = "QUORUM"
	ConsistencyAll    Consistency = "ALL"
)

// DefaultDiagnosticConsistency is the store-wide level used for reads
// against the diagnostic tables, independent of whatever consistency the
// traced query itself ran at.
const DefaultDiagnosticConsistency = ConsistencyOne

// Statement is one lookup query against a diagnostic table.
type Statement struct {
	Text        string
	Consistency Consistency
}

// Executor runs lookup statements against the diagnostic tables.
type Executor interface {
	Query(ctx context.Context, stmt Statement) (RowSet, error)
}

// RowSet holds the rows one statement returned, in server order.
type RowSet struct {
	rows []Row
}

func NewRowSet(rows ...Row) RowSet {
	return RowSet{rows: rows}
}

// One returns the first row, if any.
func (s RowSet) One() (Row, bool) {
	if len(s.rows) == 0 {
		return Row{}, false
	}
	return s.rows[0], true
}

// All returns every row in the order the store returned them.
func (s RowSet) All() []Row {
	return s.rows
}

func (s RowSet) Len() int {
	return len(s.rows)
}
