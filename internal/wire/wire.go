// Package wire implements the broker's wire-typed payloads: a JSON
// representation of rope transactions and the shared-state request/response
// envelope. These types are exchanged across the broker boundary even
// though the broker is in-process, for parity with a future multi-process
// deployment.
package wire

import (
	"strconv"

	"github.com/joeycumines/go-utilpkg/jsonenc"
	"github.com/xeno-editor/kernel/internal/rope"
)

// OpKind tags a single WireOp.
type OpKind uint8

const (
	OpRetain OpKind = iota
	OpDelete
	OpInsert
)

// Op is the wire form of a rope.Op: Retain/Delete carry a count, Insert
// carries literal text.
type Op struct {
	Kind OpKind
	N    uint64
	Text string
}

// Tx is an ordered sequence of wire operations.
type Tx []Op

// MarshalJSON renders a Tx as a JSON array of single-key objects, e.g.
// [{"retain":3},{"insert":"hi"},{"delete":2}], using jsonenc's allocation
// light string escaping for Insert text rather than encoding/json's
// reflection-based escaping.
func (t Tx) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 16*len(t)+2)
	buf = append(buf, '[')
	for i, op := range t {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '{')
		switch op.Kind {
		case OpRetain:
			buf = append(buf, `"retain":`...)
			buf = strconv.AppendUint(buf, op.N, 10)
		case OpDelete:
			buf = append(buf, `"delete":`...)
			buf = strconv.AppendUint(buf, op.N, 10)
		case OpInsert:
			buf = append(buf, `"insert":`...)
			buf = jsonenc.AppendString(buf, op.Text)
		}
		buf = append(buf, '}')
	}
	buf = append(buf, ']')
	return buf, nil
}

// ToWire converts a rope.Transaction to its wire form, preserving
// operation order exactly (Insert is emitted before Delete at the same
// cursor position whenever the source Transaction does so, since this is a
// direct 1:1 mapping).
func ToWire(tx rope.Transaction) Tx {
	out := make(Tx, len(tx.Ops))
	for i, op := range tx.Ops {
		w := Op{N: uint64(op.N), Text: op.Text}
		switch op.Kind {
		case rope.OpRetain:
			w.Kind = OpRetain
		case rope.OpDelete:
			w.Kind = OpDelete
		case rope.OpInsert:
			w.Kind = OpInsert
		}
		out[i] = w
	}
	return out
}

// TxToWire is an alias of ToWire, for callers that think in terms of the
// tx_to_wire/wire_to_tx operation pair.
func TxToWire(tx rope.Transaction) Tx { return ToWire(tx) }

// FromTx converts a Tx back to a rope.Transaction. Round-tripping through
// ToWire/FromTx against the same base is the identity.
func FromTx(w Tx) rope.Transaction {
	ops := make([]rope.Op, len(w))
	for i, op := range w {
		r := rope.Op{N: int(op.N), Text: op.Text}
		switch op.Kind {
		case OpRetain:
			r.Kind = rope.OpRetain
		case OpDelete:
			r.Kind = rope.OpDelete
		case OpInsert:
			r.Kind = rope.OpInsert
		}
		ops[i] = r
	}
	return rope.Transaction{Ops: ops}
}

// WireToTx is an alias of FromTx, the inverse of TxToWire.
func WireToTx(w Tx) rope.Transaction { return FromTx(w) }
