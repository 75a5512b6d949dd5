// Package rope implements the kernel's text buffer: character-indexed text
// and the Retain/Delete/Insert transactions applied to it. Document
// versions, undo history and selections are kept by package document.
//
// The backing store is a plain []rune rather than a true piece-table/rope
// structure: a small, explicit, dependency-free representation sized for
// the kernel's needs, with the char-indexed operation surface a real rope
// would expose.
package rope

import "fmt"

// DocID stably identifies a document for the lifetime of the process.
type DocID uint64

// OpKind tags a single Transaction operation.
type OpKind uint8

const (
	OpRetain OpKind = iota
	OpDelete
	OpInsert
)

func (k OpKind) String() string {
	switch k {
	case OpRetain:
		return "retain"
	case OpDelete:
		return "delete"
	case OpInsert:
		return "insert"
	default:
		return "unknown"
	}
}

// Op is a single transaction operation: Retain(N) advances the cursor
// without change, Delete(N) removes N runes at the cursor, Insert(Text)
// inserts Text at the cursor without advancing past it.
type Op struct {
	Kind OpKind
	N    int
	Text string
}

// Transaction is an ordered sequence of operations, applied left to right
// against a base rope to produce a new rope.
type Transaction struct {
	Ops []Op
}

// IsNoop reports whether applying the transaction changes nothing.
func (t Transaction) IsNoop() bool {
	for _, op := range t.Ops {
		if op.Kind != OpRetain {
			return false
		}
	}
	return true
}

// Apply runs the transaction against src, returning the resulting text.
// Panics if the transaction retains/deletes past the end of src, which
// indicates a transaction built against the wrong base version.
func (t Transaction) Apply(src []rune) []rune {
	out := make([]rune, 0, len(src)+t.insertedLen()-t.deletedLen())
	pos := 0
	for _, op := range t.Ops {
		switch op.Kind {
		case OpRetain:
			end := pos + op.N
			if end > len(src) {
				panic(fmt.Sprintf("rope: retain past end of base (pos=%d n=%d len=%d)", pos, op.N, len(src)))
			}
			out = append(out, src[pos:end]...)
			pos = end
		case OpDelete:
			end := pos + op.N
			if end > len(src) {
				panic(fmt.Sprintf("rope: delete past end of base (pos=%d n=%d len=%d)", pos, op.N, len(src)))
			}
			pos = end
		case OpInsert:
			out = append(out, []rune(op.Text)...)
		}
	}
	return out
}

func (t Transaction) insertedLen() int {
	n := 0
	for _, op := range t.Ops {
		if op.Kind == OpInsert {
			n += len([]rune(op.Text))
		}
	}
	return n
}

func (t Transaction) deletedLen() int {
	n := 0
	for _, op := range t.Ops {
		if op.Kind == OpDelete {
			n += op.N
		}
	}
	return n
}

// NewChange builds the Transaction that replaces the char range [start,end)
// of a rope of length baseLen with replacement. Operation order is
// Retain(prefix), Insert(replacement) (if non-empty), Delete(end-start) (if
// end>start), Retain(suffix); insert is always emitted before delete at
// the same position, matching the wire encoding's canonical operation
// order.
func NewChange(baseLen, start, end int, replacement string) Transaction {
	if start < 0 || end < start || end > baseLen {
		panic(fmt.Sprintf("rope: invalid change range [%d,%d) over base len %d", start, end, baseLen))
	}
	var ops []Op
	if start > 0 {
		ops = append(ops, Op{Kind: OpRetain, N: start})
	}
	if replacement != "" {
		ops = append(ops, Op{Kind: OpInsert, Text: replacement})
	}
	if end > start {
		ops = append(ops, Op{Kind: OpDelete, N: end - start})
	}
	if suffix := baseLen - end; suffix > 0 {
		ops = append(ops, Op{Kind: OpRetain, N: suffix})
	}
	return Transaction{Ops: ops}
}

// NewInsert builds a Transaction that inserts text at pos in a rope of
// length baseLen.
func NewInsert(baseLen, pos int, text string) Transaction {
	return NewChange(baseLen, pos, pos, text)
}

// NewDelete builds a Transaction that deletes the char range [start,end) in
// a rope of length baseLen.
func NewDelete(baseLen, start, end int) Transaction {
	return NewChange(baseLen, start, end, "")
}
