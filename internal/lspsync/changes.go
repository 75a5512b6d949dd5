package lspsync

import "github.com/xeno-editor/kernel/internal/rope"

// DocumentChange is a single LSP textDocument/didChange content change
// event, in TextDocumentContentChangeEvent shape.
type DocumentChange struct {
	Range   Range
	NewText string
}

// ChangeResult is the outcome of computing incremental LSP changes for a
// transaction: either a batch of incremental changes, or a signal that the
// caller must fall back to sending the whole document.
type ChangeResult struct {
	Changes  []DocumentChange
	Fallback bool
}

// ComputeChanges walks tx's operations against a left-to-right cursor over
// base (the pre-change document text), producing one DocumentChange per
// Delete and per Insert operation. Position conversion failure (an
// out-of-range offset) is reported as Fallback, so the caller sends the
// full document instead of incremental positions it can't trust.
//
// base is mutated as a scratch copy internally; the caller's slice is not
// modified.
func ComputeChanges(base []rune, tx rope.Transaction, encoding Encoding) ChangeResult {
	if len(tx.Ops) == 0 {
		return ChangeResult{}
	}

	scratch := append([]rune(nil), base...)
	var changes []DocumentChange
	pos := 0

	for _, op := range tx.Ops {
		switch op.Kind {
		case rope.OpRetain:
			pos += op.N
		case rope.OpDelete:
			end := pos + op.N
			if end > len(scratch) {
				return ChangeResult{Fallback: true}
			}
			r, ok := charRangeToRange(scratch, pos, end, encoding)
			if !ok {
				return ChangeResult{Fallback: true}
			}
			changes = append(changes, DocumentChange{Range: r, NewText: ""})
			scratch = append(scratch[:pos], scratch[end:]...)
		case rope.OpInsert:
			p, ok := charToPosition(scratch, pos, encoding)
			if !ok {
				return ChangeResult{Fallback: true}
			}
			changes = append(changes, DocumentChange{Range: PointRange(p), NewText: op.Text})
			inserted := []rune(op.Text)
			tail := append([]rune(nil), scratch[pos:]...)
			scratch = append(append(scratch[:pos], inserted...), tail...)
			pos += len(inserted)
		}
	}

	return ChangeResult{Changes: changes}
}
