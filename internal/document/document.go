package document

import (
	"errors"
	"sync"

	"github.com/xeno-editor/kernel/internal/rope"
)

// ErrStaleVersion is returned by Apply when tx was built against a version
// of the document that is no longer current.
var ErrStaleVersion = errors.New("document: transaction built against a stale version")

// ViewState is the per-buffer view snapshot captured alongside an undo
// group so undo/redo restores cursor/selection/scroll as well as text.
type ViewState struct {
	Selection    Selection
	ScrollOffset int
}

// step is one applied transaction and its inverse, in the base it was
// actually applied against.
type step struct {
	forward rope.Transaction
	inverse rope.Transaction
}

// undoGroup bundles one or more sequentially-applied steps as a single
// undo action, along with the view state immediately before the first step
// and after the last, so undo/redo restores both text and view in one
// action. Steps are kept individually (not composed into one transaction)
// because each was built against the intermediate text left by the step
// before it; replaying them in order (forward) or reverse order (inverse)
// reproduces that chain exactly without needing transaction composition.
type undoGroup struct {
	steps  []step
	before ViewState
	after  ViewState
}

// Document owns a rope-backed text buffer, a monotonically versioned
// transaction history, and an undo/redo stack grouped by undo group. The
// zero value is not usable; use New.
type Document struct {
	mu sync.Mutex

	id   rope.DocID
	text []rune

	version uint64

	undo []undoGroup
	redo []undoGroup

	// groupOpen is set by Apply and cleared by StartGroup/EndGroup; while it
	// is true, Apply(newGroup=false) calls coalesce into the undoGroup at the
	// top of undo.
	groupOpen bool
}

// New returns a Document with the given id and initial text, at version 0.
func New(id rope.DocID, initial string) *Document {
	return &Document{id: id, text: []rune(initial)}
}

// ID returns the document's stable identifier.
func (d *Document) ID() rope.DocID { return d.id }

// Version returns the document's current version. Successive successful
// Apply calls strictly increase this value.
func (d *Document) Version() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

// Text returns a copy of the document's current content as runes.
func (d *Document) Text() []rune {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]rune, len(d.text))
	copy(out, d.text)
	return out
}

// Len returns the document's length in characters.
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.text)
}

// StartGroup opens a new undo group: the next Apply begins a fresh group
// regardless of NewGroup, and subsequent Apply(NewGroup=false) calls
// coalesce into it until EndGroup.
func (d *Document) StartGroup() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groupOpen = false // force the next Apply to open a fresh group
}

// EndGroup closes the currently open undo group, if any; the next Apply
// always starts a new group even if newGroup is false.
func (d *Document) EndGroup() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groupOpen = false
}

// Apply runs tx against the document's current text, advancing its version
// and recording tx/inverse (and the view snapshots before/after) onto the
// undo stack. newGroup forces a fresh undo group even if one is already
// open (coalescing); every successful Apply clears the redo stack, since a
// fresh edit invalidates any previously-undone future.
//
// inverse must be the Transaction that exactly reverses tx's effect on the
// current text (callers typically derive it via rope.Delta against the
// pre/post text, or precompute it structurally); Apply does not verify this
// beyond applying it at undo time.
//
// expectedVersion must equal the document's current Version(); otherwise
// Apply returns ErrStaleVersion without mutating anything, so no two
// distinct transactions can ever share a version even against
// concurrent/out-of-order callers.
func (d *Document) Apply(expectedVersion uint64, tx, inverse rope.Transaction, before, after ViewState, newGroup bool) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if expectedVersion != d.version {
		return d.version, ErrStaleVersion
	}

	d.text = tx.Apply(d.text)
	d.version++
	d.redo = nil

	if newGroup || !d.groupOpen || len(d.undo) == 0 {
		d.undo = append(d.undo, undoGroup{steps: []step{{forward: tx, inverse: inverse}}, before: before, after: after})
		d.groupOpen = true
		return d.version, nil
	}

	top := &d.undo[len(d.undo)-1]
	top.steps = append(top.steps, step{forward: tx, inverse: inverse})
	top.after = after
	return d.version, nil
}

// Undo pops the most recent undo group, applies its steps' inverses in
// reverse order, and returns the view state to restore. ok is false if
// there is nothing to undo.
func (d *Document) Undo() (tx rope.Transaction, view ViewState, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.undo) == 0 {
		return rope.Transaction{}, ViewState{}, false
	}
	g := d.undo[len(d.undo)-1]
	d.undo = d.undo[:len(d.undo)-1]
	d.redo = append(d.redo, g)
	last := g.steps[len(g.steps)-1].inverse
	for i := len(g.steps) - 1; i >= 0; i-- {
		d.text = g.steps[i].inverse.Apply(d.text)
	}
	d.version++
	d.groupOpen = false
	return last, g.before, true
}

// Redo pops the most recently undone group, re-applies its steps' forward
// transactions in original order, and returns the view state to restore.
// ok is false if there is nothing to redo.
func (d *Document) Redo() (tx rope.Transaction, view ViewState, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.redo) == 0 {
		return rope.Transaction{}, ViewState{}, false
	}
	g := d.redo[len(d.redo)-1]
	d.redo = d.redo[:len(d.redo)-1]
	d.undo = append(d.undo, g)
	for _, s := range g.steps {
		d.text = s.forward.Apply(d.text)
	}
	d.version++
	d.groupOpen = false
	return g.steps[len(g.steps)-1].forward, g.after, true
}

// UndoDepth and RedoDepth report the number of groups on each stack, for
// tests and UI indicators.
func (d *Document) UndoDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.undo)
}

func (d *Document) RedoDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.redo)
}
