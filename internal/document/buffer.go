package document

import (
	"github.com/xeno-editor/kernel/internal/arena"
	"github.com/xeno-editor/kernel/internal/rope"
)

// InputMode is a buffer's local input mode (normal/insert/select/...); the
// actual mode set and key-routing behavior belong to the external
// key-binding matcher; the kernel only needs to carry the current mode as
// opaque state a buffer snapshots and restores.
type InputMode uint8

const (
	ModeNormal InputMode = iota
	ModeInsert
	ModeSelect
)

// BufferID is a generational handle identifying a Buffer; reused slots
// never produce an equal BufferID. The zero value never addresses a live
// buffer.
type BufferID = arena.Handle

// Buffer is a view over a Document: selection, scroll offset, input mode,
// local option overrides, and a readonly flag. A Document may back
// multiple Buffers (splits); Buffer itself holds no text, only the DocID
// it views.
type Buffer struct {
	Doc          rope.DocID
	Selection    Selection
	ScrollOffset int
	Mode         InputMode
	Readonly     bool
	Options      map[string]any
}

// NewBuffer returns a Buffer over doc with a single point selection at 0.
func NewBuffer(doc rope.DocID) *Buffer {
	return &Buffer{
		Doc:       doc,
		Selection: NewSelection(PointRange(0)),
		Options:   make(map[string]any),
	}
}

// Cursor returns the head of the buffer's primary selection range.
func (b *Buffer) Cursor() int { return b.Selection.Cursor() }

// ViewState snapshots the buffer's view-affecting fields, for caching
// alongside an undo group (document.ViewState).
func (b *Buffer) ViewState() ViewState {
	return ViewState{Selection: b.Selection.Clone(), ScrollOffset: b.ScrollOffset}
}

// RestoreViewState installs a previously-captured ViewState onto the
// buffer, e.g. after an undo/redo.
func (b *Buffer) RestoreViewState(v ViewState) {
	b.Selection = v.Selection.Clone()
	b.ScrollOffset = v.ScrollOffset
}

// Manager is the exclusive owner of every live Buffer, addressed by
// generational BufferID; other subsystems hold ids, never pointers. Not
// safe for concurrent use without external synchronization, matching the
// kernel's single-writer-thread model.
type Manager struct {
	buffers *arena.Arena[*Buffer]
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{buffers: arena.New[*Buffer]()}
}

// Create inserts a new Buffer over doc and returns its BufferID.
func (m *Manager) Create(doc rope.DocID) BufferID {
	return m.buffers.Insert(NewBuffer(doc))
}

// Get returns the Buffer addressed by id, and whether it is still live.
func (m *Manager) Get(id BufferID) (*Buffer, bool) {
	return m.buffers.Get(id)
}

// Close removes the Buffer addressed by id, reporting whether it was live.
func (m *Manager) Close(id BufferID) bool {
	return m.buffers.Remove(id)
}

// Len reports the number of live buffers.
func (m *Manager) Len() int { return m.buffers.Len() }

// Range calls fn for every live buffer, in arena slot order (a slot freed by
// a closed buffer is reused by the next one, so this is not always
// insertion order); fn must not mutate the Manager.
func (m *Manager) Range(fn func(id BufferID, buf *Buffer) bool) {
	m.buffers.Range(fn)
}

// BuffersForDoc returns the ids of every live buffer currently viewing doc,
// e.g. so a caller can tell when a Document has no remaining buffer and
// should be destroyed.
func (m *Manager) BuffersForDoc(doc rope.DocID) []BufferID {
	var out []BufferID
	m.buffers.Range(func(id BufferID, buf *Buffer) bool {
		if buf.Doc == doc {
			out = append(out, id)
		}
		return true
	})
	return out
}
