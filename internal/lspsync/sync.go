package lspsync

import (
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/xeno-editor/kernel/internal/rope"
)

// docState is a single document's accumulated-since-last-flush sync state.
type docState struct {
	generation uint64

	baseText    []rune // pre-edit snapshot at the start of the pending window
	currentText []rune // latest known full text
	flightText  []rune // text the in-flight batch brings the server up to
	pendingTx   rope.Transaction

	lastEditAt    time.Time
	retryAfter    time.Time
	inFlight      bool
	forceFullSync bool
}

// FlushBatch is what a caller sends to the language server for one URI.
type FlushBatch struct {
	Generation uint64
	Fallback   bool // true: send currentText as a full-document sync instead of Changes
	Changes    []DocumentChange
	FullText   string
}

// Manager debounces edits per document URI and produces batched
// textDocument/didChange payloads, falling back to full-document sync when
// incremental position math can't be trusted or a prior flush failed.
type Manager struct {
	mu       sync.Mutex
	docs     map[string]*docState
	debounce time.Duration
	encoding Encoding
	retry    *catrate.Limiter
}

// New returns a Manager with the given debounce window and position
// encoding. retryBackoff configures how long a URI must wait to retry
// after a flush failure (at least one entry, e.g. {time.Second: 1}).
func New(debounce time.Duration, encoding Encoding, retryBackoff map[time.Duration]int) *Manager {
	return &Manager{
		docs:     make(map[string]*docState),
		debounce: debounce,
		encoding: encoding,
		retry:    catrate.NewLimiter(retryBackoff),
	}
}

func (m *Manager) doc(uri string) *docState {
	d, ok := m.docs[uri]
	if !ok {
		d = &docState{}
		m.docs[uri] = d
	}
	return d
}

// NoteChange records an edit for uri. oldText/newText are the document's
// full text immediately before and after the edit; tx is the transaction
// between them. Successive edits within an open pending window (one not
// yet flushed) are composed together, exactly as syntaxmgr composes its
// own pending-incremental window: since tx is built against the text left
// by the previous edit in the window (not against d.baseText), the window's
// transaction is recomputed as the direct delta from d.baseText to newText
// rather than by concatenating op lists against mismatched bases.
func (m *Manager) NoteChange(uri string, oldText, newText []rune, tx rope.Transaction, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.doc(uri)
	if d.pendingTx.Ops == nil {
		d.baseText = append([]rune(nil), oldText...)
		d.pendingTx = tx
	} else {
		d.pendingTx = rope.Delta(d.baseText, newText)
	}
	d.currentText = append([]rune(nil), newText...)
	d.lastEditAt = now
	d.generation++
}

// Due reports whether uri has a pending, not-yet-in-flight edit whose
// debounce window has elapsed. The forceFullSync flag set by a prior
// failure bypasses the debounce, but never the retry backoff window.
func (m *Manager) Due(uri string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[uri]
	return ok && d.due(now, m.debounce)
}

func (d *docState) due(now time.Time, debounce time.Duration) bool {
	if d.inFlight || d.pendingTx.Ops == nil || now.Before(d.retryAfter) {
		return false
	}
	return d.forceFullSync || now.Sub(d.lastEditAt) >= debounce
}

// DueURIs returns every URI currently due for a flush.
func (m *Manager) DueURIs(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []string
	for uri, d := range m.docs {
		if d.due(now, m.debounce) {
			due = append(due, uri)
		}
	}
	return due
}

// BeginFlush claims the pending window for uri (single-flight: returns
// ok=false if a flush is already in flight or nothing is pending),
// computing the LSP change batch to send.
func (m *Manager) BeginFlush(uri string) (FlushBatch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[uri]
	if !ok || d.inFlight || d.pendingTx.Ops == nil {
		return FlushBatch{}, false
	}
	d.inFlight = true
	d.flightText = d.currentText

	if d.forceFullSync {
		return FlushBatch{Generation: d.generation, Fallback: true, FullText: string(d.currentText)}, true
	}

	result := ComputeChanges(d.baseText, d.pendingTx, m.encoding)
	if result.Fallback {
		return FlushBatch{Generation: d.generation, Fallback: true, FullText: string(d.currentText)}, true
	}
	return FlushBatch{Generation: d.generation, Changes: result.Changes}, true
}

// CompleteFlush reports the outcome of sending a FlushBatch for uri.
// generation must match the value returned by BeginFlush. On success, the
// pending window is cleared only if no new edits arrived since (the window
// advances to whatever accumulated meanwhile). On failure, the document is
// flagged to force a full resync on its next attempt, and a retry backoff
// is recorded.
func (m *Manager) CompleteFlush(uri string, generation uint64, now time.Time, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[uri]
	if !ok {
		return
	}
	d.inFlight = false
	flightText := d.flightText
	d.flightText = nil

	if err != nil {
		d.forceFullSync = true
		next, _ := m.retry.Allow(uri)
		d.retryAfter = next
		return
	}

	d.forceFullSync = false
	d.retryAfter = time.Time{}
	if d.generation == generation {
		d.pendingTx = rope.Transaction{}
		d.baseText = nil
	} else {
		// Further edits arrived mid-flight. The server's text is now the
		// flush-time snapshot, so the remaining window must re-anchor
		// there: pendingTx was re-derived against the old baseText by
		// NoteChange, which the flush just made stale.
		d.baseText = flightText
		d.pendingTx = rope.Delta(flightText, d.currentText)
	}
}

// RetryAfter reports the backoff deadline recorded by uri's most recent
// failed flush. ok is false if uri has no failure on record; a caller
// compares the returned deadline against its own clock.
func (m *Manager) RetryAfter(uri string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[uri]
	if !ok || d.retryAfter.IsZero() {
		return time.Time{}, false
	}
	return d.retryAfter, true
}

// ForceFullSync flags uri so its next flush sends the whole document
// instead of an incremental batch — used when the server's copy can no
// longer be trusted, e.g. after a language-server restart. A uri with no
// pending window is left alone; the fresh didOpen already carries its
// content.
func (m *Manager) ForceFullSync(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[uri]; ok && d.pendingTx.Ops != nil {
		d.forceFullSync = true
	}
}

// ForgetDoc drops all sync state for uri, e.g. on textDocument/didClose.
func (m *Manager) ForgetDoc(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, uri)
}
