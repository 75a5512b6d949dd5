// Package syntaxmgr implements the kernel's tiered, hotness-aware
// incremental parse scheduler. It owns only scheduling metadata; the
// actual parse is performed by a caller-supplied Parser, so any grammar
// engine can slot in behind the scheduling policy.
package syntaxmgr

import (
	"sync"
	"time"

	"github.com/xeno-editor/kernel/internal/rope"
)

// EditSource distinguishes ordinary edits from undo/redo history replay,
// which always bypasses debounce.
type EditSource uint8

const (
	SourceUser EditSource = iota
	SourceHistory
)

// Parser performs the actual incremental/full parse. Implementations wrap
// whatever grammar engine the surrounding application embeds; the manager
// only needs to know whether an attempt completed within budget.
type Parser interface {
	// TryParseIncremental attempts a bounded incremental reparse given the
	// old/new text and the changeset between them. ok=false with err=nil
	// means the timeout elapsed (not an error, just not fast enough).
	TryParseIncremental(old, new []rune, changeset rope.Transaction, timeout time.Duration) (ok bool, partial bool, err error)
}

// PendingIncremental accumulates edits between successful sync installs.
type PendingIncremental struct {
	BaseTreeDocVersion uint64
	OldRope            []rune
	Composed           rope.Transaction
}

// Slot is a document's syntax scheduling state.
type Slot struct {
	DocID   rope.DocID
	Tier    Tier
	Hotness Hotness

	HasTree        bool
	TreeDocVersion uint64
	Partial        bool // current tree is a partial/error-recovery tree

	Dirty           bool
	ForceNoDebounce bool
	LastEditAt      time.Time
	LastVisibleAt   time.Time

	Pending *PendingIncremental

	InFlight      bool
	CooldownUntil time.Time
	Updated       bool
}

// Manager schedules and tracks per-document syntax state. Safe for
// concurrent use; all mutation is serialized behind a mutex, matching the
// kernel's editor-thread-is-the-sole-writer model applied to this
// subsystem's own state.
type Manager struct {
	mu     sync.Mutex
	policy Policy
	slots  map[rope.DocID]*Slot
}

// New returns a Manager using policy for tier configuration.
func New(policy Policy) *Manager {
	return &Manager{policy: policy, slots: make(map[rope.DocID]*Slot)}
}

func (m *Manager) slot(docID rope.DocID, sizeBytes int) *Slot {
	s, ok := m.slots[docID]
	if !ok {
		s = &Slot{DocID: docID, Tier: TierForBytes(sizeBytes)}
		m.slots[docID] = s
	}
	return s
}

// ResetSyntax drops all scheduling state for a document, as if newly
// opened.
func (m *Manager) ResetSyntax(docID rope.DocID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, docID)
}

// ForgetDoc removes a document's slot entirely, invalidating any in-flight
// parse (the caller is responsible for actually cancelling the background
// task; this just stops the manager tracking it).
func (m *Manager) ForgetDoc(docID rope.DocID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, docID)
}

// MarkDirty flags a document dirty without recording edit metadata,
// e.g. on external file change.
func (m *Manager) MarkDirty(docID rope.DocID, sizeBytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slot(docID, sizeBytes).Dirty = true
}

// NoteEdit records that an edit occurred, without attempting a sync
// incremental install. Source == SourceHistory (undo/redo replay) always
// forces the next scheduling decision to bypass debounce.
func (m *Manager) NoteEdit(docID rope.DocID, sizeBytes int, now time.Time, source EditSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slot(docID, sizeBytes)
	s.Dirty = true
	s.LastEditAt = now
	if source == SourceHistory {
		s.ForceNoDebounce = true
	}
}

// NoteEditIncremental is the edit-ingestion entrypoint: it records the
// edit, maintains the pending-incremental composition window, and attempts
// a synchronous bounded incremental reparse. It returns true if the sync
// attempt installed a new tree.
func (m *Manager) NoteEditIncremental(
	docID rope.DocID,
	sizeBytes int,
	docVersion uint64,
	oldRope, newRope []rune,
	changeset rope.Transaction,
	source EditSource,
	parser Parser,
) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.slot(docID, sizeBytes)
	s.Dirty = true
	s.LastEditAt = time.Now()
	if source == SourceHistory {
		s.ForceNoDebounce = true
	}

	if s.Partial {
		// Refuse incremental update on a partial tree; the slot is left
		// dirty for background catch-up instead.
		s.Pending = nil
		s.ForceNoDebounce = true
		return false
	}

	if s.Pending != nil && s.HasTree && s.Pending.BaseTreeDocVersion == s.TreeDocVersion {
		// changeset was built against the text left by the previous edit in
		// this window, not against s.Pending.OldRope, so it cannot simply be
		// appended onto s.Pending.Composed (their Retain/Delete offsets refer
		// to different bases). Recompute the window's transaction as the
		// direct delta from the window's original base to the current text,
		// which is always valid regardless of how many edits it spans.
		s.Pending.Composed = rope.Delta(s.Pending.OldRope, newRope)
	} else {
		s.Pending = &PendingIncremental{
			BaseTreeDocVersion: s.TreeDocVersion,
			OldRope:            oldRope,
			Composed:           changeset,
		}
	}

	timeout := m.policy.Cfg(s.Tier).SyncBootstrapTimeout
	if timeout <= 0 {
		return false
	}

	ok, partial, err := parser.TryParseIncremental(s.Pending.OldRope, newRope, s.Pending.Composed, timeout)
	if err != nil || !ok {
		// keep the pending window for background catch-up
		return false
	}

	s.HasTree = true
	s.Partial = partial
	s.TreeDocVersion = docVersion
	s.Pending = nil
	s.Dirty = false
	s.ForceNoDebounce = false
	s.Updated = true
	return true
}

// CatchUpSyncTimeout returns the flat timeout used for background catch-up
// attempts against a pending incremental window, distinct from the tier's
// bootstrap timeout.
func CatchUpSyncTimeout() time.Duration { return catchUpSyncTimeout }

// PendingDocs returns every document with an open pending-incremental
// window still awaiting a background catch-up attempt.
func (m *Manager) PendingDocs() []rope.DocID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rope.DocID
	for id, s := range m.slots {
		if s.Pending != nil {
			out = append(out, id)
		}
	}
	return out
}

// TryCatchUp retries docID's pending incremental window in the background,
// using CatchUpSyncTimeout rather than the tier's (typically much
// shorter) sync bootstrap timeout. newRope must be the document's current
// full text and docVersion its current version; on success the pending
// window is cleared and the tree installed, exactly as a synchronous
// install would. Returns false if there is no pending window, the tree is
// partial, or the retry itself didn't land in time.
func (m *Manager) TryCatchUp(docID rope.DocID, newRope []rune, docVersion uint64, parser Parser) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[docID]
	if !ok || s.Pending == nil || s.Partial {
		return false
	}

	ok2, partial, err := parser.TryParseIncremental(s.Pending.OldRope, newRope, s.Pending.Composed, catchUpSyncTimeout)
	if err != nil || !ok2 {
		return false
	}

	s.HasTree = true
	s.Partial = partial
	s.TreeDocVersion = docVersion
	s.Pending = nil
	s.Dirty = false
	s.ForceNoDebounce = false
	s.Updated = true
	return true
}

// SetHotness updates a document's visibility class and, when becoming
// visible, its last-visible timestamp.
func (m *Manager) SetHotness(docID rope.DocID, sizeBytes int, hotness Hotness, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slot(docID, sizeBytes)
	s.Hotness = hotness
	if hotness == Visible {
		s.LastVisibleAt = now
	}
}

// ShouldInstallCompletedParse is the completion-ordering policy: never
// regress the resident tree version, ignore stale slow
// parses superseded by a newer request, and only install when the
// completion lands exactly on the requested target, when there is no tree
// yet, or when the slot is dirty and the completion strictly advances the
// resident version.
func ShouldInstallCompletedParse(doneVersion, treeVersion uint64, hasTree bool, requestedVersion, targetVersion uint64, dirty bool) bool {
	if doneVersion < treeVersion {
		return false
	}
	if doneVersion < requestedVersion {
		return false
	}
	if doneVersion == targetVersion {
		return true
	}
	if !hasTree {
		return true
	}
	if dirty && doneVersion > treeVersion {
		return true
	}
	return false
}

// StartParse marks docID as having an in-flight background parse,
// enforcing single-flight: it returns false if a parse is already active.
func (m *Manager) StartParse(docID rope.DocID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[docID]
	if !ok || s.InFlight {
		return false
	}
	s.InFlight = true
	return true
}

// CompleteParse clears the in-flight flag and installs the tree if policy
// allows, returning whether it was installed.
func (m *Manager) CompleteParse(docID rope.DocID, doneVersion, requestedVersion, targetVersion uint64, partial bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[docID]
	if !ok {
		return false
	}
	s.InFlight = false
	if !ShouldInstallCompletedParse(doneVersion, s.TreeDocVersion, s.HasTree, requestedVersion, targetVersion, s.Dirty) {
		return false
	}
	s.HasTree = true
	s.Partial = partial
	s.TreeDocVersion = doneVersion
	s.Updated = true
	if doneVersion == targetVersion {
		s.Dirty = false
		s.ForceNoDebounce = false
	}
	return true
}

// OnParseTimeout enters cooldown_on_timeout for the document's tier and
// clears in-flight.
func (m *Manager) OnParseTimeout(docID rope.DocID, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[docID]
	if !ok {
		return
	}
	s.InFlight = false
	s.CooldownUntil = now.Add(m.policy.Cfg(s.Tier).CooldownOnTimeout)
}

// OnParseError enters cooldown_on_error for the document's tier and clears
// in-flight.
func (m *Manager) OnParseError(docID rope.DocID, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[docID]
	if !ok {
		return
	}
	s.InFlight = false
	s.CooldownUntil = now.Add(m.policy.Cfg(s.Tier).CooldownOnError)
}

// Schedulable reports whether a background parse may be started for docID
// at now: dirty, debounce elapsed (or force-no-debounce), cooldown expired,
// not already in flight, and (if hidden) the tier permits parsing while
// hidden.
func (m *Manager) Schedulable(docID rope.DocID, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[docID]
	if !ok || !s.Dirty || s.InFlight {
		return false
	}
	if now.Before(s.CooldownUntil) {
		return false
	}
	cfg := m.policy.Cfg(s.Tier)
	if s.Hotness == Cold && !cfg.ParseWhenHidden {
		return false
	}
	if !s.ForceNoDebounce && now.Sub(s.LastEditAt) < cfg.Debounce {
		return false
	}
	return true
}

// SchedulableDocs returns every document currently eligible to start a
// background parse.
func (m *Manager) SchedulableDocs(now time.Time) []rope.DocID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rope.DocID
	for id := range m.slots {
		// reuse Schedulable's logic inline to avoid re-locking
		s := m.slots[id]
		if !s.Dirty || s.InFlight {
			continue
		}
		if now.Before(s.CooldownUntil) {
			continue
		}
		cfg := m.policy.Cfg(s.Tier)
		if s.Hotness == Cold && !cfg.ParseWhenHidden {
			continue
		}
		if !s.ForceNoDebounce && now.Sub(s.LastEditAt) < cfg.Debounce {
			continue
		}
		out = append(out, id)
	}
	return out
}

// RetentionSweep evaluates retention policies for every tracked document,
// dropping trees whose policy says to evict them, and returns the set of
// documents whose tree was dropped. Dropping a tree also invalidates any
// in-flight parse for that document (the caller must cancel the actual
// background task).
func (m *Manager) RetentionSweep(now time.Time) []rope.DocID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var dropped []rope.DocID
	for id, s := range m.slots {
		if !s.HasTree {
			continue
		}
		cfg := m.policy.Cfg(s.Tier)
		hidden := s.Hotness != Visible
		drop := false
		switch cfg.RetentionHidden.Kind {
		case RetentionKeep:
			drop = false
		case RetentionDropWhenHidden:
			drop = hidden && s.Hotness == Cold
		case RetentionDropAfter:
			drop = hidden && now.Sub(s.LastVisibleAt) > cfg.RetentionHidden.TTL
		}
		if drop {
			s.HasTree = false
			s.TreeDocVersion = 0
			s.InFlight = false
			s.Pending = nil
			dropped = append(dropped, id)
		}
	}
	return dropped
}

// Get returns a copy of a document's slot state, for inspection/tests.
func (m *Manager) Get(docID rope.DocID) (Slot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[docID]
	if !ok {
		return Slot{}, false
	}
	return *s, true
}
