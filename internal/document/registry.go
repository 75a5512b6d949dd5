package document

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/xeno-editor/kernel/internal/rope"
)

// Registry is the exclusive owner of every live Document, keyed by
// rope.DocID, plus the Buffer Manager that views them. Documents are
// created on file open or scratch-buffer creation and destroyed when no
// buffer references them.
//
// Safe for concurrent use: every method holds the Registry's own mutex.
// Document itself also holds its own mutex since it is read from outside the
// writer thread (e.g. a render pass racing the next edit).
type Registry struct {
	mu       sync.Mutex
	docs     map[rope.DocID]*Document
	uris     map[rope.DocID]string
	docByURI map[string]rope.DocID
	buffers  *Manager
	nextID   uint64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		docs:     make(map[rope.DocID]*Document),
		uris:     make(map[rope.DocID]string),
		docByURI: make(map[string]rope.DocID),
		buffers:  NewManager(),
	}
}

// OpenDocument creates a new Document over initial text (uri is an empty
// string for a scratch buffer with no backing file) and a single Buffer
// viewing it, returning both.
func (r *Registry) OpenDocument(uri, initial string) (*Document, BufferID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := rope.DocID(r.nextID)
	doc := New(id, initial)
	r.docs[id] = doc
	r.uris[id] = uri
	if uri != "" {
		r.docByURI[uri] = id
	}

	buf := r.buffers.Create(id)
	return doc, buf
}

// DocByURI returns the DocID currently registered for uri, if any. Scratch
// buffers (uri == "") are never registered here.
func (r *Registry) DocByURI(uri string) (rope.DocID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.docByURI[uri]
	return id, ok
}

// Document returns the live Document addressed by id.
func (r *Registry) Document(id rope.DocID) (*Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	return d, ok
}

// URI returns the file uri a document was opened with, or "" for a
// scratch buffer.
func (r *Registry) URI(id rope.DocID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.uris[id]
	return u, ok
}

// Buffer returns the live Buffer addressed by id.
func (r *Registry) Buffer(id BufferID) (*Buffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffers.Get(id)
}

// AddBuffer opens an additional Buffer (a split) over an already-open
// document.
func (r *Registry) AddBuffer(doc rope.DocID) BufferID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffers.Create(doc)
}

// CloseBuffer closes the Buffer addressed by id. When it was the last
// buffer viewing its Document, the Document is destroyed too; closedDoc
// reports which document (if any) was destroyed as a result, so the
// caller can tell dependent subsystems (syntax scheduler, LSP sync) to
// forget it.
func (r *Registry) CloseBuffer(id BufferID) (closedDoc rope.DocID, docClosed bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, live := r.buffers.Get(id)
	if !live {
		return 0, false, false
	}
	doc := buf.Doc
	r.buffers.Close(id)

	if len(r.buffers.BuffersForDoc(doc)) == 0 {
		if uri, ok := r.uris[doc]; ok && uri != "" {
			delete(r.docByURI, uri)
		}
		delete(r.docs, doc)
		delete(r.uris, doc)
		return doc, true, true
	}
	return 0, false, true
}

// URIs returns every file uri with a live document, sorted so callers
// iterate deterministically (map order is unspecified).
func (r *Registry) URIs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.docByURI))
	for uri := range r.docByURI {
		out = append(out, uri)
	}
	slices.Sort(out)
	return out
}

// Len reports the number of live documents.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}
