package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_OpenDocumentCreatesDocAndBuffer(t *testing.T) {
	r := NewRegistry()
	doc, buf := r.OpenDocument("file:///a.go", "package a\n")
	require.Equal(t, 1, r.Len())

	got, ok := r.Document(doc.ID())
	require.True(t, ok)
	assert.Same(t, doc, got)

	b, ok := r.Buffer(buf)
	require.True(t, ok)
	assert.Equal(t, doc.ID(), b.Doc)
}

func TestRegistry_CloseBufferDestroysDocWhenLast(t *testing.T) {
	r := NewRegistry()
	doc, buf := r.OpenDocument("", "scratch")

	closedDoc, docClosed, ok := r.CloseBuffer(buf)
	require.True(t, ok)
	require.True(t, docClosed)
	assert.Equal(t, doc.ID(), closedDoc)
	assert.Equal(t, 0, r.Len())

	_, stillThere := r.Document(doc.ID())
	assert.False(t, stillThere)
}

func TestRegistry_CloseBufferKeepsDocWithRemainingSplit(t *testing.T) {
	r := NewRegistry()
	doc, buf1 := r.OpenDocument("", "scratch")
	buf2 := r.AddBuffer(doc.ID())

	_, docClosed, ok := r.CloseBuffer(buf1)
	require.True(t, ok)
	assert.False(t, docClosed, "a second buffer still views the document")
	assert.Equal(t, 1, r.Len())

	_, docClosed, ok = r.CloseBuffer(buf2)
	require.True(t, ok)
	assert.True(t, docClosed)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_CloseBufferUnknownReportsNotOK(t *testing.T) {
	r := NewRegistry()
	_, _, ok := r.CloseBuffer(BufferID{})
	assert.False(t, ok)
}

func TestRegistry_DocByURI(t *testing.T) {
	r := NewRegistry()
	doc, buf := r.OpenDocument("file:///a.go", "package a\n")

	id, ok := r.DocByURI("file:///a.go")
	require.True(t, ok)
	assert.Equal(t, doc.ID(), id)

	_, ok = r.DocByURI("file:///missing.go")
	assert.False(t, ok)

	_, docClosed, ok := r.CloseBuffer(buf)
	require.True(t, ok)
	require.True(t, docClosed)

	_, ok = r.DocByURI("file:///a.go")
	assert.False(t, ok, "URI index must be cleaned up when the document is destroyed")
}

func TestRegistry_DocByURI_IgnoresScratchBuffers(t *testing.T) {
	r := NewRegistry()
	r.OpenDocument("", "scratch")

	_, ok := r.DocByURI("")
	assert.False(t, ok)
}
