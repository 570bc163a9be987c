package ast

// A Tree owns one Buffer and its length: a packed AST instance. It is
// created empty, grown monotonically by a Writer during parsing, trimmed,
// and then handed to readers (the interpreter or the dumper) for read-only
// traversal. A Tree is single-owner while growing; once finalized (after
// TrimToSize), multiple readers may traverse it concurrently, since no
// mutable state remains.
type Tree struct {
	buf *Buffer
}

// A TreeOption configures a new Tree.
type TreeOption interface {
	apply(*treeConfig)
}

type treeConfig struct {
	capacity int
}

type treeOptionFunc func(*treeConfig)

func (f treeOptionFunc) apply(c *treeConfig) { f(c) }

// WithCapacity pre-allocates capacity bytes in the new Tree's Buffer,
// avoiding reallocation for sources of a roughly known size.
func WithCapacity(capacity int) TreeOption {
	return treeOptionFunc(func(c *treeConfig) { c.capacity = capacity })
}

// New returns an empty Tree, ready for a Writer to append the root SCRIPT
// node.
func New(opts ...TreeOption) *Tree {
	var cfg treeConfig
	for _, o := range opts {
		o.apply(&cfg)
	}
	return &Tree{buf: NewBuffer(cfg.capacity)}
}

// Len returns the number of bytes currently in the Tree's buffer.
func (t *Tree) Len() int {
	return t.buf.Len()
}

// Bytes returns the Tree's packed byte-buffer contents: the wire format of
// the AST. The returned slice aliases the Tree's storage and is only valid until
// the Tree is next mutated (by a Writer) or freed.
func (t *Tree) Bytes() []byte {
	return t.buf.Bytes()
}

// Root returns a Cursor positioned at offset 0, the tag of the root SCRIPT
// node.
func (t *Tree) Root() *Cursor {
	return &Cursor{tree: t, pos: 0}
}

// TrimToSize shrinks the Tree's backing buffer to its current length. It is
// intended to be called once parsing completes, before handing the Tree to
// a read-only consumer.
func (t *Tree) TrimToSize() {
	t.buf.Trim()
}

// Free releases the Tree's storage. After Free, the Tree must not be used.
func (t *Tree) Free() {
	t.buf.Free()
}
