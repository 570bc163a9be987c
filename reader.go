package ast

import "github.com/tinyjsvm/ast/corrupt"

// A Cursor is a read position into a Tree, advanced in place by its
// methods. The zero value is not usable; obtain one from
// Tree.Root() or by copying an existing Cursor (copying duplicates the
// read position without affecting the original).
type Cursor struct {
	tree *Tree
	pos  int
}

// Pos returns the Cursor's current absolute byte offset.
func (c *Cursor) Pos() int {
	return c.pos
}

// Seek repositions the Cursor at an absolute offset, typically one
// previously obtained from GetSkip.
func (c *Cursor) Seek(pos int) {
	c.pos = pos
}

func (c *Cursor) require(n int) error {
	if c.pos < 0 || c.pos+n > c.tree.Len() {
		return corrupt.At(c.pos, "cursor advance past end of buffer")
	}
	return nil
}

// FetchTag reads the byte at the Cursor, advances it by one, and returns
// the decoded tag. The caller invariant is that the Cursor was positioned
// at a tag boundary.
func (c *Cursor) FetchTag() (Tag, error) {
	if err := c.require(1); err != nil {
		return 0, err
	}
	t := Tag(c.tree.Bytes()[c.pos])
	c.pos++
	return t, nil
}

// MoveToChildren consults the catalog row for the tag last fetched at
// payloadOff-1 and advances the Cursor past the skip slots and inline
// string payload, leaving it at the first fixed child. payloadOff is the
// offset returned by the FetchTag call that produced the node (i.e.
// Cursor.Pos() immediately after that FetchTag).
func (c *Cursor) MoveToChildren(payloadOff int) error {
	if err := c.require(0); err != nil {
		return err
	}
	r, err := c.rowAt(payloadOff)
	if err != nil {
		return err
	}

	pos := payloadOff + r.NumSkips*skipWidth
	if r.HasVarint {
		buf := c.tree.Bytes()
		if pos > len(buf) {
			return corrupt.At(pos, "varint length prefix out of range")
		}
		slen, llen := DecodeVarint(buf[pos:])
		if llen == 0 {
			return corrupt.At(pos, "malformed varint length prefix")
		}
		pos += llen
		if r.HasInlined {
			pos += int(slen)
		}
	}
	if err := c.requireAt(pos, 0); err != nil {
		return err
	}
	c.pos = pos
	return nil
}

func (c *Cursor) rowAt(payloadOff int) (Row, error) {
	buf := c.tree.Bytes()
	if payloadOff < 1 || payloadOff > len(buf) {
		return Row{}, corrupt.At(payloadOff, "payload offset out of range")
	}
	tag := Tag(buf[payloadOff-1])
	r, ok := tag.Row()
	if !ok {
		return Row{}, corrupt.At(payloadOff-1, "unknown tag")
	}
	return r, nil
}

func (c *Cursor) requireAt(pos, n int) error {
	if pos < 0 || pos+n > c.tree.Len() {
		return corrupt.At(pos, "cursor advance past end of buffer")
	}
	return nil
}

// GetSkip reads skip slot which of the node whose payload starts at
// payloadOff and returns its absolute target offset.
func (c *Cursor) GetSkip(payloadOff, which int) (int, error) {
	r, err := c.rowAt(payloadOff)
	if err != nil {
		return 0, err
	}
	if which < 0 || which >= r.NumSkips {
		return 0, corrupt.At(payloadOff, "skip slot index out of range")
	}
	slot := payloadOff + which*skipWidth
	if err := c.requireAt(slot, skipWidth); err != nil {
		return 0, err
	}
	buf := c.tree.Bytes()
	delta := int(buf[slot])<<8 | int(buf[slot+1])
	return payloadOff + delta, nil
}

// GetInlinedData decodes the varint length prefix at payloadOff and
// returns a view of the inline string that follows, as a slice whose
// length is the decoded prefix. It does not move the Cursor. The returned
// bytes alias the Tree's storage and are only valid
// until the Tree is next mutated or freed.
func (c *Cursor) GetInlinedData(payloadOff int) ([]byte, error) {
	buf := c.tree.Bytes()
	if payloadOff < 0 || payloadOff > len(buf) {
		return nil, corrupt.At(payloadOff, "inline payload offset out of range")
	}
	slen, llen := DecodeVarint(buf[payloadOff:])
	if llen == 0 {
		return nil, corrupt.At(payloadOff, "malformed varint length prefix")
	}
	start := payloadOff + llen
	end := start + int(slen)
	if end > len(buf) || end < start {
		return nil, corrupt.At(payloadOff, "inline string payload out of range")
	}
	return buf[start:end], nil
}

// GetNum decodes the inline string at payloadOff, which must be an ASCII
// decimal or ECMAScript numeric literal, into a float64.
func (c *Cursor) GetNum(payloadOff int) (float64, error) {
	data, err := c.GetInlinedData(payloadOff)
	if err != nil {
		return 0, err
	}
	return parseJSNumber(data)
}

// SkipTree advances the Cursor past one complete subtree rooted at its
// current position, without the caller needing to understand that
// subtree's tag: fetch the tag, move to children, recursively skip each
// fixed subtree, then, if the node has skip slots, repeatedly skip
// subtrees until the cursor reaches END. This is what lets a reader safely
// traverse and jump over nodes whose tag it does not recognize, as long as
// that tag still reserves an END skip.
//
// A tag absent from this process's Catalog (e.g. one added by a newer
// format revision) is treated as an opaque forward-compatible extension
// node: this reader assumes such a node has exactly one skip slot,
// END, immediately after the tag byte, and no other structure; it jumps
// straight to END without attempting to interpret anything in between.
func (c *Cursor) SkipTree() error {
	tag, err := c.FetchTag()
	if err != nil {
		return err
	}
	r, ok := tag.Row()
	if !ok {
		return c.skipUnknownTag()
	}
	payloadOff := c.pos

	if err := c.MoveToChildren(payloadOff); err != nil {
		return err
	}
	for i := 0; i < r.NumSubtrees; i++ {
		if err := c.SkipTree(); err != nil {
			return err
		}
	}

	if r.NumSkips > 0 {
		end, err := c.GetSkip(payloadOff, END)
		if err != nil {
			return err
		}
		for c.pos < end {
			if err := c.SkipTree(); err != nil {
				return err
			}
		}
		if c.pos != end {
			return corrupt.At(c.pos, "variable sequence overran its END skip")
		}
	}
	return nil
}

// skipUnknownTag jumps the Cursor to the END target of a node whose tag has
// no Catalog row, per the forward-compatibility convention documented on
// SkipTree. c.pos is immediately after the unrecognized tag byte.
func (c *Cursor) skipUnknownTag() error {
	payloadOff := c.pos
	if err := c.requireAt(payloadOff, skipWidth); err != nil {
		return err
	}
	buf := c.tree.Bytes()
	delta := int(buf[payloadOff])<<8 | int(buf[payloadOff+1])
	end := payloadOff + delta
	if err := c.requireAt(end, 0); err != nil {
		return err
	}
	c.pos = end
	return nil
}
