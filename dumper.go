package ast

import (
	"fmt"
	"io"
	"strings"

	"github.com/tinyjsvm/ast/corrupt"
)

// A DumpOption configures Dump.
type DumpOption interface {
	apply(*dumpConfig)
}

type dumpConfig struct {
	elideNames bool
	indent     string
}

type dumpOptionFunc func(*dumpConfig)

func (f dumpOptionFunc) apply(c *dumpConfig) { f(c) }

// ElideNames causes Dump to print TAG_<n> instead of the catalog's display
// name for every node, as if the catalog were built with names elided.
func ElideNames() DumpOption {
	return dumpOptionFunc(func(c *dumpConfig) { c.elideNames = true })
}

// Indent overrides the default two-space-per-depth-level indent used by
// Dump.
func Indent(s string) DumpOption {
	return dumpOptionFunc(func(c *dumpConfig) { c.indent = s })
}

// Dump traverses tree exactly like Cursor.SkipTree, writing an indented
// text rendering to w: one line per node, two spaces per depth level, an
// inline-string payload on the same line as its node. Dump's output is a
// deterministic function of the tree's buffer contents: two byte-equal
// buffers yield byte-equal dumps.
func Dump(w io.Writer, tree *Tree, opts ...DumpOption) error {
	cfg := dumpConfig{indent: "  "}
	for _, o := range opts {
		o.apply(&cfg)
	}
	d := &dumper{w: w, cfg: cfg}
	c := tree.Root()
	return d.dumpTree(c, 0)
}

type dumper struct {
	w   io.Writer
	cfg dumpConfig
}

func (d *dumper) writeIndent(depth int) error {
	_, err := io.WriteString(d.w, strings.Repeat(d.cfg.indent, depth))
	return err
}

func (d *dumper) tagName(tag Tag) string {
	if d.cfg.elideNames {
		return unknownTagName(tag)
	}
	return tag.String()
}

// dumpTree renders one node (and its full subtree) at depth, advancing c
// past it; this is the reader-side twin of Cursor.SkipTree, with output
// instead of nothing.
func (d *dumper) dumpTree(c *Cursor, depth int) error {
	tag, err := c.FetchTag()
	if err != nil {
		return err
	}
	r, ok := tag.Row()
	if !ok {
		return corrupt.At(c.Pos()-1, "unknown tag")
	}
	payloadOff := c.Pos()

	if err := d.writeIndent(depth); err != nil {
		return err
	}
	if _, err := io.WriteString(d.w, d.tagName(tag)); err != nil {
		return err
	}

	if r.HasInlined {
		data, err := c.GetInlinedData(payloadOff)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(d.w, " %s", data); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(d.w, "\n"); err != nil {
		return err
	}

	if err := c.MoveToChildren(payloadOff); err != nil {
		return err
	}
	for i := 0; i < r.NumSubtrees; i++ {
		if err := d.dumpTree(c, depth+1); err != nil {
			return err
		}
	}

	if r.NumSkips == 0 {
		return nil
	}

	end, err := c.GetSkip(payloadOff, END)
	if err != nil {
		return err
	}

	if err := d.writeIndent(depth + 1); err != nil {
		return err
	}
	if _, err := io.WriteString(d.w, "/* [...] */\n"); err != nil {
		return err
	}

	for c.Pos() < end {
		for s := r.NumSkips - 1; s > 0; s-- {
			target, err := c.GetSkip(payloadOff, s)
			if err != nil {
				return err
			}
			if c.Pos() == target {
				if err := d.writeIndent(depth + 1); err != nil {
					return err
				}
				if _, err := fmt.Fprintf(d.w, "/* [%d ->] */\n", s); err != nil {
					return err
				}
				break
			}
		}
		if err := d.dumpTree(c, depth+1); err != nil {
			return err
		}
	}
	return nil
}
