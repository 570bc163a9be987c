package ast

import (
	"bytes"
	"testing"

	"github.com/tinyjsvm/ast/corrupt"
)

// buildNum1 builds the tree for the source `1`: a SCRIPT whose only
// variable child is a NUM node with inline string "1".
func buildNum1(t *testing.T) *Tree {
	t.Helper()
	tree := New()
	w := NewWriter(tree)
	script := w.AddNode(SCRIPT)
	w.AddInlinedNode(NUM, "1")
	w.SetSkip(script, FirstVar)
	w.SetSkip(script, END)
	tree.TrimToSize()
	return tree
}

func TestInput1Layout(t *testing.T) {
	tree := buildNum1(t)
	buf := tree.Bytes()

	if got, want := Tag(buf[0]), SCRIPT; got != want {
		t.Fatalf("byte 0 tag = %s; want %s", got, want)
	}

	c := tree.Root()
	tag, err := c.FetchTag()
	if err != nil || tag != SCRIPT {
		t.Fatalf("FetchTag() = %s, %v; want SCRIPT, nil", tag, err)
	}
	payloadOff := c.Pos()

	end, err := c.GetSkip(payloadOff, END)
	if err != nil {
		t.Fatalf("GetSkip(END) error %v", err)
	}
	if end != tree.Len() {
		t.Errorf("SCRIPT END = %d; want buffer length %d", end, tree.Len())
	}

	if err := c.MoveToChildren(payloadOff); err != nil {
		t.Fatalf("MoveToChildren() error %v", err)
	}
	childTag, err := c.FetchTag()
	if err != nil || childTag != NUM {
		t.Fatalf("child tag = %s, %v; want NUM, nil", childTag, err)
	}
	numOff := c.Pos()
	data, err := c.GetInlinedData(numOff)
	if err != nil {
		t.Fatalf("GetInlinedData() error %v", err)
	}
	if string(data) != "1" {
		t.Errorf("NUM inline data = %q; want %q", data, "1")
	}
}

func TestVarXEquals2(t *testing.T) {
	// Input `var x=2;`.
	tree := New()
	w := NewWriter(tree)
	script := w.AddNode(SCRIPT)

	varOff := w.AddNode(VAR)
	w.AddInlinedNode(VAR_DECL, "x")
	w.AddInlinedNode(NUM, "2")
	w.SetSkip(varOff, VarNext)
	w.SetSkip(varOff, END)

	w.SetSkip(script, FirstVar)
	w.SetSkip(script, END)
	tree.TrimToSize()

	c := tree.Root()
	mustTag(t, c, SCRIPT)
	scriptPayload := c.Pos()
	mustMoveToChildren(t, c, scriptPayload)

	mustTag(t, c, VAR)
	varPayload := c.Pos()
	mustMoveToChildren(t, c, varPayload)

	mustTag(t, c, VAR_DECL)
	declPayload := c.Pos()
	data, err := c.GetInlinedData(declPayload)
	if err != nil || string(data) != "x" {
		t.Fatalf("VAR_DECL inline = %q, %v; want \"x\", nil", data, err)
	}
	mustMoveToChildren(t, c, declPayload)

	mustTag(t, c, NUM)
	numPayload := c.Pos()
	data, err = c.GetInlinedData(numPayload)
	if err != nil || string(data) != "2" {
		t.Fatalf("NUM inline = %q, %v; want \"2\", nil", data, err)
	}
}

func TestIfElseLayout(t *testing.T) {
	// Input `if(x)1;else 2;`.
	tree := New()
	w := NewWriter(tree)
	script := w.AddNode(SCRIPT)

	ifOff := w.AddNode(IF)
	w.AddInlinedNode(IDENT, "x")
	w.AddInlinedNode(NUM, "1") // true branch
	w.SetSkip(ifOff, IfEndTrue)
	w.AddInlinedNode(NUM, "2") // false branch
	w.SetSkip(ifOff, END)

	w.SetSkip(script, FirstVar)
	w.SetSkip(script, END)
	tree.TrimToSize()

	c := tree.Root()
	mustTag(t, c, SCRIPT)
	mustMoveToChildren(t, c, c.Pos())

	mustTag(t, c, IF)
	ifPayload := c.Pos()
	endTrue, err := c.GetSkip(ifPayload, IfEndTrue)
	if err != nil {
		t.Fatalf("GetSkip(IfEndTrue) error %v", err)
	}
	end, err := c.GetSkip(ifPayload, END)
	if err != nil {
		t.Fatalf("GetSkip(END) error %v", err)
	}
	if endTrue >= end {
		t.Errorf("end_true (%d) >= END (%d); want strictly less", endTrue, end)
	}

	mustMoveToChildren(t, c, ifPayload)
	mustTag(t, c, IDENT) // cond
	condOff := c.Pos()
	mustMoveToChildren(t, c, condOff)

	mustTag(t, c, NUM) // true branch
	trueOff := c.Pos()
	data, _ := c.GetInlinedData(trueOff)
	if string(data) != "1" {
		t.Errorf("true branch = %q; want %q", data, "1")
	}
	mustMoveToChildren(t, c, trueOff)
	if c.Pos() != endTrue {
		t.Errorf("cursor after true branch = %d; want end_true %d", c.Pos(), endTrue)
	}

	mustTag(t, c, NUM) // false branch
	falseOff := c.Pos()
	data, _ = c.GetInlinedData(falseOff)
	if string(data) != "2" {
		t.Errorf("false branch = %q; want %q", data, "2")
	}
	mustMoveToChildren(t, c, falseOff)
	if c.Pos() != end {
		t.Errorf("cursor after false branch = %d; want END %d", c.Pos(), end)
	}
}

func mustTag(t *testing.T, c *Cursor, want Tag) {
	t.Helper()
	got, err := c.FetchTag()
	if err != nil {
		t.Fatalf("FetchTag() error %v", err)
	}
	if got != want {
		t.Fatalf("FetchTag() = %s; want %s", got, want)
	}
}

func mustMoveToChildren(t *testing.T, c *Cursor, payloadOff int) {
	t.Helper()
	if err := c.MoveToChildren(payloadOff); err != nil {
		t.Fatalf("MoveToChildren(%d) error %v", payloadOff, err)
	}
}

// TestRoundTripTraversal checks that SkipTree from offset 0 always
// advances the Cursor to exactly the buffer length, for any tree the
// writer produces.
func TestRoundTripTraversal(t *testing.T) {
	trees := []*Tree{buildNum1(t), buildCallChain(t), buildFuncDecl(t)}
	for i, tree := range trees {
		c := tree.Root()
		if err := c.SkipTree(); err != nil {
			t.Fatalf("tree %d: SkipTree() error %v", i, err)
		}
		if got, want := c.Pos(), tree.Len(); got != want {
			t.Errorf("tree %d: cursor after SkipTree() = %d; want buffer length %d", i, got, want)
		}
	}
}

// buildCallChain builds the tree for the source `a[b](c)`:
// CALL(fixed=INDEX(a,b), variable=[c]).
func buildCallChain(t *testing.T) *Tree {
	t.Helper()
	tree := New()
	w := NewWriter(tree)
	script := w.AddNode(SCRIPT)

	start := tree.Len()
	w.AddInlinedNode(IDENT, "a")
	w.InsertNode(start, INDEX)
	w.AddInlinedNode(IDENT, "b")

	callOff := w.InsertNode(start, CALL)
	w.AddInlinedNode(IDENT, "c")
	w.SetSkip(callOff, END)

	w.SetSkip(script, FirstVar)
	w.SetSkip(script, END)
	tree.TrimToSize()
	return tree
}

func TestCallChainShape(t *testing.T) {
	tree := buildCallChain(t)
	c := tree.Root()
	mustTag(t, c, SCRIPT)
	mustMoveToChildren(t, c, c.Pos())

	mustTag(t, c, CALL)
	callPayload := c.Pos()
	mustMoveToChildren(t, c, callPayload)

	mustTag(t, c, INDEX)
	indexPayload := c.Pos()
	mustMoveToChildren(t, c, indexPayload)

	mustTag(t, c, IDENT)
	aOff := c.Pos()
	data, _ := c.GetInlinedData(aOff)
	if string(data) != "a" {
		t.Errorf("INDEX fixed[0] = %q; want %q", data, "a")
	}
	mustMoveToChildren(t, c, aOff)

	mustTag(t, c, IDENT)
	bOff := c.Pos()
	data, _ = c.GetInlinedData(bOff)
	if string(data) != "b" {
		t.Errorf("INDEX fixed[1] = %q; want %q", data, "b")
	}
	mustMoveToChildren(t, c, bOff)

	// Back at CALL's variable sequence: the single argument "c".
	mustTag(t, c, IDENT)
	cOff := c.Pos()
	data, _ = c.GetInlinedData(cOff)
	if string(data) != "c" {
		t.Errorf("CALL variable arg = %q; want %q", data, "c")
	}
}

// buildFuncDecl builds the tree for the source `function f(a){return a;}`.
func buildFuncDecl(t *testing.T) *Tree {
	t.Helper()
	tree := New()
	w := NewWriter(tree)
	script := w.AddNode(SCRIPT)

	w.AddInlinedNode(FUNC_DECL, "f")
	funcOff := w.AddNode(FUNC)
	w.AddInlinedNode(IDENT, "f")
	w.AddInlinedNode(IDENT, "a") // parameter
	w.SetSkip(funcOff, FuncBody)

	w.AddNode(VAL_RETURN)
	w.AddInlinedNode(IDENT, "a")

	w.SetSkip(funcOff, FirstVar) // no hoisted decls in the body
	w.SetSkip(funcOff, END)

	w.SetSkip(script, FirstVar)
	w.SetSkip(script, END)
	tree.TrimToSize()
	return tree
}

func TestFuncDeclShape(t *testing.T) {
	tree := buildFuncDecl(t)
	c := tree.Root()
	mustTag(t, c, SCRIPT)
	mustMoveToChildren(t, c, c.Pos())

	mustTag(t, c, FUNC_DECL)
	declPayload := c.Pos()
	data, _ := c.GetInlinedData(declPayload)
	if string(data) != "f" {
		t.Errorf("FUNC_DECL name = %q; want %q", data, "f")
	}
	mustMoveToChildren(t, c, declPayload)

	mustTag(t, c, FUNC)
	funcPayload := c.Pos()
	bodyBoundary, err := c.GetSkip(funcPayload, FuncBody)
	if err != nil {
		t.Fatalf("GetSkip(FuncBody) error %v", err)
	}

	mustMoveToChildren(t, c, funcPayload)
	mustTag(t, c, IDENT) // FUNC's fixed name child
	nameOff := c.Pos()
	data, _ = c.GetInlinedData(nameOff)
	if string(data) != "f" {
		t.Errorf("FUNC name child = %q; want %q", data, "f")
	}
	mustMoveToChildren(t, c, nameOff)

	mustTag(t, c, IDENT) // parameter "a"
	paramOff := c.Pos()
	data, _ = c.GetInlinedData(paramOff)
	if string(data) != "a" {
		t.Errorf("FUNC parameter = %q; want %q", data, "a")
	}
	mustMoveToChildren(t, c, paramOff)
	if c.Pos() != bodyBoundary {
		t.Errorf("cursor after parameter = %d; want FuncBody boundary %d", c.Pos(), bodyBoundary)
	}

	mustTag(t, c, VAL_RETURN)
	retPayload := c.Pos()
	mustMoveToChildren(t, c, retPayload)
	mustTag(t, c, IDENT)
	retIdentOff := c.Pos()
	data, _ = c.GetInlinedData(retIdentOff)
	if string(data) != "a" {
		t.Errorf("VAL_RETURN operand = %q; want %q", data, "a")
	}
}

// TestSkipLocality checks that the root SCRIPT's END skip lies after the
// node's first payload byte and no further than the buffer tail, and fits
// in 16 bits.
func TestSkipLocality(t *testing.T) {
	tree := buildIfElse(t)
	c := tree.Root()
	mustTag(t, c, SCRIPT)
	scriptPayload := c.Pos()
	end, err := c.GetSkip(scriptPayload, END)
	if err != nil {
		t.Fatalf("GetSkip(END) error %v", err)
	}
	if end <= scriptPayload || end > tree.Len() {
		t.Errorf("SCRIPT END = %d; want in (%d, %d]", end, scriptPayload, tree.Len())
	}
	if delta := end - scriptPayload; delta > 0xffff {
		t.Errorf("SCRIPT END delta %d exceeds 16 bits", delta)
	}
}

func buildIfElse(t *testing.T) *Tree {
	t.Helper()
	tree := New()
	w := NewWriter(tree)
	script := w.AddNode(SCRIPT)
	ifOff := w.AddNode(IF)
	w.AddInlinedNode(IDENT, "x")
	w.AddInlinedNode(NUM, "1")
	w.SetSkip(ifOff, IfEndTrue)
	w.AddInlinedNode(NUM, "2")
	w.SetSkip(ifOff, END)
	w.SetSkip(script, FirstVar)
	w.SetSkip(script, END)
	tree.TrimToSize()
	return tree
}

// TestSkipAuthorityUnknownTag checks that injecting an unrecognized tag
// (carrying its own minimal END skip, per SkipTree's forward-compatibility
// convention) into a variable sequence does not prevent the parent's
// traversal from reaching its own END.
func TestSkipAuthorityUnknownTag(t *testing.T) {
	tree := New()
	w := NewWriter(tree)
	script := w.AddNode(SCRIPT)
	w.AddInlinedNode(NUM, "1")

	// Hand-craft an unrecognized tag node: a tag byte past tagCount,
	// followed by a 2-byte END skip that spans 3 bytes of opaque payload.
	unknownTag := byte(tagCount + 10)
	opaquePayload := []byte{0xde, 0xad, 0xbe}
	tree.buf.Append(1, []byte{unknownTag})
	skipTarget := tree.Len() + 2 + len(opaquePayload)
	deltaStart := tree.Len()
	tree.buf.Append(2, []byte{
		byte((skipTarget - deltaStart) >> 8),
		byte(skipTarget - deltaStart),
	})
	tree.buf.Append(len(opaquePayload), opaquePayload)

	w.AddInlinedNode(STRING, "after")
	w.SetSkip(script, FirstVar)
	w.SetSkip(script, END)
	tree.TrimToSize()

	c := tree.Root()
	if err := c.SkipTree(); err != nil {
		t.Fatalf("SkipTree() with an injected unknown tag: %v", err)
	}
	if got, want := c.Pos(), tree.Len(); got != want {
		t.Errorf("cursor after SkipTree() = %d; want buffer length %d", got, want)
	}
}

// TestInsertionPreservation checks that InsertNode followed immediately
// by SkipTree from the buffer start still reaches buffer end, provided
// the caller re-patches the ancestor END as the close protocol requires.
func TestInsertionPreservation(t *testing.T) {
	tree := New()
	w := NewWriter(tree)
	script := w.AddNode(SCRIPT)

	start := tree.Len()
	w.AddInlinedNode(IDENT, "f")
	callOff := w.InsertNode(start, CALL)
	w.AddInlinedNode(NUM, "1")
	w.SetSkip(callOff, END)

	w.SetSkip(script, FirstVar)
	w.SetSkip(script, END) // re-patch the ancestor's END after insertion
	tree.TrimToSize()

	c := tree.Root()
	if err := c.SkipTree(); err != nil {
		t.Fatalf("SkipTree() error %v", err)
	}
	if got, want := c.Pos(), tree.Len(); got != want {
		t.Errorf("cursor after SkipTree() = %d; want buffer length %d", got, want)
	}
}

func TestModifySkipOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("ModifySkip() with an out-of-16-bit delta did not panic")
		}
	}()
	tree := New()
	w := NewWriter(tree)
	script := w.AddNode(SCRIPT)
	w.ModifySkip(script, script+0x10000, END)
}

func TestSetSkipBadSlotPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("SetSkip() with an out-of-range slot did not panic")
		}
	}()
	tree := New()
	w := NewWriter(tree)
	script := w.AddNode(SCRIPT)
	w.SetSkip(script, 2) // SCRIPT only has slots 0,1
}

func TestCursorBoundsChecked(t *testing.T) {
	tree := New()
	w := NewWriter(tree)
	w.AddNode(NOP)
	tree.TrimToSize()

	c := tree.Root()
	mustTag(t, c, NOP)
	if _, err := c.FetchTag(); err == nil {
		t.Fatal("FetchTag() past buffer end returned nil error")
	} else if _, ok := corrupt.From(err); !ok {
		t.Errorf("FetchTag() past buffer end error is not a corrupt error: %v", err)
	}
}

func TestBytesEqualBuffersYieldIdenticalLayout(t *testing.T) {
	a := buildFuncDecl(t)
	b := buildFuncDecl(t)
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("two independently built identical trees produced different buffers")
	}
}
