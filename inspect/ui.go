package inspect

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/tinyjsvm/ast"
)

// RunTerminalUI starts an interactive terminal stepper over tree: a list
// of every node in traversal order, a pane decoding the currently
// selected node's fields, and a hex view of the bytes around it. It is
// the dumper's sibling for interactive exploration, not a replacement for
// it.
func RunTerminalUI(tree *ast.Tree) error {
	s, err := NewStepper(tree)
	if err != nil {
		return err
	}
	states, err := collectNodes(tree)
	if err != nil {
		return err
	}

	t := &termUI{
		Stepper: s,
		tree:    tree,
		states:  states,
	}
	t.initComponents()
	t.initApp()
	t.populateNodes()
	defer s.FastForward() // release the walker goroutine if quit mid-walk
	return t.app.Run()
}

type termUI struct {
	*Stepper
	tree   *ast.Tree
	states []NodeState

	app *tview.Application

	nodes  *tview.List
	fields *tview.TextView
	hex    *tview.TextView

	visited int
}

func (*termUI) styleBox(b *tview.Box, title string) *tview.Box {
	return b.SetBorder(true).
		SetTitle(title).
		SetTitleAlign(tview.AlignLeft)
}

func (t *termUI) initComponents() {
	t.nodes = tview.NewList().ShowSecondaryText(false).SetSelectedFocusOnly(false)
	t.styleBox(t.nodes.Box, "Nodes")
	t.nodes.SetChangedFunc(func(i int, _, _ string, _ rune) {
		t.onSelect(i)
	})

	t.fields = tview.NewTextView()
	t.styleBox(t.fields.Box, "Fields")

	t.hex = tview.NewTextView()
	t.styleBox(t.hex.Box, "Bytes")
}

func (t *termUI) initApp() {
	t.app = tview.NewApplication().SetRoot(t.createLayout(), true)
	t.app.SetInputCapture(t.inputCapture)
}

func (t *termUI) createLayout() tview.Primitive {
	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.fields, 0, 1, false).
		AddItem(t.hex, 0, 1, false)

	root := tview.NewFlex().
		AddItem(t.nodes, 0, 1, false).
		AddItem(right, 0, 1, false)

	t.styleBox(root.Box, "AST").SetTitleAlign(tview.AlignCenter)
	return root
}

func (t *termUI) populateNodes() {
	for _, st := range t.states {
		label := strings.Repeat("  ", st.Depth) + st.Tag.String()
		if st.Inlined != nil {
			label += " " + string(st.Inlined)
		}
		t.nodes.AddItem(label, "", 0, nil)
	}
}

// onStep is called after Step() or FastForward() advances t.visited.
func (t *termUI) onStep() {
	if t.visited == 0 {
		return
	}
	t.nodes.SetCurrentItem(t.visited - 1)
}

func (t *termUI) onSelect(i int) {
	if i < 0 || i >= len(t.states) {
		return
	}
	st := t.states[i]

	var b strings.Builder
	fmt.Fprintf(&b, "tag:    %s\n", st.Tag)
	fmt.Fprintf(&b, "depth:  %d\n", st.Depth)
	fmt.Fprintf(&b, "offset: %d\n", st.PayloadOff)
	if st.Inlined != nil {
		fmt.Fprintf(&b, "inline: %q\n", st.Inlined)
	}
	for s, target := range st.Skips {
		fmt.Fprintf(&b, "skip[%d]: -> %d\n", s, target)
	}
	t.fields.SetText(b.String())

	t.hex.SetText(hexAround(t.tree.Bytes(), st.PayloadOff))
}

// hexAround renders a small hex dump centred on offset, for orientation
// within the packed buffer.
func hexAround(buf []byte, offset int) string {
	const radius = 16
	start := offset - radius
	if start < 0 {
		start = 0
	}
	end := offset + radius
	if end > len(buf) {
		end = len(buf)
	}

	var b strings.Builder
	for i := start; i < end; i += 8 {
		j := i + 8
		if j > end {
			j = end
		}
		fmt.Fprintf(&b, "%4d: % x\n", i, buf[i:j])
	}
	return b.String()
}

func (t *termUI) inputCapture(ev *tcell.EventKey) *tcell.EventKey {
	switch ev.Key() {
	case tcell.KeyCtrlC:
		t.app.Stop()
		return ev

	case tcell.KeyEnd:
		if !t.Done() {
			t.FastForward()
			t.visited = len(t.states)
			t.onStep()
		}

	case tcell.KeyEscape:
		if t.Done() {
			t.app.Stop()
		}
	}

	switch ev.Rune() {
	case ' ':
		if !t.Done() {
			t.Step()
			t.visited++
			t.onStep()
		}

	case 'q':
		if t.Done() {
			t.app.Stop()
		}
	}

	return nil
}
