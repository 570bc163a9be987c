// Package inspect provides an interactive, single-step walk over a
// finalized ast.Tree, intended for a terminal UI. A step/fast-forward/done
// channel protocol, built on internal/sync.Toggle, paces a walk through
// the tree one packed node at a time.
package inspect

import (
	"context"
	"errors"
	"sync"

	"github.com/tinyjsvm/ast"
	"github.com/tinyjsvm/ast/corrupt"
	syncx "github.com/tinyjsvm/ast/internal/sync"
)

// NodeState describes one visited node: enough to render it without
// re-decoding the buffer.
type NodeState struct {
	Tag        ast.Tag
	Depth      int
	PayloadOff int
	// Inlined holds the node's inline string payload, or nil if the node
	// has none.
	Inlined []byte
	// Skips holds the resolved absolute target offset of each of the
	// node's skip slots, in slot order (index 0 is always END).
	Skips []int
}

// For stricter channel types, as there are otherwise several with void
// types that can be accidentally switched.
type (
	step        struct{}
	fastForward struct{}
	stepped     struct{}
	done        struct{}
)

// NewStepper walks tree's full node sequence in pre-order (the order
// ast.Dump visits it) and returns a Stepper ready to single-step through
// it. The sequence is fully known up front: a finalized Tree has no
// further execution to discover, so enumeration happens once, eagerly,
// and the channel protocol merely paces a caller's walk through the
// result one node at a time.
func NewStepper(tree *ast.Tree) (*Stepper, error) {
	states, err := collectNodes(tree)
	if err != nil {
		return nil, err
	}

	shared := new(sharedState)

	stepCh := make(chan step)
	ffCh := make(chan fastForward)
	steppedCh := make(chan stepped)
	doneCh := make(chan done)

	blocked := new(syncx.Toggle)

	s := &Stepper{
		shared:      shared,
		blocked:     blocked,
		step:        stepCh,
		fastForward: ffCh,
		ffClosed:    ffCh,
		stepped:     steppedCh,
		done:        doneCh,
	}
	w := &walker{
		shared:      shared,
		blocked:     blocked,
		states:      states,
		step:        stepCh,
		fastForward: ffCh,
		stepped:     steppedCh,
		done:        doneCh,
	}
	go w.run()
	return s, nil
}

// sharedState carries the last-captured NodeState across the boundary
// between the walker goroutine and the Stepper's caller.
type sharedState struct {
	mu   sync.Mutex
	last NodeState
}

func (s *sharedState) set(st NodeState) {
	s.mu.Lock()
	s.last = st
	s.mu.Unlock()
}

func (s *sharedState) get() NodeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// A Stepper single-steps through a precomputed node sequence, pausing
// after each one for inspection. Step MUST NOT be called concurrently
// with any other Stepper method, and MUST NOT be called after Done()
// returns true. Best practice is to defer FastForward() to avoid leaking
// the driving goroutine.
type Stepper struct {
	shared  *sharedState
	blocked *syncx.Toggle

	step        chan<- step
	fastForward chan<- fastForward
	// ffClosed is the receive side of fastForward, used only to detect a
	// repeat call to FastForward() without closing the channel twice.
	ffClosed <-chan fastForward
	stepped  <-chan stepped
	done     <-chan done
}

// Wait blocks until the walker is paused, waiting for the Step() that
// captures the next unvisited node. It may return before the first
// Step(); State() still reports the previously captured node, and is only
// meaningful once at least one node has been captured. Waiting on a
// Stepper whose walk has already completed returns immediately.
func (s *Stepper) Wait(ctx context.Context) error {
	err := s.blocked.Wait(ctx)
	if errors.Is(err, syncx.ErrToggleClosed) {
		// The walker closes the Toggle once every node is visited; a
		// closed Toggle therefore means there is nothing left to wait for.
		return nil
	}
	return err
}

// Step advances to the next node, blocking until it has been captured.
func (s *Stepper) Step() {
	s.step <- step{}
	<-s.stepped
}

// FastForward releases all remaining nodes without pausing between them,
// equivalent to calling Step() in a loop until Done() returns true. Unlike
// Step(), calling FastForward() after Done() returns true is acceptable,
// so it can be deferred to avoid leaking the walker goroutine.
func (s *Stepper) FastForward() {
	select {
	case <-s.ffClosed: // already closed
		return
	default:
	}

	close(s.fastForward)
	for {
		select {
		case <-s.stepped: // drain the per-node signals the walker still sends
		case <-s.done:
			return
		}
	}
}

// Done reports whether every node has been visited.
func (s *Stepper) Done() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// State returns the most recently captured NodeState. It is only
// meaningful after at least one call to Step() or FastForward().
func (s *Stepper) State() NodeState {
	return s.shared.get()
}

// walker drives the channel protocol over a precomputed node sequence.
type walker struct {
	shared  *sharedState
	blocked *syncx.Toggle
	states  []NodeState

	step        <-chan step
	fastForward <-chan fastForward
	stepped     chan<- stepped
	done        chan<- done
}

// run advances through w.states one at a time, toggling w.blocked on
// before waiting for the next step signal and off again once it captures
// that node's state. Consequently Stepper.Wait() can unblock before the
// first Step(), though State() is only meaningful once a node has
// actually been captured.
func (w *walker) run() {
	for i, st := range w.states {
		w.blocked.Set(true)
		select {
		case <-w.step:
		case <-w.fastForward:
		}
		w.shared.set(st)
		w.blocked.Set(false)

		if i == len(w.states)-1 {
			break
		}
		w.stepped <- stepped{}
	}
	close(w.done)
	close(w.stepped)
	w.blocked.Close()
}

// collectNodes walks tree's entire contents in pre-order, mirroring
// ast.Dump's traversal structure but capturing NodeState instead of
// writing text.
func collectNodes(tree *ast.Tree) ([]NodeState, error) {
	var states []NodeState
	c := tree.Root()
	if err := visit(c, 0, &states); err != nil {
		return nil, err
	}
	return states, nil
}

func visit(c *ast.Cursor, depth int, states *[]NodeState) error {
	tag, err := c.FetchTag()
	if err != nil {
		return err
	}
	r, ok := tag.Row()
	if !ok {
		return corrupt.At(c.Pos()-1, "unknown tag")
	}
	payloadOff := c.Pos()

	st := NodeState{Tag: tag, Depth: depth, PayloadOff: payloadOff}
	if r.HasInlined {
		data, err := c.GetInlinedData(payloadOff)
		if err != nil {
			return err
		}
		st.Inlined = data
	}
	if r.NumSkips > 0 {
		st.Skips = make([]int, r.NumSkips)
		for s := 0; s < r.NumSkips; s++ {
			target, err := c.GetSkip(payloadOff, s)
			if err != nil {
				return err
			}
			st.Skips[s] = target
		}
	}
	*states = append(*states, st)

	if err := c.MoveToChildren(payloadOff); err != nil {
		return err
	}
	for i := 0; i < r.NumSubtrees; i++ {
		if err := visit(c, depth+1, states); err != nil {
			return err
		}
	}
	if r.NumSkips == 0 {
		return nil
	}
	end := st.Skips[ast.END]
	for c.Pos() < end {
		if err := visit(c, depth+1, states); err != nil {
			return err
		}
	}
	return nil
}
