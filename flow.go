package tzbaker

import (
	"errors"
	"log/slog"
)

// Mode tells whether the display shows a fixed screen of the flow or pages
// through the screen stack.
type Mode int

const (
	ModeStatic Mode = iota
	ModeDynamic
)

// Event is reaching one of the two borders around the screen stack. Moving
// forward into the stack hits its left border, moving backward hits its
// right border.
type Event int

const (
	EventLeft Event = iota
	EventRight
)

// Continuation finishes a command once the user has decided.
type Continuation func() ([]byte, error)

// Resolution is the outcome of the user answering a prompt.
type Resolution struct {
	Data []byte
	Err  error
}

type step int

const (
	stepDynamic step = iota
	stepReady
	stepQuit
	stepReview
	stepReject
	stepAccept
)

var (
	idleSteps    = []step{stepReady, stepDynamic, stepQuit}
	confirmSteps = []step{stepReview, stepDynamic, stepReject, stepAccept}
)

var errNoPrompt = errors.New("tzbaker: no confirmation pending")

type confirmation struct {
	accept Continuation
	reject Continuation
}

// Flow is the display state machine. It holds at most one pending
// confirmation and resumes exactly one of its continuations.
type Flow struct {
	render func(Value) (string, error)
	idle   func(*ScreenStack) error

	// OnQuit runs when the user selects Quit on the idle screens.
	OnQuit func()

	stack ScreenStack
	mode  Mode
	index int

	steps []step
	pos   int

	pending *confirmation

	title [TitleSize]byte
	value [ValueSize]byte
}

// NewFlow returns a flow showing the idle screens. render turns screen values
// into text; idle pushes the entries of the idle screens.
func NewFlow(render func(Value) (string, error), idle func(*ScreenStack) error) *Flow {
	f := &Flow{render: render, idle: idle}
	f.ShowIdle()
	return f
}

// Pending reports whether a confirmation is outstanding.
func (f *Flow) Pending() bool {
	return f.pending != nil
}

// Mode tells whether a static step or a stack entry is shown.
func (f *Flow) Mode() Mode {
	return f.mode
}

// Index is the cursor into the screen stack while in ModeDynamic.
func (f *Flow) Index() int {
	return f.index
}

// Stack is the screen stack of the current flow.
func (f *Flow) Stack() *ScreenStack {
	return &f.stack
}

// Begin clears the screen stack ahead of a new prompt.
func (f *Flow) Begin() error {
	if f.pending != nil {
		return ErrBusy
	}
	f.stack.Clear()
	return nil
}

// Push adds a screen to the prompt being built.
func (f *Flow) Push(title string, value Value) error {
	return f.stack.Push(title, value)
}

// Confirm shows the pushed screens followed by Reject and Accept, and parks
// the command in the two continuations.
func (f *Flow) Confirm(accept, reject Continuation) error {
	if f.pending != nil {
		return ErrBusy
	}

	f.pending = &confirmation{accept: accept, reject: reject}
	f.steps = confirmSteps
	f.pos = 0
	f.mode = ModeStatic
	f.index = 0

	slog.Debug("Prompt", "Screens", f.stack.Len())

	return nil
}

// Prompt is Begin, Push for each entry, then Confirm. On overflow the idle
// screens are restored and nothing is left pending.
func (f *Flow) Prompt(entries []Entry, accept, reject Continuation) error {
	if err := f.Begin(); err != nil {
		return err
	}
	for _, e := range entries {
		if err := f.Push(e.Title, e.Value); err != nil {
			f.ShowIdle()
			return err
		}
	}
	return f.Confirm(accept, reject)
}

// ShowIdle returns to the idle screens. It leaves a pending confirmation
// alone.
func (f *Flow) ShowIdle() {
	f.stack.Clear()
	if f.idle != nil {
		if err := f.idle(&f.stack); err != nil {
			slog.Debug("Idle screens", "Error", err)
		}
	}
	f.steps = idleSteps
	f.pos = 0
	f.mode = ModeStatic
	f.index = 0
}

// Accept resolves the pending confirmation with the accept continuation.
func (f *Flow) Accept() ([]byte, error) {
	return f.resolve(true)
}

// Reject resolves the pending confirmation with the reject continuation.
func (f *Flow) Reject() ([]byte, error) {
	return f.resolve(false)
}

// resolve clears the pending slot and goes back to idle before running the
// continuation, so a continuation may prompt again.
func (f *Flow) resolve(accepted bool) ([]byte, error) {
	c := f.pending
	if c == nil {
		return nil, errNoPrompt
	}
	f.pending = nil
	f.ShowIdle()

	slog.Debug("Prompt resolved", "Accepted", accepted)

	if accepted {
		return c.accept()
	}
	return c.reject()
}

// advance applies a border event.
func (f *Flow) advance(ev Event) {
	n := f.stack.Len()
	if n == 0 {
		return
	}

	if f.mode == ModeStatic {
		f.mode = ModeDynamic
		if ev == EventLeft {
			f.index = 0
		} else {
			f.index = n - 1
		}
		f.renderEntry()
		return
	}

	switch ev {
	case EventLeft:
		if f.index == 0 {
			f.mode = ModeStatic
			f.pos, _ = f.neighbour(f.pos, -1)
			return
		}
		f.index--
	case EventRight:
		if f.index == n-1 {
			f.mode = ModeStatic
			f.pos, _ = f.neighbour(f.pos, +1)
			return
		}
		f.index++
	}
	f.renderEntry()
}

// PressRight moves one screen forward.
func (f *Flow) PressRight() {
	f.press(+1)
}

// PressLeft moves one screen backward.
func (f *Flow) PressLeft() {
	f.press(-1)
}

func (f *Flow) press(dir int) {
	if f.mode == ModeDynamic {
		if dir > 0 {
			f.advance(EventRight)
		} else {
			f.advance(EventLeft)
		}
		return
	}

	next, ok := f.neighbour(f.pos, dir)
	if !ok {
		return
	}

	if f.steps[next] == stepDynamic {
		if f.stack.IsEmpty() {
			if skip, ok := f.neighbour(next, dir); ok {
				f.pos = skip
			}
			return
		}
		f.pos = next
		if dir > 0 {
			f.advance(EventLeft)
		} else {
			f.advance(EventRight)
		}
		return
	}

	f.pos = next
}

// Select presses both buttons. On Accept or Reject it resolves the pending
// confirmation; on Quit it runs OnQuit. It returns nil when nothing resolved.
func (f *Flow) Select() *Resolution {
	if f.mode == ModeDynamic {
		return nil
	}

	switch f.steps[f.pos] {
	case stepAccept:
		data, err := f.Accept()
		return &Resolution{Data: data, Err: err}
	case stepReject:
		data, err := f.Reject()
		return &Resolution{Data: data, Err: err}
	case stepQuit:
		if f.OnQuit != nil {
			f.OnQuit()
		}
	}

	return nil
}

// neighbour returns the step next to from in direction dir. The idle flow
// loops, the confirm flow does not.
func (f *Flow) neighbour(from, dir int) (int, bool) {
	i := from + dir
	if i >= 0 && i < len(f.steps) {
		return i, true
	}
	if f.steps[0] != stepReady {
		return from, false
	}
	return (i + len(f.steps)) % len(f.steps), true
}

func (f *Flow) renderEntry() {
	e, ok := f.stack.At(f.index)
	if !ok {
		f.index = 0
		e, _ = f.stack.At(0)
	}

	copyTruncated(f.title[:], e.Title)

	text := ""
	if e.Value != nil && f.render != nil {
		var err error
		text, err = f.render(e.Value)
		if err != nil {
			slog.Debug("Render", "Title", e.Title, "Error", err)
			text = "?"
		}
	}
	copyTruncated(f.value[:], text)
}

// Screen returns the two lines currently on the display. Stack entries are
// rendered again so values read at render time are current.
func (f *Flow) Screen() (title, value string) {
	if f.mode == ModeDynamic {
		f.renderEntry()
		return cString(f.title[:]), cString(f.value[:])
	}

	switch f.steps[f.pos] {
	case stepReady:
		return "Application", "is ready"
	case stepQuit:
		return "Quit", ""
	case stepReview:
		return "Review", "Request"
	case stepReject:
		return "Reject", ""
	case stepAccept:
		return "Accept", ""
	}
	return "", ""
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
