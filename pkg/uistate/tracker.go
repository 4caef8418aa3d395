// Package uistate tracks the idle/loading/success/error state of dashboard controls and panels.
package uistate

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const logPrefix = "uistate:tracker"

// DefaultRestoreDelay is how long a success or error label stays before the element returns to idle.
const DefaultRestoreDelay = 3 * time.Second

// State is an element's current phase.
type State int

const (
	Idle State = iota
	Loading
	Success
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrInvalidTransition is returned for unknown states and for control results that do not follow loading.
var ErrInvalidTransition = errors.New("uistate: invalid transition")

// View is the observable state of one element.
type View struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
	// Seq increases with every applied transition.
	Seq uint64 `json:"seq"`
}

type element struct {
	state       State
	label       string
	disabled    bool
	snapshot    string
	hasSnapshot bool
	seq         uint64
	// sticky elements (status panels) keep their result instead of returning to idle.
	sticky bool
}

// Tracker holds one state machine per element id. A delayed restore only applies if no
// other transition happened on that element in the meantime.
type Tracker struct {
	mu           sync.Mutex
	elements     map[string]*element
	restoreDelay time.Duration

	// OnChange is called after each applied transition, outside the lock.
	OnChange func(View)
}

// NewTracker creates a Tracker. A non-positive delay uses DefaultRestoreDelay.
func NewTracker(restoreDelay time.Duration) *Tracker {
	if restoreDelay <= 0 {
		restoreDelay = DefaultRestoreDelay
	}
	return &Tracker{
		elements:     make(map[string]*element),
		restoreDelay: restoreDelay,
	}
}

// Register declares a control with its idle label. Registering an existing id resets it.
func (t *Tracker) Register(id, label string) {
	t.mu.Lock()
	t.elements[id] = &element{state: Idle, label: label}
	t.mu.Unlock()
}

// RegisterPanel declares a status panel. Panels keep their last success or error markup.
func (t *Tracker) RegisterPanel(id, markup string) {
	t.mu.Lock()
	t.elements[id] = &element{state: Idle, label: markup, sticky: true}
	t.mu.Unlock()
}

// Transition moves element id to state with label.
//
// Loading disables the element and snapshots its label the first time. Success and Error
// set the label and, for controls, schedule a return to idle; a control only accepts them
// after Loading. Panels accept a result from any state so the latest result replaces the
// previous one. A panel given an empty loading label keeps its current markup. Idle
// restores the snapshot (or uses label when none was taken) and re-enables the element.
// Re-applying the current state and label changes nothing.
func (t *Tracker) Transition(id string, state State, label string) error {
	t.mu.Lock()
	el, ok := t.elements[id]
	if !ok {
		el = &element{state: Idle}
		t.elements[id] = el
	}

	if el.state == state && el.label == label {
		t.mu.Unlock()
		return nil
	}

	switch state {
	case Loading:
		if !el.hasSnapshot && !el.sticky {
			el.snapshot = el.label
			el.hasSnapshot = true
		}
		el.disabled = true
		if label != "" || !el.sticky {
			el.label = label
		}
	case Success, Error:
		if !el.sticky && el.state != Loading && el.state != state {
			t.mu.Unlock()
			return fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, el.state, state, id)
		}
		el.label = label
		if el.sticky {
			el.disabled = false
		}
	case Idle:
		t.restoreLocked(el, label)
	default:
		t.mu.Unlock()
		return fmt.Errorf("%w: unknown state %d", ErrInvalidTransition, int(state))
	}

	el.state = state
	el.seq++
	seq := el.seq
	restore := (state == Success || state == Error) && !el.sticky
	view := viewOf(id, el)
	t.mu.Unlock()

	if restore {
		time.AfterFunc(t.restoreDelay, func() { t.restoreIfCurrent(id, seq) })
	}
	t.notify(view)
	return nil
}

// restoreIfCurrent returns the element to idle unless it transitioned after seq.
func (t *Tracker) restoreIfCurrent(id string, seq uint64) {
	t.mu.Lock()
	el, ok := t.elements[id]
	if !ok || el.seq != seq {
		t.mu.Unlock()
		slog.Debug(fmt.Sprintf("%s - skipped stale restore for %s", logPrefix, id))
		return
	}
	t.restoreLocked(el, "")
	el.state = Idle
	el.seq++
	view := viewOf(id, el)
	t.mu.Unlock()

	t.notify(view)
}

func (t *Tracker) restoreLocked(el *element, fallback string) {
	if el.hasSnapshot {
		el.label = el.snapshot
	} else if fallback != "" {
		el.label = fallback
	}
	el.snapshot = ""
	el.hasSnapshot = false
	el.disabled = false
}

// View returns the state of element id.
func (t *Tracker) View(id string) (View, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.elements[id]
	if !ok {
		return View{}, false
	}
	return viewOf(id, el), true
}

// Views returns every element's state ordered by id.
func (t *Tracker) Views() []View {
	t.mu.Lock()
	out := make([]View, 0, len(t.elements))
	for id, el := range t.elements {
		out = append(out, viewOf(id, el))
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *Tracker) notify(v View) {
	if t.OnChange == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - OnChange panicked: %v", logPrefix, r))
		}
	}()
	t.OnChange(v)
}

func viewOf(id string, el *element) View {
	return View{
		ID:       id,
		State:    el.state.String(),
		Label:    el.label,
		Disabled: el.disabled,
		Seq:      el.seq,
	}
}
