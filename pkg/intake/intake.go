package intake

import (
	"errors"
	"sync"
)

// ErrLocked is returned when the candidate is changed during an upload
var ErrLocked = errors.New("the selected file cannot change while an upload is in progress")

// Guard reports whether an upload is in flight
type Guard interface {
	Busy() bool
}

// Intake holds the candidate file of one session. Both entry points, the
// picker (Select, SelectPath) and drag-and-drop (Drop), share Validate.
type Intake struct {
	mu       sync.Mutex
	guard    Guard
	current  *Candidate
	dragging bool
}

// New creates a new Intake. guard may be nil.
func New(guard Guard) *Intake {
	return &Intake{guard: guard}
}

// Select validates c and makes it the current candidate. On error the
// previous candidate stays selected.
func (in *Intake) Select(c Candidate) (Candidate, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.locked() {
		return Candidate{}, ErrLocked
	}
	if err := Validate(c); err != nil {
		return Candidate{}, err
	}

	in.current = &c
	return c, nil
}

// SelectPath selects the file at path
func (in *Intake) SelectPath(path string) (Candidate, error) {
	if in.Busy() {
		return Candidate{}, ErrLocked
	}
	c, err := FromPath(path)
	if err != nil {
		return Candidate{}, err
	}
	return in.Select(c)
}

// Drop selects the file named by dropped text
func (in *Intake) Drop(text string) (Candidate, error) {
	in.SetDragging(false)

	path, err := ParseDrop(text)
	if err != nil {
		return Candidate{}, err
	}
	return in.SelectPath(path)
}

// Reset clears the current candidate
func (in *Intake) Reset() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.locked() {
		return ErrLocked
	}
	in.current = nil
	in.dragging = false
	return nil
}

// Current returns the selected candidate
func (in *Intake) Current() (Candidate, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.current == nil {
		return Candidate{}, false
	}
	return *in.current, true
}

// SetDragging records whether something is being dragged over the drop
// area. It only drives highlighting.
func (in *Intake) SetDragging(dragging bool) {
	in.mu.Lock()
	in.dragging = dragging
	in.mu.Unlock()
}

// Dragging reports the hover state
func (in *Intake) Dragging() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.dragging
}

// Busy reports whether the guard holds the intake locked
func (in *Intake) Busy() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.locked()
}

func (in *Intake) locked() bool {
	return in.guard != nil && in.guard.Busy()
}
