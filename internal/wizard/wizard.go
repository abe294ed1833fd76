// Package wizard implements the multi-step form engine behind the signup
// flows: a form state store, per-step validators, and a cursor sequencer
// that only advances past a step once it validates.
package wizard

import "fmt"

// Validator inspects the form state for one step and returns user-facing
// problem messages; an empty result means the step is valid. Validators are
// purely local and perform no network calls.
type Validator func(form *FormState) []string

// Step is one entry in a wizard's ordered step list.
type Step struct {
	Title       string
	Description string
	Validate    Validator
}

// Wizard sequences a fixed list of steps over a form state. The cursor
// invariant 0 <= cursor < len(steps) holds at all times.
type Wizard struct {
	steps      []Step
	form       *FormState
	cursor     int
	maxVisited int
}

// New creates a wizard over the given steps with an empty form.
func New(steps []Step) *Wizard {
	if len(steps) == 0 {
		panic("wizard: at least one step is required")
	}
	return &Wizard{steps: steps, form: NewFormState()}
}

// Form returns the wizard's form state store.
func (w *Wizard) Form() *FormState { return w.form }

// Steps returns the step definitions.
func (w *Wizard) Steps() []Step { return w.steps }

// Cursor returns the active step index.
func (w *Wizard) Cursor() int { return w.cursor }

// Current returns the active step.
func (w *Wizard) Current() Step { return w.steps[w.cursor] }

// AtEnd reports whether the cursor is on the final step.
func (w *Wizard) AtEnd() bool { return w.cursor == len(w.steps)-1 }

// Validate runs the validator for the given step index against the form.
func (w *Wizard) Validate(index int) (bool, []string) {
	if index < 0 || index >= len(w.steps) {
		return false, []string{fmt.Sprintf("step index %d out of range", index)}
	}
	step := w.steps[index]
	if step.Validate == nil {
		return true, nil
	}
	problems := step.Validate(w.form)
	return len(problems) == 0, problems
}

// Next advances the cursor when the current step validates, clamping at the
// last index. Validation failure leaves the cursor untouched and returns
// the problems for display.
func (w *Wizard) Next() (bool, []string) {
	ok, problems := w.Validate(w.cursor)
	if !ok {
		return false, problems
	}
	if w.cursor < len(w.steps)-1 {
		w.cursor++
		if w.cursor > w.maxVisited {
			w.maxVisited = w.cursor
		}
	}
	return true, nil
}

// Previous retreats the cursor, clamping at 0. Going back never validates.
func (w *Wizard) Previous() {
	if w.cursor > 0 {
		w.cursor--
	}
}

// Rewind moves the cursor to an already-visited step, mirroring a click on
// a completed step tag. Rewinding never validates; jumping ahead of the
// furthest visited step is rejected.
func (w *Wizard) Rewind(index int) error {
	if index < 0 || index >= len(w.steps) {
		return fmt.Errorf("wizard: step index %d out of range", index)
	}
	if index > w.maxVisited {
		return fmt.Errorf("wizard: cannot skip ahead to unvisited step %d", index)
	}
	w.cursor = index
	return nil
}
