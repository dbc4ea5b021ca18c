package pipeline

import "fmt"

// Mode selects how approval gates behave.
type Mode string

const (
	// ModeAuto completes approval sub-steps immediately, with no suspension.
	ModeAuto Mode = "auto"
	// ModeManual suspends at approval sub-steps until an explicit action.
	ModeManual Mode = "manual"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeAuto || m == ModeManual
}

// subStep is one of the five ordered sub-steps an agent passes through.
type subStep int

const (
	subPromptDraft subStep = iota
	subPromptOK
	subGenerating
	subResponseDraft
	subResponseOK

	numSubSteps
)

var subStepNames = [numSubSteps]string{
	"promptDraft",
	"promptOk",
	"generating",
	"responseDraft",
	"responseOk",
}

func (s subStep) String() string {
	if s < 0 || s >= numSubSteps {
		return fmt.Sprintf("subStep(%d)", int(s))
	}
	return subStepNames[s]
}

// stepState is the per-agent fine-grained bookkeeping behind the coarse,
// externally observable phase. A sub-step must be enabled before it may be
// marked done; enabling happens in order, one step at a time, which is what
// lets mode gating suspend progression at the approval steps.
type stepState struct {
	enabled  [numSubSteps]bool
	done     [numSubSteps]bool
	complete bool
}

func newStepState() *stepState {
	st := &stepState{}
	st.enabled[subPromptDraft] = true
	return st
}

// reset returns the state to all-disabled except the first sub-step.
func (st *stepState) reset() {
	*st = stepState{}
	st.enabled[subPromptDraft] = true
}

// markDone completes a sub-step and enables its successor. It fails when
// the sub-step is not enabled or its predecessor is not done.
func (st *stepState) markDone(s subStep) error {
	if !st.enabled[s] {
		return fmt.Errorf("sub-step %s is not enabled", s)
	}
	if st.done[s] {
		return fmt.Errorf("sub-step %s is already done", s)
	}
	st.done[s] = true
	if s+1 < numSubSteps {
		st.enabled[s+1] = true
	}
	return nil
}

// nextPending returns the first enabled, not-yet-done sub-step.
func (st *stepState) nextPending() (subStep, bool) {
	for s := subPromptDraft; s < numSubSteps; s++ {
		if st.enabled[s] && !st.done[s] {
			return s, true
		}
	}
	return 0, false
}

// finish sets the overall complete flag. All five sub-steps must be done.
func (st *stepState) finish() error {
	for s := subPromptDraft; s < numSubSteps; s++ {
		if !st.done[s] {
			return fmt.Errorf("cannot complete agent: sub-step %s pending", s)
		}
	}
	st.complete = true
	return nil
}
