package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepState_OrderedProgression(t *testing.T) {
	st := newStepState()

	next, ok := st.nextPending()
	require.True(t, ok)
	assert.Equal(t, subPromptDraft, next)

	// Later sub-steps are gated until their predecessor is done.
	assert.Error(t, st.markDone(subGenerating))
	assert.Error(t, st.markDone(subResponseOK))

	for s := subPromptDraft; s < numSubSteps; s++ {
		require.NoError(t, st.markDone(s))
	}
	_, ok = st.nextPending()
	assert.False(t, ok)

	require.NoError(t, st.finish())
	assert.True(t, st.complete)
}

func TestStepState_DoubleCompleteRejected(t *testing.T) {
	st := newStepState()
	require.NoError(t, st.markDone(subPromptDraft))
	assert.Error(t, st.markDone(subPromptDraft))
}

func TestStepState_FinishRequiresAllSubSteps(t *testing.T) {
	st := newStepState()
	require.NoError(t, st.markDone(subPromptDraft))
	assert.Error(t, st.finish())
	assert.False(t, st.complete)
}

func TestStepState_Reset(t *testing.T) {
	st := newStepState()
	require.NoError(t, st.markDone(subPromptDraft))
	require.NoError(t, st.markDone(subPromptOK))

	st.reset()
	assert.False(t, st.done[subPromptDraft])
	assert.False(t, st.enabled[subPromptOK])
	next, ok := st.nextPending()
	require.True(t, ok)
	assert.Equal(t, subPromptDraft, next)
}

func TestMode_Valid(t *testing.T) {
	assert.True(t, ModeAuto.Valid())
	assert.True(t, ModeManual.Valid())
	assert.False(t, Mode("turbo").Valid())
}
