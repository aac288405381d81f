package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventBegin)
	require.NoError(t, err)
	require.Equal(t, StateCapturing, next)

	next, err = Transition(next, EventCut)
	require.NoError(t, err)
	require.Equal(t, StateCutting, next)

	next, err = Transition(next, EventResume)
	require.NoError(t, err)
	require.Equal(t, StateCapturing, next)

	next, err = Transition(next, EventEnd)
	require.NoError(t, err)
	require.Equal(t, StateDraining, next)

	next, err = Transition(next, EventDrained)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionFailFromAnyStateGoesError(t *testing.T) {
	states := []State{StateIdle, StateCapturing, StateCutting, StateDraining, StateError}
	for _, state := range states {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateError, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle cut invalid", state: StateIdle, event: EventCut, want: StateIdle, wantErr: true},
		{name: "idle end invalid", state: StateIdle, event: EventEnd, want: StateIdle, wantErr: true},
		{name: "capturing begin invalid", state: StateCapturing, event: EventBegin, want: StateCapturing, wantErr: true},
		{name: "capturing drained invalid", state: StateCapturing, event: EventDrained, want: StateCapturing, wantErr: true},
		{name: "cutting end invalid", state: StateCutting, event: EventEnd, want: StateCutting, wantErr: true},
		{name: "cutting cut invalid", state: StateCutting, event: EventCut, want: StateCutting, wantErr: true},
		{name: "draining cut invalid", state: StateDraining, event: EventCut, want: StateDraining, wantErr: true},
		{name: "error begin invalid", state: StateError, event: EventBegin, want: StateError, wantErr: true},
		{name: "error reset valid", state: StateError, event: EventReset, want: StateIdle, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventBegin)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}

func TestActive(t *testing.T) {
	require.False(t, Active(StateIdle))
	require.True(t, Active(StateCapturing))
	require.True(t, Active(StateCutting))
	require.True(t, Active(StateDraining))
	require.False(t, Active(StateError))
}
