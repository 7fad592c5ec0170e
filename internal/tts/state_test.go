package tts

import "testing"

func TestNewStateMachine_InitialStateIsUninitialized(t *testing.T) {
	sm := newStateMachine()
	if sm.Current() != StateUninitialized {
		t.Fatalf("expected initial state Uninitialized, got %s", sm.Current())
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to AdapterState
		want     bool
	}{
		{StateUninitialized, StateReady, true},
		{StateUninitialized, StateSynthesizing, false},
		{StateUninitialized, StateDisposed, true},
		{StateReady, StateReady, true},
		{StateReady, StateSynthesizing, true},
		{StateReady, StateDisposed, true},
		{StateSynthesizing, StateReady, true},
		{StateSynthesizing, StateSynthesizing, false},
		{StateSynthesizing, StateDisposed, true},
		{StateDisposed, StateReady, false},
		{StateDisposed, StateDisposed, false},
	}
	for _, tt := range tests {
		if got := validTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("validTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestAdapterState_String(t *testing.T) {
	if StateSynthesizing.String() != "Synthesizing" {
		t.Fatalf("unexpected name %q", StateSynthesizing.String())
	}
	if AdapterState(42).String() != "Unknown" {
		t.Fatalf("out-of-range state should be Unknown")
	}
}
