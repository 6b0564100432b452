package protocol

import (
	"reflect"
	"testing"
)

func TestTransitionHappyPath(t *testing.T) {
	state := Connecting

	next, effects, ok := Transition(state, EventHello)
	if !ok || next != Connecting {
		t.Fatalf("Hello: got (%v, %v, %v)", next, effects, ok)
	}
	if !reflect.DeepEqual(effects, []Effect{EffectStartHeartbeat, EffectEmitIdentify}) {
		t.Fatalf("unexpected effects: %v", effects)
	}
	state = next

	next, effects, ok = Transition(state, EventReady)
	if !ok || next != Connecting {
		t.Fatalf("Ready: got (%v, %v, %v)", next, effects, ok)
	}
	if !reflect.DeepEqual(effects, []Effect{EffectPerformIPDiscovery, EffectEmitSelectProtocol}) {
		t.Fatalf("unexpected effects: %v", effects)
	}
	state = next

	next, effects, ok = Transition(state, EventSessionDescription)
	if !ok || next != Connected {
		t.Fatalf("SessionDescription: got (%v, %v, %v)", next, effects, ok)
	}
	state = next

	if state != Connected {
		t.Fatalf("expected final state CONNECTED, got %v", state)
	}
}

func TestTransitionResumePath(t *testing.T) {
	next, effects, ok := Transition(Resuming, EventConnect)
	if !ok || next != Resuming {
		t.Fatalf("Connect: got (%v, %v, %v)", next, effects, ok)
	}
	if !reflect.DeepEqual(effects, []Effect{EffectEmitResume}) {
		t.Fatalf("unexpected effects: %v", effects)
	}

	next, _, ok = Transition(Resuming, EventResumed)
	if !ok || next != Connected {
		t.Fatalf("Resumed: got (%v, %v)", next, ok)
	}
}

func TestTransitionInvalid(t *testing.T) {
	if _, _, ok := Transition(Connected, EventHello); ok {
		t.Fatal("Hello should not be valid while CONNECTED")
	}
}

func TestTransitionServerMigration(t *testing.T) {
	_, effects, ok := Transition(Connected, EventServerMigration)
	if !ok {
		t.Fatal("server migration should be valid while CONNECTED")
	}
	if !reflect.DeepEqual(effects, []Effect{EffectAbortRetryAbrupt}) {
		t.Fatalf("unexpected effects: %v", effects)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		Connecting:   "CONNECTING",
		Resuming:     "RESUMING",
		Connected:    "CONNECTED",
		Disconnected: "DISCONNECTED",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
