package machine

import (
	"errors"
	"testing"

	"github.com/oisee/ax/pkg/isa"
)

func TestHookBeforeShortCircuitsOnHandled(t *testing.T) {
	s := Empty()
	var calls []int

	s.HookBefore(isa.Mov, func(*State, isa.Mnemonic) (HookResult, error) {
		calls = append(calls, 1)
		return Handled, nil
	})
	s.HookBefore(isa.Mov, func(*State, isa.Mnemonic) (HookResult, error) {
		calls = append(calls, 2)
		return Unhandled, nil
	})

	if err := s.RunBefore(isa.Mov); err != nil {
		t.Fatalf("RunBefore: %v", err)
	}
	if len(calls) != 1 || calls[0] != 1 {
		t.Errorf("calls = %v, want [1] (second callback should be short-circuited)", calls)
	}
}

func TestHookCallbackErrorWraps(t *testing.T) {
	s := Empty()
	want := errors.New("boom")
	s.HookBefore(isa.Add, func(*State, isa.Mnemonic) (HookResult, error) {
		return Unhandled, want
	})

	err := s.RunBefore(isa.Add)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, want) {
		t.Errorf("expected the wrapped error to unwrap to %v, got %v", want, err)
	}
}

func TestRegistryBusyDuringHookExecution(t *testing.T) {
	s := Empty()
	s.HookBefore(isa.Add, func(st *State, _ isa.Mnemonic) (HookResult, error) {
		if !st.Hooks().Running() {
			t.Error("Running() should report true while a hook executes")
		}
		if err := st.Hooks().Before(isa.Sub, func(*State, isa.Mnemonic) (HookResult, error) {
			return Unhandled, nil
		}); err == nil || err.Kind != KindHookRegistryBusy {
			t.Errorf("registering a hook mid-run should fail with KindHookRegistryBusy, got %v", err)
		}
		return Unhandled, nil
	})

	if err := s.RunBefore(isa.Add); err != nil {
		t.Fatalf("RunBefore: %v", err)
	}
	if s.Hooks().Running() {
		t.Error("Running() should be false again after the hook list finishes")
	}
}

func TestStopSetsFinished(t *testing.T) {
	s := Empty()
	if s.Finished() {
		t.Fatal("a fresh State should not be finished")
	}
	s.Stop()
	if !s.Finished() {
		t.Error("Stop() should set Finished()")
	}
}

func TestRunBeforeWithNoHooksIsNoop(t *testing.T) {
	s := Empty()
	if err := s.RunBefore(isa.Nop); err != nil {
		t.Errorf("RunBefore with no registered hooks should return nil, got %v", err)
	}
}
