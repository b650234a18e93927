package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/oisee/ax/pkg/isa"
	"github.com/oisee/ax/pkg/machine"
	"github.com/oisee/ax/pkg/syscalls"
)

// newProgram wraps raw machine code in an Engine with RSP set up, the way a
// raw-code (non-ELF) caller per spec.md §6's "new(code, code_start,
// initial_rip)" constructor would.
func newProgram(t *testing.T, code []byte) *Engine {
	t.Helper()
	s := machine.New(code, 0x401000, 0x401000)
	if err := s.Memory().InitZero(0x7000, 0x1000, "stack"); err != nil {
		t.Fatalf("InitZero: %v", err)
	}
	s.InitStack(0x7800)
	return New(s)
}

func TestStepOrdersBeforeSemanticsAfter(t *testing.T) {
	// nop
	e := newProgram(t, []byte{0x90})
	var order []string
	e.State.HookBefore(isa.Nop, func(*machine.State, isa.Mnemonic) (machine.HookResult, error) {
		order = append(order, "b1")
		return machine.Unhandled, nil
	})
	e.State.HookBefore(isa.Nop, func(*machine.State, isa.Mnemonic) (machine.HookResult, error) {
		order = append(order, "b2")
		return machine.Unhandled, nil
	})
	e.State.HookAfter(isa.Nop, func(*machine.State, isa.Mnemonic) (machine.HookResult, error) {
		order = append(order, "a1")
		return machine.Unhandled, nil
	})
	e.State.HookAfter(isa.Nop, func(*machine.State, isa.Mnemonic) (machine.HookResult, error) {
		order = append(order, "a2")
		return machine.Unhandled, nil
	})

	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	want := []string{"b1", "b2", "a1", "a2"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
	if e.State.ExecutedInstructions() != 1 {
		t.Errorf("ExecutedInstructions = %d, want 1", e.State.ExecutedInstructions())
	}
}

func TestStopInBeforeHookSkipsSemanticsAndCounter(t *testing.T) {
	// inc eax (FF C0); a stopped step must neither bump eax nor run after-hooks.
	e := newProgram(t, []byte{0xFF, 0xC0})
	afterRan := false
	e.State.HookBefore(isa.Inc, func(st *machine.State, _ isa.Mnemonic) (machine.HookResult, error) {
		st.Stop()
		return machine.Handled, nil
	})
	e.State.HookAfter(isa.Inc, func(*machine.State, isa.Mnemonic) (machine.HookResult, error) {
		afterRan = true
		return machine.Unhandled, nil
	})

	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !e.State.Finished() {
		t.Error("Finished() should be true after a before-hook calls Stop()")
	}
	if afterRan {
		t.Error("after-hooks must not run once a before-hook has stopped the engine")
	}
	if e.State.ExecutedInstructions() != 0 {
		t.Errorf("ExecutedInstructions = %d, want 0 (stopped instruction never executes)", e.State.ExecutedInstructions())
	}
	if e.State.Reg32(machine.RAX) != 0 {
		t.Errorf("RAX = %d, want 0 (INC must not have run)", e.State.Reg32(machine.RAX))
	}
}

func TestHandledBeforeHookStillRunsSemantics(t *testing.T) {
	// inc eax, with a before-hook that reports Handled but does not Stop().
	e := newProgram(t, []byte{0xFF, 0xC0})
	e.State.HookBefore(isa.Inc, func(*machine.State, isa.Mnemonic) (machine.HookResult, error) {
		return machine.Handled, nil
	})

	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if e.State.Reg32(machine.RAX) != 1 {
		t.Errorf("RAX = %d, want 1 (a Handled-but-not-stopped before-hook still lets semantics run)", e.State.Reg32(machine.RAX))
	}
}

func TestRetOffCodeRegionSignalsNaturalFinish(t *testing.T) {
	// ret
	e := newProgram(t, []byte{0xC3})
	// Seed a return address that lies outside the code region entirely.
	sp := e.State.Reg64(machine.RSP) - 8
	if err := e.State.Memory().Write64(sp, 0x9999999); err != nil {
		t.Fatalf("Write64: %v", err)
	}
	e.State.SetReg64(machine.RSP, sp)

	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !e.State.Finished() {
		t.Error("a RET landing outside the code region must be natural finish, not an error")
	}
}

func TestExecuteStopsAtEndOfCodeRegion(t *testing.T) {
	// nop; nop — running off the end of a 2-byte code region.
	e := newProgram(t, []byte{0x90, 0x90})
	if err := e.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !e.State.Finished() {
		t.Error("Execute should finish once RIP walks off the end of the code region")
	}
	if e.State.ExecutedInstructions() != 2 {
		t.Errorf("ExecutedInstructions = %d, want 2", e.State.ExecutedInstructions())
	}
}

func TestEndToEndHelloWorldStyleWriteAndExit(t *testing.T) {
	// mov rax, 1  ; sys_write
	// syscall
	// mov rax, 60 ; sys_exit
	// syscall
	code := []byte{
		0x48, 0xC7, 0xC0, 0x01, 0x00, 0x00, 0x00,
		0x0F, 0x05,
		0x48, 0xC7, 0xC0, 0x3C, 0x00, 0x00, 0x00,
		0x0F, 0x05,
	}
	e := newProgram(t, code)

	const msgAddr = 0x402000
	if err := e.State.Memory().InitZero(msgAddr, 0x100, "rodata"); err != nil {
		t.Fatalf("InitZero: %v", err)
	}
	msg := []byte("Hello, World!\n")
	if err := e.State.Memory().WriteBytes(msgAddr, msg); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	e.State.SetReg64(machine.RDI, 1)
	e.State.SetReg64(machine.RSI, msgAddr)
	e.State.SetReg64(machine.RDX, uint64(len(msg)))

	var stdout bytes.Buffer
	if err := syscalls.RegisterWithSink(e.State, []syscalls.Syscall{syscalls.Write, syscalls.Exit}, &stdout, nil); err != nil {
		t.Fatalf("RegisterWithSink: %v", err)
	}

	if err := e.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !e.State.Finished() {
		t.Error("Execute should finish once sys_exit calls Stop()")
	}
	if got := stdout.String(); got != "Hello, World!\n" {
		t.Errorf("captured stdout = %q, want %q", got, "Hello, World!\n")
	}
}
