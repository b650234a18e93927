package syscalls

import (
	"testing"

	"github.com/oisee/ax/pkg/isa"
	"github.com/oisee/ax/pkg/machine"
)

func TestRegisterDispatchesByRAX(t *testing.T) {
	s := machine.Empty()
	if err := Register(s, []Syscall{Getuid}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.SetReg64(machine.RAX, linuxNumber(Getuid))

	if err := s.RunBefore(isa.Syscall); err != nil {
		t.Fatalf("RunBefore: %v", err)
	}
	if got := s.Reg64(machine.RAX); got != 0 {
		t.Errorf("Getuid should report uid 0, got %d", got)
	}
}

func TestUnregisteredSyscallErrors(t *testing.T) {
	s := machine.Empty()
	if err := Register(s, []Syscall{Getuid}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.SetReg64(machine.RAX, linuxNumber(Exit))

	err := s.RunBefore(isa.Syscall)
	if err == nil {
		t.Fatal("expected an error for a syscall not in the enabled set")
	}
}

func TestExitStopsTheEngine(t *testing.T) {
	s := machine.Empty()
	if err := Register(s, []Syscall{Exit}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.SetReg64(machine.RAX, linuxNumber(Exit))
	s.SetReg64(machine.RDI, 7)

	if err := s.RunBefore(isa.Syscall); err != nil {
		t.Fatalf("RunBefore: %v", err)
	}
	if !s.Finished() {
		t.Error("Exit syscall should mark the machine Finished")
	}
}

func TestBrkTracksProgramBreak(t *testing.T) {
	s := machine.Empty()
	if err := Register(s, []Syscall{Brk}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.SetReg64(machine.RAX, linuxNumber(Brk))
	s.SetReg64(machine.RDI, 0x500000)

	if err := s.RunBefore(isa.Syscall); err != nil {
		t.Fatalf("RunBefore: %v", err)
	}
	if got := s.Reg64(machine.RAX); got != 0x500000 {
		t.Errorf("Brk(0x500000) should set the break and return it, got %#x", got)
	}

	s.SetReg64(machine.RAX, linuxNumber(Brk)) // RAX now holds the previous result
	s.SetReg64(machine.RDI, 0)                // query current break
	if err := s.RunBefore(isa.Syscall); err != nil {
		t.Fatalf("RunBefore: %v", err)
	}
	if got := s.Reg64(machine.RAX); got != 0x500000 {
		t.Errorf("Brk(0) should report the previously set break, got %#x", got)
	}
}

func TestWriteRejectsInvalidFD(t *testing.T) {
	s := machine.Empty()
	if err := Register(s, []Syscall{Write}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.SetReg64(machine.RAX, linuxNumber(Write))
	s.SetReg64(machine.RDI, 99) // not stdin/stdout/stderr
	s.SetReg64(machine.RSI, 0)
	s.SetReg64(machine.RDX, 0)

	if err := s.RunBefore(isa.Syscall); err == nil {
		t.Fatal("expected an error writing to an unsupported file descriptor")
	}
}
