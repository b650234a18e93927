package engine

import (
	"encoding/binary"

	"github.com/oisee/ax/pkg/decode"
	"github.com/oisee/ax/pkg/isa"
	"github.com/oisee/ax/pkg/machine"
)

func init() {
	register(isa.Nop, noop)
	register(isa.Cld, noop)
	register(isa.Endbr64, noop)
	register(isa.Int1, noop)
	register(isa.Int3, noop)
	register(isa.Int, noop)

	register(isa.Cpuid, cpuidHandler)
	register(isa.Cdq, cdqHandler)
	register(isa.Cdqe, cdqeHandler)
	register(isa.Cqo, cqoHandler)
	register(isa.Cwd, cwdHandler)

	// Syscall has no builtin effect: a host registers before-hooks on
	// isa.Syscall (see pkg/syscalls) that read the ABI registers, perform
	// the call, and write RAX directly. This mirrors the handle_syscalls
	// pattern the emulator this was modeled on uses for every syscall.
	register(isa.Syscall, noop)
}

func noop(e *Engine, inst decode.Instruction) error { return nil }

// cpuidHandler returns a minimal, fixed CPUID response: leaf 0 reports a
// vendor string and max supported leaf 1; every other leaf zeroes its
// output registers. No real feature bits are modeled (spec.md §9).
func cpuidHandler(e *Engine, inst decode.Instruction) error {
	leaf := e.State.Reg32(machine.RAX)
	if leaf == 0 {
		e.State.SetReg32(machine.RAX, 1)
		vendor := [12]byte{}
		copy(vendor[:], "AxEmulation!")
		e.State.SetReg32(machine.RBX, binary.LittleEndian.Uint32(vendor[0:4]))
		e.State.SetReg32(machine.RDX, binary.LittleEndian.Uint32(vendor[4:8]))
		e.State.SetReg32(machine.RCX, binary.LittleEndian.Uint32(vendor[8:12]))
		return nil
	}
	e.State.SetReg32(machine.RAX, 0)
	e.State.SetReg32(machine.RBX, 0)
	e.State.SetReg32(machine.RCX, 0)
	e.State.SetReg32(machine.RDX, 0)
	return nil
}

func cdqHandler(e *Engine, inst decode.Instruction) error {
	eax := int32(e.State.Reg32(machine.RAX))
	if eax < 0 {
		e.State.SetReg32(machine.RDX, 0xFFFFFFFF)
	} else {
		e.State.SetReg32(machine.RDX, 0)
	}
	return nil
}

func cdqeHandler(e *Engine, inst decode.Instruction) error {
	eax := int32(e.State.Reg32(machine.RAX))
	e.State.SetReg64(machine.RAX, uint64(int64(eax)))
	return nil
}

func cqoHandler(e *Engine, inst decode.Instruction) error {
	rax := int64(e.State.Reg64(machine.RAX))
	if rax < 0 {
		e.State.SetReg64(machine.RDX, ^uint64(0))
	} else {
		e.State.SetReg64(machine.RDX, 0)
	}
	return nil
}

func cwdHandler(e *Engine, inst decode.Instruction) error {
	ax := int16(e.State.Reg16(machine.RAX))
	if ax < 0 {
		e.State.SetReg16(machine.RDX, 0xFFFF)
	} else {
		e.State.SetReg16(machine.RDX, 0)
	}
	return nil
}
