package engine

import (
	"testing"

	"github.com/oisee/ax/pkg/decode"
	"github.com/oisee/ax/pkg/isa"
	"github.com/oisee/ax/pkg/machine"
)

func xmmArg(n uint8) decode.Arg {
	return decode.Arg{Kind: decode.KindXMM, XMM: n}
}

func TestMovCopiesWithoutTouchingFlags(t *testing.T) {
	e := newTestEngine()
	e.State.SetRFLAGS(machine.FlagZF)
	e.State.SetReg32(machine.RBX, 0x1234)

	inst := decode.Instruction{Mnemonic: isa.Mov, Width: 32, Args: []decode.Arg{regArg(0, 32), regArg(3, 32)}}
	if err := dispatch[isa.Mov](e, inst); err != nil {
		t.Fatalf("mov handler: %v", err)
	}
	if got := e.State.Reg32(machine.RAX); got != 0x1234 {
		t.Errorf("RAX = %#x, want 0x1234", got)
	}
	if !e.State.ZF() {
		t.Error("MOV must not touch RFLAGS")
	}
}

func TestLeaWritesAddressNotMemory(t *testing.T) {
	e := newTestEngine()
	if err := e.State.Memory().InitZero(0x3000, 0x10, "mem"); err != nil {
		t.Fatalf("InitZero: %v", err)
	}
	if err := e.State.Memory().Write32(0x3008, 0xFFFFFFFF); err != nil {
		t.Fatalf("Write32: %v", err)
	}
	e.State.SetReg64(machine.RBX, 0x3000)

	inst := decode.Instruction{
		Mnemonic: isa.Lea,
		Width:    64,
		Args: []decode.Arg{
			regArg(0, 64),
			{Kind: decode.KindMem, Mem: decode.MemOperand{HasBase: true, Base: decode.Reg{ID: 3, Width: 64}, Disp: 8}},
		},
	}
	if err := dispatch[isa.Lea](e, inst); err != nil {
		t.Fatalf("lea handler: %v", err)
	}
	if got := e.State.Reg64(machine.RAX); got != 0x3008 {
		t.Errorf("RAX = %#x, want 0x3008 (the address, not *0x3008)", got)
	}
}

func TestMovzxZeroExtends(t *testing.T) {
	e := newTestEngine()
	e.State.SetReg8(machine.RBX, 0xFF)

	inst := decode.Instruction{
		Mnemonic: isa.Movzx,
		Args:     []decode.Arg{regArg(0, 32), regArg(3, 8)},
	}
	if err := dispatch[isa.Movzx](e, inst); err != nil {
		t.Fatalf("movzx handler: %v", err)
	}
	if got := e.State.Reg32(machine.RAX); got != 0xFF {
		t.Errorf("RAX = %#x, want 0xFF (zero-extended, not sign-extended)", got)
	}
}

func TestMovsxdSignExtends(t *testing.T) {
	e := newTestEngine()
	e.State.SetReg32(machine.RBX, 0xFFFFFFFF) // -1 as int32

	inst := decode.Instruction{
		Mnemonic: isa.Movsxd,
		Args:     []decode.Arg{regArg(0, 64), regArg(3, 32)},
	}
	if err := dispatch[isa.Movsxd](e, inst); err != nil {
		t.Fatalf("movsxd handler: %v", err)
	}
	if got := e.State.Reg64(machine.RAX); got != 0xFFFFFFFFFFFFFFFF {
		t.Errorf("RAX = %#x, want all-ones (sign-extended -1)", got)
	}
}

func TestMovupsRoundTripsXMM(t *testing.T) {
	e := newTestEngine()
	e.State.SetXMM(1, 0xAAAAAAAAAAAAAAAA, 0xBBBBBBBBBBBBBBBB)

	inst := decode.Instruction{Mnemonic: isa.Movups, Args: []decode.Arg{xmmArg(0), xmmArg(1)}}
	if err := dispatch[isa.Movups](e, inst); err != nil {
		t.Fatalf("movups handler: %v", err)
	}
	lo, hi := e.State.XMM(0)
	if lo != 0xAAAAAAAAAAAAAAAA || hi != 0xBBBBBBBBBBBBBBBB {
		t.Errorf("XMM(0) = (%#x, %#x), want the copied source lanes", lo, hi)
	}
}

func TestXorpsSelfZeroes(t *testing.T) {
	e := newTestEngine()
	e.State.SetRFLAGS(machine.FlagZF)
	e.State.SetXMM(0, 0x1234, 0x5678)

	inst := decode.Instruction{Mnemonic: isa.Xorps, Args: []decode.Arg{xmmArg(0), xmmArg(0)}}
	if err := dispatch[isa.Xorps](e, inst); err != nil {
		t.Fatalf("xorps handler: %v", err)
	}
	lo, hi := e.State.XMM(0)
	if lo != 0 || hi != 0 {
		t.Errorf("XMM(0) = (%#x, %#x), want (0, 0)", lo, hi)
	}
	if !e.State.ZF() {
		t.Error("XORPS must not touch RFLAGS")
	}
}

func TestCmovOnlyMovesWhenConditionHolds(t *testing.T) {
	e := newTestEngine()
	e.State.SetReg32(machine.RAX, 1)
	e.State.SetReg32(machine.RBX, 2)
	e.State.SetRFLAGS(0) // ZF clear

	inst := decode.Instruction{Mnemonic: isa.Cmove, Width: 32, Args: []decode.Arg{regArg(0, 32), regArg(3, 32)}}
	if err := dispatch[isa.Cmove](e, inst); err != nil {
		t.Fatalf("cmove handler: %v", err)
	}
	if got := e.State.Reg32(machine.RAX); got != 1 {
		t.Errorf("CMOVE with ZF clear should not move, RAX = %d, want 1", got)
	}

	e.State.SetRFLAGS(machine.FlagZF)
	if err := dispatch[isa.Cmove](e, inst); err != nil {
		t.Fatalf("cmove handler: %v", err)
	}
	if got := e.State.Reg32(machine.RAX); got != 2 {
		t.Errorf("CMOVE with ZF set should move, RAX = %d, want 2", got)
	}
}

func TestSetccWritesByte(t *testing.T) {
	e := newTestEngine()
	e.State.SetRFLAGS(machine.FlagZF)

	inst := decode.Instruction{Mnemonic: isa.Sete, Args: []decode.Arg{regArg(0, 8)}}
	if err := dispatch[isa.Sete](e, inst); err != nil {
		t.Fatalf("sete handler: %v", err)
	}
	if got := e.State.Reg8(machine.RAX); got != 1 {
		t.Errorf("SETE with ZF set should write 1, got %d", got)
	}

	e.State.SetRFLAGS(0)
	if err := dispatch[isa.Sete](e, inst); err != nil {
		t.Fatalf("sete handler: %v", err)
	}
	if got := e.State.Reg8(machine.RAX); got != 0 {
		t.Errorf("SETE with ZF clear should write 0, got %d", got)
	}
}
