package engine

import (
	"github.com/oisee/ax/pkg/decode"
	"github.com/oisee/ax/pkg/isa"
	"github.com/oisee/ax/pkg/machine"
)

func init() {
	register(isa.Mov, movHandler)
	register(isa.Lea, leaHandler)
	register(isa.Movzx, movzxHandler)
	register(isa.Movsxd, movsxdHandler)
	register(isa.Movups, movupsHandler)
	register(isa.Xorps, xorpsHandler)

	register(isa.Cmovae, cmovHandler)
	register(isa.Cmove, cmovHandler)
	register(isa.Cmovne, cmovHandler)

	register(isa.Setb, setccHandler)
	register(isa.Sete, setccHandler)
	register(isa.Setne, setccHandler)
}

func movHandler(e *Engine, inst decode.Instruction) error {
	v, err := e.readOperand(inst.Args[1], inst.Width)
	if err != nil {
		return err
	}
	return e.writeOperand(inst.Args[0], inst.Width, v)
}

// leaHandler writes the computed effective address itself, not the memory
// it points to (spec.md §4.3).
func leaHandler(e *Engine, inst decode.Instruction) error {
	mem := inst.Args[1].Mem
	addr := e.effectiveAddress(mem)
	return e.writeOperand(inst.Args[0], inst.Width, addr)
}

// movzxHandler zero-extends a narrower source into a wider destination. The
// destination register's own width (inst.Args[0]) is the write width; the
// source's width (inst.Args[1]) is the read width.
func movzxHandler(e *Engine, inst decode.Instruction) error {
	srcWidth := 8
	if inst.Args[1].Kind == decode.KindReg {
		srcWidth = inst.Args[1].Reg.Width
	}
	dstWidth := inst.Args[0].Reg.Width

	v, err := e.readOperand(inst.Args[1], srcWidth)
	if err != nil {
		return err
	}
	return e.writeOperand(inst.Args[0], dstWidth, v)
}

// movsxdHandler sign-extends a 32-bit source into a 64-bit destination
// (spec.md §4.3's "MOVSXD always widens 32->64").
func movsxdHandler(e *Engine, inst decode.Instruction) error {
	v, err := e.readOperand(inst.Args[1], 32)
	if err != nil {
		return err
	}
	signExtended := uint64(int64(int32(v)))
	return e.writeOperand(inst.Args[0], 64, signExtended)
}

// movupsHandler moves 128 bits unaligned between an XMM register and
// register-or-memory, never touching RFLAGS.
func movupsHandler(e *Engine, inst decode.Instruction) error {
	dst, src := inst.Args[0], inst.Args[1]

	lo, hi, err := e.readXMMOperand(src)
	if err != nil {
		return err
	}
	return e.writeXMMOperand(dst, lo, hi)
}

// xorpsHandler XORs two XMM registers lane-wise; like MOVUPS it never
// touches RFLAGS (those bits are a GPR-only concept architecturally, per
// spec.md §4.3's note that SSE instructions here are included only for
// their register-move/bitwise behavior, not full SIMD semantics).
func xorpsHandler(e *Engine, inst decode.Instruction) error {
	dst, src := inst.Args[0], inst.Args[1]

	dlo, dhi, err := e.readXMMOperand(dst)
	if err != nil {
		return err
	}
	slo, shi, err := e.readXMMOperand(src)
	if err != nil {
		return err
	}
	return e.writeXMMOperand(dst, dlo^slo, dhi^shi)
}

func (e *Engine) readXMMOperand(arg decode.Arg) (lo, hi uint64, err *machine.Error) {
	switch arg.Kind {
	case decode.KindXMM:
		lo, hi = e.State.XMM(arg.XMM)
		return lo, hi, nil
	case decode.KindMem:
		addr := e.effectiveAddress(arg.Mem)
		lo, err = e.State.Memory().Read64(addr)
		if err != nil {
			return 0, 0, err
		}
		hi, err = e.State.Memory().Read64(addr + 8)
		return lo, hi, err
	default:
		return 0, 0, machine.Newf(machine.KindInvalidInstruction, "unreadable xmm operand kind %d", arg.Kind)
	}
}

func (e *Engine) writeXMMOperand(arg decode.Arg, lo, hi uint64) *machine.Error {
	switch arg.Kind {
	case decode.KindXMM:
		e.State.SetXMM(arg.XMM, lo, hi)
		return nil
	case decode.KindMem:
		addr := e.effectiveAddress(arg.Mem)
		if err := e.State.Memory().Write64(addr, lo); err != nil {
			return err
		}
		return e.State.Memory().Write64(addr+8, hi)
	default:
		return machine.Newf(machine.KindInvalidInstruction, "unwritable xmm operand kind %d", arg.Kind)
	}
}

// cmovHandler moves src into dst only when the mnemonic's condition holds;
// RFLAGS is never touched either way (spec.md §4.5: CMOVcc derives from, but
// never writes, flags).
func cmovHandler(e *Engine, inst decode.Instruction) error {
	taken, _ := isa.Predicate(inst.Mnemonic, e.conditionFlags())
	if !taken {
		return nil
	}
	v, err := e.readOperand(inst.Args[1], inst.Width)
	if err != nil {
		return err
	}
	return e.writeOperand(inst.Args[0], inst.Width, v)
}

// setccHandler writes 1 or 0 into an 8-bit destination depending on the
// mnemonic's condition (spec.md §4.5).
func setccHandler(e *Engine, inst decode.Instruction) error {
	taken, _ := isa.Predicate(inst.Mnemonic, e.conditionFlags())
	v := uint64(0)
	if taken {
		v = 1
	}
	return e.writeOperand(inst.Args[0], 8, v)
}

// conditionFlags builds the isa.Flags view of this engine's current RFLAGS.
func (e *Engine) conditionFlags() isa.Flags {
	return isa.Flags{
		CF: e.State.CF(),
		ZF: e.State.ZF(),
		SF: e.State.SF(),
		OF: e.State.OF(),
	}
}
