package engine

import (
	"github.com/oisee/ax/pkg/decode"
	"github.com/oisee/ax/pkg/machine"
)

// effectiveAddress computes [base + index*scale + disp], plus the fs:/gs:
// segment base when the memory operand carries one (spec.md §4.4).
func (e *Engine) effectiveAddress(m decode.MemOperand) uint64 {
	var addr uint64
	if m.HasBase {
		addr += e.State.RegWidth(machine.RegID(m.Base.ID), 64)
	}
	if m.HasIndex {
		addr += e.State.RegWidth(machine.RegID(m.Index.ID), 64) * uint64(max(m.Scale, 1))
	}
	addr += uint64(m.Disp)
	if m.SegIsFS {
		addr += e.State.FSBase()
	}
	if m.SegIsGS {
		addr += e.State.GSBase()
	}
	return addr
}

func max(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

// readOperand reads arg at width bits, resolving registers (including
// AH/BH/CH/DH high-byte views), immediates, and memory operands.
func (e *Engine) readOperand(arg decode.Arg, width int) (uint64, *machine.Error) {
	switch arg.Kind {
	case decode.KindReg:
		if arg.Reg.HighByte {
			return uint64(e.State.Reg8High(machine.RegID(arg.Reg.ID))), nil
		}
		return e.State.RegWidth(machine.RegID(arg.Reg.ID), width), nil
	case decode.KindImm:
		return uint64(arg.Imm) & widthMaskLocal(width), nil
	case decode.KindMem:
		addr := e.effectiveAddress(arg.Mem)
		return e.State.Memory().ReadWidth(addr, width)
	case decode.KindRel:
		return uint64(arg.Rel), nil
	default:
		return 0, machine.Newf(machine.KindInvalidInstruction, "unreadable operand kind %d", arg.Kind)
	}
}

// writeOperand writes v (width bits) into arg.
func (e *Engine) writeOperand(arg decode.Arg, width int, v uint64) *machine.Error {
	switch arg.Kind {
	case decode.KindReg:
		if arg.Reg.HighByte {
			e.State.SetReg8High(machine.RegID(arg.Reg.ID), uint8(v))
			return nil
		}
		e.State.SetRegWidth(machine.RegID(arg.Reg.ID), width, v)
		return nil
	case decode.KindMem:
		addr := e.effectiveAddress(arg.Mem)
		return e.State.Memory().WriteWidth(addr, width, v)
	default:
		return machine.Newf(machine.KindInvalidInstruction, "unwritable operand kind %d", arg.Kind)
	}
}

func widthMaskLocal(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}
