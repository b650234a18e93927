package engine

import (
	"github.com/oisee/ax/pkg/decode"
	"github.com/oisee/ax/pkg/isa"
	"github.com/oisee/ax/pkg/machine"
)

func init() {
	register(isa.Shl, shlHandler)
	register(isa.Shr, shrHandler)
}

// shiftCount masks the raw count operand the way the processor does: mod 64
// for 64-bit operands, mod 32 otherwise (spec.md §4.5).
func shiftCount(raw uint64, width int) uint64 {
	if width == 64 {
		return raw & 0x3F
	}
	return raw & 0x1F
}

func shlHandler(e *Engine, inst decode.Instruction) error {
	width := inst.Width
	dstArg, countArg := inst.Args[0], inst.Args[1]

	dst, err := e.readOperand(dstArg, width)
	if err != nil {
		return err
	}
	rawCount, err := e.readOperand(countArg, 8)
	if err != nil {
		return err
	}
	count := shiftCount(rawCount, width)
	if count == 0 {
		return nil
	}

	mask := widthMaskLocal(width)
	var cf bool
	if int(count) <= width {
		cf = (dst>>(uint64(width)-count))&1 != 0
	}
	result := (dst << count) & mask

	ofDefined := count == 1
	var of bool
	if ofDefined {
		resultSign := result&(uint64(1)<<(width-1)) != 0
		of = resultSign != cf
	}

	e.State.Apply(machine.ShiftFlags(cf, of, ofDefined, result, width))
	return e.writeOperand(dstArg, width, result)
}

func shrHandler(e *Engine, inst decode.Instruction) error {
	width := inst.Width
	dstArg, countArg := inst.Args[0], inst.Args[1]

	dst, err := e.readOperand(dstArg, width)
	if err != nil {
		return err
	}
	rawCount, err := e.readOperand(countArg, 8)
	if err != nil {
		return err
	}
	count := shiftCount(rawCount, width)
	if count == 0 {
		return nil
	}

	mask := widthMaskLocal(width)
	var cf bool
	if count >= 1 {
		cf = (dst>>(count-1))&1 != 0
	}
	result := (dst & mask) >> count

	ofDefined := count == 1
	originalSign := dst&(uint64(1)<<(width-1)) != 0
	of := ofDefined && originalSign

	e.State.Apply(machine.ShiftFlags(cf, of, ofDefined, result, width))
	return e.writeOperand(dstArg, width, result)
}
