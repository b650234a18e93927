package engine

import (
	"math/bits"

	"github.com/oisee/ax/pkg/decode"
	"github.com/oisee/ax/pkg/isa"
	"github.com/oisee/ax/pkg/machine"
)

func init() {
	register(isa.Add, binaryArith(addCompute))
	register(isa.Adc, binaryArith(adcCompute))
	register(isa.Sub, binaryArith(subCompute))
	register(isa.Cmp, binaryArith(cmpCompute))
	register(isa.And, binaryArith(andCompute))
	register(isa.Xor, binaryArith(xorCompute))
	register(isa.Test, binaryArith(testCompute))

	register(isa.Inc, unaryArith(incCompute))
	register(isa.Dec, unaryArith(decCompute))
	register(isa.Neg, unaryArith(negCompute))
	register(isa.Not, unaryArith(notCompute))
}

// arithCompute performs one width-parameterized two-operand combinator: it
// returns the value to store back to dst (ignored for CMP/TEST, which don't
// write) and the flag delta to apply, following the rm_r/r_rm/rm_imm
// template family from spec.md §4.6.
type arithCompute func(e *Engine, dst, src uint64, width int) (result uint64, flags machine.ArithFlags, writesBack bool)

func binaryArith(compute arithCompute) handler {
	return func(e *Engine, inst decode.Instruction) error {
		width := inst.Width
		dstArg, srcArg := inst.Args[0], inst.Args[1]

		dst, err := e.readOperand(dstArg, width)
		if err != nil {
			return err
		}
		src, err := e.readOperand(srcArg, width)
		if err != nil {
			return err
		}

		result, flags, writesBack := compute(e, dst, src, width)
		e.State.Apply(flags)

		if writesBack {
			if err := e.writeOperand(dstArg, width, result); err != nil {
				return err
			}
		}
		return nil
	}
}

// addWithCarry computes dst+src+cin at the given width and reports whether
// the sum carried out of that width. For width 64 the naive "sum > mask"
// check can't work (mask is already ^uint64(0), so the uint64 addition
// itself wraps instead of exceeding it), so the 64-bit case goes through
// bits.Add64 to get the true carry out of the machine word.
func addWithCarry(dst, src, cin uint64, width int) (result uint64, carryOut bool) {
	mask := widthMaskLocal(width)
	if width == 64 {
		sum, c := bits.Add64(dst, src, cin)
		return sum, c != 0
	}
	sum := (dst & mask) + (src & mask) + cin
	return sum & mask, sum > mask
}

func addCompute(e *Engine, dst, src uint64, width int) (uint64, machine.ArithFlags, bool) {
	result, carryOut := addWithCarry(dst, src, 0, width)
	return result, machine.AddFlagsCarry(dst, src, result, width, carryOut), true
}

func adcCompute(e *Engine, dst, src uint64, width int) (uint64, machine.ArithFlags, bool) {
	cin := uint64(0)
	if e.State.CF() {
		cin = 1
	}
	result, carryOut := addWithCarry(dst, src, cin, width)
	return result, machine.AddFlagsCarry(dst, src, result, width, carryOut), true
}

func subCompute(e *Engine, dst, src uint64, width int) (uint64, machine.ArithFlags, bool) {
	mask := widthMaskLocal(width)
	result := (dst - src) & mask
	borrowOut := src&mask > dst&mask
	return result, machine.SubFlagsCarry(dst, src, result, width, borrowOut), true
}

func cmpCompute(e *Engine, dst, src uint64, width int) (uint64, machine.ArithFlags, bool) {
	result, flags, _ := subCompute(e, dst, src, width)
	return result, flags, false
}

func andCompute(e *Engine, dst, src uint64, width int) (uint64, machine.ArithFlags, bool) {
	result := dst & src & widthMaskLocal(width)
	return result, machine.LogicFlags(result, width), true
}

func xorCompute(e *Engine, dst, src uint64, width int) (uint64, machine.ArithFlags, bool) {
	result := (dst ^ src) & widthMaskLocal(width)
	return result, machine.LogicFlags(result, width), true
}

func testCompute(e *Engine, dst, src uint64, width int) (uint64, machine.ArithFlags, bool) {
	result := dst & src & widthMaskLocal(width)
	return result, machine.LogicFlags(result, width), false
}

// unaryCompute is INC/DEC/NEG/NOT's one-operand counterpart.
type unaryCompute func(before uint64, width int) (result uint64, flags machine.ArithFlags)

func unaryArith(compute unaryCompute) handler {
	return func(e *Engine, inst decode.Instruction) error {
		width := inst.Width
		arg := inst.Args[0]

		before, err := e.readOperand(arg, width)
		if err != nil {
			return err
		}
		result, flags := compute(before, width)
		e.State.Apply(flags)
		return e.writeOperand(arg, width, result)
	}
}

func incCompute(before uint64, width int) (uint64, machine.ArithFlags) {
	result := (before + 1) & widthMaskLocal(width)
	return result, machine.IncDecFlags(before, result, width, false)
}

func decCompute(before uint64, width int) (uint64, machine.ArithFlags) {
	result := (before - 1) & widthMaskLocal(width)
	return result, machine.IncDecFlags(before, result, width, true)
}

func negCompute(before uint64, width int) (uint64, machine.ArithFlags) {
	result := (-before) & widthMaskLocal(width)
	return result, machine.NegFlags(before, result, width)
}

func notCompute(before uint64, width int) (uint64, machine.ArithFlags) {
	result := (^before) & widthMaskLocal(width)
	return result, machine.ArithFlags{} // NOT affects no flags (spec.md §4.5)
}
