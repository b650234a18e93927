package engine

import (
	"math"
	"math/bits"

	"github.com/oisee/ax/pkg/decode"
	"github.com/oisee/ax/pkg/isa"
	"github.com/oisee/ax/pkg/machine"
)

func init() {
	register(isa.Mul, mulHandler)
	register(isa.Imul, imulHandler)
	register(isa.Div, divHandler)
	register(isa.Idiv, idivHandler)
}

// mulHandler implements the one-operand unsigned form: RDX:RAX (or the
// width-appropriate accumulator pair) = RAX * src (spec.md §4.3).
func mulHandler(e *Engine, inst decode.Instruction) error {
	width := inst.Width
	src, err := e.readOperand(inst.Args[0], width)
	if err != nil {
		return err
	}
	acc := e.State.RegWidth(machine.RAX, width)

	hi, lo := widenMul(acc, src, width)
	writeWideAccumulator(e, width, hi, lo)

	e.State.Apply(machine.MulFlags(hi != 0))
	return nil
}

// imulHandler supports the one-, two-, and three-operand signed forms.
func imulHandler(e *Engine, inst decode.Instruction) error {
	width := inst.Width

	switch len(inst.Args) {
	case 1:
		src, err := e.readOperand(inst.Args[0], width)
		if err != nil {
			return err
		}
		acc := e.State.RegWidth(machine.RAX, width)
		hi, lo := widenMulSigned(acc, src, width)
		writeWideAccumulator(e, width, hi, lo)
		overflow := signedOverflowed(hi, lo, width)
		e.State.Apply(machine.MulFlags(overflow))
		return nil

	case 2:
		dst, err := e.readOperand(inst.Args[0], width)
		if err != nil {
			return err
		}
		src, err := e.readOperand(inst.Args[1], width)
		if err != nil {
			return err
		}
		hi, lo := widenMulSigned(dst, src, width)
		overflow := signedOverflowed(hi, lo, width)
		e.State.Apply(machine.MulFlags(overflow))
		return e.writeOperand(inst.Args[0], width, lo)

	default: // 3-operand: dst = src * imm
		src, err := e.readOperand(inst.Args[1], width)
		if err != nil {
			return err
		}
		imm, err := e.readOperand(inst.Args[2], width)
		if err != nil {
			return err
		}
		hi, lo := widenMulSigned(src, imm, width)
		overflow := signedOverflowed(hi, lo, width)
		e.State.Apply(machine.MulFlags(overflow))
		return e.writeOperand(inst.Args[0], width, lo)
	}
}

func divHandler(e *Engine, inst decode.Instruction) error {
	width := inst.Width
	divisor, err := e.readOperand(inst.Args[0], width)
	if err != nil {
		return err
	}
	if divisor&widthMaskLocal(width) == 0 {
		return machine.Newf(machine.KindDivideError, "division by zero")
	}

	hi, lo := readWideAccumulator(e, width)
	quotient, remainder := divideUnsigned(hi, lo, divisor, width)
	if quotient > widthMaskLocal(width) {
		return machine.Newf(machine.KindDivideError, "quotient overflow")
	}

	e.State.SetRegWidth(machine.RAX, width, quotient)
	writeRemainder(e, width, remainder)
	return nil
}

func idivHandler(e *Engine, inst decode.Instruction) error {
	width := inst.Width
	divisor, err := e.readOperand(inst.Args[0], width)
	if err != nil {
		return err
	}
	if divisor&widthMaskLocal(width) == 0 {
		return machine.Newf(machine.KindDivideError, "division by zero")
	}

	hi, lo := readWideAccumulator(e, width)
	var dividend int64
	if width == 64 {
		dividend = joinSigned128(hi, lo)
	} else {
		// The dividend spans the accumulator pair (e.g. EDX:EAX for a
		// 32-bit IDIV); sign-extend from its full combined width, not
		// just the low half.
		combined := (hi << uint(width)) | lo
		dividend = signExtend(combined, width*2)
	}
	div := signExtend(divisor, width)

	if div == -1 && dividend == math.MinInt64 {
		// dividend/-1 would overflow int64 itself (and Go panics on it);
		// it is certainly wider than any supported destination width too.
		return machine.Newf(machine.KindDivideError, "quotient overflow")
	}

	quotient := dividend / div
	remainder := dividend % div

	signMin := -(int64(1) << uint(width-1))
	signMax := int64(1)<<uint(width-1) - 1
	if quotient < signMin || quotient > signMax {
		return machine.Newf(machine.KindDivideError, "quotient overflow")
	}

	e.State.SetRegWidth(machine.RAX, width, uint64(quotient)&widthMaskLocal(width))
	writeRemainder(e, width, uint64(remainder)&widthMaskLocal(width))
	return nil
}

func widenMul(a, b uint64, width int) (hi, lo uint64) {
	a &= widthMaskLocal(width)
	b &= widthMaskLocal(width)
	if width == 64 {
		hi, lo = bits.Mul64(a, b)
		return
	}
	product := a * b
	return product >> uint(width), product & widthMaskLocal(width)
}

func widenMulSigned(a, b uint64, width int) (hi, lo uint64) {
	sa := signExtend(a, width)
	sb := signExtend(b, width)
	if width == 64 {
		// bits.Mul64 treats both operands as unsigned; recover the signed
		// product by subtracting the other operand once per negative sign,
		// the standard two's-complement widening correction.
		hiSigned, loUnsigned := bits.Mul64(uint64(sa), uint64(sb))
		if sa < 0 {
			hiSigned -= uint64(sb)
		}
		if sb < 0 {
			hiSigned -= uint64(sa)
		}
		return hiSigned, loUnsigned
	}
	product := sa * sb
	return uint64(product>>int64(width)) & widthMaskLocal(width), uint64(product) & widthMaskLocal(width)
}

func signedOverflowed(hi, lo uint64, width int) bool {
	if width == 64 {
		signBit := lo>>63 != 0
		if signBit {
			return hi != ^uint64(0)
		}
		return hi != 0
	}
	signExtended := signExtend(lo, width)
	return hi != 0 && uint64(signExtended)>>uint(width) != hi
}

func signExtend(v uint64, width int) int64 {
	shift := 64 - width
	return int64(v<<shift) >> shift
}

func joinSigned128(hi, lo uint64) int64 {
	// Only reachable for 64-bit IDIV whose dividend already fits a signed
	// 64-bit value in this emulator (no 128-bit-dividend DIV sequences are
	// modeled); hi is informational only here.
	_ = hi
	return int64(lo)
}

func readWideAccumulator(e *Engine, width int) (hi, lo uint64) {
	switch width {
	case 8:
		return 0, e.State.Reg64(machine.RAX) & 0xFFFF
	case 16:
		return e.State.Reg64(machine.RDX) & 0xFFFF, e.State.Reg64(machine.RAX) & 0xFFFF
	case 32:
		return uint64(e.State.Reg32(machine.RDX)), uint64(e.State.Reg32(machine.RAX))
	default:
		return e.State.Reg64(machine.RDX), e.State.Reg64(machine.RAX)
	}
}

func writeWideAccumulator(e *Engine, width int, hi, lo uint64) {
	switch width {
	case 8:
		e.State.SetReg16(machine.RAX, uint16(hi)<<8|uint16(lo))
	case 16:
		e.State.SetReg16(machine.RAX, uint16(lo))
		e.State.SetReg16(machine.RDX, uint16(hi))
	case 32:
		e.State.SetReg32(machine.RAX, uint32(lo))
		e.State.SetReg32(machine.RDX, uint32(hi))
	default:
		e.State.SetReg64(machine.RAX, lo)
		e.State.SetReg64(machine.RDX, hi)
	}
}

func writeRemainder(e *Engine, width int, remainder uint64) {
	switch width {
	case 8:
		e.State.SetReg8High(machine.RAX, uint8(remainder))
	case 16:
		e.State.SetReg16(machine.RDX, uint16(remainder))
	case 32:
		e.State.SetReg32(machine.RDX, uint32(remainder))
	default:
		e.State.SetReg64(machine.RDX, remainder)
	}
}

func divideUnsigned(hi, lo, divisor uint64, width int) (quotient, remainder uint64) {
	if width == 64 {
		if divisor <= hi {
			// bits.Div64 panics on quotient overflow; signal it as an
			// over-wide quotient instead so the caller's width check fires.
			return ^uint64(0), 0
		}
		q, r := bits.Div64(hi, lo, divisor)
		return q, r
	}
	dividend := (hi << uint(width)) | lo
	return dividend / divisor, dividend % divisor
}
