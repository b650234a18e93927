package machine

import "math/bits"

// RFLAGS bit positions for the subset of flags this emulator models.
// Everything else in RFLAGS is "unaffected" and simply preserved across
// instructions that don't name it (spec.md §3).
const (
	FlagCF uint64 = 1 << 0
	FlagPF uint64 = 1 << 2
	FlagAF uint64 = 1 << 4
	FlagZF uint64 = 1 << 6
	FlagSF uint64 = 1 << 7
	FlagOF uint64 = 1 << 11
)

// CF, ZF, SF, OF, PF, AF read the corresponding RFLAGS bit.
func (s *State) CF() bool { return s.rflags&FlagCF != 0 }
func (s *State) PF() bool { return s.rflags&FlagPF != 0 }
func (s *State) AF() bool { return s.rflags&FlagAF != 0 }
func (s *State) ZF() bool { return s.rflags&FlagZF != 0 }
func (s *State) SF() bool { return s.rflags&FlagSF != 0 }
func (s *State) OF() bool { return s.rflags&FlagOF != 0 }

// RFLAGS returns the raw flags register.
func (s *State) RFLAGS() uint64 { return s.rflags }

// SetRFLAGS overwrites the whole flags register (used by hooks/loader setup).
func (s *State) SetRFLAGS(v uint64) { s.rflags = v }

func setBit(v uint64, mask uint64, set bool) uint64 {
	if set {
		return v | mask
	}
	return v &^ mask
}

// ArithFlags is the result of a flag-deriving combinator: "set" is merged
// into RFLAGS under "mask", and the rest of RFLAGS (bits not in mask) is
// preserved. This is spec.md §4.6's "written vs preserved" discipline,
// modeled as a pure value returned alongside the arithmetic result rather
// than a direct global mutation, so semantics handlers stay pure-functional
// and testable in isolation.
type ArithFlags struct {
	Mask uint64
	Set  uint64
}

// Apply merges d into the machine's RFLAGS.
func (s *State) Apply(d ArithFlags) {
	s.rflags = (s.rflags &^ d.Mask) | (d.Set & d.Mask)
}

// signBit returns the sign-bit mask (2^(width-1)) for the given width.
func signBit(width int) uint64 {
	return uint64(1) << (width - 1)
}

// widthMask returns the all-ones mask for the given width (8/16/32/64).
func widthMask(width int) uint64 {
	if width == 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

// parity reports the x86 PF convention: set when the low byte of the result
// has an even number of 1 bits.
func parity(result uint64) bool {
	return bits.OnesCount8(uint8(result))%2 == 0
}

// szp computes the SF/ZF/PF portion shared by almost every flag-affecting
// encoding: SF = result's sign bit, ZF = result == 0, PF = parity(low byte).
func szp(result uint64, width int) (sf, zf, pf bool) {
	sf = result&signBit(width) != 0
	zf = (result & widthMask(width)) == 0
	pf = parity(result)
	return
}

// AddFlagsCarry computes the CF/OF/SF/ZF/PF delta for ADD/ADC per the table
// in spec.md §4.5, given the pre-truncated dst/src/result values. carryOut is
// computed by the caller from the unmasked wide addition ((dst+src+cin) >=
// 2^width), since that can't be recovered from the truncated result alone.
func AddFlagsCarry(dst, src, result uint64, width int, carryOut bool) ArithFlags {
	d := dst & widthMask(width)
	s := src & widthMask(width)
	r := result & widthMask(width)
	b := signBit(width)

	of := (d&b == s&b) && (d&b != r&b)
	sf, zf, pf := szp(r, width)

	return ArithFlags{
		Mask: FlagCF | FlagOF | FlagSF | FlagZF | FlagPF,
		Set: setBit(0, FlagCF, carryOut) | setBit(0, FlagOF, of) |
			setBit(0, FlagSF, sf) | setBit(0, FlagZF, zf) | setBit(0, FlagPF, pf),
	}
}

// SubFlagsCarry computes the CF/OF/SF/ZF/PF delta for SUB/SBB/CMP per the
// table in spec.md §4.5. borrowOut is (src+borrowIn) > dst in unsigned
// arithmetic, i.e. "s > r" widened with the incoming borrow.
func SubFlagsCarry(dst, src, result uint64, width int, borrowOut bool) ArithFlags {
	d := dst & widthMask(width)
	s := src & widthMask(width)
	r := result & widthMask(width)
	b := signBit(width)

	of := (d&b != s&b) && (d&b != r&b)
	sf, zf, pf := szp(r, width)

	return ArithFlags{
		Mask: FlagCF | FlagOF | FlagSF | FlagZF | FlagPF,
		Set: setBit(0, FlagCF, borrowOut) | setBit(0, FlagOF, of) |
			setBit(0, FlagSF, sf) | setBit(0, FlagZF, zf) | setBit(0, FlagPF, pf),
	}
}

// LogicFlags computes the flag delta for AND/OR/XOR/TEST: CF=OF=0, SF/ZF/PF
// from the result.
func LogicFlags(result uint64, width int) ArithFlags {
	sf, zf, pf := szp(result, width)
	return ArithFlags{
		Mask: FlagCF | FlagOF | FlagSF | FlagZF | FlagPF,
		Set:  setBit(0, FlagSF, sf) | setBit(0, FlagZF, zf) | setBit(0, FlagPF, pf),
	}
}

// IncDecFlags computes the flag delta for INC/DEC: CF preserved (not in
// Mask), OF via the standard signed-overflow rule, SF/ZF/PF from the result.
func IncDecFlags(before, result uint64, width int, isDec bool) ArithFlags {
	b := signBit(width)
	var of bool
	if isDec {
		// DEC overflows only when before == signBit (e.g. 0x80 -> 0x7F for u8).
		of = before&widthMask(width) == b
	} else {
		// INC overflows only when before == signBit-1 (e.g. 0x7F -> 0x80 for u8).
		of = before&widthMask(width) == b-1
	}
	sf, zf, pf := szp(result, width)
	return ArithFlags{
		Mask: FlagOF | FlagSF | FlagZF | FlagPF,
		Set:  setBit(0, FlagOF, of) | setBit(0, FlagSF, sf) | setBit(0, FlagZF, zf) | setBit(0, FlagPF, pf),
	}
}

// NegFlags computes the flag delta for NEG: CF = src != 0, OF = src == signBit.
func NegFlags(src, result uint64, width int) ArithFlags {
	sf, zf, pf := szp(result, width)
	cf := src&widthMask(width) != 0
	of := src&widthMask(width) == signBit(width)
	return ArithFlags{
		Mask: FlagCF | FlagOF | FlagSF | FlagZF | FlagPF,
		Set: setBit(0, FlagCF, cf) | setBit(0, FlagOF, of) |
			setBit(0, FlagSF, sf) | setBit(0, FlagZF, zf) | setBit(0, FlagPF, pf),
	}
}

// ShiftFlags computes the flag delta for a 1-bit SHL/SHR, the only counts for
// which OF is architecturally defined. count>1 leaves OF undefined; per
// spec.md §4.5 the table only requires k==1 and the emulator only computes
// OF for that case, preserving it otherwise.
func ShiftFlags(cf bool, of bool, ofDefined bool, result uint64, width int) ArithFlags {
	sf, zf, pf := szp(result, width)
	mask := FlagCF | FlagSF | FlagZF | FlagPF
	set := setBit(0, FlagCF, cf) | setBit(0, FlagSF, sf) | setBit(0, FlagZF, zf) | setBit(0, FlagPF, pf)
	if ofDefined {
		mask |= FlagOF
		set = setBit(set, FlagOF, of)
	}
	return ArithFlags{Mask: mask, Set: set}
}

// MulFlags computes the CF/OF delta for unsigned MUL: both set iff the
// upper half of the double-width product is non-zero. SF/ZF/PF/AF are left
// undefined by the architecture; this emulator preserves them.
func MulFlags(upperNonZero bool) ArithFlags {
	return ArithFlags{
		Mask: FlagCF | FlagOF,
		Set:  setBit(0, FlagCF, upperNonZero) | setBit(0, FlagOF, upperNonZero),
	}
}
