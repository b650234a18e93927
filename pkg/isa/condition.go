package isa

// Flags is the minimal view of RFLAGS that condition predicates need:
// CF/ZF/SF/OF, plus the current value of (E/R)CX for the jCXZ family.
type Flags struct {
	CF, ZF, SF, OF bool
	CounterZero    bool // RCX/ECX == 0, only meaningful for Jecxz/Jrcxz
}

// Predicate evaluates the condition-code table from spec.md §4.5 for the
// Jcc/CMOVcc/SETcc mnemonics that share a predicate. Mnemonics outside this
// set (e.g. Jmp, unconditional) are not predicates and return false, ok=false.
func Predicate(m Mnemonic, f Flags) (taken bool, ok bool) {
	switch m {
	case Je, Sete, Cmove:
		return f.ZF, true
	case Jne, Setne, Cmovne:
		return !f.ZF, true
	case Ja:
		return !f.CF && !f.ZF, true
	case Jae, Cmovae:
		return !f.CF, true
	case Jb, Setb:
		return f.CF, true
	case Jbe:
		return f.CF || f.ZF, true
	case Jg:
		return !f.ZF && f.SF == f.OF, true
	case Jge:
		return f.SF == f.OF, true
	case Jl:
		return f.SF != f.OF, true
	case Jle:
		return f.ZF || f.SF != f.OF, true
	case Jo:
		return f.OF, true
	case Jno:
		return !f.OF, true
	case Js:
		return f.SF, true
	case Jns:
		return !f.SF, true
	case Jp:
		return false, false // PF not carried in this minimal Flags view; callers pass PF via ok=false path below
	case Jnp:
		return false, false
	case Jecxz, Jrcxz:
		return f.CounterZero, true
	}
	return false, false
}

// PredicateWithPF is the full predicate evaluator, used by the engine which
// tracks PF directly on machine.State. It mirrors Predicate but additionally
// resolves Jp/Jnp, which depend on the parity flag.
func PredicateWithPF(m Mnemonic, f Flags, pf bool) (taken bool, ok bool) {
	switch m {
	case Jp:
		return pf, true
	case Jnp:
		return !pf, true
	default:
		return Predicate(m, f)
	}
}
