// Package isa holds the architecture-level vocabulary shared by the decoder,
// the machine state's hook registry, and the engine's dispatch table: the
// closed set of mnemonics this emulator understands, plus the handful of
// condition-code predicates that Jcc/CMOVcc/SETcc share.
package isa

// Mnemonic is a stable integer id for one of the instructions this emulator
// can decode and execute. It is the key used by the hook registry, so its
// values must never be reordered once assigned.
type Mnemonic uint8

const (
	Adc Mnemonic = iota
	Add
	And
	Call
	Cdq
	Cdqe
	Cld
	Cmovae
	Cmove
	Cmovne
	Cmp
	Cpuid
	Cqo
	Cwd
	Dec
	Div
	Endbr64
	Idiv
	Imul
	Inc
	Int
	Int1
	Int3
	Ja
	Jae
	Jb
	Jbe
	Je
	Jecxz
	Jg
	Jge
	Jl
	Jle
	Jmp
	Jne
	Jno
	Jnp
	Jns
	Jo
	Jp
	Jrcxz
	Js
	Lea
	Mov
	Movsxd
	Movups
	Movzx
	Mul
	Neg
	Nop
	Not
	Pop
	Push
	Ret
	Setb
	Sete
	Setne
	Shl
	Shr
	Sub
	Syscall
	Test
	Xor
	Xorps

	mnemonicCount
)

var names = [...]string{
	Adc: "adc", Add: "add", And: "and", Call: "call", Cdq: "cdq", Cdqe: "cdqe",
	Cld: "cld", Cmovae: "cmovae", Cmove: "cmove", Cmovne: "cmovne", Cmp: "cmp",
	Cpuid: "cpuid", Cqo: "cqo", Cwd: "cwd", Dec: "dec", Div: "div",
	Endbr64: "endbr64", Idiv: "idiv", Imul: "imul", Inc: "inc", Int: "int",
	Int1: "int1", Int3: "int3", Ja: "ja", Jae: "jae", Jb: "jb", Jbe: "jbe",
	Je: "je", Jecxz: "jecxz", Jg: "jg", Jge: "jge", Jl: "jl", Jle: "jle",
	Jmp: "jmp", Jne: "jne", Jno: "jno", Jnp: "jnp", Jns: "jns", Jo: "jo",
	Jp: "jp", Jrcxz: "jrcxz", Js: "js", Lea: "lea", Mov: "mov",
	Movsxd: "movsxd", Movups: "movups", Movzx: "movzx", Mul: "mul", Neg: "neg",
	Nop: "nop", Not: "not", Pop: "pop", Push: "push", Ret: "ret", Setb: "setb",
	Sete: "sete", Setne: "setne", Shl: "shl", Shr: "shr", Sub: "sub",
	Syscall: "syscall", Test: "test", Xor: "xor", Xorps: "xorps",
}

// String returns the canonical lowercase mnemonic text, as emitted by the
// decoder and used as hook-registry keys in diagnostics.
func (m Mnemonic) String() string {
	if int(m) < len(names) && names[m] != "" {
		return names[m]
	}
	return "unknown"
}

// Count is the number of mnemonics in the closed set, used to size flat
// arrays keyed by Mnemonic (e.g. the hook registry's backing store).
const Count = int(mnemonicCount)

// IsConditionalJump reports whether m is one of the Jcc family.
func IsConditionalJump(m Mnemonic) bool {
	switch m {
	case Ja, Jae, Jb, Jbe, Je, Jecxz, Jg, Jge, Jl, Jle, Jne, Jno, Jnp, Jns, Jo, Jp, Jrcxz, Js:
		return true
	}
	return false
}

// IsCmov reports whether m is one of the CMOVcc family.
func IsCmov(m Mnemonic) bool {
	switch m {
	case Cmovae, Cmove, Cmovne:
		return true
	}
	return false
}

// IsSetcc reports whether m is one of the SETcc family.
func IsSetcc(m Mnemonic) bool {
	switch m {
	case Setb, Sete, Setne:
		return true
	}
	return false
}
