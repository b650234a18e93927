package decode

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/oisee/ax/pkg/isa"
)

// translateOp maps the x86asm opcode space down to the closed mnemonic set
// this emulator implements (spec.md §4.3). Anything not listed here is
// rejected by DecodeAt with an "unsupported opcode" error, which the engine
// reports as KindInvalidInstruction.
func translateOp(op x86asm.Op) (isa.Mnemonic, bool) {
	switch op {
	case x86asm.ADC:
		return isa.Adc, true
	case x86asm.ADD:
		return isa.Add, true
	case x86asm.AND:
		return isa.And, true
	case x86asm.CALL:
		return isa.Call, true
	case x86asm.CDQ:
		return isa.Cdq, true
	case x86asm.CDQE:
		return isa.Cdqe, true
	case x86asm.CLD:
		return isa.Cld, true
	case x86asm.CMOVAE:
		return isa.Cmovae, true
	case x86asm.CMOVE:
		return isa.Cmove, true
	case x86asm.CMOVNE:
		return isa.Cmovne, true
	case x86asm.CMP:
		return isa.Cmp, true
	case x86asm.CPUID:
		return isa.Cpuid, true
	case x86asm.CQO:
		return isa.Cqo, true
	case x86asm.CWD:
		return isa.Cwd, true
	case x86asm.DEC:
		return isa.Dec, true
	case x86asm.DIV:
		return isa.Div, true
	case x86asm.IDIV:
		return isa.Idiv, true
	case x86asm.IMUL:
		return isa.Imul, true
	case x86asm.INC:
		return isa.Inc, true
	case x86asm.INT:
		return isa.Int, true
	case x86asm.INT3:
		return isa.Int3, true
	case x86asm.ICEBP:
		return isa.Int1, true
	case x86asm.JA:
		return isa.Ja, true
	case x86asm.JAE:
		return isa.Jae, true
	case x86asm.JB:
		return isa.Jb, true
	case x86asm.JBE:
		return isa.Jbe, true
	case x86asm.JE:
		return isa.Je, true
	case x86asm.JECXZ:
		return isa.Jecxz, true
	case x86asm.JG:
		return isa.Jg, true
	case x86asm.JGE:
		return isa.Jge, true
	case x86asm.JL:
		return isa.Jl, true
	case x86asm.JLE:
		return isa.Jle, true
	case x86asm.JMP:
		return isa.Jmp, true
	case x86asm.JNE:
		return isa.Jne, true
	case x86asm.JNO:
		return isa.Jno, true
	case x86asm.JNP:
		return isa.Jnp, true
	case x86asm.JNS:
		return isa.Jns, true
	case x86asm.JO:
		return isa.Jo, true
	case x86asm.JP:
		return isa.Jp, true
	case x86asm.JRCXZ:
		return isa.Jrcxz, true
	case x86asm.JS:
		return isa.Js, true
	case x86asm.LEA:
		return isa.Lea, true
	case x86asm.MOV:
		return isa.Mov, true
	case x86asm.MOVSXD:
		return isa.Movsxd, true
	case x86asm.MOVUPS:
		return isa.Movups, true
	case x86asm.MOVZX:
		return isa.Movzx, true
	case x86asm.MUL:
		return isa.Mul, true
	case x86asm.NEG:
		return isa.Neg, true
	case x86asm.NOP:
		return isa.Nop, true
	case x86asm.NOT:
		return isa.Not, true
	case x86asm.POP:
		return isa.Pop, true
	case x86asm.PUSH:
		return isa.Push, true
	case x86asm.RET:
		return isa.Ret, true
	case x86asm.SETB:
		return isa.Setb, true
	case x86asm.SETE:
		return isa.Sete, true
	case x86asm.SETNE:
		return isa.Setne, true
	case x86asm.SHL:
		return isa.Shl, true
	case x86asm.SHR:
		return isa.Shr, true
	case x86asm.SUB:
		return isa.Sub, true
	case x86asm.SYSCALL:
		return isa.Syscall, true
	case x86asm.TEST:
		return isa.Test, true
	case x86asm.XOR:
		return isa.Xor, true
	case x86asm.XORPS:
		return isa.Xorps, true
	default:
		return 0, false
	}
}

// regInfo is the RegID/width/high-byte triple for one x86asm register
// constant, matching machine.RegID's iota ordering (RAX=0 .. R15=15).
type regInfo struct {
	id       uint8
	width    int
	highByte bool
}

var regTable = map[x86asm.Reg]regInfo{
	x86asm.AL: {0, 8, false}, x86asm.AH: {0, 8, true},
	x86asm.CL: {1, 8, false}, x86asm.CH: {1, 8, true},
	x86asm.DL: {2, 8, false}, x86asm.DH: {2, 8, true},
	x86asm.BL: {3, 8, false}, x86asm.BH: {3, 8, true},
	x86asm.SPB: {4, 8, false}, x86asm.BPB: {5, 8, false},
	x86asm.SIB: {6, 8, false}, x86asm.DIB: {7, 8, false},
	x86asm.R8B: {8, 8, false}, x86asm.R9B: {9, 8, false},
	x86asm.R10B: {10, 8, false}, x86asm.R11B: {11, 8, false},
	x86asm.R12B: {12, 8, false}, x86asm.R13B: {13, 8, false},
	x86asm.R14B: {14, 8, false}, x86asm.R15B: {15, 8, false},

	x86asm.AX: {0, 16, false}, x86asm.CX: {1, 16, false},
	x86asm.DX: {2, 16, false}, x86asm.BX: {3, 16, false},
	x86asm.SP: {4, 16, false}, x86asm.BP: {5, 16, false},
	x86asm.SI: {6, 16, false}, x86asm.DI: {7, 16, false},
	x86asm.R8W: {8, 16, false}, x86asm.R9W: {9, 16, false},
	x86asm.R10W: {10, 16, false}, x86asm.R11W: {11, 16, false},
	x86asm.R12W: {12, 16, false}, x86asm.R13W: {13, 16, false},
	x86asm.R14W: {14, 16, false}, x86asm.R15W: {15, 16, false},

	x86asm.EAX: {0, 32, false}, x86asm.ECX: {1, 32, false},
	x86asm.EDX: {2, 32, false}, x86asm.EBX: {3, 32, false},
	x86asm.ESP: {4, 32, false}, x86asm.EBP: {5, 32, false},
	x86asm.ESI: {6, 32, false}, x86asm.EDI: {7, 32, false},
	x86asm.R8L: {8, 32, false}, x86asm.R9L: {9, 32, false},
	x86asm.R10L: {10, 32, false}, x86asm.R11L: {11, 32, false},
	x86asm.R12L: {12, 32, false}, x86asm.R13L: {13, 32, false},
	x86asm.R14L: {14, 32, false}, x86asm.R15L: {15, 32, false},

	x86asm.RAX: {0, 64, false}, x86asm.RCX: {1, 64, false},
	x86asm.RDX: {2, 64, false}, x86asm.RBX: {3, 64, false},
	x86asm.RSP: {4, 64, false}, x86asm.RBP: {5, 64, false},
	x86asm.RSI: {6, 64, false}, x86asm.RDI: {7, 64, false},
	x86asm.R8: {8, 64, false}, x86asm.R9: {9, 64, false},
	x86asm.R10: {10, 64, false}, x86asm.R11: {11, 64, false},
	x86asm.R12: {12, 64, false}, x86asm.R13: {13, 64, false},
	x86asm.R14: {14, 64, false}, x86asm.R15: {15, 64, false},
}

var xmmTable = map[x86asm.Reg]uint8{
	x86asm.X0: 0, x86asm.X1: 1, x86asm.X2: 2, x86asm.X3: 3,
	x86asm.X4: 4, x86asm.X5: 5, x86asm.X6: 6, x86asm.X7: 7,
	x86asm.X8: 8, x86asm.X9: 9, x86asm.X10: 10, x86asm.X11: 11,
	x86asm.X12: 12, x86asm.X13: 13, x86asm.X14: 14, x86asm.X15: 15,
}

func translateReg(r x86asm.Reg) (Reg, error) {
	info, ok := regTable[r]
	if !ok {
		return Reg{}, fmt.Errorf("unsupported register %s", r)
	}
	return Reg{ID: info.id, Width: info.width, HighByte: info.highByte}, nil
}

// translateArg converts one decoded x86asm.Arg into this package's operand
// model. nextIP is the address immediately after the instruction, used to
// resolve x86asm.Rel (RIP-relative) operands into an absolute target.
func translateArg(a x86asm.Arg, nextIP uint64) (Arg, error) {
	switch v := a.(type) {
	case x86asm.Reg:
		if idx, ok := xmmTable[v]; ok {
			return Arg{Kind: KindXMM, XMM: idx}, nil
		}
		reg, err := translateReg(v)
		if err != nil {
			return Arg{}, err
		}
		return Arg{Kind: KindReg, Reg: reg}, nil

	case x86asm.Imm:
		return Arg{Kind: KindImm, Imm: int64(v)}, nil

	case x86asm.Rel:
		return Arg{Kind: KindRel, Rel: int64(nextIP) + int64(v)}, nil

	case x86asm.Mem:
		mem := MemOperand{Scale: v.Scale, Disp: v.Disp}
		switch v.Segment {
		case x86asm.FS:
			mem.SegIsFS = true
		case x86asm.GS:
			mem.SegIsGS = true
		}
		switch v.Base {
		case 0:
			// no base register
		case x86asm.RIP:
			// RIP isn't a machine.RegID the engine can read; x86asm's
			// disp is already relative to the end of the instruction
			// (nextIP), so fold it into an absolute displacement here
			// and let effectiveAddress add it with no base register.
			mem.Disp += int64(nextIP)
		default:
			reg, err := translateReg(v.Base)
			if err != nil {
				return Arg{}, fmt.Errorf("memory base: %w", err)
			}
			mem.Base = reg
			mem.HasBase = true
		}
		if v.Index != 0 {
			reg, err := translateReg(v.Index)
			if err != nil {
				return Arg{}, fmt.Errorf("memory index: %w", err)
			}
			mem.Index = reg
			mem.HasIndex = true
		}
		return Arg{Kind: KindMem, Mem: mem}, nil

	default:
		return Arg{}, fmt.Errorf("unsupported operand kind %T", a)
	}
}
