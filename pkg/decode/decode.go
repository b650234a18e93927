// Package decode wraps golang.org/x/arch/x86/x86asm, translating its
// generic x86 instruction stream into the closed vocabulary of
// pkg/isa.Mnemonic and the small operand model the engine dispatches on
// (spec.md §4.4). Everything this emulator doesn't support is rejected here,
// at decode time, rather than deeper in the engine.
package decode

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/oisee/ax/pkg/isa"
)

// endbr64Bytes is the fixed 4-byte encoding of ENDBR64 (F3 0F 1E FA). The
// x86asm decoder predates Intel CET and decodes this as a plain NOP-class
// instruction (REP NOP or BND NOP depending on version), so it is recognized
// here by its literal byte pattern instead of relying on the decoder naming
// it (spec.md §4.3).
var endbr64Bytes = [4]byte{0xF3, 0x0F, 0x1E, 0xFA}

// Kind distinguishes how an operand is stored.
type Kind int

const (
	KindNone Kind = iota
	KindReg
	KindImm
	KindMem
	KindRel
	KindXMM
)

// MemOperand is a decoded [base + index*scale + disp] addressing form, with
// an optional FS/GS segment override (spec.md §4.4).
type MemOperand struct {
	SegIsFS  bool
	SegIsGS  bool
	Base     Reg
	HasBase  bool
	Index    Reg
	HasIndex bool
	Scale    uint8
	Disp     int64
}

// Reg is a decoded register reference resolved to a machine.RegID-compatible
// id plus the access width and high-byte flag the engine needs to read/write
// it (spec.md §4.2).
type Reg struct {
	ID        uint8 // matches machine.RegID's iota ordering
	Width     int   // 8, 16, 32, or 64
	HighByte  bool  // true for AH/BH/CH/DH
}

// Arg is one decoded operand: exactly one of the Kind-tagged fields is valid.
type Arg struct {
	Kind Kind
	Reg  Reg
	Imm  int64
	Mem  MemOperand
	Rel  int64  // absolute branch target (NextIP + displacement), resolved at decode time
	XMM  uint8  // XMM register index (0-15), valid when Kind == KindXMM
}

// Instruction is one fully decoded instruction ready for dispatch.
type Instruction struct {
	Mnemonic isa.Mnemonic
	Length   int
	IP       uint64
	NextIP   uint64
	Args     []Arg
	Width    int // effective operand width in bits: 8, 16, 32, or 64
	Text     string // disassembly text, for trace rendering
}

// DecodeAt decodes one instruction from code (a window into the guest code
// buffer) located at virtual address ip. code[0] must correspond to ip.
func DecodeAt(code []byte, ip uint64) (Instruction, error) {
	if len(code) == 0 {
		return Instruction{}, fmt.Errorf("decode at %#x: empty buffer", ip)
	}

	if len(code) >= 4 && [4]byte{code[0], code[1], code[2], code[3]} == endbr64Bytes {
		return Instruction{
			Mnemonic: isa.Endbr64,
			Length:   4,
			IP:       ip,
			NextIP:   ip + 4,
			Text:     "endbr64",
		}, nil
	}

	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return Instruction{}, fmt.Errorf("decode at %#x: %w", ip, err)
	}

	mnemonic, ok := translateOp(inst.Op)
	if !ok {
		return Instruction{}, fmt.Errorf("decode at %#x: unsupported opcode %s", ip, inst.Op)
	}

	next := ip + uint64(inst.Len)
	args := make([]Arg, 0, 4)
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		arg, err := translateArg(a, next)
		if err != nil {
			return Instruction{}, fmt.Errorf("decode at %#x: %w", ip, err)
		}
		args = append(args, arg)
	}

	text := inst.String()

	width := inst.DataSize
	for _, a := range args {
		if a.Kind == KindReg {
			width = a.Reg.Width
			break
		}
	}
	if width == 0 {
		width = 32
	}

	return Instruction{
		Mnemonic: mnemonic,
		Length:   inst.Len,
		IP:       ip,
		NextIP:   next,
		Args:     args,
		Width:    width,
		Text:     text,
	}, nil
}

// Disassemble decodes and returns only the textual form, for trace rendering
// (the callback shape required by machine.State.Trace/CallStackString).
func Disassemble(code []byte, ip uint64) (string, bool) {
	inst, err := DecodeAt(code, ip)
	if err != nil {
		return "", false
	}
	return inst.Text, true
}
