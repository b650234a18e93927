// Package loader builds a ready-to-run machine.State from a raw ELF64
// executable: it maps every PT_LOAD segment, sets up TLS, seeds the symbol
// table from .symtab/.dynsym, and records the synthetic entrypoint Call
// trace entry (spec.md §4.8), mirroring the "from_binary" construction path
// the emulator this was modeled on exposes.
package loader

import (
	"debug/elf"
	"bytes"
	"fmt"

	"github.com/oisee/ax/pkg/machine"
)

// Load parses an ELF64 executable and returns a State with its segments
// mapped, stack not yet initialized (callers choose InitStack or
// InitStackProgramStart themselves), and RIP at the entrypoint.
func Load(data []byte) (*machine.State, *machine.Error) {
	if len(data) < 4 || !bytes.Equal(data[:4], []byte{0x7F, 'E', 'L', 'F'}) {
		return nil, machine.Newf(machine.KindElfInvalidMagic, "not an ELF file: missing magic bytes")
	}
	if len(data) < elf.EI_NIDENT {
		return nil, machine.Newf(machine.KindElfBufferTooShort, "buffer too short for an ELF header (%d bytes)", len(data))
	}
	if elf.Class(data[elf.EI_CLASS]) != elf.ELFCLASS64 {
		return nil, machine.Newf(machine.KindElfInvalidClass, "only 64-bit ELF binaries are supported")
	}

	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, machine.Wrap(machine.KindElfInvalidMagic, "parsing ELF: ", err)
	}
	defer f.Close()

	if f.Machine != elf.EM_X86_64 {
		return nil, machine.Newf(machine.KindUnsupportedDynamic, "unsupported ELF machine type %s, only x86-64 is emulated", f.Machine)
	}

	s := machine.Empty()

	for i, prog := range f.Progs {
		if prog.Type == elf.PT_DYNAMIC {
			return nil, machine.Newf(machine.KindUnsupportedDynamic, "dynamically linked binaries are not supported (PT_DYNAMIC present)")
		}
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Memsz == 0 {
			continue
		}

		content := make([]byte, prog.Filesz)
		if prog.Filesz > 0 {
			n, rerr := prog.ReadAt(content, 0)
			if rerr != nil && uint64(n) < prog.Filesz {
				return nil, machine.Wrap(machine.KindElfContentOverflow, "reading PT_LOAD segment content: ", rerr)
			}
		}

		name := segmentName(i, prog.Flags)
		if merr := s.Memory().InitZeroNamed(prog.Vaddr, prog.Memsz, name); merr != nil {
			return nil, merr
		}
		if len(content) > 0 {
			if werr := s.Memory().WriteBytes(prog.Vaddr, content); werr != nil {
				return nil, werr
			}
		}
	}

	text := f.Section(".text")
	if text == nil {
		return nil, machine.Newf(machine.KindElfNoTextSection, "binary has no .text section")
	}
	textBytes, terr := text.Data()
	if terr != nil {
		return nil, machine.Wrap(machine.KindElfContentOverflow, "reading .text section: ", terr)
	}
	s.SetCode(textBytes, text.Addr)

	if err := loadTLS(s, f); err != nil {
		return nil, err
	}
	if err := loadSymbols(s, f); err != nil {
		return nil, err
	}

	entry := f.Entry
	if entry == 0 {
		entry = text.Addr
	}
	s.SetRIP(entry)
	s.AddSymbol(entry, "_start")
	s.PushCall(entry)
	s.AppendTrace(0, entry, machine.TraceCall)

	return s, nil
}

func segmentName(index int, flags elf.ProgFlag) string {
	kind := "rodata"
	switch {
	case flags&elf.PF_X != 0:
		kind = "text"
	case flags&elf.PF_W != 0:
		kind = "data"
	}
	return fmt.Sprintf("%s%d", kind, index)
}
