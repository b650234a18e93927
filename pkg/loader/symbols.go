package loader

import (
	"debug/elf"

	"github.com/oisee/ax/pkg/machine"
)

// loadSymbols copies every function/object symbol with a name and a
// non-zero address into the machine's symbol table, used by trace
// rendering to print "name@addr" instead of bare addresses (spec.md §4.8).
func loadSymbols(s *machine.State, f *elf.File) *machine.Error {
	syms, err := f.Symbols()
	if err != nil && len(syms) == 0 {
		// No .symtab is common for stripped binaries; this is not fatal.
		syms = nil
	}
	for _, sym := range syms {
		if sym.Name == "" || sym.Value == 0 {
			continue
		}
		s.AddSymbol(sym.Value, sym.Name)
	}

	dynSyms, derr := f.DynamicSymbols()
	if derr != nil {
		dynSyms = nil
	}
	for _, sym := range dynSyms {
		if sym.Name == "" || sym.Value == 0 {
			continue
		}
		s.AddSymbol(sym.Value, sym.Name)
	}

	return nil
}
