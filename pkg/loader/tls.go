package loader

import (
	"debug/elf"

	"github.com/oisee/ax/pkg/machine"
)

// loadTLS points FS at the PT_TLS segment's base address, if present
// (spec.md §4.8's "TLS -> FS base" requirement). A PT_TLS header describes a
// *view* into data that some PT_LOAD segment already mapped (its p_vaddr
// range is a subrange of a LOAD segment's), so this never creates its own
// memory region — doing so would collide with the region the PT_LOAD pass
// already initialized for the same bytes.
func loadTLS(s *machine.State, f *elf.File) *machine.Error {
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_TLS {
			continue
		}
		if prog.Memsz == 0 {
			continue
		}
		s.SetFSBase(prog.Vaddr)
		return nil
	}
	return nil
}
